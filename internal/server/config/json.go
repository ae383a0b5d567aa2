package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/gatekeeper/internal/flagx"
	"github.com/dmitrijs2005/gatekeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration so both "30m" and integer nanoseconds are accepted.
type JsonConfig struct {
	EndpointAddrGRPC     string         `json:"endpoint_addr_grpc"`
	MetricsAddr          string         `json:"metrics_addr"`
	DatabaseDSN          string         `json:"database_dsn"`
	DirectoryBackend     string         `json:"directory_backend"`
	SessionBackend       string         `json:"session_backend"`
	SessionTTL           timex.Duration `json:"session_ttl"`
	SessionSliding       bool           `json:"session_sliding"`
	SessionSecret        string         `json:"session_secret"`
	RedisAddr            string         `json:"redis_addr"`
	RedisPassword        string         `json:"redis_password"`
	RedisDB              int            `json:"redis_db"`
	PasswordPepper       string         `json:"password_pepper"`
	GeoDBPath            string         `json:"geo_db_path"`
	GeoHomeCountry       string         `json:"geo_home_country"`
	S3Region             string         `json:"s3_region"`
	S3BaseEndpoint       string         `json:"s3_base_endpoint"`
	S3AccessKey          string         `json:"s3_access_key"`
	S3SecretKey          string         `json:"s3_secret_key"`
	AMQPURL              string         `json:"amqp_url"`
	NotificationExchange string         `json:"notification_exchange"`
}

// parseJson overlays the JSON file named by -c/-config onto config. Keys
// missing from the file keep their current values. A missing flag loads
// nothing; an unreadable or invalid file panics.
func parseJson(config *Config, args []string) {
	path := flagx.ConfigPath(args)
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := fromConfig(config)
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}
	c.apply(config)
}

func fromConfig(config *Config) *JsonConfig {
	return &JsonConfig{
		EndpointAddrGRPC:     config.EndpointAddrGRPC,
		MetricsAddr:          config.MetricsAddr,
		DatabaseDSN:          config.DatabaseDSN,
		DirectoryBackend:     config.DirectoryBackend,
		SessionBackend:       config.SessionBackend,
		SessionTTL:           timex.Duration{Duration: config.SessionTTL},
		SessionSliding:       config.SessionSliding,
		SessionSecret:        config.SessionSecret,
		RedisAddr:            config.RedisAddr,
		RedisPassword:        config.RedisPassword,
		RedisDB:              config.RedisDB,
		PasswordPepper:       config.PasswordPepper,
		GeoDBPath:            config.GeoDBPath,
		GeoHomeCountry:       config.GeoHomeCountry,
		S3Region:             config.S3Region,
		S3BaseEndpoint:       config.S3BaseEndpoint,
		S3AccessKey:          config.S3AccessKey,
		S3SecretKey:          config.S3SecretKey,
		AMQPURL:              config.AMQPURL,
		NotificationExchange: config.NotificationExchange,
	}
}

func (c *JsonConfig) apply(config *Config) {
	config.EndpointAddrGRPC = c.EndpointAddrGRPC
	config.MetricsAddr = c.MetricsAddr
	config.DatabaseDSN = c.DatabaseDSN
	config.DirectoryBackend = c.DirectoryBackend
	config.SessionBackend = c.SessionBackend
	config.SessionTTL = c.SessionTTL.Duration
	config.SessionSliding = c.SessionSliding
	config.SessionSecret = c.SessionSecret
	config.RedisAddr = c.RedisAddr
	config.RedisPassword = c.RedisPassword
	config.RedisDB = c.RedisDB
	config.PasswordPepper = c.PasswordPepper
	config.GeoDBPath = c.GeoDBPath
	config.GeoHomeCountry = c.GeoHomeCountry
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
	config.S3AccessKey = c.S3AccessKey
	config.S3SecretKey = c.S3SecretKey
	config.AMQPURL = c.AMQPURL
	config.NotificationExchange = c.NotificationExchange
}
