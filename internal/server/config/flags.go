package config

import (
	"flag"

	"github.com/dmitrijs2005/gatekeeper/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string     gRPC bind address (e.g., ":50051")
//	-m string     metrics bind address
//	-d string     PostgreSQL DSN
//	-u string     directory backend (postgres|memory)
//	-b string     session backend (memory|redis|postgres)
//	-t duration   session TTL (e.g., "30m")
//	-s string     session signing secret
//	-r string     Redis address
//	-k string     password pepper
//	-g string     geolocation database (path or s3://bucket/key)
//	-q string     AMQP URL
func parseFlags(config *Config, args []string) {
	args = flagx.FilterArgs(args, []string{"-a", "-m", "-d", "-u", "-b", "-t", "-s", "-r", "-k", "-g", "-q"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.MetricsAddr, "m", config.MetricsAddr, "address and port to serve metrics")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.DirectoryBackend, "u", config.DirectoryBackend, "user directory backend")
	fs.StringVar(&config.SessionBackend, "b", config.SessionBackend, "session store backend")
	fs.DurationVar(&config.SessionTTL, "t", config.SessionTTL, "session TTL")
	fs.StringVar(&config.SessionSecret, "s", config.SessionSecret, "session signing secret")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")
	fs.StringVar(&config.PasswordPepper, "k", config.PasswordPepper, "password pepper")
	fs.StringVar(&config.GeoDBPath, "g", config.GeoDBPath, "geolocation database")
	fs.StringVar(&config.AMQPURL, "q", config.AMQPURL, "AMQP URL")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
