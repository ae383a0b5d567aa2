// Package config holds the settings of the Gatekeeper command-line client.
package config

import (
	"os"
	"path/filepath"
)

// Config holds runtime settings for the Gatekeeper CLI.
type Config struct {
	ServerEndpointAddr string `env:"GATEKEEPER_SERVER_ADDR"`
	SessionFile        string `env:"GATEKEEPER_SESSION_FILE"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.SessionFile = ".gatekeeper_session"
	if home, err := os.UserHomeDir(); err == nil {
		c.SessionFile = filepath.Join(home, ".gatekeeper_session")
	}
}

// LoadConfig constructs a Config from defaults, the environment and
// command-line flags, in that order of precedence. It returns the
// positional arguments left after the flags.
func LoadConfig() (*Config, []string) {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	rest := parseFlags(cfg, os.Args[1:])
	return cfg, rest
}
