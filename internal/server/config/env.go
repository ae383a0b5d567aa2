package config

import "github.com/caarlos0/env/v11"

// parseEnv overlays GATEKEEPER_* environment variables. Unset variables
// leave the field untouched; a malformed value panics like the other layers.
func parseEnv(config *Config) {
	if err := env.Parse(config); err != nil {
		panic(err)
	}
}
