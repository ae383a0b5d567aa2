package config

import (
	"flag"

	"github.com/caarlos0/env/v11"
)

// parseFlags reads the leading flags of args and returns the rest (the
// command and its arguments).
//
//	-a string   address and port of the backend server
//	-s string   file holding the session handle between invocations
func parseFlags(cfg *Config, args []string) []string {
	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	fs.StringVar(&cfg.SessionFile, "s", cfg.SessionFile, "session file")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
	return fs.Args()
}

func parseEnv(cfg *Config) {
	if err := env.Parse(cfg); err != nil {
		panic(err)
	}
}
