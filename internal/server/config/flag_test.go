package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{
			name: "all flags",
			args: []string{
				"-a", "127.0.0.1:9090", "-m", ":9100", "-d", "db", "-u", "memory", "-b", "redis",
				"-t", "15m", "-s", "secret", "-r", "redis:6379", "-k", "pepper", "-g", "s3://geo/city.mmdb",
				"-q", "amqp://mq",
			},
			expected: &Config{
				EndpointAddrGRPC: "127.0.0.1:9090",
				MetricsAddr:      ":9100",
				DatabaseDSN:      "db",
				DirectoryBackend: "memory",
				SessionBackend:   "redis",
				SessionTTL:       15 * time.Minute,
				SessionSecret:    "secret",
				RedisAddr:        "redis:6379",
				PasswordPepper:   "pepper",
				GeoDBPath:        "s3://geo/city.mmdb",
				AMQPURL:          "amqp://mq",
			},
		},
		{
			name:     "foreign flags are ignored",
			args:     []string{"-config", "cfg.json", "-x", "1", "-a", ":1"},
			expected: &Config{EndpointAddrGRPC: ":1"},
		},
		{
			name:        "bad duration",
			args:        []string{"-t", "forever"},
			expectPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{}

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(config, tt.args) })
				assert.Empty(t, cmp.Diff(config, tt.expected))
			} else {
				require.Panics(t, func() { parseFlags(config, tt.args) })
			}
		})
	}
}
