package enrich

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

type panicHeaders struct{}

func (panicHeaders) Get(string) string { panic("broken header source") }

func headers(kv ...string) http.Header {
	h := http.Header{}
	for i := 0; i+1 < len(kv); i += 2 {
		h.Set(kv[i], kv[i+1])
	}
	return h
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		h          HeaderGetter
		remoteAddr string
		want       string
	}{
		{
			name:       "trusted proxy wins",
			h:          headers("X-Natapp-IP", "203.0.113.7", "X-Real-IP", "198.51.100.1"),
			remoteAddr: "10.0.0.1:5555",
			want:       "203.0.113.7",
		},
		{
			name: "real ip before forwarded-for",
			h:    headers("X-Real-IP", "198.51.100.1", "X-Forwarded-For", "198.51.100.2"),
			want: "198.51.100.1",
		},
		{
			name: "first hop of forwarded-for",
			h:    headers("X-Forwarded-For", " 198.51.100.2 , 10.0.0.1, 10.0.0.2"),
			want: "198.51.100.2",
		},
		{
			name: "unknown values are skipped",
			h:    headers("X-Natapp-IP", "unknown", "X-Real-IP", "UNKNOWN", "Proxy-Client-IP", "192.0.2.9"),
			want: "192.0.2.9",
		},
		{
			name: "garbage is skipped",
			h:    headers("X-Real-IP", "not-an-ip", "WL-Proxy-Client-IP", "192.0.2.10"),
			want: "192.0.2.10",
		},
		{
			name: "legacy header",
			h:    headers("HTTP_X_FORWARDED_FOR", "192.0.2.11"),
			want: "192.0.2.11",
		},
		{
			name:       "remote address with port",
			h:          http.Header{},
			remoteAddr: "192.0.2.12:443",
			want:       "192.0.2.12",
		},
		{
			name:       "ipv6 remote address",
			h:          nil,
			remoteAddr: "[2001:db8::1]:443",
			want:       "2001:db8::1",
		},
		{
			name:       "ipv6 loopback",
			h:          nil,
			remoteAddr: "[::1]:9000",
			want:       LoopbackIP,
		},
		{
			name:       "unparsable remote address",
			h:          nil,
			remoteAddr: "bufconn",
			want:       LoopbackIP,
		},
		{
			name: "nothing at all",
			h:    nil,
			want: LoopbackIP,
		},
		{
			name:       "panic is absorbed",
			h:          panicHeaders{},
			remoteAddr: "192.0.2.13:1",
			want:       LoopbackIP,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClientIP(tt.h, tt.remoteAddr))
		})
	}
}
