// Package enrich derives best-effort request metadata for login events:
// client IP, coarse location and device class. Nothing here returns an
// error and nothing here feeds a security decision.
package enrich

import (
	"net"
	"strings"
)

// LoopbackIP is reported for local callers and whenever resolution fails.
const LoopbackIP = "127.0.0.1"

// HeaderGetter is satisfied by http.Header and by the gRPC metadata adapter.
type HeaderGetter interface {
	Get(key string) string
}

// proxyHeaders is checked in order. X-Natapp-IP is set by the trusted
// tunnel in front of the service and wins over everything else.
var proxyHeaders = []string{
	"X-Natapp-IP",
	"X-Real-IP",
	"X-Forwarded-For",
	"Proxy-Client-IP",
	"WL-Proxy-Client-IP",
	"HTTP_X_FORWARDED_FOR",
}

// ClientIP resolves the originating address of a request. Blank, "unknown"
// and unparsable header values are skipped; only the first hop of a
// comma-separated list is considered. remoteAddr may carry a port.
func ClientIP(h HeaderGetter, remoteAddr string) (ip string) {
	defer func() {
		if r := recover(); r != nil {
			ip = LoopbackIP
		}
	}()

	if h != nil {
		for _, name := range proxyHeaders {
			if addr := parseHop(h.Get(name)); addr != nil {
				return normalize(addr)
			}
		}
	}

	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	if addr := parseHop(host); addr != nil {
		return normalize(addr)
	}
	return LoopbackIP
}

func parseHop(v string) net.IP {
	first, _, _ := strings.Cut(v, ",")
	first = strings.TrimSpace(first)
	if first == "" || strings.EqualFold(first, "unknown") {
		return nil
	}
	return net.ParseIP(first)
}

func normalize(ip net.IP) string {
	if ip.IsLoopback() {
		return LoopbackIP
	}
	return ip.String()
}
