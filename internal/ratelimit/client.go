package ratelimit

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// clientHeaders are consulted in order; the first valid IP wins.
var clientHeaders = []string{
	"CF-Connecting-IP",
	"True-Client-IP",
	"X-Real-IP",
	"X-Forwarded-For",
	"X-Client-IP",
}

// ClientID returns the client identifier of r, or UnknownClient when no
// header or remote address holds a valid IP.
func ClientID(r *http.Request) string {
	for _, name := range clientHeaders {
		v := r.Header.Get(name)
		if v == "" {
			continue
		}
		if name == "X-Forwarded-For" {
			v, _, _ = strings.Cut(v, ",")
		}
		if ip, ok := parseIP(v); ok {
			return ip
		}
	}

	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		host = h
	}
	if ip, ok := parseIP(host); ok {
		return ip
	}
	return UnknownClient
}

func parseIP(v string) (string, bool) {
	addr, err := netip.ParseAddr(strings.Trim(strings.TrimSpace(v), "[]"))
	if err != nil {
		return "", false
	}
	return addr.Unmap().String(), true
}
