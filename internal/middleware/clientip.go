package middleware

import (
	"net"
	"net/http"
	"strings"
)

// Checked in this order; the first header present wins.
var clientIPHeaders = []string{
	"CF-Connecting-IP",
	"True-Client-IP",
	"X-Real-IP",
	"X-Client-IP",
	"X-Forwarded-For",
	"X-Cluster-Client-IP",
}

// ClientIP resolves the caller address. With trustProxy the proxy headers
// are consulted first; a header value that is not a valid IP falls back to
// the connection address. The result is "unknown" when nothing parses.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		for _, h := range clientIPHeaders {
			v := r.Header.Get(h)
			if v == "" {
				continue
			}
			first, _, _ := strings.Cut(v, ",")
			if ip, ok := normalizeIP(first); ok {
				return ip
			}
			break
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip, ok := normalizeIP(host); ok {
		return ip
	}
	return "unknown"
}

func normalizeIP(v string) (string, bool) {
	v = strings.Trim(strings.TrimSpace(v), "[]")
	if v == "::1" {
		return "127.0.0.1", true
	}
	ip := net.ParseIP(v)
	if ip == nil {
		return "", false
	}
	return ip.String(), true
}
