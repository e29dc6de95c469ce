package beaconlib

import (
	"net"
	"net/http"
	"strings"
)

const ipv4MappedPrefix = "::ffff:"

// ClientIP detects an address of a visitor. The first entry of
// X-Forwarded-For wins, then X-Real-IP, then a peer address of
// the connection. IPv4-mapped IPv6 prefix is stripped.
func ClientIP(req *http.Request) string {
	if value := req.Header.Get("X-Forwarded-For"); value != "" {
		first, _, _ := strings.Cut(value, ",")

		if first = strings.TrimSpace(first); first != "" {
			return stripIPv4Mapping(first)
		}
	}

	if value := strings.TrimSpace(req.Header.Get("X-Real-IP")); value != "" {
		return stripIPv4Mapping(value)
	}

	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		host = req.RemoteAddr
	}

	return stripIPv4Mapping(strings.TrimSpace(host))
}

func stripIPv4Mapping(addr string) string {
	if len(addr) > len(ipv4MappedPrefix) && strings.EqualFold(addr[:len(ipv4MappedPrefix)], ipv4MappedPrefix) {
		return addr[len(ipv4MappedPrefix):]
	}

	return addr
}
