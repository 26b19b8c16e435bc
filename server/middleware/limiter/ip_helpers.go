// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package limiter

import (
	"net"
	"net/http"
	"strings"
)

// IPv4 and IPv6 address lengths as measured in bits.
const (
	ipv4BitLength = 32
	ipv6BitLength = 128
)

// getClientIP extracts the client's IP address from an HTTP request with proxy awareness.
//
// Proxy headers (X-Real-IP, X-Forwarded-For) are only trusted when the connection
// comes from a private or loopback address, i.e. from a reverse proxy.
func getClientIP(r *http.Request) net.IP {
	remoteIP := r.RemoteAddr
	if host, _, err := net.SplitHostPort(remoteIP); err == nil {
		remoteIP = host
	}

	direct := net.ParseIP(remoteIP)

	if direct != nil && (direct.IsPrivate() || direct.IsLoopback()) {
		if realIP := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); realIP != nil {
			return realIP
		}

		// The last hop in X-Forwarded-For was appended by our own proxy.
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			if ip := net.ParseIP(strings.TrimSpace(parts[len(parts)-1])); ip != nil {
				return ip
			}
		}
	}

	return direct
}

// getNetwork masks rawIP down to the configured prefix for its address family.
func getNetwork(rawIP net.IP, ipv4Prefix, ipv6Prefix int) *net.IPNet {
	var mask net.IPMask
	if rawIP.To4() != nil {
		mask = net.CIDRMask(ipv4Prefix, ipv4BitLength)
	} else {
		mask = net.CIDRMask(ipv6Prefix, ipv6BitLength)
	}

	return &net.IPNet{
		IP:   rawIP.Mask(mask),
		Mask: mask,
	}
}
