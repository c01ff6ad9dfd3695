package security

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// IPResolver finds the client address, trusting forwarding headers only
// when the direct peer is a known proxy.
type IPResolver struct {
	trusted []*net.IPNet
}

// DefaultTrustedProxies are loopback and private ranges.
var DefaultTrustedProxies = []string{"127.0.0.0/8", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "::1/128"}

func NewIPResolver(cidrs ...string) (*IPResolver, error) {
	r := &IPResolver{}
	for _, c := range cidrs {
		_, network, err := net.ParseCIDR(c)
		if err != nil {
			return nil, fmt.Errorf("parse trusted proxy %q: %w", c, err)
		}
		r.trusted = append(r.trusted, network)
	}
	return r, nil
}

// DefaultIPResolver trusts DefaultTrustedProxies.
func DefaultIPResolver() *IPResolver {
	r, err := NewIPResolver(DefaultTrustedProxies...)
	if err != nil {
		panic(err)
	}
	return r
}

// ClientIP returns the best guess of the requesting client's IP.
func (res *IPResolver) ClientIP(r *http.Request) string {
	direct, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		direct = r.RemoteAddr
	}
	ip := net.ParseIP(direct)
	if ip == nil || !res.isTrusted(ip) {
		return direct
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if net.ParseIP(first) != nil {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}
	return direct
}

func (res *IPResolver) isTrusted(ip net.IP) bool {
	for _, n := range res.trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
