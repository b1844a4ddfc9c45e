package http

import (
	"net"
	"net/http"
	"strings"
	"unicode/utf8"
)

// MaxClientDescriptorLen caps the stored user-agent string
const MaxClientDescriptorLen = 512

// IPConfig lists the proxies whose forwarding headers are trusted
type IPConfig struct {
	TrustedProxies []string // CIDR ranges

	nets []*net.IPNet
}

// NewIPConfig parses the CIDR list once. Invalid entries are skipped.
func NewIPConfig(cidrs []string) *IPConfig {
	cfg := &IPConfig{TrustedProxies: cidrs}
	for _, cidr := range cidrs {
		if _, ipNet, err := net.ParseCIDR(strings.TrimSpace(cidr)); err == nil {
			cfg.nets = append(cfg.nets, ipNet)
		}
	}
	return cfg
}

// ExtractClientIP returns the caller's address. X-Forwarded-For and
// X-Real-IP are honoured only when the direct peer is a trusted proxy, so a
// client cannot pick its own address by sending headers.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	remoteIP := getRemoteAddr(r)

	if config == nil || !config.trusts(remoteIP) {
		return remoteIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, ip := range strings.Split(xff, ",") {
			ip = strings.TrimSpace(ip)
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}

	return remoteIP
}

// ClientDescriptor returns the raw user agent, truncated for storage
func ClientDescriptor(r *http.Request) string {
	ua := r.UserAgent()
	if len(ua) <= MaxClientDescriptorLen {
		return ua
	}
	ua = ua[:MaxClientDescriptorLen]
	for !utf8.ValidString(ua) {
		ua = ua[:len(ua)-1]
	}
	return ua
}

func getRemoteAddr(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	return r.RemoteAddr
}

func (c *IPConfig) trusts(ip string) bool {
	nets := c.nets
	if nets == nil && len(c.TrustedProxies) > 0 {
		nets = NewIPConfig(c.TrustedProxies).nets
	}

	clientIP := net.ParseIP(ip)
	if clientIP == nil {
		return false
	}
	for _, n := range nets {
		if n.Contains(clientIP) {
			return true
		}
	}
	return false
}
