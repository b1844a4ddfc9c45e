package http_test

import (
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	pkghttp "github.com/sunvolt/loginguard/pkg/http"
)

func TestExtractClientIP(t *testing.T) {
	trusted := pkghttp.NewIPConfig([]string{"10.0.0.0/8", "2001:db8::/32", "not-a-cidr"})

	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		config     *pkghttp.IPConfig
		want       string
	}{
		{
			name:       "direct client cannot spoof forwarding headers",
			remoteAddr: "203.0.113.10:54321",
			headers:    map[string]string{"X-Forwarded-For": "1.2.3.4", "X-Real-IP": "192.168.1.1"},
			config:     trusted,
			want:       "203.0.113.10",
		},
		{
			name:       "trusted proxy forwards first valid address",
			remoteAddr: "10.0.0.5:54321",
			headers:    map[string]string{"X-Forwarded-For": "garbage, 198.51.100.4, 10.0.0.9"},
			config:     trusted,
			want:       "198.51.100.4",
		},
		{
			name:       "trusted proxy falls back to X-Real-IP",
			remoteAddr: "10.1.2.3:80",
			headers:    map[string]string{"X-Real-IP": "198.51.100.8"},
			config:     trusted,
			want:       "198.51.100.8",
		},
		{
			name:       "trusted ipv6 proxy",
			remoteAddr: "[2001:db8::1]:443",
			headers:    map[string]string{"X-Forwarded-For": "2001:db8:ffff::2"},
			config:     trusted,
			want:       "2001:db8:ffff::2",
		},
		{
			name:       "no config trusts nobody",
			remoteAddr: "10.0.0.5:54321",
			headers:    map[string]string{"X-Forwarded-For": "1.2.3.4"},
			config:     nil,
			want:       "10.0.0.5",
		},
		{
			name:       "config built without constructor",
			remoteAddr: "10.0.0.5:54321",
			headers:    map[string]string{"X-Forwarded-For": "1.2.3.4"},
			config:     &pkghttp.IPConfig{TrustedProxies: []string{"10.0.0.0/8"}},
			want:       "1.2.3.4",
		},
		{
			name:       "remote addr without port",
			remoteAddr: "203.0.113.10",
			config:     trusted,
			want:       "203.0.113.10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			assert.Equal(t, tt.want, pkghttp.ExtractClientIP(req, tt.config))
		})
	}
}

func TestClientDescriptor_Truncates(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0")
	assert.Equal(t, "Mozilla/5.0", pkghttp.ClientDescriptor(req))

	req.Header.Set("User-Agent", strings.Repeat("é", 400))
	got := pkghttp.ClientDescriptor(req)
	assert.LessOrEqual(t, len(got), pkghttp.MaxClientDescriptorLen)
	assert.True(t, utf8.ValidString(got))
}
