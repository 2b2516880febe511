package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name              string
		remoteAddr        string
		xForwardedFor     string
		xRealIP           string
		trustProxy        bool
		trustedProxyCount int
		want              string
	}{
		{
			name:       "direct connection",
			remoteAddr: "192.0.2.1:54321",
			want:       "192.0.2.1",
		},
		{
			name:          "XFF ignored when proxy untrusted",
			remoteAddr:    "192.0.2.1:54321",
			xForwardedFor: "203.0.113.50",
			want:          "192.0.2.1",
		},
		{
			name:          "single trusted proxy",
			remoteAddr:    "10.0.0.1:443",
			xForwardedFor: "203.0.113.50, 10.0.0.1",
			trustProxy:    true,
			want:          "203.0.113.50",
		},
		{
			name:              "two trusted proxies",
			remoteAddr:        "10.0.0.1:443",
			xForwardedFor:     "203.0.113.50, 10.0.0.2, 10.0.0.1",
			trustProxy:        true,
			trustedProxyCount: 2,
			want:              "203.0.113.50",
		},
		{
			name:              "more proxies claimed than entries",
			remoteAddr:        "10.0.0.1:443",
			xForwardedFor:     "203.0.113.50",
			trustProxy:        true,
			trustedProxyCount: 5,
			want:              "203.0.113.50",
		},
		{
			name:       "X-Real-IP fallback",
			remoteAddr: "10.0.0.1:443",
			xRealIP:    "203.0.113.75",
			trustProxy: true,
			want:       "203.0.113.75",
		},
		{
			name:          "garbage XFF falls through to RemoteAddr",
			remoteAddr:    "10.0.0.1:443",
			xForwardedFor: "not-an-ip, also-bad",
			trustProxy:    true,
			want:          "10.0.0.1",
		},
		{
			name:       "RemoteAddr without port",
			remoteAddr: "192.0.2.9",
			want:       "192.0.2.9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/oauth/token", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xForwardedFor != "" {
				req.Header.Set("X-Forwarded-For", tt.xForwardedFor)
			}
			if tt.xRealIP != "" {
				req.Header.Set("X-Real-IP", tt.xRealIP)
			}

			got := GetClientIP(req, tt.trustProxy, tt.trustedProxyCount)
			if got != tt.want {
				t.Errorf("GetClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
