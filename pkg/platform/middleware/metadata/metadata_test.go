package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxid/pkg/requestcontext"
)

func TestMiddlewareHandler(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		trusted    []string
		wantIP     string
	}{
		{
			name:       "ignores forwarding headers from untrusted peers",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.1"},
			remoteAddr: "192.168.1.1:12345",
			wantIP:     "192.168.1.1",
		},
		{
			name:       "trusts first XFF hop from trusted proxy",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.1, 10.0.0.2"},
			remoteAddr: "10.0.0.1:12345",
			trusted:    []string{"10.0.0.0/8"},
			wantIP:     "203.0.113.1",
		},
		{
			name:       "uses X-Real-IP from trusted proxy",
			headers:    map[string]string{"X-Real-IP": "198.51.100.7"},
			remoteAddr: "10.0.0.1:12345",
			trusted:    []string{"10.0.0.0/8"},
			wantIP:     "198.51.100.7",
		},
		{
			name:       "falls back on garbage XFF",
			headers:    map[string]string{"X-Forwarded-For": "not-an-ip"},
			remoteAddr: "10.0.0.1:12345",
			trusted:    []string{"10.0.0.0/8"},
			wantIP:     "10.0.0.1",
		},
		{
			name:       "ipv6 remote address",
			remoteAddr: "[2001:db8::1]:443",
			wantIP:     "2001:db8::1",
		},
		{
			name:       "empty remote address",
			remoteAddr: "",
			wantIP:     "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prefixes, err := ParseTrustedProxies(tt.trusted)
			require.NoError(t, err)
			mw := NewMiddleware(&Config{TrustedProxies: prefixes})

			var ctx context.Context
			h := mw.Handler(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				ctx = r.Context()
			}))

			req := httptest.NewRequest(http.MethodPost, "/voice/login", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tt.wantIP, requestcontext.ClientIP(ctx))
		})
	}
}

func TestDeviceName(t *testing.T) {
	assert.Equal(t, "Unknown Device", DeviceName(""))
	assert.Contains(t,
		DeviceName("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"), "Chrome on ")
	assert.Contains(t, DeviceName("curl/8.4.0"), " on ")
}

func TestParseTrustedProxies(t *testing.T) {
	got, err := ParseTrustedProxies([]string{"10.0.0.0/8", " ", "192.168.0.0/16"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = ParseTrustedProxies([]string{"bogus"})
	assert.Error(t, err)
}
