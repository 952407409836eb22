package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTrustedRealIP(t *testing.T) {
	tests := []struct {
		name       string
		trusted    []string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "untrusted peer keeps its address",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "203.0.113.7:51000",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.1"},
			want:       "203.0.113.7:51000",
		},
		{
			name:       "trusted proxy uses X-Real-IP",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "10.1.2.3:443",
			headers:    map[string]string{"X-Real-IP": "198.51.100.1"},
			want:       "198.51.100.1",
		},
		{
			name:       "trusted proxy uses first X-Forwarded-For entry",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "10.1.2.3:443",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.1, 10.1.2.3"},
			want:       "198.51.100.1",
		},
		{
			name:       "bare address is trusted as a single host",
			trusted:    []string{"127.0.0.1"},
			remoteAddr: "127.0.0.1:9000",
			headers:    map[string]string{"X-Real-IP": "2001:db8::1"},
			want:       "2001:db8::1",
		},
		{
			name:       "garbage header is ignored",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "10.1.2.3:443",
			headers:    map[string]string{"X-Real-IP": "not-an-ip"},
			want:       "10.1.2.3:443",
		},
		{
			name:       "no trusted proxies configured",
			trusted:    nil,
			remoteAddr: "10.1.2.3:443",
			headers:    map[string]string{"X-Real-IP": "198.51.100.1"},
			want:       "10.1.2.3:443",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := TrustedRealIP(tt.trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.RemoteAddr
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Errorf("RemoteAddr = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClientIP(t *testing.T) {
	tests := map[string]string{
		"192.0.2.1:1234":        "192.0.2.1",
		"[2001:db8::1]:443":     "2001:db8::1",
		"198.51.100.9":          "198.51.100.9",
		"[::ffff:192.0.2.5]:80": "192.0.2.5",
		"pipe":                  "pipe",
	}

	for remote, want := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		if got := ClientIP(req); got != want {
			t.Errorf("ClientIP(%q) = %q, want %q", remote, got, want)
		}
	}
}
