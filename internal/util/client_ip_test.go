package util

import (
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	proxies, err := NewTrustedProxies([]string{"172.16.0.0/12", " 127.0.0.1 ", "fd00::/8"})
	if err != nil {
		t.Fatalf("trusted proxies: %v", err)
	}

	cases := []struct {
		name    string
		remote  string
		headers map[string]string
		trusted *TrustedProxies
		want    string
	}{
		{
			name:    "untrusted peer ignores forwarding headers",
			remote:  "198.51.100.23:50000",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.9", "X-Real-IP": "203.0.113.10"},
			want:    "198.51.100.23",
		},
		{
			name:    "trusted peer uses forwarded client",
			remote:  "172.20.1.4:8080",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.9"},
			trusted: proxies,
			want:    "203.0.113.9",
		},
		{
			name:    "walks past trusted hops",
			remote:  "127.0.0.1:8080",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.9, 198.51.100.1, 172.16.9.9"},
			trusted: proxies,
			want:    "198.51.100.1",
		},
		{
			name:    "x-real-ip when forwarded-for is garbage",
			remote:  "172.20.1.4:8080",
			headers: map[string]string{"X-Forwarded-For": "unknown", "X-Real-IP": "203.0.113.77"},
			trusted: proxies,
			want:    "203.0.113.77",
		},
		{
			name:    "every hop trusted picks the first",
			remote:  "172.20.1.4:8080",
			headers: map[string]string{"X-Forwarded-For": "172.16.0.1, 127.0.0.1"},
			trusted: proxies,
			want:    "172.16.0.1",
		},
		{
			name:    "ipv6 peer behind trusted ula proxy",
			remote:  "[fd00::1]:443",
			headers: map[string]string{"X-Forwarded-For": "2001:db8::5"},
			trusted: proxies,
			want:    "2001:db8::5",
		},
		{
			name:   "unparseable remote is returned as is",
			remote: "pipe",
			want:   "pipe",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/orchestrate-content", nil)
			req.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			if got := ClientIP(req, tc.trusted); got != tc.want {
				t.Fatalf("ClientIP = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNewTrustedProxies(t *testing.T) {
	got, err := NewTrustedProxies([]string{"", "  "})
	if err != nil || got != nil {
		t.Fatalf("blank entries: got %v, %v", got, err)
	}
	for _, bad := range []string{"10.0.0.0/33", "not-an-ip"} {
		if _, err := NewTrustedProxies([]string{bad}); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
