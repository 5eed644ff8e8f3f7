package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractClientIP(t *testing.T) {
	d := NewDetector()
	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{name: "direct public peer ignores headers", remote: "203.0.113.9:1234", xff: "1.1.1.1", want: "203.0.113.9"},
		{name: "trusted proxy forwards first hop", remote: "10.0.0.2:80", xff: "198.51.100.7, 10.0.0.1", want: "198.51.100.7"},
		{name: "trusted proxy with real ip", remote: "127.0.0.1:80", xri: "198.51.100.8", want: "198.51.100.8"},
		{name: "trusted proxy garbage header", remote: "127.0.0.1:80", xff: "garbage", want: "127.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := d.ExtractClientIP(r); got != tt.want {
				t.Errorf("ExtractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetectSuspiciousRequest(t *testing.T) {
	d := NewDetector()

	r := httptest.NewRequest(http.MethodGet, "/.env", nil)
	if !d.DetectSuspiciousRequest(r) {
		t.Error("expected dotenv scan to be flagged")
	}
	r = httptest.NewRequest(http.MethodPost, "/api/sms", nil)
	r.Header.Set("User-Agent", "curl/8.4.0")
	if d.DetectSuspiciousRequest(r) {
		t.Error("curl SMS forwarder must not be flagged")
	}
	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("User-Agent", "sqlmap/1.7")
	if !d.DetectSuspiciousRequest(r) {
		t.Error("expected scanner agent to be flagged")
	}
	if got := d.GetMetrics().SuspiciousRequests; got != 2 {
		t.Errorf("SuspiciousRequests = %d, want 2", got)
	}
	if err := d.AddTrustedProxy("not-a-cidr"); err == nil {
		t.Error("expected invalid CIDR error")
	}
}

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Header().Get("X-Frame-Options") != "DENY" || rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing basic headers: %v", rr.Header())
	}
	if rr.Header().Get("Strict-Transport-Security") != "" {
		t.Fatal("HSTS must only be sent over TLS")
	}

	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	h.ServeHTTP(rr, req)
	if rr.Header().Get("Strict-Transport-Security") == "" {
		t.Fatal("expected HSTS over TLS")
	}
}
