package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHeadersAlwaysApplied(t *testing.T) {
	handler := Headers{}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "http://example.com", nil))

	headers := rr.Result().Header
	if got := headers.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected nosniff header, got %q", got)
	}
	if got := headers.Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("expected DENY frame options, got %q", got)
	}
	if headers.Get("Strict-Transport-Security") != "" {
		t.Fatal("hsts must not be set on plain http")
	}
}

func TestHeadersHSTSOnTLS(t *testing.T) {
	handler := Headers{EnableHSTS: true, HSTSIncludeSubdomains: true}.Middleware(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	req := httptest.NewRequest(http.MethodGet, "https://example.com", nil)
	req.TLS = &tls.ConnectionState{}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	got := rr.Result().Header.Get("Strict-Transport-Security")
	if got != "max-age=31536000; includeSubDomains" {
		t.Fatalf("unexpected hsts value: %q", got)
	}
}
