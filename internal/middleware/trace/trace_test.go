package trace

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"expensetracker/internal/log"
)

func TestMiddlewareAssignsRequestID(t *testing.T) {
	m := NewMiddleware(nil, nil)

	var seen string
	var hasLogger bool
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		_, hasLogger = r.Context().Value(log.LoggerContextKey).(*log.Logger)
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/categories", nil))

	if _, err := uuid.Parse(seen); err != nil {
		t.Fatalf("request id %q is not a uuid", seen)
	}
	if rr.Header().Get(RequestIDHeader) != seen {
		t.Fatalf("response header %q does not match %q", rr.Header().Get(RequestIDHeader), seen)
	}
	if !hasLogger {
		t.Fatal("expected request logger in context")
	}
	if rr.Code != http.StatusTeapot {
		t.Fatalf("status not propagated: %d", rr.Code)
	}
	if m.GetMetrics().TotalRequests != 1 {
		t.Fatalf("expected one request counted")
	}
}

func TestMiddlewareKeepsValidIncomingID(t *testing.T) {
	m := NewMiddleware(nil, nil)
	incoming := uuid.NewString()

	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, incoming)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != incoming {
		t.Fatalf("expected %q, got %q", incoming, seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "not a uuid\n")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen == "not a uuid\n" {
		t.Fatal("invalid incoming id must be replaced")
	}
}
