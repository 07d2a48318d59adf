package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func postWebhook(from string) *http.Request {
	form := url.Values{}
	if from != "" {
		form.Set("From", from)
	}
	req := httptest.NewRequest("POST", "/webhooks/sms", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestRateLimitKeysByCallerPhone(t *testing.T) {
	handler := RateLimit(1, 2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, postWebhook("+15550100001"))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d within burst rejected with %d", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, postWebhook("+15550100001"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst exhausted, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header on rejection")
	}

	// A different caller has its own bucket.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, postWebhook("+15550100002"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected fresh caller allowed, got %d", rec.Code)
	}
}

func TestRateLimitFallsBackToClientIP(t *testing.T) {
	handler := RateLimit(1, 1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := postWebhook("")
	req.Header.Set("X-Real-Ip", "203.0.113.9")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected first request allowed, got %d", rec.Code)
	}

	req = postWebhook("")
	req.Header.Set("X-Real-Ip", "203.0.113.9")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected same IP limited, got %d", rec.Code)
	}
}

func TestRateLimitLeavesFormReadable(t *testing.T) {
	var seenFrom string
	handler := RateLimit(10, 10)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("downstream ParseForm failed: %v", err)
		}
		seenFrom = r.FormValue("From")
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, postWebhook("+15550100003"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected request allowed, got %d", rec.Code)
	}
	if seenFrom != "+15550100003" {
		t.Fatalf("downstream handler lost form values, got %q", seenFrom)
	}
}
