package webhooks

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func signedRequest(t *testing.T, target, authToken string, form url.Values) *http.Request {
	t.Helper()
	req := httptest.NewRequest("POST", target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Twilio-Signature", computeSignature(buildSignaturePayload(buildAbsoluteURL(req), form), authToken))
	return req
}

func TestValidateSignature(t *testing.T) {
	form := url.Values{}
	form.Set("From", "+15550100001")
	form.Set("Body", "hello")

	req := signedRequest(t, "http://clinic.example/webhooks/sms", "secret", form)
	if !ValidateSignature(req, "secret", buildAbsoluteURL(req)) {
		t.Error("expected valid signature")
	}

	req = signedRequest(t, "http://clinic.example/webhooks/sms", "wrong-token", form)
	if ValidateSignature(req, "secret", buildAbsoluteURL(req)) {
		t.Error("expected signature mismatch")
	}

	req = httptest.NewRequest("POST", "/webhooks/sms", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if ValidateSignature(req, "secret", buildAbsoluteURL(req)) {
		t.Error("missing header must fail")
	}
}

func TestRequireSignatureMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	form := url.Values{}
	form.Set("From", "+15550100001")

	req := signedRequest(t, "http://clinic.example/webhooks/voice", "secret", form)
	rec := httptest.NewRecorder()
	RequireSignature("secret")(next).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("signed request rejected: %d", rec.Code)
	}

	req = httptest.NewRequest("POST", "http://clinic.example/webhooks/voice", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	RequireSignature("secret")(next).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unsigned request accepted: %d", rec.Code)
	}

	// Empty token disables validation.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "http://clinic.example/webhooks/voice", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	RequireSignature("")(next).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("disabled validation rejected request: %d", rec.Code)
	}
}
