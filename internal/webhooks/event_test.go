package webhooks

import (
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestParseEvent(t *testing.T) {
	form := url.Values{}
	form.Set("From", "+15550100001")
	form.Set("SpeechResult", "yes please")
	req := httptest.NewRequest("POST", "/webhooks/voice?sessionId=sess-1", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	ev, err := ParseEvent(req)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ev.From != "+15550100001" || ev.Speech != "yes please" || ev.SessionID != "sess-1" {
		t.Errorf("unexpected event: %+v", ev)
	}
	if ev.Input() != "yes please" {
		t.Errorf("unexpected input %q", ev.Input())
	}
}

func TestParseEventRequiresFrom(t *testing.T) {
	req := httptest.NewRequest("POST", "/webhooks/sms", strings.NewReader("Body=hello"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	if _, err := ParseEvent(req); err == nil {
		t.Fatal("expected error for missing From")
	}
}

func TestEventInputPrecedence(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want string
	}{
		{"text wins", Event{Text: "hi", Speech: "spoken", Digits: "1"}, "hi"},
		{"speech over digits", Event{Speech: "spoken", Digits: "1"}, "spoken"},
		{"digits alone", Event{Digits: "1"}, "1"},
		{"nothing", Event{}, ""},
	}
	for _, tt := range tests {
		if got := tt.ev.Input(); got != tt.want {
			t.Errorf("%s: Input() = %q, want %q", tt.name, got, tt.want)
		}
	}
}
