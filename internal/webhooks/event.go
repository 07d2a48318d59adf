// Package webhooks receives Twilio voice and SMS callbacks and renders
// dialogue outcomes back to the wire.
package webhooks

import (
	"errors"
	"fmt"
	"net/http"
)

// Event is one inbound turn, abstracted from channel specifics. Exactly one
// of Text, Speech or Digits carries the caller's content; all three empty
// means the caller said nothing this turn.
type Event struct {
	From      string
	Text      string
	Speech    string
	Digits    string
	SessionID string
}

var errMissingFrom = errors.New("webhooks: missing From")

// ParseEvent decodes a Twilio webhook form post. The session id rides the
// query string so it survives the round trip through Twilio's action URL.
func ParseEvent(r *http.Request) (Event, error) {
	if err := r.ParseForm(); err != nil {
		return Event{}, fmt.Errorf("webhooks: parse form: %w", err)
	}
	ev := Event{
		From:      r.PostFormValue("From"),
		Text:      r.PostFormValue("Body"),
		Speech:    r.PostFormValue("SpeechResult"),
		Digits:    r.PostFormValue("Digits"),
		SessionID: r.URL.Query().Get("sessionId"),
	}
	if ev.From == "" {
		return Event{}, errMissingFrom
	}
	return ev, nil
}

// Input returns the caller's turn content, preferring typed text, then
// transcribed speech, then DTMF digits. Empty means no input.
func (e Event) Input() string {
	switch {
	case e.Text != "":
		return e.Text
	case e.Speech != "":
		return e.Speech
	default:
		return e.Digits
	}
}
