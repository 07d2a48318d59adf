// Package notify sends outbound SMS confirmations and alerts to patients.
package notify

import "context"

// Messenger delivers a text message to a patient's phone.
type Messenger interface {
	SendSMS(ctx context.Context, to, body string) error
}

// NoopMessenger discards messages. It stands in when no SMS provider is
// configured, which keeps local development working without credentials.
type NoopMessenger struct{}

func (NoopMessenger) SendSMS(context.Context, string, string) error { return nil }
