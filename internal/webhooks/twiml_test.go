package webhooks

import (
	"strings"
	"testing"

	"github.com/citycare/clinic-assistant/internal/dialogue"
)

func TestRenderVoice(t *testing.T) {
	steps := []dialogue.Step{
		{Kind: dialogue.StepSay, Text: "Thank you for calling."},
		{Kind: dialogue.StepGather, Text: "Are you calling to book an appointment?"},
	}
	got := RenderVoice(steps, "/webhooks/voice?sessionId=abc")

	for _, want := range []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`<Say voice="woman" language="en-US">Thank you for calling.</Say>`,
		`<Pause length="1"/>`,
		`<Gather input="speech dtmf" language="en-US" timeout="3" numDigits="1" action="/webhooks/voice?sessionId=abc">`,
		`<Say voice="woman" language="en-US">Are you calling to book an appointment?</Say></Gather>`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
}

func TestRenderVoiceTerminalSteps(t *testing.T) {
	steps := []dialogue.Step{
		{Kind: dialogue.StepSay, Text: "Connecting you now."},
		{Kind: dialogue.StepDial, Target: "+15550100999"},
		{Kind: dialogue.StepHangup},
	}
	got := RenderVoice(steps, "/webhooks/voice")

	if !strings.Contains(got, "<Dial>+15550100999</Dial>") {
		t.Errorf("missing dial in:\n%s", got)
	}
	if !strings.Contains(got, "<Hangup/>") {
		t.Errorf("missing hangup in:\n%s", got)
	}
	if strings.Contains(got, "<Gather") {
		t.Error("terminal response must not gather")
	}
}

func TestRenderVoiceEscapesText(t *testing.T) {
	steps := []dialogue.Step{{Kind: dialogue.StepSay, Text: `Dr. Smith & "Dr. Lee" <on call>`}}
	got := RenderVoice(steps, "/webhooks/voice")

	if strings.Contains(got, "<on call>") {
		t.Errorf("unescaped text in:\n%s", got)
	}
	if !strings.Contains(got, "&amp;") {
		t.Errorf("ampersand not escaped in:\n%s", got)
	}
}

func TestRenderMessage(t *testing.T) {
	got := RenderMessage("Your appointment is confirmed.")
	if !strings.Contains(got, "<Message>Your appointment is confirmed.</Message>") {
		t.Errorf("unexpected body:\n%s", got)
	}

	if got := RenderMessage("  "); !strings.Contains(got, "<Response></Response>") {
		t.Errorf("blank body should render empty response, got:\n%s", got)
	}
}
