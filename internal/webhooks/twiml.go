package webhooks

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/citycare/clinic-assistant/internal/dialogue"
)

const twimlHeader = `<?xml version="1.0" encoding="UTF-8"?>`

// RenderVoice turns an ordered list of dialogue steps into a TwiML voice
// response. Gather posts the next turn back to action, carrying the session
// id so the follow-up lands on the same conversation.
func RenderVoice(steps []dialogue.Step, action string) string {
	var b strings.Builder
	b.WriteString(twimlHeader)
	b.WriteString("<Response>")
	for _, step := range steps {
		switch step.Kind {
		case dialogue.StepSay:
			writeSay(&b, step.Text)
			b.WriteString(`<Pause length="1"/>`)
		case dialogue.StepGather:
			fmt.Fprintf(&b, `<Gather input="speech dtmf" language="en-US" timeout="3" numDigits="1" action="%s">`, xmlEscape(action))
			writeSay(&b, step.Text)
			b.WriteString("</Gather>")
		case dialogue.StepDial:
			fmt.Fprintf(&b, "<Dial>%s</Dial>", xmlEscape(step.Target))
		case dialogue.StepHangup:
			b.WriteString("<Hangup/>")
		case dialogue.StepRedirect:
			fmt.Fprintf(&b, "<Redirect>%s</Redirect>", xmlEscape(step.Target))
		}
	}
	b.WriteString("</Response>")
	return b.String()
}

// RenderMessage wraps a reply body in a TwiML messaging response. An empty
// body renders an empty response, which tells Twilio not to reply at all.
func RenderMessage(body string) string {
	if strings.TrimSpace(body) == "" {
		return twimlHeader + "<Response></Response>"
	}
	return fmt.Sprintf("%s<Response><Message>%s</Message></Response>", twimlHeader, xmlEscape(body))
}

func writeSay(b *strings.Builder, text string) {
	fmt.Fprintf(b, `<Say voice="woman" language="en-US">%s</Say>`, xmlEscape(text))
}

func xmlEscape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
