package dialogue

import (
	"github.com/citycare/clinic-assistant/internal/appointments"
	"github.com/citycare/clinic-assistant/internal/session"
)

// Channels a turn can arrive on. The values double as the appointment
// source recorded on a booking.
const (
	ChannelVoice = appointments.SourceVoice
	ChannelSMS   = appointments.SourceSMS
)

// StepKind identifies a response primitive.
type StepKind string

const (
	StepSay      StepKind = "say"
	StepGather   StepKind = "gather"
	StepDial     StepKind = "dial"
	StepHangup   StepKind = "hangup"
	StepRedirect StepKind = "redirect"
)

// Step is one response primitive. Gather carries the prompt it reads while
// listening; Dial and Redirect carry a target instead of text.
type Step struct {
	Kind   StepKind
	Text   string
	Target string
}

// Outcome is the result of one dialogue turn: the ordered response steps,
// the state the session ended in, and the side effects the caller must
// apply (session deletion, confirmation SMS).
type Outcome struct {
	Steps []Step
	Next  session.State

	// DeleteSession is set on completion, escalation and emergency
	// transfer. The session is removed after the response is rendered.
	DeleteSession bool

	// Committed is the appointment booked this turn, if any.
	Committed *appointments.Appointment

	// ConfirmationSMS is the booking confirmation to text the caller,
	// set together with Committed.
	ConfirmationSMS string
}

func (o *Outcome) say(text string) {
	o.Steps = append(o.Steps, Step{Kind: StepSay, Text: text})
}

func (o *Outcome) gather(prompt string) {
	o.Steps = append(o.Steps, Step{Kind: StepGather, Text: prompt})
}

func (o *Outcome) dial(target string) {
	o.Steps = append(o.Steps, Step{Kind: StepDial, Target: target})
}

func (o *Outcome) hangup() {
	o.Steps = append(o.Steps, Step{Kind: StepHangup})
}

// SpokenText joins the say/gather texts in order, for channels that send a
// single text body instead of rendering markup.
func (o *Outcome) SpokenText() string {
	var out string
	for _, step := range o.Steps {
		if step.Text == "" {
			continue
		}
		if out != "" {
			out += " "
		}
		out += step.Text
	}
	return out
}
