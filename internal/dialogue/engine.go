package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/citycare/clinic-assistant/internal/appointments"
	"github.com/citycare/clinic-assistant/internal/extraction"
	"github.com/citycare/clinic-assistant/internal/observability/metrics"
	"github.com/citycare/clinic-assistant/internal/session"
	"github.com/citycare/clinic-assistant/internal/transcript"
	"github.com/citycare/clinic-assistant/pkg/logging"
)

// MaxRetries is the default per-segment re-prompt ceiling.
const MaxRetries = 2

// Extractor is the slice of the extraction adapter the engine uses.
type Extractor interface {
	Extract(ctx context.Context, utterance string, history []extraction.ChatMessage) (appointments.Candidate, error)
	Converse(ctx context.Context, utterance, patientName string, history []extraction.ChatMessage) (string, error)
}

// Validator checks an extracted candidate against the schedule.
type Validator interface {
	Validate(ctx context.Context, cand appointments.Candidate, phone, source string) (*appointments.Request, error)
}

// Booker commits, cancels and lists appointments.
type Booker interface {
	CreateAppointment(ctx context.Context, req *appointments.Request) (*appointments.Appointment, error)
	CancelAppointment(ctx context.Context, id string) error
	AppointmentsByPhone(ctx context.Context, phone string) ([]appointments.Appointment, error)
}

// PatientLookup resolves a caller's name from their phone number. A blank
// name means the caller is unknown.
type PatientLookup interface {
	PatientName(ctx context.Context, phone string) (string, error)
}

// StaticPatients is a fixed phone-to-name table.
type StaticPatients map[string]string

func (m StaticPatients) PatientName(_ context.Context, phone string) (string, error) {
	return m[phone], nil
}

var affirmativeTokens = []string{"yes", "yeah", "yep", "book", "1"}
var emergencyTokens = []string{"emergency", "urgent"}

const (
	intentPrompt = "Are you calling to book an appointment? You can say yes or press 1 to continue. For emergencies, say emergency immediately."

	detailsPrompt = "Great. Please tell me the doctor's name, and the date and time you would like."

	technicalApology = "We're experiencing technical difficulties. Please try again later."
)

// EngineConfig collects the engine's collaborators and knobs. Zero values
// fall back to defaults.
type EngineConfig struct {
	Normalizer    *transcript.Normalizer
	Phrases       PhraseProvider
	Patients      PatientLookup
	OperatorPhone string
	MaxRetries    int
	Logger        *logging.Logger
	Metrics       *metrics.ConversationMetrics
}

// Engine drives one dialogue turn: given the session and the caller's
// input, it decides the response, the next state, and whether to extract,
// validate or commit a booking.
type Engine struct {
	extractor  Extractor
	validator  Validator
	booker     Booker
	normalizer *transcript.Normalizer
	phrases    PhraseProvider
	patients   PatientLookup
	operator   string
	maxRetries int
	logger     *logging.Logger
	metrics    *metrics.ConversationMetrics
}

// NewEngine creates a dialogue engine.
func NewEngine(extractor Extractor, validator Validator, booker Booker, cfg EngineConfig) *Engine {
	if extractor == nil {
		panic("dialogue: extractor cannot be nil")
	}
	if validator == nil {
		panic("dialogue: validator cannot be nil")
	}
	if booker == nil {
		panic("dialogue: booker cannot be nil")
	}
	if cfg.Normalizer == nil {
		cfg.Normalizer = transcript.NewNormalizer()
	}
	if cfg.Phrases == nil {
		cfg.Phrases = NewPhrases(time.Now().UnixNano())
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = MaxRetries
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Engine{
		extractor:  extractor,
		validator:  validator,
		booker:     booker,
		normalizer: cfg.Normalizer,
		phrases:    cfg.Phrases,
		patients:   cfg.Patients,
		operator:   cfg.OperatorPhone,
		maxRetries: cfg.MaxRetries,
		logger:     cfg.Logger.Component("dialogue"),
		metrics:    cfg.Metrics,
	}
}

// Turn processes one inbound event against the session. The session is
// mutated in place; persisting it is the caller's job.
func (e *Engine) Turn(ctx context.Context, sess *session.Session, input, channel string) (*Outcome, error) {
	if sess == nil {
		return nil, errors.New("dialogue: session cannot be nil")
	}
	e.metrics.ObserveTurn(string(sess.State), channel)

	out := &Outcome{}
	var err error
	switch sess.State {
	case session.StateGreeting:
		err = e.handleGreeting(ctx, sess, out)
	case session.StateConfirmIntent:
		err = e.handleConfirmIntent(ctx, sess, input, channel, out)
	case session.StateCollectDetails:
		err = e.handleCollectDetails(ctx, sess, input, channel, out)
	case session.StateConfirmAppointment:
		err = e.handleConfirmAppointment(ctx, sess, input, channel, out)
	case session.StateFollowUp:
		err = e.handleFollowUp(ctx, sess, input, channel, out)
	default:
		// Terminal states are deleted on exit; a turn landing here is a
		// stale session and restarts the conversation.
		sess.Advance(session.StateGreeting)
		err = e.handleGreeting(ctx, sess, out)
	}
	if err != nil {
		return nil, err
	}
	out.Next = sess.State
	return out, nil
}

func (e *Engine) handleGreeting(ctx context.Context, sess *session.Session, out *Outcome) error {
	greeting := e.phrases.Greeting()
	if e.patients != nil {
		name, err := e.patients.PatientName(ctx, sess.Phone)
		if err != nil {
			e.logger.Warn("patient lookup failed", "session_id", sess.ID, "error", err.Error())
		} else if strings.TrimSpace(name) != "" {
			greeting = fmt.Sprintf("Hello %s, welcome back to City Healthcare Center.", name)
			sess.SetContext("patient_name", name)
		}
	}

	out.say(greeting)
	out.gather(intentPrompt)
	sess.AppendTurn("assistant", greeting+" "+intentPrompt)
	sess.Advance(session.StateConfirmIntent)
	return nil
}

func (e *Engine) handleConfirmIntent(ctx context.Context, sess *session.Session, input, channel string, out *Outcome) error {
	in := strings.ToLower(strings.TrimSpace(input))
	if in == "" {
		e.retryOrEscalate(sess, channel, "I didn't hear your response. Please say yes or no, or press 1.", "empty_input", out)
		return nil
	}

	// Emergency overrides everything else.
	if containsAny(in, emergencyTokens) {
		e.emergency(sess, channel, out)
		return nil
	}

	if containsAny(in, affirmativeTokens) {
		sess.AppendTurn("user", "Yes, I want to book an appointment")
		sess.AppendTurn("assistant", "Requesting appointment details")
		sess.Advance(session.StateCollectDetails)
		out.gather(detailsPrompt)
		return nil
	}

	sess.Advance(session.StateFollowUp)
	return e.handleFollowUp(ctx, sess, input, channel, out)
}

func (e *Engine) handleCollectDetails(ctx context.Context, sess *session.Session, input, channel string, out *Outcome) error {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		e.retryOrEscalate(sess, channel, "I didn't catch that. Please tell me the doctor's name and preferred time.", "empty_input", out)
		return nil
	}

	normalized := e.normalizer.Normalize(trimmed)
	history := chatHistory(sess)
	sess.AppendTurn("user", normalized)

	cand, err := e.extractor.Extract(ctx, normalized, history)
	if err != nil {
		if errors.Is(err, extraction.ErrParseFailure) || errors.Is(err, extraction.ErrEmptyResponse) {
			e.retryOrEscalate(sess, channel, "I couldn't process that. Please say the doctor's name and your preferred time again.", "parse_failure", out)
			return nil
		}
		e.externalFailure(sess, channel, out, err)
		return nil
	}

	req, err := e.validator.Validate(ctx, cand, sess.Phone, channel)
	if err != nil {
		var verr *appointments.ValidationError
		if errors.As(err, &verr) {
			e.metrics.ObserveValidationFailure(string(verr.Kind))
			// Failures fixable with a new time already name the fix; anything
			// else re-collects doctor, date and time together.
			prompt := verr.Message
			if !verr.FixableWithNewTime() {
				prompt += " Please tell me the doctor's name, the date, and the time."
			}
			e.retryOrEscalate(sess, channel, prompt, string(verr.Kind), out)
			return nil
		}
		e.externalFailure(sess, channel, out, err)
		return nil
	}

	sess.SetContext("doctor", req.Doctor)
	sess.SetContext("date", req.Date.Format("01/02/2006"))
	sess.SetContext("time", req.Time)
	sess.SetContext("reason", req.Reason)
	sess.Advance(session.StateConfirmAppointment)

	confirm := fmt.Sprintf("Confirming appointment with %s on %s at %s. Press 1 to confirm.",
		req.Doctor, req.Date.Format("01/02/2006"), req.Time)
	sess.AppendTurn("assistant", confirm)
	out.gather(confirm)
	return nil
}

func (e *Engine) handleConfirmAppointment(ctx context.Context, sess *session.Session, input, channel string, out *Outcome) error {
	in := strings.ToLower(strings.TrimSpace(input))
	if in == "" {
		e.retryOrEscalate(sess, channel, "Please say yes or press 1 to confirm your appointment, or say no to pick a different time.", "empty_input", out)
		return nil
	}

	if !containsAny(in, affirmativeTokens) {
		sess.Advance(session.StateCollectDetails)
		sess.Retries++
		out.gather("No problem. Please tell me the doctor's name, and a different date and time.")
		return nil
	}

	// Re-validate from the stored slots; a slot grabbed since collection
	// surfaces here instead of double-booking.
	cand := appointments.Candidate{
		Doctor: sess.Context["doctor"],
		Date:   sess.Context["date"],
		Time:   sess.Context["time"],
		Reason: sess.Context["reason"],
	}
	req, err := e.validator.Validate(ctx, cand, sess.Phone, channel)
	if err != nil {
		var verr *appointments.ValidationError
		if errors.As(err, &verr) {
			e.metrics.ObserveValidationFailure(string(verr.Kind))
			sess.Advance(session.StateCollectDetails)
			sess.Retries++
			out.gather(verr.Message)
			return nil
		}
		e.externalFailure(sess, channel, out, err)
		return nil
	}

	appt, err := e.booker.CreateAppointment(ctx, req)
	if err != nil {
		e.externalFailure(sess, channel, out, fmt.Errorf("dialogue: commit booking: %w", err))
		return nil
	}

	e.logger.Info("appointment booked",
		"session_id", sess.ID,
		"appointment_id", appt.ID,
		"doctor", appt.Doctor,
		"starts_at", appt.StartsAt.String(),
		"source", channel)

	out.say(fmt.Sprintf("Your appointment with %s has been confirmed. We'll send you a confirmation SMS. Thank you!", req.Doctor))
	out.hangup()
	out.Committed = appt
	out.ConfirmationSMS = fmt.Sprintf("City Healthcare Center: your appointment with %s on %s at %s is confirmed.",
		req.Doctor, req.Date.Format("01/02/2006"), req.Time)

	sess.Advance(session.StateCompleted)
	out.DeleteSession = true
	return nil
}

func (e *Engine) handleFollowUp(ctx context.Context, sess *session.Session, input, channel string, out *Outcome) error {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		e.retryOrEscalate(sess, channel, "I didn't catch that. How can I help you today?", "empty_input", out)
		return nil
	}

	switch classifyIntent(trimmed) {
	case intentReschedule:
		return e.reschedule(ctx, sess, trimmed, out)
	case intentCancel:
		return e.cancelUpcoming(ctx, sess, trimmed, out)
	case intentBook:
		sess.AppendTurn("user", trimmed)
		sess.Advance(session.StateCollectDetails)
		out.gather(detailsPrompt)
		return nil
	}

	history := chatHistory(sess)
	sess.AppendTurn("user", trimmed)
	reply, err := e.extractor.Converse(ctx, trimmed, sess.Context["patient_name"], history)
	if err != nil {
		if errors.Is(err, extraction.ErrEmptyResponse) {
			e.retryOrEscalate(sess, channel, "I'm sorry, could you say that again?", "empty_reply", out)
			return nil
		}
		e.externalFailure(sess, channel, out, err)
		return nil
	}

	sess.AppendTurn("assistant", reply)
	sess.Retries = 0
	out.gather(reply)
	return nil
}

func (e *Engine) cancelUpcoming(ctx context.Context, sess *session.Session, input string, out *Outcome) error {
	sess.AppendTurn("user", input)

	appts, err := e.booker.AppointmentsByPhone(ctx, sess.Phone)
	if err != nil {
		return fmt.Errorf("dialogue: list appointments: %w", err)
	}
	if len(appts) == 0 {
		reply := "I couldn't find an upcoming appointment for this phone number. Is there anything else I can help you with?"
		sess.AppendTurn("assistant", reply)
		out.gather(reply)
		return nil
	}

	next := appts[0]
	if err := e.booker.CancelAppointment(ctx, next.ID); err != nil {
		return fmt.Errorf("dialogue: cancel appointment: %w", err)
	}

	reply := fmt.Sprintf("Your appointment with %s on %s has been cancelled. Is there anything else I can help you with?",
		next.Doctor, next.StartsAt.Format("01/02/2006 at 3:04 PM"))
	sess.AppendTurn("assistant", reply)
	sess.Retries = 0
	out.gather(reply)
	return nil
}

func (e *Engine) reschedule(ctx context.Context, sess *session.Session, input string, out *Outcome) error {
	sess.AppendTurn("user", input)

	appts, err := e.booker.AppointmentsByPhone(ctx, sess.Phone)
	if err != nil {
		return fmt.Errorf("dialogue: list appointments: %w", err)
	}
	if len(appts) > 0 {
		next := appts[0]
		if err := e.booker.CancelAppointment(ctx, next.ID); err != nil {
			return fmt.Errorf("dialogue: cancel appointment: %w", err)
		}
		out.say(fmt.Sprintf("I've cancelled your appointment with %s. Let's find a new time.", next.Doctor))
	}

	sess.Advance(session.StateCollectDetails)
	out.gather(detailsPrompt)
	return nil
}

// retryOrEscalate re-prompts until the segment's retry ceiling is crossed,
// then hands the caller to a human and deletes the session.
func (e *Engine) retryOrEscalate(sess *session.Session, channel, prompt, reason string, out *Outcome) {
	sess.Retries++
	if sess.Retries <= e.maxRetries {
		out.gather(prompt)
		return
	}
	e.escalate(sess, channel, reason, out)
}

func (e *Engine) escalate(sess *session.Session, channel, reason string, out *Outcome) {
	e.metrics.ObserveEscalation(reason, channel)
	e.logger.Warn("conversation escalated",
		"session_id", sess.ID,
		"state", string(sess.State),
		"reason", reason,
		"channel", channel)

	if channel == ChannelVoice {
		out.say(e.phrases.Escalation())
		if e.operator != "" {
			out.dial(e.operator)
		}
		out.hangup()
	} else {
		out.say("I'm having trouble understanding. Please call our front desk to complete your booking.")
	}
	out.DeleteSession = true
}

func (e *Engine) emergency(sess *session.Session, channel string, out *Outcome) {
	e.metrics.ObserveEscalation("emergency", channel)
	e.logger.Warn("emergency reported", "session_id", sess.ID, "channel", channel)

	if channel == ChannelVoice {
		out.say("If this is a medical emergency, please hang up and dial 9 1 1 immediately. Otherwise, I am connecting you with our staff now.")
		if e.operator != "" {
			out.dial(e.operator)
		}
		out.hangup()
	} else {
		out.say("If this is a medical emergency, call 911 immediately. Our staff has been notified and will contact you shortly.")
	}
	sess.Advance(session.StateEmergency)
	out.DeleteSession = true
}

func (e *Engine) externalFailure(sess *session.Session, channel string, out *Outcome, err error) {
	e.logger.Error("external service failure",
		"session_id", sess.ID,
		"state", string(sess.State),
		"error", err.Error())

	out.say(technicalApology)
	if channel == ChannelVoice {
		out.hangup()
	}
	// The session is left in place so a later turn can pick up where the
	// caller left off; the sweep reclaims it otherwise.
}

type followUpIntent int

const (
	intentGeneral followUpIntent = iota
	intentBook
	intentCancel
	intentReschedule
)

// classifyIntent is deliberately shallow token matching; anything subtler
// belongs to the model, not the state machine.
func classifyIntent(input string) followUpIntent {
	in := strings.ToLower(input)
	switch {
	case strings.Contains(in, "reschedule"):
		return intentReschedule
	case strings.Contains(in, "cancel"):
		return intentCancel
	case strings.Contains(in, "book") || strings.Contains(in, "schedule") || strings.Contains(in, "appointment"):
		return intentBook
	}
	return intentGeneral
}

func containsAny(input string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(input, token) {
			return true
		}
	}
	return false
}

func chatHistory(sess *session.Session) []extraction.ChatMessage {
	history := make([]extraction.ChatMessage, 0, len(sess.History))
	for _, turn := range sess.History {
		history = append(history, extraction.ChatMessage{Role: turn.Role, Content: turn.Content})
	}
	return history
}
