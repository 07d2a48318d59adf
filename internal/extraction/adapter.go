package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/citycare/clinic-assistant/internal/appointments"
	"github.com/citycare/clinic-assistant/internal/observability/metrics"
	"github.com/citycare/clinic-assistant/pkg/logging"
)

// Extraction modes, used as metric labels and for logging.
const (
	ModeAppointment = "voice-appointment"
	ModeGeneral     = "general"
)

const (
	defaultTimeout     = 10 * time.Second
	appointmentMaxTok  = 300
	conversationMaxTok = 300
	modelTemperature   = 0.3
)

// AdapterConfig collects the knobs for an Adapter. Zero values fall back
// to sensible defaults.
type AdapterConfig struct {
	Clinic  Clinic
	Roster  []appointments.Doctor
	Model   string
	Timeout time.Duration
	Policy  RetryPolicy
	Now     func() time.Time
	Logger  *logging.Logger
	Metrics *metrics.ConversationMetrics
}

// Adapter turns patient utterances into structured appointment candidates
// or free-text replies, via the configured LLM.
type Adapter struct {
	llm     LLMClient
	clinic  Clinic
	roster  []appointments.Doctor
	model   string
	timeout time.Duration
	policy  RetryPolicy
	now     func() time.Time
	logger  *logging.Logger
	metrics *metrics.ConversationMetrics
}

// NewAdapter creates an extraction adapter over an LLM client.
func NewAdapter(llm LLMClient, cfg AdapterConfig) *Adapter {
	if llm == nil {
		panic("extraction: llm client cannot be nil")
	}
	if cfg.Clinic == (Clinic{}) {
		cfg.Clinic = DefaultClinic()
	}
	if len(cfg.Roster) == 0 {
		cfg.Roster = appointments.DefaultRoster()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Policy == (RetryPolicy{}) {
		cfg.Policy = DefaultRetryPolicy()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Adapter{
		llm:     llm,
		clinic:  cfg.Clinic,
		roster:  cfg.Roster,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		policy:  cfg.Policy,
		now:     cfg.Now,
		logger:  cfg.Logger.Component("extraction"),
		metrics: cfg.Metrics,
	}
}

// Extract asks the model for strict appointment JSON and parses it into a
// candidate. A response missing any of doctor, date or time fails with
// ErrParseFailure.
func (a *Adapter) Extract(ctx context.Context, utterance string, history []ChatMessage) (appointments.Candidate, error) {
	if strings.TrimSpace(utterance) == "" {
		return appointments.Candidate{}, fmt.Errorf("extraction: empty utterance")
	}

	req := LLMRequest{
		Model:       a.model,
		System:      []string{appointmentSystemPrompt(a.clinic, a.roster, a.now())},
		Messages:    append(trimHistory(history), ChatMessage{Role: ChatRoleUser, Content: utterance}),
		MaxTokens:   appointmentMaxTok,
		Temperature: modelTemperature,
	}

	resp, err := a.complete(ctx, ModeAppointment, req)
	if err != nil {
		return appointments.Candidate{}, err
	}

	cand, err := parseCandidate(resp.Text)
	if err != nil {
		a.logger.Warn("appointment extraction parse failed",
			"error", err.Error(),
			"response_preview", preview(resp.Text))
		return appointments.Candidate{}, err
	}
	return cand, nil
}

// Converse asks the model for a free-text reply in general/follow-up mode.
func (a *Adapter) Converse(ctx context.Context, utterance, patientName string, history []ChatMessage) (string, error) {
	if strings.TrimSpace(utterance) == "" {
		return "", fmt.Errorf("extraction: empty utterance")
	}

	req := LLMRequest{
		Model:       a.model,
		System:      []string{generalSystemPrompt(a.clinic, a.roster, a.now(), patientName)},
		Messages:    append(trimHistory(history), ChatMessage{Role: ChatRoleUser, Content: utterance}),
		MaxTokens:   conversationMaxTok,
		Temperature: modelTemperature,
	}

	resp, err := a.complete(ctx, ModeGeneral, req)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Text) == "" {
		return "", ErrEmptyResponse
	}
	return resp.Text, nil
}

// complete runs the completion with a per-attempt timeout and the retry
// policy. Only transient failures are retried; the parent context aborts
// the backoff wait.
func (a *Adapter) complete(ctx context.Context, mode string, req LLMRequest) (LLMResponse, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, a.timeout)
		start := time.Now()
		resp, err := a.llm.Complete(callCtx, req)
		cancel()

		if err == nil {
			a.metrics.ObserveExtractionLatency(mode, "ok", time.Since(start).Seconds())
			return resp, nil
		}
		a.metrics.ObserveExtractionLatency(mode, "error", time.Since(start).Seconds())

		kind := Classify(err)
		if kind == KindRateLimited {
			a.logger.Warn("model provider rate limited", "mode", mode, "error", err.Error())
			return LLMResponse{}, fmt.Errorf("%w: %s", ErrRateLimited, err)
		}

		lastErr = err
		decision := a.policy.Decide(attempt, kind)
		if !decision.Retry {
			break
		}

		a.logger.Warn("completion failed, retrying",
			"mode", mode,
			"attempt", attempt,
			"delay", decision.Delay.String(),
			"error", err.Error())

		select {
		case <-time.After(decision.Delay):
		case <-ctx.Done():
			return LLMResponse{}, ctx.Err()
		}
	}
	return LLMResponse{}, fmt.Errorf("extraction: completion failed: %w", lastErr)
}

type candidatePayload struct {
	Doctor string `json:"doctor"`
	Date   string `json:"date"`
	Time   string `json:"time"`
	Reason string `json:"reason"`
}

// parseCandidate accepts strict JSON first, then falls back to the first
// JSON object embedded in surrounding prose.
func parseCandidate(text string) (appointments.Candidate, error) {
	var payload candidatePayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		embedded, ok := embeddedObject(text)
		if !ok {
			return appointments.Candidate{}, fmt.Errorf("%w: no JSON object found", ErrParseFailure)
		}
		if err := json.Unmarshal([]byte(embedded), &payload); err != nil {
			return appointments.Candidate{}, fmt.Errorf("%w: %s", ErrParseFailure, err)
		}
	}

	var missing []string
	if strings.TrimSpace(payload.Doctor) == "" {
		missing = append(missing, "doctor")
	}
	if strings.TrimSpace(payload.Date) == "" {
		missing = append(missing, "date")
	}
	if strings.TrimSpace(payload.Time) == "" {
		missing = append(missing, "time")
	}
	if len(missing) > 0 {
		return appointments.Candidate{}, fmt.Errorf("%w: missing %s", ErrParseFailure, strings.Join(missing, ", "))
	}

	return appointments.Candidate{
		Doctor: strings.TrimSpace(payload.Doctor),
		Date:   strings.TrimSpace(payload.Date),
		Time:   strings.TrimSpace(payload.Time),
		Reason: strings.TrimSpace(payload.Reason),
	}, nil
}

// embeddedObject returns the outermost {...} span in the text.
func embeddedObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

func trimHistory(history []ChatMessage) []ChatMessage {
	out := make([]ChatMessage, 0, len(history)+1)
	for _, msg := range history {
		if strings.TrimSpace(msg.Content) == "" || msg.Role == "" {
			continue
		}
		out = append(out, msg)
	}
	return out
}

func preview(s string) string {
	if len(s) > 100 {
		return s[:100]
	}
	return s
}
