package extraction

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// scriptedClient returns one canned result per call, in order.
type scriptedClient struct {
	results []scriptedResult
	calls   int
	lastReq LLMRequest
}

type scriptedResult struct {
	text string
	err  error
}

func (s *scriptedClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	s.lastReq = req
	idx := s.calls
	s.calls++
	if idx >= len(s.results) {
		return LLMResponse{}, errors.New("scripted client exhausted")
	}
	r := s.results[idx]
	if r.err != nil {
		return LLMResponse{}, r.err
	}
	return LLMResponse{Text: r.text}, nil
}

func fixedNow() time.Time {
	return time.Date(2025, time.December, 1, 9, 0, 0, 0, time.UTC)
}

func newTestAdapter(client LLMClient) *Adapter {
	return NewAdapter(client, AdapterConfig{
		Model:  "test-model",
		Now:    fixedNow,
		Policy: RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond},
	})
}

func TestExtractStrictJSON(t *testing.T) {
	client := &scriptedClient{results: []scriptedResult{
		{text: `{"doctor": "Dr. Smith", "date": "12/03/2025", "time": "10:00 AM", "reason": "checkup"}`},
	}}
	a := newTestAdapter(client)

	cand, err := a.Extract(context.Background(), "I want to see Dr. Smith Wednesday at 10", nil)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if cand.Doctor != "Dr. Smith" || cand.Date != "12/03/2025" || cand.Time != "10:00 AM" {
		t.Fatalf("unexpected candidate: %+v", cand)
	}
	if cand.Reason != "checkup" {
		t.Errorf("expected reason carried through, got %q", cand.Reason)
	}
}

func TestExtractEmbeddedJSON(t *testing.T) {
	client := &scriptedClient{results: []scriptedResult{
		{text: "Sure, here are the details:\n{\"doctor\": \"Dr. Lee\", \"date\": \"12/02/2025\", \"time\": \"11:00 AM\"}\nLet me know!"},
	}}
	a := newTestAdapter(client)

	cand, err := a.Extract(context.Background(), "book me with lee tomorrow at 11", nil)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if cand.Doctor != "Dr. Lee" {
		t.Fatalf("unexpected candidate: %+v", cand)
	}
}

func TestExtractMissingFields(t *testing.T) {
	client := &scriptedClient{results: []scriptedResult{
		{text: `{"doctor": "Dr. Smith", "reason": "checkup"}`},
	}}
	a := newTestAdapter(client)

	_, err := a.Extract(context.Background(), "see dr smith", nil)
	if !errors.Is(err, ErrParseFailure) {
		t.Fatalf("expected ErrParseFailure, got %v", err)
	}
	if !strings.Contains(err.Error(), "date") || !strings.Contains(err.Error(), "time") {
		t.Errorf("expected missing fields named, got %q", err.Error())
	}
}

func TestExtractNoJSON(t *testing.T) {
	client := &scriptedClient{results: []scriptedResult{
		{text: "I am sorry, I could not understand the request."},
	}}
	a := newTestAdapter(client)

	_, err := a.Extract(context.Background(), "mumble", nil)
	if !errors.Is(err, ErrParseFailure) {
		t.Fatalf("expected ErrParseFailure, got %v", err)
	}
}

func TestExtractRetriesTransientErrors(t *testing.T) {
	client := &scriptedClient{results: []scriptedResult{
		{err: errors.New("connection reset by peer")},
		{err: errors.New("upstream timeout")},
		{text: `{"doctor": "Dr. Smith", "date": "12/03/2025", "time": "10:00 AM"}`},
	}}
	a := newTestAdapter(client)

	cand, err := a.Extract(context.Background(), "smith wednesday 10am", nil)
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if client.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", client.calls)
	}
	if cand.Doctor != "Dr. Smith" {
		t.Errorf("unexpected candidate: %+v", cand)
	}
}

func TestExtractGivesUpAfterRetryBudget(t *testing.T) {
	transient := errors.New("connection reset by peer")
	client := &scriptedClient{results: []scriptedResult{
		{err: transient}, {err: transient}, {err: transient}, {err: transient},
	}}
	a := newTestAdapter(client)

	_, err := a.Extract(context.Background(), "smith wednesday 10am", nil)
	if err == nil {
		t.Fatal("expected failure after retry budget")
	}
	if client.calls != 3 {
		t.Errorf("expected initial call plus 2 retries, got %d calls", client.calls)
	}
}

func TestExtractNeverRetriesRateLimit(t *testing.T) {
	client := &scriptedClient{results: []scriptedResult{
		{err: errors.New("ThrottlingException: too many requests")},
		{text: `{"doctor": "Dr. Smith", "date": "12/03/2025", "time": "10:00 AM"}`},
	}}
	a := newTestAdapter(client)

	_, err := a.Extract(context.Background(), "smith wednesday 10am", nil)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if client.calls != 1 {
		t.Errorf("rate limit must not be retried, got %d calls", client.calls)
	}
}

func TestExtractPromptCarriesRosterAndDate(t *testing.T) {
	client := &scriptedClient{results: []scriptedResult{
		{text: `{"doctor": "Dr. Smith", "date": "12/03/2025", "time": "10:00 AM"}`},
	}}
	a := newTestAdapter(client)

	if _, err := a.Extract(context.Background(), "smith wednesday 10am", nil); err != nil {
		t.Fatalf("extract: %v", err)
	}

	if len(client.lastReq.System) != 1 {
		t.Fatalf("expected one system block, got %d", len(client.lastReq.System))
	}
	system := client.lastReq.System[0]
	for _, want := range []string{
		"Dr. Smith", "Dr. Johnson", "Dr. Lee",
		"Monday, December 1, 2025",
		"MM/DD/YYYY",
	} {
		if !strings.Contains(system, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
}

func TestConverse(t *testing.T) {
	client := &scriptedClient{results: []scriptedResult{
		{text: "Our clinic is open Monday through Friday, 8am to 6pm."},
	}}
	a := newTestAdapter(client)

	history := []ChatMessage{
		{Role: ChatRoleUser, Content: "hi"},
		{Role: ChatRoleAssistant, Content: "Hello! How can I help?"},
	}
	text, err := a.Converse(context.Background(), "when are you open?", "James", history)
	if err != nil {
		t.Fatalf("converse: %v", err)
	}
	if !strings.Contains(text, "open") {
		t.Fatalf("unexpected reply: %q", text)
	}

	if !strings.Contains(client.lastReq.System[0], "James") {
		t.Error("expected patient name in system prompt")
	}
	if len(client.lastReq.Messages) != 3 {
		t.Errorf("expected history plus utterance, got %d messages", len(client.lastReq.Messages))
	}
}

func TestConverseEmptyResponse(t *testing.T) {
	client := &scriptedClient{results: []scriptedResult{{text: "   "}}}
	a := newTestAdapter(client)

	_, err := a.Converse(context.Background(), "hello?", "", nil)
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}
