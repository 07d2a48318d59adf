package extraction

import (
	"context"
	"errors"
	"testing"
)

func TestFallbackUsesPrimaryFirst(t *testing.T) {
	primary := &scriptedClient{results: []scriptedResult{{text: "primary"}}}
	fallback := &scriptedClient{results: []scriptedResult{{text: "fallback"}}}
	c := NewFallbackLLMClient(primary, fallback, nil)

	resp, err := c.Complete(context.Background(), LLMRequest{})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if resp.Text != "primary" {
		t.Errorf("expected primary response, got %q", resp.Text)
	}
	if fallback.calls != 0 {
		t.Errorf("fallback should not be called, got %d calls", fallback.calls)
	}
}

func TestFallbackOnPrimaryFailure(t *testing.T) {
	primary := &scriptedClient{results: []scriptedResult{{err: errors.New("bedrock down")}}}
	fallback := &scriptedClient{results: []scriptedResult{{text: "fallback"}}}
	c := NewFallbackLLMClient(primary, fallback, nil)

	resp, err := c.Complete(context.Background(), LLMRequest{})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if resp.Text != "fallback" {
		t.Errorf("expected fallback response, got %q", resp.Text)
	}
}

func TestFallbackWithoutSecondary(t *testing.T) {
	primaryErr := errors.New("bedrock down")
	primary := &scriptedClient{results: []scriptedResult{{err: primaryErr}}}
	c := NewFallbackLLMClient(primary, nil, nil)

	if _, err := c.Complete(context.Background(), LLMRequest{}); !errors.Is(err, primaryErr) {
		t.Fatalf("expected primary error, got %v", err)
	}
}

func TestFallbackBothFail(t *testing.T) {
	fallbackErr := errors.New("gemini down")
	primary := &scriptedClient{results: []scriptedResult{{err: errors.New("bedrock down")}}}
	fallback := &scriptedClient{results: []scriptedResult{{err: fallbackErr}}}
	c := NewFallbackLLMClient(primary, fallback, nil)

	if _, err := c.Complete(context.Background(), LLMRequest{}); !errors.Is(err, fallbackErr) {
		t.Fatalf("expected fallback error surfaced, got %v", err)
	}
}
