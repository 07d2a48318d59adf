package transcript

import (
	"strings"
	"testing"
	"time"
)

func fixedClock(t *testing.T) func() time.Time {
	t.Helper()
	// Monday, December 22, 2025.
	at := time.Date(2025, time.December, 22, 10, 30, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func TestNormalizeCorrectsDoctorNames(t *testing.T) {
	n := NewNormalizerAt(fixedClock(t))

	tests := []struct {
		in   string
		want string
	}{
		{"I want to see Dr. Smth on 12/25/2025 at 9:00 AM", "Dr. Smith"},
		{"book me with dr smyth please", "Dr. Smith"},
		{"DR. JONSON next time", "Dr. Johnson"},
		{"an appointment with dr lea", "Dr. Lee"},
	}
	for _, tt := range tests {
		got := n.Normalize(tt.in)
		if !strings.Contains(got, tt.want) {
			t.Errorf("Normalize(%q) = %q, expected it to contain %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeResolvesRelativeTimes(t *testing.T) {
	n := NewNormalizerAt(fixedClock(t))

	tests := []struct {
		in   string
		want string
	}{
		{"can I come in this afternoon", "12/22/2025 at 2:00 PM"},
		{"tomorrow morning works", "12/23/2025 at 9:00 AM"},
		{"maybe next week", "12/29/2025"},
		{"as soon as possible please", "12/23/2025 at 9:00 AM"},
		{"give me the first available slot", "12/23/2025 at 9:00 AM"},
	}
	for _, tt := range tests {
		got := n.Normalize(tt.in)
		if !strings.Contains(got, tt.want) {
			t.Errorf("Normalize(%q) = %q, expected it to contain %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeIsBestEffort(t *testing.T) {
	n := NewNormalizerAt(fixedClock(t))

	in := "Dr. Smith on 12/25/2025 at 9:00 AM"
	if got := n.Normalize(in); got != in {
		t.Fatalf("text without known slips must pass through unchanged, got %q", got)
	}
	if got := n.Normalize(""); got != "" {
		t.Fatalf("empty input must stay empty, got %q", got)
	}
}

func TestNormalizeAppliesNameThenTime(t *testing.T) {
	n := NewNormalizerAt(fixedClock(t))

	got := n.Normalize("dr smth tomorrow morning")
	if !strings.Contains(got, "Dr. Smith") || !strings.Contains(got, "12/23/2025 at 9:00 AM") {
		t.Fatalf("expected both passes applied, got %q", got)
	}
}

func TestReplaceFoldMultipleOccurrences(t *testing.T) {
	got := replaceFold("Dr Smth and dr smth", "dr smth", "Dr. Smith")
	if got != "Dr. Smith and Dr. Smith" {
		t.Fatalf("unexpected replacement: %q", got)
	}
}
