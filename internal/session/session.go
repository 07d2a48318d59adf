// Package session owns per-caller conversational state persisted across
// webhook turns. Sessions are keyed by an opaque id with a secondary lookup
// by caller phone, and expire after a period of inactivity.
package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// State identifies where a session is in the booking dialogue.
type State string

const (
	StateGreeting           State = "greeting"
	StateConfirmIntent      State = "confirm_intent"
	StateCollectDetails     State = "collect_details"
	StateConfirmAppointment State = "confirm_appointment"
	StateFollowUp           State = "follow_up"
	StateCompleted          State = "completed"
	StateEmergency          State = "emergency"
)

// MaxHistory bounds the stored transcript to the most recent turns.
const MaxHistory = 10

// Turn is a single message in the session transcript.
type Turn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Session is the per-caller conversational state.
type Session struct {
	ID        string            `json:"id"`
	Phone     string            `json:"phone"` // digits only
	State     State             `json:"state"`
	Context   map[string]string `json:"context"`
	History   []Turn            `json:"history"`
	Retries   int               `json:"retries"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// New creates a fresh session for a caller in the greeting state.
func New(phone string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        fmt.Sprintf("sess_%s", uuid.NewString()),
		Phone:     NormalizePhone(phone),
		State:     StateGreeting,
		Context:   make(map[string]string),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AppendTurn records a transcript turn, discarding the oldest entries once
// the history exceeds MaxHistory.
func (s *Session) AppendTurn(role, content string) {
	s.History = append(s.History, Turn{Role: role, Content: content})
	if len(s.History) > MaxHistory {
		s.History = s.History[len(s.History)-MaxHistory:]
	}
}

// Advance moves the session to a new state and resets the retry counter.
// The retry ceiling is local to a dialogue segment, not cumulative.
func (s *Session) Advance(next State) {
	if s.State != next {
		s.Retries = 0
	}
	s.State = next
}

// SetContext stores an accumulated slot value.
func (s *Session) SetContext(key, value string) {
	if s.Context == nil {
		s.Context = make(map[string]string)
	}
	s.Context[key] = value
}

// Expired reports whether the session has been inactive longer than ttl.
func (s *Session) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.UpdatedAt) > ttl
}

// NormalizePhone strips phone formatting down to bare digits.
func NormalizePhone(phone string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	return digits.String()
}
