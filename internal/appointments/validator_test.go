package appointments

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// Fixed clock: Monday, December 1, 2025.
func testClock() time.Time {
	return time.Date(2025, time.December, 1, 9, 0, 0, 0, time.UTC)
}

func newTestValidator(t *testing.T) (*Validator, *MemoryRepository) {
	t.Helper()
	repo := NewMemoryRepository(DefaultRoster())
	dir, err := NewDirectory(repo)
	if err != nil {
		t.Fatalf("directory: %v", err)
	}
	return NewValidator(dir, repo, testClock), repo
}

func assertFailure(t *testing.T, err error, kind FailureKind) *ValidationError {
	t.Helper()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Kind != kind {
		t.Fatalf("expected failure %s, got %s (%s)", kind, verr.Kind, verr.Message)
	}
	return verr
}

func TestValidateSuccess(t *testing.T) {
	v, _ := newTestValidator(t)

	// Wednesday, December 3, 2025 is within Dr. Smith's hours.
	req, err := v.Validate(context.Background(), Candidate{
		Doctor: "Dr. Smith",
		Date:   "12/03/2025",
		Time:   "10:00 AM",
	}, "15550100001", SourceVoice)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	if req.Status != StatusPendingConfirmation {
		t.Errorf("expected pending-confirmation status, got %s", req.Status)
	}
	if req.Doctor != "Dr. Smith" {
		t.Errorf("expected canonical doctor name, got %s", req.Doctor)
	}
	if req.Reason != DefaultReason {
		t.Errorf("expected defaulted reason, got %q", req.Reason)
	}
	if req.Source != SourceVoice {
		t.Errorf("expected source from channel, got %s", req.Source)
	}
	if req.StartsAt.Hour() != 10 {
		t.Errorf("expected 10:00 start, got %s", req.StartsAt)
	}
}

func TestValidateDoctorNotFound(t *testing.T) {
	v, _ := newTestValidator(t)

	_, err := v.Validate(context.Background(), Candidate{
		Doctor: "Dr. Nobody",
		Date:   "12/03/2025",
		Time:   "10:00 AM",
	}, "15550100001", SourceVoice)

	verr := assertFailure(t, err, FailureDoctorNotFound)
	for _, name := range []string{"Dr. Smith", "Dr. Johnson", "Dr. Lee"} {
		if !containsName(verr.Message, name) {
			t.Errorf("doctor-not-found message should list %s, got %q", name, verr.Message)
		}
	}
}

func TestValidateFuzzyDoctorMatch(t *testing.T) {
	v, _ := newTestValidator(t)

	// "Dr. Dr. smith" collapses to a single canonical prefix, and partial
	// containment still resolves.
	req, err := v.Validate(context.Background(), Candidate{
		Doctor: "Dr. Dr. smith",
		Date:   "12/03/2025",
		Time:   "10:00 AM",
	}, "15550100001", SourceSMS)
	if err != nil {
		t.Fatalf("expected fuzzy match to succeed, got %v", err)
	}
	if req.Doctor != "Dr. Smith" {
		t.Fatalf("expected canonical name, got %s", req.Doctor)
	}
}

func TestValidateInvalidDate(t *testing.T) {
	v, _ := newTestValidator(t)

	_, err := v.Validate(context.Background(), Candidate{
		Doctor: "Dr. Smith",
		Date:   "Wednesday-ish",
		Time:   "10:00 AM",
	}, "15550100001", SourceVoice)
	assertFailure(t, err, FailureInvalidDate)
}

func TestValidatePastDateAlwaysWins(t *testing.T) {
	v, _ := newTestValidator(t)

	// A past date fails with PastDate even though the time would also be
	// outside working hours. Past-date wins over anything downstream.
	_, err := v.Validate(context.Background(), Candidate{
		Doctor: "Dr. Smith",
		Date:   "11/28/2025",
		Time:   "6:00 AM",
	}, "15550100001", SourceVoice)
	assertFailure(t, err, FailurePastDate)
}

func TestValidateInvalidTime(t *testing.T) {
	v, _ := newTestValidator(t)

	_, err := v.Validate(context.Background(), Candidate{
		Doctor: "Dr. Smith",
		Date:   "12/03/2025",
		Time:   "half past nine",
	}, "15550100001", SourceVoice)
	assertFailure(t, err, FailureInvalidTime)
}

func TestValidateDoctorUnavailableThatDay(t *testing.T) {
	v, _ := newTestValidator(t)

	// Scenario: 12/25/2025 is a Thursday; Dr. Smith works Mon/Wed/Fri.
	// The failure fires even though 9:00 AM is within Wednesday hours.
	_, err := v.Validate(context.Background(), Candidate{
		Doctor: "Dr. Smith",
		Date:   "12/25/2025",
		Time:   "9:00 AM",
	}, "15550100001", SourceVoice)
	verr := assertFailure(t, err, FailureDoctorUnavailable)
	if !containsName(verr.Message, "Thursday") {
		t.Errorf("expected the weekday named in %q", verr.Message)
	}
}

func TestValidateOutsideWorkingHours(t *testing.T) {
	v, _ := newTestValidator(t)

	// Wednesday hours for Dr. Smith are 08:30-16:30; 8:00 AM is too early.
	_, err := v.Validate(context.Background(), Candidate{
		Doctor: "Dr. Smith",
		Date:   "12/03/2025",
		Time:   "8:00 AM",
	}, "15550100001", SourceVoice)
	verr := assertFailure(t, err, FailureOutsideHours)
	if !containsName(verr.Message, "8:30 AM") || !containsName(verr.Message, "4:30 PM") {
		t.Errorf("expected hours reported in %q", verr.Message)
	}
	if !verr.FixableWithNewTime() {
		t.Error("outside-hours should be fixable with a new time")
	}
}

func TestValidateEndBoundary(t *testing.T) {
	repo := NewMemoryRepository([]Doctor{
		{
			ID:            "doc-x",
			Name:          "Dr. Xu",
			AvailableDays: map[time.Weekday]bool{time.Wednesday: true},
			Hours: map[time.Weekday]WorkingHours{
				time.Wednesday: {Start: "09:00", End: "17:00", EndInclusive: true},
			},
		},
		{
			ID:            "doc-y",
			Name:          "Dr. Young",
			AvailableDays: map[time.Weekday]bool{time.Wednesday: true},
			Hours: map[time.Weekday]WorkingHours{
				time.Wednesday: {Start: "09:00", End: "17:00"},
			},
		},
	})
	dir, err := NewDirectory(repo)
	if err != nil {
		t.Fatalf("directory: %v", err)
	}
	v := NewValidator(dir, repo, testClock)

	if _, err := v.Validate(context.Background(), Candidate{
		Doctor: "Dr. Xu", Date: "12/03/2025", Time: "5:00 PM",
	}, "15550100001", SourceVoice); err != nil {
		t.Fatalf("inclusive end boundary should pass: %v", err)
	}

	_, err = v.Validate(context.Background(), Candidate{
		Doctor: "Dr. Young", Date: "12/03/2025", Time: "5:00 PM",
	}, "15550100001", SourceVoice)
	assertFailure(t, err, FailureOutsideHours)
}

func TestValidateSlotConflict(t *testing.T) {
	v, repo := newTestValidator(t)
	ctx := context.Background()

	first, err := v.Validate(ctx, Candidate{
		Doctor: "Dr. Smith", Date: "12/03/2025", Time: "10:00 AM",
	}, "15550100001", SourceVoice)
	if err != nil {
		t.Fatalf("first candidate should validate: %v", err)
	}
	if _, err := repo.CreateAppointment(ctx, first); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	// Overlapping 30-minute window: 10:15 conflicts with 10:00.
	_, err = v.Validate(ctx, Candidate{
		Doctor: "Dr. Smith", Date: "12/03/2025", Time: "10:15 AM",
	}, "15550100002", SourceVoice)
	assertFailure(t, err, FailureSlotConflict)

	// A cancelled appointment frees the slot.
	appts, _ := repo.AppointmentsByPhone(ctx, "15550100001")
	if err := repo.CancelAppointment(ctx, appts[0].ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if _, err := v.Validate(ctx, Candidate{
		Doctor: "Dr. Smith", Date: "12/03/2025", Time: "10:15 AM",
	}, "15550100002", SourceVoice); err != nil {
		t.Fatalf("cancelled appointment must not conflict: %v", err)
	}
}

func TestValidateKeepsStatedReason(t *testing.T) {
	v, _ := newTestValidator(t)

	req, err := v.Validate(context.Background(), Candidate{
		Doctor: "Dr. Lee", Date: "12/02/2025", Time: "11:00 AM", Reason: "chest pain follow-up",
	}, "15550100001", SourceSMS)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if req.Reason != "chest pain follow-up" {
		t.Fatalf("expected stated reason kept, got %q", req.Reason)
	}
}

func containsName(haystack, needle string) bool {
	return strings.Contains(haystack, needle)
}
