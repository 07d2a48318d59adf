package appointments

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// FailureKind tags the validation failure taxonomy.
type FailureKind string

const (
	FailureDoctorNotFound    FailureKind = "doctor_not_found"
	FailureInvalidDate       FailureKind = "invalid_date"
	FailurePastDate          FailureKind = "past_date"
	FailureInvalidTime       FailureKind = "invalid_time"
	FailureDoctorUnavailable FailureKind = "doctor_unavailable_that_day"
	FailureOutsideHours      FailureKind = "outside_working_hours"
	FailureSlotConflict      FailureKind = "slot_conflict"
)

// ValidationError is a typed validation failure. Message is patient-facing
// and safe to read back verbatim.
type ValidationError struct {
	Kind    FailureKind
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("appointments: validation failed (%s): %s", e.Kind, e.Message)
}

// FixableWithNewTime reports whether the failure names a concrete cause the
// caller can fix by picking a different time. These are surfaced verbatim as
// the retry prompt.
func (e *ValidationError) FixableWithNewTime() bool {
	switch e.Kind {
	case FailureDoctorUnavailable, FailureOutsideHours, FailureSlotConflict:
		return true
	}
	return false
}

const (
	candidateDateLayout = "01/02/2006"
	displayTimeLayout   = "3:04 PM"
)

// Validator checks extracted candidates against the roster, the calendar,
// and existing bookings. It never mutates persisted state; committing the
// booking is a separate step gated by explicit confirmation.
type Validator struct {
	directory *Directory
	repo      Repository
	now       func() time.Time
}

// NewValidator creates a validator. The clock is injectable for tests.
func NewValidator(directory *Directory, repo Repository, now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{directory: directory, repo: repo, now: now}
}

// Validate runs the full pipeline: doctor resolution, date and time parsing,
// day-of-week availability, working hours, and slot conflict. On success the
// returned Request carries status pending-confirmation.
func (v *Validator) Validate(ctx context.Context, cand Candidate, phone, source string) (*Request, error) {
	doctor, err := v.directory.Resolve(ctx, cand.Doctor)
	if err != nil {
		return nil, fmt.Errorf("appointments: resolve doctor: %w", err)
	}
	if doctor == nil {
		names, err := v.directory.KnownNames(ctx)
		if err != nil {
			return nil, fmt.Errorf("appointments: list doctors: %w", err)
		}
		return nil, &ValidationError{
			Kind:    FailureDoctorNotFound,
			Message: fmt.Sprintf("I couldn't find that doctor. Our doctors are: %s.", strings.Join(names, ", ")),
		}
	}

	date, err := time.ParseInLocation(candidateDateLayout, strings.TrimSpace(cand.Date), time.UTC)
	if err != nil {
		return nil, &ValidationError{
			Kind:    FailureInvalidDate,
			Message: "I couldn't understand that date. Please give it as month, day and year.",
		}
	}
	today := v.today()
	if date.Before(today) {
		return nil, &ValidationError{
			Kind:    FailurePastDate,
			Message: "That date has already passed. Please choose today or a future date.",
		}
	}

	clock, err := parseClock(cand.Time)
	if err != nil {
		return nil, &ValidationError{
			Kind:    FailureInvalidTime,
			Message: "I couldn't understand that time. Please say it like nine thirty AM.",
		}
	}
	startsAt := time.Date(date.Year(), date.Month(), date.Day(), clock.Hour(), clock.Minute(), 0, 0, time.UTC)

	if !doctor.WorksOn(date.Weekday()) {
		return nil, &ValidationError{
			Kind: FailureDoctorUnavailable,
			Message: fmt.Sprintf("%s is not available on %ss. Available days: %s.",
				doctor.Name, date.Weekday(), availableDayNames(doctor)),
		}
	}

	if hours, ok := doctor.Hours[date.Weekday()]; ok {
		within, err := withinHours(clock, hours)
		if err != nil {
			return nil, fmt.Errorf("appointments: doctor %s hours: %w", doctor.ID, err)
		}
		if !within {
			return nil, &ValidationError{
				Kind: FailureOutsideHours,
				Message: fmt.Sprintf("%s sees patients on %ss between %s and %s. Please pick a time in that window.",
					doctor.Name, date.Weekday(), displayHour(hours.Start), displayHour(hours.End)),
			}
		}
	}

	conflict, err := v.repo.HasConflict(ctx, doctor.ID, startsAt)
	if err != nil {
		return nil, fmt.Errorf("appointments: conflict check: %w", err)
	}
	if conflict {
		return nil, &ValidationError{
			Kind: FailureSlotConflict,
			Message: fmt.Sprintf("%s already has an appointment around %s on %s. Please suggest a different time.",
				doctor.Name, clock.Format(displayTimeLayout), date.Format(candidateDateLayout)),
		}
	}

	reason := strings.TrimSpace(cand.Reason)
	if reason == "" {
		reason = DefaultReason
	}

	return &Request{
		Doctor:   doctor.Name,
		DoctorID: doctor.ID,
		Date:     date,
		Time:     clock.Format(displayTimeLayout),
		StartsAt: startsAt,
		Reason:   reason,
		Phone:    phone,
		Source:   source,
		Status:   StatusPendingConfirmation,
	}, nil
}

func (v *Validator) today() time.Time {
	now := v.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

var clockLayouts = []string{"3:04 PM", "03:04 PM", "3:04PM", "3 PM", "3PM"}

// parseClock parses a 12-hour time with AM/PM marker.
func parseClock(s string) (time.Time, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(s))
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("appointments: unparseable time %q", s)
}

// withinHours checks [start, end] with the end boundary inclusive or
// exclusive per the doctor's configuration.
func withinHours(clock time.Time, hours WorkingHours) (bool, error) {
	start, err := parseWallClock(hours.Start)
	if err != nil {
		return false, err
	}
	end, err := parseWallClock(hours.End)
	if err != nil {
		return false, err
	}

	t := clock.Hour()*60 + clock.Minute()
	if t < start {
		return false, nil
	}
	if hours.EndInclusive {
		return t <= end, nil
	}
	return t < end, nil
}

// parseWallClock converts "HH:MM" to minutes since midnight.
func parseWallClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("bad wall clock %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func displayHour(s string) string {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return s
	}
	return t.Format(displayTimeLayout)
}

func availableDayNames(d *Doctor) string {
	var names []string
	for day := time.Sunday; day <= time.Saturday; day++ {
		if d.AvailableDays[day] {
			names = append(names, day.String())
		}
	}
	return strings.Join(names, ", ")
}
