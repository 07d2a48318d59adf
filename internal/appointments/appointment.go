package appointments

import "time"

// Appointment source channels.
const (
	SourceWeb   = "web"
	SourceVoice = "voice"
	SourceSMS   = "sms"
)

// Appointment lifecycle statuses.
const (
	StatusPendingConfirmation = "pending-confirmation"
	StatusPending             = "pending"
	StatusConfirmed           = "confirmed"
	StatusCancelled           = "cancelled"
)

// DefaultReason is used when the caller never states why they're coming in.
const DefaultReason = "General consultation"

// SlotDuration is the fixed appointment slot width used for conflict checks.
const SlotDuration = 30 * time.Minute

// Candidate is an unvalidated appointment guess extracted from natural
// language. It is either upgraded to a Request or discarded.
type Candidate struct {
	Doctor string `json:"doctor"`
	Date   string `json:"date"` // MM/DD/YYYY
	Time   string `json:"time"` // H:MM AM/PM
	Reason string `json:"reason,omitempty"`
}

// Request is a validated appointment, ready to commit. It only exists in
// this form after passing availability, working-hours, and conflict checks.
type Request struct {
	Doctor   string    `json:"doctor"` // canonical name
	DoctorID string    `json:"doctor_id"`
	Date     time.Time `json:"date"` // calendar date, midnight UTC
	Time     string    `json:"time"` // "3:04 PM" display form
	StartsAt time.Time `json:"starts_at"`
	Reason   string    `json:"reason"`
	Phone    string    `json:"phone"`
	Source   string    `json:"source"`
	Status   string    `json:"status"`
}

// Appointment is a committed booking.
type Appointment struct {
	ID        string    `json:"id"`
	DoctorID  string    `json:"doctor_id"`
	Doctor    string    `json:"doctor"`
	Phone     string    `json:"phone"`
	StartsAt  time.Time `json:"starts_at"`
	Reason    string    `json:"reason"`
	Source    string    `json:"source"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Active reports whether the appointment still occupies its slot.
func (a *Appointment) Active() bool {
	return a.Status != StatusCancelled
}
