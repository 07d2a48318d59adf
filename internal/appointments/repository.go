package appointments

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract the conversation core consumes.
// The core never issues raw queries; it only calls these operations.
type Repository interface {
	FindDoctorByName(ctx context.Context, name string) (*Doctor, error)
	ListDoctors(ctx context.Context) ([]Doctor, error)
	// HasConflict reports whether any non-cancelled appointment for the
	// doctor overlaps the fixed slot anchored at startsAt.
	HasConflict(ctx context.Context, doctorID string, startsAt time.Time) (bool, error)
	CreateAppointment(ctx context.Context, req *Request) (*Appointment, error)
	CancelAppointment(ctx context.Context, id string) error
	AppointmentsByPhone(ctx context.Context, phone string) ([]Appointment, error)
}

// MemoryRepository keeps the roster and bookings in process. It backs
// development runs without a database and most package tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	doctors []Doctor
	booked  []Appointment
}

// NewMemoryRepository creates a repository seeded with the given roster.
func NewMemoryRepository(roster []Doctor) *MemoryRepository {
	return &MemoryRepository{doctors: append([]Doctor(nil), roster...)}
}

func (m *MemoryRepository) FindDoctorByName(ctx context.Context, name string) (*Doctor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.doctors {
		if NamesMatch(name, m.doctors[i].Name) {
			doc := m.doctors[i]
			return &doc, nil
		}
	}
	return nil, nil
}

func (m *MemoryRepository) ListDoctors(ctx context.Context) ([]Doctor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Doctor(nil), m.doctors...), nil
}

func (m *MemoryRepository) HasConflict(ctx context.Context, doctorID string, startsAt time.Time) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.booked {
		a := &m.booked[i]
		if a.DoctorID != doctorID || !a.Active() {
			continue
		}
		if overlaps(a.StartsAt, startsAt) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryRepository) CreateAppointment(ctx context.Context, req *Request) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	appt := Appointment{
		ID:        uuid.NewString(),
		DoctorID:  req.DoctorID,
		Doctor:    req.Doctor,
		Phone:     req.Phone,
		StartsAt:  req.StartsAt,
		Reason:    req.Reason,
		Source:    req.Source,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	m.booked = append(m.booked, appt)
	return &appt, nil
}

func (m *MemoryRepository) CancelAppointment(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.booked {
		if m.booked[i].ID == id {
			m.booked[i].Status = StatusCancelled
			return nil
		}
	}
	return nil
}

func (m *MemoryRepository) AppointmentsByPhone(ctx context.Context, phone string) ([]Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Appointment
	for i := range m.booked {
		if m.booked[i].Phone == phone && m.booked[i].Active() {
			out = append(out, m.booked[i])
		}
	}
	return out, nil
}

// overlaps reports whether two fixed-width slots intersect.
func overlaps(a, b time.Time) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff < SlotDuration
}
