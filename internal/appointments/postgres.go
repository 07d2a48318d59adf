package appointments

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgxQuerier is the subset of pgxpool.Pool the repository needs; pgxmock
// satisfies it in tests.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository persists doctors and appointments in Postgres.
type PostgresRepository struct {
	db pgxQuerier
}

// NewPostgresRepository creates a repository over a pgx pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("appointments: pgx pool cannot be nil")
	}
	return &PostgresRepository{db: pool}
}

// NewPostgresRepositoryWithDB creates a repository over any pgx querier.
// Used by tests to inject pgxmock.
func NewPostgresRepositoryWithDB(db pgxQuerier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindDoctorByName loads the roster and applies the fuzzy containment rule
// in process. The roster is small; keeping the matching in one place avoids
// divergence between SQL pattern matching and the in-memory repository.
func (r *PostgresRepository) FindDoctorByName(ctx context.Context, name string) (*Doctor, error) {
	doctors, err := r.ListDoctors(ctx)
	if err != nil {
		return nil, err
	}
	for i := range doctors {
		if NamesMatch(name, doctors[i].Name) {
			doc := doctors[i]
			return &doc, nil
		}
	}
	return nil, nil
}

func (r *PostgresRepository) ListDoctors(ctx context.Context) ([]Doctor, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, specialty, available_days, working_hours
		FROM doctors
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("appointments: list doctors: %w", err)
	}
	defer rows.Close()

	var doctors []Doctor
	for rows.Next() {
		var (
			doc       Doctor
			daysJSON  []byte
			hoursJSON []byte
		)
		if err := rows.Scan(&doc.ID, &doc.Name, &doc.Specialty, &daysJSON, &hoursJSON); err != nil {
			return nil, fmt.Errorf("appointments: scan doctor: %w", err)
		}
		if err := json.Unmarshal(daysJSON, &doc.AvailableDays); err != nil {
			return nil, fmt.Errorf("appointments: decode available days for %s: %w", doc.ID, err)
		}
		if err := json.Unmarshal(hoursJSON, &doc.Hours); err != nil {
			return nil, fmt.Errorf("appointments: decode working hours for %s: %w", doc.ID, err)
		}
		doctors = append(doctors, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: iterate doctors: %w", err)
	}
	return doctors, nil
}

func (r *PostgresRepository) HasConflict(ctx context.Context, doctorID string, startsAt time.Time) (bool, error) {
	lo := startsAt.Add(-SlotDuration)
	hi := startsAt.Add(SlotDuration)

	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1
			  AND status <> 'cancelled'
			  AND starts_at > $2
			  AND starts_at < $3
		)
	`, doctorID, lo, hi).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("appointments: conflict check: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) CreateAppointment(ctx context.Context, req *Request) (*Appointment, error) {
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

	_, err := r.db.Exec(ctx, `
		INSERT INTO appointments (
			id, doctor_id, doctor_name, phone, starts_at, reason, source, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, appt.ID, appt.DoctorID, appt.Doctor, appt.Phone, appt.StartsAt,
		appt.Reason, appt.Source, appt.Status, appt.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("appointments: create: %w", err)
	}
	return &appt, nil
}

func (r *PostgresRepository) CancelAppointment(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE appointments SET status = 'cancelled' WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("appointments: cancel %s: %w", id, err)
	}
	return nil
}

func (r *PostgresRepository) AppointmentsByPhone(ctx context.Context, phone string) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, doctor_id, doctor_name, phone, starts_at, reason, source, status, created_at
		FROM appointments
		WHERE phone = $1 AND status <> 'cancelled'
		ORDER BY starts_at
	`, phone)
	if err != nil {
		return nil, fmt.Errorf("appointments: by phone: %w", err)
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		var a Appointment
		if err := rows.Scan(&a.ID, &a.DoctorID, &a.Doctor, &a.Phone, &a.StartsAt,
			&a.Reason, &a.Source, &a.Status, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("appointments: scan appointment: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: iterate appointments: %w", err)
	}
	return out, nil
}
