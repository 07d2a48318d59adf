// Package appointments holds the clinic scheduling domain: the doctor
// roster, appointment records, and the candidate validator that turns an
// extracted utterance into a bookable request.
package appointments

import (
	"context"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// WorkingHours is a doctor's working window for one weekday, "HH:MM" 24-hour.
// EndInclusive controls whether an appointment may start exactly at End.
type WorkingHours struct {
	Start        string `json:"start"`
	End          string `json:"end"`
	EndInclusive bool   `json:"end_inclusive"`
}

// Doctor is read-only reference data for validation.
type Doctor struct {
	ID            string                        `json:"id"`
	Name          string                        `json:"name"` // canonical, "Dr. X" form
	Specialty     string                        `json:"specialty"`
	AvailableDays map[time.Weekday]bool         `json:"available_days"`
	Hours         map[time.Weekday]WorkingHours `json:"hours"`
}

// WorksOn reports whether the doctor takes appointments on the given weekday.
func (d *Doctor) WorksOn(day time.Weekday) bool {
	return d.AvailableDays[day]
}

// DefaultRoster returns the clinic's built-in doctor roster, used when no
// database is configured and as seed data in tests.
func DefaultRoster() []Doctor {
	weekdayHours := func(start, end string) WorkingHours {
		return WorkingHours{Start: start, End: end}
	}
	return []Doctor{
		{
			ID:        "doc-smith",
			Name:      "Dr. Smith",
			Specialty: "Cardiology",
			AvailableDays: map[time.Weekday]bool{
				time.Monday: true, time.Wednesday: true, time.Friday: true,
			},
			Hours: map[time.Weekday]WorkingHours{
				time.Monday:    weekdayHours("08:30", "16:30"),
				time.Wednesday: weekdayHours("08:30", "16:30"),
				time.Friday:    weekdayHours("08:30", "14:00"),
			},
		},
		{
			ID:        "doc-johnson",
			Name:      "Dr. Johnson",
			Specialty: "Pediatrics",
			AvailableDays: map[time.Weekday]bool{
				time.Tuesday: true, time.Thursday: true, time.Saturday: true,
			},
			Hours: map[time.Weekday]WorkingHours{
				time.Tuesday:  weekdayHours("09:00", "17:00"),
				time.Thursday: weekdayHours("09:00", "17:00"),
				time.Saturday: weekdayHours("09:00", "14:00"),
			},
		},
		{
			ID:        "doc-lee",
			Name:      "Dr. Lee",
			Specialty: "General Medicine",
			AvailableDays: map[time.Weekday]bool{
				time.Monday: true, time.Tuesday: true, time.Wednesday: true,
				time.Thursday: true, time.Friday: true,
			},
			Hours: map[time.Weekday]WorkingHours{
				time.Monday:    weekdayHours("08:00", "18:00"),
				time.Tuesday:   weekdayHours("08:00", "18:00"),
				time.Wednesday: weekdayHours("08:00", "18:00"),
				time.Thursday:  weekdayHours("08:00", "18:00"),
				time.Friday:    weekdayHours("08:00", "18:00"),
			},
		},
	}
}

const directoryCacheSize = 64

// Directory resolves fuzzy doctor references against the roster. Lookups go
// through a small LRU so repeated turns in one call don't hammer the
// repository.
type Directory struct {
	repo  Repository
	cache *lru.Cache[string, *Doctor]
}

// NewDirectory creates a doctor directory over a repository.
func NewDirectory(repo Repository) (*Directory, error) {
	cache, err := lru.New[string, *Doctor](directoryCacheSize)
	if err != nil {
		return nil, fmt.Errorf("appointments: directory cache: %w", err)
	}
	return &Directory{repo: repo, cache: cache}, nil
}

// Resolve finds the doctor matching a possibly messy spoken name. The input
// is canonicalized ("dr dr smith" -> "Dr. Smith") and then matched by
// case-insensitive substring containment in either direction.
func (d *Directory) Resolve(ctx context.Context, raw string) (*Doctor, error) {
	name := CanonicalDoctorName(raw)
	if name == "" {
		return nil, nil
	}

	if doc, ok := d.cache.Get(strings.ToLower(name)); ok {
		return doc, nil
	}

	doc, err := d.repo.FindDoctorByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if doc != nil {
		d.cache.Add(strings.ToLower(name), doc)
	}
	return doc, nil
}

// KnownNames lists every doctor name in the roster, for "doctor not found"
// prompts.
func (d *Directory) KnownNames(ctx context.Context) ([]string, error) {
	docs, err := d.repo.ListDoctors(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(docs))
	for _, doc := range docs {
		names = append(names, doc.Name)
	}
	return names, nil
}

// CanonicalDoctorName strips any pile-up of "Dr."-style prefixes, title-cases
// what remains, and re-prefixes a single "Dr. ".
func CanonicalDoctorName(raw string) string {
	name := strings.TrimSpace(raw)
	for {
		lower := strings.ToLower(name)
		switch {
		case strings.HasPrefix(lower, "dr."):
			name = strings.TrimSpace(name[3:])
		case strings.HasPrefix(lower, "dr "):
			name = strings.TrimSpace(name[3:])
		case strings.HasPrefix(lower, "doctor "):
			name = strings.TrimSpace(name[7:])
		default:
			if name == "" {
				return ""
			}
			return "Dr. " + titleCaseWords(name)
		}
	}
}

func titleCaseWords(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// NamesMatch implements the fuzzy containment rule: either name contains the
// other, ignoring case.
func NamesMatch(input, known string) bool {
	a := strings.ToLower(strings.TrimSpace(input))
	b := strings.ToLower(strings.TrimSpace(known))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
