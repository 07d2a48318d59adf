// Package transcript cleans up raw speech transcripts before extraction.
// Speech recognition reliably mangles doctor names and callers lean on
// relative time phrases; both are rewritten here so the downstream extractor
// sees usable text. The pass is lossy and best-effort: unmatched text flows
// through untouched.
package transcript

import (
	"strings"
	"time"
)

const (
	dateLayout = "01/02/2006"
	timeLayout = "3:04 PM"
)

// doctorCorrections maps known mis-transcriptions to canonical doctor names.
// Matching is case-insensitive exact-substring replacement against the raw
// transcript.
var doctorCorrections = []struct{ from, to string }{
	{"dr. smth", "Dr. Smith"},
	{"dr smth", "Dr. Smith"},
	{"doctor smth", "Dr. Smith"},
	{"dr. smyth", "Dr. Smith"},
	{"dr smyth", "Dr. Smith"},
	{"dr. jonson", "Dr. Johnson"},
	{"dr jonson", "Dr. Johnson"},
	{"dr. jonsen", "Dr. Johnson"},
	{"dr jonsen", "Dr. Johnson"},
	{"dr. johnsen", "Dr. Johnson"},
	{"dr. lea", "Dr. Lee"},
	{"dr lea", "Dr. Lee"},
	{"dr. li", "Dr. Lee"},
	{"dr li", "Dr. Lee"},
}

// Normalizer rewrites common transcription slips. The clock is injectable so
// relative phrases resolve deterministically in tests.
type Normalizer struct {
	now func() time.Time
}

// NewNormalizer creates a normalizer using the wall clock.
func NewNormalizer() *Normalizer {
	return &Normalizer{now: time.Now}
}

// NewNormalizerAt creates a normalizer with a fixed clock for tests.
func NewNormalizerAt(now func() time.Time) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{now: now}
}

// Normalize applies doctor-name corrections, then relative-time resolution.
func (n *Normalizer) Normalize(text string) string {
	text = n.correctDoctorNames(text)
	return n.resolveRelativeTimes(text)
}

func (n *Normalizer) correctDoctorNames(text string) string {
	for _, c := range doctorCorrections {
		text = replaceFold(text, c.from, c.to)
	}
	return text
}

// resolveRelativeTimes swaps relative phrases for absolute MM/DD/YYYY strings
// computed at the moment of replacement.
func (n *Normalizer) resolveRelativeTimes(text string) string {
	now := n.now()
	tomorrow := now.AddDate(0, 0, 1)
	nextWeek := now.AddDate(0, 0, 7)

	replacements := []struct{ from, to string }{
		{"this afternoon", now.Format(dateLayout) + " at 2:00 PM"},
		{"this morning", now.Format(dateLayout) + " at 9:00 AM"},
		{"tomorrow morning", tomorrow.Format(dateLayout) + " at 9:00 AM"},
		{"tomorrow afternoon", tomorrow.Format(dateLayout) + " at 2:00 PM"},
		{"tomorrow", tomorrow.Format(dateLayout)},
		{"next week", nextWeek.Format(dateLayout)},
		{"as soon as possible", tomorrow.Format(dateLayout) + " at 9:00 AM"},
		{"first available", tomorrow.Format(dateLayout) + " at 9:00 AM"},
	}
	for _, r := range replacements {
		text = replaceFold(text, r.from, r.to)
	}
	return text
}

// replaceFold replaces every case-insensitive occurrence of old with new.
func replaceFold(s, old, new string) string {
	if old == "" {
		return s
	}
	lower := strings.ToLower(s)
	oldLower := strings.ToLower(old)

	var b strings.Builder
	for {
		i := strings.Index(lower, oldLower)
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		b.WriteString(new)
		s = s[i+len(old):]
		lower = lower[i+len(old):]
	}
}
