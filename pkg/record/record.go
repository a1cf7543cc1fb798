package record

import (
	"errors"
	"fmt"
)

const (
	// ContactNotProvided is stored when the student leaves the contact blank.
	ContactNotProvided = "Not Provided"

	StartLevel = 1
)

// ErrNegativePoints is returned when a score update tries to subtract points.
var ErrNegativePoints = errors.New("points to add must not be negative")

// StudentRecord is one row of the student sheet and the shape of the cached player.
type StudentRecord struct {
	// ID is only set for records created while the remote store was unreachable.
	ID         string `json:"id,omitempty"`
	Name       string `json:"Name"`
	Roll       int64  `json:"Roll"`
	Branch     string `json:"Branch"`
	Session    string `json:"Session"`
	Contact    string `json:"Contact"`
	Score      int64  `json:"Score"`
	Level      int    `json:"Level"`
	Points     int64  `json:"Points"`
	LastPlayed string `json:"LastPlayed"`
}

// Patch holds the subset of columns sent on a partial update. Nil fields are omitted.
type Patch struct {
	Score      *int64 `json:"Score,omitempty"`
	Points     *int64 `json:"Points,omitempty"`
	Level      *int   `json:"Level,omitempty"`
	LastPlayed string `json:"LastPlayed,omitempty"`
}

// NewCandidate builds a fresh record for a registration with zero progress.
func NewCandidate(in RegistrationInput, roll int64, lastPlayed string) StudentRecord {
	contact := in.Contact
	if contact == "" {
		contact = ContactNotProvided
	}
	return StudentRecord{
		Name:       in.Name,
		Roll:       roll,
		Branch:     in.Branch,
		Session:    in.Session,
		Contact:    contact,
		Score:      0,
		Level:      StartLevel,
		Points:     0,
		LastPlayed: lastPlayed,
	}
}

// WithProgressFrom copies Score, Level and Points from an existing record.
func (r StudentRecord) WithProgressFrom(existing StudentRecord) StudentRecord {
	r.Score = existing.Score
	r.Level = existing.Level
	r.Points = existing.Points
	return r
}

// MaxProgress keeps the higher Score, Level and Points of r and other.
func (r StudentRecord) MaxProgress(other StudentRecord) StudentRecord {
	r.Score = max(r.Score, other.Score)
	r.Level = max(r.Level, other.Level)
	r.Points = max(r.Points, other.Points)
	return r
}

// AddScore applies a score-affecting action. Level only moves up when minLevel is
// higher than the current one.
func (r StudentRecord) AddScore(points int64, minLevel *int, lastPlayed string) (StudentRecord, error) {
	if points < 0 {
		return r, fmt.Errorf("%w: %d", ErrNegativePoints, points)
	}
	r.Score += points
	r.Points += points
	if r.Level < StartLevel {
		r.Level = StartLevel
	}
	if minLevel != nil && *minLevel > r.Level {
		r.Level = *minLevel
	}
	r.LastPlayed = lastPlayed
	return r, nil
}

// ProgressPatch returns the columns a score update or sync writes remotely.
func (r StudentRecord) ProgressPatch() Patch {
	score, points, level := r.Score, r.Points, r.Level
	return Patch{
		Score:      &score,
		Points:     &points,
		Level:      &level,
		LastPlayed: r.LastPlayed,
	}
}

// LastPlayedPatch touches only the LastPlayed column.
func LastPlayedPatch(lastPlayed string) Patch {
	return Patch{LastPlayed: lastPlayed}
}

// IsLocal reports whether the record was created by the offline fallback.
func (r StudentRecord) IsLocal() bool {
	return r.ID != ""
}
