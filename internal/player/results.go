package player

import (
	"time"

	"github.com/Amitkumar2801/classroom-quest-game/pkg/record"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/session"
)

// RegistrationResult is the outcome of Register. Degraded results still let the
// player proceed.
type RegistrationResult struct {
	Record record.StudentRecord `json:"record"`
	State  session.State        `json:"state"`
	// Existing is set when the roll was already in the remote store.
	Existing bool `json:"existing"`
	// Degraded is set when the record only reached the local cache.
	Degraded     bool          `json:"degraded"`
	RemoteErr    error         `json:"-"`
	ProceedAfter time.Duration `json:"proceed_after"`
}

// UpdateResult is the outcome of UpdateScore. The cache always holds Record.
type UpdateResult struct {
	Record record.StudentRecord `json:"record"`
	Synced bool                 `json:"synced"`
	// Skipped is set when the remote patch was not attempted because the
	// player is offline or has not reached the store yet.
	Skipped   bool          `json:"skipped"`
	State     session.State `json:"state"`
	RemoteErr error         `json:"-"`
}

// LeaderboardResult is the ranked view shown to players.
type LeaderboardResult struct {
	Success   bool                   `json:"success"`
	Data      []record.StudentRecord `json:"data"`
	Count     *int                   `json:"count,omitempty"`
	Source    string                 `json:"source"`
	Warning   string                 `json:"warning,omitempty"`
	Timestamp string                 `json:"timestamp,omitempty"`
}

// SyncResult is the outcome of Sync. Synced is false whenever flags stay set.
type SyncResult struct {
	Pending   bool          `json:"pending"`
	Synced    bool          `json:"synced"`
	State     session.State `json:"state"`
	RemoteErr error         `json:"-"`
}

// StatusResult describes the cached player, if any.
type StatusResult struct {
	Player *record.StudentRecord `json:"player,omitempty"`
	State  session.State         `json:"state"`
	Phase  session.Phase         `json:"phase"`
}

// Greeting returns the welcome-back line for a returning player.
func (r StatusResult) Greeting() string {
	if r.Player == nil || !r.State.Registered || r.Player.Name == "" {
		return ""
	}
	return "Welcome back, " + r.Player.Name + "!"
}
