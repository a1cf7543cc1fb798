// Package events carries player flow outcomes over Kafka.
package events

import (
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/Amitkumar2801/classroom-quest-game/pkg/record"
)

// Type is what happened to the player.
type Type string

const (
	TypeRegistered   Type = "registered"
	TypeScoreUpdated Type = "score_updated"
	TypeSynced       Type = "synced"
)

// Source says whether the remote store saw the change.
type Source string

const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
)

// PlayerEvent is published after every registration, score update and sync.
type PlayerEvent struct {
	ID         string               `json:"id"`
	Type       Type                 `json:"type"`
	Source     Source               `json:"source"`
	Record     record.StudentRecord `json:"record"`
	OccurredAt time.Time            `json:"occurred_at"`
}

func NewPlayerEvent(t Type, src Source, rec record.StudentRecord, at time.Time) PlayerEvent {
	return PlayerEvent{
		ID:         uuid.NewString(),
		Type:       t,
		Source:     src,
		Record:     rec,
		OccurredAt: at,
	}
}

// Key is the partition key. Events for one Roll stay ordered.
func (e PlayerEvent) Key() []byte {
	return []byte(strconv.FormatInt(e.Record.Roll, 10))
}

func (e PlayerEvent) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode player event: %w", err)
	}
	return data, nil
}

func (t Type) Valid() bool {
	switch t {
	case TypeRegistered, TypeScoreUpdated, TypeSynced:
		return true
	}
	return false
}

func (s Source) Valid() bool {
	return s == SourceRemote || s == SourceLocal
}
