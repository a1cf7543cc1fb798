// Package parser turns raw player event messages into mirror rows.
package parser

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/Amitkumar2801/classroom-quest-game/pkg/events"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/writer"
)

// ErrMalformedEvent is returned for messages that cannot become a row.
var ErrMalformedEvent = errors.New("malformed player event")

// ParsePlayerEvent decodes and validates a Kafka message value.
func ParsePlayerEvent(data []byte) (writer.StudentRow, error) {
	var ev events.PlayerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return writer.StudentRow{}, fmt.Errorf("%w: failed to unmarshal JSON envelope: %v", ErrMalformedEvent, err)
	}

	switch {
	case ev.ID == "":
		return writer.StudentRow{}, fmt.Errorf("%w: missing event ID", ErrMalformedEvent)
	case !ev.Type.Valid():
		return writer.StudentRow{}, fmt.Errorf("%w: unknown event type %q", ErrMalformedEvent, ev.Type)
	case !ev.Source.Valid():
		return writer.StudentRow{}, fmt.Errorf("%w: unknown event source %q", ErrMalformedEvent, ev.Source)
	case ev.Record.Roll <= 0:
		return writer.StudentRow{}, fmt.Errorf("%w: missing roll", ErrMalformedEvent)
	case ev.OccurredAt.IsZero():
		return writer.StudentRow{}, fmt.Errorf("%w: missing occurred_at", ErrMalformedEvent)
	}

	rec := ev.Record
	return writer.StudentRow{
		Roll:        rec.Roll,
		Name:        rec.Name,
		Branch:      rec.Branch,
		Session:     rec.Session,
		Contact:     rec.Contact,
		Score:       max(rec.Score, 0),
		Level:       max(rec.Level, 1),
		Points:      max(rec.Points, 0),
		LastPlayed:  rec.LastPlayed,
		EventType:   string(ev.Type),
		EventSource: string(ev.Source),
		UpdatedAt:   ev.OccurredAt,
	}, nil
}
