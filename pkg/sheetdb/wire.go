package sheetdb

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/Amitkumar2801/classroom-quest-game/pkg/record"
)

// Cell is a numeric spreadsheet cell. The sheet API returns most cells as strings,
// so both "40" and 40 decode; anything unparseable leaves Valid false.
type Cell struct {
	Value int64
	Valid bool
}

func (c *Cell) UnmarshalJSON(b []byte) error {
	*c = Cell{}
	raw := bytes.TrimSpace(b)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
	}
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*c = Cell{Value: n, Valid: true}
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		*c = Cell{Value: int64(f), Valid: true}
	}
	return nil
}

func (c Cell) Or(def int64) int64 {
	if !c.Valid {
		return def
	}
	return c.Value
}

// Text is a text cell that tolerates numeric JSON values.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	raw := bytes.TrimSpace(b)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
		*t = ""
	case raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		*t = Text(s)
	default:
		*t = Text(raw)
	}
	return nil
}

// Row is one sheet row as it arrives on the wire.
type Row struct {
	Name       Text `json:"Name"`
	Roll       Cell `json:"Roll"`
	Branch     Text `json:"Branch"`
	Session    Text `json:"Session"`
	Contact    Text `json:"Contact"`
	Score      Cell `json:"Score"`
	Level      Cell `json:"Level"`
	Points     Cell `json:"Points"`
	LastPlayed Text `json:"LastPlayed"`
}

// Record converts a wire row into a StudentRecord. Rows without a usable Roll are
// rejected; missing progress columns take their starting values.
func (r Row) Record() (record.StudentRecord, error) {
	if !r.Roll.Valid {
		return record.StudentRecord{}, fmt.Errorf("%w: row %q has no valid Roll", ErrMalformedResponse, string(r.Name))
	}
	level := int(r.Level.Or(record.StartLevel))
	if level < record.StartLevel {
		level = record.StartLevel
	}
	return record.StudentRecord{
		Name:       string(r.Name),
		Roll:       r.Roll.Value,
		Branch:     string(r.Branch),
		Session:    string(r.Session),
		Contact:    string(r.Contact),
		Score:      max(r.Score.Or(0), 0),
		Level:      level,
		Points:     max(r.Points.Or(0), 0),
		LastPlayed: string(r.LastPlayed),
	}, nil
}

// insertRow is the column set sent on insert. Local ids never reach the sheet.
type insertRow struct {
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

func newInsertRow(r record.StudentRecord) insertRow {
	return insertRow{
		Name:       r.Name,
		Roll:       r.Roll,
		Branch:     r.Branch,
		Session:    r.Session,
		Contact:    r.Contact,
		Score:      r.Score,
		Level:      r.Level,
		Points:     r.Points,
		LastPlayed: r.LastPlayed,
	}
}

type insertRequest struct {
	Data insertRow `json:"data"`
}

type patchRequest struct {
	Data   record.Patch     `json:"data"`
	Search map[string]int64 `json:"search"`
}

// Confirmation is the write acknowledgement returned by the sheet API.
type Confirmation struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// decodeRows accepts {"data": [...]} and, for plain SheetDB, a bare array.
func decodeRows(body []byte) ([]Row, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedResponse)
	}

	switch trimmed[0] {
	case '[':
		var rows []Row
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		return rows, nil
	case '{':
		var envelope struct {
			Data *[]Row `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		if envelope.Data == nil {
			return nil, fmt.Errorf("%w: missing data field", ErrMalformedResponse)
		}
		return *envelope.Data, nil
	default:
		return nil, fmt.Errorf("%w: unexpected body", ErrMalformedResponse)
	}
}

func decodeConfirmation(body []byte) (Confirmation, error) {
	var conf Confirmation
	if len(bytes.TrimSpace(body)) == 0 {
		return conf, nil
	}
	if err := json.Unmarshal(body, &conf); err != nil {
		return conf, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return conf, nil
}
