package writer

import "time"

// StudentRow is one row of the students reporting table.
type StudentRow struct {
	Roll        int64     `db:"roll"`
	Name        string    `db:"name"`
	Branch      string    `db:"branch"`
	Session     string    `db:"session"`
	Contact     string    `db:"contact"`
	Score       int64     `db:"score"`
	Level       int       `db:"level"`
	Points      int64     `db:"points"`
	LastPlayed  string    `db:"last_played"`
	EventType   string    `db:"event_type"`
	EventSource string    `db:"event_source"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Columns is the column order used by both write paths.
var Columns = []string{
	"roll", "name", "branch", "session", "contact",
	"score", "level", "points", "last_played",
	"event_type", "event_source", "updated_at",
}

func (r StudentRow) values() []interface{} {
	return []interface{}{
		r.Roll, r.Name, r.Branch, r.Session, r.Contact,
		r.Score, r.Level, r.Points, r.LastPlayed,
		r.EventType, r.EventSource, r.UpdatedAt,
	}
}

// Merge folds next into cur the same way the upsert does: progress columns keep
// the maximum, identity columns take next, and the event columns follow
// whichever row is newer.
func Merge(cur, next StudentRow) StudentRow {
	out := next
	out.Score = max(cur.Score, next.Score)
	out.Level = max(cur.Level, next.Level)
	out.Points = max(cur.Points, next.Points)
	if cur.UpdatedAt.After(next.UpdatedAt) {
		out.LastPlayed = cur.LastPlayed
		out.EventType = cur.EventType
		out.EventSource = cur.EventSource
		out.UpdatedAt = cur.UpdatedAt
	}
	return out
}

// Coalesce merges rows that share a Roll, keeping first-seen order. A single
// upsert statement cannot touch the same key twice.
func Coalesce(rows []StudentRow) []StudentRow {
	index := make(map[int64]int, len(rows))
	out := make([]StudentRow, 0, len(rows))
	for _, r := range rows {
		if i, ok := index[r.Roll]; ok {
			out[i] = Merge(out[i], r)
			continue
		}
		index[r.Roll] = len(out)
		out = append(out, r)
	}
	return out
}
