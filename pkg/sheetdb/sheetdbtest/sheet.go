// Package sheetdbtest provides an in-memory sheet that speaks the same wire
// contract as the hosted sheet API.
package sheetdbtest

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/goccy/go-json"

	"github.com/Amitkumar2801/classroom-quest-game/pkg/record"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/sheetdb"
)

// Columns is the sheet header in column order.
var Columns = []string{"Name", "Roll", "Branch", "Session", "Contact", "Score", "Level", "Points", "LastPlayed"}

// Sheet is an http.Handler backed by rows of string cells, like a spreadsheet.
type Sheet struct {
	mu       sync.Mutex
	rows     []map[string]string
	down     bool
	failNext map[string]int
	calls    map[string]int
}

func NewSheet() *Sheet {
	return &Sheet{
		failNext: make(map[string]int),
		calls:    make(map[string]int),
	}
}

// Seed appends records as rows.
func (s *Sheet) Seed(recs ...record.StudentRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range recs {
		s.rows = append(s.rows, map[string]string{
			"Name":       r.Name,
			"Roll":       strconv.FormatInt(r.Roll, 10),
			"Branch":     r.Branch,
			"Session":    r.Session,
			"Contact":    r.Contact,
			"Score":      strconv.FormatInt(r.Score, 10),
			"Level":      strconv.Itoa(r.Level),
			"Points":     strconv.FormatInt(r.Points, 10),
			"LastPlayed": r.LastPlayed,
		})
	}
}

// SeedCells appends a raw row, for cells that do not fit a StudentRecord.
func (s *Sheet) SeedCells(cells map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := make(map[string]string, len(cells))
	for k, v := range cells {
		row[k] = v
	}
	s.rows = append(s.rows, row)
}

// Records decodes the current rows through the same path the client uses.
func (s *Sheet) Records() ([]record.StudentRecord, error) {
	s.mu.Lock()
	data, err := json.Marshal(s.rows)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var rows []sheetdb.Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	out := make([]record.StudentRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.Record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// SetDown makes every request fail with 503 until cleared.
func (s *Sheet) SetDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = down
}

// FailNext makes the next request with the given method answer with status.
func (s *Sheet) FailNext(method string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[method] = status
}

// Calls returns how many requests with the given method were received.
func (s *Sheet) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// TotalCalls returns the number of requests received.
func (s *Sheet) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

func (s *Sheet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls[r.Method]++
	if s.down {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "sheet unavailable"})
		return
	}
	if status, ok := s.failNext[r.Method]; ok {
		delete(s.failNext, r.Method)
		writeJSON(w, status, map[string]string{"error": http.StatusText(status)})
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleRead(w, r)
	case http.MethodPost:
		s.handleInsert(w, r)
	case http.MethodPatch:
		s.handlePatch(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (s *Sheet) handleRead(w http.ResponseWriter, r *http.Request) {
	var field, value string
	if search := r.URL.Query().Get("search"); search != "" {
		var ok bool
		field, value, ok = strings.Cut(search, ":")
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "search must be Field:Value"})
			return
		}
	}
	limit := -1
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}

	out := make([]map[string]string, 0)
	for _, row := range s.rows {
		if field != "" && row[field] != value {
			continue
		}
		if limit >= 0 && len(out) == limit {
			break
		}
		out = append(out, row)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": out})
}

func (s *Sheet) handleInsert(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Data map[string]interface{} `json:"data"`
	}
	if err := decode(r, &req); err != nil || req.Data == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body must be {data: {...}}"})
		return
	}
	row := make(map[string]string, len(Columns))
	for _, col := range Columns {
		if v, ok := req.Data[col]; ok {
			row[col] = cellString(v)
		}
	}
	s.rows = append(s.rows, row)
	writeJSON(w, http.StatusCreated, sheetdb.Confirmation{Created: 1})
}

func (s *Sheet) handlePatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Data   map[string]interface{} `json:"data"`
		Search map[string]interface{} `json:"search"`
	}
	if err := decode(r, &req); err != nil || req.Data == nil || len(req.Search) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body must be {data: {...}, search: {...}}"})
		return
	}

	updated := 0
	for _, row := range s.rows {
		if !matches(row, req.Search) {
			continue
		}
		for k, v := range req.Data {
			row[k] = cellString(v)
		}
		updated++
	}
	writeJSON(w, http.StatusOK, sheetdb.Confirmation{Updated: updated})
}

func matches(row map[string]string, search map[string]interface{}) bool {
	for k, v := range search {
		if row[k] != cellString(v) {
			return false
		}
	}
	return true
}

func decode(r *http.Request, out interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	return dec.Decode(out)
}

func cellString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
