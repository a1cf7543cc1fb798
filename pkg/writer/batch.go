package writer

import (
	"sync"
	"time"

	"github.com/Amitkumar2801/classroom-quest-game/pkg/events"
)

// Record pairs a parsed row with the message it came from, for committing.
type Record struct {
	Row     StudentRow
	Message events.Message
}

// BatchBuffer defines the interface for buffering records before a flush
type BatchBuffer interface {
	// Add adds a record to the buffer. Returns true if buffer should be flushed.
	Add(record Record) bool

	// Flush returns all buffered records and clears the buffer
	Flush() []Record

	Size() int

	// ShouldFlush checks if flush conditions are met based on time
	ShouldFlush(interval time.Duration) bool
}

// InMemoryBuffer implements BatchBuffer using a slice
type InMemoryBuffer struct {
	mu        sync.Mutex
	records   []Record
	capacity  int
	lastFlush time.Time
}

func NewInMemoryBuffer(capacity int) *InMemoryBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &InMemoryBuffer{
		records:   make([]Record, 0, capacity),
		capacity:  capacity,
		lastFlush: time.Now(),
	}
}

func (b *InMemoryBuffer) Add(record Record) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.records = append(b.records, record)
	return len(b.records) >= b.capacity
}

func (b *InMemoryBuffer) Flush() []Record {
	b.mu.Lock()
	defer b.mu.Unlock()

	batch := b.records
	b.records = make([]Record, 0, b.capacity)
	b.lastFlush = time.Now()
	return batch
}

func (b *InMemoryBuffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}

// ShouldFlush returns true if the interval has passed since the last flush and
// something is buffered.
func (b *InMemoryBuffer) ShouldFlush(interval time.Duration) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.records) == 0 {
		return false
	}

	return time.Since(b.lastFlush) >= interval
}

// Rows extracts the rows of a flushed batch.
func Rows(batch []Record) []StudentRow {
	rows := make([]StudentRow, len(batch))
	for i, r := range batch {
		rows[i] = r.Row
	}
	return rows
}

// Messages extracts the source messages of a flushed batch.
func Messages(batch []Record) []events.Message {
	msgs := make([]events.Message, len(batch))
	for i, r := range batch {
		msgs[i] = r.Message
	}
	return msgs
}
