package writer

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/Amitkumar2801/classroom-quest-game/pkg/events"
)

func TestBatchBufferProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("buffer adds records until capacity", prop.ForAll(
		func(cap int) bool {
			b := NewInMemoryBuffer(cap)
			for i := 0; i < cap-1; i++ {
				if b.Add(Record{}) {
					return false
				}
				if b.Size() != i+1 {
					return false
				}
			}
			shouldFlush := b.Add(Record{})
			return shouldFlush && b.Size() == cap
		},
		gen.IntRange(1, 1000),
	))

	properties.Property("buffer is cleared after flush", prop.ForAll(
		func(count int) bool {
			b := NewInMemoryBuffer(1000)
			for i := 0; i < count; i++ {
				b.Add(Record{})
			}

			batch := b.Flush()
			return len(batch) == count && b.Size() == 0
		},
		gen.IntRange(0, 500),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestBufferTimeFlush(t *testing.T) {
	b := NewInMemoryBuffer(100)

	assert.False(t, b.ShouldFlush(100*time.Millisecond))

	b.Add(Record{})
	assert.False(t, b.ShouldFlush(100*time.Millisecond))

	time.Sleep(110 * time.Millisecond)
	assert.True(t, b.ShouldFlush(100*time.Millisecond))
}

func TestBufferZeroCapacity(t *testing.T) {
	b := NewInMemoryBuffer(0)
	assert.True(t, b.Add(Record{}))
}

func TestRowsAndMessages(t *testing.T) {
	batch := []Record{
		{Row: StudentRow{Roll: 1}, Message: events.Message{Offset: 10}},
		{Row: StudentRow{Roll: 2}, Message: events.Message{Offset: 11}},
	}
	rows := Rows(batch)
	msgs := Messages(batch)

	assert.Equal(t, []int64{1, 2}, []int64{rows[0].Roll, rows[1].Roll})
	assert.Equal(t, []int64{10, 11}, []int64{msgs[0].Offset, msgs[1].Offset})
}
