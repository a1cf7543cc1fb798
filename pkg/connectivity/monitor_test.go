package connectivity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amitkumar2801/classroom-quest-game/pkg/logger"
)

// scriptedPinger replays a fixed list of results and then repeats the last one.
type scriptedPinger struct {
	mu      sync.Mutex
	results []error
	calls   int
}

func (p *scriptedPinger) Ping(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.calls
	if i >= len(p.results) {
		i = len(p.results) - 1
	}
	p.calls++
	return p.results[i]
}

func (p *scriptedPinger) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func next(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "event channel closed early")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestMonitorEmitsTransitionsOnly(t *testing.T) {
	down := errors.New("connection refused")
	p := &scriptedPinger{results: []error{nil, nil, down, down, nil}}
	m := NewMonitor(p, 5*time.Millisecond, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _ := m.Watch(ctx)

	first := next(t, events)
	assert.True(t, first.Online)
	assert.NoError(t, first.Err)

	second := next(t, events)
	assert.False(t, second.Online)
	assert.ErrorIs(t, second.Err, down)
	assert.GreaterOrEqual(t, p.Calls(), 3)

	third := next(t, events)
	assert.True(t, third.Online)

	// The pinger now stays online, so no further event arrives.
	select {
	case ev := <-events:
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMonitorFirstStateOffline(t *testing.T) {
	p := &scriptedPinger{results: []error{errors.New("timeout")}}
	m := NewMonitor(p, time.Hour, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _ := m.Watch(ctx)

	ev := next(t, events)
	assert.False(t, ev.Online)
	assert.False(t, ev.ObservedAt.IsZero())
}

func TestMonitorStopsOnCancel(t *testing.T) {
	p := &scriptedPinger{results: []error{nil}}
	m := NewMonitor(p, 5*time.Millisecond, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	events, errs := m.Watch(ctx)
	next(t, events)
	cancel()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop")
	}

	for range events {
	}
}

func TestNewMonitorDefaultsInterval(t *testing.T) {
	m := NewMonitor(&scriptedPinger{results: []error{nil}}, 0, logger.NewNop())
	assert.Equal(t, DefaultInterval, m.interval)
}
