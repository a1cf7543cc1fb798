// Package connectivity turns periodic remote probes into online/offline signals.
package connectivity

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Amitkumar2801/classroom-quest-game/pkg/logger"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/metrics"
)

const DefaultInterval = 5 * time.Second

// Pinger is anything that can cheaply check it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Event is a connectivity observation. Err holds the probe failure when offline.
type Event struct {
	Online     bool
	Err        error
	ObservedAt time.Time
}

// Watcher emits connectivity events until the context is cancelled.
type Watcher interface {
	Watch(ctx context.Context) (<-chan Event, <-chan error)
}

// Monitor probes a Pinger on a fixed interval. It emits the first observed state
// and afterwards only transitions.
type Monitor struct {
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration
	logger   *logger.Logger
}

var _ Watcher = (*Monitor)(nil)

func NewMonitor(p Pinger, interval time.Duration, l *logger.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		pinger:   p,
		interval: interval,
		timeout:  interval,
		logger:   l.Named("connectivity"),
	}
}

// Watch starts probing. The event channel is closed when ctx is done; the error
// channel is closed alongside it and currently only carries a context error.
func (m *Monitor) Watch(ctx context.Context) (<-chan Event, <-chan error) {
	eventChan := make(chan Event)
	errChan := make(chan error, 1)

	go func() {
		defer close(eventChan)
		defer close(errChan)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		var last *bool
		for {
			ev := m.probe(ctx)
			if ctx.Err() != nil {
				errChan <- ctx.Err()
				return
			}

			if last == nil || *last != ev.Online {
				online := ev.Online
				last = &online
				m.record(ev)

				select {
				case eventChan <- ev:
				case <-ctx.Done():
					errChan <- ctx.Err()
					return
				}
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				errChan <- ctx.Err()
				return
			}
		}
	}()

	return eventChan, errChan
}

func (m *Monitor) probe(ctx context.Context) Event {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := m.pinger.Ping(probeCtx)
	return Event{Online: err == nil, Err: err, ObservedAt: time.Now()}
}

func (m *Monitor) record(ev Event) {
	if ev.Online {
		metrics.ConnectivityTransitionsTotal.WithLabelValues("online").Inc()
		m.logger.Info("remote store reachable")
		return
	}
	metrics.ConnectivityTransitionsTotal.WithLabelValues("offline").Inc()
	m.logger.Warn("remote store unreachable", zap.Error(ev.Err))
}
