package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Amitkumar2801/classroom-quest-game/pkg/events"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/logger"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/metrics"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/retry"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/writer"
)

// Job is one parsed event waiting to be written.
type Job struct {
	Row     writer.StudentRow
	Message events.Message
}

// Committer acknowledges messages once their rows are durable.
type Committer interface {
	Commit(ctx context.Context, msgs ...events.Message) error
}

// WorkerPool batches jobs per worker and writes them to PostgreSQL.
// Every partition is owned by exactly one worker, so a partition's offsets are
// committed in order and never past a row that has not been written.
type WorkerPool struct {
	logger        *logger.Logger
	writer        writer.PostgresWriter
	committer     Committer
	batchSize     int
	flushInterval time.Duration
	writeRetry    retry.Options
	inputs        []chan Job
	wg            sync.WaitGroup
	cancel        context.CancelFunc
}

// Config sizes the pool.
type Config struct {
	Workers       int
	BatchSize     int
	FlushInterval time.Duration
	// WriteRetry bounds attempts per flush; the zero value writes once.
	WriteRetry retry.Options
}

func NewWorkerPool(l *logger.Logger, w writer.PostgresWriter, c Committer, cfg Config) *WorkerPool {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 500 * time.Millisecond
	}
	inputs := make([]chan Job, cfg.Workers)
	for i := range inputs {
		inputs[i] = make(chan Job, 2)
	}
	return &WorkerPool{
		logger:        l.Named("worker"),
		writer:        w,
		committer:     c,
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		writeRetry:    cfg.WriteRetry,
		inputs:        inputs,
	}
}

func (p *WorkerPool) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for i, in := range p.inputs {
		p.wg.Add(1)
		go p.runWorker(workerCtx, i, in)
	}
}

// Submit hands a job to the worker that owns its partition.
func (p *WorkerPool) Submit(ctx context.Context, job Job) error {
	select {
	case p.inputs[p.owner(job.Message.Partition)] <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *WorkerPool) owner(partition int) int {
	if partition < 0 {
		partition = -partition
	}
	return partition % len(p.inputs)
}

// batcher is the state of one worker: the open buffer plus any batch whose
// write failed and must land before anything after it is committed.
type batcher struct {
	buffer *writer.InMemoryBuffer
	held   []writer.Record
}

func (p *WorkerPool) runWorker(ctx context.Context, id int, in <-chan Job) {
	defer p.wg.Done()

	p.logger.Debug("worker started", zap.Int("worker_id", id))

	b := &batcher{buffer: writer.NewInMemoryBuffer(p.batchSize)}
	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case job, ok := <-in:
			if !ok {
				p.flush(context.Background(), b)
				return
			}

			if b.buffer.Add(writer.Record{Row: job.Row, Message: job.Message}) {
				p.flush(ctx, b)
			}

		case <-ticker.C:
			if len(b.held) > 0 || b.buffer.ShouldFlush(p.flushInterval) {
				p.flush(ctx, b)
			}

		case <-ctx.Done():
			p.flush(context.Background(), b)
			return
		}
	}
}

// flush writes the held and buffered rows together and commits their messages.
// A failed write keeps them all held, so nothing later is committed past them.
func (p *WorkerPool) flush(ctx context.Context, b *batcher) {
	batch := append(b.held, b.buffer.Flush()...)
	if len(batch) == 0 {
		return
	}

	rows := writer.Rows(batch)
	err := retry.Do(ctx, func(ctx context.Context) error {
		return p.writer.WriteBatch(ctx, rows)
	}, p.writeRetry)
	if err != nil {
		metrics.MirrorHeldMessages.Add(float64(len(batch) - len(b.held)))
		b.held = batch
		p.logger.Error("failed to write batch, holding it for the next flush", err,
			zap.Int("rows", len(rows)),
			zap.Int("held", len(b.held)))
		return
	}
	metrics.MirrorHeldMessages.Sub(float64(len(b.held)))
	b.held = nil

	if err := p.committer.Commit(ctx, writer.Messages(batch)...); err != nil {
		p.logger.Error("failed to commit offsets", err,
			zap.Int64("first_offset", batch[0].Message.Offset),
			zap.Int("messages", len(batch)))
		return
	}
	metrics.MirrorMessagesCommittedTotal.Add(float64(len(batch)))
}

// Shutdown stops accepting jobs, flushes what is buffered and waits for workers.
func (p *WorkerPool) Shutdown(ctx context.Context) error {
	for _, in := range p.inputs {
		close(in)
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if p.cancel != nil {
			p.cancel()
		}
		return nil
	case <-ctx.Done():
		if p.cancel != nil {
			p.cancel()
		}
		return ctx.Err()
	}
}
