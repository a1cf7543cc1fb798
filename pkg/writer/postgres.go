package writer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Amitkumar2801/classroom-quest-game/pkg/logger"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/metrics"
)

// copyThreshold is the batch size from which the COPY path is used.
const copyThreshold = 100

const schema = `
	CREATE TABLE IF NOT EXISTS students (
		roll         BIGINT PRIMARY KEY,
		name         TEXT NOT NULL,
		branch       TEXT NOT NULL,
		session      TEXT NOT NULL,
		contact      TEXT NOT NULL,
		score        BIGINT NOT NULL DEFAULT 0,
		level        INTEGER NOT NULL DEFAULT 1,
		points       BIGINT NOT NULL DEFAULT 0,
		last_played  TEXT NOT NULL DEFAULT '',
		event_type   TEXT NOT NULL,
		event_source TEXT NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL
	)
`

// upsertSet keeps progress monotonic and lets the newest event own the event columns.
const upsertSet = `
	ON CONFLICT (roll) DO UPDATE SET
		name = EXCLUDED.name,
		branch = EXCLUDED.branch,
		session = EXCLUDED.session,
		contact = EXCLUDED.contact,
		score = GREATEST(students.score, EXCLUDED.score),
		level = GREATEST(students.level, EXCLUDED.level),
		points = GREATEST(students.points, EXCLUDED.points),
		last_played = CASE WHEN EXCLUDED.updated_at >= students.updated_at THEN EXCLUDED.last_played ELSE students.last_played END,
		event_type = CASE WHEN EXCLUDED.updated_at >= students.updated_at THEN EXCLUDED.event_type ELSE students.event_type END,
		event_source = CASE WHEN EXCLUDED.updated_at >= students.updated_at THEN EXCLUDED.event_source ELSE students.event_source END,
		updated_at = GREATEST(students.updated_at, EXCLUDED.updated_at)
`

var (
	columnList  = strings.Join(Columns, ", ")
	insertQuery = "INSERT INTO students (" + columnList + ") VALUES (" + placeholders(len(Columns)) + ")" +
		upsertSet + " RETURNING (xmax = 0) AS inserted"
	copyUpsertQuery = "INSERT INTO students (" + columnList + ") SELECT " + columnList + " FROM students_temp" + upsertSet
)

func placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(parts, ", ")
}

// PostgresWriter defines the interface for writing batches to PostgreSQL
type PostgresWriter interface {
	// WriteBatch upserts rows. Rows sharing a Roll are merged first.
	WriteBatch(ctx context.Context, rows []StudentRow) error

	Close() error
}

// PGWriter implements PostgresWriter using pgxpool
type PGWriter struct {
	pool   *pgxpool.Pool
	logger *logger.Logger
}

var _ PostgresWriter = (*PGWriter)(nil)

// PostgresConfig holds database connection settings
type PostgresConfig struct {
	URI      string
	MinConns int32
	MaxConns int32
}

// NewPostgresWriter connects, verifies the connection and ensures the table exists.
func NewPostgresWriter(ctx context.Context, cfg PostgresConfig, l *logger.Logger) (*PGWriter, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URI)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create students table: %w", err)
	}

	return &PGWriter{pool: pool, logger: l.Named("writer")}, nil
}

// WriteBatch writes the rows using the best available protocol
func (w *PGWriter) WriteBatch(ctx context.Context, rows []StudentRow) error {
	rows = Coalesce(rows)
	if len(rows) == 0 {
		return nil
	}

	start := time.Now()
	var err error
	if ShouldUseCopy(rows) {
		err = w.writeBatchCopy(ctx, rows)
	} else {
		err = w.writeBatchInsert(ctx, rows)
	}
	metrics.MirrorUpsertLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.MirrorWriteErrorsTotal.Inc()
		return err
	}
	metrics.MirrorBatchWritesTotal.Inc()
	return nil
}

func (w *PGWriter) writeBatchInsert(ctx context.Context, rows []StudentRow) error {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, r := range rows {
		var inserted bool
		if err := tx.QueryRow(ctx, insertQuery, r.values()...).Scan(&inserted); err != nil {
			return fmt.Errorf("upsert of roll %d failed: %w", r.Roll, err)
		}

		status := "updated"
		if inserted {
			status = "inserted"
		}
		w.logger.Debug("upsert complete", zap.Int64("roll", r.Roll), zap.String("status", status))
	}
	return tx.Commit(ctx)
}

func (w *PGWriter) writeBatchCopy(ctx context.Context, rows []StudentRow) error {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, "CREATE TEMP TABLE students_temp (LIKE students INCLUDING DEFAULTS) ON COMMIT DROP")
	if err != nil {
		return fmt.Errorf("failed to create temp table: %w", err)
	}

	values := make([][]interface{}, len(rows))
	for i, r := range rows {
		values[i] = r.values()
	}

	_, err = tx.CopyFrom(ctx, pgx.Identifier{"students_temp"}, Columns, pgx.CopyFromRows(values))
	if err != nil {
		return fmt.Errorf("copy from failed: %w", err)
	}

	if _, err := tx.Exec(ctx, copyUpsertQuery); err != nil {
		return fmt.Errorf("upsert from temp table failed: %w", err)
	}

	w.logger.Debug("copy upsert complete", zap.Int("rows", len(rows)))
	return tx.Commit(ctx)
}

// Ping checks the database is reachable.
func (w *PGWriter) Ping(ctx context.Context) error {
	return w.pool.Ping(ctx)
}

func (w *PGWriter) Close() error {
	w.pool.Close()
	return nil
}

// ShouldUseCopy reports whether a batch is large enough for the COPY path.
func ShouldUseCopy(rows []StudentRow) bool {
	return len(rows) >= copyThreshold
}
