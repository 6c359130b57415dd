// Package audit implements an optional, best-effort audit trail of
// transcribe calls, backed by PostgreSQL. It is write-behind and
// non-blocking by construction: [Logger.Record] never waits on the
// database, so a slow or unreachable audit store cannot add latency to the
// admission path or to inference itself.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Outcome classifies one audited transcribe call.
type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeRejected Outcome = "rejected"
	OutcomeError    Outcome = "error"
)

// Entry is one audited transcribe call.
type Entry struct {
	OccurredAt time.Time
	ModelKey   string
	Outcome    Outcome
	Duration   time.Duration
	Detail     string
}

// Logger writes Entries to PostgreSQL from a single background goroutine
// draining a bounded channel. The zero value is not usable; construct with
// [New].
type Logger struct {
	pool  *pgxpool.Pool
	queue chan Entry
	done  chan struct{}
}

// New connects to dsn, ensures the transcribe_audit_log table exists, and
// starts the background writer. queueSize bounds how many pending entries
// may be buffered before [Logger.Record] starts dropping them; a queueSize
// below 1 selects 256.
func New(ctx context.Context, dsn string, queueSize int) (*Logger, error) {
	if queueSize < 1 {
		queueSize = 256
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("audit: ping: %w", err)
	}

	if _, err := pool.Exec(ctx, ddlAuditLog); err != nil {
		pool.Close()
		return nil, fmt.Errorf("audit: migrate: %w", err)
	}

	l := &Logger{
		pool:  pool,
		queue: make(chan Entry, queueSize),
		done:  make(chan struct{}),
	}
	go l.run()
	return l, nil
}

// Record enqueues entry for write-behind persistence. It never blocks: if
// the queue is full the entry is dropped and a warning is logged, trading
// audit completeness for the admission path's latency guarantees.
func (l *Logger) Record(entry Entry) {
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now()
	}
	select {
	case l.queue <- entry:
	default:
		slog.Warn("audit queue full, dropping entry", "model_key", entry.ModelKey, "outcome", entry.Outcome)
	}
}

// run drains the queue until it is closed, inserting each entry with its
// own short-lived context so one slow write cannot stall the others
// indefinitely.
func (l *Logger) run() {
	defer close(l.done)
	for entry := range l.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := l.insert(ctx, entry); err != nil {
			slog.Warn("audit: failed to persist entry", "err", err, "model_key", entry.ModelKey)
		}
		cancel()
	}
}

func (l *Logger) insert(ctx context.Context, entry Entry) error {
	const q = `
		INSERT INTO transcribe_audit_log (occurred_at, model_key, outcome, duration_ms, detail)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := l.pool.Exec(ctx, q, entry.OccurredAt, entry.ModelKey, string(entry.Outcome), entry.Duration.Milliseconds(), entry.Detail)
	return err
}

// Close stops accepting new entries, waits for the queue to drain, and
// closes the connection pool.
func (l *Logger) Close() error {
	close(l.queue)
	<-l.done
	l.pool.Close()
	return nil
}
