package audit_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/sttgate/sttgate/internal/audit"
)

// testDSN returns the test database DSN from the environment, or skips the
// test if STTGATE_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("STTGATE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("STTGATE_TEST_POSTGRES_DSN not set — skipping PostgreSQL integration tests")
	}
	return dsn
}

func TestLogger_RecordAndDrain(t *testing.T) {
	dsn := testDSN(t)
	ctx := context.Background()

	l, err := audit.New(ctx, dsn, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })

	l.Record(audit.Entry{
		ModelKey: "base/cpu/float32",
		Outcome:  audit.OutcomeOK,
		Duration: 250 * time.Millisecond,
		Detail:   "ok",
	})

	// Record is fire-and-forget; give the background writer a moment before
	// the deferred Close drains the queue.
	time.Sleep(50 * time.Millisecond)
}

func TestLogger_RecordDoesNotBlockWhenQueueFull(t *testing.T) {
	dsn := testDSN(t)
	ctx := context.Background()

	l, err := audit.New(ctx, dsn, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			l.Record(audit.Entry{ModelKey: "base/cpu/float32", Outcome: audit.OutcomeError, Detail: "flood"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Record blocked under queue pressure")
	}
}
