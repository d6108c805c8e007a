package buffer

import (
	"testing"
	"time"

	"cairndb/internal/dbcore/file"
	"cairndb/internal/dbcore/log"
)

type zeroFormatter struct{}

func (zeroFormatter) Format(p *file.Page) {}

func newTestPool(t *testing.T, numBuffers int) *Pool {
	t.Helper()
	dir := t.TempDir()

	fm, err := file.NewFileManager(dir, 400)
	if err != nil {
		t.Fatalf("NewFileManager: %v", err)
	}
	lm, err := log.NewLogManager(fm, "testlog")
	if err != nil {
		t.Fatalf("NewLogManager: %v", err)
	}
	return NewPool(fm, lm, numBuffers)
}

func TestPoolTryPinNewThenFindExisting(t *testing.T) {
	pool := newTestPool(t, 3)

	f1, err := pool.TryPinNew("data.tbl", zeroFormatter{})
	if err != nil {
		t.Fatalf("TryPinNew: %v", err)
	}
	if f1 == nil {
		t.Fatalf("expected a frame, got nil")
	}
	block := f1.Block()

	f2, err := pool.TryPin(block)
	if err != nil {
		t.Fatalf("TryPin: %v", err)
	}
	if f2 != f1 {
		t.Errorf("expected re-pinning an already-bound block to return the same frame")
	}
}

func TestPoolTryPinExhaustionReturnsNil(t *testing.T) {
	pool := newTestPool(t, 1)

	if _, err := pool.TryPinNew("a.tbl", zeroFormatter{}); err != nil {
		t.Fatalf("TryPinNew: %v", err)
	}
	// The pool's only frame is now pinned and bound to a.tbl block 0.
	f, err := pool.TryPin(file.NewBlockID("b.tbl", 0))
	if err != nil {
		t.Fatalf("TryPin: %v", err)
	}
	if f != nil {
		t.Errorf("expected nil when no frame is free, got a frame")
	}
}

func TestPoolUnpinFreesFrameForReuse(t *testing.T) {
	pool := newTestPool(t, 1)

	f, err := pool.TryPinNew("a.tbl", zeroFormatter{})
	if err != nil {
		t.Fatalf("TryPinNew: %v", err)
	}
	pool.Unpin(f)

	if pool.Available() != 1 {
		t.Fatalf("expected 1 available frame after Unpin, got %d", pool.Available())
	}

	f2, err := pool.TryPin(file.NewBlockID("b.tbl", 0))
	if err != nil {
		t.Fatalf("TryPin: %v", err)
	}
	if f2 == nil {
		t.Fatalf("expected the freed frame to be reusable")
	}
}

func TestPoolPinWaitTimesOutWhenNoFrameFrees(t *testing.T) {
	pool := newTestPool(t, 1)

	if _, err := pool.TryPinNew("a.tbl", zeroFormatter{}); err != nil {
		t.Fatalf("TryPinNew: %v", err)
	}

	start := time.Now()
	f, err := pool.PinWait(file.NewBlockID("b.tbl", 0), 80*time.Millisecond)
	if err != nil {
		t.Fatalf("PinWait: %v", err)
	}
	if f != nil {
		t.Errorf("expected PinWait to time out and return nil")
	}
	if time.Since(start) < 80*time.Millisecond {
		t.Errorf("expected PinWait to wait out the full deadline")
	}
}

func TestPoolPinWaitSucceedsAfterUnpin(t *testing.T) {
	pool := newTestPool(t, 1)

	held, err := pool.TryPinNew("a.tbl", zeroFormatter{})
	if err != nil {
		t.Fatalf("TryPinNew: %v", err)
	}

	done := make(chan *Frame, 1)
	errCh := make(chan error, 1)
	go func() {
		f, err := pool.PinWait(file.NewBlockID("b.tbl", 0), time.Second)
		errCh <- err
		done <- f
	}()

	time.Sleep(30 * time.Millisecond)
	pool.Unpin(held)

	if err := <-errCh; err != nil {
		t.Fatalf("PinWait: %v", err)
	}
	if f := <-done; f == nil {
		t.Errorf("expected PinWait to succeed once the held frame was released")
	}
}

func TestPoolFlushAllOnlyFlushesOwningTx(t *testing.T) {
	pool := newTestPool(t, 2)

	f1, err := pool.TryPinNew("a.tbl", zeroFormatter{})
	if err != nil {
		t.Fatalf("TryPinNew: %v", err)
	}
	f1.SetModified(1, -1)

	f2, err := pool.TryPinNew("b.tbl", zeroFormatter{})
	if err != nil {
		t.Fatalf("TryPinNew: %v", err)
	}
	f2.SetModified(2, -1)

	if err := pool.FlushAll(1); err != nil {
		t.Fatalf("FlushAll: %v", err)
	}
	if f1.ModifyingTx() != -1 {
		t.Errorf("expected tx 1's frame to be clean after FlushAll(1)")
	}
	if f2.ModifyingTx() != 2 {
		t.Errorf("expected tx 2's frame to remain dirty after FlushAll(1)")
	}
}
