package tx

import (
	"sync"
	"testing"
	"time"

	"cairndb/internal/dbcore/errors"
	"cairndb/internal/dbcore/file"
)

func TestLockTableSharedLocksStack(t *testing.T) {
	lt := NewLockTable()
	block := file.NewBlockID("test.db", 1)

	if err := lt.SLock(block, time.Second); err != nil {
		t.Fatalf("first SLock: %v", err)
	}
	if err := lt.SLock(block, time.Second); err != nil {
		t.Fatalf("second SLock: %v", err)
	}
}

func TestLockTableXLockExcludesSLock(t *testing.T) {
	lt := NewLockTable()
	block := file.NewBlockID("test.db", 2)

	if err := lt.XLock(block, time.Second); err != nil {
		t.Fatalf("XLock: %v", err)
	}

	err := lt.SLock(block, 50*time.Millisecond)
	if !errors.IsLockAbort(err) {
		t.Errorf("expected a lock-abort timeout, got %v", err)
	}
}

func TestLockTableSLockExcludesXLock(t *testing.T) {
	lt := NewLockTable()
	block := file.NewBlockID("test.db", 3)

	if err := lt.SLock(block, time.Second); err != nil {
		t.Fatalf("SLock: %v", err)
	}
	// XLock assumes its caller already holds one shared lock on block, so
	// it takes a second shared holder to keep the exclusive lock out.
	if err := lt.SLock(block, time.Second); err != nil {
		t.Fatalf("second SLock: %v", err)
	}

	err := lt.XLock(block, 50*time.Millisecond)
	if !errors.IsLockAbort(err) {
		t.Errorf("expected a lock-abort timeout, got %v", err)
	}
}

func TestLockTableUnlockWakesWaiter(t *testing.T) {
	lt := NewLockTable()
	block := file.NewBlockID("test.db", 4)

	if err := lt.XLock(block, time.Second); err != nil {
		t.Fatalf("XLock: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- lt.SLock(block, time.Second)
	}()

	time.Sleep(20 * time.Millisecond)
	lt.Unlock(block)

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected waiter's SLock to succeed after Unlock, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter was never woken by Unlock")
	}
}

func TestLockTableConcurrentSharedLocks(t *testing.T) {
	lt := NewLockTable()
	block := file.NewBlockID("test.db", 5)
	const n = 20

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- lt.SLock(block, time.Second)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("concurrent SLock failed: %v", err)
		}
	}
}
