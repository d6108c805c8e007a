//go:build unix

package file

import (
	"os"

	"golang.org/x/sys/unix"
)

// lockFile takes a non-blocking advisory exclusive lock on f, preventing a
// second process from opening the same data directory concurrently. It is
// intentionally process-wide (not per-block): block-level coordination
// within a process is the buffer manager's and concurrency manager's job
// (spec.md §4, §5), not the file manager's.
func lockFile(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
}

func unlockFile(f *os.File) {
	_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
