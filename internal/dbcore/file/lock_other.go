//go:build !unix

package file

import "os"

// lockFile is a no-op on non-POSIX platforms; OS-level file locking is a
// best-effort safety net and not load-bearing for correctness within a
// single process.
func lockFile(f *os.File) error {
	return nil
}

func unlockFile(f *os.File) {}
