package file

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileManager provides fixed-size block I/O over a directory of files. It
// is the file-manager collaborator described in spec.md §1: it reads and
// writes whole blocks, reports file length in blocks, and appends new
// blocks.
type FileManager struct {
	dbDirectory string
	blockSize   int
	isNew       bool
	openFiles   map[string]*os.File
	mu          sync.Mutex
}

// NewFileManager opens (creating if necessary) the database directory and
// clears any leftover temp files from a previous run.
func NewFileManager(dbDirectory string, blockSize int) (*FileManager, error) {
	fm := &FileManager{
		dbDirectory: dbDirectory,
		blockSize:   blockSize,
		openFiles:   make(map[string]*os.File),
	}

	info, err := os.Stat(dbDirectory)
	switch {
	case os.IsNotExist(err):
		fm.isNew = true
		if err := os.MkdirAll(dbDirectory, 0o755); err != nil {
			return nil, fmt.Errorf("cannot create directory: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("cannot access directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("%s is not a directory", dbDirectory)
	}

	if !fm.isNew {
		entries, err := os.ReadDir(dbDirectory)
		if err != nil {
			return nil, fmt.Errorf("cannot read directory: %w", err)
		}
		for _, entry := range entries {
			if strings.HasPrefix(entry.Name(), "temp") {
				path := filepath.Join(dbDirectory, entry.Name())
				if err := os.Remove(path); err != nil {
					return nil, fmt.Errorf("cannot remove temporary file %s: %w", path, err)
				}
			}
		}
	}

	return fm, nil
}

// Read loads the specified block into p. A block at or past the end of
// the file reads as all zeros.
func (fm *FileManager) Read(blk BlockID, p *Page) error {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	f, err := fm.getFile(blk.FileName())
	if err != nil {
		return fmt.Errorf("cannot get file: %w", err)
	}

	offset := blk.Number() * int64(fm.blockSize)
	if _, err := f.Seek(offset, 0); err != nil {
		return fmt.Errorf("cannot seek to position: %w", err)
	}

	n, err := f.Read(p.contents)
	if err == io.EOF {
		clear(p.contents)
		return nil
	}
	if err != nil {
		return fmt.Errorf("cannot read block %v: %w", blk, err)
	}
	if n != fm.blockSize {
		return fmt.Errorf("partial read for block %v: got %d bytes, expected %d", blk, n, fm.blockSize)
	}
	return nil
}

// Write persists p at the specified block's position. Callers writing data
// pages must first flush the log up to the page's LSN (buffer.Frame does
// this before every write of a dirty page).
func (fm *FileManager) Write(blk BlockID, p *Page) error {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	f, err := fm.getFile(blk.FileName())
	if err != nil {
		return fmt.Errorf("cannot get file: %w", err)
	}

	offset := blk.Number() * int64(fm.blockSize)
	if _, err := f.Seek(offset, 0); err != nil {
		return fmt.Errorf("cannot seek to position: %w", err)
	}

	n, err := f.Write(p.contents)
	if err != nil {
		return fmt.Errorf("cannot write block %v: %w", blk, err)
	}
	if n != fm.blockSize {
		return fmt.Errorf("partial write for block %v: wrote %d bytes, expected %d", blk, n, fm.blockSize)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("cannot sync file: %w", err)
	}
	return nil
}

// Append adds a new zeroed block to the end of filename and returns its
// BlockID.
func (fm *FileManager) Append(filename string) (BlockID, error) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	length, err := fm.length(filename)
	if err != nil {
		return BlockID{}, err
	}
	blk := NewBlockID(filename, length)

	f, err := fm.getFile(filename)
	if err != nil {
		return BlockID{}, fmt.Errorf("cannot get file: %w", err)
	}

	offset := blk.Number() * int64(fm.blockSize)
	if _, err := f.Seek(offset, 0); err != nil {
		return BlockID{}, fmt.Errorf("cannot seek to position: %w", err)
	}

	empty := make([]byte, fm.blockSize)
	n, err := f.Write(empty)
	if err != nil {
		return BlockID{}, fmt.Errorf("cannot append block %v: %w", blk, err)
	}
	if n != fm.blockSize {
		return BlockID{}, fmt.Errorf("partial write for block %v: wrote %d bytes, expected %d", blk, n, fm.blockSize)
	}
	if err := f.Sync(); err != nil {
		return BlockID{}, fmt.Errorf("cannot sync file: %w", err)
	}
	return blk, nil
}

// Length reports the number of blocks currently in filename.
func (fm *FileManager) Length(filename string) (int64, error) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return fm.length(filename)
}

func (fm *FileManager) length(filename string) (int64, error) {
	f, err := fm.getFile(filename)
	if err != nil {
		return 0, fmt.Errorf("cannot get file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("cannot stat file %s: %w", filename, err)
	}
	return info.Size() / int64(fm.blockSize), nil
}

// getFile returns the cached *os.File for filename, opening (and
// OS-level-locking, see lock_unix.go) it on first use.
func (fm *FileManager) getFile(filename string) (*os.File, error) {
	if f, ok := fm.openFiles[filename]; ok {
		return f, nil
	}

	path := filepath.Join(fm.dbDirectory, filename)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("cannot open file %s: %w", path, err)
	}
	if err := lockFile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("cannot lock file %s: %w", path, err)
	}

	fm.openFiles[filename] = f
	return f, nil
}

// Close releases every open file handle (and its OS-level lock).
func (fm *FileManager) Close() error {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	var lastErr error
	for name, f := range fm.openFiles {
		unlockFile(f)
		if err := f.Close(); err != nil {
			lastErr = fmt.Errorf("error closing %s: %w", name, err)
		}
		delete(fm.openFiles, name)
	}
	return lastErr
}

func (fm *FileManager) IsNew() bool {
	return fm.isNew
}

func (fm *FileManager) BlockSize() int {
	return fm.blockSize
}
