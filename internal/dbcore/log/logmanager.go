// Package log provides the minimal write-ahead-log primitive the buffer
// manager and recovery collaborator need: append a record, flush up to an
// LSN, and iterate records newest-first. Per spec.md's Non-goals, the log
// record *physical format* and *replay/undo algorithm* are out of scope
// here; this package only guarantees durable, ordered append.
package log

import (
	"fmt"
	"sync"

	"cairndb/internal/dbcore/file"
)

// LogManager appends records to a single log file, one block at a time,
// filling each block back-to-front (matching the teacher's layout: a
// 4-byte boundary at offset 0 tracks the start of the earliest record
// still in the block).
type LogManager struct {
	fm           *file.FileManager
	logfile      string
	logpage      *file.Page
	currentBlock file.BlockID
	latestLSN    int64
	lastSavedLSN int64
	mu           sync.Mutex
}

// NewLogManager opens (or creates) logfile within fm's directory.
func NewLogManager(fm *file.FileManager, logfile string) (*LogManager, error) {
	lm := &LogManager{fm: fm, logfile: logfile, logpage: file.NewPage(fm.BlockSize())}

	size, err := fm.Length(logfile)
	if err != nil {
		return nil, fmt.Errorf("error checking log size: %w", err)
	}

	if size == 0 {
		blk, err := lm.appendNewBlock()
		if err != nil {
			return nil, err
		}
		lm.currentBlock = blk
	} else {
		lm.currentBlock = file.NewBlockID(logfile, size-1)
		if err := fm.Read(lm.currentBlock, lm.logpage); err != nil {
			return nil, fmt.Errorf("error reading last block: %w", err)
		}
	}

	return lm, nil
}

// Append writes logrec to the log and returns its assigned LSN.
func (lm *LogManager) Append(logrec []byte) (int64, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	boundary := int(lm.logpage.GetInt(0))
	bytesNeeded := len(logrec) + 4

	if boundary-bytesNeeded < 4 {
		if err := lm.flush(); err != nil {
			return 0, err
		}
		blk, err := lm.appendNewBlock()
		if err != nil {
			return 0, err
		}
		lm.currentBlock = blk
		boundary = int(lm.logpage.GetInt(0))
	}

	recPos := boundary - bytesNeeded
	lm.logpage.SetBytes(recPos, logrec)
	lm.logpage.SetInt(0, int32(recPos))

	lm.latestLSN++
	return lm.latestLSN, nil
}

func (lm *LogManager) appendNewBlock() (file.BlockID, error) {
	blk, err := lm.fm.Append(lm.logfile)
	if err != nil {
		return file.BlockID{}, fmt.Errorf("error appending block: %w", err)
	}
	lm.logpage.SetInt(0, int32(lm.fm.BlockSize()))
	if err := lm.fm.Write(blk, lm.logpage); err != nil {
		return file.BlockID{}, fmt.Errorf("error writing new block: %w", err)
	}
	return blk, nil
}

// Flush guarantees every record up to and including lsn is durable. The
// buffer pool calls this (WAL rule) before writing back any dirty frame
// whose last_lsn is lsn.
func (lm *LogManager) Flush(lsn int64) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if lsn >= lm.lastSavedLSN {
		return lm.flush()
	}
	return nil
}

func (lm *LogManager) flush() error {
	if err := lm.fm.Write(lm.currentBlock, lm.logpage); err != nil {
		return fmt.Errorf("error writing log page: %w", err)
	}
	lm.lastSavedLSN = lm.latestLSN
	return nil
}

// Iterator returns a newest-first iterator over every record currently in
// the log, flushing first so the iterator sees everything appended so far.
func (lm *LogManager) Iterator() (*LogIterator, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if err := lm.flush(); err != nil {
		return nil, err
	}
	return newLogIterator(lm.fm, lm.currentBlock)
}
