package buffer

import (
	"sync"
	"time"

	"cairndb/internal/dbcore/file"
	"cairndb/internal/dbcore/log"
)

// Pool is the shared, process-wide set of buffer frames (C2). It knows
// nothing about transactions; callers pin/unpin raw blocks and the pool
// hands back whichever frame currently (or newly) holds that block.
//
// This mirrors the teacher's BufferManager except the wait strategy: the
// teacher polls every 100ms (internal/app/buffer/bufferManager.go), which
// wastes CPU and has no fairness guarantee under contention. Pool instead
// keeps a sync.Cond plus an explicit FIFO ticket queue, so waiters are
// served in arrival order (spec.md §5's wait-queue requirement) instead of
// racing each other on every wakeup.
type Pool struct {
	mu         sync.Mutex
	cond       *sync.Cond
	frames     []*Frame
	waitQueue  []uint64
	nextTicket uint64
}

// NewPool allocates numBuffers frames backed by fm/lm.
func NewPool(fm *file.FileManager, lm *log.LogManager, numBuffers int) *Pool {
	p := &Pool{frames: make([]*Frame, numBuffers)}
	for i := range p.frames {
		p.frames[i] = newFrame(fm, lm)
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Size returns the total number of frames in the pool.
func (p *Pool) Size() int {
	return len(p.frames)
}

// Available returns the number of currently unpinned frames.
func (p *Pool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.availableLocked()
}

func (p *Pool) availableLocked() int {
	n := 0
	for _, f := range p.frames {
		if !f.IsPinned() {
			n++
		}
	}
	return n
}

// TryPin attempts, without blocking, to pin block and returns the frame
// holding it, or nil if no frame is available and none already holds the
// block.
func (p *Pool) TryPin(block file.BlockID) (*Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tryPinLocked(block)
}

func (p *Pool) tryPinLocked(block file.BlockID) (*Frame, error) {
	f := p.findExistingFrame(block)
	if f == nil {
		f = p.chooseUnpinnedFrame()
		if f == nil {
			return nil, nil
		}
		if err := f.assignToBlock(block); err != nil {
			return nil, err
		}
	}
	f.pin()
	return f, nil
}

// TryPinNew attempts, without blocking, to append a freshly formatted
// block to filename and pin it.
func (p *Pool) TryPinNew(filename string, fmtr PageFormatter) (*Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tryPinNewLocked(filename, fmtr)
}

func (p *Pool) tryPinNewLocked(filename string, fmtr PageFormatter) (*Frame, error) {
	f := p.chooseUnpinnedFrame()
	if f == nil {
		return nil, nil
	}
	if err := f.assignNew(filename, fmtr); err != nil {
		return nil, err
	}
	f.pin()
	return f, nil
}

// PinWait blocks, in FIFO arrival order against other waiters, until block
// is pinned or maxTime elapses. A nil, nil return means the deadline
// passed with no frame freed; callers surface this as a buffer_abort.
func (p *Pool) PinWait(block file.BlockID, maxTime time.Duration) (*Frame, error) {
	return p.waitAndPin(maxTime, func() (*Frame, error) { return p.tryPinLocked(block) })
}

// PinNewWait is PinWait's pin_new analog.
func (p *Pool) PinNewWait(filename string, fmtr PageFormatter, maxTime time.Duration) (*Frame, error) {
	return p.waitAndPin(maxTime, func() (*Frame, error) { return p.tryPinNewLocked(filename, fmtr) })
}

func (p *Pool) waitAndPin(maxTime time.Duration, try func() (*Frame, error)) (*Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if f, err := try(); err != nil || f != nil {
		return f, err
	}

	ticket := p.enqueue()
	defer p.dequeue(ticket)

	deadline := time.Now().Add(maxTime)
	timer := time.AfterFunc(maxTime, func() {
		p.mu.Lock()
		p.cond.Broadcast()
		p.mu.Unlock()
	})
	defer timer.Stop()

	for {
		p.cond.Wait()
		if !p.isFront(ticket) {
			if time.Now().After(deadline) {
				return nil, nil
			}
			continue
		}
		f, err := try()
		if err != nil {
			return nil, err
		}
		if f != nil {
			return f, nil
		}
		if time.Now().After(deadline) {
			return nil, nil
		}
	}
}

func (p *Pool) enqueue() uint64 {
	p.nextTicket++
	t := p.nextTicket
	p.waitQueue = append(p.waitQueue, t)
	return t
}

func (p *Pool) dequeue(t uint64) {
	for i, v := range p.waitQueue {
		if v == t {
			p.waitQueue = append(p.waitQueue[:i], p.waitQueue[i+1:]...)
			return
		}
	}
}

func (p *Pool) isFront(t uint64) bool {
	return len(p.waitQueue) > 0 && p.waitQueue[0] == t
}

// Unpin releases one pin on f and wakes any waiters, since f may now be
// free for reassignment.
func (p *Pool) Unpin(f *Frame) {
	p.mu.Lock()
	f.unpin()
	if !f.IsPinned() {
		p.cond.Broadcast()
	}
	p.mu.Unlock()
}

// FlushAll flushes every frame last modified by txnum.
func (p *Pool) FlushAll(txnum int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, f := range p.frames {
		if f.ModifyingTx() == txnum {
			if err := f.flush(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Pool) findExistingFrame(block file.BlockID) *Frame {
	for _, f := range p.frames {
		if f.Bound() && f.Block() == block {
			return f
		}
	}
	return nil
}

func (p *Pool) chooseUnpinnedFrame() *Frame {
	for _, f := range p.frames {
		if !f.IsPinned() {
			return f
		}
	}
	return nil
}
