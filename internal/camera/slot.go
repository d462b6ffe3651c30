package camera

import (
	"context"
	"sync"
	"sync/atomic"
)

// LatestSlot hands frames from the capture goroutine to the analysis worker
// keeping only the most recent one. Offering a frame while another is still
// queued releases the queued frame.
type LatestSlot struct {
	mu      sync.Mutex
	frame   *Frame
	closed  bool
	ready   chan struct{}
	done    chan struct{}
	dropped atomic.Uint64
}

// NewLatestSlot creates an empty slot.
func NewLatestSlot() *LatestSlot {
	return &LatestSlot{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Offer queues f, replacing and releasing any frame not yet taken.
// It returns false (and releases f) when the slot is closed.
func (s *LatestSlot) Offer(f *Frame) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		f.Release()
		return false
	}
	old := s.frame
	s.frame = f
	s.mu.Unlock()

	if old != nil {
		old.Release()
		s.dropped.Add(1)
	}

	select {
	case s.ready <- struct{}{}:
	default:
	}
	return true
}

// Take blocks until a frame is available, the slot is closed or ctx is done.
func (s *LatestSlot) Take(ctx context.Context) (*Frame, error) {
	for {
		s.mu.Lock()
		if f := s.frame; f != nil {
			s.frame = nil
			s.mu.Unlock()
			return f, nil
		}
		closed := s.closed
		s.mu.Unlock()

		if closed {
			return nil, ErrStreamClosed
		}

		select {
		case <-s.ready:
		case <-s.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close releases any queued frame and wakes up waiting consumers.
func (s *LatestSlot) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	f := s.frame
	s.frame = nil
	s.mu.Unlock()

	if f != nil {
		f.Release()
	}
	close(s.done)
}

// Dropped returns how many frames were replaced before being taken.
func (s *LatestSlot) Dropped() uint64 {
	return s.dropped.Load()
}
