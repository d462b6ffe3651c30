package camera

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
)

// fakeCapturer produces blank frames and counts releases.
type fakeCapturer struct {
	mu       sync.Mutex
	closed   bool
	captured atomic.Int64
	released atomic.Int64
	closedCh chan struct{}
}

func newFakeCapturer() *fakeCapturer {
	return &fakeCapturer{closedCh: make(chan struct{})}
}

func (c *fakeCapturer) Capture(ctx context.Context) (*Frame, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, ErrCapturerClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.captured.Add(1)
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	return NewFrame(img, func() { c.released.Add(1) }), nil
}

func (c *fakeCapturer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.closedCh)
	}
	return nil
}
