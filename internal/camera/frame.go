package camera

import (
	"image"
	"sync"
	"sync/atomic"
	"time"
)

// Frame is one captured image plus orientation metadata. A frame is owned by
// exactly one pipeline stage and must be released once that stage is done with
// it, otherwise the stream that produced it stalls.
type Frame struct {
	Image      image.Image
	Rotation   int // degrees, clockwise
	Seq        uint64
	CapturedAt time.Time
	Source     string

	release  func()
	once     sync.Once
	released atomic.Bool
}

// NewFrame wraps img. release runs exactly once, on the first Release call.
func NewFrame(img image.Image, release func()) *Frame {
	return &Frame{
		Image:      img,
		CapturedAt: time.Now(),
		release:    release,
	}
}

// Release returns the frame's buffer to its producer. Safe to call more than once.
func (f *Frame) Release() {
	f.once.Do(func() {
		f.released.Store(true)
		if f.release != nil {
			f.release()
		}
	})
}

// Released reports whether Release has been called.
func (f *Frame) Released() bool {
	return f.released.Load()
}

// chain appends fn to the frame's release function.
func (f *Frame) chain(fn func()) {
	inner := f.release
	f.release = func() {
		if inner != nil {
			inner()
		}
		fn()
	}
}
