package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"qrscanner/internal/logger"
)

var (
	// ErrStreamClosed is returned once a stream has been stopped. Streams are not restartable.
	ErrStreamClosed = errors.New("camera stream closed")
	// ErrStreamStarted is returned when Start is called twice.
	ErrStreamStarted = errors.New("camera stream already started")
	// ErrNoFrame is a transient capture failure; the stream retries.
	ErrNoFrame = errors.New("no frame available")
	// ErrCapturerClosed is returned by a capturer after Close.
	ErrCapturerClosed = errors.New("capturer closed")
)

// retryDelay is how long the capture loop waits after a transient failure.
const retryDelay = 50 * time.Millisecond

// Capturer produces raw frames from a camera. Capture may block until a frame
// is available; Close must unblock it with ErrCapturerClosed.
type Capturer interface {
	Capture(ctx context.Context) (*Frame, error)
	Close() error
}

// PreviewTarget renders frames of the live feed. Render must not retain img.
type PreviewTarget interface {
	Render(img image.Image)
}

// StreamOptions configures a Stream.
type StreamOptions struct {
	MaxInFlight  int // frames outstanding before capture stalls
	Rotation     int
	Preview      PreviewTarget
	PreviewEvery int // render every Nth frame
}

// Stream is a live, non-restartable sequence of frames from one capturer.
// Frames flow through a LatestSlot; at most MaxInFlight frames may be
// unreleased at any time.
type Stream struct {
	capturer Capturer
	opts     StreamOptions
	slot     *LatestSlot
	inflight chan struct{}
	logger   *logger.Logger

	seq      atomic.Uint64
	captured atomic.Uint64
	started  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// NewStream creates a stream over capturer. It does not start capturing.
func NewStream(capturer Capturer, opts StreamOptions, logger *logger.Logger) *Stream {
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = 3
	}
	if opts.PreviewEvery <= 0 {
		opts.PreviewEvery = 1
	}
	return &Stream{
		capturer: capturer,
		opts:     opts,
		slot:     NewLatestSlot(),
		inflight: make(chan struct{}, opts.MaxInFlight),
		logger:   logger,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the capture goroutine.
func (s *Stream) Start(ctx context.Context) error {
	select {
	case <-s.stopCh:
		return ErrStreamClosed
	default:
	}
	if s.started.Swap(true) {
		return ErrStreamStarted
	}

	go s.run(ctx)
	return nil
}

// Take returns the latest captured frame, blocking until one is available.
// The caller owns the frame and must release it.
func (s *Stream) Take(ctx context.Context) (*Frame, error) {
	return s.slot.Take(ctx)
}

// Stop ends capture, releases the queued frame and closes the capturer.
func (s *Stream) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if err := s.capturer.Close(); err != nil {
			s.logger.Warning("Failed to close capturer: %v", err)
		}
		if s.started.Load() {
			<-s.done
		}
		s.slot.Close()
	})
}

// Captured returns the number of frames produced so far.
func (s *Stream) Captured() uint64 {
	return s.captured.Load()
}

// Dropped returns the number of frames replaced before analysis.
func (s *Stream) Dropped() uint64 {
	return s.slot.Dropped()
}

func (s *Stream) run(ctx context.Context) {
	defer close(s.done)

	for {
		// Wait for a free buffer; stalls while the consumer holds every frame.
		select {
		case s.inflight <- struct{}{}:
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}

		frame, err := s.capturer.Capture(ctx)
		if err != nil {
			<-s.inflight
			if errors.Is(err, ErrCapturerClosed) || ctx.Err() != nil {
				return
			}
			if !errors.Is(err, ErrNoFrame) {
				s.logger.Warning("Capture failed: %v", err)
			}
			select {
			case <-time.After(retryDelay):
				continue
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}

		s.track(frame)

		if s.opts.Preview != nil && frame.Seq%uint64(s.opts.PreviewEvery) == 0 {
			s.opts.Preview.Render(frame.Image)
		}

		s.slot.Offer(frame)
	}
}

// track stamps sequence and rotation and ties the frame to an in-flight token.
func (s *Stream) track(frame *Frame) {
	frame.Seq = s.seq.Add(1)
	frame.Rotation = s.opts.Rotation
	frame.chain(func() { <-s.inflight })
	s.captured.Add(1)
}

func (s *Stream) String() string {
	return fmt.Sprintf("stream(captured=%d dropped=%d)", s.Captured(), s.Dropped())
}
