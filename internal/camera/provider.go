package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"qrscanner/internal/logger"
)

// ErrNotBound is returned when stats are requested without an active binding.
var ErrNotBound = errors.New("camera not bound")

// Facing selects which camera to bind.
type Facing string

const (
	FacingFront Facing = "front"
	FacingRear  Facing = "rear"
)

// Selection describes what to bind: the camera and where its preview goes.
type Selection struct {
	Facing       Facing
	Device       int
	Rotation     int
	Preview      PreviewTarget
	PreviewEvery int
}

func (s Selection) String() string {
	return fmt.Sprintf("%s camera (device %d)", s.Facing, s.Device)
}

// Analyzer consumes frames on the analysis worker. It owns each frame it is
// given and must release it on every path.
type Analyzer interface {
	Analyze(frame *Frame)
}

// AnalyzerFunc adapts a function to Analyzer.
type AnalyzerFunc func(frame *Frame)

func (f AnalyzerFunc) Analyze(frame *Frame) { f(frame) }

// OpenFunc opens the capturer for a selection.
type OpenFunc func(sel Selection) (Capturer, error)

// Stats summarizes the current binding.
type Stats struct {
	Selection string
	Captured  uint64
	Dropped   uint64
}

type binding struct {
	selection Selection
	stream    *Stream
	cancel    context.CancelFunc
	done      chan struct{}
}

// Provider binds a camera to an analyzer. Only one binding exists at a time;
// binding again tears the previous one down first.
type Provider struct {
	open        OpenFunc
	maxInFlight int
	logger      *logger.Logger

	mu      sync.Mutex
	current *binding
}

// NewProvider creates a Provider opening capturers with open.
func NewProvider(open OpenFunc, maxInFlight int, logger *logger.Logger) *Provider {
	return &Provider{
		open:        open,
		maxInFlight: maxInFlight,
		logger:      logger,
	}
}

// Bind unbinds everything, opens the selected camera and starts feeding frames
// to analyzer on a single worker goroutine.
func (p *Provider) Bind(ctx context.Context, sel Selection, analyzer Analyzer) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.unbindLocked()

	capturer, err := p.open(sel)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", sel, err)
	}

	stream := NewStream(capturer, StreamOptions{
		MaxInFlight:  p.maxInFlight,
		Rotation:     sel.Rotation,
		Preview:      sel.Preview,
		PreviewEvery: sel.PreviewEvery,
	}, p.logger)

	bindCtx, cancel := context.WithCancel(ctx)
	if err := stream.Start(bindCtx); err != nil {
		cancel()
		stream.Stop()
		return fmt.Errorf("failed to start %s: %w", sel, err)
	}

	b := &binding{
		selection: sel,
		stream:    stream,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go p.analyze(bindCtx, b, analyzer)

	p.current = b
	p.logger.Info("Bound %s", sel)
	return nil
}

// UnbindAll stops the active binding, if any, and waits for its worker.
func (p *Provider) UnbindAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unbindLocked()
}

// Bound reports whether a camera is currently bound.
func (p *Provider) Bound() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil
}

// Stats returns counters of the active binding.
func (p *Provider) Stats() (Stats, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return Stats{}, ErrNotBound
	}
	return Stats{
		Selection: p.current.selection.String(),
		Captured:  p.current.stream.Captured(),
		Dropped:   p.current.stream.Dropped(),
	}, nil
}

func (p *Provider) unbindLocked() {
	b := p.current
	if b == nil {
		return
	}
	p.current = nil

	b.cancel()
	b.stream.Stop()
	<-b.done
	p.logger.Info("Unbound %s", b.selection)
}

// analyze is the single-threaded worker context: frames are analyzed one at a time.
func (p *Provider) analyze(ctx context.Context, b *binding, analyzer Analyzer) {
	defer close(b.done)

	for {
		frame, err := b.stream.Take(ctx)
		if err != nil {
			return
		}
		analyzer.Analyze(frame)
	}
}
