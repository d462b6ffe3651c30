package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"qrscanner/internal/camera"
	"qrscanner/internal/logger"
	"qrscanner/internal/permission"
	"qrscanner/internal/service/detector"
	"qrscanner/internal/service/display"
	"qrscanner/internal/service/gate"
	"qrscanner/internal/service/sink"
)

// ErrPermissionDenied is returned by Enter when camera access was refused and
// the screen is configured to close on refusal.
var ErrPermissionDenied = errors.New("camera permission denied")

// PermissionGate reports and requests camera access.
type PermissionGate interface {
	Check() permission.Status
	Request(ctx context.Context) permission.Status
}

// Binder binds a camera to an analyzer; *camera.Provider satisfies it.
type Binder interface {
	Bind(ctx context.Context, sel camera.Selection, analyzer camera.Analyzer) error
	UnbindAll()
	Stats() (camera.Stats, error)
}

// Options configures a Screen.
type Options struct {
	Selection camera.Selection
	// SingleScan accepts one payload per cooldown window and acts only on the
	// first accepted payload of a frame. Otherwise every payload is delivered
	// in order.
	SingleScan bool
	// Cooldown is the SingleScan window; zero or less means gate.DefaultCooldown.
	Cooldown time.Duration
	// ExitOnDenied makes Enter fail when permission is refused instead of
	// leaving the camera inert.
	ExitOnDenied bool
	// Now is the gate clock; nil means time.Now.
	Now func() time.Time
}

// Stats describes the current session.
type Stats struct {
	SessionID    string    `json:"sessionId"`
	Active       bool      `json:"active"`
	Camera       string    `json:"camera"`
	Captured     uint64    `json:"captured"`
	Dropped      uint64    `json:"dropped"`
	Analyzed     uint64    `json:"analyzed"`
	Failed       uint64    `json:"failed"`
	Accepted     uint64    `json:"accepted"`
	LastAccepted time.Time `json:"lastAccepted"`
}

type session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	gate   gate.Gate
}

// Screen wires permission, camera, detector, gate and sink for one scanning
// session at a time.
type Screen struct {
	detector   *detector.Detector
	sink       sink.Sink
	permission PermissionGate
	camera     Binder
	display    sink.Display
	opts       Options
	logger     *logger.Logger

	mu      sync.Mutex
	current *session

	analyzed     atomic.Uint64
	failed       atomic.Uint64
	accepted     atomic.Uint64
	lastAccepted atomic.Int64
}

// NewScreen creates an inactive screen.
func NewScreen(d *detector.Detector, s sink.Sink, perm PermissionGate, cam Binder, disp sink.Display, opts Options, logger *logger.Logger) *Screen {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Screen{
		detector:   d,
		sink:       s,
		permission: perm,
		camera:     cam,
		display:    disp,
		opts:       opts,
		logger:     logger,
	}
}

// Enter starts a fresh session: new gate, permission check and camera bind.
// A refused permission or a failed bind is shown on the display and leaves the
// camera inert; only a refusal with ExitOnDenied is returned as an error.
func (s *Screen) Enter(ctx context.Context) error {
	s.Leave()

	sessCtx, cancel := context.WithCancel(ctx)
	sess := &session{
		id:     uuid.NewString(),
		ctx:    sessCtx,
		cancel: cancel,
		gate:   s.newGate(),
	}

	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()
	s.logger.Info("Scanner session %s started (%s sink)", sess.id, s.sink.Name())

	status := s.permission.Check()
	if status != permission.Granted {
		status = s.permission.Request(sessCtx)
	}
	if status != permission.Granted {
		s.display.NotifyError("Camera permission is required", display.Long)
		if s.opts.ExitOnDenied {
			s.Leave()
			return ErrPermissionDenied
		}
		return nil
	}

	if err := s.camera.Bind(sessCtx, s.opts.Selection, s); err != nil {
		s.logger.Error("Error starting camera: %v", err)
		s.display.NotifyError(fmt.Sprintf("Error starting camera: %v", err), display.Long)
	}
	return nil
}

// Leave unbinds the camera, closes the gate and cancels pending sink work.
func (s *Screen) Leave() {
	s.mu.Lock()
	sess := s.current
	s.current = nil
	s.mu.Unlock()

	if sess == nil {
		return
	}

	s.camera.UnbindAll()
	sess.gate.Close()
	sess.cancel()
	s.logger.Info("Scanner session %s ended", sess.id)
}

// Analyze decodes one frame and passes accepted payloads to the sink. It is
// called on the camera's analysis worker and releases the frame.
func (s *Screen) Analyze(frame *camera.Frame) {
	s.mu.Lock()
	sess := s.current
	s.mu.Unlock()

	if sess == nil {
		frame.Release()
		return
	}

	s.detector.Process(sess.ctx, frame, func(r detector.Result) {
		s.analyzed.Add(1)
		if r.Err != nil {
			s.failed.Add(1)
			return
		}
		s.dispatch(sess, frame, r.Payloads)
	})
}

func (s *Screen) dispatch(sess *session, frame *camera.Frame, payloads []detector.Payload) {
	source := frame.Source
	if source == "" {
		source = s.opts.Selection.String()
	}

	for _, p := range payloads {
		if !sess.gate.TryAccept() {
			continue
		}

		now := s.opts.Now()
		s.accepted.Add(1)
		s.lastAccepted.Store(now.UnixNano())
		s.sink.Deliver(sess.ctx, sink.Accepted{
			Payload:   p,
			SessionID: sess.id,
			Camera:    source,
			At:        now,
		})

		if s.opts.SingleScan {
			return
		}
	}
}

// Stats returns counters of the screen and its camera binding.
func (s *Screen) Stats() Stats {
	s.mu.Lock()
	sess := s.current
	s.mu.Unlock()

	st := Stats{
		Analyzed: s.analyzed.Load(),
		Failed:   s.failed.Load(),
		Accepted: s.accepted.Load(),
	}
	if ns := s.lastAccepted.Load(); ns != 0 {
		st.LastAccepted = time.Unix(0, ns)
	}
	if sess != nil {
		st.SessionID = sess.id
	}
	if cs, err := s.camera.Stats(); err == nil {
		st.Active = true
		st.Camera = cs.Selection
		st.Captured = cs.Captured
		st.Dropped = cs.Dropped
	}
	return st
}

// SessionID returns the id of the active session, empty when inactive.
func (s *Screen) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ""
	}
	return s.current.id
}

func (s *Screen) newGate() gate.Gate {
	if s.opts.SingleScan {
		return gate.NewCooldownWithClock(s.opts.Cooldown, s.opts.Now)
	}
	return &gate.Passthrough{}
}
