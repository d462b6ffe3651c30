package display

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/jpeg"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"qrscanner/internal/logger"
)

const (
	// maxNotifications bounds the notification history kept in State.
	maxNotifications = 20
	// viewerQueue is how many messages may wait for one viewer before it is
	// dropped as too slow.
	viewerQueue = 16
	// writeWait bounds a single write to a viewer.
	writeWait = 10 * time.Second
)

// ErrStopped is returned by Snapshot once the surface has stopped.
var ErrStopped = errors.New("display surface stopped")

// Duration is how long a notification stays visible.
type Duration int

const (
	Short Duration = iota
	Long
)

func (d Duration) String() string {
	if d == Long {
		return "long"
	}
	return "short"
}

// Notification is a transient message shown to viewers.
type Notification struct {
	Text     string    `json:"text"`
	Duration string    `json:"duration"`
	Error    bool      `json:"error"`
	At       time.Time `json:"at"`
}

// State is everything visible on the surface. It is only ever touched by the
// interactive goroutine; Snapshot returns a copy.
type State struct {
	Label          string         `json:"label"`
	Notifications  []Notification `json:"notifications"`
	Viewers        int            `json:"viewers"`
	FramesRendered uint64         `json:"framesRendered"`
}

// Viewer is a connected display; *websocket.Conn satisfies it. Close must be
// safe to call while a write is in progress.
type Viewer interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// client is a registered viewer with its outgoing queue. Only writePump
// writes to the viewer.
type client struct {
	viewer Viewer
	send   chan []byte
}

type message struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Duration string `json:"duration,omitempty"`
	Error    bool   `json:"error,omitempty"`
	Image    string `json:"image,omitempty"`
}

// Surface owns the visible state and the viewer connections. Run is the
// single interactive goroutine; every other goroutine hands work to it.
type Surface struct {
	tasks      chan func()
	register   chan Viewer
	unregister chan Viewer
	frames     chan []byte
	quit       chan struct{}
	done       chan struct{}
	logger     *logger.Logger

	viewerCount atomic.Int32
	pumps       sync.WaitGroup

	// Owned by Run.
	viewers map[Viewer]*client
	state   State
}

// NewSurface creates a stopped surface; start it with Run.
func NewSurface(logger *logger.Logger) *Surface {
	return &Surface{
		tasks:      make(chan func(), 64),
		register:   make(chan Viewer),
		unregister: make(chan Viewer),
		frames:     make(chan []byte, 1),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger,
		viewers:    make(map[Viewer]*client),
	}
}

// Run processes posted work until Stop is called.
func (s *Surface) Run() {
	defer close(s.done)

	for {
		select {
		case task := <-s.tasks:
			task()

		case viewer := <-s.register:
			c := &client{viewer: viewer, send: make(chan []byte, viewerQueue)}
			s.viewers[viewer] = c
			s.pumps.Add(1)
			go s.writePump(c)
			s.viewerCount.Store(int32(len(s.viewers)))
			s.state.Viewers = len(s.viewers)
			s.logger.Info("Viewer connected. Total: %d", len(s.viewers))
			if s.state.Label != "" {
				s.send(viewer, message{Type: "label", Text: s.state.Label})
			}

		case viewer := <-s.unregister:
			if _, ok := s.viewers[viewer]; ok {
				s.drop(viewer)
				s.logger.Info("Viewer disconnected. Total: %d", len(s.viewers))
			}

		case frame := <-s.frames:
			s.state.FramesRendered++
			s.broadcast(message{Type: "frame", Image: base64.StdEncoding.EncodeToString(frame)})

		case <-s.quit:
			for viewer := range s.viewers {
				s.drop(viewer)
			}
			return
		}
	}
}

// Stop ends Run, disconnects every viewer and waits for their writers.
func (s *Surface) Stop() {
	select {
	case <-s.quit:
	default:
		close(s.quit)
	}
	<-s.done
	s.pumps.Wait()
}

// Post queues fn to run on the interactive goroutine. It reports false when
// the surface has stopped.
func (s *Surface) Post(fn func(*State)) bool {
	select {
	case <-s.quit:
		return false
	default:
	}

	select {
	case s.tasks <- func() { fn(&s.state) }:
		return true
	case <-s.quit:
		return false
	}
}

// Notify shows a transient message.
func (s *Surface) Notify(text string, d Duration) {
	s.notify(text, d, false)
}

// NotifyError shows a transient error message.
func (s *Surface) NotifyError(text string, d Duration) {
	s.notify(text, d, true)
}

func (s *Surface) notify(text string, d Duration, isError bool) {
	s.Post(func(st *State) {
		n := Notification{Text: text, Duration: d.String(), Error: isError, At: time.Now()}
		st.Notifications = append(st.Notifications, n)
		if len(st.Notifications) > maxNotifications {
			st.Notifications = st.Notifications[len(st.Notifications)-maxNotifications:]
		}
		s.broadcast(message{Type: "toast", Text: text, Duration: n.Duration, Error: isError})
	})
}

// SetLabel overwrites the persistent label.
func (s *Surface) SetLabel(text string) {
	s.Post(func(st *State) {
		st.Label = text
		s.broadcast(message{Type: "label", Text: text})
	})
}

// Render publishes a preview frame. Encoding happens on the caller's
// goroutine; only the latest encoded frame is kept for the interactive loop.
func (s *Surface) Render(img image.Image) {
	if s.viewerCount.Load() == 0 {
		return
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 70}); err != nil {
		s.logger.Error("Failed to encode preview frame: %v", err)
		return
	}

	for {
		select {
		case s.frames <- buf.Bytes():
			return
		case <-s.quit:
			return
		default:
		}
		select {
		case <-s.frames:
		default:
		}
	}
}

// Snapshot returns a copy of the visible state.
func (s *Surface) Snapshot(ctx context.Context) (State, error) {
	reply := make(chan State, 1)
	posted := s.Post(func(st *State) {
		cp := *st
		cp.Notifications = append([]Notification(nil), st.Notifications...)
		reply <- cp
	})
	if !posted {
		return State{}, ErrStopped
	}

	select {
	case st := <-reply:
		return st, nil
	case <-s.done:
		return State{}, ErrStopped
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
}

// Register adds a viewer.
func (s *Surface) Register(viewer Viewer) {
	select {
	case s.register <- viewer:
	case <-s.quit:
		viewer.Close()
	}
}

// Unregister removes and closes a viewer.
func (s *Surface) Unregister(viewer Viewer) {
	select {
	case s.unregister <- viewer:
	case <-s.quit:
	}
}

func (s *Surface) broadcast(msg message) {
	for viewer := range s.viewers {
		s.send(viewer, msg)
	}
}

// send queues msg for viewer without blocking; a viewer whose queue is full
// is dropped.
func (s *Surface) send(viewer Viewer, msg message) {
	c, ok := s.viewers[viewer]
	if !ok {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("Error encoding %s message: %v", msg.Type, err)
		return
	}
	select {
	case c.send <- data:
	default:
		s.logger.Warning("Viewer too slow, disconnecting")
		s.drop(viewer)
	}
}

// drop removes the viewer. Closing it unblocks a write in progress.
func (s *Surface) drop(viewer Viewer) {
	c, ok := s.viewers[viewer]
	if !ok {
		return
	}
	delete(s.viewers, viewer)
	close(c.send)
	viewer.Close()
	s.viewerCount.Store(int32(len(s.viewers)))
	s.state.Viewers = len(s.viewers)
}

// writePump writes queued messages to one viewer until its queue is closed.
func (s *Surface) writePump(c *client) {
	defer s.pumps.Done()

	for data := range c.send {
		c.viewer.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.viewer.WriteMessage(websocket.TextMessage, data); err != nil {
			s.logger.Warning("Error sending message: %v", err)
			s.Unregister(c.viewer)
			for range c.send {
			}
			return
		}
	}
}
