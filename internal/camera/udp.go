package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"net"
	"sync"

	"qrscanner/internal/logger"
)

var (
	jpegHeader = []byte{0xFF, 0xD8}
	jpegFooter = []byte{0xFF, 0xD9}
)

// DecodeFunc turns an encoded JPEG into an image and the function releasing it.
type DecodeFunc func(data []byte) (image.Image, func(), error)

const (
	// maxFrameSize caps one reassembled JPEG; a larger partial frame is dropped.
	maxFrameSize = 4 << 20
	// maxSenders caps the partial frames kept at once; the least recently
	// fed one is evicted first.
	maxSenders = 64
)

type partial struct {
	buf     bytes.Buffer
	touched uint64
}

// assembler rebuilds JPEG frames from UDP packets, one buffer per camera.
// A sender gets a buffer only once it sends a JPEG header.
type assembler struct {
	names   map[string]string
	buffers map[string]*partial
	tick    uint64
	dropped uint64
}

func newAssembler(names map[string]string) *assembler {
	if names == nil {
		names = map[string]string{}
	}
	return &assembler{
		names:   names,
		buffers: make(map[string]*partial),
	}
}

// cameraName resolves the sender of a packet to its configured name.
func (a *assembler) cameraName(remoteAddr string) string {
	ip := remoteAddr
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		ip = host
	}
	if name, ok := a.names[ip]; ok {
		return name
	}
	return "unknown_" + ip
}

// feed appends a packet and returns a complete frame once its footer arrives.
// Packets from a sender without a frame in progress are ignored until a header.
func (a *assembler) feed(camera string, data []byte) ([]byte, bool) {
	a.tick++

	p, ok := a.buffers[camera]
	if bytes.HasPrefix(data, jpegHeader) {
		if !ok {
			a.evict()
			p = &partial{}
			a.buffers[camera] = p
		}
		p.buf.Reset()
	} else if !ok {
		return nil, false
	}
	p.touched = a.tick

	if p.buf.Len()+len(data) > maxFrameSize {
		delete(a.buffers, camera)
		a.dropped++
		return nil, false
	}
	p.buf.Write(data)

	if !bytes.HasSuffix(data, jpegFooter) {
		return nil, false
	}

	fullFrame := make([]byte, p.buf.Len())
	copy(fullFrame, p.buf.Bytes())
	p.buf.Reset()
	return fullFrame, true
}

// evict makes room for one more sender.
func (a *assembler) evict() {
	if len(a.buffers) < maxSenders {
		return
	}
	var oldest string
	var oldestTick uint64
	for camera, p := range a.buffers {
		if oldest == "" || p.touched < oldestTick {
			oldest, oldestTick = camera, p.touched
		}
	}
	delete(a.buffers, oldest)
	a.dropped++
}

type encodedFrame struct {
	camera string
	data   []byte
}

// UDPCapturer receives JPEG frames from network cameras. Only the latest
// complete frame is kept; decoding happens on Capture.
type UDPCapturer struct {
	conn    net.PacketConn
	decode  DecodeFunc
	logger  *logger.Logger
	latest  chan encodedFrame
	closed  chan struct{}
	closeMu sync.Once
}

// ListenUDP starts receiving frames on addr (":8081").
func ListenUDP(addr string, names map[string]string, decode DecodeFunc, logger *logger.Logger) (*UDPCapturer, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on UDP %s: %w", addr, err)
	}

	c := &UDPCapturer{
		conn:   conn,
		decode: decode,
		logger: logger,
		latest: make(chan encodedFrame, 1),
		closed: make(chan struct{}),
	}
	go c.receive(newAssembler(names))

	logger.Info("UDP camera source listening on %s", conn.LocalAddr())
	return c, nil
}

// Addr returns the local listening address.
func (c *UDPCapturer) Addr() net.Addr {
	return c.conn.LocalAddr()
}

func (c *UDPCapturer) receive(asm *assembler) {
	buffer := make([]byte, 65535)

	for {
		n, remoteAddr, err := c.conn.ReadFrom(buffer)
		if err != nil {
			select {
			case <-c.closed:
				return
			default:
			}
			c.logger.Error("Error reading UDP packet: %v", err)
			continue
		}

		camera := asm.cameraName(remoteAddr.String())
		dropped := asm.dropped
		data, complete := asm.feed(camera, buffer[:n])
		if asm.dropped != dropped {
			c.logger.Warning("Dropped partial UDP frame (from %s or an idle sender)", camera)
		}
		if !complete {
			continue
		}
		c.push(encodedFrame{camera: camera, data: data})
	}
}

// push stores f, replacing an older frame nobody has taken yet.
func (c *UDPCapturer) push(f encodedFrame) {
	for {
		select {
		case c.latest <- f:
			return
		default:
		}
		select {
		case <-c.latest:
		default:
		}
	}
}

// Capture waits for the next complete frame and decodes it.
func (c *UDPCapturer) Capture(ctx context.Context) (*Frame, error) {
	select {
	case f := <-c.latest:
		img, release, err := c.decode(f.data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode frame from %s: %w", f.camera, err)
		}
		frame := NewFrame(img, release)
		frame.Source = f.camera
		return frame, nil
	case <-c.closed:
		return nil, ErrCapturerClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops receiving.
func (c *UDPCapturer) Close() error {
	var err error
	c.closeMu.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}
