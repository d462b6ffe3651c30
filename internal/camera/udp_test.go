package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"net"
	"testing"
	"time"

	"qrscanner/internal/logger"
)

func TestAssembler_ReassemblesFrame(t *testing.T) {
	asm := newAssembler(nil)

	if _, ok := asm.feed("cam", []byte{0xFF, 0xD8, 0x01}); ok {
		t.Fatal("Frame should not be complete after header packet")
	}
	if _, ok := asm.feed("cam", []byte{0x02, 0x03}); ok {
		t.Fatal("Frame should not be complete after middle packet")
	}
	frame, ok := asm.feed("cam", []byte{0x04, 0xFF, 0xD9})
	if !ok {
		t.Fatal("Frame should be complete after footer packet")
	}

	want := []byte{0xFF, 0xD8, 0x01, 0x02, 0x03, 0x04, 0xFF, 0xD9}
	if !bytes.Equal(frame, want) {
		t.Errorf("Got %x, expected %x", frame, want)
	}
}

func TestAssembler_HeaderResetsPartialFrame(t *testing.T) {
	asm := newAssembler(nil)

	asm.feed("cam", []byte{0xFF, 0xD8, 0xAA})
	asm.feed("cam", []byte{0xFF, 0xD8, 0xBB})
	frame, ok := asm.feed("cam", []byte{0xFF, 0xD9})
	if !ok {
		t.Fatal("Expected complete frame")
	}
	if !bytes.Equal(frame, []byte{0xFF, 0xD8, 0xBB, 0xFF, 0xD9}) {
		t.Errorf("Partial frame not discarded: %x", frame)
	}
}

func TestAssembler_DropsOversizedFrame(t *testing.T) {
	asm := newAssembler(nil)

	chunk := make([]byte, 60000)
	asm.feed("cam", append([]byte{0xFF, 0xD8}, chunk...))
	for i := 0; i < 2000; i++ {
		asm.feed("cam", chunk)
		if p, ok := asm.buffers["cam"]; ok && p.buf.Len() > maxFrameSize {
			t.Fatalf("Buffered %d bytes, limit is %d", p.buf.Len(), maxFrameSize)
		}
	}
	if _, ok := asm.feed("cam", []byte{0xFF, 0xD9}); ok {
		t.Error("Oversized frame should not be completed")
	}
	if asm.dropped == 0 {
		t.Error("Expected the oversized frame to be counted as dropped")
	}

	// The sender recovers on its next header.
	asm.feed("cam", []byte{0xFF, 0xD8, 0x01})
	if _, ok := asm.feed("cam", []byte{0xFF, 0xD9}); !ok {
		t.Error("Expected a normal frame after the oversized one")
	}
}

func TestAssembler_BoundsSenders(t *testing.T) {
	asm := newAssembler(nil)

	for i := 0; i < 5000; i++ {
		asm.feed(fmt.Sprintf("unknown_10.0.%d.%d", i/256, i%256), []byte{0xFF, 0xD8, 0x01})
	}
	if len(asm.buffers) > maxSenders {
		t.Errorf("Tracking %d senders, limit is %d", len(asm.buffers), maxSenders)
	}

	// Packets without a header never allocate a buffer.
	asm = newAssembler(nil)
	for i := 0; i < 100; i++ {
		asm.feed(fmt.Sprintf("unknown_%d", i), []byte{0x01, 0x02})
	}
	if len(asm.buffers) != 0 {
		t.Errorf("Expected no buffers for headerless senders, got %d", len(asm.buffers))
	}
}

func TestAssembler_EvictsLeastRecentSender(t *testing.T) {
	asm := newAssembler(nil)

	asm.feed("door", []byte{0xFF, 0xD8, 0x01})
	for i := 0; i < maxSenders-1; i++ {
		asm.feed(fmt.Sprintf("other_%d", i), []byte{0xFF, 0xD8})
	}
	// Keep door fresh, then push one more sender in.
	asm.feed("door", []byte{0x02})
	asm.feed("late", []byte{0xFF, 0xD8})

	if _, ok := asm.buffers["door"]; !ok {
		t.Fatal("Recently fed sender should not be evicted")
	}
	if _, ok := asm.buffers["other_0"]; ok {
		t.Error("Least recently fed sender should be evicted")
	}
	frame, ok := asm.feed("door", []byte{0xFF, 0xD9})
	if !ok || !bytes.Equal(frame, []byte{0xFF, 0xD8, 0x01, 0x02, 0xFF, 0xD9}) {
		t.Errorf("Unexpected frame %x", frame)
	}
}

func TestAssembler_CameraName(t *testing.T) {
	asm := newAssembler(map[string]string{"10.0.0.5": "door"})

	tests := []struct {
		addr     string
		expected string
	}{
		{"10.0.0.5:4000", "door"},
		{"10.0.0.9:4000", "unknown_10.0.0.9"},
	}
	for _, tt := range tests {
		if got := asm.cameraName(tt.addr); got != tt.expected {
			t.Errorf("cameraName(%q) = %q, expected %q", tt.addr, got, tt.expected)
		}
	}
}

func decodeStdJPEG(data []byte) (image.Image, func(), error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	return img, func() {}, err
}

func TestUDPCapturer_ReceivesFrame(t *testing.T) {
	capturer, err := ListenUDP("127.0.0.1:0", map[string]string{"127.0.0.1": "loopback"}, decodeStdJPEG, logger.NewDiscard())
	if err != nil {
		t.Fatalf("ListenUDP failed: %v", err)
	}
	defer capturer.Close()

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(1, 1, color.White)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	conn, err := net.Dial("udp", capturer.Addr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	data := buf.Bytes()
	half := len(data) / 2
	if _, err := conn.Write(data[:half]); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if _, err := conn.Write(data[half:]); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	frame, err := capturer.Capture(ctx)
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	defer frame.Release()

	if frame.Source != "loopback" {
		t.Errorf("Expected source loopback, got %q", frame.Source)
	}
	if frame.Image.Bounds().Dx() != 8 {
		t.Errorf("Expected 8px wide frame, got %d", frame.Image.Bounds().Dx())
	}
}

func TestUDPCapturer_CloseUnblocksCapture(t *testing.T) {
	capturer, err := ListenUDP("127.0.0.1:0", nil, decodeStdJPEG, logger.NewDiscard())
	if err != nil {
		t.Fatalf("ListenUDP failed: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := capturer.Capture(context.Background())
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	capturer.Close()

	select {
	case err := <-errCh:
		if err != ErrCapturerClosed {
			t.Errorf("Expected ErrCapturerClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Capture did not return after Close")
	}
}
