// Package cv holds the OpenCV-backed camera pieces: local device capture and
// JPEG decoding for network cameras.
package cv

import (
	"context"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"qrscanner/internal/camera"
)

// DeviceCapturer reads frames from a local camera through OpenCV.
type DeviceCapturer struct {
	device int
	webcam *gocv.VideoCapture
	mu     sync.Mutex
	closed bool
}

// OpenDevice opens the camera with the given device index.
func OpenDevice(device int) (*DeviceCapturer, error) {
	webcam, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("failed to open video capture %d: %w", device, err)
	}
	if !webcam.IsOpened() {
		webcam.Close()
		return nil, fmt.Errorf("video capture %d is not opened", device)
	}
	return &DeviceCapturer{device: device, webcam: webcam}, nil
}

// Open is a camera.OpenFunc for local devices.
func Open(sel camera.Selection) (camera.Capturer, error) {
	return OpenDevice(sel.Device)
}

// Capture reads one frame. The frame keeps its Mat alive until released.
func (c *DeviceCapturer) Capture(ctx context.Context) (*camera.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, camera.ErrCapturerClosed
	}

	mat := gocv.NewMat()
	if ok := c.webcam.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, camera.ErrNoFrame
	}

	img, err := mat.ToImage()
	if err != nil {
		mat.Close()
		return nil, fmt.Errorf("failed to convert frame: %w", err)
	}

	frame := camera.NewFrame(img, func() { mat.Close() })
	frame.Source = fmt.Sprintf("video%d", c.device)
	return frame, nil
}

// Close releases the device.
func (c *DeviceCapturer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.webcam.Close()
}

// DecodeJPEG is a camera.DecodeFunc backed by gocv.IMDecode.
func DecodeJPEG(data []byte) (image.Image, func(), error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if mat.Empty() {
		mat.Close()
		return nil, nil, fmt.Errorf("decoded image is empty")
	}

	img, err := mat.ToImage()
	if err != nil {
		mat.Close()
		return nil, nil, fmt.Errorf("failed to convert image: %w", err)
	}
	return img, func() { mat.Close() }, nil
}
