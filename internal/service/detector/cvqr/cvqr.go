// Package cvqr decodes QR codes with the OpenCV QR detector.
package cvqr

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"qrscanner/internal/service/detector"
)

// Decoder wraps gocv.QRCodeDetector. The detector is not safe for concurrent
// use, calls are serialized.
type Decoder struct {
	mu  sync.Mutex
	qrd gocv.QRCodeDetector
}

// New creates an OpenCV-backed decoder. Close it when done.
func New() *Decoder {
	return &Decoder{qrd: gocv.NewQRCodeDetector()}
}

// Decode finds at most one QR code in img.
func (d *Decoder) Decode(img image.Image) ([]detector.Payload, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer mat.Close()

	points := gocv.NewMat()
	defer points.Close()
	straight := gocv.NewMat()
	defer straight.Close()

	d.mu.Lock()
	found := d.qrd.Detect(mat, &points)
	var text string
	if found {
		text = d.qrd.Decode(mat, points, &straight)
	}
	d.mu.Unlock()

	if !found {
		return []detector.Payload{}, nil
	}
	return []detector.Payload{{
		Text:     text,
		Format:   detector.FormatQRCode,
		Readable: text != "",
	}}, nil
}

// Close releases the native detector.
func (d *Decoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.qrd.Close()
}
