package detector

import (
	"context"
	"errors"
	"fmt"
	"image"

	"qrscanner/internal/camera"
	"qrscanner/internal/logger"
)

// FormatQRCode is the only payload encoding the detector reports.
const FormatQRCode = "QR_CODE"

// ErrEmptyFrame is returned for frames without an image.
var ErrEmptyFrame = errors.New("frame has no image")

// Payload is the decoded content of one recognized code.
type Payload struct {
	Text     string
	Format   string
	Readable bool // false when a code was found but its text could not be read
}

// Value returns the text, or placeholder when the code was unreadable.
func (p Payload) Value(placeholder string) string {
	if !p.Readable {
		return placeholder
	}
	return p.Text
}

// Decoder recognizes codes in an image. Finding nothing is not an error.
type Decoder interface {
	Decode(img image.Image) ([]Payload, error)
}

// Result is the outcome of analyzing one frame: either payloads (possibly
// none) or an error.
type Result struct {
	Payloads []Payload
	Err      error
}

// Detector runs a Decoder over frames and owns their release.
type Detector struct {
	decoder Decoder
	logger  *logger.Logger
}

// New creates a Detector over decoder.
func New(decoder Decoder, logger *logger.Logger) *Detector {
	return &Detector{decoder: decoder, logger: logger}
}

// Process decodes frame and reports the result to onResult exactly once.
// The frame is released after onResult returns, on every path. Failures are
// logged and reported but never retried.
func (d *Detector) Process(ctx context.Context, frame *camera.Frame, onResult func(Result)) {
	defer frame.Release()

	result := d.decode(ctx, frame)
	if result.Err != nil && !errors.Is(result.Err, context.Canceled) {
		d.logger.Error("QR detection failed on frame %d: %v", frame.Seq, result.Err)
	}

	if onResult != nil {
		onResult(result)
	}
}

// Detect processes frame on its own goroutine. The channel yields the result
// and is closed once the frame has been released.
func (d *Detector) Detect(ctx context.Context, frame *camera.Frame) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		d.Process(ctx, frame, func(r Result) { ch <- r })
	}()
	return ch
}

// DecodeImage runs the decoder on a plain image, outside any frame pipeline.
func (d *Detector) DecodeImage(img image.Image) ([]Payload, error) {
	frame := camera.NewFrame(img, nil)
	result := d.decode(context.Background(), frame)
	return result.Payloads, result.Err
}

func (d *Detector) decode(ctx context.Context, frame *camera.Frame) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = Result{Err: fmt.Errorf("decoder panic: %v", r)}
		}
	}()

	if err := ctx.Err(); err != nil {
		return Result{Err: err}
	}
	if frame.Image == nil {
		return Result{Err: ErrEmptyFrame}
	}

	payloads, err := d.decoder.Decode(frame.Image)
	if err != nil {
		return Result{Err: err}
	}

	qr := make([]Payload, 0, len(payloads))
	for _, p := range payloads {
		if p.Format == FormatQRCode {
			qr = append(qr, p)
		}
	}
	return Result{Payloads: qr}
}
