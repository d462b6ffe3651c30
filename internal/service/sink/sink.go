package sink

import (
	"context"
	"time"

	"github.com/google/uuid"

	"qrscanner/internal/logger"
	"qrscanner/internal/model"
	"qrscanner/internal/service/detector"
	"qrscanner/internal/service/display"
)

// Accepted is a payload that passed the scan gate.
type Accepted struct {
	Payload   detector.Payload
	SessionID string
	Camera    string
	At        time.Time
}

// Sink consumes accepted payloads. Deliver must not block the analysis worker
// on network or display work.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, a Accepted)
}

// Display is the part of the display surface sinks write to.
type Display interface {
	Notify(text string, d display.Duration)
	NotifyError(text string, d display.Duration)
	SetLabel(text string)
}

// Recorder stores accepted scans; see repository.ScanRepository.
type Recorder interface {
	Insert(scan *model.Scan) error
	UpdateReply(id, reply, errText string) error
}

// history wraps an optional Recorder.
type history struct {
	recorder Recorder
	logger   *logger.Logger
}

func (h history) record(sinkName string, a Accepted, text string) string {
	if h.recorder == nil {
		return ""
	}

	scan := &model.Scan{
		ID:        uuid.NewString(),
		SessionID: a.SessionID,
		Payload:   text,
		Format:    a.Payload.Format,
		Sink:      sinkName,
		Camera:    a.Camera,
		ScannedAt: a.At,
	}
	if scan.ScannedAt.IsZero() {
		scan.ScannedAt = time.Now()
	}
	if err := h.recorder.Insert(scan); err != nil {
		h.logger.Error("Failed to record scan: %v", err)
		return ""
	}
	return scan.ID
}

func (h history) reply(id, reply string, err error) {
	if h.recorder == nil || id == "" {
		return
	}
	errText := ""
	if err != nil {
		errText = err.Error()
	}
	if err := h.recorder.UpdateReply(id, reply, errText); err != nil {
		h.logger.Error("Failed to record reply for scan %s: %v", id, err)
	}
}
