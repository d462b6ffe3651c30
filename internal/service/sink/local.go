package sink

import (
	"context"

	"qrscanner/internal/config"
	"qrscanner/internal/logger"
)

// LocalDisplay writes each payload into the display label, last write wins.
type LocalDisplay struct {
	display     Display
	placeholder string
	history     history
	logger      *logger.Logger
}

// NewLocalDisplay creates the local sink. recorder may be nil.
func NewLocalDisplay(display Display, placeholder string, recorder Recorder, logger *logger.Logger) *LocalDisplay {
	return &LocalDisplay{
		display:     display,
		placeholder: placeholder,
		history:     history{recorder: recorder, logger: logger},
		logger:      logger,
	}
}

func (l *LocalDisplay) Name() string { return config.SinkLocal }

// Deliver overwrites the label with the payload or the placeholder.
func (l *LocalDisplay) Deliver(ctx context.Context, a Accepted) {
	text := a.Payload.Value(l.placeholder)
	l.display.SetLabel(text)
	l.history.record(l.Name(), a, text)
}
