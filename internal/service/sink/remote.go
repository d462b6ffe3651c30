package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"qrscanner/internal/config"
	"qrscanner/internal/logger"
	"qrscanner/internal/service/display"
)

// ContentType is sent with every payload.
const ContentType = "application/json; charset=utf-8"

// ReplyError reports a server reply that does not carry a usable "procesada".
type ReplyError struct {
	Body   string
	Reason string
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("invalid reply (%s): %q", e.Reason, e.Body)
}

type request struct {
	Palabra string `json:"palabra"`
}

// RemoteNotifier posts each payload to a fixed endpoint and shows the reply.
type RemoteNotifier struct {
	url         string
	client      *http.Client
	display     Display
	placeholder string
	history     history
	logger      *logger.Logger
	wg          sync.WaitGroup
}

// NewRemoteNotifier creates the remote sink. timeout 0 means no timeout;
// recorder may be nil.
func NewRemoteNotifier(url string, timeout time.Duration, display Display, placeholder string, recorder Recorder, logger *logger.Logger) *RemoteNotifier {
	return &RemoteNotifier{
		url:         url,
		client:      &http.Client{Timeout: timeout},
		display:     display,
		placeholder: placeholder,
		history:     history{recorder: recorder, logger: logger},
		logger:      logger,
	}
}

func (n *RemoteNotifier) Name() string { return config.SinkRemote }

// Deliver announces the read and sends the payload in the background. ctx
// bounds the request; cancelling it aborts the call.
func (n *RemoteNotifier) Deliver(ctx context.Context, a Accepted) {
	text := a.Payload.Value(n.placeholder)
	n.display.Notify("QR read!", display.Short)
	id := n.history.record(n.Name(), a, text)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		reply, hasBody, err := n.Send(ctx, text)
		n.history.reply(id, reply, err)

		switch {
		case err != nil:
			n.logger.Error("Error sending payload: %v", err)
			if ctx.Err() == nil {
				n.display.NotifyError("Error sending payload: "+err.Error(), display.Long)
			}
		case hasBody:
			n.logger.Info("Server reply: %s", reply)
			n.display.Notify("Reply: "+reply, display.Long)
		}
	}()
}

// Wait blocks until every request started by Deliver has finished.
func (n *RemoteNotifier) Wait() {
	n.wg.Wait()
}

// Send posts palabra and returns the "procesada" field of the reply. hasBody
// is false when the server answered with an empty body. A body that is not a
// JSON object with "procesada" is a *ReplyError.
func (n *RemoteNotifier) Send(ctx context.Context, palabra string) (reply string, hasBody bool, err error) {
	body, err := json.Marshal(request{Palabra: palabra})
	if err != nil {
		return "", false, fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", ContentType)

	resp, err := n.client.Do(req)
	if err != nil {
		return "", false, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false, fmt.Errorf("failed to read reply: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		n.logger.Warning("Server answered %s", resp.Status)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return "", false, nil
	}

	reply, err = ParseReply(data)
	if err != nil {
		return "", true, err
	}
	return reply, true, nil
}

// ParseReply extracts "procesada" from a JSON object. Strings are returned
// as-is, numbers and booleans as their literal text.
func ParseReply(data []byte) (string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return "", &ReplyError{Body: string(data), Reason: "not a JSON object"}
	}

	raw, ok := fields["procesada"]
	if !ok {
		return "", &ReplyError{Body: string(data), Reason: "missing procesada"}
	}

	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", &ReplyError{Body: string(data), Reason: "unreadable procesada"}
	}

	switch v := value.(type) {
	case string:
		return v, nil
	case float64:
		return string(raw), nil
	case bool:
		return strconv.FormatBool(v), nil
	}
	return "", &ReplyError{Body: string(data), Reason: "procesada is not a string"}
}
