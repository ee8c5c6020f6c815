package web

import (
	"encoding/json"
	"time"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/rweb"
	"github.com/rohanthewiz/serr"
)

const sseStdMsgType = "message" // JS EventSource only picks up "message" events by default

const (
	sseBuffer      = 16
	sseSendTimeout = 5 * time.Second
)

// sseSender pushes session messages onto one client's SSE channel.
// It implements session.Sender; only the owning session goroutine calls Send.
type sseSender struct {
	ch      chan any
	timeout time.Duration
}

func newSSESender() *sseSender {
	return &sseSender{ch: make(chan any, sseBuffer), timeout: sseSendTimeout}
}

// Send marshals msg as the data of a "message" event. A client that stops
// draining its stream for longer than the timeout is reported as gone.
func (s *sseSender) Send(msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return serr.Wrap(err, "failed to marshal SSE payload")
	}

	ev := rweb.SSEvent{Type: sseStdMsgType, Data: string(payload)}
	select {
	case s.ch <- ev:
		logger.F("Queued SSE event: %s", payload)
		return nil
	case <-time.After(s.timeout):
		return serr.F("SSE client not draining after %s", s.timeout)
	}
}
