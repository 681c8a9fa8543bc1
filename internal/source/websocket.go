package source

import (
	"bytes"
	"context"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/iksnae/agent-stream/internal"
	"go.uber.org/zap"
)

// WebSocket reads events from a backend that pushes them as text frames.
// A frame holds one event or several newline-separated events.
type WebSocket struct {
	URL    string
	Header http.Header
	Dialer *websocket.Dialer
}

// Run dials the backend and feeds fn until the server closes the connection,
// ctx is done, or fn fails. A normal close returns nil.
func (w *WebSocket) Run(ctx context.Context, fn Handler) error {
	dialer := w.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, w.URL, w.Header)
	if err != nil {
		return err
	}
	defer conn.Close()
	internal.Log().Debug("connected", zap.String("url", w.URL))

	var cancelled atomic.Bool
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			cancelled.Store(true)
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = conn.Close()
		case <-stop:
		}
	}()

	frame := 0
	for {
		kind, msg, err := conn.ReadMessage()
		if err != nil {
			if cancelled.Load() {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		frame++
		if kind != websocket.TextMessage {
			internal.Log().Debug("ignoring non-text frame", zap.Int("frame", frame))
			continue
		}
		for _, line := range bytes.Split(msg, []byte{'\n'}) {
			ev, ok := decodeLine(w.URL, frame, line)
			if !ok {
				continue
			}
			if err := fn(ev); err != nil {
				return unlessStop(err)
			}
		}
	}
}
