package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/iksnae/agent-stream/internal"
	"github.com/iksnae/agent-stream/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serveFrames upgrades every request and writes frames, then optionally closes
func serveFrames(t *testing.T, frames []string, closeAfter bool) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		if closeAfter {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
		}
		// Drain until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocket_Run(t *testing.T) {
	frames := []string{
		testutil.SampleConversation[0],
		strings.Join(testutil.SampleConversation[1:5], "\n"),
		strings.Join(testutil.SampleConversation[5:], "\n"),
	}
	srv := serveFrames(t, frames, true)

	s := internal.NewSession("ws")
	ws := &WebSocket{URL: wsURL(srv)}
	err := ws.Run(context.Background(), func(ev internal.Event) error {
		s.Handle(ev)
		return nil
	})
	require.NoError(t, err)

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "It declares package main.", msgs[1].Text())
	assert.True(t, s.CaughtUp())
}

func TestWebSocket_Cancel(t *testing.T) {
	srv := serveFrames(t, []string{testutil.SampleConversation[1]}, false)

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- (&WebSocket{URL: wsURL(srv)}).Run(ctx, func(internal.Event) error {
			got <- struct{}{}
			return nil
		})
	}()

	select {
	case <-got:
	case <-time.After(5 * time.Second):
		t.Fatal("no event received")
	}
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestWebSocket_DialError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	err := (&WebSocket{URL: wsURL(srv)}).Run(context.Background(), func(internal.Event) error { return nil })
	assert.Error(t, err)
}
