package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The read-loop replies and the engine event forwarder write to the same
// connection from different goroutines; the lock in Conn must serialize
// them so every frame arrives whole.
func TestConnSerializesConcurrentWriters(t *testing.T) {
	const frames = 64

	upgrader := websocket.Upgrader{}
	ready := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Error(err)
			return
		}
		conn := NewConn(raw)
		defer conn.Close()

		var wg sync.WaitGroup
		for i := 0; i < frames; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := conn.WriteError("integrity warning"); err != nil {
					t.Error(err)
				}
			}()
		}
		wg.Wait()
		close(ready)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer client.Close()

	for i := 0; i < frames; i++ {
		var msg ErrorResponse
		require.NoError(t, client.ReadJSON(&msg))
		assert.Equal(t, EventError, msg.Event)
		assert.Equal(t, "integrity warning", msg.Error)
	}
	<-ready
}

func TestConnReadJSONDecodesFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	got := make(chan RequestPayload, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Error(err)
			return
		}
		conn := NewConn(raw)
		defer conn.Close()

		var msg RequestPayload
		if err := conn.ReadJSON(&msg); err != nil {
			t.Error(err)
			return
		}
		got <- msg
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.WriteJSON(RequestPayload{Action: ActionPing}))

	msg := <-got
	assert.Equal(t, ActionPing, msg.Action)
}
