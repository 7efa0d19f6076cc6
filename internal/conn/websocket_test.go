package conn

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexDash/internal/logging"
)

func TestWebSocketDialerRoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"report","data":{}}`))
		_, data, err := ws.ReadMessage()
		if err == nil {
			received <- string(data)
		}
	}))
	defer srv.Close()

	frames := make(chan string, 1)
	m := New(Options{
		URL:            "ws" + strings.TrimPrefix(srv.URL, "http"),
		Dialer:         WebSocketDialer{HandshakeTimeout: time.Second},
		ReconnectDelay: time.Hour,
		OnMessage:      func(b []byte) { frames <- string(b) },
		Logger:         logging.Component(logging.Discard(), "conn"),
	})
	defer m.Close()

	m.Connect()
	select {
	case f := <-frames:
		require.JSONEq(t, `{"type":"report","data":{}}`, f)
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received")
	}

	require.NoError(t, m.Send(map[string]string{"action": "stop"}))
	select {
	case got := <-received:
		require.JSONEq(t, `{"action":"stop"}`, got)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive command")
	}
}
