package streaming

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// echoServer returns a test server that echoes WebSocket messages back.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestConn_ConnectAndSendReceive(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	c := NewConn(&ConnConfig{URL: wsURL(srv)})
	ctx := context.Background()
	require.NoError(t, c.Connect(ctx))
	defer c.Close()

	payload := []byte("{\"protocol\":\"json\",\"version\":1}\x1e")
	require.NoError(t, c.Send(payload))

	data, err := c.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestConn_SendsHandshakeHeaders(t *testing.T) {
	got := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get("Cookie")
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	c := NewConn(&ConnConfig{URL: wsURL(srv), Headers: http.Header{"Cookie": {"_U=abc"}}})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()
	assert.Equal(t, "_U=abc", <-got)
}

func TestConn_DialRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewConn(&ConnConfig{URL: wsURL(srv)})
	err := c.Connect(context.Background())

	var de *DialError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, http.StatusForbidden, de.Status)
}

func TestConn_ConnectRefused(t *testing.T) {
	c := NewConn(&ConnConfig{URL: "ws://127.0.0.1:1", DialTimeout: time.Second})
	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect")
}

func TestConn_ReceiveAfterPeerClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		conn.Close()
	}))
	defer srv.Close()

	c := NewConn(&ConnConfig{URL: wsURL(srv)})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	_, err := c.Receive(context.Background())
	assert.ErrorIs(t, err, ErrPeerClosed)
}

func TestConn_ReceiveContextCanceled(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	c := NewConn(&ConnConfig{URL: wsURL(srv)})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConn_NotConnected(t *testing.T) {
	c := NewConn(&ConnConfig{URL: "ws://unused"})
	assert.ErrorIs(t, c.Send([]byte("x")), ErrNotConnected)

	_, err := c.Receive(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestConn_Close_Idempotent(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	c := NewConn(&ConnConfig{URL: wsURL(srv)})
	require.NoError(t, c.Connect(context.Background()))

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.True(t, c.IsClosed())
	assert.ErrorIs(t, c.Send([]byte("x")), ErrNotConnected)
	assert.Error(t, c.Connect(context.Background()))
}

func TestConn_CloseBeforeConnect(t *testing.T) {
	c := NewConn(&ConnConfig{URL: "ws://unused"})
	assert.NoError(t, c.Close())
	assert.True(t, c.IsClosed())
}
