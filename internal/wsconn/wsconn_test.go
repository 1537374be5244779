package wsconn

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/savvy-farm/internal/logger"
)

func newHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	h := New(DefaultConfig(), logger.New(io.Discard, logger.LevelError, "test", nil))
	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		h.Close()
		srv.Close()
	})
	return h, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.Count() == n }, 2*time.Second, 10*time.Millisecond)
}

func read(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	return string(data)
}

func TestHub_BroadcastReachesAllClients(t *testing.T) {
	h, srv := newHub(t)

	a := dial(t, srv)
	b := dial(t, srv)
	waitForClients(t, h, 2)

	h.Broadcast([]byte(`{"type":"view"}`))

	assert.Equal(t, `{"type":"view"}`, read(t, a))
	assert.Equal(t, `{"type":"view"}`, read(t, b))
}

func TestHub_OnConnectSendsInitialState(t *testing.T) {
	h, srv := newHub(t)
	h.OnConnect = func() [][]byte {
		return [][]byte{[]byte("snapshot")}
	}

	conn := dial(t, srv)
	assert.Equal(t, "snapshot", read(t, conn))
}

func TestHub_ClientDisconnectIsRemoved(t *testing.T) {
	h, srv := newHub(t)

	conn := dial(t, srv)
	waitForClients(t, h, 1)

	conn.Close(websocket.StatusNormalClosure, "bye")
	waitForClients(t, h, 0)
}

func TestHub_CloseRejectsNewClients(t *testing.T) {
	h, srv := newHub(t)

	dial(t, srv)
	waitForClients(t, h, 1)

	h.Close()
	assert.Equal(t, 0, h.Count())

	conn := dial(t, srv)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
}

func TestHub_SlowClientIsDropped(t *testing.T) {
	h := New(Config{SendBuffer: 1, WriteTimeout: time.Second}, logger.New(io.Discard, logger.LevelError, "test", nil))

	c := &client{send: make(chan []byte, 1), done: make(chan struct{})}
	require.True(t, h.add(c))

	h.Broadcast([]byte("1"))
	h.Broadcast([]byte("2"))

	assert.Equal(t, 0, h.Count())
	assert.Equal(t, int64(1), h.Dropped())
	select {
	case <-c.done:
	default:
		t.Fatal("expected slow client to be stopped")
	}
}
