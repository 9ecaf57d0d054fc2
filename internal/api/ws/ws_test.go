package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charlie-sans/netprop/internal/infrastructure/monitoring"
	"github.com/charlie-sans/netprop/internal/render"
)

var _ render.Broadcaster = (*Hub)(nil)

func startHub(t *testing.T) (*Hub, *httptest.Server, context.CancelFunc) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub(nil).WithMetrics(monitoring.NewMetrics())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	router := gin.New()
	router.GET("/ws", NewHandler(hub, nil).HandleConnection)
	server := httptest.NewServer(router)

	t.Cleanup(func() {
		cancel()
		server.Close()
	})
	return hub, server, cancel
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	msgType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, msgType)
	return string(data)
}

func TestEcho(t *testing.T) {
	_, server, _ := startHub(t)
	conn := dial(t, server)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))
	assert.Equal(t, "Server received: hello", readText(t, conn))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("again")))
	assert.Equal(t, "Server received: again", readText(t, conn))
}

func TestEchoGoesOnlyToSender(t *testing.T) {
	hub, server, _ := startHub(t)
	sender := dial(t, server)
	other := dial(t, server)
	require.Eventually(t, func() bool { return hub.Count() == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, sender.WriteMessage(websocket.TextMessage, []byte("private")))
	assert.Equal(t, "Server received: private", readText(t, sender))

	require.NoError(t, other.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := other.ReadMessage()
	assert.Error(t, err, "other peer must not see the echo")
}

func TestBroadcastReachesAllPeers(t *testing.T) {
	hub, server, _ := startHub(t)
	a := dial(t, server)
	b := dial(t, server)
	require.Eventually(t, func() bool { return hub.Count() == 2 }, 2*time.Second, 10*time.Millisecond)

	hub.Broadcast("news")

	assert.Equal(t, "news", readText(t, a))
	assert.Equal(t, "news", readText(t, b))
	assert.Equal(t, int64(2), hub.metrics.Snapshot().ActiveConnections)
}

func TestDisconnectRemovesPeer(t *testing.T) {
	hub, server, _ := startHub(t)
	conn := dial(t, server)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()

	require.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(0), hub.metrics.Snapshot().ActiveConnections)
}

func TestHubStopClosesPeers(t *testing.T) {
	hub, server, cancel := startHub(t)
	conn := dial(t, server)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-hub.Done()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "connection is closed when the hub stops")

	// Never blocks once stopped.
	hub.Broadcast("late")
}

func TestSlowPeerIsDropped(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	peer := newPeer()
	require.True(t, hub.join(peer))
	require.Equal(t, 1, hub.Count())

	// Nothing drains the peer's queue.
	require.Eventually(t, func() bool {
		hub.Broadcast("x")
		return hub.Count() == 0
	}, 5*time.Second, time.Millisecond)

	assert.False(t, peer.enqueue([]byte("after close")))
}

func TestJoinAfterStop(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	cancel()
	<-hub.Done()

	assert.False(t, hub.join(newPeer()))
	hub.leave(newPeer())
}
