package service

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalink-io/vitalink/logger"
)

func startHub(t *testing.T) *WebSocketService {
	t.Helper()
	hub := NewWebSocketService()
	go hub.Run()
	t.Cleanup(hub.Stop)

	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return hub.running
	}, time.Second, 5*time.Millisecond)
	return hub
}

func dialHub(t *testing.T, hub *WebSocketService) *websocket.Conn {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/ws", func(c *gin.Context) {
		if err := hub.Upgrade(c.Writer, c.Request); err != nil {
			c.Status(http.StatusBadRequest)
		}
	})
	server := httptest.NewServer(engine)
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool {
		return hub.GetClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event Event
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func TestWebSocketHubGreetsAndBroadcasts(t *testing.T) {
	hub := startHub(t)
	conn := dialHub(t, hub)

	hello := readEvent(t, conn)
	assert.Equal(t, EventConnected, hello.Type)

	hub.SendDataUpdate(SignalECG, ChartPayload{X: []int{0}, Y: [][]float64{{1.5}}})

	update := readEvent(t, conn)
	assert.Equal(t, EventDataUpdate, update.Type)
	data, ok := update.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, SignalECG, data["signal"])
}

func TestWebSocketHubForwardsAnomalies(t *testing.T) {
	hub := startHub(t)
	conn := dialHub(t, hub)
	readEvent(t, conn) // hello

	hub.SendAnomaly(Anomaly{Kind: AnomalyECG, Timestamp: "2026-03-01T10:00:00Z"})

	event := readEvent(t, conn)
	assert.Equal(t, EventNewAnomaly, event.Type)
	data, ok := event.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, AnomalyECG, data["type"])
}

// With the hub installed as the logger hook, entries appended through
// the logger reach connected clients as system_log events.
func TestHubStreamsLogEntries(t *testing.T) {
	hub := startHub(t)
	conn := dialHub(t, hub)
	readEvent(t, conn) // hello

	logger.SetHook(hub.SendSystemLog)
	defer logger.SetHook(nil)

	logger.Info("replication cycle complete")

	event := readEvent(t, conn)
	assert.Equal(t, EventSystemLog, event.Type)
	data, ok := event.Data.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, data["message"], "replication cycle complete")
}

func TestBroadcastNeverBlocksWithoutHub(t *testing.T) {
	hub := NewWebSocketService()

	// The buffered channel fills; the rest must drop, not wedge the
	// telemetry path.
	for i := 0; i < 300; i++ {
		hub.SendSystemLog("flood")
	}
	assert.Equal(t, 0, hub.GetClientCount())
}

func TestStopDisconnectsClients(t *testing.T) {
	hub := startHub(t)
	conn := dialHub(t, hub)
	readEvent(t, conn) // hello

	hub.Stop()

	assert.Equal(t, 0, hub.GetClientCount())
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "the server side of the connection is gone")
}
