package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raaihank/mask-sentinel/internal/config"
	"github.com/raaihank/mask-sentinel/internal/privacy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHubConfig() config.WebSocketConfig {
	cfg := config.GetDefaults().WebSocket
	cfg.Events.BroadcastConnections = false
	return cfg
}

func startHub(t *testing.T, cfg config.WebSocketConfig) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(cfg, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	return websocket.DefaultDialer.Dial(url, header)
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev map[string]interface{}
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestHub_BroadcastsMaskResult(t *testing.T) {
	hub, srv := startHub(t, testHubConfig())

	conn, _, err := dial(t, srv, nil)
	require.NoError(t, err)
	defer conn.Close()

	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	result := privacy.Result{
		MaskedText: "[Email_A] wrote",
		Detections: []privacy.Detection{{
			RuleKey:     "email",
			Description: "Email addresses",
			Original:    "secret@example.com",
			Placeholder: "[Email_A]",
			Start:       0,
			End:         18,
		}},
	}
	hub.BroadcastEvent(NewMaskResultEvent("req-1", result, time.Millisecond))

	ev := readEvent(t, conn)
	assert.Equal(t, "mask_result", ev["type"])
	assert.Equal(t, "req-1", ev["request_id"])

	data := ev["data"].(map[string]interface{})
	assert.Equal(t, "[Email_A] wrote", data["masked_text"])
	assert.Equal(t, float64(1), data["total_detections"])

	stats := hub.GetStats()
	assert.Equal(t, int64(1), stats.TotalConnections)
	assert.Equal(t, int64(1), stats.ActiveConnections)
	assert.GreaterOrEqual(t, stats.TotalBroadcasts, int64(1))
	assert.GreaterOrEqual(t, stats.TotalMessages, int64(1))
	assert.Zero(t, stats.DroppedEvents)
}

func TestHub_DisabledEventTypeIsDropped(t *testing.T) {
	cfg := testHubConfig()
	cfg.Events.BroadcastMasks = false
	hub, srv := startHub(t, cfg)

	conn, _, err := dial(t, srv, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.BroadcastEvent(NewMaskResultEvent("", privacy.Result{MaskedText: "x"}, 0))
	hub.BroadcastEvent(Event{Type: EventTypeSnapshotSaved, Timestamp: time.Now(), Data: SnapshotSavedEvent{ID: "s1", Name: "n"}})

	// the snapshot event arrives first because the mask event never queued
	ev := readEvent(t, conn)
	assert.Equal(t, "snapshot_saved", ev["type"])
}

func TestHub_Subscription(t *testing.T) {
	hub, srv := startHub(t, testHubConfig())

	conn, _, err := dial(t, srv, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "subscribe", Events: []EventType{EventTypePatternUpdate}}))
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "ping"}))
	assert.Equal(t, "pong", readEvent(t, conn)["type"])

	hub.BroadcastEvent(Event{Type: EventTypeSnapshotSaved, Timestamp: time.Now()})
	hub.BroadcastEvent(Event{Type: EventTypePatternUpdate, Timestamp: time.Now(), Data: PatternUpdateEvent{Action: "added", Key: "order_id"}})

	assert.Equal(t, "pattern_update", readEvent(t, conn)["type"])
}

func TestHub_BasicAuth(t *testing.T) {
	cfg := testHubConfig()
	cfg.Username = "viewer"
	cfg.Password = "s3cret"
	_, srv := startHub(t, cfg)

	_, resp, err := dial(t, srv, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("viewer", "wrong")
	_, resp, err = dial(t, srv, req.Header)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req.SetBasicAuth("viewer", "s3cret")
	conn, _, err := dial(t, srv, req.Header)
	require.NoError(t, err)
	conn.Close()
}

func TestNewMaskResultEvent_OmitsOriginals(t *testing.T) {
	result := privacy.Result{
		MaskedText: "[Person_A] <[Email_A]>",
		Detections: []privacy.Detection{
			{RuleKey: "name", Original: "田中太郎", Placeholder: "[Person_A]", Start: 0, End: 12},
			{RuleKey: "email", Original: "tanaka@example.com", Placeholder: "[Email_A]", Start: 14, End: 32},
		},
	}

	data, err := json.Marshal(NewMaskResultEvent("r", result, 0))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "田中太郎")
	assert.NotContains(t, string(data), "tanaka@example.com")
	assert.Contains(t, string(data), `"summary":{"email":1,"name":1}`)
}

func TestShouldBroadcastEvent(t *testing.T) {
	cfg := config.GetDefaults().WebSocket
	hub := NewHub(cfg, nil)
	for _, et := range []EventType{EventTypeMaskResult, EventTypeRestoreResult, EventTypePatternUpdate, EventTypeSnapshotSaved, EventTypeConnection} {
		assert.True(t, hub.shouldBroadcastEvent(et), et)
	}
	assert.False(t, hub.shouldBroadcastEvent(EventTypePong))

	cfg.Enabled = false
	hub.SetConfig(cfg)
	assert.False(t, hub.shouldBroadcastEvent(EventTypeMaskResult))
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", clientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", clientIP(r))
}
