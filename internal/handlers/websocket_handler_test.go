package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partyquiz/server/internal/models"
	"github.com/partyquiz/server/internal/services"
)

type wsFixture struct {
	server   *httptest.Server
	registry *services.ConnectionRegistry
	store    *services.SessionStore
	answers  *services.AnswerBuffer
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	registry := services.NewConnectionRegistry()
	store := services.NewSessionStore(registry, nil)
	registry.OnClose(store.ClearTransport)
	broadcaster := services.NewBroadcastService(registry, store, nil)
	lifecycle := services.NewLifecycleService(registry, store, broadcaster, stubPhotoStore{})
	answers := services.NewAnswerBuffer()
	handler := NewWebSocketHandler(registry, lifecycle, answers, nil)

	server := httptest.NewServer(http.HandlerFunc(handler.HandleConnection))
	t.Cleanup(server.Close)
	return &wsFixture{server: server, registry: registry, store: store, answers: answers}
}

func (f *wsFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func sendEnvelope(t *testing.T, conn *websocket.Conn, msg interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

// waitForSession polls until the join has been processed server-side
func (f *wsFixture) waitForSession(t *testing.T, deviceID models.DeviceID) models.PlayerSession {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sess, ok := f.store.Get(deviceID); ok {
			return sess
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("session for %s never appeared", deviceID)
	return models.PlayerSession{}
}

func TestWebSocketHandler_JoinMirrorsToOtherConnections(t *testing.T) {
	f := newWSFixture(t)

	observer := f.dial(t)
	joiner := f.dial(t)

	sendEnvelope(t, joiner, map[string]interface{}{
		"type":     models.EventPlayerJoin,
		"deviceId": "d1",
		"playerId": "p1",
		"teamName": "Foxes",
	})

	mirror := readEnvelope(t, observer)
	assert.Equal(t, models.EventPlayerJoin, mirror["type"])
	assert.Equal(t, "Foxes", mirror["teamName"])
	assert.Equal(t, "d1", mirror["deviceId"])

	sess := f.waitForSession(t, "d1")
	assert.Equal(t, models.StatusPending, sess.Status)
}

func TestWebSocketHandler_MalformedMessageKeepsConnectionOpen(t *testing.T) {
	f := newWSFixture(t)

	observer := f.dial(t)
	client := f.dial(t)

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("{not json")))

	// The connection survives the bad frame; a valid join still works.
	sendEnvelope(t, client, map[string]interface{}{
		"type":     models.EventPlayerJoin,
		"deviceId": "d1",
		"playerId": "p1",
		"teamName": "Foxes",
	})

	mirror := readEnvelope(t, observer)
	assert.Equal(t, models.EventPlayerJoin, mirror["type"])
}

func TestWebSocketHandler_AnswerRecordedUnderBoundDevice(t *testing.T) {
	f := newWSFixture(t)

	client := f.dial(t)
	sendEnvelope(t, client, map[string]interface{}{
		"type":     models.EventPlayerJoin,
		"deviceId": "d1",
		"playerId": "p1",
		"teamName": "Foxes",
	})
	f.waitForSession(t, "d1")

	sendEnvelope(t, client, map[string]interface{}{
		"type":     models.EventPlayerAnswer,
		"deviceId": "spoofed-id",
		"teamName": "Foxes",
		"answer":   "B",
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && f.answers.Len() == 0 {
		time.Sleep(10 * time.Millisecond)
	}

	answers := f.answers.DrainAll()
	require.Len(t, answers, 1)
	// The registry binding wins over the client-claimed id.
	assert.Equal(t, models.DeviceID("d1"), answers[0].DeviceID)
	assert.JSONEq(t, `"B"`, string(answers[0].Answer))
}

func TestWebSocketHandler_DisconnectReleasesDeviceClaim(t *testing.T) {
	f := newWSFixture(t)

	client := f.dial(t)
	sendEnvelope(t, client, map[string]interface{}{
		"type":     models.EventPlayerJoin,
		"deviceId": "d1",
		"playerId": "p1",
		"teamName": "Foxes",
	})
	f.waitForSession(t, "d1")
	client.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && f.registry.LiveConnectionFor("d1") != nil {
		time.Sleep(10 * time.Millisecond)
	}
	assert.Nil(t, f.registry.LiveConnectionFor("d1"))

	// The session outlives its transport.
	sess, ok := f.store.Get("d1")
	require.True(t, ok)
	assert.Empty(t, sess.ConnectionID)
}

func TestWebSocketHandler_UnknownTypeIsDropped(t *testing.T) {
	f := newWSFixture(t)

	observer := f.dial(t)
	client := f.dial(t)

	sendEnvelope(t, client, map[string]interface{}{"type": "WARP_DRIVE"})
	sendEnvelope(t, client, map[string]interface{}{
		"type":     models.EventPlayerJoin,
		"deviceId": "d1",
		"playerId": "p1",
		"teamName": "Foxes",
	})

	// Only the join reaches the observer.
	mirror := readEnvelope(t, observer)
	assert.Equal(t, models.EventPlayerJoin, mirror["type"])
}
