package websocket

import (
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xpanvictor/voicegate/internal/config"
	"github.com/xpanvictor/voicegate/internal/domains/voicegate"
	"github.com/xpanvictor/voicegate/pkg/Logger"
)

type clientMessage struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T) (*Handler, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := NewHandler(config.Default(), Logger.NewNop(), nil)
	router := gin.New()
	h.RegisterRoutes(router)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	t.Cleanup(func() { h.Close() })
	return h, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendJSON(t *testing.T, conn *websocket.Conn, msgType MessageType, data interface{}) {
	t.Helper()
	payload, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(clientMessage{Type: msgType, Data: payload}))
}

// pcmFrame returns 20ms of mono 16kHz PCM at a constant amplitude.
func pcmFrame(amplitude int16) []byte {
	buf := make([]byte, 640)
	for i := 0; i < len(buf); i += 2 {
		binary.LittleEndian.PutUint16(buf[i:], uint16(amplitude))
	}
	return buf
}

func sendFrames(t *testing.T, conn *websocket.Conn, n int, amplitude int16) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, pcmFrame(amplitude)))
	}
}

// readUntil skips messages until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, want MessageType) clientMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var msg clientMessage
		require.NoError(t, conn.ReadJSON(&msg), "waiting for %s", want)
		if msg.Type == want {
			return msg
		}
	}
}

func rtcEvent(t *testing.T, msg clientMessage) string {
	t.Helper()
	var meta RTCMetaMessage
	require.NoError(t, json.Unmarshal(msg.Data, &meta))
	return meta.EventName
}

func TestVoiceSocketStartsAndHaltsStream(t *testing.T) {
	_, srv := newTestServer(t)
	conn := dial(t, srv)

	sendJSON(t, conn, MessageTypeControl, ControlMessage{Action: ActionReady})
	sendFrames(t, conn, 3, 16000)

	assert.Equal(t, EventDistributeRTP, rtcEvent(t, readUntil(t, conn, MessageTypeRTCMeta)))

	sendFrames(t, conn, 12, 0)
	assert.Equal(t, EventHaltRTP, rtcEvent(t, readUntil(t, conn, MessageTypeRTCMeta)))
}

func TestVoiceSocketWithoutReadyPeerStillTracksSpeaking(t *testing.T) {
	_, srv := newTestServer(t)
	conn := dial(t, srv)

	sendFrames(t, conn, 3, 16000)

	var state SpeakingStateMessage
	require.NoError(t, json.Unmarshal(readUntil(t, conn, MessageTypeSpeakingState).Data, &state))
	assert.True(t, state.Speaking)

	sendJSON(t, conn, MessageTypeStatus, struct{}{})
	var snap voicegate.Snapshot
	require.NoError(t, json.Unmarshal(readUntil(t, conn, MessageTypeStatus).Data, &snap))
	assert.Equal(t, voicegate.StateStreaming, snap.State)
	assert.True(t, snap.Speaking)
}

func TestVoiceSocketSensitivityEchoes(t *testing.T) {
	_, srv := newTestServer(t)
	conn := dial(t, srv)

	sendJSON(t, conn, MessageTypeSensitivity, SensitivityMessage{Magnitude: 30})

	var echo SensitivityStateMessage
	require.NoError(t, json.Unmarshal(readUntil(t, conn, MessageTypeSensitivityState).Data, &echo))
	assert.Equal(t, 30.0, echo.Magnitude)

	sendJSON(t, conn, MessageTypeStatus, struct{}{})
	var snap voicegate.Snapshot
	require.NoError(t, json.Unmarshal(readUntil(t, conn, MessageTypeStatus).Data, &snap))
	assert.Equal(t, -30.0, snap.Threshold)
}

func TestVoiceSocketSettingsToggleMonitoring(t *testing.T) {
	_, srv := newTestServer(t)
	conn := dial(t, srv)

	sendJSON(t, conn, MessageTypeSettings, map[string]interface{}{
		"monitoringEnabled":    true,
		"automaticSensitivity": true,
	})

	var mon MonitoringStateMessage
	require.NoError(t, json.Unmarshal(readUntil(t, conn, MessageTypeMonitoringState).Data, &mon))
	assert.True(t, mon.Enabled)
}

func TestVoiceSocketPartialSettingsKeepAutomaticSensitivity(t *testing.T) {
	_, srv := newTestServer(t)
	conn := dial(t, srv)

	sendJSON(t, conn, MessageTypeSettings, map[string]interface{}{"muted": true})
	sendJSON(t, conn, MessageTypeStatus, struct{}{})

	var snap voicegate.Snapshot
	require.NoError(t, json.Unmarshal(readUntil(t, conn, MessageTypeStatus).Data, &snap))
	assert.True(t, snap.Muted)
	assert.True(t, snap.Automatic)
}

func TestVoiceSocketRejectsUnknownType(t *testing.T) {
	_, srv := newTestServer(t)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"bogus"}`)))

	var e ErrorMessage
	require.NoError(t, json.Unmarshal(readUntil(t, conn, MessageTypeError).Data, &e))
	assert.Equal(t, "UNKNOWN_MESSAGE_TYPE", e.Code)
}

func TestStatsListsSessions(t *testing.T) {
	h, srv := newTestServer(t)
	dial(t, srv)

	require.Eventually(t, func() bool {
		return h.connectionManager.GetSessionCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get(srv.URL + "/ws/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status string `json:"status"`
		Data   struct {
			ActiveSessions int `json:"active_sessions"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 1, body.Data.ActiveSessions)
}

func TestWireEventNames(t *testing.T) {
	assert.Equal(t, "DISTRIBUTE_RTP", wireEventName(voicegate.SignalStreamStart))
	assert.Equal(t, "HALT_RTP", wireEventName(voicegate.SignalStreamHalt))
}

func TestCheckOrigin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "https://evil.example")

	assert.True(t, checkOrigin("*")(req))
	assert.False(t, checkOrigin("https://app.example")(req))

	req.Header.Set("Origin", "https://app.example")
	assert.True(t, checkOrigin("https://app.example")(req))
}
