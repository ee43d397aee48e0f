package transport

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func dialWS(t *testing.T, srv *httptest.Server, path, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestChatWSWelcomeAndEcho(t *testing.T) {
	_, srv, token := testApp(t)

	conn := dialWS(t, srv, "/ws/chat", token)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var welcome welcomeMsg
	require.NoError(t, conn.ReadJSON(&welcome))
	require.Equal(t, "welcome", welcome.Type)
	require.Equal(t, "user-1", welcome.UserID)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "join", "room": "lobby"}))

	var joined outJoinedWire
	require.NoError(t, conn.ReadJSON(&joined))
	require.Equal(t, "joined", joined.Type)
	require.Equal(t, "lobby", joined.Room)

	// First connection into the room also triggers a presence broadcast
	// back to the joiner.
	var presence map[string]interface{}
	require.NoError(t, conn.ReadJSON(&presence))
	require.Equal(t, "presence", presence["type"])

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "channel", "room": "lobby", "body": "hello"}))

	var posted outChannelWire
	require.NoError(t, conn.ReadJSON(&posted))
	require.Equal(t, "channel", posted.Type)
	require.Equal(t, "hello", posted.Content)
	require.Equal(t, "user-1", posted.From)
}

func TestChatWSInviteFloodCloses(t *testing.T) {
	_, srv, token := testApp(t)

	conn := dialWS(t, srv, "/ws/chat", token)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var welcome welcomeMsg
	require.NoError(t, conn.ReadJSON(&welcome))

	// Default invite-flood threshold is 5/s; send well past it (5 allowed,
	// then more than `limit` blocked strikes) and expect inline RATE_LIMIT
	// errors followed by a 4429 close.
	for i := 0; i < 15; i++ {
		require.NoError(t, conn.WriteJSON(map[string]string{"type": "match_invite", "to": "user-2"}))
	}

	sawRateLimit := false
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			closeErr, ok := err.(*websocket.CloseError)
			require.True(t, ok, "expected a close error, got %v", err)
			require.Equal(t, CloseRateLimit, closeErr.Code)
			break
		}
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(raw, &msg))
		if msg["type"] == "error" && msg["code"] == "RATE_LIMIT" {
			sawRateLimit = true
		}
	}
	require.True(t, sawRateLimit, "expected at least one inline RATE_LIMIT error before the close")
}

func TestChatWSPing(t *testing.T) {
	_, srv, token := testApp(t)
	conn := dialWS(t, srv, "/ws/chat", token)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var welcome welcomeMsg
	require.NoError(t, conn.ReadJSON(&welcome))

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	var pong pongMsg
	require.NoError(t, conn.ReadJSON(&pong))
	require.Equal(t, "pong", pong.Type)
}

// outJoinedWire and outChannelWire mirror the chat package's private wire
// shapes so this transport-level test can decode them without reaching
// into an internal package.
type outJoinedWire struct {
	Type string `json:"type"`
	Room string `json:"room"`
}

type outChannelWire struct {
	Type    string `json:"type"`
	From    string `json:"from"`
	Room    string `json:"room"`
	Content string `json:"content"`
}
