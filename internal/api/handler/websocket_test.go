package handler

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

	"github.com/agripulse/agri_go_server/internal/pkg/jwt"
	"github.com/agripulse/agri_go_server/internal/pkg/ws"
)

func TestWebSocketHandler_Handle(t *testing.T) {
	hub := ws.NewHub()
	h := NewWebSocketHandler(hub, testSecret, nil)

	router := gin.New()
	router.GET("/ws", h.Handle)
	server := httptest.NewServer(router)
	defer server.Close()

	t.Run("missing token", func(t *testing.T) {
		w := performRequest(router, "GET", "/ws", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		w := performRequest(router, "GET", "/ws?token=garbage", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("receives account events", func(t *testing.T) {
		token, err := jwt.GenerateToken(42, testSecret, 1)
		require.NoError(t, err)

		url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=" + token
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		defer conn.Close()

		require.Eventually(t, func() bool { return hub.IsOnline(42) }, time.Second, 10*time.Millisecond)
		require.NoError(t, hub.SendToAccount(42, &ws.Message{Type: "report_progress", Data: map[string]string{"step": "ready"}}))

		var msg ws.Message
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, "report_progress", msg.Type)
	})
}

func TestWebSocketHandler_BearerHeader(t *testing.T) {
	hub := ws.NewHub()
	h := NewWebSocketHandler(hub, testSecret, []string{"https://app.agripulse.ng"})

	router := gin.New()
	router.GET("/ws", h.Handle)
	server := httptest.NewServer(router)
	defer server.Close()

	token, err := jwt.GenerateToken(7, testSecret, 1)
	require.NoError(t, err)

	header := http.Header{}
	header.Set("Authorization", "bearer "+token)
	header.Set("Origin", "https://app.agripulse.ng")
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws", header)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return hub.IsOnline(7) }, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return !hub.IsOnline(7) }, time.Second, 10*time.Millisecond)
}

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"no list", nil, "https://evil.example", true},
		{"wildcard", []string{"*"}, "https://any.example", true},
		{"listed", []string{"https://app.agripulse.ng"}, "https://app.agripulse.ng", true},
		{"not listed", []string{"https://app.agripulse.ng"}, "https://evil.example", false},
		{"no origin header", []string{"https://app.agripulse.ng"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, originChecker(tt.allowed)(r))
		})
	}
}
