package handler

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/agripulse/agri_go_server/internal/pkg/jwt"
	"github.com/agripulse/agri_go_server/internal/pkg/response"
	"github.com/agripulse/agri_go_server/internal/pkg/ws"
)

// 客户端只发送关闭帧，入站消息保持很小
const wsReadLimit = 512

type WebSocketHandler struct {
	hub       *ws.Hub
	jwtSecret string
	upgrader  websocket.Upgrader
}

// NewWebSocketHandler allowedOrigins 为空或包含 "*" 时不校验 Origin
func NewWebSocketHandler(hub *ws.Hub, jwtSecret string, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		hub:       hub,
		jwtSecret: jwtSecret,
		upgrader: websocket.Upgrader{
			CheckOrigin:     originChecker(allowedOrigins),
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// wsToken 浏览器无法给 WebSocket 加请求头，优先取 query，其次 Bearer 头
func wsToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

// Handle 报表进度与订阅变更推送
// GET /api/v1/ws?token=xxx
func (h *WebSocketHandler) Handle(c *gin.Context) {
	token := wsToken(c)
	if token == "" {
		response.AuthError(c, "Access denied. No token provided.")
		return
	}

	claims, err := jwt.ParseToken(token, h.jwtSecret)
	if err != nil {
		response.AuthError(c, "Invalid token")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade failed for account %d: %v", claims.AccountID, err)
		return
	}
	conn.SetReadLimit(wsReadLimit)

	client := &ws.Client{AccountID: claims.AccountID, Conn: conn}
	h.hub.Register(client)

	go h.drain(client)
}

// drain 丢弃入站消息，读出错即视为断开
func (h *WebSocketHandler) drain(client *ws.Client) {
	defer h.hub.Unregister(client)
	for {
		if _, _, err := client.Conn.NextReader(); err != nil {
			return
		}
	}
}
