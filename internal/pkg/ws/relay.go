package ws

import (
	"log"

	"github.com/agripulse/agri_go_server/internal/pkg/pubsub"
)

// Relay 把 Redis 上的账户事件转发给该账户的 WebSocket 连接
func (h *Hub) Relay(event *pubsub.EventMessage) {
	if event == nil || event.AccountID == 0 {
		return
	}
	if !h.IsOnline(event.AccountID) {
		return
	}
	if err := h.SendToAccount(event.AccountID, &Message{Type: event.Type, Data: event}); err != nil {
		log.Printf("[ws] relay %s to account %d failed: %v", event.Type, event.AccountID, err)
	}
}
