package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Message 推送给前端的事件
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Client 一条 WebSocket 连接
type Client struct {
	AccountID int64
	Conn      *websocket.Conn

	writeMu sync.Mutex
}

func (c *Client) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.Conn.WriteMessage(websocket.TextMessage, data)
}

// Hub 按账户索引在线连接，同一账户可以同时打开多个页面
type Hub struct {
	mu       sync.RWMutex
	accounts map[int64]map[*Client]struct{}
	total    int
}

func NewHub() *Hub {
	return &Hub{accounts: make(map[int64]map[*Client]struct{})}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	set, ok := h.accounts[client.AccountID]
	if !ok {
		set = make(map[*Client]struct{})
		h.accounts[client.AccountID] = set
	}
	if _, dup := set[client]; !dup {
		set[client] = struct{}{}
		h.total++
	}
	perAccount, total := len(set), h.total
	h.mu.Unlock()

	log.Printf("[ws] account %d connected (%d for account, %d total)", client.AccountID, perAccount, total)
}

func (h *Hub) Unregister(client *Client) {
	if h.remove(client) {
		log.Printf("[ws] account %d disconnected", client.AccountID)
	}
}

func (h *Hub) remove(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.accounts[client.AccountID]
	if !ok {
		return false
	}
	if _, ok := set[client]; !ok {
		return false
	}
	delete(set, client)
	h.total--
	if len(set) == 0 {
		delete(h.accounts, client.AccountID)
	}
	return true
}

func (h *Hub) snapshot(accountID int64) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	set := h.accounts[accountID]
	clients := make([]*Client, 0, len(set))
	for c := range set {
		clients = append(clients, c)
	}
	return clients
}

// SendToAccount 发给账户的全部连接，写失败的连接会被摘除并关闭
func (h *Hub) SendToAccount(accountID int64, msg *Message) error {
	clients := h.snapshot(accountID)
	if len(clients) == 0 {
		return nil
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	for _, c := range clients {
		if err := c.write(data); err != nil {
			log.Printf("[ws] dropping connection of account %d: %v", accountID, err)
			h.remove(c)
			c.Conn.Close()
		}
	}
	return nil
}

// IsOnline 账户是否至少有一条连接
func (h *Hub) IsOnline(accountID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.accounts[accountID]) > 0
}

// ConnectionCount 在线连接总数
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.total
}
