// Package live держит websocket-соединения получателей и отправляет им события без блокировок.
package live

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/senyabanana/instant-call-service/internal/metrics"
	"github.com/senyabanana/instant-call-service/internal/models"
	"github.com/senyabanana/instant-call-service/internal/utils"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// ErrSlowConsumer возвращается, когда буфер соединения переполнен и событие отброшено.
var ErrSlowConsumer = errors.New("live channel buffer is full")

// Event - сообщение живого канала.
type Event struct {
	Type         models.NotificationKind `json:"type"`
	Notification models.Notification     `json:"notification"`
}

// Authenticator проверяет соединение при подключении.
type Authenticator interface {
	Authenticate(r *http.Request) (string, error)
}

type client struct {
	userId string
	conn   *websocket.Conn
	send   chan []byte
}

// Hub хранит открытые соединения по получателям.
type Hub struct {
	Auth       Authenticator
	Logger     *log.Logger
	bufferSize int
	upgrader   websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
}

// NewHub создает новый экземпляр Hub.
func NewHub(auth Authenticator, logger *log.Logger, bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Hub{
		Auth:       auth,
		Logger:     logger,
		bufferSize: bufferSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// клиенты аутентифицируются токеном, а не cookie
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: map[string]map[*client]struct{}{},
	}
}

// Send ставит событие в очередь всех соединений получателя.
// Без открытых соединений вызов ничего не делает.
func (h *Hub) Send(recipientId string, n models.Notification) error {
	data, err := json.Marshal(Event{Type: n.Kind, Notification: n})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	conns := h.clients[recipientId]
	var dropped int
	for c := range conns {
		select {
		case c.send <- data:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		return fmt.Errorf("%w: dropped for %d of %d connections", ErrSlowConsumer, dropped, len(conns))
	}
	return nil
}

// Connections возвращает число открытых соединений получателя.
func (h *Hub) Connections(recipientId string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[recipientId])
}

// ServeWS обрабатывает подключение к живому каналу.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	userId, err := h.Auth.Authenticate(r)
	if err != nil {
		utils.SendError(w, h.Logger, err, "failed to verify token")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Printf("websocket upgrade for %s failed: %v", userId, err)
		return
	}

	c := &client{
		userId: userId,
		conn:   conn,
		send:   make(chan []byte, h.bufferSize),
	}
	h.register(c)

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.userId] == nil {
		h.clients[c.userId] = map[*client]struct{}{}
	}
	h.clients[c.userId][c] = struct{}{}
	metrics.LiveConnections.Inc()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := h.clients[c.userId]
	if _, ok := conns[c]; !ok {
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.clients, c.userId)
	}
	close(c.send)
	metrics.LiveConnections.Dec()
}

// readPump читает только служебные кадры и фиксирует разрыв соединения.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.Logger.Printf("live connection of %s closed: %v", c.userId, err)
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				h.Logger.Printf("live write to %s failed: %v", c.userId, err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
