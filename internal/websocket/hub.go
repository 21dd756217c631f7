package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/AlphaSudo/HmS2/internal/events"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins for dev simplicity
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is a single dashboard connection subscribed to the billing event stream.
type Client struct {
	Hub  *Hub
	Conn *websocket.Conn
	Send chan []byte
}

// Hub maintains the set of connected billing dashboards and fans invoice
// events out to them. Broadcast is buffered and sends are non-blocking:
// the stream is best-effort and slow consumers are disconnected rather
// than allowed to stall invoice mutations.
type Hub struct {
	clients    map[*Client]bool
	Broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	log        *zap.Logger
	mu         sync.Mutex
}

// NewHub initializes a billing event hub.
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		Broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		log:        log,
	}
}

// Run starts the dispatch loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Info("billing stream client connected")
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				h.log.Info("billing stream client disconnected")
			}
			h.mu.Unlock()
		case message := <-h.Broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					close(client.Send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publisher adapts the hub to the events.Publisher contract. A full
// broadcast buffer drops the event instead of blocking the mutation.
type Publisher struct {
	hub *Hub
	log *zap.Logger
}

func NewPublisher(hub *Hub, log *zap.Logger) *Publisher {
	return &Publisher{hub: hub, log: log}
}

func (p *Publisher) Publish(_ context.Context, event events.InvoiceEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.log.Error("failed to marshal invoice event for stream", zap.Error(err))
		return
	}
	select {
	case p.hub.Broadcast <- payload:
	default:
		p.log.Warn("billing stream buffer full, dropping event",
			zap.String("type", event.Type),
			zap.String("invoice_id", event.InvoiceID))
	}
}

// writePump drains the send channel onto the connection.
func (c *Client) writePump() {
	defer func() {
		_ = c.Conn.Close()
	}()
	for message := range c.Send {
		w, err := c.Conn.NextWriter(websocket.TextMessage)
		if err != nil {
			return
		}
		_, _ = w.Write(message)

		// Fast track writing queued messages
		n := len(c.Send)
		for i := 0; i < n; i++ {
			_, _ = w.Write([]byte{'\n'})
			_, _ = w.Write(<-c.Send)
		}

		if err := w.Close(); err != nil {
			return
		}
	}
	_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump discards client messages and detects disconnects.
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		_ = c.Conn.Close()
	}()
	for {
		_, _, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.Warn("billing stream read error", zap.Error(err))
			}
			break
		}
	}
}

// ServeWs authenticates the peer via a token query param and subscribes it
// to the billing event stream. Staff roles only; patients consume their
// invoices through the REST surface.
func ServeWs(hub *Hub, c *gin.Context, secret []byte) {
	tokenString := c.Query("token")
	if tokenString == "" {
		hub.log.Warn("billing stream rejected: missing token")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	})

	if err != nil || !token.Valid {
		hub.log.Warn("billing stream rejected: invalid token", zap.Error(err))
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		hub.log.Warn("billing stream rejected: invalid claims")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	role, _ := claims["role"].(string)
	if role != "ADMIN" && role != "DOCTOR" && role != "BILLING_CLERK" {
		hub.log.Warn("billing stream rejected: inadequate role", zap.String("role", role))
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hub.log.Warn("billing stream upgrade failed", zap.Error(err))
		return
	}
	client := &Client{Hub: hub, Conn: conn, Send: make(chan []byte, 256)}
	client.Hub.register <- client

	go client.writePump()
	go client.readPump()
}
