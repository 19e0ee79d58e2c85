package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"stock-insight-backend/internal/events"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin policy is enforced by the CORS middleware
		return true
	},
}

// wsClient is one websocket connection
type wsClient struct {
	conn      *websocket.Conn
	send      chan []byte
	hub       *wsHub
	userID    string
	closeChan chan struct{}
}

// wsHub fans bus events out to connected clients. Watchlist events carry a
// user ID and reach only that user's connections; scan lifecycle and signal
// updates go to everyone.
type wsHub struct {
	clients     map[*wsClient]bool
	userClients map[string]map[*wsClient]bool
	broadcast   chan []byte
	userCast    chan userMessage
	register    chan *wsClient
	unregister  chan *wsClient
	mu          sync.RWMutex
	logger      zerolog.Logger
}

type userMessage struct {
	userID string
	data   []byte
}

func newWSHub(logger zerolog.Logger) *wsHub {
	return &wsHub{
		clients:     make(map[*wsClient]bool),
		userClients: make(map[string]map[*wsClient]bool),
		broadcast:   make(chan []byte, 256),
		userCast:    make(chan userMessage, 256),
		register:    make(chan *wsClient),
		unregister:  make(chan *wsClient),
		logger:      logger.With().Str("component", "websocket").Logger(),
	}
}

// Run owns the client maps; all mutation happens on this goroutine
func (h *wsHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			if client.userID != "" {
				if h.userClients[client.userID] == nil {
					h.userClients[client.userID] = make(map[*wsClient]bool)
				}
				h.userClients[client.userID][client] = true
			}
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				if client.userID != "" {
					if userClients, ok := h.userClients[client.userID]; ok {
						delete(userClients, client)
						if len(userClients) == 0 {
							delete(h.userClients, client.userID)
						}
					}
				}
				close(client.send)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer, drop the connection
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()

		case userMsg := <-h.userCast:
			h.mu.Lock()
			if userClients, ok := h.userClients[userMsg.userID]; ok {
				for client := range userClients {
					select {
					case client.send <- userMsg.data:
					default:
						close(client.send)
						delete(userClients, client)
						delete(h.clients, client)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// Forward routes one bus event to the right audience. Subscribed on the
// event bus at server construction.
func (h *wsHub) Forward(event events.Event) {
	if event.UserID != "" {
		h.BroadcastToUser(event.UserID, event)
		return
	}
	h.BroadcastToAll(event)
}

// BroadcastToUser sends an event to a specific user's connections
func (h *wsHub) BroadcastToUser(userID string, event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to marshal user event")
		return
	}

	select {
	case h.userCast <- userMessage{userID: userID, data: data}:
	default:
		h.logger.Warn().Str("user_id", userID).Msg("user broadcast channel full, dropping message")
	}
}

// BroadcastToAll sends an event to all connected clients
func (h *wsHub) BroadcastToAll(event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to marshal event")
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn().Msg("broadcast channel full, dropping message")
	}
}

// UserClientCount returns the number of connections for a user
func (h *wsHub) UserClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userClients[userID])
}

// TotalClientCount returns the total number of connected clients
func (h *wsHub) TotalClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// writePump pumps messages from the hub to the websocket connection
func (c *wsClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.closeChan:
			return
		}
	}
}

// readPump drains the connection and unregisters on close
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
		close(c.closeChan)
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug().Err(err).Msg("websocket read error")
			}
			break
		}
	}
}

// handleWebSocket upgrades an authenticated connection and attaches it to
// the hub. The auth middleware accepts the token query param here, since
// browsers cannot set headers on websocket upgrades.
func (s *Server) handleWebSocket(c *gin.Context) {
	userID := s.getUserID(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &wsClient{
		conn:      conn,
		send:      make(chan []byte, 256),
		hub:       s.hub,
		userID:    userID,
		closeChan: make(chan struct{}),
	}
	s.hub.register <- client

	go client.writePump()
	go client.readPump()

	// Connection confirmation so the frontend can flip its indicator
	welcome := map[string]interface{}{
		"type":      "CONNECTED",
		"message":   "websocket connection established",
		"timestamp": time.Now(),
		"user_id":   userID,
	}
	if data, err := json.Marshal(welcome); err == nil {
		select {
		case client.send <- data:
		default:
		}
	}
}
