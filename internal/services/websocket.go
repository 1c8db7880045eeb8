package services

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// Client represents a WebSocket client
type Client struct {
	UserID   uint
	UserType string
	Conn     *websocket.Conn
	Send     chan []byte
	Hub      *Hub
}

// Hub maintains one live connection per online user and pushes dispatch
// events to them. Delivery is best-effort: a user without a registered
// connection simply misses the event, and a failed send drops the
// connection. The durable state machines are the source of truth.
type Hub struct {
	clients    map[uint]*Client
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	log        *logrus.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		clients:    make(map[uint]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        log,
	}
}

// Run starts the hub
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			// A new connection for the same user replaces the old one.
			if prev, ok := h.clients[client.UserID]; ok {
				close(prev.Send)
			}
			h.clients[client.UserID] = client
			h.mutex.Unlock()
			h.log.WithFields(logrus.Fields{
				"userId":   client.UserID,
				"userType": client.UserType,
			}).Info("websocket client connected")

		case client := <-h.unregister:
			h.mutex.Lock()
			if current, ok := h.clients[client.UserID]; ok && current == client {
				delete(h.clients, client.UserID)
				close(client.Send)
			}
			h.mutex.Unlock()
			h.log.WithField("userId", client.UserID).Info("websocket client disconnected")
		}
	}
}

// Connect registers a client, replacing any prior connection for the
// same user.
func (h *Hub) Connect(client *Client) {
	h.register <- client
}

// Disconnect removes a client if it is still the registered connection
// for its user.
func (h *Hub) Disconnect(client *Client) {
	h.unregister <- client
}

// SendToUser delivers a message to one user's connection if present. A
// full send buffer counts as a dead connection and the client is
// dropped.
func (h *Hub) SendToUser(userID uint, message []byte) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	client, ok := h.clients[userID]
	if !ok {
		return
	}

	select {
	case client.Send <- message:
	default:
		delete(h.clients, userID)
		close(client.Send)
		h.log.WithField("userId", userID).Warn("dropping unresponsive websocket client")
	}
}

// Broadcast sends a message to every connected user, optionally skipping
// one. Pass 0 to exclude nobody.
func (h *Hub) Broadcast(message []byte, excludeUserID uint) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for userID, client := range h.clients {
		if userID == excludeUserID {
			continue
		}
		select {
		case client.Send <- message:
		default:
			delete(h.clients, userID)
			close(client.Send)
		}
	}
}

// ConnectedClients returns the number of online users.
func (h *Hub) ConnectedClients() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// WebSocket message envelope
type WebSocketMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// DriverPositionEvent is pushed on every accepted location ping.
type DriverPositionEvent struct {
	DriverID uint     `json:"driverId"`
	RouteID  *uint    `json:"routeId,omitempty"`
	Lat      float64  `json:"lat"`
	Lng      float64  `json:"lng"`
	Heading  *float64 `json:"heading,omitempty"`
}

// OrderStatusEvent is pushed whenever an order's status changes.
type OrderStatusEvent struct {
	OrderID     uint   `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	LoadID      uint   `json:"loadId"`
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
}

// RouteProgressEvent is pushed when a route's tracking record changes.
type RouteProgressEvent struct {
	RouteID            uint    `json:"routeId"`
	TrackingRef        string  `json:"trackingRef"`
	ProgressPercentage float64 `json:"progressPercentage"`
	DistanceCoveredKm  float64 `json:"distanceCoveredKm"`
	EtaMinutes         int     `json:"etaMinutes,omitempty"`
}

// BidEvent is pushed to a shipper when a driver bids on their load.
type BidEvent struct {
	LoadID   uint    `json:"loadId"`
	BidID    uint    `json:"bidId"`
	DriverID uint    `json:"driverId"`
	Amount   float64 `json:"amount"`
}

// SendEvent marshals an envelope and delivers it to one user.
func (h *Hub) SendEvent(userID uint, eventType string, data interface{}) {
	message := WebSocketMessage{Type: eventType, Data: data}

	payload, err := json.Marshal(message)
	if err != nil {
		h.log.WithError(err).WithField("type", eventType).Error("failed to marshal websocket event")
		return
	}

	h.SendToUser(userID, payload)
}

// BroadcastEvent marshals an envelope and fans it out to every user
// except excludeUserID (0 excludes nobody).
func (h *Hub) BroadcastEvent(eventType string, data interface{}, excludeUserID uint) {
	message := WebSocketMessage{Type: eventType, Data: data}

	payload, err := json.Marshal(message)
	if err != nil {
		h.log.WithError(err).WithField("type", eventType).Error("failed to marshal websocket event")
		return
	}

	h.Broadcast(payload, excludeUserID)
}

// HandleWebSocket upgrades the request and registers the connection.
func HandleWebSocket(hub *Hub, w http.ResponseWriter, r *http.Request, userID uint, userType string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.log.WithError(err).Error("websocket upgrade failed")
		return
	}

	client := &Client{
		UserID:   userID,
		UserType: userType,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		Hub:      hub,
	}

	client.Hub.Connect(client)

	go client.writePump()
	go client.readPump()
}

// readPump drains the connection until it closes so that disconnects are
// noticed promptly. Inbound payloads are ignored; clients talk to the
// core over HTTP.
func (c *Client) readPump() {
	defer func() {
		c.Hub.Disconnect(c)
		c.Conn.Close()
	}()

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.WithError(err).WithField("userId", c.UserID).Warn("websocket read error")
			}
			break
		}
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	defer c.Conn.Close()

	for message := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			c.Hub.log.WithError(err).WithField("userId", c.UserID).Warn("websocket write error")
			return
		}
	}

	c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}
