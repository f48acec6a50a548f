package ws

import (
	"net/http"
	"time"

	"github.com/fasol-market/api/internal/auth"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Dashboard connections are receive-only. Inbound frames are read and
// discarded so pongs and close frames still get processed.
const (
	writeTimeout    = 10 * time.Second
	idleTimeout     = 60 * time.Second
	pingInterval    = idleTimeout * 9 / 10
	maxInboundBytes = 512
	sendQueueSize   = 256
)

// Browsers cannot set headers on a websocket handshake, so the operator
// token arrives as a query parameter and origin is not checked.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Client is one operator dashboard subscribed to a topic.
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	topic string
	send  chan []byte
}

func newClient(hub *Hub, conn *websocket.Conn, topic string) *Client {
	return &Client{hub: hub, conn: conn, topic: topic, send: make(chan []byte, sendQueueSize)}
}

// readLoop waits for the dashboard to go away and then leaves the room.
func (c *Client) readLoop() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxInboundBytes)
	extend := func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	}
	extend("") //nolint:errcheck
	c.conn.SetPongHandler(extend)

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("topic", c.topic).Msg("websocket read")
			}
			return
		}
	}
}

// writeLoop sends each queued event as its own text frame and pings the
// dashboard while the room is quiet. It returns once the hub closes send.
func (c *Client) writeLoop() {
	ping := time.NewTicker(pingInterval)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		var (
			kind int
			data []byte
		)
		select {
		case message, ok := <-c.send:
			if !ok {
				kind = websocket.CloseMessage
			} else {
				kind, data = websocket.TextMessage, message
			}
		case <-ping.C:
			kind = websocket.PingMessage
		}

		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
		if err := c.conn.WriteMessage(kind, data); err != nil || kind == websocket.CloseMessage {
			return
		}
	}
}

// ServeWS upgrades GET /ws/{topic}?token=<access token> into a dashboard
// subscription on orders or catalog.
func ServeWS(hub *Hub, jwtSecret string, w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	claims, err := auth.ValidateToken(jwtSecret, token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	topic := chi.URLParam(r, "topic")
	if !IsTopic(topic) {
		http.Error(w, "unknown topic", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade")
		return
	}

	client := newClient(hub, conn, topic)
	hub.register <- client
	log.Debug().Str("operator_id", claims.OperatorID.String()).Str("topic", topic).Msg("websocket connected")

	go client.writeLoop()
	go client.readLoop()
}
