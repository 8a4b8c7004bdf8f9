// Package hub keeps the set of open websocket connections and fans events out to them
package hub

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/eientei/guildpanel/internal/metrics"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	sendBuffer   = 32
	writeTimeout = 5 * time.Second
	pongTimeout  = 60 * time.Second
	pingPeriod   = 50 * time.Second
	readLimit    = 4096
)

// ErrStopped is returned when registering connection on stopped hub
var ErrStopped = errors.New("hub stopped")

type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
	id   uuid.UUID
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *client) writeLoop(log *logrus.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))

			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.WithError(err).WithField("client", c.id).Debug("Writing to websocket")
				c.close()

				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()

				return
			}
		case <-c.done:
			return
		}
	}
}

// Hub is the broadcast socket set
type Hub struct {
	log      *logrus.Logger
	clients  map[*websocket.Conn]*client
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	stopped  bool
}

// New returns hub instance; checkOrigin may be nil to allow same-origin requests only
func New(log *logrus.Logger, checkOrigin func(r *http.Request) bool) *Hub {
	if log == nil {
		log = logrus.New()
	}

	return &Hub{
		log:     log,
		clients: make(map[*websocket.Conn]*client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Register adds connection to the set
func (h *Hub) Register(conn *websocket.Conn) error {
	c := &client{
		id:   uuid.New(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()

	if h.stopped {
		h.mu.Unlock()

		return ErrStopped
	}

	h.clients[conn] = c
	count := len(h.clients)

	h.mu.Unlock()

	metrics.WebsocketClients.Set(float64(count))

	go c.writeLoop(h.log)

	h.log.WithField("client", c.id).WithField("clients", count).Debug("Websocket client connected")

	return nil
}

// Unregister removes connection from the set and closes it
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()

	c, ok := h.clients[conn]
	if ok {
		delete(h.clients, conn)
	}

	count := len(h.clients)

	h.mu.Unlock()

	if !ok {
		return
	}

	c.close()

	metrics.WebsocketClients.Set(float64(count))

	h.log.WithField("client", c.id).WithField("clients", count).Debug("Websocket client disconnected")
}

// Broadcast sends event to every registered connection, dropping clients that can not keep up
func (h *Hub) Broadcast(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.WithError(err).Error("Marshaling event")
		return
	}

	var slow []*websocket.Conn

	h.mu.RLock()

	for conn, c := range h.clients {
		select {
		case c.send <- data:
		case <-c.done:
			slow = append(slow, conn)
		default:
			slow = append(slow, conn)
		}
	}

	h.mu.RUnlock()

	metrics.BroadcastsTotal.Inc()

	for _, conn := range slow {
		h.log.Warn("Dropping slow websocket client")
		h.Unregister(conn)
	}
}

// Count returns number of registered connections
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// Stop closes all connections and rejects new ones
func (h *Hub) Stop() {
	h.mu.Lock()

	h.stopped = true
	clients := h.clients
	h.clients = make(map[*websocket.Conn]*client)

	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}

	metrics.WebsocketClients.Set(0)
}

// Serve upgrades request to websocket and keeps connection registered until it closes
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	if err = h.Register(conn); err != nil {
		_ = conn.Close()
		return err
	}

	defer h.Unregister(conn)

	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		if _, _, err = conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.WithError(err).Debug("Reading websocket")
			}

			return nil
		}
	}
}
