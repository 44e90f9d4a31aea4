package gateway

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/duelgrounds/quickdraw/go/internal/models"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// MessageHandler receives decoded transport events from connections.
type MessageHandler interface {
	HandleMessage(c *Connection, data []byte)
	HandleDisconnect(c *Connection)
}

// ConnectionManager owns the session registry: every live connection maps to
// exactly one Participant, created on connect and destroyed on disconnect.
// It also implements the engine's Notifier by resolving room members back to
// their connections.
type ConnectionManager struct {
	mu            sync.RWMutex
	connections   map[*Connection]bool
	byParticipant map[string]*Connection

	upgrader websocket.Upgrader
	config   ConnectionConfig
	handler  MessageHandler
}

// Connection is one WebSocket client with its connection-scoped Participant.
type Connection struct {
	ID          string
	Participant *models.Participant
	Conn        *websocket.Conn
	Send        chan []byte
	Manager     *ConnectionManager

	ConnectedAt time.Time
	closeOnce   sync.Once
}

// ConnectionConfig holds configuration for WebSocket connections.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// NewConnectionManager creates a connection manager.
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		connections:   make(map[*Connection]bool),
		byParticipant: make(map[string]*Connection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config: config,
	}
}

// SetHandler wires the message handler. Must be called before any upgrade.
func (cm *ConnectionManager) SetHandler(handler MessageHandler) {
	cm.handler = handler
}

// UpgradeConnection upgrades an HTTP request to a WebSocket connection and
// registers a fresh Participant for it.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, name string) (*Connection, error) {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return nil, err
	}

	connection := &Connection{
		ID: uuid.New().String(),
		Participant: &models.Participant{
			ID:   uuid.New().String(),
			Name: name,
		},
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		ConnectedAt: time.Now(),
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("participant", connection.Participant.ID).
		Str("remote", r.RemoteAddr).
		Msg("WebSocket connection established")

	return connection, nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.connections[conn] = true
	cm.byParticipant[conn.Participant.ID] = conn
}

func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if _, exists := cm.connections[conn]; !exists {
		return
	}
	delete(cm.connections, conn)
	delete(cm.byParticipant, conn.Participant.ID)
	close(conn.Send)

	log.Info().
		Str("connection_id", conn.ID).
		Str("participant", conn.Participant.ID).
		Msg("connection unregistered")
}

// Broadcast sends an event to every member of the room. A slow or dead
// connection is dropped without affecting delivery to the rest. Called with
// the room lock held, so it never blocks.
func (cm *ConnectionManager) Broadcast(room *models.Room, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	cm.mu.RLock()
	targets := make([]*Connection, 0, len(room.Players))
	for _, p := range room.Players {
		if conn, ok := cm.byParticipant[p.ID]; ok {
			targets = append(targets, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range targets {
		conn.trySend(data)
	}
}

// Send sends an event to a single participant.
func (cm *ConnectionManager) Send(participantID string, event any) {
	cm.mu.RLock()
	conn, ok := cm.byParticipant[participantID]
	cm.mu.RUnlock()
	if !ok {
		return
	}
	conn.SendEvent(event)
}

// ConnectionCount returns the number of live connections.
func (cm *ConnectionManager) ConnectionCount() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.connections)
}

// SendEvent marshals and queues one event for this connection.
func (c *Connection) SendEvent(event any) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to marshal event")
		return
	}
	c.trySend(data)
}

// trySend queues data without blocking. The registry read lock is held across
// the send attempt; unregistration closes the channel under the write lock,
// so a send can never land on a closed channel.
func (c *Connection) trySend(data []byte) {
	c.Manager.mu.RLock()
	defer c.Manager.mu.RUnlock()
	if !c.Manager.connections[c] {
		return
	}
	select {
	case c.Send <- data:
	default:
		// Connection is slow/dead; close it and let the pumps clean up.
		log.Warn().
			Str("connection_id", c.ID).
			Str("participant", c.Participant.ID).
			Msg("connection send buffer full, closing connection")
		c.closeOnce.Do(func() { c.Conn.Close() })
	}
}

// writePump handles sending messages to the WebSocket connection.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump handles reading messages from the WebSocket connection. On exit
// the disconnect is handed to the message handler with the same serialization
// guarantee as any explicit action.
func (c *Connection) readPump() {
	defer func() {
		if c.Manager.handler != nil {
			c.Manager.handler.HandleDisconnect(c)
		}
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}
		if c.Manager.handler != nil {
			c.Manager.handler.HandleMessage(c, message)
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
