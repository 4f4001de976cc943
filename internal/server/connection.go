package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/room"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

// Connection wraps one client socket. It carries the session context
// {roomID, playerID} and doubles as the room's snapshot subscriber.
type Connection struct {
	conn      *websocket.Conn
	send      chan *Message
	server    *Server
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	closeOnce sync.Once

	playerID string
	roomID   string
	actor    *room.Actor
}

// NewConnection creates a connection wrapper.
func NewConnection(conn *websocket.Conn, server *Server, logger *log.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		conn:   conn,
		send:   make(chan *Message, 256),
		server: server,
		logger: logger.WithPrefix("conn"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close closes the connection
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.send)
		err = c.conn.Close()
	})
	return err
}

// PlayerID implements fabric.Subscriber.
func (c *Connection) PlayerID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playerID
}

// Deliver implements fabric.Subscriber. Deliveries on a backpressured
// socket are dropped; the next snapshot catches the client up.
func (c *Connection) Deliver(snapshot *game.Snapshot) {
	msg, err := snapshotMessage(snapshot)
	if err != nil {
		c.logger.Error("Failed to encode snapshot", "error", err)
		return
	}
	c.sendMessage(msg)
}

func (c *Connection) session() (string, string, *room.Actor) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomID, c.playerID, c.actor
}

func (c *Connection) setSession(roomID, playerID string, actor *room.Actor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomID = roomID
	c.playerID = playerID
	c.actor = actor
}

func (c *Connection) sendMessage(msg *Message) {
	defer func() {
		// The send channel closes during shutdown; a late broadcast is not
		// worth crashing the delivering goroutine.
		_ = recover()
	}()

	select {
	case c.send <- msg:
	case <-c.ctx.Done():
	default:
		c.logger.Warn("Send buffer full, dropping delivery", "player", c.PlayerID())
	}
}

func (c *Connection) sendError(code, message string) {
	msg, err := NewMessage(MessageTypeError, ErrorData{Code: code, Message: message})
	if err != nil {
		c.logger.Error("Failed to create error message", "error", err)
		return
	}
	c.sendMessage(msg)
}

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() {
		c.server.handleDisconnect(c)
		_ = c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			return
		}

		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("Received message", "type", msg.Type, "player", c.PlayerID())

	switch msg.Type {
	case MessageTypeJoinRoom:
		var data JoinRoomData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse join room data")
			return
		}
		c.handleJoinRoom(data)

	case MessageTypeStartGame:
		c.handleStartGame()

	case MessageTypeSendIntent:
		var data SendIntentData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse intent data")
			return
		}
		c.handleSendIntent(data)

	default:
		c.sendError("unknown_message_type", "Unknown message type: "+string(msg.Type))
	}
}

func (c *Connection) handleJoinRoom(data JoinRoomData) {
	if data.RoomID == "" {
		c.sendError("invalid_room", "Room id required")
		return
	}

	playerID := data.PlayerID
	if playerID == "" {
		playerID = uuid.NewString()
	}
	nickname := data.Nickname
	if nickname == "" {
		nickname = "anon-" + playerID[:8]
	}

	// Leaving a previous room only detaches the socket; the seat is
	// governed by the disconnect grace timer like any other detach.
	if roomID, prevID, actor := c.session(); actor != nil {
		actor.Unsubscribe(c)
		c.server.armGraceTimer(roomID, prevID)
	}

	actor := c.server.rooms.GetOrCreate(data.RoomID)
	if err := actor.Post(game.Join{PlayerID: playerID, Name: nickname}); err != nil {
		c.sendError("join_failed", err.Error())
		return
	}

	c.server.cancelGraceTimer(data.RoomID, playerID)
	c.setSession(data.RoomID, playerID, actor)
	actor.Subscribe(c)

	c.logger.Info("Player joined room", "room", data.RoomID, "player", playerID, "nickname", nickname)

	response, err := NewMessage(MessageTypeJoinedRoom, JoinedRoomData{
		RoomID:   data.RoomID,
		PlayerID: playerID,
	})
	if err != nil {
		c.logger.Error("Failed to create joined_room message", "error", err)
		return
	}
	c.sendMessage(response)
}

func (c *Connection) handleStartGame() {
	_, playerID, actor := c.session()
	if actor == nil {
		c.sendError("not_in_room", "Join a room first")
		return
	}
	if err := actor.Post(game.Start{PlayerID: playerID}); err != nil {
		c.sendError("start_failed", err.Error())
	}
}

func (c *Connection) handleSendIntent(data SendIntentData) {
	_, playerID, actor := c.session()
	if actor == nil {
		c.sendError("not_in_room", "Join a room first")
		return
	}

	intentType, ok := parseIntent(data)
	if !ok {
		c.sendError("invalid_intent", "Unknown intent type: "+data.Type)
		return
	}

	err := actor.Post(game.Intent{PlayerID: playerID, Type: intentType, Amount: data.Amount})
	if err != nil {
		// The machine refused; the room state is untouched and only this
		// socket hears about it.
		c.sendError("intent_rejected", err.Error())
	}
}
