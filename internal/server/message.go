package server

import (
	"encoding/json"

	"github.com/lox/cardroom/internal/game"
)

// MessageType discriminates wire messages in both directions.
type MessageType string

const (
	// Client → server
	MessageTypeJoinRoom   MessageType = "join_room"
	MessageTypeStartGame  MessageType = "start_game"
	MessageTypeSendIntent MessageType = "send_intent"

	// Server → client
	MessageTypeJoinedRoom MessageType = "joined_room"
	MessageTypeGameState  MessageType = "gameState"
	MessageTypeError      MessageType = "error"
)

// Message is the envelope for every wire message. Framing is handled by the
// websocket layer; bodies are JSON records.
type Message struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewMessage wraps a payload into an envelope.
func NewMessage(messageType MessageType, data interface{}) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Message{Type: messageType, Data: dataBytes}, nil
}

// JoinRoomData carries a join or rejoin request. PlayerID is set when a
// client reconnects with a previously issued identity.
type JoinRoomData struct {
	RoomID   string `json:"roomId"`
	Nickname string `json:"nickname"`
	PlayerID string `json:"playerId,omitempty"`
}

// SendIntentData carries a betting action. PASS is accepted as an alias
// for FOLD.
type SendIntentData struct {
	Type   string `json:"type"`
	Amount int    `json:"amount,omitempty"`
}

// JoinedRoomData echoes the authoritative identity back to the client.
type JoinedRoomData struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
}

// ErrorData is a per-socket diagnostic; rejected intents never change room
// state or reach other subscribers.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// parseIntent maps a wire intent onto the machine's vocabulary.
func parseIntent(data SendIntentData) (game.IntentType, bool) {
	switch data.Type {
	case "COMMIT":
		return game.IntentCommit, true
	case "CHECK":
		return game.IntentCheck, true
	case "FOLD", "PASS":
		return game.IntentFold, true
	default:
		return 0, false
	}
}

// snapshotMessage wraps a redacted snapshot for delivery.
func snapshotMessage(snapshot *game.Snapshot) (*Message, error) {
	return NewMessage(MessageTypeGameState, snapshot)
}
