// Package protocol defines the WebSocket message types and structures used for
// communication between chat clients and the server. All messages are
// serialized as JSON and follow a consistent envelope format with a type
// discriminator.
package protocol

import (
	"encoding/json"
	"fmt"
)

// ---------------------------------------------------------------------------
// Message type constants
// ---------------------------------------------------------------------------

// Client -> Server message types.
const (
	TypeJoin    = "join"
	TypeMessage = "message"
	TypePing    = "ping"
)

// Server -> Client message types.
const (
	TypeReactionAdd     = "reaction_add"
	TypeReactionRemove  = "reaction_remove"
	TypeMessagePinned   = "message_pinned"
	TypeMessageUnpinned = "message_unpinned"
	TypeUserJoined      = "user_joined"
	TypeUserLeft        = "user_left"
	TypeError           = "error"
	TypePong            = "pong"
)

// ---------------------------------------------------------------------------
// Envelope - used for initial JSON parsing to extract the type discriminator.
// ---------------------------------------------------------------------------

// Envelope holds the message type and the raw JSON payload for deferred
// parsing into a concrete struct.
type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON implements the json.Unmarshaler interface. It captures the
// full raw bytes and extracts only the "type" field so that the rest of the
// payload can be decoded later into the appropriate concrete struct.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	// Capture the full raw message for deferred parsing.
	e.Raw = make(json.RawMessage, len(data))
	copy(e.Raw, data)

	// Extract only the type field.
	var partial struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("protocol: failed to unmarshal envelope: %w", err)
	}
	if partial.Type == "" {
		return fmt.Errorf("protocol: missing or empty \"type\" field")
	}
	e.Type = partial.Type
	return nil
}

// ---------------------------------------------------------------------------
// Client -> Server message structs
// ---------------------------------------------------------------------------

// JoinMsg is sent by the client to subscribe the connection to a channel.
type JoinMsg struct {
	Type      string `json:"type"`
	ChannelID int64  `json:"channelId"`
}

// ChatMsg is a text message posted by the client into a channel.
type ChatMsg struct {
	Type      string `json:"type"`
	ChannelID int64  `json:"channelId"`
	Body      string `json:"body"`
}

// PingMsg is a client-initiated keepalive ping.
type PingMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Server -> Client message structs
// ---------------------------------------------------------------------------

// UserJoinedMsg announces that a user's connection subscribed to a channel,
// along with the recomputed set of online users.
type UserJoinedMsg struct {
	Type        string  `json:"type"`
	ChannelID   int64   `json:"channelId"`
	UserID      int64   `json:"userId"`
	UserName    string  `json:"userName"`
	UserRole    string  `json:"userRole"`
	OnlineUsers []int64 `json:"onlineUsers"`
}

// UserLeftMsg announces that a user no longer holds any live connection
// subscribed to a channel.
type UserLeftMsg struct {
	Type        string  `json:"type"`
	ChannelID   int64   `json:"channelId"`
	UserID      int64   `json:"userId"`
	OnlineUsers []int64 `json:"onlineUsers"`
}

// MessageMsg carries a newly created message, mention-enriched if the body
// resolved any @name tokens.
type MessageMsg struct {
	Type      string      `json:"type"`
	ChannelID int64       `json:"channelId"`
	Message   interface{} `json:"message"`
}

// ReactionMsg carries a reaction add/remove event together with the
// recomputed emoji->count snapshot for the affected message.
type ReactionMsg struct {
	Type      string         `json:"type"`
	ChannelID int64          `json:"channelId"`
	MessageID int64          `json:"messageId"`
	UserID    int64          `json:"userId"`
	Emoji     string         `json:"emoji"`
	Reactions map[string]int `json:"reactions"`
}

// PinMsg carries a pin or unpin event for a message in a channel.
type PinMsg struct {
	Type      string      `json:"type"`
	ChannelID int64       `json:"channelId"`
	MessageID int64       `json:"messageId"`
	Message   interface{} `json:"message,omitempty"`
}

// ErrorMsg is sent by the server to communicate an error condition.
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PongMsg is the server's response to a client ping.
type PongMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

// ParseClientMessage parses raw WebSocket bytes into a typed client message.
// It returns the message type string, the decoded struct, and any error
// encountered during parsing. An error is returned for unknown or
// server-only message types.
func ParseClientMessage(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: failed to parse message: %w", err)
	}

	var (
		msg interface{}
		err error
	)

	switch env.Type {
	case TypeJoin:
		var m JoinMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeMessage:
		var m ChatMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypePing:
		var m PingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	default:
		return env.Type, nil, fmt.Errorf("protocol: unknown client message type: %q", env.Type)
	}

	if err != nil {
		return env.Type, nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Type, err)
	}
	return env.Type, msg, nil
}

// NewServerMessage creates a JSON-encoded byte slice for a server message.
// The msgType is injected into the payload under the "type" key. The payload
// should be one of the server message structs; this function marshals it to
// JSON, injects the type field, and returns the final bytes.
func NewServerMessage(msgType string, payload interface{}) ([]byte, error) {
	// Marshal the payload struct to a generic map so we can ensure the "type"
	// field is present and correct.
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal payload: %w", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("protocol: failed to unmarshal payload into map: %w", err)
	}

	m["type"] = msgType

	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal server message: %w", err)
	}
	return out, nil
}
