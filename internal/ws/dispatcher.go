package ws

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/trackline/chat-core/internal/protocol"
)

// MessageHandler is the callback signature for handling a parsed client
// message. The msg parameter is the concrete struct returned by
// protocol.ParseClientMessage (e.g., protocol.JoinMsg, protocol.ChatMsg).
type MessageHandler func(conn *Connection, msg interface{})

// MessageDispatcher routes incoming WebSocket messages to registered
// handlers based on the message type. It answers the built-in ping/pong
// keepalive internally and sends structured error responses for malformed
// or unsupported messages; the connection stays open either way.
type MessageDispatcher struct {
	handlers map[string]MessageHandler
	server   *Server
}

// NewMessageDispatcher creates a MessageDispatcher with no server bound
// yet. SetServer must be called before Dispatch runs; this supports the
// initialization order where the dispatcher's Dispatch method is the
// callback passed to NewServer.
func NewMessageDispatcher() *MessageDispatcher {
	return &MessageDispatcher{
		handlers: make(map[string]MessageHandler),
	}
}

// SetServer assigns the Server used to send responses back to clients.
func (d *MessageDispatcher) SetServer(server *Server) {
	d.server = server
}

// Register associates a MessageHandler with a message type. A handler
// already registered for the type is silently replaced.
func (d *MessageDispatcher) Register(msgType string, handler MessageHandler) {
	d.handlers[msgType] = handler
}

// Dispatch parses the raw bytes into a typed message, handles ping
// internally, and routes all other types to the registered handler. Parse
// errors and unregistered types result in an error frame sent back to the
// client without closing the connection.
func (d *MessageDispatcher) Dispatch(conn *Connection, data []byte) {
	msgType, msg, err := protocol.ParseClientMessage(data)
	if err != nil {
		log.Debug().Err(err).Str("conn_id", conn.ID).Msg("malformed client message")
		d.SendError(conn, "parse_error", "invalid message format")
		return
	}

	if msgType == protocol.TypePing {
		d.sendPong(conn)
		return
	}

	handler, ok := d.handlers[msgType]
	if !ok {
		log.Debug().Str("type", msgType).Str("conn_id", conn.ID).Msg("unsupported message type")
		d.SendError(conn, "unsupported_type", "unsupported message type")
		return
	}

	handler(conn, msg)
}

// SendError sends a structured error frame back to the client. Errors
// during construction or transmission are logged but not propagated.
func (d *MessageDispatcher) SendError(conn *Connection, code string, message string) {
	data, err := protocol.NewServerMessage(protocol.TypeError, protocol.ErrorMsg{
		Code:    code,
		Message: message,
	})
	if err != nil {
		log.Error().Err(err).Str("conn_id", conn.ID).Msg("failed to build error frame")
		return
	}

	if err := conn.WriteMessage(data); err != nil {
		log.Debug().Err(err).Str("conn_id", conn.ID).Msg("failed to send error frame")
	}
}

// sendPong answers a client ping with a pong message and refreshes the
// connection's LastPing timestamp.
func (d *MessageDispatcher) sendPong(conn *Connection) {
	conn.LastPing = time.Now()

	data, err := protocol.NewServerMessage(protocol.TypePong, protocol.PongMsg{})
	if err != nil {
		log.Error().Err(err).Str("conn_id", conn.ID).Msg("failed to build pong")
		return
	}

	if err := conn.WriteMessage(data); err != nil {
		log.Debug().Err(err).Str("conn_id", conn.ID).Msg("failed to send pong")
	}
}
