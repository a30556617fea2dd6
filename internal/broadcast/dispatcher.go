// Package broadcast fans channel events out to every live local connection
// subscribed to a channel, and optionally relays them to other server
// instances over NATS.
package broadcast

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/trackline/chat-core/internal/messaging"
	"github.com/trackline/chat-core/internal/metrics"
	"github.com/trackline/chat-core/internal/protocol"
	"github.com/trackline/chat-core/internal/registry"
)

// Sink delivers serialized frames to a single connection by ID. The
// WebSocket server implements this.
type Sink interface {
	Send(connID string, data []byte) error
}

// relayEnvelope wraps a serialized event for cross-instance relay. Origin
// lets an instance drop its own events when they come back around.
type relayEnvelope struct {
	Origin string          `json:"origin"`
	Event  json.RawMessage `json:"event"`
}

// Dispatcher serializes channel events once and delivers them to every
// subscribed local connection. Send failures are logged and skipped; one
// slow or dead connection never blocks the rest.
type Dispatcher struct {
	reg      *registry.Registry
	sink     Sink
	relay    *messaging.NATSClient
	originID string
}

// NewDispatcher creates a Dispatcher over the given registry and sink,
// with no cross-instance relay.
func NewDispatcher(reg *registry.Registry, sink Sink) *Dispatcher {
	return &Dispatcher{
		reg:      reg,
		sink:     sink,
		originID: uuid.NewString(),
	}
}

// AttachRelay enables cross-instance fan-out: outgoing events are published
// to NATS, and events published by other instances are delivered to local
// connections.
func (d *Dispatcher) AttachRelay(relay *messaging.NATSClient) error {
	d.relay = relay
	return relay.SubscribeChannelEvents(func(channelID int64, data []byte) {
		var env relayEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Warn().Err(err).Int64("channel_id", channelID).Msg("malformed relay envelope")
			return
		}
		if env.Origin == d.originID {
			return
		}
		d.deliverLocal(channelID, "relay", env.Event)
	})
}

// Broadcast serializes the event once and delivers it to every local
// connection subscribed to the channel, then relays it if a relay is
// attached. It implements the delivery seam used by the chat service.
func (d *Dispatcher) Broadcast(channelID int64, eventType string, payload interface{}) error {
	data, err := protocol.NewServerMessage(eventType, payload)
	if err != nil {
		return err
	}

	d.deliverLocal(channelID, eventType, data)

	if d.relay != nil {
		env, err := json.Marshal(relayEnvelope{Origin: d.originID, Event: data})
		if err != nil {
			return err
		}
		if err := d.relay.PublishChannelEvent(channelID, env); err != nil {
			log.Warn().Err(err).Int64("channel_id", channelID).Str("type", eventType).Msg("relay publish failed")
		}
	}
	return nil
}

func (d *Dispatcher) deliverLocal(channelID int64, eventType string, data []byte) {
	start := time.Now()
	conns := d.reg.ConnectionsFor(channelID)
	for _, connID := range conns {
		if err := d.sink.Send(connID, data); err != nil {
			log.Debug().Err(err).Str("conn_id", connID).Int64("channel_id", channelID).Msg("broadcast send failed")
		}
	}
	metrics.BroadcastsTotal.WithLabelValues(eventType).Inc()
	metrics.BroadcastLatency.Observe(time.Since(start).Seconds())
}
