// Package messaging provides a NATS client wrapper used to relay channel
// broadcast events across server instances. Connection tracking stays
// per-instance; event fan-out becomes cross-instance through the
// channel.events.<id> subjects.
package messaging

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// SubjectChannelEvents is the subject prefix for channel broadcast relays;
// the channel ID is appended as the final token.
const SubjectChannelEvents = "channel.events"

// NATSClient wraps the NATS connection with helper methods for pub/sub.
type NATSClient struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultNATSConfig returns sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           "nats://localhost:4222",
		Name:          "chat-core",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1, // infinite reconnects
	}
}

// NewNATSClient connects to NATS with the given config and returns a ready
// client. It returns an error if the initial connection fails.
func NewNATSClient(config NATSConfig) (*NATSClient, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("nats disconnected")
			} else {
				log.Info().Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Info().Msg("nats connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Info().Str("url", nc.ConnectedUrl()).Msg("nats connected")

	return &NATSClient{
		conn: nc,
		subs: make(map[string]*nats.Subscription),
	}, nil
}

// PublishChannelEvent publishes serialized event bytes to the channel's
// relay subject.
func (c *NATSClient) PublishChannelEvent(channelID int64, data []byte) error {
	return c.conn.Publish(channelSubject(channelID), data)
}

// SubscribeChannelEvents subscribes to every channel relay subject and
// passes the channel ID and raw event bytes to the handler.
func (c *NATSClient) SubscribeChannelEvents(handler func(channelID int64, data []byte)) error {
	subject := SubjectChannelEvents + ".*"
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		channelID, err := channelIDFromSubject(msg.Subject)
		if err != nil {
			log.Warn().Err(err).Str("subject", msg.Subject).Msg("unparseable relay subject")
			return
		}
		handler(channelID, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	c.subs[subject] = sub
	c.mu.Unlock()
	return nil
}

// Close drains all active subscriptions and closes the NATS connection.
func (c *NATSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for subject, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			log.Warn().Err(err).Str("subject", subject).Msg("nats drain failed")
		}
	}
	c.subs = make(map[string]*nats.Subscription)

	if err := c.conn.Drain(); err != nil {
		log.Warn().Err(err).Msg("nats connection drain failed")
	}

	log.Info().Msg("nats client closed")
}

func channelSubject(channelID int64) string {
	return SubjectChannelEvents + "." + strconv.FormatInt(channelID, 10)
}

func channelIDFromSubject(subject string) (int64, error) {
	prefix := SubjectChannelEvents + "."
	if !strings.HasPrefix(subject, prefix) {
		return 0, fmt.Errorf("messaging: subject %q lacks prefix %q", subject, prefix)
	}
	return strconv.ParseInt(strings.TrimPrefix(subject, prefix), 10, 64)
}
