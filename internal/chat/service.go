package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/trackline/chat-core/internal/metrics"
	"github.com/trackline/chat-core/internal/protocol"
)

// Gate decides whether a user may post or react in a channel. The moderation
// package provides the production implementation; it is re-evaluated from
// fresh state immediately before every write.
type Gate interface {
	CanPost(ctx context.Context, user *User, ch *Channel) error
}

// Broadcaster delivers a serialized event to every live connection
// subscribed to a channel. Delivery is best-effort and happens only after
// the corresponding write has been persisted.
type Broadcaster interface {
	Broadcast(channelID int64, eventType string, payload interface{}) error
}

// History listing bounds per the REST contract.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 100
)

// Service orchestrates message creation and the pin lifecycle: membership
// check, moderation gate, validation, persistence, mention resolution and
// broadcast, in that order.
type Service struct {
	store    Store
	dir      Directory
	gate     Gate
	bcast    Broadcaster
	mentions *MentionResolver
	maxChars int
}

// NewService wires a Service. maxChars <= 0 selects DefaultMaxBodyChars.
func NewService(store Store, dir Directory, gate Gate, bcast Broadcaster, maxChars int) *Service {
	if maxChars <= 0 {
		maxChars = DefaultMaxBodyChars
	}
	return &Service{
		store:    store,
		dir:      dir,
		gate:     gate,
		bcast:    bcast,
		mentions: NewMentionResolver(store, dir),
		maxChars: maxChars,
	}
}

// PostMessage runs the full creation pipeline and returns the created,
// author- and mention-enriched message. A persistence failure suppresses
// the broadcast entirely.
func (s *Service) PostMessage(ctx context.Context, channelID, authorID int64, body string) (*Message, error) {
	return s.post(ctx, channelID, nil, authorID, body)
}

// PostReply runs the same pipeline as PostMessage but additionally requires
// the target message to exist and to belong to the same channel.
func (s *Service) PostReply(ctx context.Context, channelID, replyToID, authorID int64, body string) (*Message, error) {
	return s.post(ctx, channelID, &replyToID, authorID, body)
}

func (s *Service) post(ctx context.Context, channelID int64, replyToID *int64, authorID int64, body string) (*Message, error) {
	ch, err := s.store.Channel(ctx, channelID)
	if err != nil {
		return nil, err
	}

	member, err := s.store.IsMember(ctx, channelID, authorID)
	if err != nil {
		return nil, err
	}
	if !member {
		metrics.MessagesTotal.WithLabelValues("denied").Inc()
		return nil, fmt.Errorf("%w: user %d is not a member of channel %d", ErrAccessDenied, authorID, channelID)
	}

	author, err := s.dir.User(ctx, authorID)
	if err != nil {
		return nil, err
	}

	if err := s.gate.CanPost(ctx, author, ch); err != nil {
		metrics.MessagesTotal.WithLabelValues("denied").Inc()
		return nil, &ChannelError{ChannelID: ch.ID, Err: err}
	}

	trimmed, err := ValidateBody(body, s.maxChars)
	if err != nil {
		metrics.MessagesTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	if replyToID != nil {
		target, err := s.store.Message(ctx, *replyToID)
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: reply target %d", ErrInvalidInput, *replyToID)
		}
		if err != nil {
			return nil, err
		}
		if target.ChannelID != channelID {
			return nil, fmt.Errorf("%w: reply target belongs to a different channel", ErrInvalidInput)
		}
	}

	m := &Message{
		ChannelID: channelID,
		AuthorID:  authorID,
		Body:      trimmed,
		ReplyToID: replyToID,
	}
	if err := s.store.CreateMessage(ctx, m); err != nil {
		metrics.MessagesTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	m.Author = author

	// Mention resolution is best-effort enrichment; a failure here never
	// undoes the persisted message.
	mentioned, err := s.mentions.Resolve(ctx, m)
	if err != nil {
		log.Warn().Err(err).Int64("message_id", m.ID).Msg("mention resolution failed")
	}
	m.Mentions = mentioned

	metrics.MessagesTotal.WithLabelValues("created").Inc()

	if err := s.bcast.Broadcast(channelID, protocol.TypeMessage, protocol.MessageMsg{
		ChannelID: channelID,
		Message:   m,
	}); err != nil {
		log.Warn().Err(err).Int64("channel_id", channelID).Msg("message broadcast failed")
	}

	return m, nil
}

// ListMessages returns up to limit messages for the channel in ascending
// order. Membership is required; the limit is clamped to [1, 100] with a
// default of 50.
func (s *Service) ListMessages(ctx context.Context, channelID, requesterID int64, limit int) ([]*Message, error) {
	if _, err := s.store.Channel(ctx, channelID); err != nil {
		return nil, err
	}
	member, err := s.store.IsMember(ctx, channelID, requesterID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, fmt.Errorf("%w: user %d is not a member of channel %d", ErrAccessDenied, requesterID, channelID)
	}

	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	return s.store.ListMessages(ctx, channelID, limit)
}

// Pin pins a message in its channel. Admin-only; idempotent for an already
// pinned message. Broadcasts message_pinned after the pin is persisted.
func (s *Service) Pin(ctx context.Context, messageID, userID int64) (*Message, error) {
	m, err := s.store.Message(ctx, messageID)
	if err != nil {
		return nil, err
	}
	ch, err := s.store.Channel(ctx, m.ChannelID)
	if err != nil {
		return nil, err
	}

	user, err := s.dir.User(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() {
		return nil, fmt.Errorf("%w: pinning requires the administrator role", ErrAccessDenied)
	}
	// Admins bypass channel sanctions but a muted admin is still blocked.
	if err := s.gate.CanPost(ctx, user, ch); err != nil {
		return nil, &ChannelError{ChannelID: ch.ID, Err: err}
	}

	inserted, err := s.store.InsertPin(ctx, ch.ID, messageID, userID)
	if err != nil {
		return nil, err
	}

	m, err = s.store.Message(ctx, messageID)
	if err != nil {
		return nil, err
	}

	if inserted {
		if err := s.bcast.Broadcast(ch.ID, protocol.TypeMessagePinned, protocol.PinMsg{
			ChannelID: ch.ID,
			MessageID: messageID,
			Message:   m,
		}); err != nil {
			log.Warn().Err(err).Int64("channel_id", ch.ID).Msg("pin broadcast failed")
		}
	}
	return m, nil
}

// Unpin removes an active pin. Admin-only; a no-op if the message is not
// pinned. Broadcasts message_unpinned after the deletion is persisted.
func (s *Service) Unpin(ctx context.Context, messageID, userID int64) (*Message, error) {
	m, err := s.store.Message(ctx, messageID)
	if err != nil {
		return nil, err
	}
	ch, err := s.store.Channel(ctx, m.ChannelID)
	if err != nil {
		return nil, err
	}

	user, err := s.dir.User(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() {
		return nil, fmt.Errorf("%w: unpinning requires the administrator role", ErrAccessDenied)
	}
	// Same sanction rule as Pin applies on the way out.
	if err := s.gate.CanPost(ctx, user, ch); err != nil {
		return nil, &ChannelError{ChannelID: ch.ID, Err: err}
	}

	deleted, err := s.store.DeletePin(ctx, m.ChannelID, messageID)
	if err != nil {
		return nil, err
	}

	m, err = s.store.Message(ctx, messageID)
	if err != nil {
		return nil, err
	}

	if deleted {
		if err := s.bcast.Broadcast(m.ChannelID, protocol.TypeMessageUnpinned, protocol.PinMsg{
			ChannelID: m.ChannelID,
			MessageID: messageID,
		}); err != nil {
			log.Warn().Err(err).Int64("channel_id", m.ChannelID).Msg("unpin broadcast failed")
		}
	}
	return m, nil
}
