package chat

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/trackline/chat-core/internal/protocol"
)

// Reactions maintains the per-message denormalized emoji->count snapshot
// alongside the normalized reaction rows. Every add/remove recomputes the
// snapshot from the rows, persists it, and broadcasts the event.
type Reactions struct {
	store Store
	dir   Directory
	gate  Gate
	bcast Broadcaster
}

// NewReactions wires a reaction aggregator.
func NewReactions(store Store, dir Directory, gate Gate, bcast Broadcaster) *Reactions {
	return &Reactions{store: store, dir: dir, gate: gate, bcast: bcast}
}

// Add upserts the (messageID, userID, emoji) reaction. Adding an already
// present reaction is a no-op that still returns the current snapshot. The
// same membership and moderation gates as posting apply.
func (a *Reactions) Add(ctx context.Context, messageID, userID int64, emoji string) (map[string]int, error) {
	return a.apply(ctx, messageID, userID, emoji, true)
}

// Remove deletes the reaction row if present; removing a nonexistent
// reaction is a no-op, not an error.
func (a *Reactions) Remove(ctx context.Context, messageID, userID int64, emoji string) (map[string]int, error) {
	return a.apply(ctx, messageID, userID, emoji, false)
}

func (a *Reactions) apply(ctx context.Context, messageID, userID int64, emoji string, add bool) (map[string]int, error) {
	if err := ValidateEmoji(emoji); err != nil {
		return nil, err
	}

	m, err := a.store.Message(ctx, messageID)
	if err != nil {
		return nil, err
	}
	ch, err := a.store.Channel(ctx, m.ChannelID)
	if err != nil {
		return nil, err
	}

	member, err := a.store.IsMember(ctx, ch.ID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, fmt.Errorf("%w: user %d is not a member of channel %d", ErrAccessDenied, userID, ch.ID)
	}

	user, err := a.dir.User(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := a.gate.CanPost(ctx, user, ch); err != nil {
		return nil, &ChannelError{ChannelID: ch.ID, Err: err}
	}

	var changed bool
	if add {
		changed, err = a.store.InsertReaction(ctx, messageID, userID, emoji)
	} else {
		changed, err = a.store.DeleteReaction(ctx, messageID, userID, emoji)
	}
	if err != nil {
		return nil, err
	}

	snapshot, err := a.store.ReactionCounts(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if err := a.store.SaveReactionSnapshot(ctx, messageID, snapshot); err != nil {
		return nil, err
	}

	if changed {
		eventType := protocol.TypeReactionAdd
		if !add {
			eventType = protocol.TypeReactionRemove
		}
		if err := a.bcast.Broadcast(ch.ID, eventType, protocol.ReactionMsg{
			ChannelID: ch.ID,
			MessageID: messageID,
			UserID:    userID,
			Emoji:     emoji,
			Reactions: snapshot,
		}); err != nil {
			log.Warn().Err(err).Int64("channel_id", ch.ID).Msg("reaction broadcast failed")
		}
	}
	return snapshot, nil
}

// Grouped returns the per-emoji grouped view for a message. Membership in
// the message's channel is required.
func (a *Reactions) Grouped(ctx context.Context, messageID, requesterID int64) ([]ReactionGroup, error) {
	m, err := a.store.Message(ctx, messageID)
	if err != nil {
		return nil, err
	}
	member, err := a.store.IsMember(ctx, m.ChannelID, requesterID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, fmt.Errorf("%w: user %d is not a member of channel %d", ErrAccessDenied, requesterID, m.ChannelID)
	}
	return a.store.GroupedReactions(ctx, messageID)
}
