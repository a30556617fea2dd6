// Package moderation evaluates whether a user may post or react in a
// channel. Mute is a time-boxed user-level sanction stored in Redis; lock
// and disable are channel-level flags that administrators can override.
package moderation

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/trackline/chat-core/internal/chat"
	"github.com/trackline/chat-core/internal/metrics"
)

// MuteState is the persisted mute record lookup consulted on every write.
type MuteState interface {
	// Check returns whether the user is muted, until when, and why.
	Check(ctx context.Context, userID int64) (muted bool, until time.Time, reason string, err error)

	// Clear removes the user's mute record (persisted un-mute).
	Clear(ctx context.Context, userID int64) error
}

// Policy is the single shared moderation gate for the message, reaction and
// pin paths. The check order is deliberate: mute is a user-level sanction
// independent of channel state and is evaluated first, so a muted admin is
// still blocked; lock and disable are channel-level sanctions that admins
// bypass.
type Policy struct {
	mutes MuteState
}

// NewPolicy creates a Policy over the given mute state.
func NewPolicy(mutes MuteState) *Policy {
	return &Policy{mutes: mutes}
}

// CanPost evaluates, in order: (1) the user's mute state, lazily clearing an
// expired mute; (2) the channel's disabled flag; (3) the channel's locked
// flag. Administrators bypass (2) and (3) unconditionally but remain subject
// to (1). It returns nil or one of chat.ErrUserMuted, chat.ErrChatDisabled,
// chat.ErrChannelLocked.
func (p *Policy) CanPost(ctx context.Context, user *chat.User, ch *chat.Channel) error {
	muted, until, reason, err := p.mutes.Check(ctx, user.ID)
	if err != nil {
		// Mute state must be readable to allow a write; fail closed.
		return err
	}
	if muted {
		if !until.IsZero() && time.Now().After(until) {
			// The sanction window has passed; un-mute and continue.
			if err := p.mutes.Clear(ctx, user.ID); err != nil {
				return err
			}
			log.Info().Int64("user_id", user.ID).Msg("expired mute cleared")
		} else {
			user.IsMuted = true
			user.MutedUntil = &until
			user.MuteReason = reason
			metrics.ModerationDenials.WithLabelValues("muted").Inc()
			return chat.ErrUserMuted
		}
	}

	if ch.IsDisabled && !user.IsAdmin() {
		metrics.ModerationDenials.WithLabelValues("disabled").Inc()
		return chat.ErrChatDisabled
	}
	if ch.IsLocked && !user.IsAdmin() {
		metrics.ModerationDenials.WithLabelValues("locked").Inc()
		return chat.ErrChannelLocked
	}
	return nil
}
