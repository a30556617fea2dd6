package chat

import "context"

// Directory is the user-identity lookup consumed by the messaging core. The
// wider platform owns user records; the core only reads identity and role.
type Directory interface {
	// User returns the user with the given ID, or ErrNotFound.
	User(ctx context.Context, id int64) (*User, error)

	// UserByName returns the user with the given exact name, or ErrNotFound.
	// Used by mention resolution.
	UserByName(ctx context.Context, name string) (*User, error)
}

// Store is the persistence contract for channels, messages, reactions,
// mentions and pins. Implementations must provide atomic insert-if-absent
// semantics for reactions, mentions and pins (unique constraint + upsert);
// the boolean results keep the success/no-op distinction visible.
type Store interface {
	// Channel returns the channel with the given ID, or ErrNotFound.
	Channel(ctx context.Context, id int64) (*Channel, error)

	// CreateChannel persists a channel and its initial memberships. DIRECT
	// channels require exactly two members.
	CreateChannel(ctx context.Context, ch *Channel, memberIDs []int64) error

	// IsMember reports whether the user holds a membership for the channel.
	IsMember(ctx context.Context, channelID, userID int64) (bool, error)

	// AddMember creates a membership. It fails with ErrInvalidInput for
	// DIRECT channels, which never accept new members.
	AddMember(ctx context.Context, channelID, userID int64) error

	// CreateMessage persists a message, filling ID and timestamps.
	CreateMessage(ctx context.Context, m *Message) error

	// Message returns the message with the given ID, or ErrNotFound.
	Message(ctx context.Context, id int64) (*Message, error)

	// ListMessages returns up to limit messages for the channel in ascending
	// creation order.
	ListMessages(ctx context.Context, channelID int64, limit int) ([]*Message, error)

	// InsertReaction upserts the (messageID, userID, emoji) row. It returns
	// true if a row was inserted, false if it already existed.
	InsertReaction(ctx context.Context, messageID, userID int64, emoji string) (bool, error)

	// DeleteReaction removes the row if present. It returns true if a row
	// was deleted, false if none existed.
	DeleteReaction(ctx context.Context, messageID, userID int64, emoji string) (bool, error)

	// ReactionCounts returns the current count-by-emoji map over all
	// reactions for the message.
	ReactionCounts(ctx context.Context, messageID int64) (map[string]int, error)

	// GroupedReactions returns the per-emoji grouped view (count plus the
	// names of the reacting users) for the message.
	GroupedReactions(ctx context.Context, messageID int64) ([]ReactionGroup, error)

	// SaveReactionSnapshot persists the denormalized emoji->count snapshot
	// on the message row.
	SaveReactionSnapshot(ctx context.Context, messageID int64, snapshot map[string]int) error

	// InsertMention records a mention if absent. It returns true if a row
	// was inserted, false if the pair already existed.
	InsertMention(ctx context.Context, messageID, userID int64) (bool, error)

	// InsertPin pins a message in its channel if not already pinned,
	// updating the message's denormalized pin fields. It returns true if
	// the pin was created.
	InsertPin(ctx context.Context, channelID, messageID, pinnedBy int64) (bool, error)

	// DeletePin removes an active pin, clearing the message's pin fields.
	// It returns true if a pin was removed.
	DeletePin(ctx context.Context, channelID, messageID int64) (bool, error)
}
