// Package chat implements the channel messaging core: the domain model,
// the message/reaction/mention/pin services, and the persistence contract
// they run against. Connection tracking and broadcast fan-out live in their
// own packages; this package orchestrates them through narrow interfaces.
package chat

import "time"

// Channel kinds.
const (
	KindGeneral = "GENERAL"
	KindDirect  = "DIRECT"
)

// User roles.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Channel is a named or direct conversation scope containing messages and
// memberships. DIRECT channels have exactly two memberships and cannot
// accept new members.
type Channel struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Kind       string    `json:"kind"`
	IsLocked   bool      `json:"isLocked"`
	IsDisabled bool      `json:"isDisabled"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Membership grants a user read/write access to a channel. Its existence is
// the sole authorization gate; it is never created implicitly by posting.
type Membership struct {
	ChannelID int64     `json:"channelId"`
	UserID    int64     `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// User carries the identity and moderation-relevant state consulted by the
// messaging core. The wider platform owns the full user record.
type User struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Role       string     `json:"role"`
	IsMuted    bool       `json:"isMuted,omitempty"`
	MutedUntil *time.Time `json:"mutedUntil,omitempty"`
	MuteReason string     `json:"muteReason,omitempty"`
}

// IsAdmin reports whether the user holds the administrator role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Message is a persisted chat message. ChannelID and AuthorID are immutable
// after creation. Reactions is the denormalized emoji->count snapshot
// recomputed on every reaction add/remove.
type Message struct {
	ID        int64          `json:"id"`
	ChannelID int64          `json:"channelId"`
	AuthorID  int64          `json:"authorId"`
	Body      string         `json:"body"`
	ReplyToID *int64         `json:"replyToId,omitempty"`
	Reactions map[string]int `json:"reactions"`
	IsPinned  bool           `json:"isPinned"`
	PinnedBy  *int64         `json:"pinnedBy,omitempty"`
	PinnedAt  *time.Time     `json:"pinnedAt,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`

	// Enrichment, populated by the service layer. Not stored on the row.
	Author   *User  `json:"author,omitempty"`
	Mentions []User `json:"mentions,omitempty"`
}

// Reaction is a single emoji applied by a user to a message. The
// (messageId, userId, emoji) triple is unique: add is an upsert, remove is
// a delete.
type Reaction struct {
	ID        int64     `json:"id"`
	MessageID int64     `json:"messageId"`
	UserID    int64     `json:"userId"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"createdAt"`
}

// ReactionGroup is the grouped view of one emoji on a message, used by the
// REST reaction listing.
type ReactionGroup struct {
	Emoji string   `json:"emoji"`
	Count int      `json:"count"`
	Users []string `json:"users"`
}

// Mention records a reference from a message to a user resolved from @name
// text. The (messageId, mentionedUserId) pair is unique; duplicates are
// silently ignored at insert time.
type Mention struct {
	MessageID       int64     `json:"messageId"`
	MentionedUserID int64     `json:"mentionedUserId"`
	CreatedAt       time.Time `json:"createdAt"`
}

// PinnedMessage marks a message as pinned in its channel. A message has at
// most one active pin per channel at a time; pinning is admin-only.
type PinnedMessage struct {
	ChannelID int64     `json:"channelId"`
	MessageID int64     `json:"messageId"`
	PinnedBy  int64     `json:"pinnedBy"`
	CreatedAt time.Time `json:"createdAt"`
}
