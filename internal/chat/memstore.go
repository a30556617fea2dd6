package chat

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemStore is an in-memory implementation of Store and Directory. It backs
// the test suite and local development without a PostgreSQL instance; the
// single mutex stands in for the database's row-level guarantees.
type MemStore struct {
	mu         sync.Mutex
	nextUserID int64
	nextChanID int64
	nextMsgID  int64
	nextReacID int64

	users     map[int64]*User
	channels  map[int64]*Channel
	members   map[int64]map[int64]struct{} // channel ID -> user IDs
	messages  map[int64]*Message
	reactions []Reaction
	mentions  map[[2]int64]struct{} // (message ID, user ID)
	pins      map[[2]int64]int64    // (channel ID, message ID) -> pinned_by
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		users:    make(map[int64]*User),
		channels: make(map[int64]*Channel),
		members:  make(map[int64]map[int64]struct{}),
		messages: make(map[int64]*Message),
		mentions: make(map[[2]int64]struct{}),
		pins:     make(map[[2]int64]int64),
	}
}

// AddUser inserts a user record, assigning an ID if unset.
func (s *MemStore) AddUser(u *User) *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		s.nextUserID++
		u.ID = s.nextUserID
	} else if u.ID > s.nextUserID {
		s.nextUserID = u.ID
	}
	if u.Role == "" {
		u.Role = RoleMember
	}
	s.users[u.ID] = u
	return u
}

// User returns the user with the given ID.
func (s *MemStore) User(ctx context.Context, id int64) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, id)
	}
	cp := *u
	return &cp, nil
}

// UserByName returns the user with the given exact name.
func (s *MemStore) UserByName(ctx context.Context, name string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Name == name {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: user %q", ErrNotFound, name)
}

// Channel returns the channel with the given ID.
func (s *MemStore) Channel(ctx context.Context, id int64) (*Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[id]
	if !ok {
		return nil, fmt.Errorf("%w: channel %d", ErrNotFound, id)
	}
	cp := *ch
	return &cp, nil
}

// SetChannelFlags updates lock/disable flags, for moderation scenarios.
func (s *MemStore) SetChannelFlags(id int64, locked, disabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.channels[id]; ok {
		ch.IsLocked = locked
		ch.IsDisabled = disabled
	}
}

// CreateChannel persists a channel and its initial memberships.
func (s *MemStore) CreateChannel(ctx context.Context, ch *Channel, memberIDs []int64) error {
	if ch.Kind == "" {
		ch.Kind = KindGeneral
	}
	if ch.Kind == KindDirect && len(memberIDs) != 2 {
		return fmt.Errorf("%w: direct channels require exactly two members", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ch.ID == 0 {
		s.nextChanID++
		ch.ID = s.nextChanID
	} else if ch.ID > s.nextChanID {
		s.nextChanID = ch.ID
	}
	now := time.Now()
	ch.CreatedAt, ch.UpdatedAt = now, now
	cp := *ch
	s.channels[ch.ID] = &cp
	set := make(map[int64]struct{}, len(memberIDs))
	for _, userID := range memberIDs {
		set[userID] = struct{}{}
	}
	s.members[ch.ID] = set
	return nil
}

// IsMember reports whether the user holds a membership for the channel.
func (s *MemStore) IsMember(ctx context.Context, channelID, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.members[channelID]
	if !ok {
		return false, nil
	}
	_, member := set[userID]
	return member, nil
}

// AddMember creates a membership. DIRECT channels never accept new members.
func (s *MemStore) AddMember(ctx context.Context, channelID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[channelID]
	if !ok {
		return fmt.Errorf("%w: channel %d", ErrNotFound, channelID)
	}
	if ch.Kind == KindDirect {
		return fmt.Errorf("%w: direct channels cannot accept new members", ErrInvalidInput)
	}
	set, ok := s.members[channelID]
	if !ok {
		set = make(map[int64]struct{})
		s.members[channelID] = set
	}
	set[userID] = struct{}{}
	return nil
}

// CreateMessage persists a message, filling ID and timestamps.
func (s *MemStore) CreateMessage(ctx context.Context, m *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextMsgID++
	m.ID = s.nextMsgID
	now := time.Now()
	m.CreatedAt, m.UpdatedAt = now, now
	if m.Reactions == nil {
		m.Reactions = map[string]int{}
	}
	cp := *m
	cp.Author = nil
	cp.Mentions = nil
	s.messages[m.ID] = &cp
	return nil
}

// Message returns the message with the given ID.
func (s *MemStore) Message(ctx context.Context, id int64) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, fmt.Errorf("%w: message %d", ErrNotFound, id)
	}
	return copyMessage(m), nil
}

// ListMessages returns up to limit messages in ascending creation order.
func (s *MemStore) ListMessages(ctx context.Context, channelID int64, limit int) ([]*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var msgs []*Message
	for _, m := range s.messages {
		if m.ChannelID == channelID {
			msgs = append(msgs, copyMessage(m))
		}
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ID < msgs[j].ID })
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

// InsertReaction upserts the (messageID, userID, emoji) row.
func (s *MemStore) InsertReaction(ctx context.Context, messageID, userID int64, emoji string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reactions {
		if r.MessageID == messageID && r.UserID == userID && r.Emoji == emoji {
			return false, nil
		}
	}
	s.nextReacID++
	s.reactions = append(s.reactions, Reaction{
		ID:        s.nextReacID,
		MessageID: messageID,
		UserID:    userID,
		Emoji:     emoji,
		CreatedAt: time.Now(),
	})
	return true, nil
}

// DeleteReaction removes the row if present.
func (s *MemStore) DeleteReaction(ctx context.Context, messageID, userID int64, emoji string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.reactions {
		if r.MessageID == messageID && r.UserID == userID && r.Emoji == emoji {
			s.reactions = append(s.reactions[:i], s.reactions[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// ReactionCounts returns the count-by-emoji map for the message.
func (s *MemStore) ReactionCounts(ctx context.Context, messageID int64) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[string]int{}
	for _, r := range s.reactions {
		if r.MessageID == messageID {
			counts[r.Emoji]++
		}
	}
	return counts, nil
}

// GroupedReactions returns the per-emoji grouped view for the message.
func (s *MemStore) GroupedReactions(ctx context.Context, messageID int64) ([]ReactionGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		groups []ReactionGroup
		index  = map[string]int{}
	)
	for _, r := range s.reactions {
		if r.MessageID != messageID {
			continue
		}
		name := fmt.Sprintf("user-%d", r.UserID)
		if u, ok := s.users[r.UserID]; ok {
			name = u.Name
		}
		i, ok := index[r.Emoji]
		if !ok {
			i = len(groups)
			index[r.Emoji] = i
			groups = append(groups, ReactionGroup{Emoji: r.Emoji})
		}
		groups[i].Count++
		groups[i].Users = append(groups[i].Users, name)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Emoji < groups[j].Emoji })
	return groups, nil
}

// SaveReactionSnapshot persists the snapshot on the message.
func (s *MemStore) SaveReactionSnapshot(ctx context.Context, messageID int64, snapshot map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[messageID]
	if !ok {
		return fmt.Errorf("%w: message %d", ErrNotFound, messageID)
	}
	cp := make(map[string]int, len(snapshot))
	for k, v := range snapshot {
		cp[k] = v
	}
	m.Reactions = cp
	m.UpdatedAt = time.Now()
	return nil
}

// InsertMention records a mention if absent.
func (s *MemStore) InsertMention(ctx context.Context, messageID, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]int64{messageID, userID}
	if _, ok := s.mentions[key]; ok {
		return false, nil
	}
	s.mentions[key] = struct{}{}
	return true, nil
}

// MentionCount returns the number of recorded mentions, for tests.
func (s *MemStore) MentionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.mentions)
}

// InsertPin pins a message if not already pinned.
func (s *MemStore) InsertPin(ctx context.Context, channelID, messageID, pinnedBy int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]int64{channelID, messageID}
	if _, ok := s.pins[key]; ok {
		return false, nil
	}
	s.pins[key] = pinnedBy
	if m, ok := s.messages[messageID]; ok {
		now := time.Now()
		m.IsPinned = true
		m.PinnedBy = &pinnedBy
		m.PinnedAt = &now
		m.UpdatedAt = now
	}
	return true, nil
}

// DeletePin removes an active pin.
func (s *MemStore) DeletePin(ctx context.Context, channelID, messageID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]int64{channelID, messageID}
	if _, ok := s.pins[key]; !ok {
		return false, nil
	}
	delete(s.pins, key)
	if m, ok := s.messages[messageID]; ok {
		m.IsPinned = false
		m.PinnedBy = nil
		m.PinnedAt = nil
		m.UpdatedAt = time.Now()
	}
	return true, nil
}

// MessageCount returns the number of stored messages, for tests.
func (s *MemStore) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func copyMessage(m *Message) *Message {
	cp := *m
	cp.Reactions = make(map[string]int, len(m.Reactions))
	for k, v := range m.Reactions {
		cp.Reactions[k] = v
	}
	return &cp
}
