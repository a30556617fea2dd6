package moderation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/trackline/chat-core/internal/chat"
)

// fakeMutes is an in-memory MuteState for policy tests.
type fakeMutes struct {
	muted   map[int64]time.Time
	reasons map[int64]string
	cleared []int64
}

func newFakeMutes() *fakeMutes {
	return &fakeMutes{
		muted:   make(map[int64]time.Time),
		reasons: make(map[int64]string),
	}
}

func (f *fakeMutes) Check(ctx context.Context, userID int64) (bool, time.Time, string, error) {
	until, ok := f.muted[userID]
	if !ok {
		return false, time.Time{}, "", nil
	}
	return true, until, f.reasons[userID], nil
}

func (f *fakeMutes) Clear(ctx context.Context, userID int64) error {
	delete(f.muted, userID)
	delete(f.reasons, userID)
	f.cleared = append(f.cleared, userID)
	return nil
}

func member(id int64) *chat.User {
	return &chat.User{ID: id, Name: "member", Role: chat.RoleMember}
}

func admin(id int64) *chat.User {
	return &chat.User{ID: id, Name: "admin", Role: chat.RoleAdmin}
}

func TestCanPost_CleanUserOpenChannel(t *testing.T) {
	p := NewPolicy(newFakeMutes())
	ch := &chat.Channel{ID: 7}

	if err := p.CanPost(context.Background(), member(1), ch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCanPost_MutedUser(t *testing.T) {
	mutes := newFakeMutes()
	mutes.muted[5] = time.Now().Add(10 * time.Minute)
	mutes.reasons[5] = "spam"
	p := NewPolicy(mutes)

	u := member(5)
	err := p.CanPost(context.Background(), u, &chat.Channel{ID: 7})
	if !errors.Is(err, chat.ErrUserMuted) {
		t.Fatalf("expected ErrUserMuted, got %v", err)
	}
	if !u.IsMuted || u.MuteReason != "spam" {
		t.Errorf("expected mute state reflected on user, got muted=%v reason=%q", u.IsMuted, u.MuteReason)
	}
}

func TestCanPost_ExpiredMuteIsLazilyCleared(t *testing.T) {
	mutes := newFakeMutes()
	mutes.muted[5] = time.Now().Add(-24 * time.Hour) // mutedUntil = yesterday
	p := NewPolicy(mutes)

	if err := p.CanPost(context.Background(), member(5), &chat.Channel{ID: 7}); err != nil {
		t.Fatalf("expected post to succeed after lazy un-mute, got %v", err)
	}
	if len(mutes.cleared) != 1 || mutes.cleared[0] != 5 {
		t.Fatalf("expected persisted un-mute for user 5, got cleared=%v", mutes.cleared)
	}
}

func TestCanPost_IndefiniteMuteNeverExpires(t *testing.T) {
	mutes := newFakeMutes()
	mutes.muted[5] = time.Time{} // zero until = indefinite
	p := NewPolicy(mutes)

	err := p.CanPost(context.Background(), member(5), &chat.Channel{ID: 7})
	if !errors.Is(err, chat.ErrUserMuted) {
		t.Fatalf("expected ErrUserMuted for indefinite mute, got %v", err)
	}
	if len(mutes.cleared) != 0 {
		t.Errorf("indefinite mute must not be lazily cleared")
	}
}

func TestCanPost_DisabledChannel(t *testing.T) {
	p := NewPolicy(newFakeMutes())
	ch := &chat.Channel{ID: 7, IsDisabled: true}

	if err := p.CanPost(context.Background(), member(1), ch); !errors.Is(err, chat.ErrChatDisabled) {
		t.Fatalf("expected ErrChatDisabled for member, got %v", err)
	}
	if err := p.CanPost(context.Background(), admin(2), ch); err != nil {
		t.Fatalf("expected admin to bypass disabled flag, got %v", err)
	}
}

func TestCanPost_LockedChannel(t *testing.T) {
	p := NewPolicy(newFakeMutes())
	ch := &chat.Channel{ID: 7, IsLocked: true}

	if err := p.CanPost(context.Background(), member(1), ch); !errors.Is(err, chat.ErrChannelLocked) {
		t.Fatalf("expected ErrChannelLocked for member, got %v", err)
	}
	if err := p.CanPost(context.Background(), admin(2), ch); err != nil {
		t.Fatalf("expected admin to bypass locked flag, got %v", err)
	}
}

func TestCanPost_DisabledTakesPrecedenceOverLocked(t *testing.T) {
	p := NewPolicy(newFakeMutes())
	ch := &chat.Channel{ID: 7, IsLocked: true, IsDisabled: true}

	if err := p.CanPost(context.Background(), member(1), ch); !errors.Is(err, chat.ErrChatDisabled) {
		t.Fatalf("expected ErrChatDisabled to win over ErrChannelLocked, got %v", err)
	}
}

func TestCanPost_MutedAdminIsStillBlocked(t *testing.T) {
	mutes := newFakeMutes()
	mutes.muted[9] = time.Now().Add(time.Hour)
	p := NewPolicy(mutes)
	ch := &chat.Channel{ID: 7, IsLocked: true}

	// Mute is a user-level sanction checked before any channel flag; the
	// admin role does not bypass it.
	if err := p.CanPost(context.Background(), admin(9), ch); !errors.Is(err, chat.ErrUserMuted) {
		t.Fatalf("expected muted admin to be blocked, got %v", err)
	}
}
