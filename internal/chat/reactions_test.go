package chat

import (
	"context"
	"errors"
	"testing"
)

type reactionFixture struct {
	*serviceFixture
	reactions *Reactions
	messageID int64
}

func newReactionFixture(t *testing.T) *reactionFixture {
	t.Helper()
	f := newServiceFixture(t)

	m, err := f.svc.PostMessage(context.Background(), 1, f.member.ID, "react to me")
	if err != nil {
		t.Fatalf("seed message: %v", err)
	}
	f.bcast.events = nil

	return &reactionFixture{
		serviceFixture: f,
		reactions:      NewReactions(f.store, f.store, f.gate, f.bcast),
		messageID:      m.ID,
	}
}

func TestReactionAdd(t *testing.T) {
	f := newReactionFixture(t)
	ctx := context.Background()

	snapshot, err := f.reactions.Add(ctx, f.messageID, f.member.ID, "👍")
	if err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	if snapshot["👍"] != 1 {
		t.Errorf("expected snapshot {👍:1}, got %v", snapshot)
	}

	events := f.bcast.all()
	if len(events) != 1 || events[0].Type != "reaction_add" {
		t.Errorf("expected one reaction_add broadcast, got %v", events)
	}

	m, err := f.store.Message(ctx, f.messageID)
	if err != nil {
		t.Fatalf("Message() error: %v", err)
	}
	if m.Reactions["👍"] != 1 {
		t.Errorf("snapshot should be persisted on the message, got %v", m.Reactions)
	}
}

func TestReactionAdd_Idempotent(t *testing.T) {
	f := newReactionFixture(t)
	ctx := context.Background()

	if _, err := f.reactions.Add(ctx, f.messageID, f.member.ID, "👍"); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	before := len(f.bcast.all())

	snapshot, err := f.reactions.Add(ctx, f.messageID, f.member.ID, "👍")
	if err != nil {
		t.Fatalf("duplicate Add() error: %v", err)
	}
	if snapshot["👍"] != 1 {
		t.Errorf("duplicate add must not change the count, got %v", snapshot)
	}
	if len(f.bcast.all()) != before {
		t.Error("duplicate add must not broadcast")
	}
}

func TestReactionAdd_TwoUsers(t *testing.T) {
	f := newReactionFixture(t)
	ctx := context.Background()

	if _, err := f.reactions.Add(ctx, f.messageID, f.member.ID, "🎉"); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	snapshot, err := f.reactions.Add(ctx, f.messageID, f.admin.ID, "🎉")
	if err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	if snapshot["🎉"] != 2 {
		t.Errorf("expected count 2, got %v", snapshot)
	}
}

func TestReactionRemove_Nonexistent(t *testing.T) {
	f := newReactionFixture(t)

	snapshot, err := f.reactions.Remove(context.Background(), f.messageID, f.member.ID, "👍")
	if err != nil {
		t.Fatalf("Remove() of a nonexistent reaction should be a no-op, got: %v", err)
	}
	if len(snapshot) != 0 {
		t.Errorf("expected empty snapshot, got %v", snapshot)
	}
	if len(f.bcast.all()) != 0 {
		t.Error("no-op remove must not broadcast")
	}
}

func TestReactionRemove(t *testing.T) {
	f := newReactionFixture(t)
	ctx := context.Background()

	if _, err := f.reactions.Add(ctx, f.messageID, f.member.ID, "👍"); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	snapshot, err := f.reactions.Remove(ctx, f.messageID, f.member.ID, "👍")
	if err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	if snapshot["👍"] != 0 {
		t.Errorf("expected 👍 gone from snapshot, got %v", snapshot)
	}

	events := f.bcast.all()
	if events[len(events)-1].Type != "reaction_remove" {
		t.Errorf("expected reaction_remove broadcast, got %v", events)
	}
}

func TestReaction_NonMember(t *testing.T) {
	f := newReactionFixture(t)
	outsider := f.store.AddUser(&User{Name: "eve"})

	_, err := f.reactions.Add(context.Background(), f.messageID, outsider.ID, "👍")
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
}

func TestReaction_GateDenied(t *testing.T) {
	f := newReactionFixture(t)
	f.gate.err = ErrChannelLocked

	_, err := f.reactions.Add(context.Background(), f.messageID, f.member.ID, "👍")
	if !errors.Is(err, ErrChannelLocked) {
		t.Fatalf("expected ErrChannelLocked, got %v", err)
	}
	var chErr *ChannelError
	if !errors.As(err, &chErr) || chErr.ChannelID != 1 {
		t.Errorf("gate denial should carry channel 1, got %v", err)
	}
}

func TestReaction_InvalidEmoji(t *testing.T) {
	f := newReactionFixture(t)

	if _, err := f.reactions.Add(context.Background(), f.messageID, f.member.ID, ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty emoji, got %v", err)
	}
}

func TestReactionGrouped(t *testing.T) {
	f := newReactionFixture(t)
	ctx := context.Background()

	f.reactions.Add(ctx, f.messageID, f.member.ID, "🎉")
	f.reactions.Add(ctx, f.messageID, f.admin.ID, "🎉")
	f.reactions.Add(ctx, f.messageID, f.member.ID, "👍")

	groups, err := f.reactions.Grouped(ctx, f.messageID, f.member.ID)
	if err != nil {
		t.Fatalf("Grouped() error: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	for _, g := range groups {
		switch g.Emoji {
		case "🎉":
			if g.Count != 2 || len(g.Users) != 2 {
				t.Errorf("unexpected 🎉 group: %+v", g)
			}
		case "👍":
			if g.Count != 1 || len(g.Users) != 1 || g.Users[0] != "alice" {
				t.Errorf("unexpected 👍 group: %+v", g)
			}
		default:
			t.Errorf("unexpected emoji %q", g.Emoji)
		}
	}

	outsider := f.store.AddUser(&User{Name: "eve"})
	if _, err := f.reactions.Grouped(ctx, f.messageID, outsider.ID); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied for outsider, got %v", err)
	}
}
