package chat

import (
	"context"
	"testing"
)

func newMentionFixture(t *testing.T) (*MemStore, *MentionResolver) {
	t.Helper()
	store := NewMemStore()
	store.AddUser(&User{Name: "alice"})
	store.AddUser(&User{Name: "bob"})
	return store, NewMentionResolver(store, store)
}

func TestResolve(t *testing.T) {
	store, resolver := newMentionFixture(t)

	m := &Message{ID: 1, Body: "hey @alice check this"}
	users, err := resolver.Resolve(context.Background(), m)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if len(users) != 1 || users[0].Name != "alice" {
		t.Fatalf("expected alice resolved, got %v", users)
	}
	if store.MentionCount() != 1 {
		t.Errorf("expected one mention row, got %d", store.MentionCount())
	}
}

func TestResolve_MultipleAndUnknown(t *testing.T) {
	store, resolver := newMentionFixture(t)

	m := &Message{ID: 1, Body: "@alice and @bob, not @carol"}
	users, err := resolver.Resolve(context.Background(), m)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected alice and bob, got %v", users)
	}
	if store.MentionCount() != 2 {
		t.Errorf("unknown names must not create mention rows, got %d", store.MentionCount())
	}
}

func TestResolve_DuplicateTokensOnce(t *testing.T) {
	store, resolver := newMentionFixture(t)

	m := &Message{ID: 1, Body: "@alice @alice @alice"}
	users, err := resolver.Resolve(context.Background(), m)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if len(users) != 1 {
		t.Errorf("duplicate tokens should resolve once, got %v", users)
	}
	if store.MentionCount() != 1 {
		t.Errorf("expected one mention row, got %d", store.MentionCount())
	}
}

func TestResolve_SameUserAcrossMessages(t *testing.T) {
	store, resolver := newMentionFixture(t)
	ctx := context.Background()

	for _, m := range []*Message{
		{ID: 1, Body: "ping @alice"},
		{ID: 2, Body: "ping @alice again"},
	} {
		users, err := resolver.Resolve(ctx, m)
		if err != nil {
			t.Fatalf("Resolve(message %d) error: %v", m.ID, err)
		}
		if len(users) != 1 || users[0].Name != "alice" {
			t.Fatalf("expected alice resolved on message %d, got %v", m.ID, users)
		}
	}
	// Dedup is per message, so each message gets its own row.
	if store.MentionCount() != 2 {
		t.Errorf("expected a mention row per message, got %d", store.MentionCount())
	}
}

func TestResolve_NoMentions(t *testing.T) {
	_, resolver := newMentionFixture(t)

	users, err := resolver.Resolve(context.Background(), &Message{ID: 1, Body: "plain text"})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if users != nil {
		t.Errorf("expected nil, got %v", users)
	}
}

func TestResolve_PunctuationTerminatesToken(t *testing.T) {
	store, resolver := newMentionFixture(t)

	m := &Message{ID: 1, Body: "thanks @alice!"}
	users, err := resolver.Resolve(context.Background(), m)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if len(users) != 1 || users[0].Name != "alice" {
		t.Fatalf("expected alice resolved despite trailing punctuation, got %v", users)
	}
	if store.MentionCount() != 1 {
		t.Errorf("expected one mention row, got %d", store.MentionCount())
	}
}
