package registry

import (
	"sort"
	"testing"
)

func sortedInt64(s []int64) []int64 {
	out := append([]int64(nil), s...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func TestSubscribeAndConnectionsFor(t *testing.T) {
	r := New()

	r.Subscribe("conn-a", 7, 1)
	r.Subscribe("conn-b", 7, 2)
	r.Subscribe("conn-c", 9, 3)

	conns := r.ConnectionsFor(7)
	if len(conns) != 2 {
		t.Fatalf("expected 2 connections in channel 7, got %d", len(conns))
	}

	conns = r.ConnectionsFor(9)
	if len(conns) != 1 || conns[0] != "conn-c" {
		t.Fatalf("expected [conn-c] in channel 9, got %v", conns)
	}

	// Unknown channel is an empty result, not an error.
	if conns := r.ConnectionsFor(999); len(conns) != 0 {
		t.Errorf("expected empty set for unknown channel, got %v", conns)
	}
}

func TestSubscribeIdempotent(t *testing.T) {
	r := New()

	r.Subscribe("conn-a", 7, 1)
	r.Subscribe("conn-a", 7, 1)

	if conns := r.ConnectionsFor(7); len(conns) != 1 {
		t.Fatalf("expected 1 connection after duplicate subscribe, got %d", len(conns))
	}
	if subs := r.Subscriptions("conn-a"); len(subs) != 1 {
		t.Fatalf("expected 1 subscription after duplicate subscribe, got %d", len(subs))
	}
}

func TestUnsubscribeAll(t *testing.T) {
	r := New()

	r.Subscribe("conn-a", 7, 1)
	r.Subscribe("conn-a", 9, 1)
	r.Subscribe("conn-b", 7, 2)

	left := sortedInt64(r.UnsubscribeAll("conn-a"))
	if len(left) != 2 || left[0] != 7 || left[1] != 9 {
		t.Fatalf("expected channels [7 9], got %v", left)
	}

	if conns := r.ConnectionsFor(7); len(conns) != 1 || conns[0] != "conn-b" {
		t.Errorf("expected only conn-b left in channel 7, got %v", conns)
	}
	if conns := r.ConnectionsFor(9); len(conns) != 0 {
		t.Errorf("expected channel 9 to be empty, got %v", conns)
	}
	if _, ok := r.UserID("conn-a"); ok {
		t.Error("expected owning user to be forgotten after UnsubscribeAll")
	}

	// Unknown connection is a no-op.
	if left := r.UnsubscribeAll("conn-x"); left != nil {
		t.Errorf("expected nil for unknown connection, got %v", left)
	}
}

func TestEmptyChannelEviction(t *testing.T) {
	r := New()

	r.Subscribe("conn-a", 7, 1)
	r.UnsubscribeAll("conn-a")

	// The channel set must be evicted entirely once empty, so memory is
	// bounded by active subscriptions.
	if n := r.ChannelCount(); n != 0 {
		t.Fatalf("expected 0 tracked channels after eviction, got %d", n)
	}
}

func TestOnlineUsersDeduplicates(t *testing.T) {
	r := New()

	// User 1 holds two live connections in channel 7.
	r.Subscribe("conn-a", 7, 1)
	r.Subscribe("conn-b", 7, 1)
	r.Subscribe("conn-c", 7, 2)

	users := sortedInt64(r.OnlineUsers(7))
	if len(users) != 2 || users[0] != 1 || users[1] != 2 {
		t.Fatalf("expected online users [1 2], got %v", users)
	}

	// Dropping one of user 1's connections keeps them online.
	r.UnsubscribeAll("conn-a")
	users = sortedInt64(r.OnlineUsers(7))
	if len(users) != 2 {
		t.Fatalf("expected user 1 still online via conn-b, got %v", users)
	}

	// Dropping the last one removes them.
	r.UnsubscribeAll("conn-b")
	users = r.OnlineUsers(7)
	if len(users) != 1 || users[0] != 2 {
		t.Fatalf("expected only user 2 online, got %v", users)
	}
}

func TestOnlineUsersUnknownChannel(t *testing.T) {
	r := New()
	if users := r.OnlineUsers(123); len(users) != 0 {
		t.Errorf("expected no online users for unknown channel, got %v", users)
	}
}
