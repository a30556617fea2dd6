package main

import (
	"net"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/trackline/chat-core/internal/registry"
	"github.com/trackline/chat-core/internal/ws"
)

func newTestConn(t *testing.T) *ws.Connection {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close() })
	return &ws.Connection{
		ID:        uuid.New().String(),
		UserID:    7,
		Conn:      server,
		Fd:        -1,
		CreatedAt: time.Now(),
	}
}

func TestSubscribeIfLive(t *testing.T) {
	reg := registry.New()
	conns := ws.NewConnectionManager()
	conn := newTestConn(t)
	conns.Add(conn)

	if !subscribeIfLive(reg, conns, conn.ID, 1, conn.UserID) {
		t.Fatal("expected subscription for a live connection")
	}
	if subs := reg.Subscriptions(conn.ID); len(subs) != 1 || subs[0] != 1 {
		t.Fatalf("expected subscription to channel 1, got %v", subs)
	}
}

func TestSubscribeIfLive_EvictedDuringJoin(t *testing.T) {
	reg := registry.New()
	conns := ws.NewConnectionManager()
	conn := newTestConn(t)
	conns.Add(conn)

	// The heartbeat evicted the connection while the join's membership
	// lookups were in flight. The manager drops it before the disconnect
	// callback runs UnsubscribeAll, so a subscription recorded now would
	// outlive the connection.
	conns.Remove(conn.ID)
	reg.UnsubscribeAll(conn.ID)

	if subscribeIfLive(reg, conns, conn.ID, 1, conn.UserID) {
		t.Fatal("expected subscription to be refused for an evicted connection")
	}
	if subs := reg.Subscriptions(conn.ID); len(subs) != 0 {
		t.Fatalf("evicted connection must hold no subscriptions, got %v", subs)
	}
	if users := reg.OnlineUsers(1); len(users) != 0 {
		t.Fatalf("evicted connection must not appear online, got %v", users)
	}
}
