package broadcast

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/trackline/chat-core/internal/protocol"
	"github.com/trackline/chat-core/internal/registry"
)

// captureSink records every frame sent to each connection.
type captureSink struct {
	mu     sync.Mutex
	frames map[string][][]byte
	fail   map[string]bool
}

func newCaptureSink() *captureSink {
	return &captureSink{
		frames: make(map[string][][]byte),
		fail:   make(map[string]bool),
	}
}

func (s *captureSink) Send(connID string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[connID] {
		return errors.New("connection gone")
	}
	s.frames[connID] = append(s.frames[connID], data)
	return nil
}

func (s *captureSink) count(connID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames[connID])
}

func (s *captureSink) last(connID string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	frames := s.frames[connID]
	if len(frames) == 0 {
		return nil
	}
	return frames[len(frames)-1]
}

func TestBroadcast_OnlySubscribedConnections(t *testing.T) {
	reg := registry.New()
	reg.Subscribe("conn-a", 7, 1)
	reg.Subscribe("conn-b", 7, 2)
	reg.Subscribe("conn-c", 9, 3)

	sink := newCaptureSink()
	d := NewDispatcher(reg, sink)

	err := d.Broadcast(7, protocol.TypeMessage, protocol.MessageMsg{ChannelID: 7})
	if err != nil {
		t.Fatalf("Broadcast() error: %v", err)
	}

	if sink.count("conn-a") != 1 || sink.count("conn-b") != 1 {
		t.Errorf("expected one frame for conn-a and conn-b, got %d and %d",
			sink.count("conn-a"), sink.count("conn-b"))
	}
	if sink.count("conn-c") != 0 {
		t.Errorf("conn-c subscribed to channel 9 should not receive channel 7 events")
	}
}

func TestBroadcast_FrameShape(t *testing.T) {
	reg := registry.New()
	reg.Subscribe("conn-a", 7, 1)

	sink := newCaptureSink()
	d := NewDispatcher(reg, sink)

	if err := d.Broadcast(7, protocol.TypeUserJoined, protocol.UserJoinedMsg{
		ChannelID:   7,
		UserID:      1,
		UserName:    "alice",
		UserRole:    "member",
		OnlineUsers: []int64{1},
	}); err != nil {
		t.Fatalf("Broadcast() error: %v", err)
	}

	var got map[string]interface{}
	if err := json.Unmarshal(sink.last("conn-a"), &got); err != nil {
		t.Fatalf("frame is not valid JSON: %v", err)
	}
	if got["type"] != protocol.TypeUserJoined {
		t.Errorf("expected type=%q, got %v", protocol.TypeUserJoined, got["type"])
	}
	if got["userName"] != "alice" {
		t.Errorf("expected userName=alice, got %v", got["userName"])
	}
}

func TestBroadcast_SendFailureDoesNotStopFanout(t *testing.T) {
	reg := registry.New()
	reg.Subscribe("conn-dead", 7, 1)
	reg.Subscribe("conn-live", 7, 2)

	sink := newCaptureSink()
	sink.fail["conn-dead"] = true
	d := NewDispatcher(reg, sink)

	if err := d.Broadcast(7, protocol.TypeMessage, protocol.MessageMsg{ChannelID: 7}); err != nil {
		t.Fatalf("Broadcast() error: %v", err)
	}
	if sink.count("conn-live") != 1 {
		t.Errorf("live connection should still receive the frame")
	}
}

func TestBroadcast_EmptyChannel(t *testing.T) {
	d := NewDispatcher(registry.New(), newCaptureSink())
	if err := d.Broadcast(42, protocol.TypeMessage, protocol.MessageMsg{ChannelID: 42}); err != nil {
		t.Fatalf("broadcast to empty channel should succeed, got: %v", err)
	}
}
