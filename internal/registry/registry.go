// Package registry tracks which live WebSocket connections are subscribed to
// which chat channels, and which user owns each connection. It is pure
// in-memory bookkeeping: entries exist only for the lifetime of a socket and
// are rebuilt from zero on process start.
package registry

import "sync"

// Registry maps channels to live connection IDs, connection IDs to their
// subscribed channels, and connection IDs to their owning user. Connections
// are identified by opaque IDs assigned at accept time; the transport handle
// itself is never used as a map key.
type Registry struct {
	mu       sync.RWMutex
	channels map[int64]map[string]struct{} // channel ID -> set of connection IDs
	conns    map[string]map[int64]struct{} // connection ID -> set of channel IDs
	users    map[string]int64              // connection ID -> owning user ID
}

// New creates an empty Registry ready for use.
func New() *Registry {
	return &Registry{
		channels: make(map[int64]map[string]struct{}),
		conns:    make(map[string]map[int64]struct{}),
		users:    make(map[string]int64),
	}
}

// Subscribe records a connection in a channel's set, tracks the channel in
// the connection's subscription set, and remembers the owning user. Calling
// it twice for the same (connection, channel) pair is a no-op.
func (r *Registry) Subscribe(connID string, channelID, userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.channels[channelID]
	if !ok {
		set = make(map[string]struct{})
		r.channels[channelID] = set
	}
	set[connID] = struct{}{}

	subs, ok := r.conns[connID]
	if !ok {
		subs = make(map[int64]struct{})
		r.conns[connID] = subs
	}
	subs[channelID] = struct{}{}

	r.users[connID] = userID
}

// UnsubscribeAll removes the connection from every channel it was subscribed
// to and forgets its owning user. It returns the IDs of the channels the
// connection was subscribed to, so the caller can announce the departure.
// Channel sets that become empty are evicted entirely, keeping memory bounded
// by active subscriptions rather than historical high-water marks.
func (r *Registry) UnsubscribeAll(connID string) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs, ok := r.conns[connID]
	if !ok {
		delete(r.users, connID)
		return nil
	}

	left := make([]int64, 0, len(subs))
	for channelID := range subs {
		left = append(left, channelID)
		if set, ok := r.channels[channelID]; ok {
			delete(set, connID)
			if len(set) == 0 {
				delete(r.channels, channelID)
			}
		}
	}

	delete(r.conns, connID)
	delete(r.users, connID)
	return left
}

// ConnectionsFor returns a snapshot of the connection IDs currently
// subscribed to the channel. The returned slice is safe to iterate without
// holding any lock; an empty result is not an error.
func (r *Registry) ConnectionsFor(channelID int64) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.channels[channelID]
	if !ok {
		return nil
	}
	conns := make([]string, 0, len(set))
	for connID := range set {
		conns = append(conns, connID)
	}
	return conns
}

// OnlineUsers returns the deduplicated set of user IDs currently holding at
// least one live connection subscribed to the channel. It is a query over
// registry state, not cached, so it is always consistent with the registry
// at call time.
func (r *Registry) OnlineUsers(channelID int64) []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.channels[channelID]
	if !ok {
		return nil
	}
	seen := make(map[int64]struct{}, len(set))
	users := make([]int64, 0, len(set))
	for connID := range set {
		userID, ok := r.users[connID]
		if !ok {
			continue
		}
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}
		users = append(users, userID)
	}
	return users
}

// UserID returns the owning user of a connection, if the connection is known.
func (r *Registry) UserID(connID string) (int64, bool) {
	r.mu.RLock()
	userID, ok := r.users[connID]
	r.mu.RUnlock()
	return userID, ok
}

// Subscriptions returns a snapshot of the channels the connection is
// subscribed to.
func (r *Registry) Subscriptions(connID string) []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs, ok := r.conns[connID]
	if !ok {
		return nil
	}
	channels := make([]int64, 0, len(subs))
	for channelID := range subs {
		channels = append(channels, channelID)
	}
	return channels
}

// ChannelCount returns the number of channels with at least one live
// connection. Used by metrics.
func (r *Registry) ChannelCount() int {
	r.mu.RLock()
	n := len(r.channels)
	r.mu.RUnlock()
	return n
}
