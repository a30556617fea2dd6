package moderation

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// MutePrefix is the Redis key prefix for mute records.
const MutePrefix = "mute:"

// muteGrace keeps an expired record around briefly so the lazy un-mute path
// is exercised deterministically instead of racing the Redis expiry.
const muteGrace = 1 * time.Minute

// MuteStore manages mute records in Redis. Each record is a hash:
//
//	Key:    mute:<userID>
//	Fields: until (unix seconds, 0 = indefinite), reason
//	TTL:    sanction window plus a small grace period
type MuteStore struct {
	client *redis.Client
}

// NewMuteStore creates a MuteStore using the provided Redis client.
func NewMuteStore(client *redis.Client) *MuteStore {
	return &MuteStore{client: client}
}

// Mute records a sanction on a user lasting until the given time. A zero
// until mutes indefinitely (no TTL); such records only go away via Clear.
func (s *MuteStore) Mute(ctx context.Context, userID int64, until time.Time, reason string) error {
	key := MutePrefix + strconv.FormatInt(userID, 10)

	var untilUnix int64
	if !until.IsZero() {
		untilUnix = until.Unix()
	}

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, "until", untilUnix, "reason", reason)
	if untilUnix > 0 {
		ttl := time.Until(until) + muteGrace
		if ttl < muteGrace {
			ttl = muteGrace
		}
		pipe.Expire(ctx, key, ttl)
	} else {
		pipe.Persist(ctx, key)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Check returns the user's mute state. A missing record means not muted.
// The until time is zero for indefinite mutes.
func (s *MuteStore) Check(ctx context.Context, userID int64) (bool, time.Time, string, error) {
	key := MutePrefix + strconv.FormatInt(userID, 10)

	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return false, time.Time{}, "", err
	}
	if len(fields) == 0 {
		return false, time.Time{}, "", nil
	}

	var until time.Time
	if untilUnix, _ := strconv.ParseInt(fields["until"], 10, 64); untilUnix > 0 {
		until = time.Unix(untilUnix, 0)
	}
	return true, until, fields["reason"], nil
}

// Clear removes the user's mute record immediately.
func (s *MuteStore) Clear(ctx context.Context, userID int64) error {
	key := MutePrefix + strconv.FormatInt(userID, 10)
	return s.client.Del(ctx, key).Err()
}
