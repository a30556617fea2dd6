package chat

import (
	"context"
	"errors"
	"regexp"

	"github.com/rs/zerolog/log"
)

// mentionPattern matches @name tokens in message bodies. Word characters
// only; punctuation terminates the token.
var mentionPattern = regexp.MustCompile(`@(\w+)`)

// MentionResolver scans message bodies for @name tokens, resolves them
// against the user directory by exact name match, and records mention rows.
// Resolution is best-effort: unmatched tokens are dropped and duplicate rows
// are ignored, never surfaced as errors.
type MentionResolver struct {
	store Store
	dir   Directory
}

// NewMentionResolver creates a resolver over the given store and directory.
func NewMentionResolver(store Store, dir Directory) *MentionResolver {
	return &MentionResolver{store: store, dir: dir}
}

// Resolve extracts distinct @name candidates from the message body, resolves
// each against the directory, and records a mention row per resolved user.
// It returns the resolved users so the caller can enrich the broadcast
// payload. Only storage failures are returned; unresolvable names are not
// errors.
func (r *MentionResolver) Resolve(ctx context.Context, m *Message) ([]User, error) {
	matches := mentionPattern.FindAllStringSubmatch(m.Body, -1)
	if len(matches) == 0 {
		return nil, nil
	}

	seen := make(map[string]struct{}, len(matches))
	var resolved []User
	for _, match := range matches {
		name := match[1]
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		user, err := r.dir.UserByName(ctx, name)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			log.Warn().Err(err).Str("name", name).Int64("message_id", m.ID).
				Msg("mention lookup failed")
			continue
		}

		inserted, err := r.store.InsertMention(ctx, m.ID, user.ID)
		if err != nil {
			return resolved, err
		}
		if !inserted {
			// Pair already recorded for this message; still report the user
			// so the broadcast payload stays complete.
			log.Debug().Int64("message_id", m.ID).Int64("user_id", user.ID).
				Msg("mention already recorded")
		}
		resolved = append(resolved, *user)
	}
	return resolved, nil
}
