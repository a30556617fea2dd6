package chat

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	pgmigrate "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements Store and Directory on top of PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects to PostgreSQL with the given DSN and verifies the
// connection.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("chat: open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("chat: postgres ping: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStore wraps an existing database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate applies the embedded schema migrations.
func (s *PostgresStore) Migrate() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("chat: load migrations: %w", err)
	}
	driver, err := pgmigrate.WithInstance(s.db, &pgmigrate.Config{})
	if err != nil {
		return fmt.Errorf("chat: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("chat: init migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("chat: apply migrations: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// Directory
// ---------------------------------------------------------------------------

// User returns the user with the given ID.
func (s *PostgresStore) User(ctx context.Context, id int64) (*User, error) {
	const query = `SELECT id, name, role FROM users WHERE id = $1`

	var u User
	err := s.db.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.Name, &u.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("chat: query user: %w", err)
	}
	return &u, nil
}

// UserByName returns the user with the given exact name.
func (s *PostgresStore) UserByName(ctx context.Context, name string) (*User, error) {
	const query = `SELECT id, name, role FROM users WHERE name = $1`

	var u User
	err := s.db.QueryRowContext(ctx, query, name).Scan(&u.ID, &u.Name, &u.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("chat: query user by name: %w", err)
	}
	return &u, nil
}

// CreateUser inserts a user record. Exposed for provisioning and tests; the
// wider platform normally owns user creation.
func (s *PostgresStore) CreateUser(ctx context.Context, u *User) error {
	const query = `
		INSERT INTO users (name, role)
		VALUES ($1, $2)
		RETURNING id, created_at`

	if u.Role == "" {
		u.Role = RoleMember
	}
	var createdAt sql.NullTime
	if err := s.db.QueryRowContext(ctx, query, u.Name, u.Role).Scan(&u.ID, &createdAt); err != nil {
		return fmt.Errorf("chat: insert user: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Channels and memberships
// ---------------------------------------------------------------------------

// Channel returns the channel with the given ID.
func (s *PostgresStore) Channel(ctx context.Context, id int64) (*Channel, error) {
	const query = `
		SELECT id, name, kind, is_locked, is_disabled, created_at, updated_at
		FROM channels WHERE id = $1`

	var ch Channel
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&ch.ID, &ch.Name, &ch.Kind, &ch.IsLocked, &ch.IsDisabled, &ch.CreatedAt, &ch.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: channel %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("chat: query channel: %w", err)
	}
	return &ch, nil
}

// CreateChannel persists a channel and its initial memberships in one
// transaction. DIRECT channels require exactly two members.
func (s *PostgresStore) CreateChannel(ctx context.Context, ch *Channel, memberIDs []int64) error {
	if ch.Kind == "" {
		ch.Kind = KindGeneral
	}
	if ch.Kind == KindDirect && len(memberIDs) != 2 {
		return fmt.Errorf("%w: direct channels require exactly two members", ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("chat: begin tx: %w", err)
	}
	defer tx.Rollback()

	const insertChannel = `
		INSERT INTO channels (name, kind, is_locked, is_disabled)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`
	if err := tx.QueryRowContext(ctx, insertChannel, ch.Name, ch.Kind, ch.IsLocked, ch.IsDisabled).
		Scan(&ch.ID, &ch.CreatedAt, &ch.UpdatedAt); err != nil {
		return fmt.Errorf("chat: insert channel: %w", err)
	}

	const insertMember = `INSERT INTO memberships (channel_id, user_id) VALUES ($1, $2)`
	for _, userID := range memberIDs {
		if _, err := tx.ExecContext(ctx, insertMember, ch.ID, userID); err != nil {
			return fmt.Errorf("chat: insert membership: %w", err)
		}
	}

	return tx.Commit()
}

// IsMember reports whether the user holds a membership for the channel.
func (s *PostgresStore) IsMember(ctx context.Context, channelID, userID int64) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM memberships WHERE channel_id = $1 AND user_id = $2
		)`

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, channelID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("chat: query membership: %w", err)
	}
	return exists, nil
}

// AddMember creates a membership. DIRECT channels never accept new members.
func (s *PostgresStore) AddMember(ctx context.Context, channelID, userID int64) error {
	ch, err := s.Channel(ctx, channelID)
	if err != nil {
		return err
	}
	if ch.Kind == KindDirect {
		return fmt.Errorf("%w: direct channels cannot accept new members", ErrInvalidInput)
	}

	const query = `
		INSERT INTO memberships (channel_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (channel_id, user_id) DO NOTHING`
	if _, err := s.db.ExecContext(ctx, query, channelID, userID); err != nil {
		return fmt.Errorf("chat: insert membership: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Messages
// ---------------------------------------------------------------------------

// CreateMessage persists a message, filling ID and timestamps.
func (s *PostgresStore) CreateMessage(ctx context.Context, m *Message) error {
	const query = `
		INSERT INTO messages (channel_id, author_id, body, reply_to_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	err := s.db.QueryRowContext(ctx, query, m.ChannelID, m.AuthorID, m.Body, m.ReplyToID).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("chat: insert message: %w", err)
	}
	if m.Reactions == nil {
		m.Reactions = map[string]int{}
	}
	return nil
}

// Message returns the message with the given ID.
func (s *PostgresStore) Message(ctx context.Context, id int64) (*Message, error) {
	const query = `
		SELECT id, channel_id, author_id, body, reply_to_id, reactions,
		       is_pinned, pinned_by, pinned_at, created_at, updated_at
		FROM messages WHERE id = $1`

	m, err := scanMessage(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: message %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("chat: query message: %w", err)
	}
	return m, nil
}

// ListMessages returns up to limit messages for the channel in ascending
// creation order.
func (s *PostgresStore) ListMessages(ctx context.Context, channelID int64, limit int) ([]*Message, error) {
	const query = `
		SELECT id, channel_id, author_id, body, reply_to_id, reactions,
		       is_pinned, pinned_by, pinned_at, created_at, updated_at
		FROM (
			SELECT * FROM messages
			WHERE channel_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, channelID, limit)
	if err != nil {
		return nil, fmt.Errorf("chat: list messages: %w", err)
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("chat: scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chat: list messages: %w", err)
	}
	return msgs, nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanMessage.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(row scanner) (*Message, error) {
	var (
		m            Message
		replyToID    sql.NullInt64
		reactionsRaw []byte
		pinnedBy     sql.NullInt64
		pinnedAt     sql.NullTime
	)
	err := row.Scan(&m.ID, &m.ChannelID, &m.AuthorID, &m.Body, &replyToID, &reactionsRaw,
		&m.IsPinned, &pinnedBy, &pinnedAt, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if replyToID.Valid {
		m.ReplyToID = &replyToID.Int64
	}
	if pinnedBy.Valid {
		m.PinnedBy = &pinnedBy.Int64
	}
	if pinnedAt.Valid {
		m.PinnedAt = &pinnedAt.Time
	}
	m.Reactions = map[string]int{}
	if len(reactionsRaw) > 0 {
		if err := json.Unmarshal(reactionsRaw, &m.Reactions); err != nil {
			return nil, fmt.Errorf("decode reactions snapshot: %w", err)
		}
	}
	return &m, nil
}

// ---------------------------------------------------------------------------
// Reactions
// ---------------------------------------------------------------------------

// InsertReaction upserts the (messageID, userID, emoji) row.
func (s *PostgresStore) InsertReaction(ctx context.Context, messageID, userID int64, emoji string) (bool, error) {
	const query = `
		INSERT INTO reactions (message_id, user_id, emoji)
		VALUES ($1, $2, $3)
		ON CONFLICT (message_id, user_id, emoji) DO NOTHING`

	res, err := s.db.ExecContext(ctx, query, messageID, userID, emoji)
	if err != nil {
		return false, fmt.Errorf("chat: insert reaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("chat: insert reaction: %w", err)
	}
	return n > 0, nil
}

// DeleteReaction removes the (messageID, userID, emoji) row if present.
func (s *PostgresStore) DeleteReaction(ctx context.Context, messageID, userID int64, emoji string) (bool, error) {
	const query = `
		DELETE FROM reactions
		WHERE message_id = $1 AND user_id = $2 AND emoji = $3`

	res, err := s.db.ExecContext(ctx, query, messageID, userID, emoji)
	if err != nil {
		return false, fmt.Errorf("chat: delete reaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("chat: delete reaction: %w", err)
	}
	return n > 0, nil
}

// ReactionCounts returns the count-by-emoji map over all current reactions
// for the message.
func (s *PostgresStore) ReactionCounts(ctx context.Context, messageID int64) (map[string]int, error) {
	const query = `
		SELECT emoji, COUNT(*)
		FROM reactions
		WHERE message_id = $1
		GROUP BY emoji`

	rows, err := s.db.QueryContext(ctx, query, messageID)
	if err != nil {
		return nil, fmt.Errorf("chat: reaction counts: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var emoji string
		var count int
		if err := rows.Scan(&emoji, &count); err != nil {
			return nil, fmt.Errorf("chat: reaction counts: %w", err)
		}
		counts[emoji] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chat: reaction counts: %w", err)
	}
	return counts, nil
}

// GroupedReactions returns the per-emoji grouped view for the message.
func (s *PostgresStore) GroupedReactions(ctx context.Context, messageID int64) ([]ReactionGroup, error) {
	const query = `
		SELECT r.emoji, u.name
		FROM reactions r
		JOIN users u ON u.id = r.user_id
		WHERE r.message_id = $1
		ORDER BY r.emoji, r.created_at`

	rows, err := s.db.QueryContext(ctx, query, messageID)
	if err != nil {
		return nil, fmt.Errorf("chat: grouped reactions: %w", err)
	}
	defer rows.Close()

	var (
		groups []ReactionGroup
		index  = map[string]int{}
	)
	for rows.Next() {
		var emoji, name string
		if err := rows.Scan(&emoji, &name); err != nil {
			return nil, fmt.Errorf("chat: grouped reactions: %w", err)
		}
		i, ok := index[emoji]
		if !ok {
			i = len(groups)
			index[emoji] = i
			groups = append(groups, ReactionGroup{Emoji: emoji})
		}
		groups[i].Count++
		groups[i].Users = append(groups[i].Users, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chat: grouped reactions: %w", err)
	}
	return groups, nil
}

// SaveReactionSnapshot persists the denormalized snapshot on the message row.
func (s *PostgresStore) SaveReactionSnapshot(ctx context.Context, messageID int64, snapshot map[string]int) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("chat: marshal snapshot: %w", err)
	}

	const query = `UPDATE messages SET reactions = $2, updated_at = NOW() WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, messageID, data); err != nil {
		return fmt.Errorf("chat: save snapshot: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Mentions
// ---------------------------------------------------------------------------

// InsertMention records a mention if the (message, user) pair is absent.
func (s *PostgresStore) InsertMention(ctx context.Context, messageID, userID int64) (bool, error) {
	const query = `
		INSERT INTO mentions (message_id, mentioned_user_id)
		VALUES ($1, $2)
		ON CONFLICT (message_id, mentioned_user_id) DO NOTHING`

	res, err := s.db.ExecContext(ctx, query, messageID, userID)
	if err != nil {
		return false, fmt.Errorf("chat: insert mention: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("chat: insert mention: %w", err)
	}
	return n > 0, nil
}

// ---------------------------------------------------------------------------
// Pins
// ---------------------------------------------------------------------------

// InsertPin pins a message in its channel if not already pinned.
func (s *PostgresStore) InsertPin(ctx context.Context, channelID, messageID, pinnedBy int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("chat: begin tx: %w", err)
	}
	defer tx.Rollback()

	const insert = `
		INSERT INTO pinned_messages (channel_id, message_id, pinned_by)
		VALUES ($1, $2, $3)
		ON CONFLICT (channel_id, message_id) DO NOTHING`
	res, err := tx.ExecContext(ctx, insert, channelID, messageID, pinnedBy)
	if err != nil {
		return false, fmt.Errorf("chat: insert pin: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("chat: insert pin: %w", err)
	}
	if n == 0 {
		return false, tx.Commit()
	}

	const update = `
		UPDATE messages
		SET is_pinned = TRUE, pinned_by = $2, pinned_at = NOW(), updated_at = NOW()
		WHERE id = $1`
	if _, err := tx.ExecContext(ctx, update, messageID, pinnedBy); err != nil {
		return false, fmt.Errorf("chat: update pin fields: %w", err)
	}

	return true, tx.Commit()
}

// DeletePin removes an active pin, clearing the message's pin fields.
func (s *PostgresStore) DeletePin(ctx context.Context, channelID, messageID int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("chat: begin tx: %w", err)
	}
	defer tx.Rollback()

	const del = `DELETE FROM pinned_messages WHERE channel_id = $1 AND message_id = $2`
	res, err := tx.ExecContext(ctx, del, channelID, messageID)
	if err != nil {
		return false, fmt.Errorf("chat: delete pin: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("chat: delete pin: %w", err)
	}
	if n == 0 {
		return false, tx.Commit()
	}

	const update = `
		UPDATE messages
		SET is_pinned = FALSE, pinned_by = NULL, pinned_at = NULL, updated_at = NOW()
		WHERE id = $1`
	if _, err := tx.ExecContext(ctx, update, messageID); err != nil {
		return false, fmt.Errorf("chat: clear pin fields: %w", err)
	}

	return true, tx.Commit()
}
