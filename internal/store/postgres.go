package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Sentinel errors surfaced instead of raw driver errors. Callers map these
// to wire-level failure kinds.
var (
	ErrUserExists     = errors.New("user already exists")
	ErrChannelExists  = errors.New("channel already exists")
	ErrUnknownChannel = errors.New("unknown channel")
	ErrMessageExists  = errors.New("message already exists for sender and timestamp")
)

// LatestLimit is the page size of the no-watermark fetch branch.
const LatestLimit = 20

const uniqueViolation = "23505"
const foreignKeyViolation = "23503"

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InsertUser persists a new account. Returns ErrUserExists when the
// username is already taken (case-sensitive exact match).
func (s *PostgresStore) InsertUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, salt, email)
		VALUES ($1, $2, $3, $4)
	`, user.Username, user.PasswordHash, user.Salt, user.Email)
	if isPgError(err, uniqueViolation) {
		return ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser fetches the stored credentials for a username. sql.ErrNoRows is
// passed through so callers can treat an unknown user uniformly.
func (s *PostgresStore) GetUser(ctx context.Context, username string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT username, password, salt, email FROM users WHERE username=$1
	`, username).Scan(&user.Username, &user.PasswordHash, &user.Salt, &user.Email)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// CreateChannel registers a new channel name. Returns ErrChannelExists on a
// duplicate.
func (s *PostgresStore) CreateChannel(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO channels (name) VALUES ($1)`, name)
	if isPgError(err, uniqueViolation) {
		return ErrChannelExists
	}
	if err != nil {
		return fmt.Errorf("create channel: %w", err)
	}
	return nil
}

// ListChannels returns channel names in creation order, stable across calls.
func (s *PostgresStore) ListChannels(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM channels ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channels: %w", err)
	}
	return names, nil
}

func (s *PostgresStore) ChannelExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM channels WHERE name=$1)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check channel: %w", err)
	}
	return exists, nil
}

// InsertMessage appends one message. A (user, sent) primary-key collision
// returns ErrMessageExists; an unknown channel at the storage layer returns
// ErrUnknownChannel as a defense-in-depth check behind the registry.
func (s *PostgresStore) InsertMessage(ctx context.Context, msg Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages ("user", message, sent, channel)
		VALUES ($1, $2, $3, $4)
	`, msg.User, msg.Message, msg.Sent, msg.Channel)
	if isPgError(err, uniqueViolation) {
		return ErrMessageExists
	}
	if isPgError(err, foreignKeyViolation) {
		return ErrUnknownChannel
	}
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// MessagesSince returns every message in channel with sent > since,
// ascending by sent. Equal timestamps order by sender so watermark queries
// stay deterministic.
func (s *PostgresStore) MessagesSince(ctx context.Context, channel string, since int64) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT "user", message, sent, channel
		FROM messages
		WHERE channel=$1 AND sent > $2
		ORDER BY sent ASC, "user" ASC
	`, channel, since)
	if err != nil {
		return nil, fmt.Errorf("query messages since: %w", err)
	}
	return scanMessages(rows)
}

// LatestMessages returns the limit most recent messages in channel,
// reordered ascending by sent.
func (s *PostgresStore) LatestMessages(ctx context.Context, channel string, limit int) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT "user", message, sent, channel FROM (
			SELECT "user", message, sent, channel
			FROM messages
			WHERE channel=$1
			ORDER BY sent DESC, "user" DESC
			LIMIT $2
		) latest
		ORDER BY sent ASC, "user" ASC
	`, channel, limit)
	if err != nil {
		return nil, fmt.Errorf("query latest messages: %w", err)
	}
	return scanMessages(rows)
}

// HasMessages reports whether any message exists in any channel.
func (s *PostgresStore) HasMessages(ctx context.Context) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM messages)`).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check messages: %w", err)
	}
	return exists, nil
}

// CountMessages is diagnostic only.
func (s *PostgresStore) CountMessages(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.User, &msg.Message, &msg.Sent, &msg.Channel); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

func isPgError(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
