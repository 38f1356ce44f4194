package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"ChatRelay/entity"
)

// Store keeps histories, profiles and counters in a single SQLite file.
type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS chat_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		sender TEXT NOT NULL,
		text TEXT NOT NULL DEFAULT '',
		image TEXT NOT NULL DEFAULT '',
		marker TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_messages_user ON chat_messages(user_id, id);
	CREATE INDEX IF NOT EXISTS idx_chat_messages_created ON chat_messages(created_at);

	CREATE TABLE IF NOT EXISTS profiles (
		user_id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS performance (
		day TEXT NOT NULL,
		agent TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (day, agent)
	);

	CREATE TABLE IF NOT EXISTS api_keys (
		username TEXT PRIMARY KEY,
		key TEXT NOT NULL UNIQUE
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const messageColumns = `id, user_id, display_name, sender, text, image, marker, status, created_at`

// Append inserts a message. Row ids give the history order.
func (s *Store) Append(ctx context.Context, msg *entity.Message) error {
	query := `
	INSERT INTO chat_messages (user_id, display_name, sender, text, image, marker, status, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := s.db.ExecContext(ctx, query,
		msg.UserID, msg.DisplayName, string(msg.Sender), msg.Text, msg.Image,
		string(msg.Marker), msg.Status, msg.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		msg.ID = fmt.Sprint(id)
	}
	return nil
}

// Find returns the full history of a user, oldest first.
func (s *Store) Find(ctx context.Context, userID string) ([]entity.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM chat_messages WHERE user_id = ? ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query chat messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]entity.Message, error) {
	var messages []entity.Message
	for rows.Next() {
		var msg entity.Message
		var id, createdAt int64
		var sender, marker string
		if err := rows.Scan(
			&id, &msg.UserID, &msg.DisplayName, &sender,
			&msg.Text, &msg.Image, &marker, &msg.Status, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		msg.ID = fmt.Sprint(id)
		msg.Sender = entity.Sender(sender)
		msg.Marker = entity.Marker(marker)
		msg.CreatedAt = time.Unix(0, createdAt).UTC()
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat messages: %w", err)
	}
	return messages, nil
}

// DeleteWhere deletes messages of userID matching filter; an empty userID
// matches every user.
func (s *Store) DeleteWhere(ctx context.Context, userID string, filter entity.MessageFilter) (int64, error) {
	query := `DELETE FROM chat_messages WHERE 1 = 1`
	var args []interface{}
	if userID != "" {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if !filter.Before.IsZero() {
		query += ` AND created_at < ?`
		args = append(args, filter.Before.UnixNano())
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete chat messages: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete chat messages: %w", err)
	}
	return n, nil
}

// RenameUser rewrites the denormalized display name on every message of a user.
func (s *Store) RenameUser(ctx context.Context, userID, displayName string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE chat_messages SET display_name = ? WHERE user_id = ?`,
		displayName, userID,
	)
	if err != nil {
		return fmt.Errorf("rename chat messages: %w", err)
	}
	return nil
}

// Digests folds every history, in order of first contact.
func (s *Store) Digests(ctx context.Context) ([]entity.ChatDigest, error) {
	query := `SELECT ` + messageColumns + ` FROM chat_messages ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query chat messages: %w", err)
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}

	var order []string
	byUser := make(map[string][]entity.Message)
	for _, msg := range messages {
		if _, ok := byUser[msg.UserID]; !ok {
			order = append(order, msg.UserID)
		}
		byUser[msg.UserID] = append(byUser[msg.UserID], msg)
	}

	digests := make([]entity.ChatDigest, 0, len(order))
	for _, userID := range order {
		digests = append(digests, entity.Digest(userID, byUser[userID]))
	}
	return digests, nil
}

// DisplayName returns the persisted display name override, or "" if none.
func (s *Store) DisplayName(ctx context.Context, userID string) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx,
		`SELECT display_name FROM profiles WHERE user_id = ?`, userID,
	).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query profile: %w", err)
	}
	return name, nil
}

func (s *Store) SetDisplayName(ctx context.Context, userID, displayName string) error {
	query := `
	INSERT INTO profiles (user_id, display_name) VALUES (?, ?)
	ON CONFLICT(user_id) DO UPDATE SET display_name = excluded.display_name`
	if _, err := s.db.ExecContext(ctx, query, userID, displayName); err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// IncrementClosures adds one closure to the agent's counter for day and
// returns the new value.
func (s *Store) IncrementClosures(ctx context.Context, agent, day string) (int64, error) {
	query := `
	INSERT INTO performance (day, agent, count) VALUES (?, ?, 1)
	ON CONFLICT(day, agent) DO UPDATE SET count = count + 1
	RETURNING count`

	var count int64
	if err := s.db.QueryRowContext(ctx, query, day, agent).Scan(&count); err != nil {
		return 0, fmt.Errorf("increment performance: %w", err)
	}
	return count, nil
}

// Performance lists the counters of day, highest first.
func (s *Store) Performance(ctx context.Context, day string) ([]entity.PerformanceCounter, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT agent, day, count FROM performance WHERE day = ? ORDER BY count DESC, agent`, day,
	)
	if err != nil {
		return nil, fmt.Errorf("query performance: %w", err)
	}
	defer rows.Close()

	counters := make([]entity.PerformanceCounter, 0)
	for rows.Next() {
		var c entity.PerformanceCounter
		if err := rows.Scan(&c.Agent, &c.Day, &c.Count); err != nil {
			return nil, fmt.Errorf("scan performance: %w", err)
		}
		counters = append(counters, c)
	}
	return counters, rows.Err()
}

// CheckApiKey returns the agent the key was issued to.
func (s *Store) CheckApiKey(ctx context.Context, key string) (string, error) {
	var username string
	err := s.db.QueryRowContext(ctx, `SELECT username FROM api_keys WHERE key = ?`, key).Scan(&username)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("api key not found")
	}
	if err != nil {
		return "", fmt.Errorf("query api key: %w", err)
	}
	return username, nil
}

// GenerateApiKey issues a key for an agent, or returns the one already issued.
func (s *Store) GenerateApiKey(ctx context.Context, username string) (string, error) {
	query := `
	INSERT INTO api_keys (username, key) VALUES (?, ?)
	ON CONFLICT(username) DO UPDATE SET username = excluded.username
	RETURNING key`

	var key string
	if err := s.db.QueryRowContext(ctx, query, username, uuid.NewString()).Scan(&key); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return key, nil
}
