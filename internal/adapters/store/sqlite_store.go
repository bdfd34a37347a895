package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/mikey/inbox-intel/internal/core"
	"go.uber.org/zap"
)

// SQLiteStore is a SQLite implementation of the RecordStore interface
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore creates a new SQLite record store
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT UNIQUE,
			name TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			user_id TEXT,
			sender TEXT,
			recipients TEXT,
			subject TEXT,
			body TEXT,
			sent_at TIMESTAMP,
			outbound BOOLEAN,
			assignment_json TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_user ON messages(user_id, sent_at)`,
		`CREATE TABLE IF NOT EXISTS trees (
			user_id TEXT PRIMARY KEY,
			tree_json TEXT,
			version INTEGER,
			built_at TIMESTAMP
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// GetUser resolves a user by email, returning nil when unknown
func (s *SQLiteStore) GetUser(ctx context.Context, email string) (*core.User, error) {
	var user core.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, name FROM users WHERE email = ?
	`, email).Scan(&user.ID, &user.Email, &user.Name)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

// AddUser inserts a user record
func (s *SQLiteStore) AddUser(ctx context.Context, email, name string) (*core.User, error) {
	user := &core.User{ID: uuid.New().String(), Email: email, Name: name}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO users (id, email, name) VALUES (?, ?, ?)
	`, user.ID, user.Email, user.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return user, nil
}

// GetMessages returns messages for a user matching the filter, most recent
// first
func (s *SQLiteStore) GetMessages(ctx context.Context, userID string, filter core.MessageFilter) ([]*core.Message, error) {
	query := `
		SELECT id, sender, recipients, subject, body, sent_at, outbound, assignment_json
		FROM messages WHERE user_id = ?`
	args := []any{userID}

	if filter.OutboundOnly {
		query += ` AND outbound = 1`
	}
	if filter.InboundOnly {
		query += ` AND outbound = 0`
	}
	if filter.UnprocessedOnly {
		query += ` AND assignment_json IS NULL`
	}
	if !filter.Since.IsZero() {
		query += ` AND sent_at >= ?`
		args = append(args, filter.Since.Format(time.RFC3339))
	}
	query += ` ORDER BY sent_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var out []*core.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			s.logger.Warn("Skipping unreadable message row", zap.Error(err))
			continue
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// SaveMessage persists a new message and returns its id
func (s *SQLiteStore) SaveMessage(ctx context.Context, userID string, msg *core.Message) (string, error) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	recipients, err := json.Marshal(msg.To)
	if err != nil {
		return "", fmt.Errorf("failed to encode recipients: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO messages (id, user_id, sender, recipients, subject, body, sent_at, outbound, assignment_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`, msg.ID, userID, msg.From, string(recipients), msg.Subject, msg.Body,
		msg.SentAt.Format(time.RFC3339), msg.Outbound)
	if err != nil {
		return "", fmt.Errorf("failed to insert message: %w", err)
	}
	return msg.ID, nil
}

// MarkProcessed records assignment output on a message
func (s *SQLiteStore) MarkProcessed(ctx context.Context, messageID string, res *core.AssignmentResult) error {
	assignment, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to encode assignment: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE messages SET assignment_json = ? WHERE id = ?
	`, string(assignment), messageID)
	if err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	return nil
}

// GetTree returns the current tree for a user, or nil if none exists
func (s *SQLiteStore) GetTree(ctx context.Context, userID string) (*core.KnowledgeTree, error) {
	var treeJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT tree_json FROM trees WHERE user_id = ?
	`, userID).Scan(&treeJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query tree: %w", err)
	}

	var tree core.KnowledgeTree
	if err := json.Unmarshal([]byte(treeJSON), &tree); err != nil {
		return nil, fmt.Errorf("failed to decode stored tree: %w", err)
	}
	return &tree, nil
}

// SaveTree atomically replaces the stored tree for a user
func (s *SQLiteStore) SaveTree(ctx context.Context, userID string, tree *core.KnowledgeTree) error {
	treeJSON, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("failed to encode tree: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO trees (user_id, tree_json, version, built_at)
		VALUES (?, ?, ?, ?)
	`, userID, string(treeJSON), tree.Version, tree.BuiltAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to replace tree: %w", err)
	}
	return nil
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*core.Message, error) {
	var msg core.Message
	var recipients, sentAt string
	var assignment sql.NullString

	if err := row.Scan(&msg.ID, &msg.From, &recipients, &msg.Subject, &msg.Body,
		&sentAt, &msg.Outbound, &assignment); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(recipients), &msg.To); err != nil {
		return nil, fmt.Errorf("failed to decode recipients: %w", err)
	}
	parsed, err := time.Parse(time.RFC3339, sentAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse sent_at: %w", err)
	}
	msg.SentAt = parsed

	if assignment.Valid && assignment.String != "" {
		var res core.AssignmentResult
		if err := json.Unmarshal([]byte(assignment.String), &res); err != nil {
			return nil, fmt.Errorf("failed to decode assignment: %w", err)
		}
		msg.Assignment = &res
	}
	return &msg, nil
}
