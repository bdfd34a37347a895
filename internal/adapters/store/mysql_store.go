package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/mikey/inbox-intel/internal/core"
	"go.uber.org/zap"
)

// MySQLStore is a MySQL implementation of the RecordStore interface for
// multi-instance deployments sharing one message corpus
type MySQLStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMySQLStore creates a new MySQL record store
func NewMySQLStore(dsn string, logger *zap.Logger) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(36) PRIMARY KEY,
			email VARCHAR(255) UNIQUE,
			name VARCHAR(255)
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id VARCHAR(36) PRIMARY KEY,
			user_id VARCHAR(36),
			sender VARCHAR(255),
			recipients TEXT,
			subject TEXT,
			body MEDIUMTEXT,
			sent_at TIMESTAMP NULL,
			outbound BOOLEAN,
			assignment_json TEXT,
			INDEX idx_messages_user (user_id, sent_at)
		)`,
		`CREATE TABLE IF NOT EXISTS trees (
			user_id VARCHAR(36) PRIMARY KEY,
			tree_json MEDIUMTEXT,
			version INT,
			built_at TIMESTAMP NULL
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &MySQLStore{db: db, logger: logger}, nil
}

// GetUser resolves a user by email, returning nil when unknown
func (s *MySQLStore) GetUser(ctx context.Context, email string) (*core.User, error) {
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
func (s *MySQLStore) AddUser(ctx context.Context, email, name string) (*core.User, error) {
	user := &core.User{ID: uuid.New().String(), Email: email, Name: name}
	_, err := s.db.ExecContext(ctx, `
		INSERT IGNORE INTO users (id, email, name) VALUES (?, ?, ?)
	`, user.ID, user.Email, user.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return user, nil
}

// GetMessages returns messages for a user matching the filter, most recent
// first
func (s *MySQLStore) GetMessages(ctx context.Context, userID string, filter core.MessageFilter) ([]*core.Message, error) {
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
		args = append(args, filter.Since)
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
		msg, err := scanMySQLMessage(rows)
		if err != nil {
			s.logger.Warn("Skipping unreadable message row", zap.Error(err))
			continue
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// SaveMessage persists a new message and returns its id
func (s *MySQLStore) SaveMessage(ctx context.Context, userID string, msg *core.Message) (string, error) {
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
	`, msg.ID, userID, msg.From, string(recipients), msg.Subject, msg.Body, msg.SentAt, msg.Outbound)
	if err != nil {
		return "", fmt.Errorf("failed to insert message: %w", err)
	}
	return msg.ID, nil
}

// MarkProcessed records assignment output on a message
func (s *MySQLStore) MarkProcessed(ctx context.Context, messageID string, res *core.AssignmentResult) error {
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
func (s *MySQLStore) GetTree(ctx context.Context, userID string) (*core.KnowledgeTree, error) {
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
func (s *MySQLStore) SaveTree(ctx context.Context, userID string, tree *core.KnowledgeTree) error {
	treeJSON, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("failed to encode tree: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO trees (user_id, tree_json, version, built_at)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE tree_json = VALUES(tree_json),
			version = VALUES(version), built_at = VALUES(built_at)
	`, userID, string(treeJSON), tree.Version, tree.BuiltAt)
	if err != nil {
		return fmt.Errorf("failed to replace tree: %w", err)
	}
	return nil
}

// Close closes the underlying database
func (s *MySQLStore) Close() error {
	return s.db.Close()
}

func scanMySQLMessage(rows *sql.Rows) (*core.Message, error) {
	var msg core.Message
	var recipients string
	var sentAt time.Time
	var assignment sql.NullString

	if err := rows.Scan(&msg.ID, &msg.From, &recipients, &msg.Subject, &msg.Body,
		&sentAt, &msg.Outbound, &assignment); err != nil {
		return nil, err
	}
	msg.SentAt = sentAt

	if err := json.Unmarshal([]byte(recipients), &msg.To); err != nil {
		return nil, fmt.Errorf("failed to decode recipients: %w", err)
	}
	if assignment.Valid && assignment.String != "" {
		var res core.AssignmentResult
		if err := json.Unmarshal([]byte(assignment.String), &res); err != nil {
			return nil, fmt.Errorf("failed to decode assignment: %w", err)
		}
		msg.Assignment = &res
	}
	return &msg, nil
}
