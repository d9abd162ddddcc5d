// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides user/mapping/status/dialog-state persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			alias         TEXT NOT NULL,
			name          TEXT NOT NULL,
			mobile_phone  TEXT NOT NULL DEFAULT '',
			teams_user_id TEXT NOT NULL DEFAULT '',
			sms_user_id   TEXT NOT NULL DEFAULT '',
			created_at    DATETIME NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_teams_user_id
			ON users(teams_user_id) WHERE teams_user_id != '';

		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_sms_user_id
			ON users(sms_user_id) WHERE sms_user_id != '';

		CREATE INDEX IF NOT EXISTS idx_users_alias ON users(alias);
		CREATE INDEX IF NOT EXISTS idx_users_mobile_phone ON users(mobile_phone);

		CREATE TABLE IF NOT EXISTS id_counters (
			counter TEXT PRIMARY KEY,
			value   INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS ticket_mappings (
			vso_id                    TEXT PRIMARY KEY,
			end_user_name             TEXT NOT NULL,
			end_user_id               TEXT NOT NULL,
			end_user_conversation_ref TEXT NOT NULL,
			agent_conversation_id     TEXT NOT NULL DEFAULT '',
			updated_at                DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS online_status (
			member_type           TEXT PRIMARY KEY,
			name                  TEXT NOT NULL,
			bot_framework_user_id TEXT NOT NULL,
			last_active_on        DATETIME NOT NULL,

			CHECK (member_type IN ('agent', 'enduser'))
		);

		CREATE TABLE IF NOT EXISTS dialog_state (
			conversation_id TEXT PRIMARY KEY,
			state           BLOB NOT NULL,
			updated_at      DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS conversation_data (
			conversation_id TEXT NOT NULL,
			key             TEXT NOT NULL,
			value           TEXT NOT NULL,
			updated_at      DATETIME NOT NULL,
			PRIMARY KEY (conversation_id, key)
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// CreateUser inserts a new user row
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, alias, name, mobile_phone, teams_user_id, sms_user_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Alias, user.Name, user.MobilePhone, user.TeamsUserID, user.SmsUserID, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateUser
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

// GetUser returns a user by unique id
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, alias, name, mobile_phone, teams_user_id, sms_user_id, created_at
		 FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUsersByColumn returns users matching a whitelisted column value.
func (s *SQLiteStore) GetUsersByColumn(ctx context.Context, column, value string) ([]*User, error) {
	switch column {
	case UserColumnAlias, UserColumnMobilePhone, UserColumnTeamsUserID, UserColumnSmsUserID:
	default:
		return nil, fmt.Errorf("unsupported user column %q", column)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, alias, name, mobile_phone, teams_user_id, sms_user_id, created_at
		 FROM users WHERE `+column+` = ?`, value)
	if err != nil {
		return nil, fmt.Errorf("querying users by %s: %w", column, err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Alias, &u.Name, &u.MobilePhone, &u.TeamsUserID, &u.SmsUserID, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

// NextID atomically increments and returns a named counter.
func (s *SQLiteStore) NextID(ctx context.Context, counter string) (int64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO id_counters (counter, value) VALUES (?, 1)
		 ON CONFLICT(counter) DO UPDATE SET value = value + 1
		 RETURNING value`, counter).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("allocating id for %q: %w", counter, err)
	}
	return value, nil
}

// PutMapping writes a ticket mapping, replacing any existing row for the same
// ticket. Later writes win; there is no concurrency token.
func (s *SQLiteStore) PutMapping(ctx context.Context, m *TicketMapping) error {
	m.UpdatedAt = time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO ticket_mappings
		 (vso_id, end_user_name, end_user_id, end_user_conversation_ref, agent_conversation_id, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.VsoID, m.EndUserName, m.EndUserID, m.EndUserConversationRef, m.AgentConversationID, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("writing ticket mapping: %w", err)
	}
	return nil
}

// GetMapping returns the mapping row for a ticket
func (s *SQLiteStore) GetMapping(ctx context.Context, vsoID string) (*TicketMapping, error) {
	var m TicketMapping
	err := s.db.QueryRowContext(ctx,
		`SELECT vso_id, end_user_name, end_user_id, end_user_conversation_ref, agent_conversation_id, updated_at
		 FROM ticket_mappings WHERE vso_id = ?`, vsoID).
		Scan(&m.VsoID, &m.EndUserName, &m.EndUserID, &m.EndUserConversationRef, &m.AgentConversationID, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading ticket mapping: %w", err)
	}
	return &m, nil
}

// GetMappingByConversation finds the mapping a conversation participates in.
// The end-user conversation id lives inside the serialized reference, so that
// side is matched with json_extract.
func (s *SQLiteStore) GetMappingByConversation(ctx context.Context, conversationID string) (*TicketMapping, error) {
	var m TicketMapping
	err := s.db.QueryRowContext(ctx,
		`SELECT vso_id, end_user_name, end_user_id, end_user_conversation_ref, agent_conversation_id, updated_at
		 FROM ticket_mappings
		 WHERE agent_conversation_id = ?
		    OR json_extract(end_user_conversation_ref, '$.conversation.id') = ?
		 ORDER BY updated_at DESC LIMIT 1`, conversationID, conversationID).
		Scan(&m.VsoID, &m.EndUserName, &m.EndUserID, &m.EndUserConversationRef, &m.AgentConversationID, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading ticket mapping by conversation: %w", err)
	}
	return &m, nil
}

// DeleteMapping removes the mapping row for a ticket
func (s *SQLiteStore) DeleteMapping(ctx context.Context, vsoID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM ticket_mappings WHERE vso_id = ?`, vsoID)
	if err != nil {
		return fmt.Errorf("deleting ticket mapping: %w", err)
	}
	return nil
}

// UpsertOnlineStatus records the latest activity timestamp for a member type
func (s *SQLiteStore) UpsertOnlineStatus(ctx context.Context, st *OnlineStatus) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO online_status (member_type, name, bot_framework_user_id, last_active_on)
		 VALUES (?, ?, ?, ?)`,
		st.MemberType, st.Name, st.BotFrameworkUserID, st.LastActiveOn)
	if err != nil {
		return fmt.Errorf("writing online status: %w", err)
	}
	return nil
}

// GetOnlineStatus returns the last activity record for a member type
func (s *SQLiteStore) GetOnlineStatus(ctx context.Context, memberType string) (*OnlineStatus, error) {
	var st OnlineStatus
	err := s.db.QueryRowContext(ctx,
		`SELECT member_type, name, bot_framework_user_id, last_active_on
		 FROM online_status WHERE member_type = ?`, memberType).
		Scan(&st.MemberType, &st.Name, &st.BotFrameworkUserID, &st.LastActiveOn)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading online status: %w", err)
	}
	return &st, nil
}

// SaveDialogState persists the serialized dialog engine state for a conversation
func (s *SQLiteStore) SaveDialogState(ctx context.Context, conversationID string, state []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO dialog_state (conversation_id, state, updated_at)
		 VALUES (?, ?, ?)`,
		conversationID, state, time.Now())
	if err != nil {
		return fmt.Errorf("writing dialog state: %w", err)
	}
	return nil
}

// GetDialogState returns the serialized dialog state for a conversation
func (s *SQLiteStore) GetDialogState(ctx context.Context, conversationID string) ([]byte, error) {
	var state []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM dialog_state WHERE conversation_id = ?`, conversationID).Scan(&state)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading dialog state: %w", err)
	}
	return state, nil
}

// ClearDialogState removes the dialog state for a conversation
func (s *SQLiteStore) ClearDialogState(ctx context.Context, conversationID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM dialog_state WHERE conversation_id = ?`, conversationID)
	if err != nil {
		return fmt.Errorf("clearing dialog state: %w", err)
	}
	return nil
}

// ClearConversation removes all per-conversation state
func (s *SQLiteStore) ClearConversation(ctx context.Context, conversationID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM dialog_state WHERE conversation_id = ?`, conversationID); err != nil {
		return fmt.Errorf("clearing dialog state: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM conversation_data WHERE conversation_id = ?`, conversationID); err != nil {
		return fmt.Errorf("clearing conversation data: %w", err)
	}
	return tx.Commit()
}

// SetConversationData writes one per-conversation key/value record
func (s *SQLiteStore) SetConversationData(ctx context.Context, conversationID, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO conversation_data (conversation_id, key, value, updated_at)
		 VALUES (?, ?, ?, ?)`,
		conversationID, key, value, time.Now())
	if err != nil {
		return fmt.Errorf("writing conversation data: %w", err)
	}
	return nil
}

// GetConversationData returns one per-conversation key/value record
func (s *SQLiteStore) GetConversationData(ctx context.Context, conversationID, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM conversation_data WHERE conversation_id = ? AND key = ?`,
		conversationID, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading conversation data: %w", err)
	}
	return value, nil
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Alias, &u.Name, &u.MobilePhone, &u.TeamsUserID, &u.SmsUserID, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	return &u, nil
}

// isUniqueViolation reports whether err is a SQLite unique constraint failure.
// modernc.org/sqlite surfaces these as generic errors carrying the constraint
// text, so string matching is the available signal.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}
