// Package store provides storage backends for SecretaryBot.
//
// This file implements an SQLite-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pilyavetsb/SecretaryBot/internal/models"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// Compile-time check that SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	// a single writer avoids "database is locked" under concurrent turns
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully", "dsn", dsn)

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) AddReceipt(r models.Receipt) error {
	_, err := s.db.Exec(`INSERT INTO receipts (recipient, status, time) VALUES (?, ?, ?)`, r.To, r.Status, r.Time)
	if err != nil {
		slog.Error("SQLiteStore AddReceipt failed", "error", err, "to", r.To)
		return fmt.Errorf("failed to insert receipt for %s: %w", r.To, err)
	}
	slog.Debug("SQLiteStore AddReceipt succeeded", "to", r.To, "status", r.Status)
	return nil
}

func (s *SQLiteStore) GetReceipts() ([]models.Receipt, error) {
	rows, err := s.db.Query(`SELECT recipient, status, time FROM receipts ORDER BY id`)
	if err != nil {
		slog.Error("SQLiteStore GetReceipts query failed", "error", err)
		return nil, fmt.Errorf("failed to query receipts: %w", err)
	}
	defer rows.Close()

	var receipts []models.Receipt
	for rows.Next() {
		var r models.Receipt
		if err := rows.Scan(&r.To, &r.Status, &r.Time); err != nil {
			return nil, fmt.Errorf("failed to scan receipt row: %w", err)
		}
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate receipt rows: %w", err)
	}
	return receipts, nil
}

func (s *SQLiteStore) AddResponse(r models.Response) error {
	_, err := s.db.Exec(`INSERT INTO responses (sender, body, time) VALUES (?, ?, ?)`, r.From, r.Body, r.Time)
	if err != nil {
		slog.Error("SQLiteStore AddResponse failed", "error", err, "from", r.From)
		return fmt.Errorf("failed to insert response from %s: %w", r.From, err)
	}
	return nil
}

func (s *SQLiteStore) GetResponses() ([]models.Response, error) {
	rows, err := s.db.Query(`SELECT sender, body, time FROM responses ORDER BY id`)
	if err != nil {
		slog.Error("SQLiteStore GetResponses query failed", "error", err)
		return nil, fmt.Errorf("failed to query responses: %w", err)
	}
	defer rows.Close()

	var responses []models.Response
	for rows.Next() {
		var r models.Response
		if err := rows.Scan(&r.From, &r.Body, &r.Time); err != nil {
			return nil, fmt.Errorf("failed to scan response row: %w", err)
		}
		responses = append(responses, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate response rows: %w", err)
	}
	return responses, nil
}

// SaveDialogState stores or replaces the dialog stack of a conversation.
func (s *SQLiteStore) SaveDialogState(state models.DialogState) error {
	if state.ConversationID == "" {
		return ErrEmptyKey
	}
	now := time.Now().UTC()
	_, err := s.db.Exec(`
		INSERT INTO dialog_states (conversation_id, user_id, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			user_id = excluded.user_id,
			state = excluded.state,
			updated_at = excluded.updated_at`,
		state.ConversationID, nilIfEmpty(state.UserID), string(state.State), now, now)
	if err != nil {
		slog.Error("SQLiteStore SaveDialogState failed", "error", err, "conversationID", state.ConversationID)
		return fmt.Errorf("failed to save dialog state for %s: %w", state.ConversationID, err)
	}
	slog.Debug("SQLiteStore SaveDialogState succeeded", "conversationID", state.ConversationID)
	return nil
}

// GetDialogState retrieves the dialog stack of a conversation.
func (s *SQLiteStore) GetDialogState(conversationID string) (*models.DialogState, error) {
	row := s.db.QueryRow(`SELECT conversation_id, user_id, state, created_at, updated_at
		FROM dialog_states WHERE conversation_id = ?`, conversationID)
	st, err := scanDialogState(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetDialogState failed", "error", err, "conversationID", conversationID)
		return nil, fmt.Errorf("failed to get dialog state for %s: %w", conversationID, err)
	}
	return &st, nil
}

// DeleteDialogState removes the dialog stack of a conversation.
func (s *SQLiteStore) DeleteDialogState(conversationID string) error {
	if _, err := s.db.Exec(`DELETE FROM dialog_states WHERE conversation_id = ?`, conversationID); err != nil {
		slog.Error("SQLiteStore DeleteDialogState failed", "error", err, "conversationID", conversationID)
		return fmt.Errorf("failed to delete dialog state for %s: %w", conversationID, err)
	}
	return nil
}

// ListDialogStates returns every stored dialog stack.
func (s *SQLiteStore) ListDialogStates() ([]models.DialogState, error) {
	rows, err := s.db.Query(`SELECT conversation_id, user_id, state, created_at, updated_at
		FROM dialog_states ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list dialog states: %w", err)
	}
	defer rows.Close()

	var states []models.DialogState
	for rows.Next() {
		st, err := scanDialogState(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dialog state: %w", err)
		}
		states = append(states, st)
	}
	return states, rows.Err()
}

// SaveUserProfile stores or replaces a user profile.
func (s *SQLiteStore) SaveUserProfile(p models.UserProfile) error {
	if p.UserID == "" {
		return ErrEmptyKey
	}
	names, err := encodeList(p.Names)
	if err != nil {
		return err
	}
	areas, err := encodeList(p.Areas)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO user_profiles (user_id, email, phone, names, areas, language, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.UserID, nilIfEmpty(p.Email), nilIfEmpty(p.Phone), nilIfEmpty(names), nilIfEmpty(areas),
		nilIfEmpty(string(p.Language)), time.Now().UTC())
	if err != nil {
		slog.Error("SQLiteStore SaveUserProfile failed", "error", err, "userID", p.UserID)
		return fmt.Errorf("failed to save profile for %s: %w", p.UserID, err)
	}
	slog.Debug("SQLiteStore SaveUserProfile succeeded", "userID", p.UserID)
	return nil
}

// GetUserProfile retrieves a user profile.
func (s *SQLiteStore) GetUserProfile(userID string) (*models.UserProfile, error) {
	row := s.db.QueryRow(`SELECT user_id, email, phone, names, areas, language, updated_at
		FROM user_profiles WHERE user_id = ?`, userID)
	p, err := scanUserProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetUserProfile failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get profile for %s: %w", userID, err)
	}
	return &p, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
