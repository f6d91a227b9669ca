// Package store provides storage backends for SecretaryBot.
//
// This file implements a PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"
	"github.com/pilyavetsb/SecretaryBot/internal/models"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) AddReceipt(r models.Receipt) error {
	_, err := s.db.Exec(`INSERT INTO receipts (recipient, status, time) VALUES ($1, $2, $3)`, r.To, r.Status, r.Time)
	if err != nil {
		slog.Error("PostgresStore AddReceipt failed", "error", err, "to", r.To)
		return fmt.Errorf("failed to insert receipt for %s: %w", r.To, err)
	}
	return nil
}

func (s *PostgresStore) GetReceipts() ([]models.Receipt, error) {
	rows, err := s.db.Query(`SELECT recipient, status, time FROM receipts ORDER BY id`)
	if err != nil {
		slog.Error("PostgresStore GetReceipts query failed", "error", err)
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

// AddResponse stores an incoming response in Postgres.
func (s *PostgresStore) AddResponse(r models.Response) error {
	_, err := s.db.Exec(`INSERT INTO responses (sender, body, time) VALUES ($1, $2, $3)`, r.From, r.Body, r.Time)
	if err != nil {
		slog.Error("PostgresStore AddResponse failed", "error", err, "from", r.From)
		return fmt.Errorf("failed to insert response from %s: %w", r.From, err)
	}
	return nil
}

// GetResponses retrieves all stored responses from Postgres.
func (s *PostgresStore) GetResponses() ([]models.Response, error) {
	rows, err := s.db.Query(`SELECT sender, body, time FROM responses ORDER BY id`)
	if err != nil {
		slog.Error("PostgresStore GetResponses query failed", "error", err)
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
func (s *PostgresStore) SaveDialogState(state models.DialogState) error {
	if state.ConversationID == "" {
		return ErrEmptyKey
	}
	now := time.Now().UTC()
	_, err := s.db.Exec(`
		INSERT INTO dialog_states (conversation_id, user_id, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (conversation_id)
		DO UPDATE SET
			user_id = EXCLUDED.user_id,
			state = EXCLUDED.state,
			updated_at = EXCLUDED.updated_at`,
		state.ConversationID, nilIfEmpty(state.UserID), string(state.State), now, now)
	if err != nil {
		slog.Error("PostgresStore SaveDialogState failed", "error", err, "conversationID", state.ConversationID)
		return fmt.Errorf("failed to save dialog state for %s: %w", state.ConversationID, err)
	}
	return nil
}

// GetDialogState retrieves the dialog stack of a conversation.
func (s *PostgresStore) GetDialogState(conversationID string) (*models.DialogState, error) {
	row := s.db.QueryRow(`SELECT conversation_id, user_id, state, created_at, updated_at
		FROM dialog_states WHERE conversation_id = $1`, conversationID)
	st, err := scanDialogState(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetDialogState failed", "error", err, "conversationID", conversationID)
		return nil, fmt.Errorf("failed to get dialog state for %s: %w", conversationID, err)
	}
	return &st, nil
}

// DeleteDialogState removes the dialog stack of a conversation.
func (s *PostgresStore) DeleteDialogState(conversationID string) error {
	if _, err := s.db.Exec(`DELETE FROM dialog_states WHERE conversation_id = $1`, conversationID); err != nil {
		slog.Error("PostgresStore DeleteDialogState failed", "error", err, "conversationID", conversationID)
		return fmt.Errorf("failed to delete dialog state for %s: %w", conversationID, err)
	}
	return nil
}

// ListDialogStates returns every stored dialog stack.
func (s *PostgresStore) ListDialogStates() ([]models.DialogState, error) {
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
func (s *PostgresStore) SaveUserProfile(p models.UserProfile) error {
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
		INSERT INTO user_profiles (user_id, email, phone, names, areas, language, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id)
		DO UPDATE SET
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			names = EXCLUDED.names,
			areas = EXCLUDED.areas,
			language = EXCLUDED.language,
			updated_at = EXCLUDED.updated_at`,
		p.UserID, nilIfEmpty(p.Email), nilIfEmpty(p.Phone), nilIfEmpty(names), nilIfEmpty(areas),
		nilIfEmpty(string(p.Language)), time.Now().UTC())
	if err != nil {
		slog.Error("PostgresStore SaveUserProfile failed", "error", err, "userID", p.UserID)
		return fmt.Errorf("failed to save profile for %s: %w", p.UserID, err)
	}
	return nil
}

// GetUserProfile retrieves a user profile.
func (s *PostgresStore) GetUserProfile(userID string) (*models.UserProfile, error) {
	row := s.db.QueryRow(`SELECT user_id, email, phone, names, areas, language, updated_at
		FROM user_profiles WHERE user_id = $1`, userID)
	p, err := scanUserProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetUserProfile failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get profile for %s: %w", userID, err)
	}
	return &p, nil
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing PostgreSQL database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close PostgreSQL database", "error", err)
	}
	return err
}
