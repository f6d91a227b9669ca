// Package store provides storage backends for SecretaryBot.
//
// It includes an in-memory store and persistent SQLite and PostgreSQL stores
// for dialog stacks, user profiles, receipts, responses and inbound dedup.
package store

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pilyavetsb/SecretaryBot/internal/models"
)

// ErrEmptyKey is returned when a record is saved without its identifier.
var ErrEmptyKey = errors.New("store key cannot be empty")

// Store defines the persistence surface used by the bot and the API.
type Store interface {
	AddReceipt(r models.Receipt) error
	GetReceipts() ([]models.Receipt, error)
	AddResponse(r models.Response) error
	GetResponses() ([]models.Response, error)

	// SaveDialogState stores or replaces the dialog stack of a conversation.
	SaveDialogState(state models.DialogState) error
	// GetDialogState returns nil, nil when the conversation has no stored stack.
	GetDialogState(conversationID string) (*models.DialogState, error)
	DeleteDialogState(conversationID string) error
	ListDialogStates() ([]models.DialogState, error)

	// SaveUserProfile stores or replaces a user profile.
	SaveUserProfile(profile models.UserProfile) error
	// GetUserProfile returns nil, nil when the user has no stored profile.
	GetUserProfile(userID string) (*models.UserProfile, error)

	DedupRepo

	Close() error
}

// Opts holds configuration options for store implementations.
type Opts struct {
	DSN string
}

// Option configures a store.
type Option func(*Opts)

// WithDSN sets the data source name of either backend.
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(path string) Option {
	return WithDSN(path)
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return WithDSN(dsn)
}

// DetectDSNType returns the database/sql driver name for dsn: "postgres" for
// URLs and key=value connection strings, "sqlite3" for everything else.
func DetectDSNType(dsn string) string {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return "postgres"
	}
	if strings.Contains(lower, "host=") || strings.Contains(lower, "user=") || strings.Contains(lower, "dbname=") {
		return "postgres"
	}
	return "sqlite3"
}

// Open returns the persistent store matching dsn.
func Open(dsn string) (Store, error) {
	switch DetectDSNType(dsn) {
	case "postgres":
		return NewPostgresStore(WithPostgresDSN(dsn))
	default:
		return NewSQLiteStore(WithSQLiteDSN(dsn))
	}
}

// InMemoryStore is a thread-safe in-memory Store. Data is lost on restart.
type InMemoryStore struct {
	mu        sync.RWMutex
	receipts  []models.Receipt
	responses []models.Response
	dialogs   map[string]models.DialogState
	profiles  map[string]models.UserProfile
	inbound   map[string]DedupRecord
}

// Compile-time check that InMemoryStore implements Store.
var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		dialogs:  make(map[string]models.DialogState),
		profiles: make(map[string]models.UserProfile),
		inbound:  make(map[string]DedupRecord),
	}
}

func (s *InMemoryStore) AddReceipt(r models.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipts = append(s.receipts, r)
	return nil
}

func (s *InMemoryStore) GetReceipts() ([]models.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Receipt, len(s.receipts))
	copy(out, s.receipts)
	return out, nil
}

func (s *InMemoryStore) AddResponse(r models.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, r)
	return nil
}

func (s *InMemoryStore) GetResponses() ([]models.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Response, len(s.responses))
	copy(out, s.responses)
	return out, nil
}

func (s *InMemoryStore) SaveDialogState(state models.DialogState) error {
	if state.ConversationID == "" {
		return ErrEmptyKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if prev, ok := s.dialogs[state.ConversationID]; ok && !prev.CreatedAt.IsZero() {
		state.CreatedAt = prev.CreatedAt
	} else if state.CreatedAt.IsZero() {
		state.CreatedAt = now
	}
	state.UpdatedAt = now
	state.State = append([]byte(nil), state.State...)
	s.dialogs[state.ConversationID] = state
	slog.Debug("InMemoryStore SaveDialogState", "conversationID", state.ConversationID)
	return nil
}

func (s *InMemoryStore) GetDialogState(conversationID string) (*models.DialogState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.dialogs[conversationID]
	if !ok {
		return nil, nil
	}
	state.State = append([]byte(nil), state.State...)
	return &state, nil
}

func (s *InMemoryStore) DeleteDialogState(conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.dialogs, conversationID)
	return nil
}

func (s *InMemoryStore) ListDialogStates() ([]models.DialogState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.DialogState, 0, len(s.dialogs))
	for _, st := range s.dialogs {
		out = append(out, st)
	}
	return out, nil
}

func (s *InMemoryStore) SaveUserProfile(profile models.UserProfile) error {
	if profile.UserID == "" {
		return ErrEmptyKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	profile.UpdatedAt = time.Now()
	profile.Names = append([]string(nil), profile.Names...)
	profile.Areas = append([]string(nil), profile.Areas...)
	s.profiles[profile.UserID] = profile
	return nil
}

func (s *InMemoryStore) GetUserProfile(userID string) (*models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, nil
	}
	p.Names = append([]string(nil), p.Names...)
	p.Areas = append([]string(nil), p.Areas...)
	return &p, nil
}

func (s *InMemoryStore) IsDuplicate(messageID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.inbound[messageID]
	return ok, nil
}

func (s *InMemoryStore) RecordInbound(messageID, participantID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inbound[messageID]; ok {
		return false, nil
	}
	s.inbound[messageID] = DedupRecord{MessageID: messageID, ParticipantID: participantID, ReceivedAt: time.Now()}
	return true, nil
}

func (s *InMemoryStore) MarkProcessed(messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.inbound[messageID]
	if !ok {
		return nil
	}
	now := time.Now()
	rec.ProcessedAt = &now
	s.inbound[messageID] = rec
	return nil
}

func (s *InMemoryStore) ForgetInbound(messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inbound, messageID)
	return nil
}

func (s *InMemoryStore) PurgeInbound(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, rec := range s.inbound {
		if rec.ReceivedAt.Before(cutoff) {
			delete(s.inbound, id)
			n++
		}
	}
	return n, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
