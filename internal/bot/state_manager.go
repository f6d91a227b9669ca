package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pilyavetsb/SecretaryBot/internal/dialog"
	"github.com/pilyavetsb/SecretaryBot/internal/models"
	"github.com/pilyavetsb/SecretaryBot/internal/store"
)

// StoreBasedStateManager keeps dialog stacks and user profiles in a Store.
type StoreBasedStateManager struct {
	store store.Store
	now   func() time.Time
}

// NewStoreBasedStateManager creates a state manager backed by st.
func NewStoreBasedStateManager(st store.Store) *StoreBasedStateManager {
	slog.Debug("Creating StoreBasedStateManager")
	return &StoreBasedStateManager{store: st, now: time.Now}
}

// LoadStack returns the stored dialog stack of a conversation, or an empty
// stack when none is stored.
func (sm *StoreBasedStateManager) LoadStack(ctx context.Context, conversationID string) (*dialog.State, error) {
	slog.Debug("StateManager LoadStack", "conversationID", conversationID)

	stored, err := sm.store.GetDialogState(conversationID)
	if err != nil {
		slog.Error("StateManager LoadStack error", "error", err, "conversationID", conversationID)
		return nil, err
	}
	if stored == nil {
		slog.Debug("StateManager LoadStack not found", "conversationID", conversationID)
		return &dialog.State{}, nil
	}

	state, err := dialog.UnmarshalState(stored.State)
	if err != nil {
		slog.Error("StateManager LoadStack decode error", "error", err, "conversationID", conversationID)
		return nil, err
	}
	slog.Debug("StateManager LoadStack found", "conversationID", conversationID, "depth", state.Depth())
	return state, nil
}

// SaveStack stores the dialog stack of a conversation. An empty stack removes
// the stored record.
func (sm *StoreBasedStateManager) SaveStack(ctx context.Context, conversationID, userID string, state *dialog.State) error {
	if state == nil || state.Depth() == 0 {
		return sm.ResetStack(ctx, conversationID)
	}
	slog.Debug("StateManager SaveStack", "conversationID", conversationID, "depth", state.Depth())

	data, err := dialog.MarshalState(state)
	if err != nil {
		return fmt.Errorf("encode dialog state: %w", err)
	}

	existing, err := sm.store.GetDialogState(conversationID)
	if err != nil {
		slog.Error("StateManager SaveStack get error", "error", err, "conversationID", conversationID)
		return err
	}
	now := sm.now()
	record := models.DialogState{
		ConversationID: conversationID,
		UserID:         userID,
		State:          data,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if existing != nil {
		record.CreatedAt = existing.CreatedAt
		if record.UserID == "" {
			record.UserID = existing.UserID
		}
	}

	if err := sm.store.SaveDialogState(record); err != nil {
		slog.Error("StateManager SaveStack save error", "error", err, "conversationID", conversationID)
		return err
	}
	slog.Debug("StateManager SaveStack succeeded", "conversationID", conversationID)
	return nil
}

// ResetStack removes the stored dialog stack of a conversation.
func (sm *StoreBasedStateManager) ResetStack(ctx context.Context, conversationID string) error {
	slog.Debug("StateManager ResetStack", "conversationID", conversationID)

	if err := sm.store.DeleteDialogState(conversationID); err != nil {
		slog.Error("StateManager ResetStack error", "error", err, "conversationID", conversationID)
		return err
	}
	slog.Debug("StateManager ResetStack succeeded", "conversationID", conversationID)
	return nil
}

// LoadProfile returns the stored profile of a user, or a fresh one with
// default settings.
func (sm *StoreBasedStateManager) LoadProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	slog.Debug("StateManager LoadProfile", "userID", userID)

	profile, err := sm.store.GetUserProfile(userID)
	if err != nil {
		slog.Error("StateManager LoadProfile error", "error", err, "userID", userID)
		return nil, err
	}
	if profile == nil {
		slog.Debug("StateManager LoadProfile not found", "userID", userID)
		return models.NewUserProfile(userID), nil
	}
	return profile, nil
}

// SaveProfile stores a user profile.
func (sm *StoreBasedStateManager) SaveProfile(ctx context.Context, profile *models.UserProfile) error {
	if profile == nil || profile.UserID == "" {
		return store.ErrEmptyKey
	}
	slog.Debug("StateManager SaveProfile", "userID", profile.UserID)

	profile.UpdatedAt = sm.now()
	if err := sm.store.SaveUserProfile(*profile); err != nil {
		slog.Error("StateManager SaveProfile error", "error", err, "userID", profile.UserID)
		return err
	}
	slog.Info("StateManager SaveProfile succeeded", "userID", profile.UserID)
	return nil
}
