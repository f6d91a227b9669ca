package bot

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilyavetsb/SecretaryBot/internal/dialog"
	"github.com/pilyavetsb/SecretaryBot/internal/models"
	"github.com/pilyavetsb/SecretaryBot/internal/store"
)

func TestStateManagerProfiles(t *testing.T) {
	st := store.NewInMemoryStore()
	sm := NewStoreBasedStateManager(st)
	fixed := time.Date(2024, time.July, 1, 9, 0, 0, 0, time.UTC)
	sm.now = func() time.Time { return fixed }
	ctx := context.Background()

	fresh, err := sm.LoadProfile(ctx, "user-1")
	require.NoError(t, err)
	if diff := cmp.Diff(models.NewUserProfile("user-1"), fresh); diff != "" {
		t.Errorf("fresh profile mismatch (-want +got):\n%s", diff)
	}

	fresh.Email = "me@tikkurila.com"
	fresh.Names = []string{"Анна", "", "", ""}
	require.NoError(t, sm.SaveProfile(ctx, fresh))
	assert.Equal(t, fixed, fresh.UpdatedAt)

	loaded, err := sm.LoadProfile(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "me@tikkurila.com", loaded.Email)
	assert.Equal(t, []string{"Анна", "", "", ""}, loaded.Names)
	assert.Equal(t, models.LanguageRU, loaded.Language)

	assert.ErrorIs(t, sm.SaveProfile(ctx, &models.UserProfile{}), store.ErrEmptyKey)
}

func TestStateManagerStacks(t *testing.T) {
	st := store.NewInMemoryStore()
	sm := NewStoreBasedStateManager(st)
	ctx := context.Background()

	empty, err := sm.LoadStack(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Depth())

	state := &dialog.State{Stack: []*dialog.Instance{
		{DialogID: "main", Step: 0},
		{DialogID: "toplevel", Step: 1},
	}}
	require.NoError(t, sm.SaveStack(ctx, "conv-1", "user-1", state))

	loaded, err := sm.LoadStack(ctx, "conv-1")
	require.NoError(t, err)
	require.Equal(t, 2, loaded.Depth())
	assert.Equal(t, "toplevel", loaded.Active().DialogID)
	assert.Equal(t, 1, loaded.Active().Step)

	// an empty stack removes the record
	require.NoError(t, sm.SaveStack(ctx, "conv-1", "user-1", &dialog.State{}))
	stored, err := st.GetDialogState("conv-1")
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestStateManagerRejectsCorruptStack(t *testing.T) {
	st := store.NewInMemoryStore()
	require.NoError(t, st.SaveDialogState(models.DialogState{ConversationID: "conv-1", State: []byte("{broken")}))
	_, err := NewStoreBasedStateManager(st).LoadStack(context.Background(), "conv-1")
	assert.Error(t, err)
}
