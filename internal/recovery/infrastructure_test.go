package recovery

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilyavetsb/SecretaryBot/internal/dialog"
	"github.com/pilyavetsb/SecretaryBot/internal/models"
	"github.com/pilyavetsb/SecretaryBot/internal/store"
)

func testSet(t *testing.T) *dialog.Set {
	t.Helper()
	set := dialog.NewSet()
	require.NoError(t, set.Add(&dialog.Dialog{
		ID:       "main",
		Children: []*dialog.Dialog{{ID: "links"}},
	}))
	return set
}

func saveState(t *testing.T, st store.Store, conversationID, raw string) {
	t.Helper()
	require.NoError(t, st.SaveDialogState(models.DialogState{
		ConversationID: conversationID,
		UserID:         "user-" + conversationID,
		State:          json.RawMessage(raw),
	}))
}

func TestStackSweeperRemovesBrokenStacks(t *testing.T) {
	st := store.NewInMemoryStore()
	saveState(t, st, "ok", `{"stack":[{"dialog_id":"main","step":1},{"dialog_id":"links","step":0}]}`)
	saveState(t, st, "empty", `{"stack":[]}`)
	saveState(t, st, "corrupt", `{"stack":`)
	saveState(t, st, "unknown", `{"stack":[{"dialog_id":"main","step":1},{"dialog_id":"weather","step":0}]}`)

	sweeper := NewStackSweeper(testSet(t), nil, DefaultStackMaxIdle)
	rm := NewRecoveryManager(st)
	rm.RegisterRecoverable(sweeper)
	require.NoError(t, rm.RecoverAll(context.Background()))

	assert.Equal(t, SweepReport{Scanned: 4, Corrupt: 1, Unknown: 1}, sweeper.LastReport())
	for id, kept := range map[string]bool{"ok": true, "empty": true, "corrupt": false, "unknown": false} {
		got, err := st.GetDialogState(id)
		require.NoError(t, err)
		assert.Equal(t, kept, got != nil, "conversation %s", id)
	}
}

func TestStackSweeperRemovesStaleStacks(t *testing.T) {
	st := store.NewInMemoryStore()
	saveState(t, st, "idle", `{"stack":[{"dialog_id":"main","step":1}]}`)

	later := time.Now().Add(DefaultStackMaxIdle + time.Hour)
	clock := WithClock(func() time.Time { return later })

	keepIdle := NewStackSweeper(testSet(t), nil, 0)
	rm := NewRecoveryManager(st, clock)
	rm.RegisterRecoverable(keepIdle)
	require.NoError(t, rm.RecoverAll(context.Background()))
	assert.Zero(t, keepIdle.LastReport().Removed())

	sweeper := NewStackSweeper(testSet(t), nil, DefaultStackMaxIdle)
	rm = NewRecoveryManager(st, clock)
	rm.RegisterRecoverable(sweeper)
	require.NoError(t, rm.RecoverAll(context.Background()))
	assert.Equal(t, 1, sweeper.LastReport().Stale)

	got, err := st.GetDialogState("idle")
	require.NoError(t, err)
	assert.Nil(t, got)
}

// turnLocker stands in for the bot: while the sweeper waits for the lock, a
// turn finishes and saves a fresh stack.
type turnLocker struct {
	t      *testing.T
	st     store.Store
	locked []string
}

func (l *turnLocker) LockConversation(conversationID string) func() {
	l.locked = append(l.locked, conversationID)
	saveState(l.t, l.st, conversationID, `{"stack":[{"dialog_id":"main","step":1}]}`)
	return func() {}
}

func TestStackSweeperRechecksUnderConversationLock(t *testing.T) {
	st := store.NewInMemoryStore()
	saveState(t, st, "busy", `{"stack":`)
	locker := &turnLocker{t: t, st: st}

	sweeper := NewStackSweeper(testSet(t), locker, 0)
	rm := NewRecoveryManager(st)
	rm.RegisterRecoverable(sweeper)
	require.NoError(t, rm.RecoverAll(context.Background()))

	assert.Equal(t, []string{"busy"}, locker.locked)
	assert.Zero(t, sweeper.LastReport().Removed())
	got, err := st.GetDialogState("busy")
	require.NoError(t, err)
	require.NotNil(t, got, "a stack saved by a concurrent turn must survive")
	assert.JSONEq(t, `{"stack":[{"dialog_id":"main","step":1}]}`, string(got.State))
}

func TestDedupPurger(t *testing.T) {
	st := store.NewInMemoryStore()
	_, err := st.RecordInbound("msg-1", "conv-1")
	require.NoError(t, err)

	rm := NewRecoveryManager(st)
	rm.RegisterRecoverable(NewDedupPurger(DefaultDedupRetention))
	require.NoError(t, rm.RecoverAll(context.Background()))
	dup, err := st.IsDuplicate("msg-1")
	require.NoError(t, err)
	assert.True(t, dup, "recent IDs must survive")

	later := time.Now().Add(DefaultDedupRetention + time.Minute)
	rm = NewRecoveryManager(st, WithClock(func() time.Time { return later }))
	rm.RegisterRecoverable(NewDedupPurger(DefaultDedupRetention))
	rm.RegisterRecoverable(NewDedupPurger(0))
	require.NoError(t, rm.RecoverAll(context.Background()))
	dup, err = st.IsDuplicate("msg-1")
	require.NoError(t, err)
	assert.False(t, dup)
}
