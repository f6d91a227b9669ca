package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pilyavetsb/SecretaryBot/internal/dialog"
	"github.com/pilyavetsb/SecretaryBot/internal/models"
	"github.com/pilyavetsb/SecretaryBot/internal/store"
)

const (
	// DefaultStackMaxIdle is how long an untouched dialog stack is kept.
	DefaultStackMaxIdle = 30 * 24 * time.Hour
	// DefaultDedupRetention is how long inbound message IDs are remembered.
	DefaultDedupRetention = 7 * 24 * time.Hour
)

// SweepReport counts the stacks removed by one StackSweeper pass.
type SweepReport struct {
	Scanned int
	Corrupt int
	Unknown int
	Stale   int
}

// Removed returns the total number of deleted stacks.
func (r SweepReport) Removed() int {
	return r.Corrupt + r.Unknown + r.Stale
}

// ConversationLocker serializes work on one conversation with its turns.
// *bot.Bot implements it.
type ConversationLocker interface {
	LockConversation(conversationID string) (unlock func())
}

// StackSweeper deletes stored dialog stacks the bot can no longer resume:
// undecodable ones, ones naming a dialog that is not registered, and ones
// idle for longer than MaxIdle. A zero MaxIdle keeps idle stacks.
//
// Candidates are re-read under the conversation lock before deletion, so a
// turn that ran in between keeps its stack.
type StackSweeper struct {
	set     *dialog.Set
	locker  ConversationLocker
	MaxIdle time.Duration

	last SweepReport
}

// NewStackSweeper creates a sweeper checking stacks against set. locker may
// be nil when no turns run concurrently.
func NewStackSweeper(set *dialog.Set, locker ConversationLocker, maxIdle time.Duration) *StackSweeper {
	return &StackSweeper{set: set, locker: locker, MaxIdle: maxIdle}
}

// LastReport returns the counts of the most recent pass.
func (s *StackSweeper) LastReport() SweepReport {
	return s.last
}

type sweepReason int

const (
	keepStack sweepReason = iota
	corruptStack
	unknownStack
	staleStack
)

func (r sweepReason) String() string {
	switch r {
	case corruptStack:
		return "corrupt"
	case unknownStack:
		return "unknown dialog"
	case staleStack:
		return "stale"
	}
	return "keep"
}

func (s *StackSweeper) classify(ds *models.DialogState, cutoff time.Time) sweepReason {
	state, err := dialog.UnmarshalState(ds.State)
	switch {
	case err != nil:
		return corruptStack
	case !s.known(state):
		return unknownStack
	case s.MaxIdle > 0 && ds.UpdatedAt.Before(cutoff):
		return staleStack
	}
	return keepStack
}

// RecoverState implements Recoverable.
func (s *StackSweeper) RecoverState(ctx context.Context, registry *RecoveryRegistry) error {
	st := registry.GetStore()
	states, err := st.ListDialogStates()
	if err != nil {
		return fmt.Errorf("list dialog states: %w", err)
	}

	var report SweepReport
	cutoff := registry.Now().Add(-s.MaxIdle)
	for i := range states {
		if err := ctx.Err(); err != nil {
			return err
		}
		report.Scanned++
		if s.classify(&states[i], cutoff) == keepStack {
			continue
		}

		reason, err := s.sweep(st, states[i].ConversationID, cutoff)
		if err != nil {
			return err
		}
		switch reason {
		case corruptStack:
			report.Corrupt++
		case unknownStack:
			report.Unknown++
		case staleStack:
			report.Stale++
		}
	}

	s.last = report
	if report.Removed() > 0 {
		slog.Info("StackSweeper RecoverState: swept dialog stacks",
			"scanned", report.Scanned, "corrupt", report.Corrupt, "unknown", report.Unknown, "stale", report.Stale)
	}
	return nil
}

// sweep deletes the stack of conversationID if it still qualifies once no
// turn of the conversation is running.
func (s *StackSweeper) sweep(st store.Store, conversationID string, cutoff time.Time) (sweepReason, error) {
	if s.locker != nil {
		unlock := s.locker.LockConversation(conversationID)
		defer unlock()
	}
	current, err := st.GetDialogState(conversationID)
	if err != nil {
		return keepStack, fmt.Errorf("reload dialog state %s: %w", conversationID, err)
	}
	if current == nil {
		return keepStack, nil
	}
	reason := s.classify(current, cutoff)
	if reason == keepStack {
		slog.Debug("StackSweeper RecoverState: stack changed, kept", "conversationID", conversationID)
		return keepStack, nil
	}
	if err := st.DeleteDialogState(conversationID); err != nil {
		return keepStack, fmt.Errorf("delete dialog state %s: %w", conversationID, err)
	}
	slog.Debug("StackSweeper RecoverState: removed stack", "conversationID", conversationID, "reason", reason.String())
	return reason, nil
}

func (s *StackSweeper) known(state *dialog.State) bool {
	for _, inst := range state.Stack {
		if inst == nil {
			return false
		}
		if _, ok := s.set.Find(inst.DialogID); !ok {
			return false
		}
	}
	return true
}

// DedupPurger forgets inbound message IDs older than Retention.
type DedupPurger struct {
	Retention time.Duration
}

// NewDedupPurger creates a purger with the given retention window.
func NewDedupPurger(retention time.Duration) *DedupPurger {
	return &DedupPurger{Retention: retention}
}

// RecoverState implements Recoverable.
func (p *DedupPurger) RecoverState(_ context.Context, registry *RecoveryRegistry) error {
	if p.Retention <= 0 {
		return nil
	}
	n, err := registry.GetStore().PurgeInbound(registry.Now().Add(-p.Retention))
	if err != nil {
		return fmt.Errorf("purge inbound records: %w", err)
	}
	if n > 0 {
		slog.Info("DedupPurger RecoverState: purged inbound records", "count", n)
	}
	return nil
}
