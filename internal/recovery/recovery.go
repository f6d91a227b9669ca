// Package recovery repairs persisted state at startup and keeps it tidy while
// the bot runs. Components register as Recoverable and are run together by a
// RecoveryManager.
package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pilyavetsb/SecretaryBot/internal/store"
)

// DefaultInterval is how often Run repeats the recovery pass.
const DefaultInterval = time.Hour

// Recoverable defines the interface for components that can repair stored state
type Recoverable interface {
	// RecoverState is called at startup and on every maintenance tick
	RecoverState(ctx context.Context, registry *RecoveryRegistry) error
}

// RecoveryRegistry provides services that components can use during recovery
type RecoveryRegistry struct {
	store store.Store
	now   func() time.Time
}

// NewRecoveryRegistry creates a new recovery registry
func NewRecoveryRegistry(st store.Store, now func() time.Time) *RecoveryRegistry {
	if now == nil {
		now = time.Now
	}
	return &RecoveryRegistry{store: st, now: now}
}

// GetStore provides access to the store for recovery operations
func (r *RecoveryRegistry) GetStore() store.Store {
	return r.store
}

// Now returns the registry clock.
func (r *RecoveryRegistry) Now() time.Time {
	return r.now()
}

// Opts holds configuration options for the recovery manager.
type Opts struct {
	Now func() time.Time
}

// Option configures the recovery manager.
type Option func(*Opts)

// WithClock overrides time.Now for age checks.
func WithClock(now func() time.Time) Option {
	return func(o *Opts) {
		o.Now = now
	}
}

// RecoveryManager orchestrates recovery of all registered components
type RecoveryManager struct {
	registry     *RecoveryRegistry
	recoverables []Recoverable
}

// NewRecoveryManager creates a new recovery manager
func NewRecoveryManager(st store.Store, opts ...Option) *RecoveryManager {
	var o Opts
	for _, opt := range opts {
		opt(&o)
	}
	return &RecoveryManager{
		registry:     NewRecoveryRegistry(st, o.Now),
		recoverables: make([]Recoverable, 0),
	}
}

// RegisterRecoverable adds a component that can be recovered
func (rm *RecoveryManager) RegisterRecoverable(r Recoverable) {
	rm.recoverables = append(rm.recoverables, r)
}

// RecoverAll performs recovery of all registered components
func (rm *RecoveryManager) RecoverAll(ctx context.Context) error {
	slog.Debug("RecoveryManager RecoverAll: starting", "components", len(rm.recoverables))

	recoveredCount := 0
	errorCount := 0

	for _, recoverable := range rm.recoverables {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := recoverable.RecoverState(ctx, rm.registry); err != nil {
			slog.Error("RecoveryManager RecoverAll: component failed", "error", err, "component", fmt.Sprintf("%T", recoverable))
			errorCount++
			continue
		}
		recoveredCount++
	}

	slog.Debug("RecoveryManager RecoverAll: completed", "recovered", recoveredCount, "errors", errorCount)

	if errorCount > 0 {
		return fmt.Errorf("recovery completed with %d errors out of %d components", errorCount, len(rm.recoverables))
	}
	return nil
}

// Run repeats RecoverAll every interval until ctx is cancelled. Failed passes
// are logged and retried on the next tick.
func (rm *RecoveryManager) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Debug("RecoveryManager Run: stopped")
			return nil
		case <-ticker.C:
			if err := rm.RecoverAll(ctx); err != nil && ctx.Err() == nil {
				slog.Warn("RecoveryManager Run: pass incomplete", "error", err)
			}
		}
	}
}
