// Package bot runs one inbound activity at a time per conversation through
// the dialog stack and persists what changed.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pilyavetsb/SecretaryBot/internal/dialog"
	"github.com/pilyavetsb/SecretaryBot/internal/dialogs"
	"github.com/pilyavetsb/SecretaryBot/internal/models"
	"github.com/pilyavetsb/SecretaryBot/internal/store"
)

// DefaultErrorMessage is sent when a turn fails unexpectedly.
const DefaultErrorMessage = "Что-то пошло не так😿 Давайте начнем сначала: отправьте мне любое сообщение"

// ErrDuplicateActivity is returned for an activity ID that was already handled.
var ErrDuplicateActivity = errors.New("activity already processed")

// Opts holds configuration options for the bot.
type Opts struct {
	RootDialog   string
	ErrorMessage string
	Now          func() time.Time
}

// Option configures the bot.
type Option func(*Opts)

// WithRootDialog sets the dialog started when a conversation has no active dialog.
func WithRootDialog(id string) Option {
	return func(o *Opts) {
		o.RootDialog = id
	}
}

// WithErrorMessage sets the message sent when a turn fails.
func WithErrorMessage(msg string) Option {
	return func(o *Opts) {
		o.ErrorMessage = msg
	}
}

// WithClock overrides time.Now for receipts and transcripts.
func WithClock(now func() time.Time) Option {
	return func(o *Opts) {
		o.Now = now
	}
}

// Bot routes inbound activities to the dialog stack of their conversation.
type Bot struct {
	set    *dialog.Set
	store  store.Store
	states *StoreBasedStateManager
	opts   Opts
	locks  *keyedMutex
}

// New creates a bot over a dialog set and a store.
func New(set *dialog.Set, st store.Store, opts ...Option) (*Bot, error) {
	if set == nil {
		return nil, errors.New("bot: dialog set is required")
	}
	if st == nil {
		return nil, errors.New("bot: store is required")
	}
	o := Opts{
		RootDialog:   dialogs.MainID,
		ErrorMessage: DefaultErrorMessage,
		Now:          time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if _, ok := set.Find(o.RootDialog); !ok {
		return nil, fmt.Errorf("%w: %s", dialog.ErrUnknownDialog, o.RootDialog)
	}
	states := NewStoreBasedStateManager(st)
	states.now = o.Now
	return &Bot{
		set:    set,
		store:  st,
		states: states,
		opts:   o,
		locks:  newKeyedMutex(),
	}, nil
}

// Dialogs returns the dialog set the bot runs.
func (b *Bot) Dialogs() *dialog.Set {
	return b.set
}

// States exposes the state manager used for stacks and profiles.
func (b *Bot) States() *StoreBasedStateManager {
	return b.states
}

// HandleTurn processes one inbound activity and sends the replies through
// sender. Turns of the same conversation never overlap.
//
// Activity IDs are deduplicated per conversation. An activity whose turn
// failed before any reply went out is forgotten, so a redelivery runs again.
func (b *Bot) HandleTurn(ctx context.Context, activity models.Activity, sender dialog.Sender) (err error) {
	if err := activity.Validate(); err != nil {
		return err
	}

	out := &auditSender{next: sender, store: b.store, to: activity.From.ID, now: b.opts.Now}
	if activity.ID != "" {
		key := inboundKey(activity)
		fresh, rerr := b.store.RecordInbound(key, activity.ConversationID)
		if rerr != nil {
			slog.Error("Bot HandleTurn: dedup failed", "error", rerr, "activityID", activity.ID)
			return fmt.Errorf("record inbound activity: %w", rerr)
		}
		if !fresh {
			slog.Info("Bot HandleTurn: duplicate activity skipped", "activityID", activity.ID, "conversationID", activity.ConversationID)
			return ErrDuplicateActivity
		}
		defer func() {
			if err != nil && out.delivered == 0 {
				if ferr := b.store.ForgetInbound(key); ferr != nil {
					slog.Warn("Bot HandleTurn: forget inbound failed", "error", ferr, "activityID", activity.ID)
				}
				return
			}
			if merr := b.store.MarkProcessed(key); merr != nil {
				slog.Warn("Bot HandleTurn: mark processed failed", "error", merr, "activityID", activity.ID)
			}
		}()
	}

	unlock := b.locks.lock(activity.ConversationID)
	defer unlock()

	if activity.Type == models.ActivityTypeConversationUpdate {
		return b.welcome(ctx, activity, out)
	}
	return b.runDialogs(ctx, activity, out)
}

// inboundKey scopes a client-chosen activity ID to its conversation.
func inboundKey(a models.Activity) string {
	return a.ConversationID + ":" + a.ID
}

// welcome greets every added member except the bot itself.
func (b *Bot) welcome(ctx context.Context, activity models.Activity, sender dialog.Sender) error {
	for _, member := range activity.MembersAdded {
		if member.ID == activity.Recipient.ID {
			continue
		}
		slog.Info("Bot welcome", "conversationID", activity.ConversationID, "memberID", member.ID)
		if err := sender.Send(ctx, models.TextMessage(dialogs.WelcomeText(member.Name))); err != nil {
			return fmt.Errorf("send welcome: %w", err)
		}
	}
	return nil
}

func (b *Bot) runDialogs(ctx context.Context, activity models.Activity, sender dialog.Sender) error {
	convID := activity.ConversationID
	if err := b.store.AddResponse(models.Response{
		From: activity.From.ID,
		Body: activity.Input(),
		Time: b.opts.Now().Unix(),
	}); err != nil {
		slog.Warn("Bot HandleTurn: transcript write failed", "error", err, "conversationID", convID)
	}

	state, err := b.states.LoadStack(ctx, convID)
	if err != nil {
		return fmt.Errorf("load dialog state: %w", err)
	}

	st := dialog.NewStack(b.set, state, dialog.NewTurn(activity, sender))
	res, err := st.Continue(ctx)
	if errors.Is(err, dialog.ErrNoActiveDialog) {
		slog.Debug("Bot HandleTurn: starting root dialog", "conversationID", convID, "dialogID", b.opts.RootDialog)
		res, err = st.Begin(ctx, b.opts.RootDialog, nil)
	}
	if err != nil {
		slog.Error("Bot HandleTurn: dialog failed", "error", err, "conversationID", convID)
		if sendErr := sender.Send(ctx, models.TextMessage(b.opts.ErrorMessage)); sendErr != nil {
			slog.Error("Bot HandleTurn: failed to send error message", "error", sendErr, "conversationID", convID)
		}
		_, _ = st.CancelAll(ctx)
		if resetErr := b.states.ResetStack(ctx, convID); resetErr != nil {
			slog.Error("Bot HandleTurn: reset failed", "error", resetErr, "conversationID", convID)
		}
		return fmt.Errorf("dialog turn failed: %w", err)
	}

	slog.Debug("Bot HandleTurn: turn finished", "conversationID", convID, "status", res.Status, "depth", st.Depth())
	if err := b.states.SaveStack(ctx, convID, activity.From.ID, st.State()); err != nil {
		return fmt.Errorf("save dialog state: %w", err)
	}
	return nil
}

// LockConversation blocks until no turn of conversationID is running and
// keeps new ones out until unlock is called.
func (b *Bot) LockConversation(conversationID string) (unlock func()) {
	return b.locks.lock(conversationID)
}

// Conversation returns the stored dialog stack of a conversation.
func (b *Bot) Conversation(ctx context.Context, conversationID string) (*dialog.State, error) {
	unlock := b.locks.lock(conversationID)
	defer unlock()
	return b.states.LoadStack(ctx, conversationID)
}

// ResetConversation drops the dialog stack of a conversation; the next
// message starts over from the root dialog.
func (b *Bot) ResetConversation(ctx context.Context, conversationID string) error {
	unlock := b.locks.lock(conversationID)
	defer unlock()
	return b.states.ResetStack(ctx, conversationID)
}

// auditSender records a receipt for every message it forwards.
type auditSender struct {
	next  dialog.Sender
	store store.Store
	to    string
	now   func() time.Time

	delivered int
}

func (a *auditSender) Send(ctx context.Context, msgs ...models.Message) error {
	status := models.MessageStatusSent
	err := a.next.Send(ctx, msgs...)
	if err != nil {
		status = models.MessageStatusFailed
	} else {
		a.delivered += len(msgs)
	}
	for range msgs {
		if rerr := a.store.AddReceipt(models.Receipt{To: a.to, Status: status, Time: a.now().Unix()}); rerr != nil {
			slog.Warn("Bot audit: receipt write failed", "error", rerr, "to", a.to)
		}
	}
	return err
}

// keyedMutex serializes work per key. Entries are dropped once nobody holds
// or waits for them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
