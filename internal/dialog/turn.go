package dialog

import (
	"context"
	"sync"

	"github.com/pilyavetsb/SecretaryBot/internal/models"
)

// Sender delivers outbound messages for one conversation, in order.
type Sender interface {
	Send(ctx context.Context, msgs ...models.Message) error
}

// Turn is the inbound activity being processed and the channel to answer on.
type Turn struct {
	Activity models.Activity
	sender   Sender
	sent     int
}

// NewTurn binds an inbound activity to its reply channel.
func NewTurn(activity models.Activity, sender Sender) *Turn {
	return &Turn{Activity: activity, sender: sender}
}

// Input returns the recognizable text of the inbound activity.
func (t *Turn) Input() string {
	return t.Activity.Input()
}

// Send delivers msgs in order.
func (t *Turn) Send(ctx context.Context, msgs ...models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if err := t.sender.Send(ctx, msgs...); err != nil {
		return err
	}
	t.sent += len(msgs)
	return nil
}

// SendText delivers a plain text message.
func (t *Turn) SendText(ctx context.Context, text string) error {
	return t.Send(ctx, models.TextMessage(text))
}

// Sent returns how many messages were delivered during this turn.
func (t *Turn) Sent() int {
	return t.sent
}

// Recorder is a Sender that keeps every message in memory.
type Recorder struct {
	mu       sync.Mutex
	messages []models.Message
}

// Send records msgs.
func (r *Recorder) Send(_ context.Context, msgs ...models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msgs...)
	return nil
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []models.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Message(nil), r.messages...)
}

// Texts returns the text of every recorded message.
func (r *Recorder) Texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.messages))
	for _, m := range r.messages {
		out = append(out, m.Text)
	}
	return out
}

// Reset drops everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
}
