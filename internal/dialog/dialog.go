package dialog

import (
	"context"
	"fmt"
	"log/slog"
)

// DefaultDoneWord is the sentinel that cancels any prompt.
const DefaultDoneWord = "завершить"

// Step is one stage of a waterfall. It returns the transition to apply.
type Step func(ctx context.Context, sc *StepContext) (Action, error)

// Validator checks a recognized prompt value. It may send an explanatory
// message through pc.Turn before rejecting.
type Validator func(ctx context.Context, pc *PromptContext) (bool, error)

// ChoiceMatcher maps free text onto one of the offered choices when exact
// recognition fails. It returns ok=false when nothing fits.
type ChoiceMatcher interface {
	MatchChoice(ctx context.Context, input string, choices []string) (index int, ok bool, err error)
}

// Dialog is a named, ordered list of steps plus the validators its prompts
// refer to and the child dialogs it may begin.
type Dialog struct {
	ID         string
	Steps      []Step
	Validators map[string]Validator
	Children   []*Dialog
}

// Set is the registry of dialogs reachable in a conversation. It is built
// once and shared by all conversations.
type Set struct {
	dialogs  map[string]*Dialog
	doneWord string
	matcher  ChoiceMatcher
}

// SetOpts holds configuration for a Set.
type SetOpts struct {
	DoneWord string
	Matcher  ChoiceMatcher
}

// SetOption configures a Set.
type SetOption func(*SetOpts)

// WithDoneWord overrides the cancel sentinel.
func WithDoneWord(word string) SetOption {
	return func(o *SetOpts) { o.DoneWord = word }
}

// WithChoiceMatcher installs a fallback matcher for choice prompts.
func WithChoiceMatcher(m ChoiceMatcher) SetOption {
	return func(o *SetOpts) { o.Matcher = m }
}

// NewSet creates an empty dialog registry.
func NewSet(opts ...SetOption) *Set {
	cfg := SetOpts{DoneWord: DefaultDoneWord}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Set{
		dialogs:  make(map[string]*Dialog),
		doneWord: cfg.DoneWord,
		matcher:  cfg.Matcher,
	}
}

// Add registers d and, recursively, its children.
func (s *Set) Add(d *Dialog) error {
	if d == nil || d.ID == "" {
		return fmt.Errorf("dialog must have an id")
	}
	if existing, ok := s.dialogs[d.ID]; ok {
		if existing == d {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrDuplicateDialog, d.ID)
	}
	s.dialogs[d.ID] = d
	slog.Debug("DialogSet Add", "dialogID", d.ID, "steps", len(d.Steps), "children", len(d.Children))
	for _, child := range d.Children {
		if err := s.Add(child); err != nil {
			return err
		}
	}
	return nil
}

// Find looks up a registered dialog.
func (s *Set) Find(id string) (*Dialog, bool) {
	d, ok := s.dialogs[id]
	return d, ok
}

// DoneWord returns the cancel sentinel used by prompts.
func (s *Set) DoneWord() string {
	return s.doneWord
}
