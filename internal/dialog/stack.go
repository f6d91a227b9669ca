package dialog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Status describes where the stack stands after a turn.
type Status string

const (
	// StatusEmpty means nothing ran because the stack was empty.
	StatusEmpty Status = "empty"
	// StatusWaiting means a prompt is outstanding.
	StatusWaiting Status = "waiting"
	// StatusComplete means the last instance ended and the stack is empty.
	StatusComplete Status = "complete"
	// StatusCancelled means the stack was cleared by CancelAll.
	StatusCancelled Status = "cancelled"
)

// TurnResult is the outcome of a stack operation.
type TurnResult struct {
	Status Status `json:"status"`
	Result Result `json:"result"`
}

// Stack applies dialog transitions to one conversation's State during one
// turn. It is not safe for concurrent use; callers serialize turns per
// conversation.
type Stack struct {
	set   *Set
	state *State
	turn  *Turn
}

// NewStack binds a dialog set, a conversation's persisted state and the
// current turn.
func NewStack(set *Set, state *State, turn *Turn) *Stack {
	if state == nil {
		state = &State{}
	}
	return &Stack{set: set, state: state, turn: turn}
}

// State returns the stack state to persist after the turn.
func (s *Stack) State() *State {
	return s.state
}

// Depth returns the number of active instances.
func (s *Stack) Depth() int {
	return s.state.Depth()
}

// Active returns the top instance, or nil.
func (s *Stack) Active() *Instance {
	return s.state.Active()
}

// Begin pushes a new instance of id and runs its first step.
func (s *Stack) Begin(ctx context.Context, id string, options any) (TurnResult, error) {
	d, ok := s.set.Find(id)
	if !ok {
		return TurnResult{}, fmt.Errorf("%w: %s", ErrUnknownDialog, id)
	}
	inst, err := newInstance(id, options)
	if err != nil {
		return TurnResult{}, err
	}
	s.state.Stack = append(s.state.Stack, inst)
	slog.Debug("DialogStack Begin", "dialogID", id, "depth", s.Depth())
	return s.run(ctx, d, inst, None())
}

// Continue routes the current turn to the active instance. It returns
// ErrNoActiveDialog when the stack is empty.
func (s *Stack) Continue(ctx context.Context) (TurnResult, error) {
	inst := s.Active()
	if inst == nil {
		return TurnResult{Status: StatusEmpty}, ErrNoActiveDialog
	}
	d, ok := s.set.Find(inst.DialogID)
	if !ok {
		return TurnResult{}, fmt.Errorf("%w: %s", ErrUnknownDialog, inst.DialogID)
	}

	ps := inst.Prompt
	if ps == nil {
		slog.Debug("DialogStack Continue: no outstanding prompt, rerunning step", "dialogID", d.ID, "step", inst.Step)
		return s.run(ctx, d, inst, Text(s.turn.Input()))
	}

	recognized, err := s.set.recognize(ctx, ps.Options, s.turn.Input())
	if err == nil && !recognized.IsDone() && ps.Options.Validator != "" {
		err = s.validate(ctx, d, ps, recognized)
	}
	if err != nil {
		if !errors.Is(err, ErrRecognitionFailed) && !errors.Is(err, ErrValidationFailed) {
			return TurnResult{}, err
		}
		ps.Attempts++
		slog.Debug("DialogStack Continue: reprompting", "dialogID", d.ID, "step", inst.Step, "reason", err, "attempts", ps.Attempts)
		if msg, ok := ps.Options.retryMessage(); ok {
			if err := s.turn.Send(ctx, msg); err != nil {
				return TurnResult{}, fmt.Errorf("send retry prompt: %w", err)
			}
		}
		return TurnResult{Status: StatusWaiting}, nil
	}

	inst.Prompt = nil
	inst.Step++
	return s.run(ctx, d, inst, recognized)
}

func (s *Stack) validate(ctx context.Context, d *Dialog, ps *PromptState, recognized Result) error {
	v, err := d.validator(ps.Options.Validator)
	if err != nil {
		return err
	}
	ok, err := v(ctx, &PromptContext{
		Turn:       s.turn,
		Recognized: recognized,
		Options:    ps.Options,
		Attempts:   ps.Attempts,
	})
	if err != nil {
		return fmt.Errorf("validator %s: %w", ps.Options.Validator, err)
	}
	if !ok {
		return ErrValidationFailed
	}
	return nil
}

// End pops the active instance. If a parent remains, its next step runs with
// r as input.
func (s *Stack) End(ctx context.Context, r Result) (TurnResult, error) {
	if s.Depth() == 0 {
		return TurnResult{Status: StatusEmpty}, ErrNoActiveDialog
	}
	ended := s.pop()
	slog.Debug("DialogStack End", "dialogID", ended.DialogID, "depth", s.Depth(), "resultKind", r.Kind)

	parent := s.Active()
	if parent == nil {
		return TurnResult{Status: StatusComplete, Result: r}, nil
	}
	d, ok := s.set.Find(parent.DialogID)
	if !ok {
		return TurnResult{}, fmt.Errorf("%w: %s", ErrUnknownDialog, parent.DialogID)
	}
	parent.Prompt = nil
	parent.Step++
	return s.run(ctx, d, parent, r)
}

// Replace pops the active instance and begins id in its place without
// resuming the parent. Depth is unchanged.
func (s *Stack) Replace(ctx context.Context, id string, options any) (TurnResult, error) {
	if _, ok := s.set.Find(id); !ok {
		return TurnResult{}, fmt.Errorf("%w: %s", ErrUnknownDialog, id)
	}
	if s.Depth() > 0 {
		replaced := s.pop()
		slog.Debug("DialogStack Replace", "from", replaced.DialogID, "to", id, "depth", s.Depth()+1)
	}
	return s.Begin(ctx, id, options)
}

// CancelAll clears the stack.
func (s *Stack) CancelAll(_ context.Context) (TurnResult, error) {
	slog.Debug("DialogStack CancelAll", "depth", s.Depth())
	s.state.Stack = nil
	return TurnResult{Status: StatusCancelled}, nil
}

func (s *Stack) pop() *Instance {
	n := len(s.state.Stack)
	top := s.state.Stack[n-1]
	s.state.Stack[n-1] = nil
	s.state.Stack = s.state.Stack[:n-1]
	return top
}

// run drives the waterfall of inst from its current step until a step
// suspends, ends or hands control to another instance.
func (s *Stack) run(ctx context.Context, d *Dialog, inst *Instance, input Result) (TurnResult, error) {
	for {
		if inst.Step >= len(d.Steps) {
			return s.End(ctx, input)
		}
		sc := &StepContext{Turn: s.turn, Instance: inst, Result: input}
		act, err := d.Steps[inst.Step](ctx, sc)
		if err != nil {
			return TurnResult{}, fmt.Errorf("%s step %d: %w", d.ID, inst.Step, err)
		}
		slog.Debug("DialogStack step", "dialogID", d.ID, "step", inst.Step, "action", act.kind.String())

		switch act.kind {
		case actionPrompt:
			inst.Prompt = &PromptState{Options: act.prompt}
			if msg, ok := act.prompt.promptMessage(); ok {
				if err := s.turn.Send(ctx, msg); err != nil {
					return TurnResult{}, fmt.Errorf("send prompt: %w", err)
				}
			}
			return TurnResult{Status: StatusWaiting}, nil
		case actionNext:
			inst.Step++
			input = act.result
		case actionBegin:
			return s.Begin(ctx, act.dialogID, act.options)
		case actionReplace:
			return s.Replace(ctx, act.dialogID, act.options)
		case actionEnd:
			return s.End(ctx, act.result)
		case actionCancelAll:
			return s.CancelAll(ctx)
		default:
			return TurnResult{}, fmt.Errorf("%s step %d returned no action", d.ID, inst.Step)
		}
	}
}
