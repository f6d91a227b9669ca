package dialog

import (
	"context"
	"fmt"

	"github.com/pilyavetsb/SecretaryBot/internal/models"
)

type actionKind int

const (
	actionPrompt actionKind = iota + 1
	actionNext
	actionBegin
	actionReplace
	actionEnd
	actionCancelAll
)

func (k actionKind) String() string {
	switch k {
	case actionPrompt:
		return "prompt"
	case actionNext:
		return "next"
	case actionBegin:
		return "begin"
	case actionReplace:
		return "replace"
	case actionEnd:
		return "end"
	case actionCancelAll:
		return "cancelAll"
	default:
		return "unknown"
	}
}

// Action is the transition a step asks the sequencer to apply. Build one with
// the StepContext methods.
type Action struct {
	kind     actionKind
	prompt   PromptOptions
	dialogID string
	options  any
	result   Result
}

// StepContext is the per-pass view a step runs against.
type StepContext struct {
	Turn     *Turn
	Instance *Instance
	// Result is the value produced by the previous step, the answered prompt
	// or the child dialog that just ended.
	Result Result
}

// Index returns the position of the running step.
func (sc *StepContext) Index() int {
	return sc.Instance.Step
}

// Options decodes the options this instance was begun with.
func (sc *StepContext) Options(v any) (bool, error) {
	return sc.Instance.DecodeOptions(v)
}

// Get reads a value stored by an earlier step of this instance.
func (sc *StepContext) Get(key string, v any) (bool, error) {
	return sc.Instance.Get(key, v)
}

// Set stores a value for later steps of this instance.
func (sc *StepContext) Set(key string, v any) error {
	return sc.Instance.Set(key, v)
}

// Send delivers messages on the turn.
func (sc *StepContext) Send(ctx context.Context, msgs ...models.Message) error {
	return sc.Turn.Send(ctx, msgs...)
}

// SendText delivers a plain text message on the turn.
func (sc *StepContext) SendText(ctx context.Context, text string) error {
	return sc.Turn.SendText(ctx, text)
}

// Prompt suspends the instance until the user answers.
func (sc *StepContext) Prompt(opts PromptOptions) Action {
	return Action{kind: actionPrompt, prompt: opts}
}

// Next runs the following step immediately with r as its input.
func (sc *StepContext) Next(r Result) Action {
	return Action{kind: actionNext, result: r}
}

// Begin pushes a child dialog. When it ends, the following step of this
// instance receives its result.
func (sc *StepContext) Begin(dialogID string, options any) Action {
	return Action{kind: actionBegin, dialogID: dialogID, options: options}
}

// Replace swaps this instance for a fresh one of dialogID.
func (sc *StepContext) Replace(dialogID string, options any) Action {
	return Action{kind: actionReplace, dialogID: dialogID, options: options}
}

// End pops this instance and hands r to the parent.
func (sc *StepContext) End(r Result) Action {
	return Action{kind: actionEnd, result: r}
}

// CancelAll clears the whole stack.
func (sc *StepContext) CancelAll() Action {
	return Action{kind: actionCancelAll}
}

// Waterfall builds a dialog from steps.
func Waterfall(id string, steps ...Step) *Dialog {
	return &Dialog{ID: id, Steps: steps}
}

// WithValidator registers a named validator on the dialog and returns it.
func (d *Dialog) WithValidator(name string, v Validator) *Dialog {
	if d.Validators == nil {
		d.Validators = make(map[string]Validator)
	}
	d.Validators[name] = v
	return d
}

// WithChildren registers dialogs this one may begin and returns it.
func (d *Dialog) WithChildren(children ...*Dialog) *Dialog {
	d.Children = append(d.Children, children...)
	return d
}

func (d *Dialog) validator(name string) (Validator, error) {
	v, ok := d.Validators[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s", ErrUnknownValidator, name, d.ID)
	}
	return v, nil
}
