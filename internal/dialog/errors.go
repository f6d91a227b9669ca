// Package dialog implements the stack-based conversation engine: dialogs are
// ordered step lists, instances live on a per-conversation stack, and prompts
// suspend a step until the next inbound message is recognized and validated.
package dialog

import "errors"

var (
	// ErrNoActiveDialog is returned by Continue when the stack is empty.
	ErrNoActiveDialog = errors.New("no active dialog")
	// ErrRecognitionFailed means the inbound message does not match the prompt shape.
	ErrRecognitionFailed = errors.New("recognition failed")
	// ErrValidationFailed means a recognized value was rejected by the prompt validator.
	ErrValidationFailed = errors.New("validation failed")
	// ErrUnknownDialog is returned when a dialog id is not registered in the set.
	ErrUnknownDialog = errors.New("unknown dialog")
	// ErrUnknownValidator is returned when a prompt names a validator its dialog lacks.
	ErrUnknownValidator = errors.New("unknown validator")
	// ErrDuplicateDialog is returned when two dialogs share an id.
	ErrDuplicateDialog = errors.New("duplicate dialog id")
)
