package dialog

import (
	"encoding/json"
	"fmt"
)

// Instance is one activation of a dialog on the stack. All cross-step data of
// the activation lives here; dialog values are shared between conversations.
type Instance struct {
	DialogID string                     `json:"dialog_id"`
	Step     int                        `json:"step"`
	Options  json.RawMessage            `json:"options,omitempty"`
	Values   map[string]json.RawMessage `json:"values,omitempty"`
	Prompt   *PromptState               `json:"prompt,omitempty"`
}

// PromptState is an outstanding prompt waiting for the next inbound message.
type PromptState struct {
	Options  PromptOptions `json:"options"`
	Attempts int           `json:"attempts"`
}

func newInstance(id string, options any) (*Instance, error) {
	inst := &Instance{DialogID: id}
	if options != nil {
		raw, err := json.Marshal(options)
		if err != nil {
			return nil, fmt.Errorf("encode options for %s: %w", id, err)
		}
		inst.Options = raw
	}
	return inst, nil
}

// DecodeOptions unmarshals the begin options into v. It reports false when
// the instance was started without options.
func (i *Instance) DecodeOptions(v any) (bool, error) {
	if len(i.Options) == 0 || string(i.Options) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(i.Options, v); err != nil {
		return false, fmt.Errorf("decode options for %s: %w", i.DialogID, err)
	}
	return true, nil
}

// Get unmarshals the named value into v and reports whether it was present.
func (i *Instance) Get(key string, v any) (bool, error) {
	raw, ok := i.Values[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode value %q for %s: %w", key, i.DialogID, err)
	}
	return true, nil
}

// Set stores v under key.
func (i *Instance) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode value %q for %s: %w", key, i.DialogID, err)
	}
	if i.Values == nil {
		i.Values = make(map[string]json.RawMessage)
	}
	i.Values[key] = raw
	return nil
}

// State is the persisted dialog stack of one conversation. The last element
// is the active instance.
type State struct {
	Stack []*Instance `json:"stack"`
}

// Depth returns the number of active instances.
func (s *State) Depth() int {
	return len(s.Stack)
}

// Active returns the top instance, or nil on an empty stack.
func (s *State) Active() *Instance {
	if len(s.Stack) == 0 {
		return nil
	}
	return s.Stack[len(s.Stack)-1]
}

// MarshalState encodes the stack for storage.
func MarshalState(s *State) ([]byte, error) {
	return json.Marshal(s)
}

// UnmarshalState decodes a stored stack. Empty input yields an empty stack.
func UnmarshalState(data []byte) (*State, error) {
	s := &State{}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("decode dialog state: %w", err)
	}
	return s, nil
}
