package dialog

import (
	"encoding/json"
	"strings"
)

// ResultKind tags the variant held by a Result.
type ResultKind string

const (
	ResultNone   ResultKind = ""
	ResultChoice ResultKind = "choice"
	ResultText   ResultKind = "text"
	ResultList   ResultKind = "list"
	ResultNode   ResultKind = "node"
	ResultDone   ResultKind = "done"
)

// FoundChoice is a recognized choice and its position in the offered list.
type FoundChoice struct {
	Value string `json:"value"`
	Index int    `json:"index"`
}

// Result is the value handed from one step to the next, or from a finished
// child dialog to its parent.
type Result struct {
	Kind   ResultKind      `json:"kind,omitempty"`
	Choice *FoundChoice    `json:"choice,omitempty"`
	Text   string          `json:"text,omitempty"`
	List   []string        `json:"list,omitempty"`
	Node   json.RawMessage `json:"node,omitempty"`
}

// None is the empty result.
func None() Result { return Result{} }

// Done is the cancel sentinel result.
func Done() Result { return Result{Kind: ResultDone} }

// Choice wraps a recognized choice.
func Choice(value string, index int) Result {
	return Result{Kind: ResultChoice, Choice: &FoundChoice{Value: value, Index: index}}
}

// Text wraps free text.
func Text(s string) Result { return Result{Kind: ResultText, Text: s} }

// List wraps an ordered list of strings.
func List(items []string) Result {
	return Result{Kind: ResultList, List: append([]string(nil), items...)}
}

// Node wraps a raw JSON subtree.
func Node(raw json.RawMessage) Result { return Result{Kind: ResultNode, Node: raw} }

// IsDone reports whether the result is the cancel sentinel.
func (r Result) IsDone() bool { return r.Kind == ResultDone }

// Value returns the choice value or the text, whichever the result holds.
func (r Result) Value() string {
	switch r.Kind {
	case ResultChoice:
		if r.Choice != nil {
			return r.Choice.Value
		}
	case ResultText:
		return r.Text
	case ResultList:
		return strings.Join(r.List, ", ")
	case ResultNode:
		return string(r.Node)
	}
	return ""
}
