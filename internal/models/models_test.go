package models

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestActivityValidate(t *testing.T) {
	tests := []struct {
		name    string
		act     Activity
		wantErr error
	}{
		{"text message", Activity{Type: ActivityTypeMessage, ConversationID: "c", From: Account{ID: "u"}, Text: "hi"}, nil},
		{"value message", Activity{Type: ActivityTypeMessage, ConversationID: "c", From: Account{ID: "u"}, Value: json.RawMessage(`{"a":1}`)}, nil},
		{"members added", Activity{Type: ActivityTypeConversationUpdate, ConversationID: "c"}, nil},
		{"no conversation", Activity{Type: ActivityTypeMessage, From: Account{ID: "u"}, Text: "hi"}, ErrEmptyConversation},
		{"no sender", Activity{Type: ActivityTypeMessage, ConversationID: "c", Text: "hi"}, ErrEmptySender},
		{"empty message", Activity{Type: ActivityTypeMessage, ConversationID: "c", From: Account{ID: "u"}}, ErrEmptyMessage},
		{"unknown type", Activity{Type: "typing", ConversationID: "c"}, ErrInvalidActivityType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.act.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestActivityInputPrefersText(t *testing.T) {
	a := Activity{Text: "Завершить", Value: json.RawMessage(`{"x":1}`)}
	if got := a.Input(); got != "Завершить" {
		t.Errorf("Input() = %q, want text", got)
	}
}

func TestActivityInputSerializesValue(t *testing.T) {
	a := Activity{Value: json.RawMessage("{\n  \"reason\": \"Vacation\"\n}")}
	if got := a.Input(); got != `{"reason":"Vacation"}` {
		t.Errorf("Input() = %q", got)
	}
}

func TestActivityFromResponse(t *testing.T) {
	a := ActivityFromResponse("twilio", Response{From: "+79261234567", Body: "привет", Time: 42})
	if a.ConversationID != "twilio:+79261234567" || a.UserID() != "+79261234567" || a.Text != "привет" || a.Time != 42 {
		t.Errorf("unexpected activity: %+v", a)
	}
}

func TestMessageRender(t *testing.T) {
	m := Message{
		Text:    "Выберите",
		Choices: []string{"Деко", "Индастри"},
		Style:   ListStyleList,
		Cards:   []Card{{Fallback: "card text"}},
	}
	want := "Выберите\n\n• Деко\n• Индастри\n\ncard text"
	if got := m.Render(); got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}

	m.Style = ListStyleSuggested
	if got := m.Render(); got != "Выберите\n\n[Деко] [Индастри]\n\ncard text" {
		t.Errorf("suggested Render() = %q", got)
	}

	m.Style = ListStyleNone
	if got := m.Render(); got != "Выберите\n\ncard text" {
		t.Errorf("hidden Render() = %q", got)
	}
}

func TestUserProfileDelegate(t *testing.T) {
	p := NewUserProfile("u1")
	if p.Language != LanguageRU {
		t.Errorf("default language = %q, want RU", p.Language)
	}
	p.Names = []string{"Иван"}
	name, area := p.Delegate(0)
	if name != "Иван" || area != "" {
		t.Errorf("Delegate(0) = %q, %q", name, area)
	}
	name, area = p.Delegate(3)
	if name != "" || area != "" {
		t.Errorf("Delegate(3) = %q, %q", name, area)
	}
}
