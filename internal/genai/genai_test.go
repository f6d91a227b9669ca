package genai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp   *openai.ChatCompletion
	err    error
	params openai.ChatCompletionNewParams
}

func (m *mockChatService) New(_ context.Context, params openai.ChatCompletionNewParams, _ ...option.RequestOption) (*openai.ChatCompletion, error) {
	m.params = params
	return m.resp, m.err
}

func answer(content string) *openai.ChatCompletion {
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

var menu = []string{"Отчеты Химкурьер", "Полезные ссылки", "Котировки акций Tikkurila"}

func TestMatchChoice(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantIdx int
		wantOK  bool
	}{
		{"number", "2", 1, true},
		{"number with dot", " 3.\n", 2, true},
		{"none", "0", -1, false},
		{"out of range", "7", -1, false},
		{"prose", "Полезные ссылки", -1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockChatService{resp: answer(tt.content)}
			c := &Client{chat: mock, model: DefaultModel}
			idx, ok, err := c.MatchChoice(context.Background(), "дай ссылки", menu)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if idx != tt.wantIdx || ok != tt.wantOK {
				t.Errorf("MatchChoice = %d, %v; want %d, %v", idx, ok, tt.wantIdx, tt.wantOK)
			}
		})
	}
}

func TestMatchChoicePromptListsOptions(t *testing.T) {
	mock := &mockChatService{resp: answer("1")}
	c := &Client{chat: mock, model: DefaultModel}
	if _, _, err := c.MatchChoice(context.Background(), "отчеты", menu); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mock.params.Messages) != 2 {
		t.Fatalf("expected system and user messages, got %d", len(mock.params.Messages))
	}
	got := matchUserPrompt("отчеты", menu)
	for _, want := range []string{"1. Отчеты Химкурьер", "3. Котировки акций Tikkurila", "User reply: отчеты"} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt %q misses %q", got, want)
		}
	}
}

func TestMatchChoiceErrors(t *testing.T) {
	c := &Client{chat: &mockChatService{err: errors.New("service failure")}}
	_, ok, err := c.MatchChoice(context.Background(), "x", menu)
	if err == nil || ok {
		t.Errorf("expected service failure, got ok=%v err=%v", ok, err)
	}

	c = &Client{chat: &mockChatService{resp: &openai.ChatCompletion{}}}
	if _, err := c.Complete(context.Background(), "sys", "usr"); !errors.Is(err, ErrNoChoicesReturned) {
		t.Errorf("expected ErrNoChoicesReturned, got %v", err)
	}

	if _, ok, err := c.MatchChoice(context.Background(), "x", nil); ok || err != nil {
		t.Errorf("empty choices must not match: ok=%v err=%v", ok, err)
	}
}

func TestNewClient(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewClient(); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("expected ErrMissingAPIKey, got %v", err)
	}
	cli, err := NewClient(WithAPIKey("test-key"), WithModel("gpt-4o"))
	if err != nil {
		t.Fatalf("expected no error with API key, got %v", err)
	}
	if cli.model != "gpt-4o" {
		t.Errorf("model = %q", cli.model)
	}
}
