// Package genai maps free-form user replies onto menu choices with the
// OpenAI chat completions API.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultModel is used unless WithModel says otherwise.
const DefaultModel = openai.ChatModelGPT4oMini

var (
	// ErrMissingAPIKey is returned when no API key is configured.
	ErrMissingAPIKey = errors.New("OPENAI_API_KEY not set")
	// ErrNoChoicesReturned is returned when the API answers without choices.
	ErrNoChoicesReturned = errors.New("no choices returned")
)

const matchSystemPrompt = "You route messages of a corporate chat bot. The user was offered numbered options " +
	"and replied in free form, usually in Russian. Answer with the number of the option the user most likely " +
	"means and nothing else. Answer 0 if no option fits."

// chatService is the part of the OpenAI client the package uses.
type chatService interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Opts holds configuration options for the client.
type Opts struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Option configures the client.
type Option func(*Opts)

// WithAPIKey sets the API key instead of OPENAI_API_KEY.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithBaseURL points the client at a compatible API.
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithModel selects the chat model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithTimeout bounds every completion request.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// Client wraps the chat completions service.
type Client struct {
	chat    chatService
	model   string
	timeout time.Duration
}

// NewClient creates a client. The API key defaults to OPENAI_API_KEY.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{Model: DefaultModel, Timeout: 10 * time.Second}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	cli := openai.NewClient(reqOpts...)
	slog.Debug("GenAI client created", "model", cfg.Model, "custom_base_url", cfg.BaseURL != "")
	return &Client{chat: &cli.Chat.Completions, model: cfg.Model, timeout: cfg.Timeout}, nil
}

// Complete returns the model's answer to a system and a user message.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	resp, err := c.chat.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	return resp.Choices[0].Message.Content, nil
}

// MatchChoice asks the model which of choices the input means.
func (c *Client) MatchChoice(ctx context.Context, input string, choices []string) (int, bool, error) {
	if len(choices) == 0 {
		return -1, false, nil
	}
	answer, err := c.Complete(ctx, matchSystemPrompt, matchUserPrompt(input, choices))
	if err != nil {
		return -1, false, err
	}
	idx, ok := parseChoiceNumber(answer, len(choices))
	slog.Debug("GenAI MatchChoice", "input", input, "answer", answer, "matched", ok)
	return idx, ok, nil
}

func matchUserPrompt(input string, choices []string) string {
	var b strings.Builder
	b.WriteString("Options:\n")
	for i, c := range choices {
		fmt.Fprintf(&b, "%d. %s\n", i+1, c)
	}
	b.WriteString("\nUser reply: ")
	b.WriteString(input)
	return b.String()
}

// parseChoiceNumber reads a 1-based option number from the answer and
// returns it 0-based.
func parseChoiceNumber(answer string, n int) (int, bool) {
	answer = strings.TrimSpace(answer)
	answer = strings.TrimRight(answer, ".")
	num, err := strconv.Atoi(answer)
	if err != nil || num < 1 || num > n {
		return -1, false
	}
	return num - 1, true
}
