package dialog

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pilyavetsb/SecretaryBot/internal/models"
)

// PromptOptions describes a question, how to re-ask it and what shape of
// answer it expects. A prompt with Choices is a choice prompt; without them it
// accepts any non-empty text.
type PromptOptions struct {
	Prompt      string           `json:"prompt,omitempty"`
	Retry       string           `json:"retry,omitempty"`
	Choices     []string         `json:"choices,omitempty"`
	Style       models.ListStyle `json:"style,omitempty"`
	Validator   string           `json:"validator,omitempty"`
	Validations string           `json:"validations,omitempty"`
}

// PromptContext is what a Validator sees.
type PromptContext struct {
	Turn       *Turn
	Recognized Result
	Options    PromptOptions
	Attempts   int
}

func (o PromptOptions) message(text string) (models.Message, bool) {
	if text == "" && (len(o.Choices) == 0 || o.Style == models.ListStyleNone) {
		return models.Message{}, false
	}
	return models.Message{Text: text, Choices: o.Choices, Style: o.Style}, true
}

func (o PromptOptions) promptMessage() (models.Message, bool) {
	return o.message(o.Prompt)
}

func (o PromptOptions) retryMessage() (models.Message, bool) {
	if o.Retry == "" {
		return o.message(o.Prompt)
	}
	return o.message(o.Retry)
}

// recognize matches input against the prompt shape. The done word is always
// recognized, whatever the shape.
func (s *Set) recognize(ctx context.Context, opts PromptOptions, input string) (Result, error) {
	trimmed := strings.TrimSpace(input)
	if s.doneWord != "" && strings.EqualFold(trimmed, s.doneWord) {
		return Done(), nil
	}
	if trimmed == "" {
		return None(), ErrRecognitionFailed
	}
	if len(opts.Choices) == 0 {
		return Text(trimmed), nil
	}
	for i, c := range opts.Choices {
		if strings.EqualFold(trimmed, strings.TrimSpace(c)) {
			return Choice(c, i), nil
		}
	}
	if s.matcher != nil {
		idx, ok, err := s.matcher.MatchChoice(ctx, trimmed, opts.Choices)
		if err != nil {
			slog.Warn("DialogSet recognize: choice matcher failed", "error", err)
		} else if ok && idx >= 0 && idx < len(opts.Choices) {
			slog.Debug("DialogSet recognize: choice matched by fallback matcher", "input", trimmed, "choice", opts.Choices[idx])
			return Choice(opts.Choices[idx], idx), nil
		}
	}
	return None(), ErrRecognitionFailed
}
