package models

import (
	"encoding/json"
	"strings"
)

// AdaptiveCardContentType is the attachment content type of adaptive cards.
const AdaptiveCardContentType = "application/vnd.microsoft.card.adaptive"

// ListStyle controls how the choices of a prompt are presented.
type ListStyle string

const (
	// ListStyleNone hides the choices.
	ListStyleNone ListStyle = "none"
	// ListStyleList renders the choices as a bulleted list.
	ListStyleList ListStyle = "list"
	// ListStyleSuggested renders the choices as suggested replies.
	ListStyleSuggested ListStyle = "suggested"
)

// Card is a rich attachment. Fallback is what text-only channels show.
type Card struct {
	ContentType string          `json:"content_type"`
	Content     json.RawMessage `json:"content"`
	Fallback    string          `json:"fallback,omitempty"`
}

// Message is one outbound bot message.
type Message struct {
	Text    string    `json:"text,omitempty"`
	Choices []string  `json:"choices,omitempty"`
	Style   ListStyle `json:"style,omitempty"`
	Cards   []Card    `json:"cards,omitempty"`
}

// TextMessage builds a plain text message.
func TextMessage(text string) Message {
	return Message{Text: text}
}

// CardMessage builds a message that carries only attachments.
func CardMessage(cards ...Card) Message {
	return Message{Cards: cards}
}

// Render flattens the message for text-only transports.
func (m Message) Render() string {
	var parts []string
	if m.Text != "" {
		parts = append(parts, m.Text)
	}
	if len(m.Choices) > 0 {
		switch m.Style {
		case ListStyleNone:
		case ListStyleSuggested:
			quoted := make([]string, len(m.Choices))
			for i, c := range m.Choices {
				quoted[i] = "[" + c + "]"
			}
			parts = append(parts, strings.Join(quoted, " "))
		default:
			lines := make([]string, len(m.Choices))
			for i, c := range m.Choices {
				lines[i] = "• " + c
			}
			parts = append(parts, strings.Join(lines, "\n"))
		}
	}
	for _, c := range m.Cards {
		if c.Fallback != "" {
			parts = append(parts, c.Fallback)
		}
	}
	return strings.Join(parts, "\n\n")
}
