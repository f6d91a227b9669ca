package models

import (
	"encoding/json"
	"strings"
	"time"
)

// ActivityType distinguishes user messages from conversation membership updates.
type ActivityType string

const (
	// ActivityTypeMessage carries user text or a card postback value.
	ActivityTypeMessage ActivityType = "message"
	// ActivityTypeConversationUpdate announces members joining a conversation.
	ActivityTypeConversationUpdate ActivityType = "conversationUpdate"
)

// Account identifies a participant of a conversation.
type Account struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Activity is one inbound event delivered to the bot.
type Activity struct {
	ID             string          `json:"id,omitempty"`
	Type           ActivityType    `json:"type"`
	ChannelID      string          `json:"channel_id,omitempty"`
	ConversationID string          `json:"conversation_id"`
	From           Account         `json:"from"`
	Recipient      Account         `json:"recipient,omitempty"`
	Text           string          `json:"text,omitempty"`
	Value          json.RawMessage `json:"value,omitempty"`
	MembersAdded   []Account       `json:"members_added,omitempty"`
	Time           int64           `json:"time,omitempty"`
}

// Validate checks the fields every activity needs before it reaches the bot.
func (a *Activity) Validate() error {
	if a.ConversationID == "" {
		return ErrEmptyConversation
	}
	switch a.Type {
	case ActivityTypeMessage:
		if a.From.ID == "" {
			return ErrEmptySender
		}
		if a.Text == "" && len(a.Value) == 0 {
			return ErrEmptyMessage
		}
	case ActivityTypeConversationUpdate:
	default:
		return ErrInvalidActivityType
	}
	return nil
}

// Input returns the text the dialogs recognize. A card postback without text
// is handed over as its compact JSON encoding.
func (a Activity) Input() string {
	if a.Text != "" || len(a.Value) == 0 {
		return a.Text
	}
	var v interface{}
	if err := json.Unmarshal(a.Value, &v); err != nil {
		return strings.TrimSpace(string(a.Value))
	}
	out, err := json.Marshal(v)
	if err != nil {
		return strings.TrimSpace(string(a.Value))
	}
	return string(out)
}

// UserID returns the identity used for per-user storage.
func (a Activity) UserID() string {
	return a.From.ID
}

// ActivityFromResponse converts a text transport message into a message
// activity. Text transports have one conversation per sender.
func ActivityFromResponse(channelID string, r Response) Activity {
	ts := r.Time
	if ts == 0 {
		ts = time.Now().Unix()
	}
	return Activity{
		ID:             r.ID,
		Type:           ActivityTypeMessage,
		ChannelID:      channelID,
		ConversationID: channelID + ":" + r.From,
		From:           Account{ID: r.From},
		Text:           r.Body,
		Time:           ts,
	}
}
