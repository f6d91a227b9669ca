package models

import (
	"encoding/json"
	"time"
)

// DialogState is the persisted dialog stack of one conversation. State holds
// the encoded stack; the store treats it as opaque.
type DialogState struct {
	ConversationID string          `json:"conversation_id"`
	UserID         string          `json:"user_id"`
	State          json.RawMessage `json:"state"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
