package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pilyavetsb/SecretaryBot/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// encodeList stores a string slice in a text column.
func encodeList(items []string) (string, error) {
	if len(items) == 0 {
		return "", nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encode list failed: %w", err)
	}
	return string(b), nil
}

func decodeList(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("decode list failed: %w", err)
	}
	return items, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDialogState scans the columns conversation_id, user_id, state,
// created_at, updated_at.
func scanDialogState(row rowScanner) (models.DialogState, error) {
	var st models.DialogState
	var userID sql.NullString
	var raw string
	if err := row.Scan(&st.ConversationID, &userID, &raw, &st.CreatedAt, &st.UpdatedAt); err != nil {
		return st, err
	}
	st.UserID = userID.String
	st.State = json.RawMessage(raw)
	return st, nil
}

// scanUserProfile scans the columns user_id, email, phone, names, areas,
// language, updated_at.
func scanUserProfile(row rowScanner) (models.UserProfile, error) {
	var p models.UserProfile
	var email, phone, names, areas, lang sql.NullString
	var updatedAt time.Time
	if err := row.Scan(&p.UserID, &email, &phone, &names, &areas, &lang, &updatedAt); err != nil {
		return p, err
	}
	p.Email = email.String
	p.Phone = phone.String
	p.Language = models.Language(lang.String)
	if p.Language == "" {
		p.Language = models.LanguageRU
	}
	p.UpdatedAt = updatedAt
	var err error
	if p.Names, err = decodeList(names.String); err != nil {
		return p, err
	}
	if p.Areas, err = decodeList(areas.String); err != nil {
		return p, err
	}
	return p, nil
}
