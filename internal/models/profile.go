package models

import "time"

// MaxDelegates is the number of colleague slots on the autoreply form.
const MaxDelegates = 4

// Language is the preferred autoreply language.
type Language string

const (
	// LanguageRU produces a Russian-only autoreply.
	LanguageRU Language = "RU"
	// LanguageEN produces an English-only autoreply.
	LanguageEN Language = "EN"
	// LanguageBoth produces a bilingual autoreply.
	LanguageBoth Language = "RU/EN"
)

// UserProfile is durable per-user data, filled in by the autoreply form.
type UserProfile struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Names     []string  `json:"names,omitempty"`
	Areas     []string  `json:"areas,omitempty"`
	Language  Language  `json:"language,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUserProfile returns an empty profile with the default language.
func NewUserProfile(userID string) *UserProfile {
	return &UserProfile{UserID: userID, Language: LanguageRU}
}

// Delegate returns the i-th colleague name and area, empty when unset.
func (p *UserProfile) Delegate(i int) (name, area string) {
	if i < len(p.Names) {
		name = p.Names[i]
	}
	if i < len(p.Areas) {
		area = p.Areas[i]
	}
	return name, area
}
