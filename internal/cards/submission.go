package cards

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pilyavetsb/SecretaryBot/internal/models"
)

// ErrMalformedSubmission is returned when a form postback is not a JSON object.
var ErrMalformedSubmission = errors.New("malformed form submission")

// Absence reasons offered on the autoreply form.
const (
	ReasonVacation  = "Vacation"
	ReasonTravel    = "Travel"
	ReasonSickleave = "Sickleave"
	ReasonOther     = "Other"
)

// AutoreplySubmission is the postback of the autoreply form. Field names
// are the input ids of the card.
type AutoreplySubmission struct {
	StartDate string `json:"startdate"`
	EndDate   string `json:"enddate"`
	Phone     string `json:"phone"`
	Name1     string `json:"name1"`
	Name2     string `json:"name2"`
	Name3     string `json:"name3"`
	Name4     string `json:"name4"`
	Area1     string `json:"area1"`
	Area2     string `json:"area2"`
	Area3     string `json:"area3"`
	Area4     string `json:"area4"`
	Language  string `json:"language"`
	Reason    string `json:"reason,omitempty"`
}

// ParseAutoreplySubmission decodes a form postback.
func ParseAutoreplySubmission(raw string) (AutoreplySubmission, error) {
	var s AutoreplySubmission
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &s); err != nil {
		return s, fmt.Errorf("%w: %v", ErrMalformedSubmission, err)
	}
	return s, nil
}

func (s *AutoreplySubmission) setDelegate(i int, name, area string) {
	switch i {
	case 0:
		s.Name1, s.Area1 = name, area
	case 1:
		s.Name2, s.Area2 = name, area
	case 2:
		s.Name3, s.Area3 = name, area
	case 3:
		s.Name4, s.Area4 = name, area
	}
}

// Names returns the four colleague names in form order.
func (s AutoreplySubmission) Names() []string {
	return []string{s.Name1, s.Name2, s.Name3, s.Name4}
}

// Areas returns the four colleague areas in form order.
func (s AutoreplySubmission) Areas() []string {
	return []string{s.Area1, s.Area2, s.Area3, s.Area4}
}

// ValidReason reports whether the reason is one the form offers.
func (s AutoreplySubmission) ValidReason() bool {
	switch s.Reason {
	case ReasonVacation, ReasonTravel, ReasonSickleave, ReasonOther:
		return true
	}
	return false
}

// Lang returns the chosen language, RU when missing or unknown.
func (s AutoreplySubmission) Lang() models.Language {
	switch l := models.Language(s.Language); l {
	case models.LanguageEN, models.LanguageBoth:
		return l
	}
	return models.LanguageRU
}
