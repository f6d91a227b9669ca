// Package dialogs contains the SecretaryBot conversations: the navigation
// menus and the links, reports, stocks, contacts and autoreply dialogs.
//
// Dialog values are shared by every conversation. Anything a dialog needs to
// remember between steps lives in its dialog.Instance.
package dialogs

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/pilyavetsb/SecretaryBot/internal/config"
	"github.com/pilyavetsb/SecretaryBot/internal/dialog"
	"github.com/pilyavetsb/SecretaryBot/internal/directory"
	"github.com/pilyavetsb/SecretaryBot/internal/models"
	"github.com/pilyavetsb/SecretaryBot/internal/quotes"
)

// Dialog identifiers.
const (
	MainID      = "main"
	TopLevelID  = "toplevel"
	LinksID     = "links"
	ReportsID   = "reports"
	StocksID    = "stocks"
	ContactsID  = "contacts"
	AutoreplyID = "autoreply"
)

const retryChoice = "Пожалуйста, выберите вариант из списка."

// ProfileStore loads and saves user profiles.
type ProfileStore interface {
	// LoadProfile returns the stored profile, or a fresh one for unknown users.
	LoadProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	SaveProfile(ctx context.Context, profile *models.UserProfile) error
}

// Deps are the collaborators the dialogs call.
type Deps struct {
	Config    *config.Config
	Directory directory.Directory
	Quotes    quotes.Source
	Profiles  ProfileStore
	// Now defaults to time.Now.
	Now func() time.Time
}

func (d Deps) validate() error {
	switch {
	case d.Config == nil:
		return errors.New("dialogs: config is required")
	case d.Directory == nil:
		return errors.New("dialogs: directory is required")
	case d.Quotes == nil:
		return errors.New("dialogs: quote source is required")
	case d.Profiles == nil:
		return errors.New("dialogs: profile store is required")
	}
	return nil
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// doneChoice is the done word as shown in menus.
func (d Deps) doneChoice() string {
	return capitalize(d.Config.DoneWord)
}

func (d Deps) withDone(choices ...string) []string {
	return append(choices, d.doneChoice())
}

// NewSet builds the dialog registry rooted at the main dialog.
func NewSet(deps Deps, opts ...dialog.SetOption) (*dialog.Set, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	opts = append([]dialog.SetOption{dialog.WithDoneWord(deps.Config.DoneWord)}, opts...)
	set := dialog.NewSet(opts...)

	topLevel := newTopLevelDialog(deps).WithChildren(
		newLinksDialog(deps),
		newReportsDialog(deps),
		newStocksDialog(deps),
		newContactsDialog(deps),
		newAutoreplyDialog(deps),
	)
	if err := set.Add(newMainDialog().WithChildren(topLevel)); err != nil {
		return nil, err
	}
	return set, nil
}

// WelcomeText greets a member who joined the conversation.
func WelcomeText(name string) string {
	return "Добро пожаловать в первую версию бота отдела ФАО, " + name + ". Пока что, я ничего толком не умею, " +
		"но это мы скоро исправим. Отправьте мне любой текст, чтобы начать работу"
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// isDone reports whether r is the done sentinel or the done menu entry.
func isDone(deps Deps, r dialog.Result) bool {
	return r.IsDone() || strings.EqualFold(r.Value(), deps.Config.DoneWord)
}
