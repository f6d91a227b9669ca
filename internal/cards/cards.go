// Package cards fills the adaptive card templates shown by the dialogs.
//
// Templates are embedded JSON documents; builders overwrite values at fixed
// paths with sjson, so a template may be restyled freely as long as the
// filled elements keep their position.
package cards

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pilyavetsb/SecretaryBot/internal/models"
	"github.com/pilyavetsb/SecretaryBot/internal/quotes"
	"github.com/tidwall/sjson"
)

//go:embed templates/*.json
var templates embed.FS

// TeamsChatURL opens a chat with a user in Teams.
const TeamsChatURL = "https://teams.microsoft.com/l/chat/0/0?users="

// PersonInfo is everything shown on a contact card.
type PersonInfo struct {
	Photo        string
	Name         string
	Title        string
	Email        string
	Presence     string
	AutoreplyEnd string
	Manager      string
}

// AutoreplyForm holds the values the autoreply form is pre-filled with.
// Dates use the 2006-01-02 layout; MinDate is the earliest selectable date.
type AutoreplyForm struct {
	MinDate   string
	StartDate string
	EndDate   string
	Phone     string
	Names     []string
	Areas     []string
	Language  models.Language
}

type builder struct {
	doc []byte
	err error
}

func load(name string) *builder {
	doc, err := templates.ReadFile("templates/" + name)
	if err != nil {
		return &builder{err: fmt.Errorf("load card template %s: %w", name, err)}
	}
	return &builder{doc: doc}
}

func (b *builder) set(path string, value any) {
	if b.err != nil {
		return
	}
	b.doc, b.err = sjson.SetBytes(b.doc, path, value)
	if b.err != nil {
		b.err = fmt.Errorf("set %s: %w", path, b.err)
	}
}

func (b *builder) card(fallback string) (models.Card, error) {
	if b.err != nil {
		return models.Card{}, b.err
	}
	return models.Card{
		ContentType: models.AdaptiveCardContentType,
		Content:     json.RawMessage(b.doc),
		Fallback:    fallback,
	}, nil
}

// PersonCard renders the contact card of one person.
func PersonCard(p PersonInfo) (models.Card, error) {
	status := "Текущий статус: " + p.Presence
	autoreply := ""
	if p.AutoreplyEnd != "" {
		autoreply = "Автоответ до " + p.AutoreplyEnd
	}
	manager := "Непосредственный руководитель: " + p.Manager

	b := load("person.json")
	b.set("body.0.columns.0.items.0.url", p.Photo)
	b.set("body.0.columns.1.items.0.items.0.text", p.Name)
	b.set("body.0.columns.1.items.0.items.1.text", p.Title)
	b.set("body.0.columns.1.items.0.items.2.text", p.Email)
	b.set("body.0.columns.1.items.0.items.3.text", status)
	b.set("body.0.columns.1.items.1.items.0.text", autoreply)
	b.set("body.1.text", manager)
	b.set("actions.0.url", TeamsChatURL+p.Email)

	lines := []string{p.Name, p.Title, p.Email, status}
	if autoreply != "" {
		lines = append(lines, autoreply)
	}
	lines = append(lines, manager)
	return b.card(strings.Join(lines, "\n"))
}

// StockCard renders the quote of one trading day.
func StockCard(q quotes.Quote) (models.Card, error) {
	const quote = "body.1.items.0.columns."
	b := load("stock.json")
	if q.Ticker != "" {
		b.set("body.0.items.0.text", q.Ticker)
	}
	b.set("body.0.items.1.text", q.DayString())
	b.set(quote+"0.items.0.text", quotes.FormatNumber(q.Price))
	b.set(quote+"0.items.1.text", q.ChangeString())
	b.set(quote+"0.items.1.color", q.Color())
	b.set(quote+"1.items.0.facts.0.value", quotes.FormatNumber(q.Open))
	b.set(quote+"1.items.0.facts.1.value", quotes.FormatNumber(q.High))
	b.set(quote+"1.items.0.facts.2.value", quotes.FormatNumber(q.Low))

	fallback := fmt.Sprintf("%s, %s\n%s %s\nOpen %s · High %s · Low %s",
		q.Ticker, q.DayString(),
		quotes.FormatNumber(q.Price), q.ChangeString(),
		quotes.FormatNumber(q.Open), quotes.FormatNumber(q.High), quotes.FormatNumber(q.Low))
	return b.card(fallback)
}

// AutoreplyCard renders the autoreply form pre-filled from f.
func AutoreplyCard(f AutoreplyForm) (models.Card, error) {
	b := load("autoreply.json")
	b.set("body.2.min", f.MinDate)
	b.set("body.2.value", f.StartDate)
	b.set("body.4.min", f.MinDate)
	b.set("body.4.value", f.EndDate)
	b.set("body.6.value", f.Phone)

	sub := AutoreplySubmission{
		StartDate: f.StartDate,
		EndDate:   f.EndDate,
		Phone:     f.Phone,
		Language:  string(f.Language),
	}
	for i := 0; i < models.MaxDelegates; i++ {
		var name, area string
		if i < len(f.Names) {
			name = f.Names[i]
		}
		if i < len(f.Areas) {
			area = f.Areas[i]
		}
		b.set(fmt.Sprintf("body.8.columns.0.items.%d.value", i), name)
		b.set(fmt.Sprintf("body.8.columns.1.items.%d.value", i), area)
		sub.setDelegate(i, name, area)
	}
	if f.Language != "" {
		b.set("body.10.value", string(f.Language))
	}

	sample, err := json.Marshal(sub)
	if err != nil {
		return models.Card{}, fmt.Errorf("encode autoreply sample: %w", err)
	}
	fallback := "Форма автоответа. Отправьте её содержимое одним сообщением в формате JSON " +
		"(reason: Vacation, Travel, Sickleave или Other):\n" + string(sample)
	return b.card(fallback)
}
