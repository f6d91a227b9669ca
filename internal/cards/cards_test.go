package cards

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pilyavetsb/SecretaryBot/internal/models"
	"github.com/pilyavetsb/SecretaryBot/internal/quotes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestPersonCard(t *testing.T) {
	card, err := PersonCard(PersonInfo{
		Photo:        "data:image/png;base64,AAAA",
		Name:         "Анна Смирнова",
		Title:        "Бухгалтер",
		Email:        "anna@tikkurila.com",
		Presence:     "Available, Available",
		AutoreplyEnd: "15.07.2024",
		Manager:      "Пётр Иванов",
	})
	require.NoError(t, err)
	assert.Equal(t, models.AdaptiveCardContentType, card.ContentType)

	doc := gjson.ParseBytes(card.Content)
	assert.Equal(t, "data:image/png;base64,AAAA", doc.Get("body.0.columns.0.items.0.url").String())
	assert.Equal(t, "Анна Смирнова", doc.Get("body.0.columns.1.items.0.items.0.text").String())
	assert.Equal(t, "Бухгалтер", doc.Get("body.0.columns.1.items.0.items.1.text").String())
	assert.Equal(t, "anna@tikkurila.com", doc.Get("body.0.columns.1.items.0.items.2.text").String())
	assert.Equal(t, "Текущий статус: Available, Available", doc.Get("body.0.columns.1.items.0.items.3.text").String())
	assert.Equal(t, "Автоответ до 15.07.2024", doc.Get("body.0.columns.1.items.1.items.0.text").String())
	assert.Equal(t, "Непосредственный руководитель: Пётр Иванов", doc.Get("body.1.text").String())
	assert.Equal(t, TeamsChatURL+"anna@tikkurila.com", doc.Get("actions.0.url").String())

	assert.Contains(t, card.Fallback, "Автоответ до 15.07.2024")
	assert.Contains(t, card.Fallback, "Непосредственный руководитель: Пётр Иванов")
}

func TestPersonCardWithoutAutoreply(t *testing.T) {
	card, err := PersonCard(PersonInfo{Name: "x", Email: "x@tikkurila.com"})
	require.NoError(t, err)
	assert.Equal(t, "", gjson.GetBytes(card.Content, "body.0.columns.1.items.1.items.0.text").String())
	assert.NotContains(t, card.Fallback, "Автоответ")
}

func TestStockCard(t *testing.T) {
	q := quotes.Quote{
		Ticker:      "TIK1V.HE",
		Day:         time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC),
		Price:       11.6,
		Open:        11,
		High:        11.7,
		Low:         10.9,
		Diff:        0.6,
		DiffPercent: 5.45,
	}
	card, err := StockCard(q)
	require.NoError(t, err)

	doc := gjson.ParseBytes(card.Content)
	assert.Equal(t, "TIK1V.HE", doc.Get("body.0.items.0.text").String())
	assert.Equal(t, "March 05 2024", doc.Get("body.0.items.1.text").String())
	assert.Equal(t, "11.6", doc.Get("body.1.items.0.columns.0.items.0.text").String())
	assert.Equal(t, "▲ 0.6 (5.45%)", doc.Get("body.1.items.0.columns.0.items.1.text").String())
	assert.Equal(t, "Good", doc.Get("body.1.items.0.columns.0.items.1.color").String())
	facts := doc.Get("body.1.items.0.columns.1.items.0.facts.#.value").Array()
	require.Len(t, facts, 3)
	assert.Equal(t, "11", facts[0].String())
	assert.Equal(t, "11.7", facts[1].String())
	assert.Equal(t, "10.9", facts[2].String())
	assert.Contains(t, card.Fallback, "▲ 0.6 (5.45%)")
}

func TestAutoreplyCard(t *testing.T) {
	card, err := AutoreplyCard(AutoreplyForm{
		MinDate:   "2024-07-01",
		StartDate: "2024-07-01",
		EndDate:   "2024-07-01",
		Phone:     "+79261234567",
		Names:     []string{"Анна", "Пётр"},
		Areas:     []string{"Счета"},
		Language:  models.LanguageBoth,
	})
	require.NoError(t, err)

	doc := gjson.ParseBytes(card.Content)
	assert.Equal(t, "startdate", doc.Get("body.2.id").String())
	assert.Equal(t, "2024-07-01", doc.Get("body.2.min").String())
	assert.Equal(t, "2024-07-01", doc.Get("body.4.value").String())
	assert.Equal(t, "+79261234567", doc.Get("body.6.value").String())
	assert.Equal(t, "Анна", doc.Get("body.8.columns.0.items.0.value").String())
	assert.Equal(t, "Пётр", doc.Get("body.8.columns.0.items.1.value").String())
	assert.Equal(t, "", doc.Get("body.8.columns.0.items.3.value").String())
	assert.Equal(t, "Счета", doc.Get("body.8.columns.1.items.0.value").String())
	assert.Equal(t, "RU/EN", doc.Get("body.10.value").String())

	// the fallback carries a sample postback the text channels can send back
	start := strings.Index(card.Fallback, "{")
	require.GreaterOrEqual(t, start, 0)
	sub, err := ParseAutoreplySubmission(card.Fallback[start:])
	require.NoError(t, err)
	assert.Equal(t, "Пётр", sub.Name2)
	assert.Equal(t, models.LanguageBoth, sub.Lang())
}

func TestParseAutoreplySubmission(t *testing.T) {
	sub, err := ParseAutoreplySubmission(`{"startdate":"2024-07-01","enddate":"2024-07-14","phone":"8-926-123-45-67",
		"name1":"Анна","area1":"Счета","name2":"","area2":"","language":"EN","reason":"Travel"}`)
	require.NoError(t, err)
	assert.True(t, sub.ValidReason())
	assert.Equal(t, models.LanguageEN, sub.Lang())
	assert.Equal(t, []string{"Анна", "", "", ""}, sub.Names())
	assert.Equal(t, []string{"Счета", "", "", ""}, sub.Areas())

	sub, err = ParseAutoreplySubmission(`{"reason":"Holiday","language":"DE"}`)
	require.NoError(t, err)
	assert.False(t, sub.ValidReason())
	assert.Equal(t, models.LanguageRU, sub.Lang())

	_, err = ParseAutoreplySubmission("привет")
	assert.True(t, errors.Is(err, ErrMalformedSubmission))
}
