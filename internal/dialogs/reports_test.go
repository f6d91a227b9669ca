package dialogs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilyavetsb/SecretaryBot/internal/models"
	"github.com/pilyavetsb/SecretaryBot/internal/validate"
)

func newReportsHarness(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t, nil)
	h.dir.Latest["Industry"] = "Industry2024Q2.pdf"
	h.dir.Links["Industry2024Q1.pdf"] = "https://dl/ind-2024q1"
	h.dir.Links["Industry2024Q2.pdf"] = "https://dl/ind-2024q2"
	h.say("привет")
	return h
}

func TestReportsChannelPrompt(t *testing.T) {
	h := newReportsHarness(t)
	msgs := h.say("Отчеты Химкурьер")
	require.Len(t, msgs, 1)
	assert.Equal(t, []string{"Деко", "Индастри", "Завершить"}, msgs[0].Choices)
	assert.Equal(t, models.ListStyleSuggested, msgs[0].Style)

	msgs = h.say("Индастри")
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, "Последний доступный отчет: Industry2024Q2")
}

func TestReportsPeriods(t *testing.T) {
	h := newReportsHarness(t)
	h.say("Отчеты Химкурьер")
	h.say("Индастри")

	// later than the latest report: plain retry
	msgs := h.say("2024Q3")
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, "Пожалуйста, введите данные в правильном формате")

	// malformed: explanation, then retry
	msgs = h.say("2016Q0")
	require.Len(t, msgs, 2)
	assert.Equal(t, periodFormatText, msgs[0].Text)

	msgs = h.say("2024q1, 2024Q2, 2023Q4")
	require.Len(t, msgs, 3)
	assert.Equal(t, "Вот ссылки на скачивание запрошенных отчетов:\n\n"+
		"[Industry2024Q1.pdf](https://dl/ind-2024q1)  \n"+
		"[Industry2024Q2.pdf](https://dl/ind-2024q2)", msgs[0].Text)
	assert.Equal(t, []string{FarewellText, NewRequestText}, texts(msgs[1:]))
	assert.Equal(t, 0, h.depth)
}

func TestReportsLatestWord(t *testing.T) {
	h := newReportsHarness(t)
	h.say("Отчеты Химкурьер")
	h.say("Индастри")
	msgs := h.say("Свежий")
	require.Len(t, msgs, 3)
	assert.Equal(t, "Вот ссылки на скачивание запрошенных отчетов:\n\n"+
		"[Industry2024Q2.pdf](https://dl/ind-2024q2)", msgs[0].Text)
}

func TestReportsNothingFound(t *testing.T) {
	h := newReportsHarness(t)
	h.say("Отчеты Химкурьер")
	h.say("Индастри")
	msgs := h.say("2019Q1")
	assert.Equal(t, []string{reportsNotFoundText, FarewellText, NewRequestText}, texts(msgs))
}

func TestReportsLatestUnavailable(t *testing.T) {
	h := newReportsHarness(t)
	h.say("Отчеты Химкурьер")
	msgs := h.say("Деко")
	assert.Equal(t, []string{reportsUnavailableText, FarewellText, NewRequestText}, texts(msgs))
	assert.Equal(t, 0, h.depth)
}

func TestLatestPeriod(t *testing.T) {
	tests := []struct {
		prefix string
		name   string
		want   validate.Period
		ok     bool
	}{
		{"Industry", "Industry2024Q2.pdf", validate.Period{Year: 2024, Quarter: 2}, true},
		{"Deco", "Deco2023Q4.pdf", validate.Period{Year: 2023, Quarter: 4}, true},
		{"Deco", "Industry2023Q4.pdf", validate.Period{}, false},
	}
	for _, tt := range tests {
		got, err := latestPeriod(tt.prefix, tt.name)
		if tt.ok {
			require.NoError(t, err, tt.name)
			assert.Equal(t, tt.want, got)
		} else {
			assert.Error(t, err, tt.name)
		}
	}
}
