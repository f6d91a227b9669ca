package dialogs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pilyavetsb/SecretaryBot/internal/dialog"
	"github.com/pilyavetsb/SecretaryBot/internal/models"
	"github.com/pilyavetsb/SecretaryBot/internal/validate"
)

const (
	periodsValidator = "periods"
	reportExt        = ".pdf"

	reportsUnavailableText = "Не удалось получить список отчетов😿 Попробуйте еще раз позднее"
	reportsNotFoundText    = "К сожалению, отчетов за выбранные периоды не нашлось."
	periodFormatText       = "Некорректный формат данных. Пожалуйста, следуйте инструкциям"
)

// reportFiles builds file names such as Deco2024Q1.pdf.
func reportFiles(prefix string, periods []validate.Period) []string {
	names := make([]string, len(periods))
	for i, p := range periods {
		names[i] = prefix + p.String() + reportExt
	}
	return names
}

// latestPeriod extracts the period from the name of the latest report of a
// channel, e.g. Industry2024Q2.pdf -> 2024Q2.
func latestPeriod(prefix, fileName string) (validate.Period, error) {
	code := strings.TrimSuffix(fileName, reportExt)
	code = strings.TrimPrefix(code, prefix)
	return validate.ParsePeriod(code)
}

// newReportsDialog sends download links of the Химкурьер reports for a
// channel and a list of quarters.
func newReportsDialog(deps Deps) *dialog.Dialog {
	cfg := deps.Config.Reports
	latestWord := deps.Config.LatestWord

	labels := make([]string, 0, len(cfg.Channels))
	prefixFor := make(map[string]string, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		labels = append(labels, ch.Label)
		prefixFor[ch.Label] = ch.Prefix
	}

	channelStep := func(_ context.Context, sc *dialog.StepContext) (dialog.Action, error) {
		return sc.Prompt(dialog.PromptOptions{
			Prompt:  "Данные по какому рынку вас интересуют? Чтобы завершить диалог с ботом, выберите '" + deps.doneChoice() + "'.",
			Retry:   retryChoice,
			Choices: deps.withDone(labels...),
			Style:   models.ListStyleSuggested,
		}), nil
	}

	periodsStep := func(ctx context.Context, sc *dialog.StepContext) (dialog.Action, error) {
		if isDone(deps, sc.Result) {
			return sc.End(dialog.None()), nil
		}
		prefix := prefixFor[sc.Result.Value()]

		latest, err := deps.Directory.ListLatest(ctx, cfg.SiteID, cfg.DriveID, prefix)
		if err != nil {
			slog.Error("ReportsDialog periods: latest report lookup failed", "channel", prefix, "error", err)
			return endWithText(ctx, sc, reportsUnavailableText)
		}
		bound, err := latestPeriod(prefix, latest)
		if err != nil {
			slog.Error("ReportsDialog periods: unexpected latest report name", "channel", prefix, "name", latest, "error", err)
			return endWithText(ctx, sc, reportsUnavailableText)
		}
		if err := sc.Set("prefix", prefix); err != nil {
			return dialog.Action{}, err
		}
		if err := sc.Set("bound", bound); err != nil {
			return dialog.Action{}, err
		}
		slog.Debug("ReportsDialog periods", "channel", prefix, "latest", bound.String())

		latestName := prefix + bound.String()
		return sc.Prompt(dialog.PromptOptions{
			Prompt: "Введите максимум 4 периода через запятую в следующем формате: 2019Q1, 2019Q2 и т.п. " +
				"Для получения данных за полный год выбирайте четвертый квартал. " +
				"Чтобы получить только самый последний отчет, отправьте слово '" + latestWord + "' и только его " +
				"(запрос вида '2018Q2, " + latestWord + "' не сработает).  \n" +
				"Последний доступный отчет: " + latestName + ".  \nЧтобы завершить диалог, отправьте '" + deps.doneChoice() + "'",
			Retry: "Пожалуйста, введите данные в правильном формате и на дату не позднее последней доступной. " +
				"Напоминаю, последний доступный отчет: " + latestName + "\n\n" +
				"Правильный формат данных: 2019Q1, 2019Q2.\n\nЧтобы завершить диалог, отправьте '" + deps.doneChoice() + "'",
			Validator:   periodsValidator,
			Validations: bound.String(),
		}), nil
	}

	linksStep := func(ctx context.Context, sc *dialog.StepContext) (dialog.Action, error) {
		if isDone(deps, sc.Result) {
			return sc.End(dialog.None()), nil
		}
		var prefix string
		if _, err := sc.Get("prefix", &prefix); err != nil {
			return dialog.Action{}, err
		}
		periods, err := requestedPeriods(sc, sc.Result.Value(), latestWord)
		if err != nil {
			return dialog.Action{}, err
		}
		names := reportFiles(prefix, periods)

		links, err := deps.Directory.ResolveLinks(ctx, cfg.SiteID, cfg.DriveID, prefix, names)
		if err != nil {
			slog.Error("ReportsDialog links: resolve failed", "channel", prefix, "error", err)
			return endWithText(ctx, sc, reportsUnavailableText)
		}
		lines := make([]string, 0, len(names))
		for _, name := range names {
			if url, ok := links[name]; ok {
				lines = append(lines, "["+name+"]("+url+")")
			}
		}
		if len(lines) == 0 {
			return endWithText(ctx, sc, reportsNotFoundText)
		}
		msg := "Вот ссылки на скачивание запрошенных отчетов:\n\n" + strings.Join(lines, "  \n")
		if err := sc.SendText(ctx, msg); err != nil {
			return dialog.Action{}, err
		}
		return sc.End(dialog.List(names)), nil
	}

	return dialog.Waterfall(ReportsID, channelStep, periodsStep, linksStep).
		WithValidator(periodsValidator, periodsValidatorFunc(latestWord))
}

// requestedPeriods turns the validated answer into periods. The latest word
// stands for the latest available period.
func requestedPeriods(sc *dialog.StepContext, answer, latestWord string) ([]validate.Period, error) {
	var bound validate.Period
	if _, err := sc.Get("bound", &bound); err != nil {
		return nil, err
	}
	if strings.EqualFold(strings.TrimSpace(answer), latestWord) {
		return []validate.Period{bound}, nil
	}
	periods, err := validate.Periods(answer, bound)
	if err != nil {
		return nil, fmt.Errorf("validated periods rejected: %w", err)
	}
	return periods, nil
}

func periodsValidatorFunc(latestWord string) dialog.Validator {
	return func(ctx context.Context, pc *dialog.PromptContext) (bool, error) {
		answer := strings.TrimSpace(pc.Recognized.Value())
		if strings.EqualFold(answer, latestWord) {
			return true, nil
		}
		bound, err := validate.ParsePeriod(pc.Options.Validations)
		if err != nil {
			return false, fmt.Errorf("prompt bound: %w", err)
		}
		if _, err := validate.Periods(answer, bound); err != nil {
			slog.Debug("ReportsDialog validator: rejected", "input", answer, "bound", bound.String(), "error", err)
			if errors.Is(err, validate.ErrPeriodFormat) {
				if err := pc.Turn.SendText(ctx, periodFormatText); err != nil {
					return false, err
				}
			}
			return false, nil
		}
		return true, nil
	}
}

func endWithText(ctx context.Context, sc *dialog.StepContext, text string) (dialog.Action, error) {
	if err := sc.SendText(ctx, text); err != nil {
		return dialog.Action{}, err
	}
	return sc.End(dialog.None()), nil
}
