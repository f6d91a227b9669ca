package dialogs

import (
	"context"
	"slices"
	"strings"

	"github.com/pilyavetsb/SecretaryBot/internal/dialog"
)

// newLinksDialog lets the user pick up to MaxSelections topics, one per
// pass, and then sends the matching links. Each pass replaces the instance
// with the selections so far as its options.
func newLinksDialog(deps Deps) *dialog.Dialog {
	cfg := deps.Config.Links
	linkFor := make(map[string]string, len(cfg.Topics))
	for _, t := range cfg.Topics {
		linkFor[t.Topic] = t.Link
	}
	limit := cfg.MaxSelections
	if limit <= 0 || limit > len(cfg.Topics) {
		limit = len(cfg.Topics)
	}

	selected := func(sc *dialog.StepContext) ([]string, error) {
		var s []string
		if _, err := sc.Options(&s); err != nil {
			return nil, err
		}
		return s, nil
	}

	selectStep := func(_ context.Context, sc *dialog.StepContext) (dialog.Action, error) {
		chosen, err := selected(sc)
		if err != nil {
			return dialog.Action{}, err
		}
		prompt := "Какой у вас вопрос? Если вы хотите завершить работу с ботом, выберите '" + deps.doneChoice() + "'."
		if len(chosen) > 0 {
			prompt = "Ваш выбор: " + chosen[len(chosen)-1] + ". Вы можете выбрать еще один вопрос. " +
				"Чтобы подтвердить выбор, выберите '" + deps.doneChoice() + "'."
		}
		remaining := make([]string, 0, len(cfg.Topics))
		for _, t := range cfg.Topics {
			if !slices.Contains(chosen, t.Topic) {
				remaining = append(remaining, t.Topic)
			}
		}
		return sc.Prompt(dialog.PromptOptions{
			Prompt:  prompt,
			Retry:   retryChoice,
			Choices: deps.withDone(remaining...),
		}), nil
	}

	loopStep := func(_ context.Context, sc *dialog.StepContext) (dialog.Action, error) {
		chosen, err := selected(sc)
		if err != nil {
			return dialog.Action{}, err
		}
		done := isDone(deps, sc.Result)
		if done && len(chosen) == 0 {
			return sc.End(dialog.None()), nil
		}
		if !done {
			chosen = append(chosen, sc.Result.Value())
		}
		if done || len(chosen) >= limit {
			return sc.Next(dialog.List(chosen)), nil
		}
		return sc.Replace(LinksID, chosen), nil
	}

	sendStep := func(ctx context.Context, sc *dialog.StepContext) (dialog.Action, error) {
		links := make([]string, 0, len(sc.Result.List))
		for _, topic := range sc.Result.List {
			links = append(links, linkFor[topic])
		}
		if err := sc.SendText(ctx, "Ссылки по вашему запросу:\n\n"+strings.Join(links, "  \n")); err != nil {
			return dialog.Action{}, err
		}
		return sc.End(dialog.List(sc.Result.List)), nil
	}

	return dialog.Waterfall(LinksID, selectStep, loopStep, sendStep)
}
