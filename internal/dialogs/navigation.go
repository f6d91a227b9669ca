package dialogs

import (
	"context"
	"log/slog"

	"github.com/pilyavetsb/SecretaryBot/internal/dialog"
	"github.com/pilyavetsb/SecretaryBot/internal/models"
)

// Navigation texts.
const (
	FarewellText   = "Спасибо что воспользовались ботом ФАО!"
	NewRequestText = "Чтобы сделать новый запрос, отправьте мне любое сообщение"
	budgetWIPText  = "Этот раздел пока в разработке. Выберите, пожалуйста, что-нибудь другое."
)

// menuItem is one branch of the top-level menu. An empty target marks a
// branch that is not available yet.
type menuItem struct {
	label  string
	target string
}

var topLevelMenu = []menuItem{
	{label: "Текущее состояние бюджета (WIP)"},
	{label: "Отчеты Химкурьер", target: ReportsID},
	{label: "Полезные ссылки", target: LinksID},
	{label: "Котировки акций Tikkurila", target: StocksID},
	{label: "Не знаю, к кому обратиться с вопросом", target: ContactsID},
	{label: "Хочу поставить красивый автоответ", target: AutoreplyID},
}

// newMainDialog runs the top-level menu once and tells the user how to start
// over.
func newMainDialog() *dialog.Dialog {
	return dialog.Waterfall(MainID,
		func(_ context.Context, sc *dialog.StepContext) (dialog.Action, error) {
			return sc.Begin(TopLevelID, nil), nil
		},
		func(ctx context.Context, sc *dialog.StepContext) (dialog.Action, error) {
			if err := sc.SendText(ctx, NewRequestText); err != nil {
				return dialog.Action{}, err
			}
			return sc.End(dialog.None()), nil
		},
	)
}

func newTopLevelDialog(deps Deps) *dialog.Dialog {
	labels := make([]string, 0, len(topLevelMenu))
	for _, item := range topLevelMenu {
		labels = append(labels, item.label)
	}
	choices := deps.withDone(labels...)

	selectStep := func(_ context.Context, sc *dialog.StepContext) (dialog.Action, error) {
		return sc.Prompt(dialog.PromptOptions{
			Prompt: "Выберите из списка, какую информацию вы хотите получить, " +
				"или выберите '" + deps.doneChoice() + "', чтобы закончить работу",
			Retry:   "Пожалуйста выберите вариант из списка.",
			Choices: choices,
			Style:   models.ListStyleList,
		}), nil
	}

	branchStep := func(ctx context.Context, sc *dialog.StepContext) (dialog.Action, error) {
		if isDone(deps, sc.Result) {
			slog.Debug("TopLevelDialog branch: done", "conversationID", sc.Turn.Activity.ConversationID)
			if err := sc.SendText(ctx, FarewellText); err != nil {
				return dialog.Action{}, err
			}
			return sc.CancelAll(), nil
		}
		choice := sc.Result.Value()
		for _, item := range topLevelMenu {
			if item.label != choice {
				continue
			}
			if item.target == "" {
				if err := sc.SendText(ctx, budgetWIPText); err != nil {
					return dialog.Action{}, err
				}
				return sc.Replace(TopLevelID, nil), nil
			}
			slog.Debug("TopLevelDialog branch", "conversationID", sc.Turn.Activity.ConversationID, "target", item.target)
			return sc.Begin(item.target, nil), nil
		}
		// unreachable with exact recognition; re-offer the menu
		slog.Warn("TopLevelDialog branch: unknown choice", "choice", choice)
		return sc.Replace(TopLevelID, nil), nil
	}

	endStep := func(ctx context.Context, sc *dialog.StepContext) (dialog.Action, error) {
		if err := sc.SendText(ctx, FarewellText); err != nil {
			return dialog.Action{}, err
		}
		return sc.End(dialog.None()), nil
	}

	return dialog.Waterfall(TopLevelID, selectStep, branchStep, endStep)
}
