package dialogs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/pilyavetsb/SecretaryBot/internal/cards"
	"github.com/pilyavetsb/SecretaryBot/internal/dialog"
	"github.com/pilyavetsb/SecretaryBot/internal/directory"
	"github.com/pilyavetsb/SecretaryBot/internal/models"
)

const (
	contactsUnavailableText = "Не удалось загрузить справочник сотрудников😿 Попробуйте еще раз позднее"
	contactsNotFoundText    = "К сожалению, я не нашел подходящих сотрудников."
	contactsFoundText       = "Отлично! Вот кто может вам помочь:"

	// maxCardLookups bounds the people looked up at once.
	maxCardLookups = 4
)

// newContactsDialog walks the contact tree one level per answer until it
// reaches a list of people and sends a card for each of them.
func newContactsDialog(deps Deps) *dialog.Dialog {
	cfg := deps.Config.Contacts

	departmentStep := func(ctx context.Context, sc *dialog.StepContext) (dialog.Action, error) {
		raw, err := deps.Directory.DownloadFile(ctx, cfg.SiteID, cfg.DriveID, cfg.TreePath)
		if err != nil {
			slog.Error("ContactsDialog department: tree download failed", "path", cfg.TreePath, "error", err)
			return endWithText(ctx, sc, contactsUnavailableText)
		}
		if _, ok := parseContactTree(raw, cfg.LeafMarker); !ok {
			slog.Error("ContactsDialog department: tree is not valid JSON", "path", cfg.TreePath)
			return endWithText(ctx, sc, contactsUnavailableText)
		}
		if err := sc.Set("tree", json.RawMessage(raw)); err != nil {
			return dialog.Action{}, err
		}
		return sc.Prompt(dialog.PromptOptions{
			Prompt: "К какому отделу относится ваш вопрос? Подсказка: ФАО отвечает за всевозможные " +
				"согласования и расчеты, бухгалтерия - за правильный документооборот. " +
				"Чтобы завершить работу с ботом, выберите '" + deps.doneChoice() + "'.",
			Retry:   retryChoice,
			Choices: deps.withDone(cfg.Departments...),
			Style:   models.ListStyleSuggested,
		}), nil
	}

	areaStep := descendStep(deps, true, func(selected string) string {
		return "К какой части функционала " + selected + " относится ваш вопрос? Выберите вариант из списка. " +
			"Чтобы завершить работу с ботом, выберите '" + deps.doneChoice() + "'."
	})
	detailStep := descendStep(deps, true, func(selected string) string {
		return "Ваш выбор: " + selected + ". Пожалуйста конкретизируйте его, выбрав вариант из списка, " +
			"или выберите '" + deps.doneChoice() + "', чтобы закончить работу с ботом."
	})
	lastStep := descendStep(deps, false, func(selected string) string {
		return selected + " - в этом не так-то просто разобраться! Осталось сделать последнее уточнение и выбрать вариант из списка:"
	})

	peopleStep := func(ctx context.Context, sc *dialog.StepContext) (dialog.Action, error) {
		if isDone(deps, sc.Result) {
			return sc.End(dialog.None()), nil
		}
		tree, path, err := loadTreeState(sc, cfg.LeafMarker)
		if err != nil {
			return dialog.Action{}, err
		}
		var node gjson.Result
		if sc.Result.Kind == dialog.ResultNode {
			node = gjson.ParseBytes(sc.Result.Node)
		} else {
			path = append(path, sc.Result.Value())
			n, ok := tree.node(path)
			if !ok {
				return endWithText(ctx, sc, contactsNotFoundText)
			}
			node = n
		}

		emails := tree.emails(node)
		if len(emails) == 0 {
			return endWithText(ctx, sc, contactsNotFoundText)
		}
		slog.Debug("ContactsDialog people", "path", path, "emails", len(emails))

		personCards, err := buildPersonCards(ctx, deps.Directory, emails)
		if err != nil {
			return dialog.Action{}, err
		}
		if err := sc.Send(ctx, models.TextMessage(contactsFoundText), models.CardMessage(personCards...)); err != nil {
			return dialog.Action{}, err
		}
		return sc.End(dialog.List(emails)), nil
	}

	return dialog.Waterfall(ContactsID, departmentStep, areaStep, detailStep, lastStep, peopleStep)
}

// descendStep handles one answer of the tree walk. A leaf reached earlier is
// passed through untouched; a leaf reached now advances without a prompt;
// otherwise the children of the node are offered.
func descendStep(deps Deps, offerDone bool, prompt func(selected string) string) dialog.Step {
	marker := deps.Config.Contacts.LeafMarker
	return func(ctx context.Context, sc *dialog.StepContext) (dialog.Action, error) {
		if sc.Result.Kind == dialog.ResultNode {
			return sc.Next(sc.Result), nil
		}
		if isDone(deps, sc.Result) {
			return sc.End(dialog.None()), nil
		}
		tree, path, err := loadTreeState(sc, marker)
		if err != nil {
			return dialog.Action{}, err
		}
		selected := sc.Result.Value()
		path = append(path, selected)
		if err := sc.Set("path", path); err != nil {
			return dialog.Action{}, err
		}

		node, ok := tree.node(path)
		if !ok {
			slog.Warn("ContactsDialog descend: missing tree key", "path", path)
			return endWithText(ctx, sc, contactsNotFoundText)
		}
		if tree.isLeaf(node) || !node.IsObject() {
			slog.Debug("ContactsDialog descend: leaf reached", "path", path)
			return sc.Next(dialog.Node(json.RawMessage(node.Raw))), nil
		}

		choices := keys(node)
		if offerDone {
			choices = deps.withDone(choices...)
		}
		return sc.Prompt(dialog.PromptOptions{
			Prompt:  prompt(selected),
			Retry:   retryChoice,
			Choices: choices,
		}), nil
	}
}

func loadTreeState(sc *dialog.StepContext, marker string) (contactTree, []string, error) {
	var raw json.RawMessage
	ok, err := sc.Get("tree", &raw)
	if err != nil {
		return contactTree{}, nil, err
	}
	if !ok {
		return contactTree{}, nil, fmt.Errorf("contact tree missing from dialog state")
	}
	tree, valid := parseContactTree(raw, marker)
	if !valid {
		return contactTree{}, nil, fmt.Errorf("contact tree in dialog state is not valid JSON")
	}
	var path []string
	if _, err := sc.Get("path", &path); err != nil {
		return contactTree{}, nil, err
	}
	return tree, path, nil
}

// buildPersonCards renders one card per email, in order. The lookups of one
// person run concurrently.
func buildPersonCards(ctx context.Context, dir directory.Directory, emails []string) ([]models.Card, error) {
	out := make([]models.Card, len(emails))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxCardLookups)
	for i, email := range emails {
		g.Go(func() error {
			info, err := lookupPerson(gctx, dir, email)
			if err != nil {
				return err
			}
			card, err := cards.PersonCard(info)
			if err != nil {
				return fmt.Errorf("person card for %s: %w", email, err)
			}
			out[i] = card
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func lookupPerson(ctx context.Context, dir directory.Directory, email string) (cards.PersonInfo, error) {
	var (
		summary  directory.UserSummary
		manager  string
		presence string
		until    string
		photo    string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { summary = dir.GetUserSummary(gctx, email); return nil })
	g.Go(func() error { manager = dir.GetManagerName(gctx, email); return nil })
	g.Go(func() error { presence = dir.GetPresence(gctx, email); return nil })
	g.Go(func() error { until = dir.GetAutoreplyEndDate(gctx, email); return nil })
	g.Go(func() error { photo = dir.GetProfilePhoto(gctx, email); return nil })
	if err := g.Wait(); err != nil {
		return cards.PersonInfo{}, err
	}
	if err := ctx.Err(); err != nil {
		return cards.PersonInfo{}, err
	}
	return cards.PersonInfo{
		Photo:        photo,
		Name:         summary.Name,
		Title:        summary.Title,
		Email:        summary.Email,
		Presence:     presence,
		AutoreplyEnd: until,
		Manager:      manager,
	}, nil
}
