package dialogs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pilyavetsb/SecretaryBot/internal/cards"
	"github.com/pilyavetsb/SecretaryBot/internal/dialog"
	"github.com/pilyavetsb/SecretaryBot/internal/directory"
	"github.com/pilyavetsb/SecretaryBot/internal/models"
	"github.com/pilyavetsb/SecretaryBot/internal/validate"
)

const (
	formValidator  = "autoreplyForm"
	emailValidator = "workEmail"
	emailKey       = "email"

	autoreplyIntroText  = "Я помогу тебе установить автоответ и ничего не забыть! Для этого заполни, пожалуйста, маленькую форму ниже или отправь 'Завершить'"
	autoreplyRetryText  = "Пожалуйста, исправь ошибки"
	missingReasonText   = "Выберите, пожалуйста, причину. Коллег снедает любопытство!"
	badPhoneText        = "Проверьте, пожалуйста, правильно ли введен номер телефона"
	badDatesText        = "Проверьте, пожалуйста, правильно ли выбраны даты. Подсказка - конечная дата не может быть раньше начальной😏"
	malformedFormText   = "Извините, я не смог разобрать заполненную форму😿 Попробуйте, пожалуйста, еще раз"
	askEmailText        = "Подскажите, пожалуйста, ваш рабочий адрес почты. Автоответ будет установлен для этого ящика"
	badEmailText        = "Это не похоже на рабочий адрес. Введите, пожалуйста, адрес вида ivan.petrov%s или отправьте 'Завершить'"
	autoreplyFailedText = "Что-то пошло не так😿Вероятно, проблема на стороне сервера. Попробуйте еще раз позднее"
	autoreplySetText    = "Готово! Автоответ установлен."
)

// newAutoreplyDialog shows the autoreply form pre-filled from the user
// profile, remembers the answers and schedules the autoreply together with
// an out-of-office calendar event. Channels without a sender address, such
// as WhatsApp, are asked for it once; the answer is kept in the profile.
func newAutoreplyDialog(deps Deps) *dialog.Dialog {
	domain := deps.Config.Contacts.LeafMarker

	emailStep := func(ctx context.Context, sc *dialog.StepContext) (dialog.Action, error) {
		profile, err := deps.Profiles.LoadProfile(ctx, sc.Turn.Activity.UserID())
		if err != nil {
			return dialog.Action{}, err
		}
		email := profile.Email
		if email == "" {
			email = sc.Turn.Activity.From.Email
		}
		if email != "" {
			return sc.Next(dialog.Text(email)), nil
		}
		return sc.Prompt(dialog.PromptOptions{
			Prompt:    askEmailText,
			Retry:     fmt.Sprintf(badEmailText, domain),
			Validator: emailValidator,
		}), nil
	}

	rememberEmailStep := func(ctx context.Context, sc *dialog.StepContext) (dialog.Action, error) {
		if isDone(deps, sc.Result) {
			return sc.End(dialog.None()), nil
		}
		email := strings.ToLower(strings.TrimSpace(sc.Result.Value()))
		if err := sc.Set(emailKey, email); err != nil {
			return dialog.Action{}, err
		}
		return sc.Next(dialog.None()), nil
	}

	formStep := func(ctx context.Context, sc *dialog.StepContext) (dialog.Action, error) {
		profile, err := deps.Profiles.LoadProfile(ctx, sc.Turn.Activity.UserID())
		if err != nil {
			return dialog.Action{}, err
		}
		today := deps.now().Format(validate.DateLayout)
		card, err := cards.AutoreplyCard(cards.AutoreplyForm{
			MinDate:   today,
			StartDate: today,
			EndDate:   today,
			Phone:     profile.Phone,
			Names:     profile.Names,
			Areas:     profile.Areas,
			Language:  profile.Language,
		})
		if err != nil {
			return dialog.Action{}, err
		}
		if err := sc.Send(ctx, models.TextMessage(autoreplyIntroText), models.CardMessage(card)); err != nil {
			return dialog.Action{}, err
		}
		// the card is the question; the prompt itself stays silent
		return sc.Prompt(dialog.PromptOptions{
			Retry:     autoreplyRetryText,
			Validator: formValidator,
		}), nil
	}

	applyStep := func(ctx context.Context, sc *dialog.StepContext) (dialog.Action, error) {
		if isDone(deps, sc.Result) {
			return sc.End(dialog.None()), nil
		}
		sub, err := cards.ParseAutoreplySubmission(sc.Result.Value())
		if err != nil {
			slog.Warn("AutoreplyDialog apply: malformed form", "conversationID", sc.Turn.Activity.ConversationID, "error", err)
			return endWithText(ctx, sc, malformedFormText)
		}

		userID := sc.Turn.Activity.UserID()
		profile, err := deps.Profiles.LoadProfile(ctx, userID)
		if err != nil {
			return dialog.Action{}, err
		}
		var email string
		if _, err := sc.Get(emailKey, &email); err != nil {
			return dialog.Action{}, err
		}
		if profile.Email == "" {
			profile.Email = email
		}
		profile.Phone = strings.TrimSpace(sub.Phone)
		if profile.Phone != "" {
			profile.Phone = validate.NormalizePhone(profile.Phone)
		}
		profile.Names = sub.Names()
		profile.Areas = sub.Areas()
		profile.Language = sub.Lang()
		if err := deps.Profiles.SaveProfile(ctx, profile); err != nil {
			slog.Error("AutoreplyDialog apply: profile save failed", "userID", userID, "error", err)
		}

		body, err := composeAutoreply(sub)
		if err != nil {
			slog.Warn("AutoreplyDialog apply: compose failed", "userID", userID, "error", err)
			return endWithText(ctx, sc, malformedFormText)
		}

		err = deps.Directory.SetAutoreply(ctx, directory.Autoreply{
			Email:     profile.Email,
			Message:   body,
			StartDate: sub.StartDate,
			EndDate:   sub.EndDate,
		})
		reply := autoreplySetText
		if err != nil {
			slog.Error("AutoreplyDialog apply: set autoreply failed", "userID", userID, "error", err)
			reply = autoreplyFailedText
		}
		// the calendar event is attempted whatever happened to the autoreply
		if err := deps.Directory.SetOutOfOfficeEvent(ctx, directory.OutOfOffice{
			Email:     profile.Email,
			Subject:   absences[sub.Reason].subject,
			StartDate: sub.StartDate,
			EndDate:   sub.EndDate,
		}); err != nil {
			slog.Error("AutoreplyDialog apply: out of office event failed", "userID", userID, "error", err)
		}

		if err := sc.SendText(ctx, reply); err != nil {
			return dialog.Action{}, err
		}
		return sc.End(dialog.Text(body)), nil
	}

	return dialog.Waterfall(AutoreplyID, emailStep, rememberEmailStep, formStep, applyStep).
		WithValidator(emailValidator, func(_ context.Context, pc *dialog.PromptContext) (bool, error) {
			return validate.WorkEmail(pc.Recognized.Value(), domain), nil
		}).
		WithValidator(formValidator, validateAutoreplyForm)
}

// validateAutoreplyForm checks the form postback. Input that is not a form
// postback at all is accepted here and rejected by the dialog with an
// apology.
func validateAutoreplyForm(ctx context.Context, pc *dialog.PromptContext) (bool, error) {
	sub, err := cards.ParseAutoreplySubmission(pc.Recognized.Value())
	if errors.Is(err, cards.ErrMalformedSubmission) {
		return true, nil
	}
	if err != nil {
		return false, err
	}

	var complaint string
	switch {
	case !sub.ValidReason():
		complaint = missingReasonText
	case !validate.Phone(sub.Phone):
		complaint = badPhoneText
	case !validate.DateRange(sub.StartDate, sub.EndDate):
		complaint = badDatesText
	default:
		return true, nil
	}
	slog.Debug("AutoreplyDialog validator: rejected", "reason", complaint, "attempts", pc.Attempts)
	if err := pc.Turn.SendText(ctx, complaint); err != nil {
		return false, err
	}
	return false, nil
}
