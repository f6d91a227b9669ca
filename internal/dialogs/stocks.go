package dialogs

import (
	"context"
	"log/slog"

	"github.com/pilyavetsb/SecretaryBot/internal/cards"
	"github.com/pilyavetsb/SecretaryBot/internal/dialog"
	"github.com/pilyavetsb/SecretaryBot/internal/models"
)

const (
	stocksIntroText       = "В следующем сообщении будет отправлен курс акции Тиккурила. Это может занять около 5 секунд"
	stocksUnavailableText = "Не удалось получить котировки😿 Попробуйте еще раз позднее"
)

// newStocksDialog sends the latest quote of the configured ticker as a card.
func newStocksDialog(deps Deps) *dialog.Dialog {
	return dialog.Waterfall(StocksID,
		func(ctx context.Context, sc *dialog.StepContext) (dialog.Action, error) {
			if err := sc.SendText(ctx, stocksIntroText); err != nil {
				return dialog.Action{}, err
			}
			ticker := deps.Config.Stocks.Ticker
			q, err := deps.Quotes.Quote(ctx, ticker)
			if err != nil {
				slog.Error("StocksDialog: quote failed", "ticker", ticker, "error", err)
				return endWithText(ctx, sc, stocksUnavailableText)
			}
			card, err := cards.StockCard(q)
			if err != nil {
				return dialog.Action{}, err
			}
			if err := sc.Send(ctx, models.CardMessage(card)); err != nil {
				return dialog.Action{}, err
			}
			return sc.End(dialog.None()), nil
		},
	)
}
