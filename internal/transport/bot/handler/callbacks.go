package handler

import (
	"fmt"
	"strings"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"

	"cyberlombard/internal/transport/bot/view"
)

const (
	callbackOwnerPage = "owner_page:"
	callbackHistory   = "deal_history:"
	callbackRefresh   = "deal_refresh:"
	callbackPayout    = "deal_payout:"
	callbackReturn    = "deal_return:"
)

func (h *Handler) OnOwnerPageCallback(ctx *th.Context, query telego.CallbackQuery) error {
	// Формат: "owner_page:<page>:<owner>"
	var page int
	var owner string
	rest := strings.TrimPrefix(query.Data, callbackOwnerPage)
	if _, err := fmt.Sscanf(rest, "%d:", &page); err != nil {
		page = 1
	}
	if i := strings.IndexByte(rest, ':'); i >= 0 {
		owner = rest[i+1:]
	}

	deals, err := h.svc.ListByOwner(ctx, owner)
	if err != nil {
		_ = ctx.Bot().AnswerCallbackQuery(ctx, tu.CallbackQuery(query.ID).
			WithText("❌ Ошибка получения данных").WithShowAlert())
		return err
	}

	pageDeals, page, totalPages := Paginate(deals, page, view.DealsPerPage)

	_, err = ctx.Bot().EditMessageText(ctx, &telego.EditMessageTextParams{
		ChatID:      tu.ID(query.Message.GetChat().ID),
		MessageID:   query.Message.GetMessageID(),
		Text:        view.OwnerDealsPage(owner, pageDeals, page, totalPages),
		ParseMode:   telego.ModeHTML,
		ReplyMarkup: createPaginationKeyboard(owner, page, totalPages),
	})
	// Telegram возвращает ошибку, если текст не изменился
	if err != nil {
		logger(ctx).Debug("edit message", "error", err)
	}

	return ctx.Bot().AnswerCallbackQuery(ctx, tu.CallbackQuery(query.ID))
}

func (h *Handler) OnDealCallback(ctx *th.Context, query telego.CallbackQuery) error {
	chatID := query.Message.GetChat().ID

	var text string
	switch {
	case strings.HasPrefix(query.Data, callbackHistory):
		id := strings.TrimPrefix(query.Data, callbackHistory)
		changes, err := h.svc.History(ctx, id)
		if err != nil {
			text = ErrorText(err)
		} else {
			text = view.History(id, changes)
		}
	case strings.HasPrefix(query.Data, callbackRefresh):
		d, err := h.svc.Get(ctx, strings.TrimPrefix(query.Data, callbackRefresh))
		if err != nil {
			text = ErrorText(err)
			break
		}
		_, err = ctx.Bot().EditMessageText(ctx, &telego.EditMessageTextParams{
			ChatID:      tu.ID(chatID),
			MessageID:   query.Message.GetMessageID(),
			Text:        view.DealCard(d),
			ParseMode:   telego.ModeHTML,
			ReplyMarkup: dealKeyboard(d.ID),
		})
		if err != nil {
			logger(ctx).Debug("edit message", "error", err)
		}
		return ctx.Bot().AnswerCallbackQuery(ctx, tu.CallbackQuery(query.ID).WithText("Обновлено"))
	case strings.HasPrefix(query.Data, callbackPayout):
		text = h.retryPayout(ctx, strings.TrimPrefix(query.Data, callbackPayout))
	case strings.HasPrefix(query.Data, callbackReturn):
		text = h.retryReturn(ctx, strings.TrimPrefix(query.Data, callbackReturn))
	default:
		return ctx.Bot().AnswerCallbackQuery(ctx, tu.CallbackQuery(query.ID))
	}

	_ = ctx.Bot().AnswerCallbackQuery(ctx, tu.CallbackQuery(query.ID))

	return h.sendHTML(ctx, chatID, text)
}

func createPaginationKeyboard(owner string, page, totalPages int) *telego.InlineKeyboardMarkup {
	var buttons []telego.InlineKeyboardButton

	if page > 1 {
		buttons = append(buttons, tu.InlineKeyboardButton("⬅️").
			WithCallbackData(fmt.Sprintf("%s%d:%s", callbackOwnerPage, page-1, owner)))
	}

	buttons = append(buttons, tu.InlineKeyboardButton(fmt.Sprintf("%d / %d", page, totalPages)).
		WithCallbackData("noop")) // noop = no operation

	if page < totalPages {
		buttons = append(buttons, tu.InlineKeyboardButton("➡️").
			WithCallbackData(fmt.Sprintf("%s%d:%s", callbackOwnerPage, page+1, owner)))
	}

	return tu.InlineKeyboard(
		tu.InlineKeyboardRow(buttons...),
	)
}
