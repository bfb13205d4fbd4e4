package handler

import (
	"fmt"
	"html"
	"strings"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"

	"cyberlombard/internal/domain"
	"cyberlombard/internal/transport/bot/view"
	"cyberlombard/pkg/logx"
)

func (h *Handler) OnStart(ctx *th.Context, msg telego.Message) error {
	return h.sendHTML(ctx, msg.Chat.ID, view.StartMessage)
}

func (h *Handler) OnDeal(ctx *th.Context, msg telego.Message) error {
	id, ok := Arg(msg.Text)
	if !ok {
		return h.sendHTML(ctx, msg.Chat.ID, view.MissingDealID)
	}

	d, err := h.svc.Get(ctx, id)
	if err != nil {
		return h.replyError(ctx, msg.Chat.ID, err)
	}

	_, err = ctx.Bot().SendMessage(ctx, &telego.SendMessageParams{
		ChatID:      telego.ChatID{ID: msg.Chat.ID},
		Text:        view.DealCard(d),
		ParseMode:   telego.ModeHTML,
		ReplyMarkup: dealKeyboard(d.ID),
	})
	return err
}

func (h *Handler) OnHistory(ctx *th.Context, msg telego.Message) error {
	id, ok := Arg(msg.Text)
	if !ok {
		return h.sendHTML(ctx, msg.Chat.ID, view.MissingDealID)
	}

	changes, err := h.svc.History(ctx, id)
	if err != nil {
		return h.replyError(ctx, msg.Chat.ID, err)
	}

	return h.sendHTML(ctx, msg.Chat.ID, view.History(id, changes))
}

func (h *Handler) OnOwnerDeals(ctx *th.Context, msg telego.Message) error {
	owner, ok := Arg(msg.Text)
	if !ok {
		return h.sendHTML(ctx, msg.Chat.ID, view.MissingOwner)
	}

	deals, err := h.svc.ListByOwner(ctx, owner)
	if err != nil {
		return h.replyError(ctx, msg.Chat.ID, err)
	}

	if len(deals) == 0 {
		return h.send(ctx, msg.Chat.ID, view.OwnerNoDeals)
	}

	pageDeals, page, totalPages := Paginate(deals, 1, view.DealsPerPage)

	_, err = ctx.Bot().SendMessage(ctx, &telego.SendMessageParams{
		ChatID:      telego.ChatID{ID: msg.Chat.ID},
		Text:        view.OwnerDealsPage(owner, pageDeals, page, totalPages),
		ParseMode:   telego.ModeHTML,
		ReplyMarkup: createPaginationKeyboard(owner, page, totalPages),
	})
	return err
}

func (h *Handler) OnStats(ctx *th.Context, msg telego.Message) error {
	stats, err := h.svc.Stats(ctx)
	if err != nil {
		return h.replyError(ctx, msg.Chat.ID, err)
	}

	return h.sendHTML(ctx, msg.Chat.ID, view.Stats(stats))
}

func (h *Handler) OnSweep(ctx *th.Context, msg telego.Message) error {
	pass, err := h.sweeper.RunOnce(ctx)
	if err != nil {
		logger(ctx).Error("manual sweep failed", logx.Error(err))
		return h.sendHTML(ctx, msg.Chat.ID, view.SweepPass(pass)+"\n\n❗️ "+html.EscapeString(err.Error()))
	}

	return h.sendHTML(ctx, msg.Chat.ID, view.SweepPass(pass))
}

func (h *Handler) OnSweeperStatus(ctx *th.Context, msg telego.Message) error {
	return h.sendHTML(ctx, msg.Chat.ID, view.SweeperStatus(h.sweeper.IsRunning(), h.sweeper.Last()))
}

func (h *Handler) OnStartSweep(ctx *th.Context, msg telego.Message) error {
	if h.sweeper.IsRunning() {
		return h.send(ctx, msg.Chat.ID, "Планировщик уже запущен!")
	}

	if err := h.sweeper.Start(h.runCtx); err != nil {
		return h.send(ctx, msg.Chat.ID, fmt.Sprintf("Ошибка запуска планировщика: %v", err))
	}

	return h.send(ctx, msg.Chat.ID, "Планировщик запущен!")
}

func (h *Handler) OnStopSweep(ctx *th.Context, msg telego.Message) error {
	if !h.sweeper.IsRunning() {
		return h.send(ctx, msg.Chat.ID, "Планировщик не запущен!")
	}

	h.sweeper.Stop()

	return h.send(ctx, msg.Chat.ID, "Планировщик остановлен!")
}

func (h *Handler) OnRetryPayout(ctx *th.Context, msg telego.Message) error {
	id, ok := Arg(msg.Text)
	if !ok {
		return h.sendHTML(ctx, msg.Chat.ID, view.MissingDealID)
	}

	return h.sendHTML(ctx, msg.Chat.ID, h.retryPayout(ctx, id))
}

func (h *Handler) OnRetryReturn(ctx *th.Context, msg telego.Message) error {
	id, ok := Arg(msg.Text)
	if !ok {
		return h.sendHTML(ctx, msg.Chat.ID, view.MissingDealID)
	}

	return h.sendHTML(ctx, msg.Chat.ID, h.retryReturn(ctx, id))
}

func (h *Handler) OnCancel(ctx *th.Context, msg telego.Message) error {
	id, ok := Arg(msg.Text)
	if !ok {
		return h.sendHTML(ctx, msg.Chat.ID, view.MissingDealID)
	}

	d, err := h.svc.Cancel(ctx, id)
	if err != nil {
		return h.replyError(ctx, msg.Chat.ID, err)
	}

	return h.sendHTML(ctx, msg.Chat.ID, fmt.Sprintf("🚫 Сделка <code>%s</code> отменена", html.EscapeString(d.ID)))
}

func (h *Handler) retryPayout(ctx *th.Context, id string) string {
	d, err := h.svc.RetryPayout(ctx, id)
	if err != nil {
		return ErrorText(err)
	}

	return fmt.Sprintf("✅ Выплата по <code>%s</code>: %s", html.EscapeString(d.ID), d.PayoutState)
}

func (h *Handler) retryReturn(ctx *th.Context, id string) string {
	t, err := h.svc.RetryReturn(ctx, id)
	if err != nil {
		return ErrorText(err)
	}

	return fmt.Sprintf("✅ Возврат отправлен, обмен <code>%s</code>", html.EscapeString(t.OfferID))
}

// Arg возвращает первый аргумент команды.
func Arg(text string) (string, bool) {
	parts := strings.Fields(text)
	if len(parts) < 2 { //nolint:mnd
		return "", false
	}
	return parts[1], true
}

// ErrorText сообщение об ошибке для оператора.
func ErrorText(err error) string {
	if code, ok := domain.GetCode(err); ok {
		return fmt.Sprintf("❌ <b>%s</b>: %s", code, html.EscapeString(domain.Message(err)))
	}
	return "❌ " + html.EscapeString(err.Error())
}

// Paginate возвращает страницу page (с 1) и общее число страниц.
func Paginate[T any](all []T, page, limit int) ([]T, int, int) {
	totalPages := (len(all) + limit - 1) / limit
	if totalPages == 0 {
		totalPages = 1
	}

	page = min(max(page, 1), totalPages)

	start := (page - 1) * limit
	end := min(start+limit, len(all))

	return all[start:end], page, totalPages
}

func dealKeyboard(id string) *telego.InlineKeyboardMarkup {
	return tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("📜 История").WithCallbackData(callbackHistory+id),
			tu.InlineKeyboardButton("🔄 Обновить").WithCallbackData(callbackRefresh+id),
		),
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("💸 Повторить выплату").WithCallbackData(callbackPayout+id),
			tu.InlineKeyboardButton("📦 Повторить возврат").WithCallbackData(callbackReturn+id),
		),
	)
}

// Вспомогательные методы

func (h *Handler) replyError(ctx *th.Context, chatID int64, err error) error {
	logger(ctx).Warn("bot command failed", logx.Error(err))
	return h.sendHTML(ctx, chatID, ErrorText(err))
}

func (h *Handler) sendHTML(ctx *th.Context, chatID int64, text string) error {
	_, err := ctx.Bot().SendMessage(ctx, &telego.SendMessageParams{
		ChatID:    telego.ChatID{ID: chatID},
		Text:      text,
		ParseMode: telego.ModeHTML,
	})
	return err
}

func (h *Handler) send(ctx *th.Context, chatID int64, text string) error {
	_, err := ctx.Bot().SendMessage(ctx, &telego.SendMessageParams{
		ChatID: telego.ChatID{ID: chatID},
		Text:   text,
	})
	return err
}
