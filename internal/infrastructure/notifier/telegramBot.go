package notifier

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"cyberlombard/internal/domain/service/deal"
	"cyberlombard/internal/domain/value"
	"cyberlombard/pkg/logx"
)

type messageSender interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
}

// TelegramBot пересылает операторам события сделок.
type TelegramBot struct {
	sender messageSender
	chatID int64
	kinds  map[deal.EventKind]bool
}

func NewTelegramBot(token string, chatID int64) (*TelegramBot, error) {
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	return NewTelegramBotWithSender(bot, chatID), nil
}

func NewTelegramBotWithSender(sender messageSender, chatID int64) *TelegramBot {
	return &TelegramBot{
		sender: sender,
		chatID: chatID,
	}
}

// WithKinds ограничивает пересылаемые события. Без вызова пересылаются все.
func (b *TelegramBot) WithKinds(kinds ...deal.EventKind) *TelegramBot {
	b.kinds = make(map[deal.EventKind]bool, len(kinds))
	for _, k := range kinds {
		b.kinds[k] = true
	}
	return b
}

// Run запускает обработку событий из канала.
func (b *TelegramBot) Run(ctx context.Context, events <-chan deal.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-events:
			if !ok {
				return nil
			}
			if b.kinds != nil && !b.kinds[e.Kind] {
				continue
			}
			if err := b.SendEvent(ctx, e); err != nil {
				logger(ctx).Error("failed to send deal event",
					slog.String(logx.FieldDealID, e.Deal.ID), slog.String("kind", string(e.Kind)), logx.Error(err))
			}
		}
	}
}

func (b *TelegramBot) SendEvent(ctx context.Context, e deal.Event) error {
	msg := tu.Message(
		tu.ID(b.chatID),
		FormatEvent(e),
	).WithParseMode(telego.ModeHTML)

	if _, err := b.sender.SendMessage(ctx, msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	return nil
}

// SendText отправляет простое текстовое сообщение.
func (b *TelegramBot) SendText(ctx context.Context, text string) error {
	_, err := b.sender.SendMessage(ctx, tu.Message(tu.ID(b.chatID), text))
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

var titles = map[deal.EventKind]string{ //nolint:gochecknoglobals
	deal.EventCreated:      "🆕 <b>Сделка создана</b>",
	deal.EventActivated:    "✅ <b>Предметы получены, заём выплачен</b>",
	deal.EventPayoutFailed: "❗️ <b>Выплата не прошла</b>",
	deal.EventBuyback:      "💰 <b>Выкуп оплачен</b>",
	deal.EventReturned:     "📦 <b>Предметы возвращены</b>",
	deal.EventReturnFailed: "❗️ <b>Возврат предметов не отправлен</b>",
	deal.EventDefaulted:    "⌛️ <b>Опцион истёк, предметы остаются у сервиса</b>",
	deal.EventCancelled:    "🚫 <b>Сделка отменена</b>",
	deal.EventExpiring:     "⏰ <b>Опцион скоро истекает</b>",
	deal.EventTradeFailed:  "⚠️ <b>Передача предметов не состоялась</b>",

	deal.EventCustodyOrphaned: "🆘 <b>Предметы получены по закрытой сделке, верните их вручную</b>",
}

// FormatEvent готовит HTML текст уведомления.
func FormatEvent(e deal.Event) string {
	title, ok := titles[e.Kind]
	if !ok {
		title = "<b>" + html.EscapeString(string(e.Kind)) + "</b>"
	}

	d := e.Deal

	var sb strings.Builder
	sb.WriteString(title)
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "🆔 <code>%s</code>\n", html.EscapeString(d.ID))
	fmt.Fprintf(&sb, "📌 <b>Статус:</b> %s\n", d.Status)
	fmt.Fprintf(&sb, "👤 <b>Владелец:</b> %s\n", html.EscapeString(d.Owner.ID))
	fmt.Fprintf(&sb, "🎒 <b>Предметы:</b> %d\n", len(d.Items))
	fmt.Fprintf(&sb, "💵 <b>Заём:</b> %s ₽\n", value.RoundMoney(d.LoanAmount).StringFixed(value.MoneyPlaces))
	fmt.Fprintf(&sb, "🔁 <b>Выкуп:</b> %s ₽\n", value.RoundMoney(d.BuybackPrice).StringFixed(value.MoneyPlaces))

	if !d.OptionExpiry.IsZero() {
		fmt.Fprintf(&sb, "📅 <b>Истекает:</b> %s UTC\n", d.OptionExpiry.UTC().Format("02.01.2006 15:04"))
	}

	if e.Detail != "" {
		fmt.Fprintf(&sb, "\n<i>%s</i>", html.EscapeString(e.Detail))
	}

	return sb.String()
}
