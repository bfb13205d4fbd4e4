package view

import (
	"fmt"
	"html"
	"strings"

	"github.com/shopspring/decimal"

	"cyberlombard/internal/domain/entity"
	"cyberlombard/internal/domain/value"
	"cyberlombard/internal/worker"
)

const StartMessage = `👋 <b>Панель оператора</b>

/deal <code>ID</code> — карточка сделки
/history <code>ID</code> — история статусов
/deals <code>OWNER</code> — сделки владельца
/stats — сводка по портфелю
/sweep — обработать просроченные сделки сейчас
/sweeper — состояние планировщика
/startsweep, /stopsweep — запуск и остановка планировщика
/retrypayout <code>ID</code> — повторить выплату
/retryreturn <code>ID</code> — повторить возврат предметов
/cancel <code>ID</code> — отменить сделку без предметов`

const (
	MissingDealID = "❌ Укажите ID сделки, например: /deal <code>cv1a2b3c</code>"
	MissingOwner  = "❌ Укажите ID владельца, например: /deals <code>u1</code>"
	OwnerNoDeals  = "📭 У владельца нет сделок"
	DealsPerPage  = 5
)

const timeLayout = "02.01.2006 15:04"

func money(d decimal.Decimal) string {
	return value.RoundMoney(d).StringFixed(value.MoneyPlaces)
}

// DealCard подробная карточка сделки.
func DealCard(d entity.Deal) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "📄 <b>Сделка</b> <code>%s</code>\n\n", html.EscapeString(d.ID))
	fmt.Fprintf(&sb, "📌 <b>Статус:</b> %s\n", d.Status)
	fmt.Fprintf(&sb, "👤 <b>Владелец:</b> %s\n", html.EscapeString(d.Owner.ID))
	fmt.Fprintf(&sb, "💵 <b>Заём:</b> %s ₽\n", money(d.LoanAmount))
	fmt.Fprintf(&sb, "🔁 <b>Выкуп:</b> %s ₽\n", money(d.BuybackPrice))
	fmt.Fprintf(&sb, "📊 <b>Рынок:</b> %s ₽\n", money(d.MarketTotal))
	fmt.Fprintf(&sb, "📅 <b>Срок:</b> %d дн., до %s UTC\n", d.TermDays, d.OptionExpiry.UTC().Format(timeLayout))
	fmt.Fprintf(&sb, "💸 <b>Выплата:</b> %s", d.PayoutState)
	if d.PayoutError != "" {
		fmt.Fprintf(&sb, " (%s)", html.EscapeString(d.PayoutError))
	}
	sb.WriteString("\n")

	if d.BuybackPaymentID != "" {
		fmt.Fprintf(&sb, "🧾 <b>Платёж выкупа:</b> <code>%s</code>\n", html.EscapeString(d.BuybackPaymentID))
	}

	fmt.Fprintf(&sb, "\n🎒 <b>Предметы (%d):</b>\n", len(d.Items))
	for i, it := range d.Items {
		fmt.Fprintf(&sb, "%d. %s — %s ₽\n", i+1, html.EscapeString(it.MarketHashName), money(it.AcceptancePrice))
	}

	if len(d.Trades) > 0 {
		sb.WriteString("\n🔄 <b>Обмены:</b>\n")
		for _, t := range d.Trades {
			fmt.Fprintf(&sb, "• %s <code>%s</code> — %s\n", t.Direction, html.EscapeString(t.OfferID), t.Status)
		}
	}

	return sb.String()
}

// DealLine строка сделки в списке.
func DealLine(d entity.Deal) string {
	return fmt.Sprintf("<code>%s</code> %s, %s ₽ до %s\n",
		html.EscapeString(d.ID), d.Status, money(d.LoanAmount), d.OptionExpiry.UTC().Format(timeLayout))
}

// OwnerDealsPage страница списка сделок владельца.
func OwnerDealsPage(owner string, deals []entity.Deal, page, totalPages int) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "📚 <b>Сделки %s</b> (Стр. %d/%d)\n\n", html.EscapeString(owner), page, totalPages)
	for _, d := range deals {
		sb.WriteString(DealLine(d))
	}

	return sb.String()
}

// History история статусов сделки.
func History(dealID string, changes []entity.StatusChange) string {
	if len(changes) == 0 {
		return fmt.Sprintf("📜 У сделки <code>%s</code> пока нет переходов", html.EscapeString(dealID))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📜 <b>История</b> <code>%s</code>\n\n", html.EscapeString(dealID))
	for _, c := range changes {
		fmt.Fprintf(&sb, "%s UTC %s → %s", c.At.UTC().Format(timeLayout), c.From, c.To)
		if c.Reason != "" {
			fmt.Fprintf(&sb, " (%s)", html.EscapeString(c.Reason))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// Stats сводка по портфелю.
func Stats(s entity.DealStats) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "📊 <b>Портфель</b> (%d сделок)\n\n", s.Total)
	for _, status := range entity.DealStatuses {
		fmt.Fprintf(&sb, "%s: %d\n", status, s.ByStatus[status])
	}
	fmt.Fprintf(&sb, "\n💵 <b>Выдано:</b> %s ₽\n", money(s.LoanedVolume))
	fmt.Fprintf(&sb, "🔁 <b>Выкуплено:</b> %s ₽\n", money(s.BuybackVolume))
	fmt.Fprintf(&sb, "⌛️ <b>Забрано по дефолту:</b> %s ₽\n", money(s.DefaultedValue))

	return sb.String()
}

// SweepPass итог прохода планировщика.
func SweepPass(p worker.Pass) string {
	return fmt.Sprintf(`🧹 <b>Проход планировщика</b> %s UTC

⌛️ <b>Дефолт:</b> %d
💰 <b>Выкуп по платежу:</b> %d
⏸ <b>Отложено:</b> %d
❗️ <b>Ошибки:</b> %d
🚫 <b>Отменено PENDING:</b> %d
⏰ <b>Предупреждений:</b> %d`,
		p.At.UTC().Format(timeLayout),
		p.Defaulted, p.BoughtBack, p.Skipped, p.Failed, p.Cancelled, p.Notified)
}

// SweeperStatus состояние планировщика.
func SweeperStatus(running bool, last worker.Pass) string {
	status := "🔴 остановлен"
	if running {
		status = "🟢 работает"
	}

	if last.At.IsZero() {
		return fmt.Sprintf("🧹 <b>Планировщик:</b> %s\nПроходов ещё не было", status)
	}

	return fmt.Sprintf("🧹 <b>Планировщик:</b> %s\n\n%s", status, SweepPass(last))
}
