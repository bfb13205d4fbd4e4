package entity

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/xid"
	"github.com/shopspring/decimal"

	"cyberlombard/internal/domain"
	"cyberlombard/internal/domain/value"
	"cyberlombard/pkg/errcodes"
)

type DealStatus string

const (
	DealStatusPending   DealStatus = "PENDING"
	DealStatusActive    DealStatus = "ACTIVE"
	DealStatusBuyback   DealStatus = "BUYBACK"
	DealStatusDefault   DealStatus = "DEFAULT"
	DealStatusCancelled DealStatus = "CANCELLED"
)

// DealStatuses перечисляет все статусы в порядке жизненного цикла.
var DealStatuses = []DealStatus{ //nolint:gochecknoglobals
	DealStatusPending,
	DealStatusActive,
	DealStatusBuyback,
	DealStatusDefault,
	DealStatusCancelled,
}

func (s DealStatus) String() string { return string(s) }

// Terminal из терминального статуса переходов нет.
func (s DealStatus) Terminal() bool {
	return s == DealStatusBuyback || s == DealStatusDefault || s == DealStatusCancelled
}

func ParseDealStatus(s string) (DealStatus, error) {
	for _, st := range DealStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", domain.NewErrorf(errcodes.ValidationError, "unknown deal status %q", s)
}

type DealEvent string

const (
	EventCustodyConfirmed DealEvent = "custody_confirmed"
	EventBuybackPaid      DealEvent = "buyback_paid"
	EventExpired          DealEvent = "expired"
	EventCancelled        DealEvent = "cancelled"
)

// dealTransitions единственное место, где описан граф статусов.
var dealTransitions = map[DealStatus]map[DealEvent]DealStatus{ //nolint:gochecknoglobals
	DealStatusPending: {
		EventCustodyConfirmed: DealStatusActive,
		EventCancelled:        DealStatusCancelled,
	},
	DealStatusActive: {
		EventBuybackPaid: DealStatusBuyback,
		EventExpired:     DealStatusDefault,
	},
}

// Next возвращает статус после события или InvalidTransition.
func (s DealStatus) Next(e DealEvent) (DealStatus, error) {
	next, ok := dealTransitions[s][e]
	if !ok {
		return s, domain.NewErrorf(errcodes.InvalidTransition, "event %s is not applicable to %s deal", e, s)
	}
	return next, nil
}

// PayoutState отслеживает выплату займа владельцу.
type PayoutState string

const (
	PayoutNone    PayoutState = "NONE"
	PayoutClaimed PayoutState = "CLAIMED"
	PayoutPaid    PayoutState = "PAID"
	PayoutFailed  PayoutState = "FAILED"
)

// PledgedItem предмет в замороженном снимке сделки.
type PledgedItem struct {
	value.Item
	AcceptancePrice decimal.Decimal `json:"acceptance_price"`
	LoanCoefficient decimal.Decimal `json:"loan_coefficient"`
	LoanPrice       decimal.Decimal `json:"loan_price"`
}

type PledgedItems []PledgedItem

func (p PledgedItems) Items() value.Items {
	items := make(value.Items, 0, len(p))
	for _, it := range p {
		items = append(items, it.Item)
	}
	return items
}

type Deal struct {
	ID    string
	Owner value.Owner

	// Заморожены при создании и больше не меняются
	MarketTotal  decimal.Decimal
	LoanAmount   decimal.Decimal
	BuybackPrice decimal.Decimal
	TermDays     int
	Rate         TermRate
	OptionExpiry time.Time
	Items        PledgedItems

	Status      DealStatus
	PayoutState PayoutState
	PayoutID    string
	PayoutError string

	// Номер попытки выплаты, входит в ключ идемпотентности. Растёт только
	// после явного отказа шлюза, повтор после таймаута идёт с тем же ключом.
	PayoutAttempts int

	BuybackPaymentID string
	BuybackPaidAt    *time.Time

	ExpiryNotifiedAt *time.Time

	CreatedAt   time.Time
	UpdatedAt   time.Time
	ActivatedAt *time.Time
	ClosedAt    *time.Time

	Trades []Trade

	lastEvent DealEvent
}

// NewDeal замораживает котировку в новую сделку в статусе PENDING.
func NewDeal(q Quote, owner value.Owner, now time.Time) Deal {
	items := make(PledgedItems, len(q.Items))
	copy(items, q.Items)

	return Deal{
		ID:           xid.New().String(),
		Owner:        owner,
		MarketTotal:  q.MarketTotal,
		LoanAmount:   q.LoanAmount,
		BuybackPrice: q.BuybackAmount,
		TermDays:     q.TermDays,
		Rate:         q.Rate,
		OptionExpiry: now.Add(time.Duration(q.TermDays) * 24 * time.Hour),
		Items:        items,
		Status:       DealStatusPending,
		PayoutState:  PayoutNone,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// LastEvent событие, применённое последним переходом в этой копии.
func (d *Deal) LastEvent() DealEvent {
	return d.lastEvent
}

func (d *Deal) apply(e DealEvent, now time.Time) error {
	next, err := d.Status.Next(e)
	if err != nil {
		return err
	}

	d.Status = next
	d.UpdatedAt = now
	d.lastEvent = e

	if next.Terminal() {
		d.ClosedAt = &now
	}

	return nil
}

// Activate переводит сделку в ACTIVE и резервирует выплату за вызывающим.
func (d *Deal) Activate(now time.Time) error {
	if err := d.apply(EventCustodyConfirmed, now); err != nil {
		return err
	}

	d.ActivatedAt = &now
	d.PayoutState = PayoutClaimed
	d.PayoutAttempts = 1

	return nil
}

// CompleteBuyback закрывает сделку выкупом. Условие проверяется по времени
// подтверждения платежа, а не по времени обработки.
func (d *Deal) CompleteBuyback(paymentID string, paidAt, now time.Time) error {
	if paidAt.After(d.OptionExpiry) {
		return domain.NewErrorf(errcodes.InvalidTransition,
			"buy-back payment confirmed at %s after option expiry %s",
			paidAt.UTC().Format(time.RFC3339), d.OptionExpiry.UTC().Format(time.RFC3339))
	}

	if err := d.apply(EventBuybackPaid, now); err != nil {
		return err
	}

	d.BuybackPaymentID = paymentID
	d.BuybackPaidAt = &paidAt

	return nil
}

// Default забирает предметы в собственность по истечении опциона.
func (d *Deal) Default(now time.Time) error {
	if !now.After(d.OptionExpiry) {
		return domain.NewErrorf(errcodes.InvalidTransition, "option of deal %s has not expired yet", d.ID)
	}
	return d.apply(EventExpired, now)
}

func (d *Deal) Cancel(now time.Time) error {
	return d.apply(EventCancelled, now)
}

// AttachBuybackPayment запоминает созданный платёж выкупа.
func (d *Deal) AttachBuybackPayment(paymentID string, now time.Time) error {
	if d.Status != DealStatusActive {
		return domain.NewErrorf(errcodes.InvalidTransition, "buy-back is not available for %s deal", d.Status)
	}
	if now.After(d.OptionExpiry) {
		return domain.NewError(errcodes.InvalidTransition, "option has expired")
	}

	d.BuybackPaymentID = paymentID
	d.UpdatedAt = now

	return nil
}

// ClaimPayoutRetry повторно резервирует неудавшуюся выплату.
func (d *Deal) ClaimPayoutRetry(now time.Time) error {
	if d.PayoutState != PayoutFailed {
		return domain.NewErrorf(errcodes.InvalidTransition, "payout is %s, retry is possible only after failure", d.PayoutState)
	}

	d.PayoutState = PayoutClaimed
	d.PayoutError = ""
	d.UpdatedAt = now

	return nil
}

// payoutKeySpace пространство имён для ключей идемпотентности выплат.
var payoutKeySpace = uuid.MustParse("6f1c2b8e-3d4a-4f57-9a0e-2c7d8b51e4a3") //nolint:gochecknoglobals

// PayoutKey ключ идемпотентности текущей попытки выплаты. Повторная
// отправка той же попытки не приводит к двойной выплате.
func (d *Deal) PayoutKey() string {
	return uuid.NewSHA1(payoutKeySpace, []byte(d.ID+":"+strconv.Itoa(d.PayoutAttempts))).String()
}

func (d *Deal) RecordPayout(payoutID string, now time.Time) {
	d.PayoutState = PayoutPaid
	d.PayoutID = payoutID
	d.PayoutError = ""
	d.UpdatedAt = now
}

// RecordPayoutFailure фиксирует неудачную выплату. rejected означает, что
// шлюз окончательно отклонил попытку и следующая пойдёт с новым ключом.
func (d *Deal) RecordPayoutFailure(reason string, rejected bool, now time.Time) {
	d.PayoutState = PayoutFailed
	d.PayoutError = reason
	d.UpdatedAt = now

	if rejected {
		d.PayoutAttempts++
	}
}

// MarkExpiryNotified отмечает предупреждение об истечении. Возвращает false,
// если предупреждение уже было.
func (d *Deal) MarkExpiryNotified(now time.Time) bool {
	if d.ExpiryNotifiedAt != nil || d.Status != DealStatusActive {
		return false
	}

	d.ExpiryNotifiedAt = &now
	d.UpdatedAt = now

	return true
}

// ActiveTrade возвращает незавершённый трейд в заданном направлении.
func (d *Deal) ActiveTrade(direction TradeDirection) (Trade, bool) {
	for _, t := range d.Trades {
		if t.Direction == direction && t.Status.Active() {
			return t, true
		}
	}
	return Trade{}, false
}

// ExpiryCursor позиция в списке просроченных сделок, упорядоченном по
// (option_expiry, id). Нулевое значение означает начало списка.
type ExpiryCursor struct {
	OptionExpiry time.Time
	ID           string
}

func (d Deal) ExpiryCursor() ExpiryCursor {
	return ExpiryCursor{OptionExpiry: d.OptionExpiry, ID: d.ID}
}

// After сделка стоит в списке после курсора.
func (c ExpiryCursor) After(d Deal) bool {
	if cmp := d.OptionExpiry.Compare(c.OptionExpiry); cmp != 0 {
		return cmp > 0
	}
	return d.ID > c.ID
}

// StatusChange запись аудита о смене статуса.
type StatusChange struct {
	DealID string
	From   DealStatus
	To     DealStatus
	Reason string
	At     time.Time
}

// DealStats агрегаты по портфелю сделок.
type DealStats struct {
	ByStatus       map[DealStatus]int
	Total          int
	LoanedVolume   decimal.Decimal
	BuybackVolume  decimal.Decimal
	DefaultedValue decimal.Decimal
}
