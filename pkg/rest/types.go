// Модели HTTP API. Денежные суммы передаются строками с двумя знаками после точки.
package rest

import "time"

// Item Предмет инвентаря
type Item struct {
	AssetID        string `json:"asset_id" validate:"required"`
	MarketHashName string `json:"market_hash_name" validate:"required"`
	Rarity         string `json:"rarity,omitempty"`
}

// QuoteRequest Запрос котировки
type QuoteRequest struct {
	Items    []Item `json:"items" validate:"required,min=1,dive"`
	TermDays int    `json:"term_days" validate:"required"`
}

// ItemValuation Оценка предмета
type ItemValuation struct {
	Item
	AcceptancePrice string `json:"acceptance_price"`
	LoanPrice       string `json:"loan_price,omitempty"`
	Source          string `json:"source,omitempty"`
	Acceptable      bool   `json:"acceptable"`
}

// Breakdown Структура выкупной цены
type Breakdown struct {
	InterestAmount    string `json:"interest_amount"`
	PremiumAmount     string `json:"premium_amount"`
	Profit            string `json:"profit"`
	MarginPercent     string `json:"margin_percent"`
	AnnualRatePercent string `json:"annual_rate_percent"`
}

// Quote Котировка
type Quote struct {
	Items         []ItemValuation `json:"items"`
	Rejected      []ItemValuation `json:"rejected"`
	TermDays      int             `json:"term_days"`
	MarketTotal   string          `json:"market_total"`
	LoanAmount    string          `json:"loan_amount"`
	BuybackAmount string          `json:"buyback_amount"`
	InterestRate  string          `json:"interest_rate"`
	PremiumRate   string          `json:"premium_rate"`
	Breakdown     Breakdown       `json:"breakdown"`
	QuotedAt      time.Time       `json:"quoted_at"`
	ExpiresAt     time.Time       `json:"expires_at"`
}

// Owner Владелец предметов
type Owner struct {
	ID                string `json:"id" validate:"required"`
	SteamID           string `json:"steam_id" validate:"required"`
	TradeURL          string `json:"trade_url" validate:"omitempty,url"`
	PayoutDestination string `json:"payout_destination" validate:"required"`
	PhoneVerified     bool   `json:"phone_verified"`
	PassportVerified  bool   `json:"passport_verified"`
}

// CreateDealRequest Запрос на создание сделки по ранее показанной котировке
type CreateDealRequest struct {
	Items         []Item `json:"items" validate:"required,min=1,dive"`
	TermDays      int    `json:"term_days" validate:"required"`
	LoanAmount    string `json:"loan_amount" validate:"required"`
	BuybackAmount string `json:"buyback_amount" validate:"required"`
	Owner         Owner  `json:"owner"`
}

// Trade Передача предметов
type Trade struct {
	OfferID   string    `json:"offer_id"`
	OfferURL  string    `json:"offer_url,omitempty"`
	Direction string    `json:"direction"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Payout Состояние выплаты займа
type Payout struct {
	State string `json:"state"`
	ID    string `json:"id,omitempty"`
	Error string `json:"error,omitempty"`
}

// Deal Сделка
type Deal struct {
	ID               string          `json:"id"`
	OwnerID          string          `json:"owner_id"`
	Status           string          `json:"status"`
	Items            []ItemValuation `json:"items"`
	TermDays         int             `json:"term_days"`
	MarketTotal      string          `json:"market_total"`
	LoanAmount       string          `json:"loan_amount"`
	BuybackPrice     string          `json:"buyback_price"`
	OptionExpiry     time.Time       `json:"option_expiry"`
	Payout           Payout          `json:"payout"`
	BuybackPaymentID string          `json:"buyback_payment_id,omitempty"`
	BuybackPaidAt    *time.Time      `json:"buyback_paid_at,omitempty"`
	Trades           []Trade         `json:"trades"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	ActivatedAt      *time.Time      `json:"activated_at,omitempty"`
	ClosedAt         *time.Time      `json:"closed_at,omitempty"`
}

// StatusChange Запись аудита
type StatusChange struct {
	From   string    `json:"from"`
	To     string    `json:"to"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

// Stats Агрегаты по сделкам
type Stats struct {
	ByStatus       map[string]int `json:"by_status"`
	Total          int            `json:"total"`
	LoanedVolume   string         `json:"loaned_volume"`
	BuybackVolume  string         `json:"buyback_volume"`
	DefaultedValue string         `json:"defaulted_value"`
}

// BuybackRequest Запрос на выкуп
type BuybackRequest struct {
	ReturnURL string `json:"return_url" validate:"omitempty,url"`
}

// BuybackPayment Платёж выкупа
type BuybackPayment struct {
	PaymentID       string `json:"payment_id"`
	ConfirmationURL string `json:"confirmation_url"`
	Amount          string `json:"amount"`
	Status          string `json:"status"`
}

// TradeStatusWebhook Уведомление торгового агента
type TradeStatusWebhook struct {
	DealID   string `json:"deal_id"`
	OfferURL string `json:"offer_url"`
	Status   string `json:"status" validate:"required"`
	Items    []Item `json:"items" validate:"dive"`
}

// PaymentWebhook Уведомление платёжного шлюза
type PaymentWebhook struct {
	Event  string              `json:"event"`
	Object PaymentWebhookEntry `json:"object"`
}

// PaymentWebhookEntry Объект платежа в уведомлении
type PaymentWebhookEntry struct {
	ID       string            `json:"id" validate:"required"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata"`
}

// SweepRequest Ручной запуск обработки просроченных сделок
type SweepRequest struct {
	Now *time.Time `json:"now,omitempty"`
}

// SweepResult Итог обработки
type SweepResult struct {
	Defaulted  int `json:"defaulted"`
	BoughtBack int `json:"bought_back"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
	Cancelled  int `json:"cancelled"`
}

// Error Модель ошибок
type Error struct {
	// Code Код ошибки
	Code ErrorCode `json:"code"`

	// Message Сообщение об ошибке (для отображения в UI в будущем)
	Message string `json:"message"`

	// SupportID Идентификатор запроса для поддержки
	SupportID string `json:"supportId"`
}

// ErrorCode Код ошибки
type ErrorCode string
