package payment

import (
	"time"

	"github.com/shopspring/decimal"

	"cyberlombard/internal/domain/entity"
	"cyberlombard/internal/domain/value"
)

const currencyRUB = "RUB"

type amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

func newAmount(v decimal.Decimal) amount {
	return amount{Value: value.RoundMoney(v).StringFixed(value.MoneyPlaces), Currency: currencyRUB}
}

type confirmation struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

type metadata struct {
	DealID string `json:"deal_id"`
}

type createPaymentRequest struct {
	Amount       amount       `json:"amount"`
	Confirmation confirmation `json:"confirmation"`
	Capture      bool         `json:"capture"`
	Description  string       `json:"description"`
	Metadata     metadata     `json:"metadata"`
}

type paymentResponse struct {
	ID           string        `json:"id"`
	Status       string        `json:"status"`
	Paid         bool          `json:"paid"`
	Amount       amount        `json:"amount"`
	Confirmation *confirmation `json:"confirmation"`
	CapturedAt   *time.Time    `json:"captured_at"`
	CreatedAt    time.Time     `json:"created_at"`
	Metadata     metadata      `json:"metadata"`
}

func (r paymentResponse) toDomain() entity.Payment {
	amt, _ := decimal.NewFromString(r.Amount.Value)

	p := entity.Payment{
		ID:        r.ID,
		DealID:    r.Metadata.DealID,
		Status:    entity.PaymentStatus(r.Status),
		Amount:    amt,
		PaidAt:    r.CapturedAt,
		CreatedAt: r.CreatedAt,
	}

	if r.Confirmation != nil {
		p.ConfirmationURL = r.Confirmation.ConfirmationURL
	}

	return p
}

type payoutDestination struct {
	Type  string `json:"type"`
	Phone string `json:"phone"`
}

type createPayoutRequest struct {
	Amount      amount            `json:"amount"`
	Destination payoutDestination `json:"payout_destination_data"`
	Description string            `json:"description"`
	Metadata    metadata          `json:"metadata"`
}

type payoutResponse struct {
	ID                  string `json:"id"`
	Status              string `json:"status"`
	CancellationDetails *struct {
		Party  string `json:"party"`
		Reason string `json:"reason"`
	} `json:"cancellation_details"`
}

func (r payoutResponse) toDomain() entity.Payout {
	p := entity.Payout{ID: r.ID, Status: entity.PaymentStatus(r.Status)}
	if r.CancellationDetails != nil {
		p.Reason = r.CancellationDetails.Reason
	}
	return p
}
