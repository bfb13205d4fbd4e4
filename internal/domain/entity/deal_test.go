package entity_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"cyberlombard/internal/domain"
	"cyberlombard/internal/domain/entity"
	"cyberlombard/internal/domain/value"
	"cyberlombard/pkg/errcodes"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) //nolint:gochecknoglobals

func newDeal(t *testing.T) entity.Deal {
	t.Helper()

	q := entity.Quote{
		Items: entity.PledgedItems{{
			Item:            value.Item{AssetID: "101", MarketHashName: "AK-47 | Redline (Field-Tested)"},
			AcceptancePrice: decimal.NewFromInt(1000),
			LoanCoefficient: decimal.RequireFromString("0.40"),
			LoanPrice:       decimal.NewFromInt(400),
		}},
		TermDays:      14,
		MarketTotal:   decimal.NewFromInt(1000),
		LoanAmount:    decimal.NewFromInt(400),
		BuybackAmount: decimal.RequireFromString("492.20"),
	}

	return entity.NewDeal(q, value.Owner{ID: "owner-1", PhoneVerified: true}, now)
}

func TestDealStatusNext(t *testing.T) {
	testCases := []struct {
		name    string
		from    entity.DealStatus
		event   entity.DealEvent
		want    entity.DealStatus
		wantErr bool
	}{
		{name: "pending activation", from: entity.DealStatusPending, event: entity.EventCustodyConfirmed, want: entity.DealStatusActive},
		{name: "pending cancellation", from: entity.DealStatusPending, event: entity.EventCancelled, want: entity.DealStatusCancelled},
		{name: "active buy-back", from: entity.DealStatusActive, event: entity.EventBuybackPaid, want: entity.DealStatusBuyback},
		{name: "active default", from: entity.DealStatusActive, event: entity.EventExpired, want: entity.DealStatusDefault},
		{name: "pending cannot default", from: entity.DealStatusPending, event: entity.EventExpired, wantErr: true},
		{name: "active cannot be cancelled", from: entity.DealStatusActive, event: entity.EventCancelled, wantErr: true},
		{name: "active cannot activate again", from: entity.DealStatusActive, event: entity.EventCustodyConfirmed, wantErr: true},
		{name: "buyback is terminal", from: entity.DealStatusBuyback, event: entity.EventExpired, wantErr: true},
		{name: "default is terminal", from: entity.DealStatusDefault, event: entity.EventBuybackPaid, wantErr: true},
		{name: "cancelled is terminal", from: entity.DealStatusCancelled, event: entity.EventCustodyConfirmed, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rq := require.New(t)

			got, err := tc.from.Next(tc.event)
			if tc.wantErr {
				rq.True(domain.IsCode(err, errcodes.InvalidTransition))
				rq.Equal(tc.from, got)
				return
			}

			rq.NoError(err)
			rq.Equal(tc.want, got)
		})
	}
}

func TestNewDealFreezesQuote(t *testing.T) {
	rq := require.New(t)

	d := newDeal(t)

	rq.NotEmpty(d.ID)
	rq.Equal(entity.DealStatusPending, d.Status)
	rq.Equal(entity.PayoutNone, d.PayoutState)
	rq.Equal(now.Add(14*24*time.Hour), d.OptionExpiry)
	rq.Equal("492.2", d.BuybackPrice.String())
	rq.Len(d.Items, 1)
}

func TestDealActivateClaimsPayout(t *testing.T) {
	rq := require.New(t)

	d := newDeal(t)
	rq.NoError(d.Activate(now.Add(time.Hour)))
	rq.Equal(entity.DealStatusActive, d.Status)
	rq.Equal(entity.PayoutClaimed, d.PayoutState)
	rq.Equal(entity.EventCustodyConfirmed, d.LastEvent())
	rq.NotNil(d.ActivatedAt)
	rq.Nil(d.ClosedAt)

	err := d.Activate(now.Add(2 * time.Hour))
	rq.True(domain.IsCode(err, errcodes.InvalidTransition))
}

func TestDealCompleteBuybackGuard(t *testing.T) {
	testCases := []struct {
		name    string
		paidAt  func(expiry time.Time) time.Time
		wantErr bool
	}{
		{name: "paid before expiry", paidAt: func(e time.Time) time.Time { return e.Add(-time.Second) }},
		{name: "paid exactly at expiry", paidAt: func(e time.Time) time.Time { return e }},
		{name: "paid after expiry", paidAt: func(e time.Time) time.Time { return e.Add(time.Second) }, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rq := require.New(t)

			d := newDeal(t)
			rq.NoError(d.Activate(now))

			handledAt := d.OptionExpiry.Add(time.Second)
			err := d.CompleteBuyback("pay-1", tc.paidAt(d.OptionExpiry), handledAt)
			if tc.wantErr {
				rq.True(domain.IsCode(err, errcodes.InvalidTransition))
				rq.Equal(entity.DealStatusActive, d.Status)
				return
			}

			rq.NoError(err)
			rq.Equal(entity.DealStatusBuyback, d.Status)
			rq.Equal("pay-1", d.BuybackPaymentID)
			rq.NotNil(d.ClosedAt)
		})
	}
}

func TestDealDefault(t *testing.T) {
	rq := require.New(t)

	d := newDeal(t)
	rq.NoError(d.Activate(now))

	err := d.Default(d.OptionExpiry)
	rq.True(domain.IsCode(err, errcodes.InvalidTransition))

	rq.NoError(d.Default(d.OptionExpiry.Add(time.Second)))
	rq.Equal(entity.DealStatusDefault, d.Status)
}

func TestDealPayoutRetry(t *testing.T) {
	rq := require.New(t)

	d := newDeal(t)
	rq.NoError(d.Activate(now))

	err := d.ClaimPayoutRetry(now)
	rq.True(domain.IsCode(err, errcodes.InvalidTransition))

	firstKey := d.PayoutKey()

	d.RecordPayoutFailure("gateway timeout", false, now)
	rq.Equal(entity.PayoutFailed, d.PayoutState)
	rq.Empty(d.PayoutID)

	rq.NoError(d.ClaimPayoutRetry(now))
	rq.Equal(entity.PayoutClaimed, d.PayoutState)
	rq.Equal(firstKey, d.PayoutKey(), "ambiguous failure must be retried with the same key")

	d.RecordPayoutFailure("insufficient_funds", true, now)
	rq.NoError(d.ClaimPayoutRetry(now))
	rq.NotEqual(firstKey, d.PayoutKey())

	d.RecordPayout("po-1", now)
	rq.Equal(entity.PayoutPaid, d.PayoutState)
	rq.Equal("po-1", d.PayoutID)
}

func TestParseTradeStatus(t *testing.T) {
	rq := require.New(t)

	st, err := entity.ParseTradeStatus("canceled")
	rq.NoError(err)
	rq.Equal(entity.TradeStatusCancelled, st)
	rq.False(st.Active())

	st, err = entity.ParseTradeStatus("SENT")
	rq.NoError(err)
	rq.True(st.Active())

	_, err = entity.ParseTradeStatus("LOST")
	rq.True(domain.IsCode(err, errcodes.ValidationError))
}
