package server

import (
	"fmt"

	"git.appkode.ru/pub/go/failure"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"cyberlombard/internal/domain/entity"
	"cyberlombard/internal/domain/value"
	"cyberlombard/pkg/errcodes"
	"cyberlombard/pkg/rest"
)

func money(d decimal.Decimal) string {
	return value.RoundMoney(d).StringFixed(value.MoneyPlaces)
}

func newDomainItems(items []rest.Item) value.Items {
	return lo.Map(items, func(it rest.Item, _ int) value.Item {
		return value.Item{
			AssetID:        it.AssetID,
			MarketHashName: it.MarketHashName,
			Rarity:         it.Rarity,
		}
	})
}

func newRESTItem(it value.Item) rest.Item {
	return rest.Item{
		AssetID:        it.AssetID,
		MarketHashName: it.MarketHashName,
		Rarity:         it.Rarity,
	}
}

func newRESTPledged(items entity.PledgedItems) []rest.ItemValuation {
	return lo.Map(items, func(it entity.PledgedItem, _ int) rest.ItemValuation {
		return rest.ItemValuation{
			Item:            newRESTItem(it.Item),
			AcceptancePrice: money(it.AcceptancePrice),
			LoanPrice:       money(it.LoanPrice),
			Acceptable:      true,
		}
	})
}

func newRESTQuote(q entity.Quote) rest.Quote {
	rejected := lo.Map(q.Rejected, func(it entity.ValuedItem, _ int) rest.ItemValuation {
		return rest.ItemValuation{
			Item:            newRESTItem(it.Item),
			AcceptancePrice: money(it.Valuation.AcceptancePrice),
			Source:          string(it.Valuation.Source),
			Acceptable:      it.Valuation.Acceptable,
		}
	})

	return rest.Quote{
		Items:         newRESTPledged(q.Items),
		Rejected:      rejected,
		TermDays:      q.TermDays,
		MarketTotal:   money(q.MarketTotal),
		LoanAmount:    money(q.LoanAmount),
		BuybackAmount: money(q.BuybackAmount),
		InterestRate:  q.Rate.Interest.String(),
		PremiumRate:   q.Rate.Premium.String(),
		Breakdown: rest.Breakdown{
			InterestAmount:    money(q.Breakdown.InterestAmount),
			PremiumAmount:     money(q.Breakdown.PremiumAmount),
			Profit:            money(q.Breakdown.Profit),
			MarginPercent:     money(q.Breakdown.MarginPercent),
			AnnualRatePercent: money(q.Breakdown.AnnualRatePercent),
		},
		QuotedAt:  q.QuotedAt,
		ExpiresAt: q.ExpiresAt,
	}
}

func newRESTTrade(t entity.Trade) rest.Trade {
	return rest.Trade{
		OfferID:   t.OfferID,
		OfferURL:  t.OfferURL,
		Direction: string(t.Direction),
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func newRESTDeal(d entity.Deal) rest.Deal {
	return rest.Deal{
		ID:           d.ID,
		OwnerID:      d.Owner.ID,
		Status:       d.Status.String(),
		Items:        newRESTPledged(d.Items),
		TermDays:     d.TermDays,
		MarketTotal:  money(d.MarketTotal),
		LoanAmount:   money(d.LoanAmount),
		BuybackPrice: money(d.BuybackPrice),
		OptionExpiry: d.OptionExpiry,
		Payout: rest.Payout{
			State: string(d.PayoutState),
			ID:    d.PayoutID,
			Error: d.PayoutError,
		},
		BuybackPaymentID: d.BuybackPaymentID,
		BuybackPaidAt:    d.BuybackPaidAt,
		Trades:           lo.Map(d.Trades, func(t entity.Trade, _ int) rest.Trade { return newRESTTrade(t) }),
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
		ActivatedAt:      d.ActivatedAt,
		ClosedAt:         d.ClosedAt,
	}
}

func newRESTDeals(deals []entity.Deal) []rest.Deal {
	return lo.Map(deals, func(d entity.Deal, _ int) rest.Deal { return newRESTDeal(d) })
}

func newRESTHistory(changes []entity.StatusChange) []rest.StatusChange {
	return lo.Map(changes, func(c entity.StatusChange, _ int) rest.StatusChange {
		return rest.StatusChange{
			From:   string(c.From),
			To:     string(c.To),
			Reason: c.Reason,
			At:     c.At,
		}
	})
}

func newRESTStats(s entity.DealStats) rest.Stats {
	byStatus := make(map[string]int, len(entity.DealStatuses))
	for _, status := range entity.DealStatuses {
		byStatus[status.String()] = s.ByStatus[status]
	}

	return rest.Stats{
		ByStatus:       byStatus,
		Total:          s.Total,
		LoanedVolume:   money(s.LoanedVolume),
		BuybackVolume:  money(s.BuybackVolume),
		DefaultedValue: money(s.DefaultedValue),
	}
}

func newRESTPayment(p entity.Payment) rest.BuybackPayment {
	return rest.BuybackPayment{
		PaymentID:       p.ID,
		ConfirmationURL: p.ConfirmationURL,
		Amount:          money(p.Amount),
		Status:          string(p.Status),
	}
}

func newDomainOwner(o rest.Owner) value.Owner {
	return value.Owner{
		ID:                o.ID,
		SteamID:           o.SteamID,
		TradeURL:          o.TradeURL,
		PayoutDestination: o.PayoutDestination,
		PhoneVerified:     o.PhoneVerified,
		PassportVerified:  o.PassportVerified,
	}
}

func parseAmount(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Decimal{}, failure.NewInvalidArgumentError(
			fmt.Sprintf("invalid %s %q", field, s),
			failure.WithCode(errcodes.ValidationError),
			failure.WithDescription(field+" must be a non-negative decimal"),
		)
	}

	return d, nil
}
