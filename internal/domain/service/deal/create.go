package deal

import (
	"context"
	"log/slog"

	"github.com/rs/xid"
	"github.com/shopspring/decimal"

	"cyberlombard/internal/domain"
	"cyberlombard/internal/domain/entity"
	"cyberlombard/internal/domain/value"
	"cyberlombard/pkg/errcodes"
	"cyberlombard/pkg/logx"
)

// CreateRequest котировка, которую клиент показал владельцу и просит
// зафиксировать.
type CreateRequest struct {
	Items         value.Items
	TermDays      int
	LoanAmount    decimal.Decimal
	BuybackAmount decimal.Decimal
	Owner         value.Owner
}

// Create пересчитывает котировку, сверяет её с клиентской и фиксирует
// сделку в PENDING. Затем запрашивает у агента передачу предметов; если
// агент недоступен, сделка остаётся PENDING и запрос можно повторить.
func (s *Service) Create(ctx context.Context, req CreateRequest) (entity.Deal, error) {
	if !req.Owner.Verified() {
		return entity.Deal{}, domain.NewError(errcodes.OwnerNotVerified, "owner identity is not verified")
	}

	q, err := s.pricer.Quote(ctx, req.Items, req.TermDays)
	if err != nil {
		return entity.Deal{}, err //nolint:wrapcheck
	}

	if !q.LoanAmount.Equal(value.RoundMoney(req.LoanAmount)) || !q.BuybackAmount.Equal(value.RoundMoney(req.BuybackAmount)) {
		return entity.Deal{}, domain.NewErrorf(errcodes.QuoteMismatch,
			"quote changed: loan %s, buy-back %s",
			q.LoanAmount.StringFixed(value.MoneyPlaces), q.BuybackAmount.StringFixed(value.MoneyPlaces))
	}

	if !req.Owner.KYCPassed(q.LoanAmount, s.cfg.KYCThreshold) {
		return entity.Deal{}, domain.NewError(errcodes.KYCRequired, "passport verification is required for this amount")
	}

	d := entity.NewDeal(q, req.Owner, s.clock.Now())
	if err := s.repo.Create(ctx, d); err != nil {
		return entity.Deal{}, err //nolint:wrapcheck
	}

	s.countTransition("NONE", entity.DealStatusPending)
	logger(ctx).Info("deal created",
		slog.String(logx.FieldDealID, d.ID),
		slog.String(logx.FieldOwnerID, d.Owner.ID),
		slog.String("loan-amount", d.LoanAmount.String()),
		slog.Int("term-days", d.TermDays),
	)
	s.publish(ctx, EventCreated, d, "")

	trade, err := s.sendIncoming(ctx, d)
	if err != nil {
		logger(ctx).Warn("incoming transfer was not requested, deal stays pending",
			slog.String(logx.FieldDealID, d.ID), logx.Error(err))
		s.publish(ctx, EventTradeFailed, d, err.Error())
		return d, nil
	}

	d.Trades = append(d.Trades, trade)

	return d, nil
}

// RequestTransfer повторно запрашивает передачу предметов для PENDING
// сделки без активного входящего трейда.
func (s *Service) RequestTransfer(ctx context.Context, dealID string) (entity.Trade, error) {
	d, err := s.repo.Get(ctx, dealID)
	if err != nil {
		return entity.Trade{}, err //nolint:wrapcheck
	}

	if d.Status != entity.DealStatusPending {
		return entity.Trade{}, domain.NewErrorf(errcodes.InvalidTransition, "transfer can be requested only for PENDING deal, got %s", d.Status)
	}

	if t, ok := d.ActiveTrade(entity.TradeIncoming); ok {
		return entity.Trade{}, domain.NewErrorf(errcodes.InvalidTransition, "incoming trade %s is still active", t.OfferID)
	}

	return s.sendIncoming(ctx, d)
}

func (s *Service) sendIncoming(ctx context.Context, d entity.Deal) (entity.Trade, error) {
	items := d.Items.Items()

	offer, err := s.trading.RequestIncoming(ctx, entity.TradeRequest{
		DealID:         d.ID,
		PartnerSteamID: d.Owner.SteamID,
		TradeURL:       d.Owner.TradeURL,
		Items:          items.AssetIDs(),
	})
	if err != nil {
		return entity.Trade{}, err //nolint:wrapcheck
	}

	return s.recordTrade(ctx, d.ID, entity.TradeIncoming, offer, items)
}

func (s *Service) recordTrade(
	ctx context.Context,
	dealID string,
	direction entity.TradeDirection,
	offer entity.TradeOffer,
	items value.Items,
) (entity.Trade, error) {
	now := s.clock.Now()
	status := offer.Status
	if status == "" {
		status = entity.TradeStatusSent
	}

	t := entity.Trade{
		ID:        xid.New().String(),
		DealID:    dealID,
		OfferID:   offer.OfferID,
		OfferURL:  offer.OfferURL,
		Direction: direction,
		Status:    status,
		Items:     items,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.CreateTrade(ctx, t); err != nil {
		return entity.Trade{}, err //nolint:wrapcheck
	}

	logger(ctx).Info("trade recorded",
		slog.String(logx.FieldDealID, dealID),
		slog.String(logx.FieldOfferID, t.OfferID),
		slog.String("direction", string(direction)),
	)

	return t, nil
}
