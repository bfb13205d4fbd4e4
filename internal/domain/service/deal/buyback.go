package deal

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"cyberlombard/internal/domain"
	"cyberlombard/internal/domain/entity"
	"cyberlombard/pkg/errcodes"
	"cyberlombard/pkg/logx"
)

// InitBuyback создаёт платёж на выкупную цену. Если по сделке уже есть
// неоплаченный платёж, возвращается он.
func (s *Service) InitBuyback(ctx context.Context, dealID, returnURL string) (entity.Payment, error) {
	d, err := s.repo.Get(ctx, dealID)
	if err != nil {
		return entity.Payment{}, err //nolint:wrapcheck
	}

	if err := s.buybackOpen(d); err != nil {
		return entity.Payment{}, err
	}

	if d.BuybackPaymentID != "" {
		existing, err := s.payments.GetPayment(ctx, d.BuybackPaymentID)
		if err != nil {
			return entity.Payment{}, err //nolint:wrapcheck
		}

		switch existing.Status {
		case entity.PaymentSucceeded:
			if _, err := s.ConfirmBuybackPayment(ctx, d.ID, existing.ID); err != nil {
				return entity.Payment{}, err
			}
			return existing, nil
		case entity.PaymentPending, entity.PaymentWaitingForCapture:
			if existing.ConfirmationURL != "" {
				return existing, nil
			}
		}
	}

	payment, err := s.payments.CreatePayment(ctx, entity.PaymentRequest{
		DealID:      d.ID,
		Amount:      d.BuybackPrice,
		Description: "Выкуп предметов по сделке " + d.ID,
		ReturnURL:   returnURL,
	})
	if err != nil {
		return entity.Payment{}, err //nolint:wrapcheck
	}

	if _, err := s.repo.Update(ctx, d.ID, func(d *entity.Deal) error {
		return d.AttachBuybackPayment(payment.ID, s.clock.Now())
	}); err != nil {
		return entity.Payment{}, err //nolint:wrapcheck
	}

	logger(ctx).Info("buy-back initiated",
		slog.String(logx.FieldDealID, d.ID),
		slog.String(logx.FieldPaymentID, payment.ID),
		slog.String("amount", d.BuybackPrice.String()),
	)

	return payment, nil
}

func (s *Service) buybackOpen(d entity.Deal) error {
	if d.Status != entity.DealStatusActive {
		return domain.NewErrorf(errcodes.InvalidTransition, "buy-back is not available for %s deal", d.Status)
	}
	if s.clock.Now().After(d.OptionExpiry) {
		return domain.NewError(errcodes.InvalidTransition, "option has expired")
	}
	return nil
}

// ConfirmBuybackPayment закрывает сделку выкупом. Статус платежа
// проверяется у шлюза, а срок опциона сравнивается с моментом оплаты, а
// не с моментом обработки уведомления.
func (s *Service) ConfirmBuybackPayment(ctx context.Context, dealID, paymentID string) (entity.Deal, error) {
	payment, err := s.payments.GetPayment(ctx, paymentID)
	if err != nil {
		return entity.Deal{}, err //nolint:wrapcheck
	}

	if payment.DealID != "" && payment.DealID != dealID {
		return entity.Deal{}, domain.NewErrorf(errcodes.InvalidTransition, "payment %s belongs to another deal", paymentID)
	}

	if payment.Status != entity.PaymentSucceeded {
		return entity.Deal{}, domain.NewErrorf(errcodes.InvalidTransition, "payment %s is %s", paymentID, payment.Status)
	}

	var (
		completed bool
		from      entity.DealStatus
	)

	d, err := s.repo.Update(ctx, dealID, func(d *entity.Deal) error {
		completed = false
		from = d.Status

		if d.Status == entity.DealStatusBuyback && d.BuybackPaymentID == paymentID {
			return nil
		}

		if !covers(payment, d.BuybackPrice) {
			return domain.NewErrorf(errcodes.InvalidTransition,
				"payment amount %s is less than buy-back price %s", payment.Amount, d.BuybackPrice)
		}

		if err := d.CompleteBuyback(paymentID, s.paidAt(payment), s.clock.Now()); err != nil {
			return err
		}

		completed = true

		return nil
	})
	if err != nil {
		return entity.Deal{}, err //nolint:wrapcheck
	}

	if !completed {
		return d, nil
	}

	s.completed(ctx, from, d)

	return d, nil
}

// completed выполняет побочные эффекты выкупа после фиксации перехода.
func (s *Service) completed(ctx context.Context, from entity.DealStatus, d entity.Deal) {
	s.countTransition(from, d.Status)
	logger(ctx).Info("deal bought back",
		slog.String(logx.FieldDealID, d.ID), slog.String(logx.FieldPaymentID, d.BuybackPaymentID))
	s.publish(ctx, EventBuyback, d, "")

	if _, err := s.sendReturn(ctx, d); err != nil {
		logger(ctx).Error("return transfer was not requested", slog.String(logx.FieldDealID, d.ID), logx.Error(err))
		s.publish(ctx, EventReturnFailed, d, err.Error())

		if s.retries != nil {
			if err := s.retries.ScheduleReturnRetry(ctx, d.ID); err != nil {
				logger(ctx).Error("return retry was not scheduled", slog.String(logx.FieldDealID, d.ID), logx.Error(err))
			}
		}
	}
}

// RetryReturn повторно запрашивает возврат предметов выкупленной сделки.
func (s *Service) RetryReturn(ctx context.Context, dealID string) (entity.Trade, error) {
	d, err := s.repo.Get(ctx, dealID)
	if err != nil {
		return entity.Trade{}, err //nolint:wrapcheck
	}

	if d.Status != entity.DealStatusBuyback {
		return entity.Trade{}, domain.NewErrorf(errcodes.InvalidTransition, "items are returned only for BUYBACK deal, got %s", d.Status)
	}

	for _, t := range d.Trades {
		if t.Direction != entity.TradeOutgoing {
			continue
		}
		if t.Status.Active() {
			return entity.Trade{}, domain.NewErrorf(errcodes.InvalidTransition, "return trade %s is still active", t.OfferID)
		}
		if t.Status == entity.TradeStatusAccepted {
			return entity.Trade{}, domain.NewError(errcodes.InvalidTransition, "items are already returned")
		}
	}

	return s.sendReturn(ctx, d)
}

func (s *Service) sendReturn(ctx context.Context, d entity.Deal) (entity.Trade, error) {
	items := d.Items.Items()

	offer, err := s.trading.RequestReturn(ctx, entity.TradeRequest{
		DealID:         d.ID,
		PartnerSteamID: d.Owner.SteamID,
		TradeURL:       d.Owner.TradeURL,
		Items:          items.AssetIDs(),
	})
	if err != nil {
		return entity.Trade{}, err //nolint:wrapcheck
	}

	return s.recordTrade(ctx, d.ID, entity.TradeOutgoing, offer, items)
}

func (s *Service) paidAt(p entity.Payment) time.Time {
	if p.PaidAt != nil {
		return *p.PaidAt
	}
	return s.clock.Now()
}

// covers платёж покрывает выкупную цену. Шлюз может не вернуть сумму,
// тогда проверка пропускается.
func covers(p entity.Payment, price decimal.Decimal) bool {
	return p.Amount.IsZero() || p.Amount.GreaterThanOrEqual(price)
}
