package deal

import (
	"context"
	"log/slog"

	"cyberlombard/internal/domain"
	"cyberlombard/internal/domain/entity"
	"cyberlombard/internal/domain/value"
	"cyberlombard/pkg/errcodes"
	"cyberlombard/pkg/logx"
	"cyberlombard/pkg/metrics"
)

// ConfirmCustody активирует сделку после получения предметов и выплачивает
// займ. Повторное подтверждение уже активированной сделки ничего не делает.
// Выплату выполняет только тот вызов, который перевёл сделку в ACTIVE.
func (s *Service) ConfirmCustody(ctx context.Context, dealID string, items value.Items) (entity.Deal, error) {
	var (
		claimed bool
		from    entity.DealStatus
	)

	d, err := s.repo.Update(ctx, dealID, func(d *entity.Deal) error {
		claimed = false
		from = d.Status

		switch d.Status {
		case entity.DealStatusActive, entity.DealStatusBuyback, entity.DealStatusDefault:
			return nil
		}

		if !d.Items.Items().SameAssets(items) {
			return domain.NewError(errcodes.InvalidTransition, "transferred items do not match pledged items")
		}

		if err := d.Activate(s.clock.Now()); err != nil {
			return err
		}

		claimed = true

		return nil
	})
	if err != nil {
		return entity.Deal{}, err //nolint:wrapcheck
	}

	if !claimed {
		logger(ctx).Info("custody already confirmed",
			slog.String(logx.FieldDealID, d.ID), slog.String(logx.FieldDealStatus, string(d.Status)))
		return d, nil
	}

	s.countTransition(from, d.Status)
	logger(ctx).Info("deal activated", slog.String(logx.FieldDealID, d.ID))
	s.publish(ctx, EventActivated, d, "")

	d, err = s.pay(ctx, d)
	if err != nil && d.PayoutState == entity.PayoutFailed && s.retries != nil {
		if err := s.retries.SchedulePayoutRetry(ctx, d.ID); err != nil {
			logger(ctx).Error("payout retry was not scheduled", slog.String(logx.FieldDealID, d.ID), logx.Error(err))
		}
	}

	return d, nil
}

// RetryPayout повторяет выплату после неудачи. Ошибка шлюза возвращается
// вызывающему.
func (s *Service) RetryPayout(ctx context.Context, dealID string) (entity.Deal, error) {
	d, err := s.repo.Update(ctx, dealID, func(d *entity.Deal) error {
		return d.ClaimPayoutRetry(s.clock.Now())
	})
	if err != nil {
		return entity.Deal{}, err //nolint:wrapcheck
	}

	return s.pay(ctx, d)
}

// pay вызывается вне блокировки сделки. Состояние CLAIMED гарантирует,
// что параллельно выплату никто не выполняет.
func (s *Service) pay(ctx context.Context, d entity.Deal) (entity.Deal, error) {
	payout, payErr := s.payouts.Payout(ctx, entity.PayoutRequest{
		DealID:         d.ID,
		Amount:         d.LoanAmount,
		Destination:    d.Owner.PayoutDestination,
		Description:    "Займ по сделке " + d.ID,
		IdempotenceKey: d.PayoutKey(),
	})
	metrics.Payouts.WithLabelValues(metrics.Result(payErr)).Inc()

	rejected := payErr != nil && payout.Status == entity.PaymentCanceled

	// запись результата не должна зависеть от отмены исходного запроса
	recordCtx := context.WithoutCancel(ctx)

	updated, err := s.repo.Update(recordCtx, d.ID, func(d *entity.Deal) error {
		if d.PayoutState != entity.PayoutClaimed {
			return nil
		}

		now := s.clock.Now()
		if payErr != nil {
			d.RecordPayoutFailure(payErr.Error(), rejected, now)
		} else {
			d.RecordPayout(payout.ID, now)
		}

		return nil
	})
	if err != nil {
		logger(ctx).Error("payout result was not recorded",
			slog.String(logx.FieldDealID, d.ID),
			slog.String(logx.FieldPayoutID, payout.ID),
			logx.Error(err),
		)
		return d, err //nolint:wrapcheck
	}

	if payErr != nil {
		logger(ctx).Error("payout failed, deal stays active",
			slog.String(logx.FieldDealID, d.ID), logx.Error(payErr))
		s.publish(ctx, EventPayoutFailed, updated, payErr.Error())

		return updated, payErr
	}

	logger(ctx).Info("payout sent",
		slog.String(logx.FieldDealID, d.ID), slog.String(logx.FieldPayoutID, payout.ID))

	return updated, nil
}

func (s *Service) countTransition(from, to entity.DealStatus) {
	if from != to {
		metrics.DealTransitions.WithLabelValues(string(from), string(to)).Inc()
	}
}
