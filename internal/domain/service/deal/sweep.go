package deal

import (
	"context"
	"log/slog"
	"time"

	"cyberlombard/internal/domain/entity"
	"cyberlombard/pkg/logx"
	"cyberlombard/pkg/metrics"
)

type sweepOutcome string

const (
	outcomeDefaulted sweepOutcome = "defaulted"
	outcomeBoughtOut sweepOutcome = "bought_back"
	outcomeSkipped   sweepOutcome = "skipped"
	outcomeFailed    sweepOutcome = "failed"
)

// SweepResult итог одного прохода по просроченным сделкам.
type SweepResult struct {
	Defaulted  int
	BoughtBack int
	Skipped    int
	Failed     int
}

func (r *SweepResult) add(o sweepOutcome) {
	switch o {
	case outcomeDefaulted:
		r.Defaulted++
	case outcomeBoughtOut:
		r.BoughtBack++
	case outcomeSkipped:
		r.Skipped++
	case outcomeFailed:
		r.Failed++
	}
}

// Sweep переводит в DEFAULT все ACTIVE сделки с option_expiry < now.
// Каждая сделка обрабатывается отдельным переходом: ошибка по одной не
// прерывает остальные. Повторный проход ничего не меняет.
//
// Сделка с созданным платежом выкупа сначала сверяется со шлюзом: платёж,
// оплаченный до истечения опциона, завершает выкуп, а ожидающий платёж
// откладывает дефолт на SettlementGrace.
func (s *Service) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	var (
		result SweepResult
		after  entity.ExpiryCursor
	)

	for {
		deals, err := s.repo.ListExpired(ctx, now, after, s.cfg.BatchSize)
		if err != nil {
			return result, err //nolint:wrapcheck
		}

		for _, d := range deals {
			o := s.expire(ctx, d, now)
			metrics.SweptDeals.WithLabelValues(string(o)).Inc()
			result.add(o)
		}

		// отложенные и неудачные сделки остаются позади курсора и не
		// задерживают следующие страницы
		if len(deals) == 0 || len(deals) < s.cfg.BatchSize {
			break
		}
		after = deals[len(deals)-1].ExpiryCursor()
	}

	if result != (SweepResult{}) {
		logger(ctx).Info("expiry sweep finished",
			slog.Int("defaulted", result.Defaulted),
			slog.Int("bought-back", result.BoughtBack),
			slog.Int("skipped", result.Skipped),
			slog.Int("failed", result.Failed),
		)
	}

	return result, nil
}

func (s *Service) expire(ctx context.Context, d entity.Deal, now time.Time) sweepOutcome {
	log := logger(ctx).With(slog.String(logx.FieldDealID, d.ID))

	var payment *entity.Payment
	if d.BuybackPaymentID != "" {
		p, err := s.payments.GetPayment(ctx, d.BuybackPaymentID)
		if err != nil {
			log.Warn("buy-back payment status is unknown", slog.String(logx.FieldPaymentID, d.BuybackPaymentID), logx.Error(err))
		} else {
			payment = &p
		}
	}

	var (
		outcome sweepOutcome
		from    entity.DealStatus
	)

	updated, err := s.repo.Update(ctx, d.ID, func(cur *entity.Deal) error {
		outcome = outcomeSkipped
		from = cur.Status

		if cur.Status != entity.DealStatusActive || !now.After(cur.OptionExpiry) {
			return nil
		}

		if cur.BuybackPaymentID != "" {
			if cur.BuybackPaymentID != d.BuybackPaymentID {
				return nil
			}

			if payment != nil && payment.Status == entity.PaymentSucceeded {
				paidAt := s.paidAt(*payment)
				if !paidAt.After(cur.OptionExpiry) && covers(*payment, cur.BuybackPrice) {
					if err := cur.CompleteBuyback(payment.ID, paidAt, now); err != nil {
						return err
					}
					outcome = outcomeBoughtOut
					return nil
				}
			}

			settling := payment == nil || !payment.Status.Final()
			if settling && !now.After(cur.OptionExpiry.Add(s.cfg.SettlementGrace)) {
				return nil
			}
		}

		if err := cur.Default(now); err != nil {
			return err
		}
		outcome = outcomeDefaulted

		return nil
	})
	if err != nil {
		log.Error("deal was not expired", logx.Error(err))
		return outcomeFailed
	}

	switch outcome {
	case outcomeDefaulted:
		s.countTransition(from, updated.Status)
		log.Info("deal defaulted")
		s.publish(ctx, EventDefaulted, updated, "")
	case outcomeBoughtOut:
		s.completed(ctx, from, updated)
	}

	return outcome
}

// CancelStale отменяет PENDING сделки, предметы по которым не поступили
// за TradeTimeout.
func (s *Service) CancelStale(ctx context.Context, now time.Time) (int, error) {
	if s.cfg.TradeTimeout <= 0 {
		return 0, nil
	}

	deals, err := s.repo.ListStalePending(ctx, now.Add(-s.cfg.TradeTimeout), s.cfg.BatchSize)
	if err != nil {
		return 0, err //nolint:wrapcheck
	}

	cancelled := 0
	for _, d := range deals {
		if _, err := s.cancel(ctx, d.ID, "incoming transfer timed out"); err != nil {
			logger(ctx).Error("stale deal was not cancelled", slog.String(logx.FieldDealID, d.ID), logx.Error(err))
			continue
		}
		cancelled++
	}

	return cancelled, nil
}

// NotifyExpiring предупреждает операторов о сделках, опцион по которым
// истекает в ближайшие ExpiryNotice. Каждая сделка попадает в уведомления
// один раз.
func (s *Service) NotifyExpiring(ctx context.Context, now time.Time) (int, error) {
	if s.cfg.ExpiryNotice <= 0 {
		return 0, nil
	}

	deals, err := s.repo.ListExpiring(ctx, now, now.Add(s.cfg.ExpiryNotice), s.cfg.BatchSize)
	if err != nil {
		return 0, err //nolint:wrapcheck
	}

	notified := 0
	for _, d := range deals {
		var marked bool

		updated, err := s.repo.Update(ctx, d.ID, func(cur *entity.Deal) error {
			marked = cur.MarkExpiryNotified(now)
			return nil
		})
		if err != nil {
			logger(ctx).Error("expiry notice was not recorded", slog.String(logx.FieldDealID, d.ID), logx.Error(err))
			continue
		}

		if marked {
			s.publish(ctx, EventExpiring, updated, updated.OptionExpiry.UTC().Format(time.RFC3339))
			notified++
		}
	}

	return notified, nil
}
