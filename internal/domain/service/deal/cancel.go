package deal

import (
	"context"
	"log/slog"

	"cyberlombard/internal/domain/entity"
	"cyberlombard/pkg/logx"
)

// Cancel отменяет сделку, по которой предметы ещё не получены.
func (s *Service) Cancel(ctx context.Context, dealID string) (entity.Deal, error) {
	return s.cancel(ctx, dealID, "cancelled by request")
}

func (s *Service) cancel(ctx context.Context, dealID, reason string) (entity.Deal, error) {
	var from entity.DealStatus

	d, err := s.repo.Update(ctx, dealID, func(d *entity.Deal) error {
		from = d.Status
		return d.Cancel(s.clock.Now())
	})
	if err != nil {
		return entity.Deal{}, err //nolint:wrapcheck
	}

	s.countTransition(from, d.Status)

	if t, ok := d.ActiveTrade(entity.TradeIncoming); ok {
		if _, _, err := s.repo.CloseTrade(ctx, t.OfferID, entity.TradeStatusCancelled, s.clock.Now()); err != nil {
			logger(ctx).Warn("incoming trade was not closed", slog.String(logx.FieldOfferID, t.OfferID), logx.Error(err))
		}
	}

	logger(ctx).Info("deal cancelled", slog.String(logx.FieldDealID, d.ID), slog.String("reason", reason))
	s.publish(ctx, EventCancelled, d, reason)

	return d, nil
}
