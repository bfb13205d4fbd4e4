package deal

import (
	"context"
	"log/slog"

	"cyberlombard/internal/domain"
	"cyberlombard/internal/domain/entity"
	"cyberlombard/internal/domain/value"
	"cyberlombard/pkg/errcodes"
	"cyberlombard/pkg/logx"
)

// TradeStatusUpdate сообщение торгового агента об итоге обмена.
type TradeStatusUpdate struct {
	OfferID  string
	OfferURL string
	DealID   string
	Status   string
	Items    value.Items
}

// HandleTradeStatus фиксирует итог трейда. Принятый входящий трейд
// подтверждает получение предметов. Первый терминальный статус трейда
// окончательный, повторные сообщения обрабатываются как дубликаты.
func (s *Service) HandleTradeStatus(ctx context.Context, upd TradeStatusUpdate) (entity.Deal, error) {
	status, err := entity.ParseTradeStatus(upd.Status)
	if err != nil {
		return entity.Deal{}, err
	}

	trade, err := s.tradeForUpdate(ctx, upd)
	if err != nil {
		return entity.Deal{}, err
	}

	if status.Active() {
		return s.repo.Get(ctx, trade.DealID) //nolint:wrapcheck
	}

	closed, changed, err := s.repo.CloseTrade(ctx, trade.OfferID, status, s.clock.Now())
	if err != nil {
		return entity.Deal{}, err //nolint:wrapcheck
	}

	log := logger(ctx).With(
		slog.String(logx.FieldDealID, closed.DealID),
		slog.String(logx.FieldOfferID, closed.OfferID),
		slog.String("trade-status", string(closed.Status)),
	)

	if !changed && closed.Status != status {
		log.Warn("trade already closed with another status", slog.String("reported", string(status)))
	}

	if closed.Direction == entity.TradeIncoming && status == entity.TradeStatusAccepted &&
		closed.Status != entity.TradeStatusAccepted {
		return entity.Deal{}, s.orphanCustody(ctx, closed, "trade accepted after it was closed as "+string(closed.Status))
	}

	switch {
	case closed.Direction == entity.TradeIncoming && closed.Status == entity.TradeStatusAccepted:
		items := upd.Items
		if len(items) == 0 {
			items = closed.Items
		}
		d, err := s.ConfirmCustody(ctx, closed.DealID, items)
		if err != nil && domain.IsCode(err, errcodes.InvalidTransition) {
			return entity.Deal{}, s.orphanCustody(ctx, closed, domain.Message(err))
		}
		return d, err

	case closed.Direction == entity.TradeIncoming:
		d, err := s.repo.Get(ctx, closed.DealID)
		if err != nil {
			return entity.Deal{}, err //nolint:wrapcheck
		}
		if changed {
			log.Info("incoming trade failed, deal stays pending")
			s.publish(ctx, EventTradeFailed, d, string(closed.Status))
		}
		return d, nil

	case closed.Status == entity.TradeStatusAccepted:
		d, err := s.repo.Get(ctx, closed.DealID)
		if err != nil {
			return entity.Deal{}, err //nolint:wrapcheck
		}
		if changed {
			log.Info("pledged items returned to owner")
			s.publish(ctx, EventReturned, d, "")
		}
		return d, nil

	default:
		d, err := s.repo.Get(ctx, closed.DealID)
		if err != nil {
			return entity.Deal{}, err //nolint:wrapcheck
		}
		if changed {
			log.Warn("return trade failed, manual retry required")
			s.publish(ctx, EventReturnFailed, d, string(closed.Status))
		}
		return d, nil
	}
}

// orphanCustody сообщает операторам, что предметы получены по сделке,
// которая уже не может их принять. Предметы возвращаются вручную.
func (s *Service) orphanCustody(ctx context.Context, trade entity.Trade, reason string) error {
	d, err := s.repo.Get(ctx, trade.DealID)
	if err != nil {
		return err //nolint:wrapcheck
	}

	logger(ctx).Error("items received for a deal that cannot accept them",
		slog.String(logx.FieldDealID, d.ID),
		slog.String(logx.FieldOfferID, trade.OfferID),
		slog.String(logx.FieldDealStatus, string(d.Status)),
		slog.String("reason", reason),
	)
	s.publish(ctx, EventCustodyOrphaned, d, trade.OfferID)

	return domain.NewErrorf(errcodes.InvalidTransition,
		"deal %s is %s, items of offer %s must be returned manually", d.ID, d.Status, trade.OfferID)
}

// tradeForUpdate находит трейд по offer id. Агент может сообщить об обмене,
// созданном в обход запроса; такой трейд регистрируется как входящий для
// PENDING сделки.
func (s *Service) tradeForUpdate(ctx context.Context, upd TradeStatusUpdate) (entity.Trade, error) {
	trade, err := s.repo.TradeByOffer(ctx, upd.OfferID)
	if err == nil {
		if upd.DealID != "" && upd.DealID != trade.DealID {
			return entity.Trade{}, domain.NewErrorf(errcodes.InvalidTransition,
				"trade %s belongs to deal %s, not %s", upd.OfferID, trade.DealID, upd.DealID)
		}
		return trade, nil
	}

	if !domain.IsCode(err, errcodes.TradeNotFound) || upd.DealID == "" {
		return entity.Trade{}, err
	}

	d, err := s.repo.Get(ctx, upd.DealID)
	if err != nil {
		return entity.Trade{}, err //nolint:wrapcheck
	}

	if d.Status != entity.DealStatusPending {
		return entity.Trade{}, domain.NewErrorf(errcodes.TradeNotFound, "trade offer %s not found", upd.OfferID)
	}

	return s.recordTrade(ctx, d.ID, entity.TradeIncoming,
		entity.TradeOffer{OfferID: upd.OfferID, OfferURL: upd.OfferURL, Status: entity.TradeStatusSent},
		d.Items.Items())
}
