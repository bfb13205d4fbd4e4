package trading

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rs/xid"

	"cyberlombard/internal/domain"
	"cyberlombard/internal/domain/entity"
	"cyberlombard/pkg/errcodes"
	"cyberlombard/pkg/logx"
)

// DevAgent заменяет торгового агента, когда не задан его адрес. Обмены
// остаются в статусе SENT, итог сообщается через webhook вручную.
type DevAgent struct {
	mu     sync.Mutex
	offers map[string]entity.TradeOffer
}

func NewDevAgent() *DevAgent {
	return &DevAgent{offers: make(map[string]entity.TradeOffer)}
}

func (a *DevAgent) RequestIncoming(ctx context.Context, req entity.TradeRequest) (entity.TradeOffer, error) {
	return a.offer(ctx, "incoming", req)
}

func (a *DevAgent) RequestReturn(ctx context.Context, req entity.TradeRequest) (entity.TradeOffer, error) {
	return a.offer(ctx, "return", req)
}

func (a *DevAgent) Status(_ context.Context, offerID string) (entity.TradeOffer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	o, ok := a.offers[offerID]
	if !ok {
		return entity.TradeOffer{}, domain.NewErrorf(errcodes.TradeNotFound, "trade offer %s not found", offerID)
	}

	return o, nil
}

func (a *DevAgent) offer(ctx context.Context, kind string, req entity.TradeRequest) (entity.TradeOffer, error) {
	if len(req.Items) == 0 {
		return entity.TradeOffer{}, domain.NewError(errcodes.ValidationError, "trade without items")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	id := "dev_offer_" + xid.New().String()
	o := entity.TradeOffer{
		OfferID:  id,
		OfferURL: "https://steamcommunity.com/tradeoffer/" + id,
		Status:   entity.TradeStatusSent,
	}
	a.offers[id] = o

	logger(ctx).Warn("dev trade offer created",
		slog.String(logx.FieldDealID, req.DealID),
		slog.String(logx.FieldOfferID, id),
		slog.String("kind", kind),
	)

	return o, nil
}
