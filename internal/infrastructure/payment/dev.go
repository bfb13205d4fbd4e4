package payment

import (
	"context"
	"log/slog"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/rs/xid"

	"cyberlombard/internal/domain"
	"cyberlombard/internal/domain/entity"
	"cyberlombard/pkg/errcodes"
	"cyberlombard/pkg/logx"
)

// DevGateway заменяет шлюз, когда не заданы реквизиты магазина. Платёж
// считается оплаченным при первой проверке статуса.
type DevGateway struct {
	clock clock.Clock

	mu       sync.Mutex
	payments map[string]entity.Payment
	payouts  map[string]entity.Payout
}

func NewDevGateway(clk clock.Clock) *DevGateway {
	return &DevGateway{
		clock:    clk,
		payments: make(map[string]entity.Payment),
		payouts:  make(map[string]entity.Payout),
	}
}

func (g *DevGateway) CreatePayment(ctx context.Context, req entity.PaymentRequest) (entity.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p := entity.Payment{
		ID:              "dev_payment_" + xid.New().String(),
		DealID:          req.DealID,
		Status:          entity.PaymentPending,
		Amount:          req.Amount,
		ConfirmationURL: req.ReturnURL + "?payment=success",
		CreatedAt:       g.clock.Now(),
	}
	g.payments[p.ID] = p

	logger(ctx).Warn("dev payment created", slog.String(logx.FieldDealID, req.DealID), slog.String(logx.FieldPaymentID, p.ID))

	return p, nil
}

func (g *DevGateway) GetPayment(_ context.Context, paymentID string) (entity.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.payments[paymentID]
	if !ok {
		return entity.Payment{}, domain.NewErrorf(errcodes.NotFound, "payment %s not found", paymentID)
	}

	if p.Status == entity.PaymentPending {
		now := g.clock.Now()
		p.Status = entity.PaymentSucceeded
		p.PaidAt = &now
		g.payments[paymentID] = p
	}

	return p, nil
}

func (g *DevGateway) Payout(ctx context.Context, req entity.PayoutRequest) (entity.Payout, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if p, ok := g.payouts[req.IdempotenceKey]; ok {
		return p, nil
	}

	p := entity.Payout{ID: "dev_payout_" + xid.New().String(), Status: entity.PaymentSucceeded}
	g.payouts[req.IdempotenceKey] = p

	logger(ctx).Warn("dev payout sent",
		slog.String(logx.FieldDealID, req.DealID),
		slog.String(logx.FieldPayoutID, p.ID),
		slog.String("amount", req.Amount.String()),
	)

	return p, nil
}
