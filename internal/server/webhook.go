package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"git.appkode.ru/pub/go/failure"

	"cyberlombard/internal/domain/entity"
	"cyberlombard/internal/domain/service/deal"
	"cyberlombard/pkg/errcodes"
	"cyberlombard/pkg/httpx/reply"
	"cyberlombard/pkg/httpx/req"
	"cyberlombard/pkg/logx"
	"cyberlombard/pkg/rest"
)

const paymentSucceededEvent = "payment.succeeded"

type webhookService interface {
	HandleTradeStatus(ctx context.Context, upd deal.TradeStatusUpdate) (entity.Deal, error)
	ConfirmBuybackPayment(ctx context.Context, dealID, paymentID string) (entity.Deal, error)
}

type WebhookServer struct {
	webhookService webhookService
}

func NewWebhookServer(webhookService webhookService) WebhookServer {
	return WebhookServer{
		webhookService: webhookService,
	}
}

func (s WebhookServer) postV1TradeWebhook(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	var request rest.TradeStatusWebhook

	if err := req.Read(r, &request); err != nil {
		return fmt.Errorf("req.Read: %w", err)
	}

	d, err := s.webhookService.HandleTradeStatus(ctx, deal.TradeStatusUpdate{
		OfferID:  r.PathValue("offerID"),
		OfferURL: request.OfferURL,
		DealID:   request.DealID,
		Status:   request.Status,
		Items:    newDomainItems(request.Items),
	})
	if err != nil {
		return fmt.Errorf("webhookService.HandleTradeStatus: %w", err)
	}

	reply.JSON(ctx, w, http.StatusOK, newRESTDeal(d))

	return nil
}

// postV1PaymentWebhook принимает уведомления шлюза. Статус платежа всё
// равно перепроверяется у шлюза, тело уведомления используется только для
// поиска сделки.
func (s WebhookServer) postV1PaymentWebhook(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	var request rest.PaymentWebhook

	if err := req.Read(r, &request); err != nil {
		return fmt.Errorf("req.Read: %w", err)
	}

	if request.Event != paymentSucceededEvent {
		logger(ctx).Info("payment notification skipped",
			slog.String("event", request.Event), slog.String(logx.FieldPaymentID, request.Object.ID))
		reply.OK(w)

		return nil
	}

	dealID := request.Object.Metadata["deal_id"]
	if dealID == "" {
		return failure.NewInvalidArgumentError(
			"payment without deal_id metadata",
			failure.WithCode(errcodes.ValidationError),
			failure.WithDescription("object.metadata.deal_id is required"),
		)
	}

	if _, err := s.webhookService.ConfirmBuybackPayment(ctx, dealID, request.Object.ID); err != nil {
		return fmt.Errorf("webhookService.ConfirmBuybackPayment: %w", err)
	}

	reply.OK(w)

	return nil
}
