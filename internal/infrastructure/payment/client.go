package payment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"cyberlombard/internal/domain"
	"cyberlombard/internal/domain/entity"
	"cyberlombard/pkg/errcodes"
	"cyberlombard/pkg/httpx"
	"cyberlombard/pkg/logx"
	"cyberlombard/pkg/metrics"
)

const (
	collaborator = "payment_gateway"

	idempotenceHeader = "Idempotence-Key"

	finalStatusTTL = 24 * time.Hour
)

// Client работает с платёжным шлюзом: платежи выкупа и выплаты займов.
type Client struct {
	client   *resty.Client
	retry    httpx.RetryPolicy
	payments *cache.Cache
}

func NewClient(client *resty.Client, shopID, secretKey string, retry httpx.RetryPolicy) *Client {
	client.SetBasicAuth(shopID, secretKey)

	return &Client{
		client:   client,
		retry:    retry,
		payments: cache.New(finalStatusTTL, time.Hour),
	}
}

// CreatePayment создаёт платёж с переходом на страницу оплаты.
func (c *Client) CreatePayment(ctx context.Context, req entity.PaymentRequest) (entity.Payment, error) {
	body := createPaymentRequest{
		Amount:       newAmount(req.Amount),
		Confirmation: confirmation{Type: "redirect", ReturnURL: req.ReturnURL},
		Capture:      true,
		Description:  req.Description,
		Metadata:     metadata{DealID: req.DealID},
	}

	var resp paymentResponse
	if err := c.post(ctx, "create_payment", "/payments", uuid.NewString(), body, &resp); err != nil {
		return entity.Payment{}, err
	}

	payment := resp.toDomain()
	logger(ctx).Info("buy-back payment created",
		slog.String(logx.FieldDealID, req.DealID),
		slog.String(logx.FieldPaymentID, payment.ID),
		slog.String("status", string(payment.Status)),
	)

	return payment, nil
}

// GetPayment возвращает состояние платежа. Финальные статусы кэшируются.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (entity.Payment, error) {
	if cached, ok := c.payments.Get(paymentID); ok {
		return cached.(entity.Payment), nil //nolint:forcetypeassert
	}

	var resp paymentResponse

	err := httpx.Retry(ctx, c.retry, func() error {
		r, err := c.client.R().
			SetContext(ctx).
			SetPathParam("id", paymentID).
			SetResult(&resp).
			Get("/payments/{id}")
		return httpx.CheckResponse(r, err)
	})
	metrics.UpstreamCalls.WithLabelValues(collaborator, "get_payment", metrics.Result(err)).Inc()
	if err != nil {
		return entity.Payment{}, upstreamError(err, "payment status is unavailable")
	}

	payment := resp.toDomain()
	if payment.Status.Final() {
		c.payments.SetDefault(paymentID, payment)
	}

	return payment, nil
}

// Payout отправляет выплату. Шлюз дедуплицирует запросы по IdempotenceKey,
// поэтому повтор после сетевой ошибки не приводит к двойной выплате.
func (c *Client) Payout(ctx context.Context, req entity.PayoutRequest) (entity.Payout, error) {
	body := createPayoutRequest{
		Amount:      newAmount(req.Amount),
		Destination: payoutDestination{Type: "sbp", Phone: req.Destination},
		Description: req.Description,
		Metadata:    metadata{DealID: req.DealID},
	}

	var resp payoutResponse
	if err := c.post(ctx, "payout", "/payouts", req.IdempotenceKey, body, &resp); err != nil {
		return entity.Payout{}, err
	}

	payout := resp.toDomain()
	if payout.Status == entity.PaymentCanceled {
		return payout, domain.NewErrorf(errcodes.UpstreamUnavailable, "payout %s canceled: %s", payout.ID, payout.Reason)
	}

	return payout, nil
}

func (c *Client) post(ctx context.Context, operation, path, key string, body, result any) error {
	err := httpx.Retry(ctx, c.retry, func() error {
		r, err := c.client.R().
			SetContext(ctx).
			SetHeader(idempotenceHeader, key).
			SetBody(body).
			SetResult(result).
			Post(path)
		return httpx.CheckResponse(r, err)
	})
	metrics.UpstreamCalls.WithLabelValues(collaborator, operation, metrics.Result(err)).Inc()
	if err != nil {
		return upstreamError(err, fmt.Sprintf("%s failed", operation))
	}

	return nil
}

func upstreamError(err error, message string) error {
	return domain.WrapError(err, errcodes.UpstreamUnavailable, message)
}
