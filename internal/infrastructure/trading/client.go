package trading

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-resty/resty/v2"
	"github.com/samber/lo"
	"golang.org/x/time/rate"

	"cyberlombard/internal/domain"
	"cyberlombard/internal/domain/entity"
	"cyberlombard/pkg/errcodes"
	"cyberlombard/pkg/httpx"
	"cyberlombard/pkg/logx"
	"cyberlombard/pkg/metrics"
)

const collaborator = "trading_agent"

type assetRef struct {
	AssetID string `json:"assetid"`
}

type tradeRequest struct {
	DealID         string     `json:"deal_id"`
	PartnerSteamID string     `json:"partner_steam_id"`
	TradeURL       string     `json:"trade_url,omitempty"`
	Items          []assetRef `json:"items"`
}

type tradeResponse struct {
	TradeOfferID string `json:"trade_offer_id"`
	TradeURL     string `json:"trade_url"`
	Status       string `json:"status"`
}

// Client отправляет запросы торговому агенту, который сам выполняет
// передачу предметов и сообщает итог через webhook.
type Client struct {
	client  *resty.Client
	limiter *rate.Limiter
	retry   httpx.RetryPolicy
}

func NewClient(client *resty.Client, limiter *rate.Limiter, retry httpx.RetryPolicy) *Client {
	return &Client{client: client, limiter: limiter, retry: retry}
}

// RequestIncoming просит агента забрать предметы владельца в хранилище.
func (c *Client) RequestIncoming(ctx context.Context, req entity.TradeRequest) (entity.TradeOffer, error) {
	return c.send(ctx, "create_trade", "/api/trade/create", req)
}

// RequestReturn просит агента вернуть предметы владельцу после выкупа.
func (c *Client) RequestReturn(ctx context.Context, req entity.TradeRequest) (entity.TradeOffer, error) {
	return c.send(ctx, "reverse_trade", "/api/trade/reverse", req)
}

// Status запрашивает текущий статус предложения обмена.
func (c *Client) Status(ctx context.Context, offerID string) (entity.TradeOffer, error) {
	var resp tradeResponse

	err := c.call(ctx, func() (*resty.Response, error) {
		return c.client.R().
			SetContext(ctx).
			SetPathParam("id", offerID).
			SetResult(&resp).
			Get("/api/trade/status/{id}")
	})
	metrics.UpstreamCalls.WithLabelValues(collaborator, "trade_status", metrics.Result(err)).Inc()
	if err != nil {
		return entity.TradeOffer{}, domain.WrapError(err, errcodes.UpstreamUnavailable, "trade status is unavailable")
	}

	if resp.TradeOfferID == "" {
		resp.TradeOfferID = offerID
	}

	return resp.toDomain()
}

func (c *Client) send(ctx context.Context, operation, path string, req entity.TradeRequest) (entity.TradeOffer, error) {
	body := tradeRequest{
		DealID:         req.DealID,
		PartnerSteamID: req.PartnerSteamID,
		TradeURL:       req.TradeURL,
		Items:          lo.Map(req.Items, func(id string, _ int) assetRef { return assetRef{AssetID: id} }),
	}

	var resp tradeResponse

	err := c.call(ctx, func() (*resty.Response, error) {
		return c.client.R().
			SetContext(ctx).
			SetBody(body).
			SetResult(&resp).
			Post(path)
	})
	metrics.UpstreamCalls.WithLabelValues(collaborator, operation, metrics.Result(err)).Inc()
	if err != nil {
		return entity.TradeOffer{}, domain.WrapError(err, errcodes.UpstreamUnavailable, fmt.Sprintf("%s failed", operation))
	}

	if resp.TradeOfferID == "" {
		return entity.TradeOffer{}, domain.NewErrorf(errcodes.UpstreamUnavailable, "%s: agent returned no offer id", operation)
	}

	offer, err := resp.toDomain()
	if err != nil {
		return entity.TradeOffer{}, err
	}

	logger(ctx).Info("trade offer sent",
		slog.String(logx.FieldDealID, req.DealID),
		slog.String(logx.FieldOfferID, offer.OfferID),
		slog.String("operation", operation),
	)

	return offer, nil
}

func (c *Client) call(ctx context.Context, do func() (*resty.Response, error)) error {
	return httpx.Retry(ctx, c.retry, func() error { //nolint:wrapcheck
		if err := c.limiter.Wait(ctx); err != nil {
			return httpx.Permanent(fmt.Errorf("limiter.Wait: %w", err))
		}
		return httpx.CheckResponse(do())
	})
}

func (r tradeResponse) toDomain() (entity.TradeOffer, error) {
	status := entity.TradeStatusSent
	if r.Status != "" {
		var err error
		if status, err = entity.ParseTradeStatus(r.Status); err != nil {
			return entity.TradeOffer{}, err
		}
	}

	return entity.TradeOffer{OfferID: r.TradeOfferID, OfferURL: r.TradeURL, Status: status}, nil
}
