package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"cyberlombard/internal/domain"
	"cyberlombard/internal/domain/entity"
	"cyberlombard/pkg/errcodes"
	"cyberlombard/pkg/lox"
)

const tradeColumns = `id, deal_id, offer_id, offer_url, direction, status, items, created_at, updated_at`

// CreateTrade сохраняет отправленный трейд. Второй активный трейд в том же
// направлении отклоняется уникальным индексом.
func (r *DealRepository) CreateTrade(ctx context.Context, trade entity.Trade) error {
	schema, err := fromTrade(&trade)
	if err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to encode trade")
	}

	query := `INSERT INTO trades (` + tradeColumns + `) VALUES (
		:id, :deal_id, :offer_id, :offer_url, :direction, :status, :items, :created_at, :updated_at)`

	if _, err := r.db.NamedExecContext(ctx, query, schema); err != nil {
		if isUniqueViolation(err) {
			return domain.WrapError(err, errcodes.InvalidTransition, "deal already has an active trade in this direction")
		}
		return domain.WrapError(err, errcodes.InternalServerError, "failed to insert trade")
	}

	return nil
}

func (r *DealRepository) TradeByOffer(ctx context.Context, offerID string) (entity.Trade, error) {
	var schema tradeSchema

	query := `SELECT ` + tradeColumns + ` FROM trades WHERE offer_id = $1`
	if err := r.db.GetContext(ctx, &schema, query, offerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.Trade{}, domain.NewErrorf(errcodes.TradeNotFound, "trade offer %s not found", offerID)
		}
		return entity.Trade{}, domain.WrapError(err, errcodes.InternalServerError, "failed to get trade")
	}

	trade, err := schema.toDomain()
	if err != nil {
		return entity.Trade{}, domain.WrapError(err, errcodes.InternalServerError, "failed to decode trade")
	}

	return trade, nil
}

// CloseTrade фиксирует итоговый статус активного трейда. Для уже закрытого
// трейда возвращает его без изменений и changed=false.
func (r *DealRepository) CloseTrade(
	ctx context.Context,
	offerID string,
	status entity.TradeStatus,
	now time.Time,
) (entity.Trade, bool, error) {
	query := `UPDATE trades SET status = $1, updated_at = $2
		WHERE offer_id = $3 AND status = $4
		RETURNING ` + tradeColumns

	var schema tradeSchema

	err := r.db.GetContext(ctx, &schema, query, string(status), now, offerID, string(entity.TradeStatusSent))
	if errors.Is(err, sql.ErrNoRows) {
		trade, err := r.TradeByOffer(ctx, offerID)
		return trade, false, err
	}
	if err != nil {
		return entity.Trade{}, false, domain.WrapError(err, errcodes.InternalServerError, "failed to close trade")
	}

	trade, err := schema.toDomain()
	if err != nil {
		return entity.Trade{}, false, domain.WrapError(err, errcodes.InternalServerError, "failed to decode trade")
	}

	return trade, true, nil
}

func (r *DealRepository) tradesOf(ctx context.Context, q sqlx.QueryerContext, dealID string) ([]entity.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE deal_id = $1 ORDER BY created_at ASC`

	var schemas []tradeSchema
	if err := sqlx.SelectContext(ctx, q, &schemas, query, dealID); err != nil {
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to list trades")
	}

	trades, err := lox.MapErr(schemas, tradeSchema.decode)
	if err != nil {
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to decode trade")
	}

	return trades, nil
}
