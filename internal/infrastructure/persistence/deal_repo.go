package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"cyberlombard/internal/domain"
	"cyberlombard/internal/domain/entity"
	"cyberlombard/pkg/errcodes"
	"cyberlombard/pkg/lox"
)

const uniqueViolation = "23505"

const dealColumns = `
	id, owner_id, owner, market_total, loan_amount, buyback_price, term_days,
	interest_rate, premium_rate, option_expiry, items, status, payout_state,
	payout_id, payout_error, payout_attempts, buyback_payment_id, buyback_paid_at,
	expiry_notified_at, created_at, updated_at, activated_at, closed_at`

type DealRepository struct {
	db *sqlx.DB
}

func NewDealRepository(db *sqlx.DB) *DealRepository {
	return &DealRepository{db: db}
}

// withTx выполняет функцию в транзакции.
func (r *DealRepository) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to begin transaction")
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return domain.WrapError(
				fmt.Errorf("%w; rollback: %v", err, rbErr),
				errcodes.InternalServerError,
				"transaction failed",
			)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to commit")
	}

	return nil
}

// Create сохраняет новую сделку.
func (r *DealRepository) Create(ctx context.Context, deal entity.Deal) error {
	schema, err := fromDeal(&deal)
	if err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to encode deal")
	}

	query := `INSERT INTO deals (` + dealColumns + `) VALUES (
		:id, :owner_id, :owner, :market_total, :loan_amount, :buyback_price, :term_days,
		:interest_rate, :premium_rate, :option_expiry, :items, :status, :payout_state,
		:payout_id, :payout_error, :payout_attempts, :buyback_payment_id, :buyback_paid_at,
		:expiry_notified_at, :created_at, :updated_at, :activated_at, :closed_at)`

	if _, err := r.db.NamedExecContext(ctx, query, schema); err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to insert deal")
	}

	return nil
}

// Get возвращает сделку вместе с её трейдами.
func (r *DealRepository) Get(ctx context.Context, id string) (entity.Deal, error) {
	var schema dealSchema

	query := `SELECT ` + dealColumns + ` FROM deals WHERE id = $1`
	if err := r.db.GetContext(ctx, &schema, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.Deal{}, domain.NewErrorf(errcodes.DealNotFound, "deal %s not found", id)
		}
		return entity.Deal{}, domain.WrapError(err, errcodes.InternalServerError, "failed to get deal")
	}

	deal, err := schema.toDomain()
	if err != nil {
		return entity.Deal{}, domain.WrapError(err, errcodes.InternalServerError, "failed to decode deal")
	}

	deal.Trades, err = r.tradesOf(ctx, r.db, id)
	if err != nil {
		return entity.Deal{}, err
	}

	return deal, nil
}

// Update блокирует строку сделки, применяет fn и сохраняет результат в
// той же транзакции. Смена статуса попадает в историю.
func (r *DealRepository) Update(
	ctx context.Context,
	id string,
	fn func(*entity.Deal) error,
) (entity.Deal, error) {
	var updated entity.Deal

	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		var schema dealSchema

		query := `SELECT ` + dealColumns + ` FROM deals WHERE id = $1 FOR UPDATE`
		if err := tx.GetContext(ctx, &schema, query, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.NewErrorf(errcodes.DealNotFound, "deal %s not found", id)
			}
			return domain.WrapError(err, errcodes.InternalServerError, "failed to lock deal")
		}

		deal, err := schema.toDomain()
		if err != nil {
			return domain.WrapError(err, errcodes.InternalServerError, "failed to decode deal")
		}

		deal.Trades, err = r.tradesOf(ctx, tx, id)
		if err != nil {
			return err
		}

		from := deal.Status

		if err := fn(&deal); err != nil {
			return err
		}

		next, err := fromDeal(&deal)
		if err != nil {
			return domain.WrapError(err, errcodes.InternalServerError, "failed to encode deal")
		}

		updateQuery := `
			UPDATE deals SET
				status = :status,
				payout_state = :payout_state,
				payout_id = :payout_id,
				payout_error = :payout_error,
				payout_attempts = :payout_attempts,
				buyback_payment_id = :buyback_payment_id,
				buyback_paid_at = :buyback_paid_at,
				expiry_notified_at = :expiry_notified_at,
				updated_at = :updated_at,
				activated_at = :activated_at,
				closed_at = :closed_at
			WHERE id = :id`

		if _, err := tx.NamedExecContext(ctx, updateQuery, next); err != nil {
			return domain.WrapError(err, errcodes.InternalServerError, "failed to update deal")
		}

		if deal.Status != from {
			historyQuery := `
				INSERT INTO deal_status_history (deal_id, from_status, to_status, reason, at)
				VALUES ($1, $2, $3, $4, $5)`

			if _, err := tx.ExecContext(ctx, historyQuery,
				deal.ID, string(from), string(deal.Status), string(deal.LastEvent()), deal.UpdatedAt,
			); err != nil {
				return domain.WrapError(err, errcodes.InternalServerError, "failed to append history")
			}
		}

		updated = deal

		return nil
	})
	if err != nil {
		return entity.Deal{}, err
	}

	return updated, nil
}

// ListExpired возвращает ACTIVE сделки с option_expiry < now, следующие
// за курсором в порядке (option_expiry, id).
func (r *DealRepository) ListExpired(
	ctx context.Context,
	now time.Time,
	after entity.ExpiryCursor,
	limit int,
) ([]entity.Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals
		WHERE status = $1 AND option_expiry < $2 AND (option_expiry, id) > ($3, $4)
		ORDER BY option_expiry ASC, id ASC
		LIMIT $5`

	return r.selectDeals(ctx, query, string(entity.DealStatusActive), now, after.OptionExpiry, after.ID, limit)
}

// ListStalePending возвращает PENDING сделки, созданные раньше before.
func (r *DealRepository) ListStalePending(ctx context.Context, before time.Time, limit int) ([]entity.Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at ASC
		LIMIT $3`

	return r.selectDeals(ctx, query, string(entity.DealStatusPending), before, limit)
}

// ListExpiring возвращает ACTIVE сделки, истекающие не позже until, о
// которых ещё не уведомляли.
func (r *DealRepository) ListExpiring(ctx context.Context, now, until time.Time, limit int) ([]entity.Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals
		WHERE status = $1 AND option_expiry >= $2 AND option_expiry <= $3 AND expiry_notified_at IS NULL
		ORDER BY option_expiry ASC
		LIMIT $4`

	return r.selectDeals(ctx, query, string(entity.DealStatusActive), now, until, limit)
}

func (r *DealRepository) ListByOwner(ctx context.Context, ownerID string) ([]entity.Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals WHERE owner_id = $1 ORDER BY created_at DESC`

	return r.selectDeals(ctx, query, ownerID)
}

func (r *DealRepository) History(ctx context.Context, id string) ([]entity.StatusChange, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM deals WHERE id = $1)`, id); err != nil {
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to check deal existence")
	}
	if !exists {
		return nil, domain.NewErrorf(errcodes.DealNotFound, "deal %s not found", id)
	}

	query := `SELECT deal_id, from_status, to_status, reason, at
		FROM deal_status_history WHERE deal_id = $1 ORDER BY id ASC`

	var schemas []historySchema
	if err := r.db.SelectContext(ctx, &schemas, query, id); err != nil {
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to get history")
	}

	result := make([]entity.StatusChange, 0, len(schemas))
	for _, s := range schemas {
		result = append(result, s.toDomain())
	}

	return result, nil
}

func (r *DealRepository) Stats(ctx context.Context) (entity.DealStats, error) {
	type row struct {
		Status       string          `db:"status"`
		Count        int             `db:"cnt"`
		LoanAmount   decimal.Decimal `db:"loan_amount"`
		BuybackPrice decimal.Decimal `db:"buyback_price"`
		MarketTotal  decimal.Decimal `db:"market_total"`
	}

	query := `SELECT status, COUNT(*) AS cnt,
			COALESCE(SUM(loan_amount), 0) AS loan_amount,
			COALESCE(SUM(buyback_price), 0) AS buyback_price,
			COALESCE(SUM(market_total), 0) AS market_total
		FROM deals GROUP BY status`

	var rows []row
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return entity.DealStats{}, domain.WrapError(err, errcodes.InternalServerError, "failed to get stats")
	}

	acc := newStatsAccumulator()
	for _, rw := range rows {
		acc.add(entity.DealStatus(rw.Status), rw.Count, rw.LoanAmount, rw.BuybackPrice, rw.MarketTotal)
	}

	return acc.stats, nil
}

func (r *DealRepository) selectDeals(ctx context.Context, query string, args ...any) ([]entity.Deal, error) {
	var schemas []dealSchema
	if err := r.db.SelectContext(ctx, &schemas, query, args...); err != nil {
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to list deals")
	}

	deals, err := lox.MapErr(schemas, dealSchema.decode)
	if err != nil {
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to decode deal")
	}

	return deals, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
