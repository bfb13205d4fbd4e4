package handler

import (
	"context"

	"cyberlombard/internal/domain/entity"
	"cyberlombard/internal/worker"
	"cyberlombard/pkg/contextx"
)

var logger = contextx.LoggerFromContextOrDefault //nolint:gochecknoglobals

// DealService операции над сделками, доступные оператору.
type DealService interface {
	Get(ctx context.Context, id string) (entity.Deal, error)
	History(ctx context.Context, id string) ([]entity.StatusChange, error)
	ListByOwner(ctx context.Context, ownerID string) ([]entity.Deal, error)
	Stats(ctx context.Context) (entity.DealStats, error)
	Cancel(ctx context.Context, id string) (entity.Deal, error)
	RetryPayout(ctx context.Context, id string) (entity.Deal, error)
	RetryReturn(ctx context.Context, id string) (entity.Trade, error)
}

// Sweeper управление фоновой обработкой просрочек.
type Sweeper interface {
	RunOnce(ctx context.Context) (worker.Pass, error)
	Start(ctx context.Context) error
	Stop()
	IsRunning() bool
	Last() worker.Pass
}

type Handler struct {
	svc     DealService
	sweeper Sweeper

	// runCtx контекст приложения для фонового планировщика
	runCtx context.Context //nolint:containedctx
}

func New(runCtx context.Context, svc DealService, sweeper Sweeper) *Handler {
	return &Handler{
		svc:     svc,
		sweeper: sweeper,
		runCtx:  runCtx,
	}
}
