package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	jsoniter "github.com/json-iterator/go"

	"cyberlombard/internal/domain"
	"cyberlombard/internal/domain/entity"
	"cyberlombard/pkg/application/modules"
	"cyberlombard/pkg/errcodes"
	"cyberlombard/pkg/logx"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // skip

const (
	TypePayoutRetry = "deal:payout_retry"
	TypeReturnRetry = "deal:return_retry"

	QueueRetries = "retries"
)

type dealPayload struct {
	DealID string `json:"deal_id"`
}

func newDealTask(taskType, dealID string) (*asynq.Task, error) {
	payload, err := json.Marshal(dealPayload{DealID: dealID})
	if err != nil {
		return nil, fmt.Errorf("json.Marshal: %w", err)
	}

	return asynq.NewTask(taskType, payload), nil
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqScheduler ставит повторы выплат и возвратов в очередь asynq. На
// сделку в очереди не больше одной задачи каждого типа.
type AsynqScheduler struct {
	client   enqueuer
	maxRetry int
	delay    time.Duration
}

func NewAsynqScheduler(client enqueuer, maxRetry int, delay time.Duration) *AsynqScheduler {
	return &AsynqScheduler{
		client:   client,
		maxRetry: maxRetry,
		delay:    delay,
	}
}

func (s *AsynqScheduler) SchedulePayoutRetry(ctx context.Context, dealID string) error {
	return s.schedule(ctx, TypePayoutRetry, dealID)
}

func (s *AsynqScheduler) ScheduleReturnRetry(ctx context.Context, dealID string) error {
	return s.schedule(ctx, TypeReturnRetry, dealID)
}

func (s *AsynqScheduler) schedule(ctx context.Context, taskType, dealID string) error {
	task, err := newDealTask(taskType, dealID)
	if err != nil {
		return err
	}

	info, err := s.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueRetries),
		asynq.TaskID(taskType+":"+dealID),
		asynq.MaxRetry(s.maxRetry),
		asynq.ProcessIn(s.delay),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("asynq.EnqueueContext: %w", err)
	}

	logger(ctx).Info("retry scheduled",
		slog.String(logx.FieldTaskType, taskType),
		slog.String(logx.FieldDealID, dealID),
		slog.Time("process-at", info.NextProcessAt),
	)

	return nil
}

type retryService interface {
	RetryPayout(ctx context.Context, dealID string) (entity.Deal, error)
	RetryReturn(ctx context.Context, dealID string) (entity.Trade, error)
}

// RetryHandlers обрабатывает задачи повторов.
type RetryHandlers struct {
	service retryService
}

func NewRetryHandlers(service retryService) RetryHandlers {
	return RetryHandlers{service: service}
}

func (h RetryHandlers) Handlers() []modules.AsynqHandler {
	return []modules.AsynqHandler{
		{Pattern: TypePayoutRetry, Handle: h.HandlePayoutRetry},
		{Pattern: TypeReturnRetry, Handle: h.HandleReturnRetry},
	}
}

func (h RetryHandlers) HandlePayoutRetry(ctx context.Context, task *asynq.Task) error {
	dealID, err := dealIDOf(task)
	if err != nil {
		return err
	}

	_, err = h.service.RetryPayout(ctx, dealID)

	return outcome(ctx, task, dealID, err)
}

func (h RetryHandlers) HandleReturnRetry(ctx context.Context, task *asynq.Task) error {
	dealID, err := dealIDOf(task)
	if err != nil {
		return err
	}

	_, err = h.service.RetryReturn(ctx, dealID)

	return outcome(ctx, task, dealID, err)
}

func dealIDOf(task *asynq.Task) (string, error) {
	var p dealPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil || p.DealID == "" {
		return "", fmt.Errorf("invalid %s payload: %w", task.Type(), asynq.SkipRetry)
	}

	return p.DealID, nil
}

// outcome решает, нужен ли ещё один повтор. Сделка, которая ушла из
// состояния, допускающего повтор, больше не ретраится.
func outcome(ctx context.Context, task *asynq.Task, dealID string, err error) error {
	log := logger(ctx).With(slog.String(logx.FieldTaskType, task.Type()), slog.String(logx.FieldDealID, dealID))

	switch {
	case err == nil:
		log.Info("retry succeeded")
		return nil
	case domain.IsCode(err, errcodes.InvalidTransition), domain.IsCode(err, errcodes.DealNotFound):
		log.Info("retry is no longer needed", logx.Error(err))
		return fmt.Errorf("%w: %w", asynq.SkipRetry, err)
	default:
		log.Warn("retry failed", logx.Error(err))
		return err
	}
}
