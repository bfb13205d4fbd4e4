package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"cyberlombard/internal/domain"
	"cyberlombard/internal/domain/entity"
	"cyberlombard/internal/worker"
	"cyberlombard/pkg/errcodes"
)

type retryStub struct {
	err   error
	calls []string
}

func (r *retryStub) RetryPayout(_ context.Context, dealID string) (entity.Deal, error) {
	r.calls = append(r.calls, "payout:"+dealID)
	return entity.Deal{ID: dealID}, r.err
}

func (r *retryStub) RetryReturn(_ context.Context, dealID string) (entity.Trade, error) {
	r.calls = append(r.calls, "return:"+dealID)
	return entity.Trade{DealID: dealID}, r.err
}

type enqueueStub struct {
	tasks []*asynq.Task
	err   error
}

func (e *enqueueStub) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.tasks = append(e.tasks, task)
	return &asynq.TaskInfo{ID: "t1", Type: task.Type(), NextProcessAt: time.Now()}, nil
}

func TestRetryHandlers(t *testing.T) {
	testCases := []struct {
		name      string
		taskType  string
		payload   string
		err       error
		wantCalls []string
		wantErr   bool
		wantSkip  bool
	}{
		{
			name:      "payout retried",
			taskType:  worker.TypePayoutRetry,
			payload:   `{"deal_id":"d1"}`,
			wantCalls: []string{"payout:d1"},
		},
		{
			name:      "return retried",
			taskType:  worker.TypeReturnRetry,
			payload:   `{"deal_id":"d1"}`,
			wantCalls: []string{"return:d1"},
		},
		{
			name:      "gateway still down",
			taskType:  worker.TypePayoutRetry,
			payload:   `{"deal_id":"d1"}`,
			err:       domain.NewError(errcodes.UpstreamUnavailable, "timeout"),
			wantCalls: []string{"payout:d1"},
			wantErr:   true,
		},
		{
			name:      "payout already settled",
			taskType:  worker.TypePayoutRetry,
			payload:   `{"deal_id":"d1"}`,
			err:       domain.NewError(errcodes.InvalidTransition, "payout is PAID"),
			wantCalls: []string{"payout:d1"},
			wantErr:   true,
			wantSkip:  true,
		},
		{
			name:     "broken payload",
			taskType: worker.TypeReturnRetry,
			payload:  `{}`,
			wantErr:  true,
			wantSkip: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rq := require.New(t)

			stub := &retryStub{err: tc.err}
			h := worker.NewRetryHandlers(stub)

			var handle func(context.Context, *asynq.Task) error
			for _, m := range h.Handlers() {
				if m.Pattern == tc.taskType {
					handle = m.Handle
				}
			}
			rq.NotNil(handle)

			err := handle(context.Background(), asynq.NewTask(tc.taskType, []byte(tc.payload)))
			if tc.wantErr {
				rq.Error(err)
			} else {
				rq.NoError(err)
			}
			rq.Equal(tc.wantSkip, errors.Is(err, asynq.SkipRetry))
			rq.Equal(tc.wantCalls, stub.calls)
		})
	}
}

func TestAsynqScheduler(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	q := &enqueueStub{}
	s := worker.NewAsynqScheduler(q, 5, time.Minute)

	rq.NoError(s.SchedulePayoutRetry(ctx, "d1"))
	rq.NoError(s.ScheduleReturnRetry(ctx, "d2"))

	rq.Len(q.tasks, 2)
	rq.Equal(worker.TypePayoutRetry, q.tasks[0].Type())
	rq.JSONEq(`{"deal_id":"d1"}`, string(q.tasks[0].Payload()))
	rq.Equal(worker.TypeReturnRetry, q.tasks[1].Type())

	q.err = asynq.ErrTaskIDConflict
	rq.NoError(s.SchedulePayoutRetry(ctx, "d1"))

	q.err = errors.New("redis is down")
	rq.Error(s.SchedulePayoutRetry(ctx, "d1"))
}
