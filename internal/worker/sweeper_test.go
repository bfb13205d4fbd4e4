package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"cyberlombard/internal/domain/service/deal"
	"cyberlombard/internal/worker"
)

type sweepStub struct {
	mu       sync.Mutex
	sweeps   []time.Time
	sweepErr error
}

func (s *sweepStub) Sweep(_ context.Context, now time.Time) (deal.SweepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweeps = append(s.sweeps, now)
	if s.sweepErr != nil {
		return deal.SweepResult{}, s.sweepErr
	}

	return deal.SweepResult{Defaulted: 2, Skipped: 1}, nil
}

func (s *sweepStub) CancelStale(context.Context, time.Time) (int, error) {
	return 1, nil
}

func (s *sweepStub) NotifyExpiring(context.Context, time.Time) (int, error) {
	return 3, nil
}

func (s *sweepStub) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sweeps)
}

func TestSweeper_RunOnce(t *testing.T) {
	rq := require.New(t)

	mock := clock.NewMock()
	mock.Set(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	stub := &sweepStub{}

	w := worker.NewSweeper(stub, time.Minute).WithClock(mock)

	pass, err := w.RunOnce(context.Background())
	rq.NoError(err)
	rq.Equal(2, pass.Defaulted)
	rq.Equal(1, pass.Skipped)
	rq.Equal(1, pass.Cancelled)
	rq.Equal(3, pass.Notified)
	rq.Equal(mock.Now(), pass.At)
	rq.Equal(pass, w.Last())
}

func TestSweeper_RunOnceKeepsGoingAfterError(t *testing.T) {
	rq := require.New(t)

	stub := &sweepStub{sweepErr: errors.New("db is down")}
	w := worker.NewSweeper(stub, time.Minute).WithClock(clock.NewMock())

	pass, err := w.RunOnce(context.Background())
	rq.ErrorIs(err, stub.sweepErr)
	rq.Equal(1, pass.Cancelled)
	rq.Equal(3, pass.Notified)
}

func TestSweeper_StartStop(t *testing.T) {
	rq := require.New(t)

	mock := clock.NewMock()
	stub := &sweepStub{}
	w := worker.NewSweeper(stub, time.Minute).WithClock(mock)

	rq.NoError(w.Start(context.Background()))
	rq.True(w.IsRunning())
	rq.Error(w.Start(context.Background()))

	rq.Eventually(func() bool { return stub.count() >= 1 }, time.Second, 5*time.Millisecond)

	rq.Eventually(func() bool {
		mock.Add(time.Minute)
		return stub.count() >= 3
	}, time.Second, 5*time.Millisecond)

	w.Stop()
	rq.False(w.IsRunning())

	// повторная остановка ничего не делает
	w.Stop()
}
