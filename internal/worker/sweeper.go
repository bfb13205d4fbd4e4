package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"cyberlombard/internal/domain/service/deal"
	"cyberlombard/pkg/logx"
)

type sweepService interface {
	Sweep(ctx context.Context, now time.Time) (deal.SweepResult, error)
	CancelStale(ctx context.Context, now time.Time) (int, error)
	NotifyExpiring(ctx context.Context, now time.Time) (int, error)
}

// Pass итог одного прохода планировщика.
type Pass struct {
	deal.SweepResult
	Cancelled int
	Notified  int
	At        time.Time
}

// Sweeper периодически закрывает просроченные сделки, отменяет зависшие
// PENDING сделки и предупреждает об истекающих опционах.
type Sweeper struct {
	service  sweepService
	clock    clock.Clock
	interval time.Duration

	// Control fields
	mu         sync.Mutex
	cancelFunc context.CancelFunc
	isRunning  bool
	wg         sync.WaitGroup
	last       Pass
}

func NewSweeper(service sweepService, interval time.Duration) *Sweeper {
	return &Sweeper{
		service:  service,
		clock:    clock.New(),
		interval: interval,
	}
}

func (w *Sweeper) WithClock(c clock.Clock) *Sweeper {
	w.clock = c
	return w
}

func (w *Sweeper) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return errors.New("sweeper is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel
	w.isRunning = true

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			w.mu.Lock()
			w.isRunning = false
			w.cancelFunc = nil
			w.mu.Unlock()
		}()

		if err := w.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger(ctx).Error("sweeper stopped", logx.Error(err))
		}
	}()

	return nil
}

func (w *Sweeper) Stop() {
	w.mu.Lock()

	if !w.isRunning {
		w.mu.Unlock()
		return
	}

	if w.cancelFunc != nil {
		w.cancelFunc()
	}
	w.mu.Unlock()

	w.wg.Wait()
}

// IsRunning возвращает текущий статус
func (w *Sweeper) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.isRunning
}

// Last возвращает итог последнего прохода.
func (w *Sweeper) Last() Pass {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

func (w *Sweeper) Run(ctx context.Context) error {
	logger(ctx).Info("sweeper started", slog.Duration("interval", w.interval))

	ticker := w.clock.Ticker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil {
			logger(ctx).Error("sweep pass failed", logx.Error(err))
		}

		select {
		case <-ctx.Done():
			logger(ctx).Info("sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce выполняет один проход на текущий момент. Ошибка одного шага не
// отменяет остальные.
func (w *Sweeper) RunOnce(ctx context.Context) (Pass, error) {
	now := w.clock.Now()
	pass := Pass{At: now}

	result, sweepErr := w.service.Sweep(ctx, now)
	pass.SweepResult = result

	cancelled, cancelErr := w.service.CancelStale(ctx, now)
	pass.Cancelled = cancelled

	notified, notifyErr := w.service.NotifyExpiring(ctx, now)
	pass.Notified = notified

	w.mu.Lock()
	w.last = pass
	w.mu.Unlock()

	if pass.Cancelled > 0 || pass.Notified > 0 {
		logger(ctx).Info("sweeper pass finished",
			slog.Int("cancelled", pass.Cancelled),
			slog.Int("notified", pass.Notified),
		)
	}

	return pass, errors.Join(sweepErr, cancelErr, notifyErr)
}
