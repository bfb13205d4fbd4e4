package pricesource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"cyberlombard/pkg/logx"
	"cyberlombard/pkg/metrics"
)

const (
	refreshKey = "bulk"

	defaultFailureCooldown = 30 * time.Second
)

// ErrColdCache таблица ещё не загружена, а последняя попытка загрузки
// недавно завершилась ошибкой.
var ErrColdCache = errors.New("price table is not loaded, source failed recently")

type fetcher interface {
	Fetch(ctx context.Context) (map[string]decimal.Decimal, error)
}

type snapshotStore interface {
	Load(ctx context.Context) (Snapshot, bool, error)
	Save(ctx context.Context, snapshot Snapshot) error
}

// Cache держит последнюю таблицу цен. Читатели получают снимок без
// блокировок, устаревший снимок отдаётся, пока идёт одно обновление.
type Cache struct {
	fetcher        fetcher
	store          snapshotStore
	ttl            time.Duration
	refreshTimeout time.Duration
	cooldown       time.Duration
	clock          clock.Clock

	current atomic.Pointer[Snapshot]
	// failedAt время последней неудачной загрузки, nil после успеха
	failedAt atomic.Pointer[time.Time]
	group    singleflight.Group
}

type CacheOption func(*Cache)

func WithStore(store snapshotStore) CacheOption {
	return func(c *Cache) { c.store = store }
}

func WithClock(clk clock.Clock) CacheOption {
	return func(c *Cache) { c.clock = clk }
}

func WithRefreshTimeout(timeout time.Duration) CacheOption {
	return func(c *Cache) { c.refreshTimeout = timeout }
}

// WithFailureCooldown задаёт, сколько после неудачной загрузки пустой кэш
// отвечает ErrColdCache без обращения к источнику.
func WithFailureCooldown(cooldown time.Duration) CacheOption {
	return func(c *Cache) { c.cooldown = cooldown }
}

func NewCache(fetcher fetcher, ttl time.Duration, opts ...CacheOption) *Cache {
	c := &Cache{
		fetcher:        fetcher,
		ttl:            ttl,
		refreshTimeout: time.Minute,
		cooldown:       defaultFailureCooldown,
		clock:          clock.New(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Lookup реализует источник цен для агрегатора. Первый вызов ждёт загрузки
// таблицы, последующие отдают текущий снимок сразу. Пока таблицы нет и
// источник недавно отказал, Lookup сразу возвращает ErrColdCache.
func (c *Cache) Lookup(ctx context.Context, names []string) (map[string]decimal.Decimal, time.Time, error) {
	snap := c.current.Load()
	if snap == nil {
		if c.coolingDown() {
			return nil, time.Time{}, ErrColdCache
		}

		var err error
		if snap, err = c.load(ctx); err != nil {
			return nil, time.Time{}, err
		}
	}

	if c.Stale(snap) {
		c.refreshInBackground(ctx)
	}

	return snap.Pick(names), snap.FetchedAt, nil
}

// Snapshot возвращает текущий снимок или nil, если таблица ещё не загружена.
func (c *Cache) Snapshot() *Snapshot {
	return c.current.Load()
}

// Set публикует готовый снимок, например фиксированную таблицу для dev.
func (c *Cache) Set(snap Snapshot) {
	c.publish(&snap)
}

func (c *Cache) Stale(snap *Snapshot) bool {
	return c.clock.Since(snap.FetchedAt) > c.ttl
}

// Warm поднимает снимок из хранилища, если он ещё не устарел.
func (c *Cache) Warm(ctx context.Context) error {
	if c.store == nil {
		return nil
	}

	snap, ok, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("store.Load: %w", err)
	}
	if !ok || c.Stale(&snap) {
		return nil
	}

	c.publish(&snap)
	logger(ctx).Info("price snapshot restored", slog.Int("items", snap.Len()), slog.Time("fetched-at", snap.FetchedAt))

	return nil
}

// Refresh синхронно обновляет таблицу. Параллельные вызовы объединяются.
func (c *Cache) Refresh(ctx context.Context) error {
	_, err := c.refresh(ctx, false)
	return err
}

// Prime загружает таблицу в фоне, если снимка ещё нет.
func (c *Cache) Prime(ctx context.Context) {
	if c.current.Load() != nil {
		return
	}

	c.refreshInBackground(ctx)
}

func (c *Cache) coolingDown() bool {
	failedAt := c.failedAt.Load()
	if failedAt == nil {
		return false
	}

	return c.clock.Since(*failedAt) < c.cooldown
}

func (c *Cache) load(ctx context.Context) (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, c.refreshTimeout)
	defer cancel()

	return c.refresh(ctx, true)
}

func (c *Cache) refreshInBackground(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)

	go func() {
		ctx, cancel := context.WithTimeout(ctx, c.refreshTimeout)
		defer cancel()

		if _, err := c.refresh(ctx, false); err != nil {
			logger(ctx).Warn("background price refresh failed", logx.Error(err))
		}
	}()
}

// refresh загружает таблицу. С onlyIfMissing загрузка пропускается, если
// снимок уже опубликован другим вызовом.
func (c *Cache) refresh(ctx context.Context, onlyIfMissing bool) (*Snapshot, error) {
	v, err, _ := c.group.Do(refreshKey, func() (any, error) {
		if current := c.current.Load(); onlyIfMissing && current != nil {
			return current, nil
		}

		prices, err := c.fetcher.Fetch(ctx)
		metrics.PriceRefreshes.WithLabelValues(metrics.Result(err)).Inc()
		if err != nil {
			now := c.clock.Now()
			c.failedAt.Store(&now)
			return nil, err
		}

		snap := &Snapshot{Prices: prices, FetchedAt: c.clock.Now()}
		c.publish(snap)
		c.failedAt.Store(nil)

		if c.store != nil {
			if err := c.store.Save(ctx, *snap); err != nil {
				logger(ctx).Warn("price snapshot was not persisted", logx.Error(err))
			}
		}

		return snap, nil
	})
	if err != nil {
		return nil, fmt.Errorf("refresh price table: %w", err)
	}

	return v.(*Snapshot), nil //nolint:forcetypeassert
}

func (c *Cache) publish(snap *Snapshot) {
	c.current.Store(snap)
	metrics.PriceTableSize.Set(float64(snap.Len()))
}
