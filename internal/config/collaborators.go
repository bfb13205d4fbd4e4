package config

import (
	"fmt"
	"time"

	"cyberlombard/pkg/httpx"
)

const (
	maxCollaboratorTimeout = 2 * time.Minute
	maxCollaboratorRetries = 5
)

// Payment платёжный шлюз. Без учётных данных используется dev шлюз.
type Payment struct {
	URL        string        `env:"PAYMENT_URL" envDefault:"https://api.yookassa.ru/v3"`
	ShopID     string        `env:"PAYMENT_SHOP_ID"`
	SecretKey  string        `env:"PAYMENT_SECRET_KEY" json:"-"`
	Timeout    time.Duration `env:"PAYMENT_TIMEOUT" envDefault:"15s"`
	MaxRetries uint64        `env:"PAYMENT_MAX_RETRIES" envDefault:"3"`
}

func (p Payment) Enabled() bool {
	return p.ShopID != "" && p.SecretKey != ""
}

func (p Payment) Client() httpx.ClientConfig {
	return httpx.ClientConfig{BaseURL: p.URL, Timeout: boundTimeout(p.Timeout)}
}

func (p Payment) Retry() httpx.RetryPolicy {
	return boundRetry(p.MaxRetries)
}

// Trading торговый агент. Без URL используется dev агент.
type Trading struct {
	URL        string        `env:"TRADING_URL"`
	Token      string        `env:"TRADING_TOKEN" json:"-"`
	Timeout    time.Duration `env:"TRADING_TIMEOUT" envDefault:"30s"`
	MaxRetries uint64        `env:"TRADING_MAX_RETRIES" envDefault:"3"`
	RatePerSec float64       `env:"TRADING_RATE_PER_SEC" envDefault:"2"`
	Burst      int           `env:"TRADING_BURST" envDefault:"4"`
}

func (t Trading) Enabled() bool {
	return t.URL != ""
}

func (t Trading) Client() httpx.ClientConfig {
	return httpx.ClientConfig{BaseURL: t.URL, Timeout: boundTimeout(t.Timeout)}
}

func (t Trading) Retry() httpx.RetryPolicy {
	return boundRetry(t.MaxRetries)
}

func (p PriceSource) Client() httpx.ClientConfig {
	return httpx.ClientConfig{BaseURL: p.URL, Timeout: boundTimeout(p.Timeout)}
}

func (p PriceSource) Retry() httpx.RetryPolicy {
	return boundRetry(p.MaxRetries)
}

type Sweeper struct {
	Interval        time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
	BatchSize       int           `env:"SWEEP_BATCH" envDefault:"100"`
	TradeTimeout    time.Duration `env:"TRADE_TIMEOUT" envDefault:"48h"`
	SettlementGrace time.Duration `env:"BUYBACK_SETTLEMENT_GRACE" envDefault:"15m"`
	ExpiryNotice    time.Duration `env:"EXPIRY_NOTICE" envDefault:"24h"`
}

func (s Sweeper) validate() error {
	if s.Interval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive")
	}
	if s.BatchSize <= 0 {
		return fmt.Errorf("SWEEP_BATCH must be positive")
	}
	if s.TradeTimeout < 0 || s.SettlementGrace < 0 || s.ExpiryNotice < 0 {
		return fmt.Errorf("sweeper durations must not be negative")
	}
	return nil
}

// Worker фоновые повторы выплат и возвратов через asynq.
type Worker struct {
	Concurrency int           `env:"WORKER_CONCURRENCY" envDefault:"4"`
	MaxRetry    int           `env:"WORKER_MAX_RETRY" envDefault:"5"`
	RetryDelay  time.Duration `env:"WORKER_RETRY_DELAY" envDefault:"1m"`
}

func boundTimeout(d time.Duration) time.Duration {
	if d <= 0 || d > maxCollaboratorTimeout {
		return maxCollaboratorTimeout
	}
	return d
}

func boundRetry(maxRetries uint64) httpx.RetryPolicy {
	policy := httpx.DefaultRetryPolicy()
	policy.MaxRetries = min(maxRetries, maxCollaboratorRetries)
	return policy
}
