package httpx

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy ограничивает повторы вызова внешнего сервиса.
type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      3, //nolint:mnd
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}
}

// Retry выполняет op с экспоненциальной задержкой, пока op не вернёт nil,
// постоянную ошибку или не исчерпается лимит повторов.
func Retry(ctx context.Context, policy RetryPolicy, op func() error) error {
	b := backoff.NewExponentialBackOff()
	if policy.InitialInterval > 0 {
		b.InitialInterval = policy.InitialInterval
	}
	if policy.MaxInterval > 0 {
		b.MaxInterval = policy.MaxInterval
	}
	b.MaxElapsedTime = 0

	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, policy.MaxRetries), ctx)) //nolint:wrapcheck
}

// Permanent помечает ошибку как не подлежащую повтору.
func Permanent(err error) error {
	return backoff.Permanent(err) //nolint:wrapcheck
}
