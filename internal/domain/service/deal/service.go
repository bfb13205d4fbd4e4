package deal

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/shopspring/decimal"

	"cyberlombard/internal/domain/entity"
)

const defaultEventBuffer = 256

type Config struct {
	// KYCThreshold максимальная сумма займа без паспорта. Ноль означает,
	// что паспорт нужен всегда.
	KYCThreshold decimal.Decimal
	// TradeTimeout сколько PENDING сделка ждёт передачи предметов. Ноль
	// отключает автоматическую отмену.
	TradeTimeout time.Duration
	// SettlementGrace сколько после истечения опциона ждать подтверждения
	// уже созданного платежа выкупа.
	SettlementGrace time.Duration
	// ExpiryNotice за сколько до истечения опциона предупреждать операторов.
	ExpiryNotice time.Duration
	BatchSize    int
}

// Service владеет жизненным циклом сделки. Все переходы выполняются через
// Repository.Update, поэтому переходы одной сделки линейны, а разных
// сделок независимы.
type Service struct {
	repo     Repository
	pricer   Pricer
	payouts  PayoutGateway
	payments PaymentGateway
	trading  TradingAgent
	retries  RetryScheduler
	events   chan Event
	clock    clock.Clock
	cfg      Config
}

type Option func(*Service)

func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithRetryScheduler(r RetryScheduler) Option {
	return func(s *Service) { s.retries = r }
}

// WithEvents включает публикацию событий с буфером size.
func WithEvents(size int) Option {
	return func(s *Service) {
		if size <= 0 {
			size = defaultEventBuffer
		}
		s.events = make(chan Event, size)
	}
}

func NewService(
	repo Repository,
	pricer Pricer,
	payouts PayoutGateway,
	payments PaymentGateway,
	trading TradingAgent,
	cfg Config,
	opts ...Option,
) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}

	s := &Service{
		repo:     repo,
		pricer:   pricer,
		payouts:  payouts,
		payments: payments,
		trading:  trading,
		cfg:      cfg,
		clock:    clock.New(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Events канал уведомлений, nil если публикация не включена.
func (s *Service) Events() <-chan Event {
	return s.events
}

func (s *Service) Get(ctx context.Context, id string) (entity.Deal, error) {
	return s.repo.Get(ctx, id) //nolint:wrapcheck
}

func (s *Service) History(ctx context.Context, id string) ([]entity.StatusChange, error) {
	return s.repo.History(ctx, id) //nolint:wrapcheck
}

func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]entity.Deal, error) {
	return s.repo.ListByOwner(ctx, ownerID) //nolint:wrapcheck
}

func (s *Service) Stats(ctx context.Context) (entity.DealStats, error) {
	return s.repo.Stats(ctx) //nolint:wrapcheck
}
