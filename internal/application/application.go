package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/benbjohnson/clock"
	"github.com/go-chi/chi/v5"
	"github.com/go-resty/resty/v2"
	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"cyberlombard/internal/config"
	"cyberlombard/internal/domain/service/deal"
	"cyberlombard/internal/domain/service/pricing"
	"cyberlombard/internal/infrastructure/notifier"
	"cyberlombard/internal/infrastructure/payment"
	"cyberlombard/internal/infrastructure/persistence"
	"cyberlombard/internal/infrastructure/pricesource"
	"cyberlombard/internal/infrastructure/trading"
	"cyberlombard/internal/server"
	"cyberlombard/internal/transport/bot"
	"cyberlombard/internal/worker"
	"cyberlombard/pkg/application/connectors"
	"cyberlombard/pkg/application/modules"
	"cyberlombard/pkg/contextx"
	"cyberlombard/pkg/httpx"
	"cyberlombard/pkg/logx"
	"cyberlombard/pkg/middlewarex"
)

var logger = contextx.LoggerFromContextOrDefault //nolint:gochecknoglobals

const eventBuffer = 256

// Application собирает сервисы сделок и их окружение по конфигурации.
// Незаданные внешние зависимости заменяются dev реализациями.
type Application struct {
	cfg   config.Config
	clock clock.Clock
	mask  logx.SensitiveDataMaskerInterface

	postgres *connectors.Postgres
	redis    *connectors.Redis
	asynq    *asynq.Client

	prices  *pricesource.Cache
	Pricing *pricing.Service
	Deals   *deal.Service
	Sweeper *worker.Sweeper
}

func New(ctx context.Context, cfg config.Config) (*Application, error) {
	a := &Application{
		cfg:   cfg,
		clock: clock.New(),
		mask:  logx.NewSensitiveDataMasker(),
	}

	if cfg.Redis.Enabled() {
		a.redis = &connectors.Redis{
			Address:            cfg.Redis.Address,
			Username:           cfg.Redis.Username,
			Password:           cfg.Redis.Password,
			DatabaseNumber:     cfg.Redis.DatabaseNumber,
			PoolSize:           cfg.Redis.PoolSize,
			MinIdleConnections: cfg.Redis.MinIdleConnections,
			MaxIdleConnections: cfg.Redis.MaxIdleConnections,
		}
	}

	var err error
	if a.Pricing, err = a.newPricing(ctx); err != nil {
		return nil, err
	}

	opts := []deal.Option{deal.WithClock(a.clock)}
	if cfg.Bot.Enabled() && cfg.Bot.ChatID != 0 {
		opts = append(opts, deal.WithEvents(eventBuffer))
	}
	if a.redis != nil {
		a.asynq = asynq.NewClient(a.asynqRedis())
		opts = append(opts, deal.WithRetryScheduler(
			worker.NewAsynqScheduler(a.asynq, cfg.Worker.MaxRetry, cfg.Worker.RetryDelay),
		))
	}

	payments, payouts := a.newPaymentGateway()

	a.Deals = deal.NewService(
		a.newRepository(ctx),
		a.Pricing,
		payouts,
		payments,
		a.newTradingAgent(),
		deal.Config{
			KYCThreshold:    cfg.Pricing.KYCThreshold,
			TradeTimeout:    cfg.Sweeper.TradeTimeout,
			SettlementGrace: cfg.Sweeper.SettlementGrace,
			ExpiryNotice:    cfg.Sweeper.ExpiryNotice,
			BatchSize:       cfg.Sweeper.BatchSize,
		},
		opts...,
	)

	a.Sweeper = worker.NewSweeper(a.Deals, cfg.Sweeper.Interval).WithClock(a.clock)

	return a, nil
}

// NewEngine собирает калькулятор займа из настроек ставок.
func NewEngine(cfg config.Pricing) (*pricing.Engine, error) {
	rates, err := cfg.RateTable()
	if err != nil {
		return nil, err
	}

	loan, err := cfg.Loan()
	if err != nil {
		return nil, err
	}

	return pricing.NewEngine(rates, loan, cfg.MinTermDays, cfg.MaxTermDays), nil
}

func (a *Application) newPricing(ctx context.Context) (*pricing.Service, error) {
	engine, err := NewEngine(a.cfg.Pricing)
	if err != nil {
		return nil, err
	}

	cacheOpts := []pricesource.CacheOption{
		pricesource.WithClock(a.clock),
		pricesource.WithRefreshTimeout(a.cfg.PriceSource.Timeout),
		pricesource.WithFailureCooldown(a.cfg.PriceSource.FailureCooldown),
	}
	if a.redis != nil {
		cacheOpts = append(cacheOpts, pricesource.WithStore(
			pricesource.NewRedisStore(a.redis.Client(ctx), a.cfg.PriceSource.CacheTTL),
		))
	}

	if a.cfg.PriceSource.URL != "" {
		source := pricesource.NewHTTPSource(
			a.restyClient(a.cfg.PriceSource.Client(), a.cfg.PriceSource.APIKey),
			a.cfg.PriceSource.Path,
			a.cfg.PriceSource.Retry(),
		).WithMarkup(a.cfg.PriceSource.Markup)
		a.prices = pricesource.NewCache(source, a.cfg.PriceSource.CacheTTL, cacheOpts...)
	} else {
		logger(ctx).Warn("PRICE_SOURCE_URL is not set, prices are read from file",
			slog.String("path", a.cfg.PriceSource.File))
		a.prices = pricesource.NewCache(pricesource.NewFileSource(a.cfg.PriceSource.File), a.cfg.PriceSource.CacheTTL, cacheOpts...)
	}

	if err := a.prices.Warm(ctx); err != nil {
		logger(ctx).Warn("price snapshot is not restored", logx.Error(err))
	}

	aggregator := pricing.NewAggregator(a.prices, pricing.NewEstimator(), a.cfg.Pricing.MinAcceptable).WithClock(a.clock)

	return pricing.NewService(aggregator, engine.WithClock(a.clock)), nil
}

func (a *Application) newRepository(ctx context.Context) deal.Repository {
	if !a.cfg.Postgres.Enabled() {
		logger(ctx).Warn("PG_DSN is not set, deals are kept in memory")
		return persistence.NewMemoryRepository()
	}

	a.postgres = &connectors.Postgres{
		DSN:             a.cfg.Postgres.DSN,
		MaxOpenConns:    a.cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    a.cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: a.cfg.Postgres.ConnMaxLifetime,
	}

	return persistence.NewDealRepository(a.postgres.Client(ctx))
}

func (a *Application) newPaymentGateway() (deal.PaymentGateway, deal.PayoutGateway) {
	if !a.cfg.Payment.Enabled() {
		dev := payment.NewDevGateway(a.clock)
		return dev, dev
	}

	client := payment.NewClient(
		a.restyClient(a.cfg.Payment.Client(), ""),
		a.cfg.Payment.ShopID,
		a.cfg.Payment.SecretKey,
		a.cfg.Payment.Retry(),
	)

	return client, client
}

func (a *Application) newTradingAgent() deal.TradingAgent {
	if !a.cfg.Trading.Enabled() {
		return trading.NewDevAgent()
	}

	return trading.NewClient(
		a.restyClient(a.cfg.Trading.Client(), a.cfg.Trading.Token),
		rate.NewLimiter(rate.Limit(a.cfg.Trading.RatePerSec), a.cfg.Trading.Burst),
		a.cfg.Trading.Retry(),
	)
}

func (a *Application) restyClient(cfg httpx.ClientConfig, token string) *resty.Client {
	var transport http.RoundTripper = http.DefaultTransport
	if token != "" {
		transport = httpx.NewAuthBearerRoundTripper(transport, httpx.StaticToken(token))
	}

	return httpx.NewRestyClientWithTransport(cfg, transport,
		httpx.WithSensitiveDataMasker(a.mask),
		httpx.WithLogFieldMaxLen(a.cfg.HTTP.LogFieldMaxLen),
	)
}

func (a *Application) asynqRedis() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     a.cfg.Redis.Address,
		Username: a.cfg.Redis.Username,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DatabaseNumber,
	}
}

// Serve запускает HTTP API, служебные серверы, планировщик просрочек,
// уведомления и бота операторов.
func (a *Application) Serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	router := chi.NewRouter()
	router.Use(
		middlewarex.Recovery,
		middlewarex.TraceID,
		middlewarex.RequestLogging(a.mask, a.cfg.HTTP.LogFieldMaxLen),
		middlewarex.ResponseLogging(a.mask, a.cfg.HTTP.LogFieldMaxLen),
	)

	server.NewServer(
		server.NewQuoteServer(a.Pricing),
		server.NewDealServer(a.Deals),
		server.NewWebhookServer(a.Deals),
		server.NewAdminServer(a.Deals, a.clock),
		server.Tokens{Admin: a.cfg.HTTP.AdminToken, Webhook: a.cfg.HTTP.WebhookToken},
	).RegisterRoutes(router)

	modules.HTTPServer{ShutdownTimeout: a.cfg.HTTP.ShutdownTimeout}.Run(ctx, g, &http.Server{
		Addr:              a.cfg.HTTP.ListenAddress,
		Handler:           router,
		ReadHeaderTimeout: a.cfg.HTTP.ReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	})
	a.runServiceServers(ctx, g)

	a.prices.Prime(ctx)

	if err := a.Sweeper.Start(ctx); err != nil {
		return fmt.Errorf("sweeper.Start: %w", err)
	}
	defer a.Sweeper.Stop()

	if err := a.runNotifier(ctx, g); err != nil {
		return err
	}

	if a.cfg.Bot.Enabled() && len(a.cfg.Bot.AdminIDs) > 0 {
		adminBot, err := bot.New(ctx, a.cfg.Bot, a.Deals, a.Sweeper)
		if err != nil {
			return fmt.Errorf("bot.New: %w", err)
		}
		g.Go(func() error { return ignoreCanceled(adminBot.Run(ctx)) })
	}

	return g.Wait() //nolint:wrapcheck
}

// Work обрабатывает фоновые повторы выплат и возвратов из очереди asynq.
func (a *Application) Work(ctx context.Context) error {
	if a.redis == nil {
		return fmt.Errorf("worker requires REDIS_ADDRESS")
	}

	g, ctx := errgroup.WithContext(ctx)

	a.runServiceServers(ctx, g)

	if err := a.runNotifier(ctx, g); err != nil {
		return err
	}

	modules.AsynqServer{
		RedisUsername: a.cfg.Redis.Username,
		RedisPassword: a.cfg.Redis.Password,
		RedisAddress:  a.cfg.Redis.Address,
		RedisDB:       a.cfg.Redis.DatabaseNumber,
		Concurrency:   a.cfg.Worker.Concurrency,
	}.Run(ctx, g, modules.AsynqQueues{worker.QueueRetries: 1}, worker.NewRetryHandlers(a.Deals).Handlers()...)

	return g.Wait() //nolint:wrapcheck
}

// SweepOnce выполняет один проход планировщика и завершается.
func (a *Application) SweepOnce(ctx context.Context) (worker.Pass, error) {
	return a.Sweeper.RunOnce(ctx) //nolint:wrapcheck
}

func (a *Application) runServiceServers(ctx context.Context, g *errgroup.Group) {
	modules.ProbeServer{
		Name:          a.cfg.App.Name,
		Version:       a.cfg.App.Version,
		ListenAddress: a.cfg.HTTP.ProbeListenAddress,
	}.Run(ctx, g)

	modules.MetricServer{ListenAddress: a.cfg.HTTP.MetricsListenAddress}.Run(ctx, g)
}

func (a *Application) runNotifier(ctx context.Context, g *errgroup.Group) error {
	events := a.Deals.Events()
	if events == nil {
		return nil
	}

	alertBot, err := notifier.NewTelegramBot(a.cfg.Bot.Token, a.cfg.Bot.ChatID)
	if err != nil {
		return fmt.Errorf("notifier.NewTelegramBot: %w", err)
	}

	g.Go(func() error {
		logger(ctx).Info("deal notifier started")
		return ignoreCanceled(alertBot.Run(ctx, events))
	})

	return nil
}

// Close освобождает подключения.
func (a *Application) Close(ctx context.Context) {
	if a.asynq != nil {
		if err := a.asynq.Close(); err != nil {
			logger(ctx).Error("asynqClient.Close", logx.Error(err))
		}
	}
	if a.redis != nil {
		a.redis.Close(ctx)
	}
	if a.postgres != nil {
		a.postgres.Close(ctx)
	}
}

func ignoreCanceled(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
