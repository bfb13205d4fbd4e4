package deal_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"cyberlombard/internal/domain"
	"cyberlombard/internal/domain/entity"
	"cyberlombard/internal/domain/service/deal"
	"cyberlombard/internal/domain/service/pricing"
	"cyberlombard/internal/domain/value"
	"cyberlombard/internal/infrastructure/persistence"
	"cyberlombard/internal/infrastructure/pricesource"
	"cyberlombard/pkg/errcodes"
)

const (
	redline  = "AK-47 | Redline (Field-Tested)"
	sandDune = "P250 | Sand Dune (Field-Tested)"
)

var start = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) //nolint:gochecknoglobals

type payoutStub struct {
	mu    sync.Mutex
	calls int32
	keys  []string
	err   error
	// rejected шлюз окончательно отклонил выплату
	rejected bool
	delay    time.Duration
}

func (p *payoutStub) Payout(_ context.Context, req entity.PayoutRequest) (entity.Payout, error) {
	n := atomic.AddInt32(&p.calls, 1)
	if p.delay > 0 {
		time.Sleep(p.delay)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.keys = append(p.keys, req.IdempotenceKey)
	if p.err != nil {
		if p.rejected {
			return entity.Payout{ID: fmt.Sprintf("po-%d", n), Status: entity.PaymentCanceled}, p.err
		}
		return entity.Payout{}, p.err
	}

	return entity.Payout{ID: fmt.Sprintf("po-%d", n), Status: entity.PaymentPending}, nil
}

func (p *payoutStub) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *payoutStub) Calls() int {
	return int(atomic.LoadInt32(&p.calls))
}

type paymentStub struct {
	mu       sync.Mutex
	payments map[string]entity.Payment
	created  int
	err      error
}

func (p *paymentStub) CreatePayment(_ context.Context, req entity.PaymentRequest) (entity.Payment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return entity.Payment{}, p.err
	}

	p.created++
	pay := entity.Payment{
		ID:              fmt.Sprintf("pay-%d", p.created),
		DealID:          req.DealID,
		Status:          entity.PaymentPending,
		Amount:          req.Amount,
		ConfirmationURL: "https://pay.example/" + req.DealID,
	}
	p.payments[pay.ID] = pay

	return pay, nil
}

func (p *paymentStub) GetPayment(_ context.Context, id string) (entity.Payment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return entity.Payment{}, p.err
	}

	pay, ok := p.payments[id]
	if !ok {
		return entity.Payment{}, domain.NewErrorf(errcodes.NotFound, "payment %s not found", id)
	}

	return pay, nil
}

// settle отмечает платёж оплаченным в момент paidAt.
func (p *paymentStub) settle(id string, paidAt time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pay := p.payments[id]
	pay.Status = entity.PaymentSucceeded
	pay.PaidAt = &paidAt
	p.payments[id] = pay
}

func (p *paymentStub) put(pay entity.Payment) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payments[pay.ID] = pay
}

type tradingStub struct {
	mu       sync.Mutex
	incoming int
	returns  int
	seq      int
	err      error
}

func (t *tradingStub) RequestIncoming(_ context.Context, req entity.TradeRequest) (entity.TradeOffer, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.err != nil {
		return entity.TradeOffer{}, t.err
	}

	t.incoming++
	t.seq++

	return entity.TradeOffer{OfferID: fmt.Sprintf("in-%d", t.seq), OfferURL: "https://trade/" + req.DealID}, nil
}

func (t *tradingStub) RequestReturn(_ context.Context, req entity.TradeRequest) (entity.TradeOffer, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.err != nil {
		return entity.TradeOffer{}, t.err
	}

	t.returns++
	t.seq++

	return entity.TradeOffer{OfferID: fmt.Sprintf("out-%d", t.seq), OfferURL: "https://trade/" + req.DealID}, nil
}

func (t *tradingStub) fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.err = err
}

type retryStub struct {
	mu      sync.Mutex
	payouts []string
	returns []string
}

func (r *retryStub) SchedulePayoutRetry(_ context.Context, dealID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payouts = append(r.payouts, dealID)
	return nil
}

func (r *retryStub) ScheduleReturnRetry(_ context.Context, dealID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.returns = append(r.returns, dealID)
	return nil
}

type offlineFetcher struct{}

func (offlineFetcher) Fetch(context.Context) (map[string]decimal.Decimal, error) {
	return nil, errors.New("offline")
}

type harness struct {
	svc      *deal.Service
	repo     *persistence.MemoryRepository
	cache    *pricesource.Cache
	clock    *clock.Mock
	payouts  *payoutStub
	payments *paymentStub
	trading  *tradingStub
	retries  *retryStub
}

func newHarness(t *testing.T, mutate ...func(*deal.Config)) *harness {
	t.Helper()

	mock := clock.NewMock()
	mock.Set(start)

	cache := pricesource.NewCache(offlineFetcher{}, 365*24*time.Hour, pricesource.WithClock(mock))
	cache.Set(pricesource.NewSnapshot(map[string]decimal.Decimal{
		redline:  decimal.NewFromInt(1000),
		sandDune: decimal.NewFromInt(10),
	}, mock.Now()))

	rates, err := pricing.ParseRateTable("7:0.10:0.05,14:0.15:0.07,21:0.20:0.09,30:0.25:0.10")
	require.NoError(t, err)
	loan, err := pricing.NewFixedLoanPolicy(decimal.RequireFromString("0.40"))
	require.NoError(t, err)

	aggregator := pricing.NewAggregator(cache, pricing.NewEstimator(), decimal.NewFromInt(40)).WithClock(mock)
	engine := pricing.NewEngine(rates, loan, 7, 30).WithClock(mock)

	cfg := deal.Config{
		KYCThreshold:    decimal.NewFromInt(15000),
		TradeTimeout:    48 * time.Hour,
		SettlementGrace: 15 * time.Minute,
		ExpiryNotice:    24 * time.Hour,
		BatchSize:       10,
	}
	for _, m := range mutate {
		m(&cfg)
	}

	h := &harness{
		repo:     persistence.NewMemoryRepository(),
		cache:    cache,
		clock:    mock,
		payouts:  &payoutStub{},
		payments: &paymentStub{payments: make(map[string]entity.Payment)},
		trading:  &tradingStub{},
		retries:  &retryStub{},
	}

	h.svc = deal.NewService(
		h.repo,
		pricing.NewService(aggregator, engine),
		h.payouts,
		h.payments,
		h.trading,
		cfg,
		deal.WithClock(mock),
		deal.WithRetryScheduler(h.retries),
		deal.WithEvents(64),
	)

	return h
}

func owner() value.Owner {
	return value.Owner{
		ID:                "u1",
		SteamID:           "76561198000000001",
		TradeURL:          "https://steamcommunity.com/tradeoffer/new/?partner=1",
		PayoutDestination: "+79990000000",
		PhoneVerified:     true,
	}
}

func pledged() value.Items {
	return value.Items{{AssetID: "a1", MarketHashName: redline, Rarity: "Classified"}}
}

func createRequest() deal.CreateRequest {
	return deal.CreateRequest{
		Items:         pledged(),
		TermDays:      14,
		LoanAmount:    decimal.NewFromInt(400),
		BuybackAmount: decimal.RequireFromString("492.20"),
		Owner:         owner(),
	}
}

func (h *harness) create(t *testing.T) entity.Deal {
	t.Helper()

	d, err := h.svc.Create(context.Background(), createRequest())
	require.NoError(t, err)

	return d
}

func (h *harness) activate(t *testing.T) entity.Deal {
	t.Helper()

	d := h.create(t)
	d, err := h.svc.ConfirmCustody(context.Background(), d.ID, pledged())
	require.NoError(t, err)
	require.Equal(t, entity.DealStatusActive, d.Status)

	return d
}

func (h *harness) events() []deal.EventKind {
	var kinds []deal.EventKind
	for {
		select {
		case e := <-h.svc.Events():
			kinds = append(kinds, e.Kind)
		default:
			return kinds
		}
	}
}

func TestCreate(t *testing.T) {
	rq := require.New(t)
	h := newHarness(t)

	d := h.create(t)

	rq.Equal(entity.DealStatusPending, d.Status)
	rq.Equal("1000", d.MarketTotal.String())
	rq.Equal("400", d.LoanAmount.String())
	rq.Equal("492.2", d.BuybackPrice.String())
	rq.Equal(start.Add(14*24*time.Hour), d.OptionExpiry)
	rq.Len(d.Items, 1)
	rq.Equal("a1", d.Items[0].AssetID)

	rq.Len(d.Trades, 1)
	rq.Equal(entity.TradeIncoming, d.Trades[0].Direction)
	rq.Equal(entity.TradeStatusSent, d.Trades[0].Status)
	rq.Equal(1, h.trading.incoming)

	rq.Equal([]deal.EventKind{deal.EventCreated}, h.events())
}

func TestCreate_FrozenAgainstPriceChanges(t *testing.T) {
	rq := require.New(t)
	h := newHarness(t)
	ctx := context.Background()

	created := h.create(t)

	h.cache.Set(pricesource.NewSnapshot(map[string]decimal.Decimal{redline: decimal.NewFromInt(5000)}, h.clock.Now()))

	// новая цена уже действует для новых котировок
	_, err := h.svc.Create(ctx, createRequest())
	rq.True(domain.IsCode(err, errcodes.QuoteMismatch))

	stored, err := h.svc.Get(ctx, created.ID)
	rq.NoError(err)
	rq.Equal("400", stored.LoanAmount.String())
	rq.Equal("492.2", stored.BuybackPrice.String())
	rq.Equal("1000", stored.MarketTotal.String())
	rq.Equal("1000", stored.Items[0].AcceptancePrice.String())
}

func TestCreate_Errors(t *testing.T) {
	testCases := []struct {
		name     string
		mutate   func(*deal.CreateRequest)
		cfg      func(*deal.Config)
		wantCode string
	}{
		{
			name:     "owner without verified phone",
			mutate:   func(r *deal.CreateRequest) { r.Owner.PhoneVerified = false },
			wantCode: string(errcodes.OwnerNotVerified),
		},
		{
			name:     "stale loan amount",
			mutate:   func(r *deal.CreateRequest) { r.LoanAmount = decimal.NewFromInt(450) },
			wantCode: string(errcodes.QuoteMismatch),
		},
		{
			name:     "stale buy-back amount",
			mutate:   func(r *deal.CreateRequest) { r.BuybackAmount = decimal.NewFromInt(480) },
			wantCode: string(errcodes.QuoteMismatch),
		},
		{
			name:     "term below minimum",
			mutate:   func(r *deal.CreateRequest) { r.TermDays = 3 },
			wantCode: string(errcodes.InvalidTerm),
		},
		{
			name: "only cheap items",
			mutate: func(r *deal.CreateRequest) {
				r.Items = value.Items{{AssetID: "c1", MarketHashName: sandDune}}
			},
			wantCode: string(errcodes.NoAcceptableItems),
		},
		{
			name:     "amount above kyc threshold",
			cfg:      func(c *deal.Config) { c.KYCThreshold = decimal.NewFromInt(100) },
			wantCode: string(errcodes.KYCRequired),
		},
		{
			name:     "zero threshold always requires passport",
			cfg:      func(c *deal.Config) { c.KYCThreshold = decimal.Zero },
			wantCode: string(errcodes.KYCRequired),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rq := require.New(t)

			var mutators []func(*deal.Config)
			if tc.cfg != nil {
				mutators = append(mutators, tc.cfg)
			}
			h := newHarness(t, mutators...)

			req := createRequest()
			if tc.mutate != nil {
				tc.mutate(&req)
			}

			_, err := h.svc.Create(context.Background(), req)
			rq.Error(err)

			code, ok := domain.GetCode(err)
			rq.True(ok)
			rq.Equal(tc.wantCode, code.String())
			rq.Zero(h.trading.incoming)
		})
	}
}

func TestCreate_PassportLiftsThreshold(t *testing.T) {
	rq := require.New(t)
	h := newHarness(t, func(c *deal.Config) { c.KYCThreshold = decimal.Zero })

	req := createRequest()
	req.Owner.PassportVerified = true

	d, err := h.svc.Create(context.Background(), req)
	rq.NoError(err)
	rq.Equal(entity.DealStatusPending, d.Status)
}

func TestCreate_TradingAgentDown(t *testing.T) {
	rq := require.New(t)
	h := newHarness(t)
	ctx := context.Background()

	h.trading.fail(domain.NewError(errcodes.UpstreamUnavailable, "agent is down"))

	d, err := h.svc.Create(ctx, createRequest())
	rq.NoError(err)
	rq.Equal(entity.DealStatusPending, d.Status)
	rq.Empty(d.Trades)
	rq.Equal([]deal.EventKind{deal.EventCreated, deal.EventTradeFailed}, h.events())

	_, err = h.svc.RequestTransfer(ctx, d.ID)
	rq.True(domain.IsCode(err, errcodes.UpstreamUnavailable))

	h.trading.fail(nil)

	trade, err := h.svc.RequestTransfer(ctx, d.ID)
	rq.NoError(err)
	rq.Equal(entity.TradeIncoming, trade.Direction)

	_, err = h.svc.RequestTransfer(ctx, d.ID)
	rq.True(domain.IsCode(err, errcodes.InvalidTransition))
}

func TestConfirmCustody_Idempotent(t *testing.T) {
	rq := require.New(t)
	h := newHarness(t)
	ctx := context.Background()

	d := h.create(t)

	first, err := h.svc.ConfirmCustody(ctx, d.ID, pledged())
	rq.NoError(err)
	rq.Equal(entity.DealStatusActive, first.Status)
	rq.Equal(entity.PayoutPaid, first.PayoutState)
	rq.Equal("po-1", first.PayoutID)

	second, err := h.svc.ConfirmCustody(ctx, d.ID, pledged())
	rq.NoError(err)
	rq.Equal(entity.DealStatusActive, second.Status)
	rq.Equal("po-1", second.PayoutID)

	rq.Equal(1, h.payouts.Calls())
}

func TestConfirmCustody_ConcurrentDuplicates(t *testing.T) {
	rq := require.New(t)
	h := newHarness(t)
	h.payouts.delay = 10 * time.Millisecond

	d := h.create(t)

	var wg sync.WaitGroup
	errs := make(chan error, 16)

	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.ConfirmCustody(context.Background(), d.ID, pledged())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		rq.NoError(err)
	}

	rq.Equal(1, h.payouts.Calls())

	stored, err := h.svc.Get(context.Background(), d.ID)
	rq.NoError(err)
	rq.Equal(entity.DealStatusActive, stored.Status)
	rq.Equal(entity.PayoutPaid, stored.PayoutState)
}

func TestConfirmCustody_Rejected(t *testing.T) {
	testCases := []struct {
		name  string
		prep  func(t *testing.T, h *harness, id string)
		items value.Items
	}{
		{
			name:  "different items",
			items: value.Items{{AssetID: "other", MarketHashName: redline}},
		},
		{
			name:  "missing items",
			items: nil,
		},
		{
			name: "cancelled deal",
			prep: func(t *testing.T, h *harness, id string) {
				_, err := h.svc.Cancel(context.Background(), id)
				require.NoError(t, err)
			},
			items: pledged(),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rq := require.New(t)
			h := newHarness(t)

			d := h.create(t)
			if tc.prep != nil {
				tc.prep(t, h, d.ID)
			}

			_, err := h.svc.ConfirmCustody(context.Background(), d.ID, tc.items)
			rq.True(domain.IsCode(err, errcodes.InvalidTransition))
			rq.Zero(h.payouts.Calls())
		})
	}
}

func TestConfirmCustody_UnknownDeal(t *testing.T) {
	rq := require.New(t)
	h := newHarness(t)

	_, err := h.svc.ConfirmCustody(context.Background(), "missing", pledged())
	rq.True(domain.IsCode(err, errcodes.DealNotFound))
}

func TestConfirmCustody_PayoutFailure(t *testing.T) {
	rq := require.New(t)
	h := newHarness(t)
	ctx := context.Background()

	h.payouts.fail(domain.NewError(errcodes.UpstreamUnavailable, "gateway timeout"))

	d := h.create(t)
	h.events()

	d, err := h.svc.ConfirmCustody(ctx, d.ID, pledged())
	rq.NoError(err)
	rq.Equal(entity.DealStatusActive, d.Status)
	rq.Equal(entity.PayoutFailed, d.PayoutState)
	rq.Empty(d.PayoutID)
	rq.NotEmpty(d.PayoutError)
	rq.Equal([]string{d.ID}, h.retries.payouts)
	rq.Equal([]deal.EventKind{deal.EventActivated, deal.EventPayoutFailed}, h.events())

	h.payouts.fail(nil)

	d, err = h.svc.RetryPayout(ctx, d.ID)
	rq.NoError(err)
	rq.Equal(entity.PayoutPaid, d.PayoutState)
	rq.Equal("po-2", d.PayoutID)

	rq.Len(h.payouts.keys, 2)
	rq.Equal(h.payouts.keys[0], h.payouts.keys[1])

	_, err = h.svc.RetryPayout(ctx, d.ID)
	rq.True(domain.IsCode(err, errcodes.InvalidTransition))
	rq.Equal(2, h.payouts.Calls())
}

func TestRetryPayout_AfterRejectionUsesNewKey(t *testing.T) {
	rq := require.New(t)
	h := newHarness(t)
	ctx := context.Background()

	h.payouts.rejected = true
	h.payouts.fail(domain.NewError(errcodes.UpstreamUnavailable, "insufficient_funds"))

	d := h.activate(t)
	rq.Equal(entity.PayoutFailed, d.PayoutState)

	_, err := h.svc.RetryPayout(ctx, d.ID)
	rq.True(domain.IsCode(err, errcodes.UpstreamUnavailable))

	h.payouts.fail(nil)

	d, err = h.svc.RetryPayout(ctx, d.ID)
	rq.NoError(err)
	rq.Equal(entity.PayoutPaid, d.PayoutState)

	rq.Len(h.payouts.keys, 3)
	rq.NotEqual(h.payouts.keys[0], h.payouts.keys[1])
	rq.NotEqual(h.payouts.keys[1], h.payouts.keys[2])
}

func TestCancel(t *testing.T) {
	rq := require.New(t)
	h := newHarness(t)
	ctx := context.Background()

	pending := h.create(t)

	d, err := h.svc.Cancel(ctx, pending.ID)
	rq.NoError(err)
	rq.Equal(entity.DealStatusCancelled, d.Status)
	rq.NotNil(d.ClosedAt)

	trade, err := h.repo.TradeByOffer(ctx, pending.Trades[0].OfferID)
	rq.NoError(err)
	rq.Equal(entity.TradeStatusCancelled, trade.Status)

	_, err = h.svc.Cancel(ctx, pending.ID)
	rq.True(domain.IsCode(err, errcodes.InvalidTransition))

	active := h.activate(t)
	_, err = h.svc.Cancel(ctx, active.ID)
	rq.True(domain.IsCode(err, errcodes.InvalidTransition))
}

func TestHistoryAndStats(t *testing.T) {
	rq := require.New(t)
	h := newHarness(t)
	ctx := context.Background()

	d := h.activate(t)
	h.create(t)

	history, err := h.svc.History(ctx, d.ID)
	rq.NoError(err)
	rq.Len(history, 1)
	rq.Equal(entity.DealStatusPending, history[0].From)
	rq.Equal(entity.DealStatusActive, history[0].To)
	rq.Equal(string(entity.EventCustodyConfirmed), history[0].Reason)

	stats, err := h.svc.Stats(ctx)
	rq.NoError(err)
	rq.Equal(2, stats.Total)
	rq.Equal(1, stats.ByStatus[entity.DealStatusActive])
	rq.Equal(1, stats.ByStatus[entity.DealStatusPending])
	rq.Equal("400", stats.LoanedVolume.String())

	owned, err := h.svc.ListByOwner(ctx, "u1")
	rq.NoError(err)
	rq.Len(owned, 2)
}
