package config_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"cyberlombard/internal/config"
	"cyberlombard/internal/domain/service/pricing"
)

func TestLoad_Defaults(t *testing.T) {
	rq := require.New(t)

	cfg, err := config.Load()
	rq.NoError(err)

	rq.False(cfg.Postgres.Enabled())
	rq.False(cfg.Redis.Enabled())
	rq.False(cfg.Payment.Enabled())
	rq.False(cfg.Trading.Enabled())
	rq.False(cfg.Bot.Enabled())

	rq.Equal(7, cfg.Pricing.MinTermDays)
	rq.Equal(30, cfg.Pricing.MaxTermDays)
	rq.True(decimal.RequireFromString("15000").Equal(cfg.Pricing.KYCThreshold))
	rq.True(decimal.RequireFromString("40").Equal(cfg.Pricing.MinAcceptable))
	rq.Equal(time.Hour, cfg.PriceSource.CacheTTL)
	rq.Equal(30*time.Second, cfg.PriceSource.FailureCooldown)
	rq.Equal(15*time.Minute, cfg.Sweeper.SettlementGrace)
	rq.Equal(48*time.Hour, cfg.Sweeper.TradeTimeout)

	rates, err := cfg.Pricing.RateTable()
	rq.NoError(err)
	rq.Len(rates.Tiers(), 4)

	loan, err := cfg.Pricing.Loan()
	rq.NoError(err)
	rq.IsType(pricing.FixedLoanPolicy{}, loan)
}

func TestLoad_Overrides(t *testing.T) {
	rq := require.New(t)

	t.Setenv("LOAN_POLICY", "tiered")
	t.Setenv("KYC_THRESHOLD", "0")
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("BOT_ADMIN_IDS", "1,2")
	t.Setenv("PAYMENT_TIMEOUT", "10m")
	t.Setenv("PAYMENT_MAX_RETRIES", "100")

	cfg, err := config.Load()
	rq.NoError(err)

	loan, err := cfg.Pricing.Loan()
	rq.NoError(err)
	rq.IsType(pricing.TieredLoanPolicy{}, loan)
	rq.True(cfg.Pricing.KYCThreshold.IsZero())

	rq.True(cfg.Bot.Enabled())
	rq.Equal([]int64{1, 2}, cfg.Bot.AdminIDs)

	rq.Equal(2*time.Minute, cfg.Payment.Client().Timeout)
	rq.Equal(uint64(5), cfg.Payment.Retry().MaxRetries)
}

func TestLoad_Invalid(t *testing.T) {
	testCases := []struct {
		name  string
		key   string
		value string
	}{
		{name: "zero sweep interval", key: "SWEEP_INTERVAL", value: "0s"},
		{name: "negative grace", key: "BUYBACK_SETTLEMENT_GRACE", value: "-1m"},
		{name: "bad decimal", key: "LOAN_COEFFICIENT", value: "forty"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)

			_, err := config.Load()
			require.Error(t, err)
		})
	}
}

func TestPricing_Loan_Invalid(t *testing.T) {
	testCases := []struct {
		name string
		cfg  config.Pricing
	}{
		{name: "unknown policy", cfg: config.Pricing{LoanPolicy: "progressive"}},
		{name: "fixed above one", cfg: config.Pricing{LoanPolicy: config.LoanPolicyFixed, LoanCoefficient: decimal.NewFromInt(2)}},
		{name: "tiered garbage", cfg: config.Pricing{LoanPolicy: config.LoanPolicyTiered, LoanTiers: "abc"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.cfg.Loan()
			require.Error(t, err)
		})
	}
}
