package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"cyberlombard/internal/domain/service/pricing"
)

const (
	LoanPolicyFixed  = "fixed"
	LoanPolicyTiered = "tiered"
)

type Pricing struct {
	MinTermDays     int             `env:"MIN_TERM_DAYS" envDefault:"7"`
	MaxTermDays     int             `env:"MAX_TERM_DAYS" envDefault:"30"`
	BuybackTerms    string          `env:"BUYBACK_TERMS" envDefault:"7:0.10:0.05,14:0.15:0.07,21:0.20:0.09,30:0.25:0.10"`
	LoanPolicy      string          `env:"LOAN_POLICY" envDefault:"fixed"`
	LoanCoefficient decimal.Decimal `env:"LOAN_COEFFICIENT" envDefault:"0.40"`
	LoanTiers       string          `env:"LOAN_TIERS" envDefault:"500:0.60,5000:0.65,inf:0.70"`
	MinAcceptable   decimal.Decimal `env:"MIN_ACCEPTABLE_PRICE" envDefault:"40"`
	// KYCThreshold ноль означает, что паспорт нужен всегда
	KYCThreshold decimal.Decimal `env:"KYC_THRESHOLD" envDefault:"15000"`
}

func (p Pricing) RateTable() (pricing.RateTable, error) {
	rates, err := pricing.ParseRateTable(p.BuybackTerms)
	if err != nil {
		return pricing.RateTable{}, fmt.Errorf("BUYBACK_TERMS: %w", err)
	}
	return rates, nil
}

func (p Pricing) Loan() (pricing.LoanPolicy, error) {
	switch p.LoanPolicy {
	case LoanPolicyFixed:
		policy, err := pricing.NewFixedLoanPolicy(p.LoanCoefficient)
		if err != nil {
			return nil, fmt.Errorf("LOAN_COEFFICIENT: %w", err)
		}
		return policy, nil
	case LoanPolicyTiered:
		policy, err := pricing.ParseLoanTiers(p.LoanTiers)
		if err != nil {
			return nil, fmt.Errorf("LOAN_TIERS: %w", err)
		}
		return policy, nil
	default:
		return nil, fmt.Errorf("LOAN_POLICY: unknown policy %q", p.LoanPolicy)
	}
}

// PriceSource таблица рыночных цен. Без URL цены читаются из файла.
type PriceSource struct {
	URL        string          `env:"PRICE_SOURCE_URL"`
	Path       string          `env:"PRICE_SOURCE_PATH" envDefault:"/api/v1/prices"`
	APIKey     string          `env:"PRICE_SOURCE_API_KEY" json:"-"`
	File       string          `env:"PRICE_SOURCE_FILE" envDefault:"prices.json"`
	Markup     decimal.Decimal `env:"PRICE_MARKUP" envDefault:"1"`
	CacheTTL   time.Duration   `env:"PRICE_CACHE_TTL" envDefault:"1h"`
	Timeout    time.Duration   `env:"PRICE_SOURCE_TIMEOUT" envDefault:"60s"`
	MaxRetries uint64          `env:"PRICE_SOURCE_MAX_RETRIES" envDefault:"2"`

	// FailureCooldown сколько после отказа источника котировки считаются по оценке
	FailureCooldown time.Duration `env:"PRICE_SOURCE_FAILURE_COOLDOWN" envDefault:"30s"`
}
