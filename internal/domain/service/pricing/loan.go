package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// LoanPolicy определяет долю цены предмета, выдаваемую владельцу.
type LoanPolicy interface {
	Coefficient(price decimal.Decimal) decimal.Decimal
}

// FixedLoanPolicy выдаёт одну и ту же долю для любой цены.
type FixedLoanPolicy struct {
	coefficient decimal.Decimal
}

func NewFixedLoanPolicy(coefficient decimal.Decimal) (FixedLoanPolicy, error) {
	if err := validateCoefficient(coefficient); err != nil {
		return FixedLoanPolicy{}, err
	}
	return FixedLoanPolicy{coefficient: coefficient}, nil
}

func (p FixedLoanPolicy) Coefficient(decimal.Decimal) decimal.Decimal {
	return p.coefficient
}

// LoanTier коэффициент для цен не выше UpTo. Пустой UpTo означает отсутствие верхней границы.
type LoanTier struct {
	UpTo        decimal.NullDecimal
	Coefficient decimal.Decimal
}

// TieredLoanPolicy выбирает коэффициент по ценовой ступени.
type TieredLoanPolicy struct {
	tiers []LoanTier
}

func NewTieredLoanPolicy(tiers []LoanTier) (TieredLoanPolicy, error) {
	if len(tiers) == 0 {
		return TieredLoanPolicy{}, fmt.Errorf("loan tiers are empty")
	}

	for i, t := range tiers {
		if err := validateCoefficient(t.Coefficient); err != nil {
			return TieredLoanPolicy{}, fmt.Errorf("tier %d: %w", i, err)
		}
		if !t.UpTo.Valid && i != len(tiers)-1 {
			return TieredLoanPolicy{}, fmt.Errorf("tier %d: only the last tier may be unbounded", i)
		}
		if i > 0 && t.UpTo.Valid && !t.UpTo.Decimal.GreaterThan(tiers[i-1].UpTo.Decimal) {
			return TieredLoanPolicy{}, fmt.Errorf("tier %d: bounds must increase", i)
		}
	}

	return TieredLoanPolicy{tiers: tiers}, nil
}

// ParseLoanTiers разбирает строку вида "500:0.60,5000:0.65,inf:0.70".
func ParseLoanTiers(s string) (TieredLoanPolicy, error) {
	var tiers []LoanTier

	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		bound, coef, ok := strings.Cut(part, ":")
		if !ok {
			return TieredLoanPolicy{}, fmt.Errorf("tier %q: want bound:coefficient", part)
		}

		var tier LoanTier

		if !strings.EqualFold(bound, "inf") {
			upTo, err := decimal.NewFromString(bound)
			if err != nil {
				return TieredLoanPolicy{}, fmt.Errorf("tier %q: bound: %w", part, err)
			}
			tier.UpTo = decimal.NewNullDecimal(upTo)
		}

		c, err := decimal.NewFromString(coef)
		if err != nil {
			return TieredLoanPolicy{}, fmt.Errorf("tier %q: coefficient: %w", part, err)
		}
		tier.Coefficient = c

		tiers = append(tiers, tier)
	}

	return NewTieredLoanPolicy(tiers)
}

func (p TieredLoanPolicy) Coefficient(price decimal.Decimal) decimal.Decimal {
	for _, t := range p.tiers {
		if !t.UpTo.Valid || price.LessThanOrEqual(t.UpTo.Decimal) {
			return t.Coefficient
		}
	}
	// цена выше последней ограниченной ступени
	return p.tiers[len(p.tiers)-1].Coefficient
}

func validateCoefficient(c decimal.Decimal) error {
	if !c.IsPositive() || c.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("coefficient %s must be in (0, 1]", c)
	}
	return nil
}
