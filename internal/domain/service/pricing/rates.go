package pricing

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"cyberlombard/internal/domain/entity"
)

// RateTier ставки для срока Days.
type RateTier struct {
	Days     int
	Interest decimal.Decimal
	Premium  decimal.Decimal
}

// RateTable упорядоченная по срокам таблица ставок выкупа.
type RateTable struct {
	tiers []RateTier
}

func NewRateTable(tiers []RateTier) (RateTable, error) {
	if len(tiers) == 0 {
		return RateTable{}, fmt.Errorf("rate table is empty")
	}

	sorted := slices.Clone(tiers)
	slices.SortFunc(sorted, func(a, b RateTier) int { return a.Days - b.Days })

	for i, t := range sorted {
		if t.Days <= 0 {
			return RateTable{}, fmt.Errorf("tier %d: days must be positive", t.Days)
		}
		if t.Interest.IsNegative() || t.Premium.IsNegative() {
			return RateTable{}, fmt.Errorf("tier %d: rates must not be negative", t.Days)
		}
		if i > 0 && sorted[i-1].Days == t.Days {
			return RateTable{}, fmt.Errorf("tier %d: duplicated", t.Days)
		}
	}

	return RateTable{tiers: sorted}, nil
}

// ParseRateTable разбирает строку вида "7:0.10:0.05,14:0.15:0.07".
func ParseRateTable(s string) (RateTable, error) {
	var tiers []RateTier

	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		fields := strings.Split(part, ":")
		if len(fields) != 3 { //nolint:mnd
			return RateTable{}, fmt.Errorf("tier %q: want days:interest:premium", part)
		}

		days, err := strconv.Atoi(fields[0])
		if err != nil {
			return RateTable{}, fmt.Errorf("tier %q: days: %w", part, err)
		}

		interest, err := decimal.NewFromString(fields[1])
		if err != nil {
			return RateTable{}, fmt.Errorf("tier %q: interest: %w", part, err)
		}

		premium, err := decimal.NewFromString(fields[2])
		if err != nil {
			return RateTable{}, fmt.Errorf("tier %q: premium: %w", part, err)
		}

		tiers = append(tiers, RateTier{Days: days, Interest: interest, Premium: premium})
	}

	return NewRateTable(tiers)
}

func (r RateTable) Tiers() []RateTier {
	return slices.Clone(r.tiers)
}

// Resolve возвращает ставки для срока days. Точное совпадение берётся как
// есть, между соседними ступенями interest и premium интерполируются
// линейно и независимо, за пределами таблицы прижимаются к крайней ступени.
func (r RateTable) Resolve(days decimal.Decimal) entity.TermRate {
	first, last := r.tiers[0], r.tiers[len(r.tiers)-1]

	if days.LessThanOrEqual(decimal.NewFromInt(int64(first.Days))) {
		return first.rate()
	}
	if days.GreaterThanOrEqual(decimal.NewFromInt(int64(last.Days))) {
		return last.rate()
	}

	for i := 1; i < len(r.tiers); i++ {
		lower, upper := r.tiers[i-1], r.tiers[i]
		upperDays := decimal.NewFromInt(int64(upper.Days))

		if days.Equal(upperDays) {
			return upper.rate()
		}
		if days.GreaterThan(upperDays) {
			continue
		}

		lowerDays := decimal.NewFromInt(int64(lower.Days))
		ratio := days.Sub(lowerDays).Div(upperDays.Sub(lowerDays))

		return entity.TermRate{
			Interest: lerp(lower.Interest, upper.Interest, ratio),
			Premium:  lerp(lower.Premium, upper.Premium, ratio),
		}
	}

	return last.rate()
}

// ResolveDays Resolve для целого числа дней.
func (r RateTable) ResolveDays(days int) entity.TermRate {
	return r.Resolve(decimal.NewFromInt(int64(days)))
}

func (t RateTier) rate() entity.TermRate {
	return entity.TermRate{Interest: t.Interest, Premium: t.Premium}
}

func lerp(a, b, ratio decimal.Decimal) decimal.Decimal {
	return a.Add(b.Sub(a).Mul(ratio))
}
