package pricing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"cyberlombard/internal/domain/entity"
	"cyberlombard/internal/domain/service/pricing"
	"cyberlombard/internal/domain/value"
)

type fixedSource struct {
	prices     map[string]decimal.Decimal
	observedAt time.Time
	err        error
	calls      int
	lastNames  []string
}

func (f *fixedSource) Lookup(_ context.Context, names []string) (map[string]decimal.Decimal, time.Time, error) {
	f.calls++
	f.lastNames = names

	if f.err != nil {
		return nil, time.Time{}, f.err
	}

	out := make(map[string]decimal.Decimal, len(names))
	for _, n := range names {
		if p, ok := f.prices[n]; ok {
			out[n] = p
		}
	}

	return out, f.observedAt, nil
}

func TestAggregatorGetPrices(t *testing.T) {
	rq := require.New(t)

	snapshotAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	mock := clock.NewMock()
	mock.Set(snapshotAt.Add(time.Hour))

	source := &fixedSource{
		prices: map[string]decimal.Decimal{
			"AK-47 | Redline (Field-Tested)": d("1000"),
			"MP9 | Sand Dashed (Well-Worn)":  d("12.50"),
			"AWP | Asiimov (Field-Tested)":   decimal.Zero,
		},
		observedAt: snapshotAt,
	}

	agg := pricing.NewAggregator(source, pricing.NewEstimator(), d("40")).WithClock(mock)

	items := value.Items{
		{AssetID: "1", MarketHashName: "AK-47 | Redline (Field-Tested)"},
		{AssetID: "2", MarketHashName: "AK-47 | Redline (Field-Tested)"},
		{AssetID: "3", MarketHashName: "MP9 | Sand Dashed (Well-Worn)"},
		{AssetID: "4", MarketHashName: "AWP | Asiimov (Field-Tested)", Rarity: "Covert"},
		{AssetID: "5", MarketHashName: "Glock-18 | Fade (Factory New)"},
	}

	got := agg.GetPrices(context.Background(), items)

	rq.Equal(1, source.calls)
	rq.Len(source.lastNames, 4)
	rq.Len(got, 4)

	ak := got["AK-47 | Redline (Field-Tested)"]
	rq.True(ak.Acceptable)
	rq.Equal(entity.ValuationMarket, ak.Source)
	rq.True(d("1000").Equal(ak.AcceptancePrice))
	rq.Equal(snapshotAt, ak.ObservedAt)

	mp9 := got["MP9 | Sand Dashed (Well-Worn)"]
	rq.False(mp9.Acceptable)
	rq.Equal(entity.ValuationMarket, mp9.Source)

	// нулевая цена в таблице считается отсутствующей
	awp := got["AWP | Asiimov (Field-Tested)"]
	rq.Equal(entity.ValuationEstimate, awp.Source)
	rq.True(d("7200").Equal(awp.AcceptancePrice)) // 600 * 8 * 1.0 * 1.5
	rq.Equal(mock.Now(), awp.ObservedAt)

	glock := got["Glock-18 | Fade (Factory New)"]
	rq.Equal(entity.ValuationEstimate, glock.Source)
	rq.True(glock.Acceptable)
}

func TestAggregatorSourceOutageFallsBack(t *testing.T) {
	rq := require.New(t)

	source := &fixedSource{err: errors.New("connection refused")}
	agg := pricing.NewAggregator(source, pricing.NewEstimator(), d("40"))

	items := value.Items{
		{AssetID: "1", MarketHashName: "AK-47 | Redline (Field-Tested)", Rarity: "Classified"},
		{AssetID: "2", MarketHashName: "Sticker Capsule"},
	}

	got := agg.GetPrices(context.Background(), items)

	rq.Len(got, 2)
	for _, v := range got {
		rq.Equal(entity.ValuationEstimate, v.Source)
		rq.True(v.AcceptancePrice.IsPositive())
	}
	rq.True(d("1950").Equal(got["AK-47 | Redline (Field-Tested)"].AcceptancePrice))
}
