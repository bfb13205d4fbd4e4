package value_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"cyberlombard/internal/domain/value"
)

func TestItemsSameAssets(t *testing.T) {
	base := value.Items{
		{AssetID: "1", MarketHashName: "AK-47 | Redline (Field-Tested)"},
		{AssetID: "2", MarketHashName: "AK-47 | Redline (Field-Tested)"},
		{AssetID: "3", MarketHashName: "AWP | Asiimov (Battle-Scarred)"},
	}

	testCases := []struct {
		name  string
		other value.Items
		want  bool
	}{
		{name: "same order", other: base, want: true},
		{name: "shuffled", other: value.Items{base[2], base[0], base[1]}, want: true},
		{name: "missing", other: base[:2], want: false},
		{name: "duplicate instead of other", other: value.Items{base[0], base[0], base[2]}, want: false},
		{name: "foreign asset", other: value.Items{base[0], base[1], {AssetID: "9"}}, want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, base.SameAssets(tc.other))
		})
	}
}

func TestItemsNames(t *testing.T) {
	rq := require.New(t)

	items := value.Items{
		{AssetID: "1", MarketHashName: "B"},
		{AssetID: "2", MarketHashName: "A"},
		{AssetID: "3", MarketHashName: "B"},
	}

	rq.Equal([]string{"B", "A"}, items.Names())
	rq.Equal([]string{"1", "2", "3"}, items.AssetIDs())
}

func TestOwnerKYC(t *testing.T) {
	threshold := decimal.NewFromInt(15000)

	testCases := []struct {
		name      string
		owner     value.Owner
		amount    decimal.Decimal
		threshold decimal.Decimal
		want      bool
	}{
		{name: "below threshold", owner: value.Owner{ID: "u"}, amount: decimal.NewFromInt(400), threshold: threshold, want: true},
		{name: "at threshold", owner: value.Owner{ID: "u"}, amount: threshold, threshold: threshold, want: true},
		{name: "above threshold", owner: value.Owner{ID: "u"}, amount: decimal.NewFromInt(15001), threshold: threshold, want: false},
		{name: "above threshold with passport", owner: value.Owner{ID: "u", PassportVerified: true}, amount: decimal.NewFromInt(50000), threshold: threshold, want: true},
		{name: "zero threshold always requires passport", owner: value.Owner{ID: "u"}, amount: decimal.NewFromInt(1), threshold: decimal.Zero, want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.owner.KYCPassed(tc.amount, tc.threshold))
		})
	}
}

func TestRoundMoney(t *testing.T) {
	rq := require.New(t)

	rq.Equal("492.2", value.RoundMoney(decimal.RequireFromString("492.2000")).String())
	rq.Equal("0.01", value.RoundMoney(decimal.RequireFromString("0.005")).String())
}
