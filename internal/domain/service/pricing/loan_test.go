package pricing_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"cyberlombard/internal/domain/service/pricing"
)

func TestFixedLoanPolicy(t *testing.T) {
	rq := require.New(t)

	p, err := pricing.NewFixedLoanPolicy(d("0.40"))
	rq.NoError(err)
	rq.True(d("0.40").Equal(p.Coefficient(d("1"))))
	rq.True(d("0.40").Equal(p.Coefficient(d("100000"))))

	_, err = pricing.NewFixedLoanPolicy(decimal.Zero)
	rq.Error(err)

	_, err = pricing.NewFixedLoanPolicy(d("1.5"))
	rq.Error(err)
}

func TestTieredLoanPolicy(t *testing.T) {
	p, err := pricing.ParseLoanTiers("500:0.60,5000:0.65,inf:0.70")
	require.NoError(t, err)

	testCases := []struct {
		name  string
		price decimal.Decimal
		want  decimal.Decimal
	}{
		{name: "cheap", price: d("40"), want: d("0.60")},
		{name: "first bound inclusive", price: d("500"), want: d("0.60")},
		{name: "just above first bound", price: d("500.01"), want: d("0.65")},
		{name: "second bound inclusive", price: d("5000"), want: d("0.65")},
		{name: "unbounded tier", price: d("250000"), want: d("0.70")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.True(t, tc.want.Equal(p.Coefficient(tc.price)))
		})
	}
}

func TestParseLoanTiersErrors(t *testing.T) {
	testCases := []struct {
		name string
		in   string
	}{
		{name: "empty", in: ""},
		{name: "no separator", in: "500"},
		{name: "unbounded not last", in: "inf:0.70,500:0.60"},
		{name: "decreasing bounds", in: "5000:0.65,500:0.60"},
		{name: "coefficient above one", in: "500:1.20"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := pricing.ParseLoanTiers(tc.in)
			require.Error(t, err)
		})
	}
}
