package value

import "github.com/shopspring/decimal"

// MoneyPlaces точность денежных сумм на выходе.
const MoneyPlaces = 2

// RoundMoney округляет сумму до копеек (half away from zero).
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}
