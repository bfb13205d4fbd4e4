package value

import "github.com/shopspring/decimal"

// Owner владелец предметов и получатель выплаты.
type Owner struct {
	ID                string `json:"id"`
	SteamID           string `json:"steam_id"`
	TradeURL          string `json:"trade_url"`
	PayoutDestination string `json:"payout_destination"`
	PhoneVerified     bool   `json:"phone_verified"`
	PassportVerified  bool   `json:"passport_verified"`
}

// Verified личность подтверждена хотя бы по телефону.
func (o Owner) Verified() bool {
	return o.ID != "" && o.PhoneVerified
}

// KYCPassed сообщает, можно ли выдать сумму amount при пороге threshold.
// Нулевой порог означает, что паспорт нужен всегда.
func (o Owner) KYCPassed(amount, threshold decimal.Decimal) bool {
	if o.PassportVerified {
		return true
	}
	if threshold.IsZero() {
		return false
	}
	return amount.LessThanOrEqual(threshold)
}
