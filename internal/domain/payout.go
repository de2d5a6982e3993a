package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PayoutStatus tracks a payout request through review.
type PayoutStatus string

const (
	PayoutPending  PayoutStatus = "PENDING"
	PayoutApproved PayoutStatus = "APPROVED"
	PayoutRejected PayoutStatus = "REJECTED"
	PayoutPaid     PayoutStatus = "PAID"
)

// PayoutRequest is a trader's request to withdraw profit.
type PayoutRequest struct {
	ID          string          `json:"id"`
	AccountID   string          `json:"account_id"`
	GrossProfit decimal.Decimal `json:"gross_profit"`
	TraderSplit decimal.Decimal `json:"trader_split"`
	PlatformFee decimal.Decimal `json:"platform_fee"`
	NetPayout   decimal.Decimal `json:"net_payout"`
	Wallet      string          `json:"wallet"`
	Status      PayoutStatus    `json:"status"`
	RequestedAt time.Time       `json:"requested_at"`
}
