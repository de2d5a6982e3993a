package notify

import (
	"fmt"
	"strconv"
	"time"

	"github.com/alanyoungcy/polyprop/internal/domain"
)

// Event types accepted in notify.events.
const (
	EventAccountBreached = "account_breached"
	EventStagePassed     = "stage_passed"
	EventPayoutRequested = "payout_requested"
)

// Field is one labelled value shown with an alert.
type Field struct {
	Name  string
	Value string
}

// Alert is an operator notification about one evaluation account.
type Alert struct {
	Event     string
	AccountID string
	Title     string
	Message   string
	Fields    []Field
	At        time.Time
}

// Breached builds the alert for an account that hit its drawdown floor.
func Breached(acct domain.Account, floor string) Alert {
	return Alert{
		Event:     EventAccountBreached,
		AccountID: acct.ID,
		Title:     "Account breached: " + acct.ID,
		Message: fmt.Sprintf("Trader %s (%s) breached at equity %s, floor %s.",
			acct.TraderID, acct.Tier, acct.CurrentEquity.StringFixed(2), floor),
		Fields: []Field{
			{"Equity", acct.CurrentEquity.StringFixed(2)},
			{"Floor", floor},
			{"High-water mark", acct.HighWaterMark.StringFixed(2)},
			{"Stage", strconv.Itoa(acct.Stage())},
		},
		At: alertTime(acct.BreachedAt, acct.UpdatedAt),
	}
}

// StagePassed builds the alert for a stage transition.
func StagePassed(acct domain.Account) Alert {
	return Alert{
		Event:     EventStagePassed,
		AccountID: acct.ID,
		Title:     "Stage passed: " + acct.ID,
		Message: fmt.Sprintf("Trader %s (%s) reached %s after %d trades.",
			acct.TraderID, acct.Tier, acct.Status, acct.TotalTrades),
		Fields: []Field{
			{"Equity", acct.CurrentEquity.StringFixed(2)},
			{"Stage start", acct.StageStartBalance.StringFixed(2)},
			{"Instruments", strconv.Itoa(acct.UniqueInstruments())},
		},
		At: alertTime(nil, acct.UpdatedAt),
	}
}

// PayoutRequested builds the alert for a new pending payout.
func PayoutRequested(req domain.PayoutRequest) Alert {
	return Alert{
		Event:     EventPayoutRequested,
		AccountID: req.AccountID,
		Title:     "Payout requested: " + req.AccountID,
		Message:   fmt.Sprintf("Net %s USDC to %s.", req.NetPayout.StringFixed(2), req.Wallet),
		Fields: []Field{
			{"Gross", req.GrossProfit.StringFixed(2)},
			{"Platform fee", req.PlatformFee.StringFixed(2)},
			{"Net", req.NetPayout.StringFixed(2)},
			{"Wallet", req.Wallet},
		},
		At: req.RequestedAt.UTC(),
	}
}

func alertTime(at *time.Time, fallback time.Time) time.Time {
	if at != nil {
		return at.UTC()
	}
	return fallback.UTC()
}
