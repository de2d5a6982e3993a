package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrContextDone   = errors.New("context cancelled")
	ErrLockHeld      = errors.New("lock already held")

	// Account lifecycle.
	ErrAccountBreached   = errors.New("account breached")
	ErrAccountFrozen     = errors.New("account frozen")
	ErrInvalidTransition = errors.New("invalid stage transition")
	ErrStaleAccount      = errors.New("account modified concurrently")
	ErrInvalidAccount    = errors.New("invalid account parameters")

	// Engine inputs and outcomes.
	ErrInvalidDepth             = errors.New("invalid depth snapshot")
	ErrInvalidQuote             = errors.New("invalid quote request")
	ErrInvalidTrade             = errors.New("invalid trade")
	ErrIndeterminateConsistency = errors.New("consistency indeterminate")
	ErrPayoutIneligible         = errors.New("payout ineligible")
	ErrMarketNotQualified       = errors.New("market not qualified")
	ErrInvalidWallet            = errors.New("invalid wallet address")
)
