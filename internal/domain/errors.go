package domain

import "errors"

// Validation errors are terminal for a request: nothing is written and the
// caller gets the error back synchronously. Only ErrStorageUnavailable and
// ErrBusy are worth retrying, and retrying is the caller's job.
var (
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrInsufficientPoints  = errors.New("insufficient points balance")
	ErrInvalidReferralCode = errors.New("invalid referral code")
	ErrSelfReferral        = errors.New("cannot use your own referral code")
	ErrReferralAlreadyUsed = errors.New("referral code already used by this account")
	ErrAccountNotFound     = errors.New("loyalty account not found")
	ErrStorageUnavailable  = errors.New("storage unavailable")
	ErrBusy                = errors.New("account is busy, try again")
)
