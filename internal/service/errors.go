package service

import (
	"context"
	"errors"

	"github.com/vanshika/icorewards/internal/repository"
)

// Validation errors.
var (
	ErrInvalidReferralCode = errors.New("invalid referral code")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidPlan         = errors.New("invalid staking plan")
	ErrInvalidSourceType   = errors.New("source type must be ico or order")
	ErrMissingSourceID     = errors.New("source id is required")
	ErrMissingUserID       = errors.New("user id is required")
)

// State-conflict errors.
var (
	ErrSelfReferral         = errors.New("cannot use your own referral code")
	ErrReferralLoop         = errors.New("referral would create a loop")
	ErrAlreadyClaimed       = errors.New("stake already claimed")
	ErrNotMatured           = errors.New("stake has not matured yet")
	ErrNoWithdrawalNotice   = errors.New("withdrawal has not been requested")
	ErrStillInCoolingPeriod = errors.New("withdrawal notice period has not elapsed")
	ErrStakeClosed          = errors.New("stake is already closed")
	ErrNotFluidStake        = errors.New("only fluid stakes allow early withdrawal")
	ErrConcurrentUpdate     = errors.New("stake was modified concurrently, retry")
)

// Precondition errors.
var (
	ErrKYCRequired                 = errors.New("KYC verification required")
	ErrInsufficientBalance         = errors.New("insufficient token balance")
	ErrInsufficientWalletBalance   = errors.New("insufficient wallet balance")
	ErrInsufficientReferralBalance = repository.ErrInsufficientReferralBalance
)

// Not-found errors.
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrStakeNotFound = errors.New("stake not found")
)

// Kind groups errors by how a caller should react to them.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindPrecondition
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindPrecondition:
		return "precondition"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

var kinds = map[error]Kind{
	ErrInvalidReferralCode:         KindValidation,
	ErrInvalidAmount:               KindValidation,
	ErrInvalidPlan:                 KindValidation,
	ErrInvalidSourceType:           KindValidation,
	ErrMissingSourceID:             KindValidation,
	ErrMissingUserID:               KindValidation,
	ErrSelfReferral:                KindConflict,
	ErrReferralLoop:                KindConflict,
	ErrAlreadyClaimed:              KindConflict,
	ErrNotMatured:                  KindConflict,
	ErrNoWithdrawalNotice:          KindConflict,
	ErrStillInCoolingPeriod:        KindConflict,
	ErrStakeClosed:                 KindConflict,
	ErrNotFluidStake:               KindConflict,
	ErrConcurrentUpdate:            KindConflict,
	ErrKYCRequired:                 KindPrecondition,
	ErrInsufficientBalance:         KindPrecondition,
	ErrInsufficientWalletBalance:   KindPrecondition,
	ErrInsufficientReferralBalance: KindPrecondition,
	ErrUserNotFound:                KindNotFound,
	ErrStakeNotFound:               KindNotFound,
}

// KindOf classifies err. Unknown errors, including context cancellation, are
// internal.
func KindOf(err error) Kind {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindInternal
	}
	for sentinel, kind := range kinds {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindInternal
}
