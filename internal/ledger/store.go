// Package ledger owns token and wallet balances, token sale records, staking
// positions and notifications. Every balance mutation is written together
// with its ledger entry in one transaction.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vanshika/icorewards/internal/domain"
)

var (
	// ErrInsufficientHolding is returned when a debit exceeds the balance.
	ErrInsufficientHolding = errors.New("insufficient balance")
	// ErrConflict is returned when a versioned update lost a race.
	ErrConflict = errors.New("concurrent modification")
	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidAmount is returned for non-positive debit/credit amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
)

// Ledger entry reasons.
const (
	ReasonPurchase       = "ico_purchase"
	ReasonSwap           = "wallet_swap"
	ReasonReferralRedeem = "referral_redeem"
	ReasonStakeOpen      = "stake_open"
	ReasonStakeClaim     = "stake_claim"
	ReasonCredit         = "credit"
	ReasonDebit          = "debit"
)

// SwapReceipt holds both sides of a wallet to token swap.
type SwapReceipt struct {
	Wallet  domain.LedgerEntry
	Holding domain.LedgerEntry
}

// Store is the persistence contract of the ledger.
type Store interface {
	Balance(ctx context.Context, ref domain.AccountRef) (domain.Balance, error)
	Balances(ctx context.Context, userID string) ([]domain.Balance, error)
	Credit(ctx context.Context, ref domain.AccountRef, amount decimal.Decimal, reason, reference string) (domain.LedgerEntry, error)
	Debit(ctx context.Context, ref domain.AccountRef, amount decimal.Decimal, reason, reference string) (domain.LedgerEntry, error)
	Entries(ctx context.Context, userID string, limit int) ([]domain.LedgerEntry, error)

	RecordPurchase(ctx context.Context, tx domain.IcoTransaction) (bool, error)
	BuyVolumeSince(ctx context.Context, userID string, since time.Time) (decimal.Decimal, error)
	SwapWalletToTokens(ctx context.Context, tx domain.IcoTransaction) (SwapReceipt, error)
	CreditReferralRedemption(ctx context.Context, userID, redemptionID string, amount decimal.Decimal) (domain.LedgerEntry, bool, error)

	OpenStake(ctx context.Context, pos domain.StakingPosition) (domain.StakingPosition, error)
	GetStake(ctx context.Context, userID, stakeID string) (domain.StakingPosition, error)
	ListStakes(ctx context.Context, userID string, limit int) ([]domain.StakingPosition, error)
	UpdateStake(ctx context.Context, pos domain.StakingPosition) (domain.StakingPosition, error)
	ClaimStake(ctx context.Context, pos domain.StakingPosition) (domain.StakingPosition, error)

	InsertNotification(ctx context.Context, n domain.Notification) error
	ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error)

	GetSetting(ctx context.Context, key string) (string, bool, error)
	PutSetting(ctx context.Context, key, value string) error

	KYCStatus(ctx context.Context, userID string) (domain.KYCStatus, error)
	SetKYCStatus(ctx context.Context, userID string, status domain.KYCStatus) error

	Ping(ctx context.Context) error
	Close()
}

func holding(userID string) domain.AccountRef {
	return domain.AccountRef{UserID: userID, Kind: domain.AccountHolding}
}

func wallet(userID string) domain.AccountRef {
	return domain.AccountRef{UserID: userID, Kind: domain.AccountWallet}
}
