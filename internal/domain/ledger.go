package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountKind selects which balance of a user a ledger operation touches.
type AccountKind string

const (
	AccountHolding AccountKind = "ico_holding"
	AccountWallet  AccountKind = "wallet"
)

// AccountRef addresses a single balance counter.
type AccountRef struct {
	UserID string
	Kind   AccountKind
}

// Balance is the current value of one account.
type Balance struct {
	Account   AccountRef
	Amount    decimal.Decimal
	UpdatedAt time.Time
}

// LedgerEntry is the audit row written alongside every balance mutation.
type LedgerEntry struct {
	ID           string
	Account      AccountRef
	Delta        decimal.Decimal
	BalanceAfter decimal.Decimal
	Reason       string
	Reference    string
	CreatedAt    time.Time
}

// IcoTransaction types and statuses.
const (
	IcoBuy       = "buy"
	IcoSell      = "sell"
	IcoCompleted = "completed"
	IcoPending   = "pending"
)

// IcoTransaction is a token sale record. Completed buys feed the referral
// activity check.
type IcoTransaction struct {
	ID          string
	UserID      string
	Type        string
	Status      string
	TokenAmount decimal.Decimal
	FiatAmount  decimal.Decimal
	PriceINR    decimal.Decimal
	SourceID    string
	CreatedAt   time.Time
}

// Notification is a fire-and-forget message for a user.
type Notification struct {
	ID        string
	UserID    string
	Title     string
	Message   string
	Type      string
	Metadata  map[string]any
	CreatedAt time.Time
}
