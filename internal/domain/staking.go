package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// StackType names a staking plan family.
type StackType string

const (
	StackFixed StackType = "fixed"
	StackFluid StackType = "fluid"
)

// StakeStatus is the state of a staking position.
type StakeStatus string

const (
	StakeActive              StakeStatus = "active"
	StakeWithdrawalRequested StakeStatus = "withdrawal_requested"
	StakeWithdrawalAvailable StakeStatus = "withdrawal_available"
	StakeMatured             StakeStatus = "matured"
	StakeClaimed             StakeStatus = "claimed"
	StakeCancelled           StakeStatus = "cancelled"
)

// Terminal reports whether no further transition may leave the status.
func (s StakeStatus) Terminal() bool {
	return s == StakeClaimed || s == StakeCancelled
}

// Interest schedule entry statuses.
const (
	InterestPending  = "pending"
	InterestReleased = "released"
)

// StakingPlan describes one row of the plan table.
type StakingPlan struct {
	StackType       StackType
	Label           string
	DurationMonths  int
	MonthlyRate     decimal.Decimal
	NoticeDays      int
	EarlyWithdrawal bool
}

// InterestEntry is one month of the informational interest schedule.
type InterestEntry struct {
	Month      int
	Label      string
	Amount     decimal.Decimal
	CreditedAt time.Time
	Status     string
}

// WithdrawalNotice records an early-exit request on a fluid position.
type WithdrawalNotice struct {
	NoticeDays     int
	RequestedAt    *time.Time
	WithdrawableAt *time.Time
	CompletedAt    *time.Time
}

// StakingPosition is a time-locked token position.
type StakingPosition struct {
	ID                    string
	UserID                string
	TokenAmount           decimal.Decimal
	StackType             StackType
	DurationMonths        int
	InterestRate          decimal.Decimal
	MonthlyInterestAmount decimal.Decimal
	InterestAmount        decimal.Decimal
	ExpectedReturn        decimal.Decimal
	Status                StakeStatus
	StartedAt             time.Time
	MaturesAt             time.Time
	ClaimedAt             *time.Time
	InterestHistory       []InterestEntry
	Withdrawal            WithdrawalNotice
	Version               int64
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// StakingTotals aggregates open positions of one stack type.
type StakingTotals struct {
	Positions      int
	Staked         decimal.Decimal
	ExpectedReturn decimal.Decimal
}

// StakingSummary aggregates a user's non-terminal positions.
type StakingSummary struct {
	UserID          string
	ActivePositions int
	TotalStaked     decimal.Decimal
	ExpectedReturn  decimal.Decimal
	ByStackType     map[StackType]StakingTotals
}
