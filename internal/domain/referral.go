package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SourceType identifies the monetary event a commission is paid for.
type SourceType string

const (
	SourceICO   SourceType = "ico"
	SourceOrder SourceType = "order"
)

// Valid reports whether the source type is one the engine pays on.
func (s SourceType) Valid() bool {
	return s == SourceICO || s == SourceOrder
}

// EarningStatus tracks the lifecycle of a commission record.
type EarningStatus string

const (
	EarningPending  EarningStatus = "pending"
	EarningReleased EarningStatus = "released"
	EarningReversed EarningStatus = "reversed"
)

// ReferralEarning records one commission payout. At most one exists per
// (EarnerID, SourceID, SourceType, Depth).
type ReferralEarning struct {
	ID           string
	EarnerID     string
	SourceUserID string
	SourceType   SourceType
	SourceID     string
	Depth        int
	Percentage   decimal.Decimal
	Amount       decimal.Decimal
	Status       EarningStatus
	CreatedAt    time.Time
}

// ReferralSummary is the dashboard view of a user's referral standing.
type ReferralSummary struct {
	UserID         string
	ReferralCode   string
	ReferredBy     string
	Level          int
	DownlineCounts []int
	TotalDownline  int
	WalletBalance  decimal.Decimal
	TotalEarned    decimal.Decimal
	Percentages    []decimal.Decimal
}

// DownlineMember is a user found at a given depth below another user.
type DownlineMember struct {
	UserID        string
	Name          string
	ReferralCode  string
	ReferredBy    string
	ReferralLevel int
	Depth         int
	JoinedAt      time.Time
}

// ReferralNode is one vertex of a rendered referral tree.
type ReferralNode struct {
	UserID        string
	Name          string
	ReferralCode  string
	ReferredBy    string
	ReferralLevel int
	Depth         int
	JoinedAt      time.Time
	Children      []*ReferralNode
}

// ReferralEdge links a user to the user who referred them.
type ReferralEdge struct {
	UserID     string
	ReferredBy string
}
