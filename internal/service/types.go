package service

import (
	"github.com/shopspring/decimal"

	"github.com/vanshika/icorewards/internal/domain"
)

// RegisterUserInput is the signup payload accepted by the referral engine.
type RegisterUserInput struct {
	ID           string
	Name         string
	Email        string
	Mobile       string
	ReferralCode string
}

// PurchaseInput describes a confirmed payment. Tokens for ico purchases are
// always derived from the current price.
type PurchaseInput struct {
	UserID     string
	SourceType domain.SourceType
	SourceID   string
	FiatAmount decimal.Decimal
}

// StakeInput is a request to open a staking position.
type StakeInput struct {
	TokenAmount    decimal.Decimal
	StackType      domain.StackType
	DurationMonths int
}

// DownlineParams selects one depth of a user's downline.
type DownlineParams struct {
	Depth    int
	Page     int
	PageSize int
}

// PaginationMeta captures pagination metadata returned to API clients.
type PaginationMeta struct {
	Page       int
	PageSize   int
	TotalItems int64
	TotalPages int
}

// DownlinePage represents one page of downline members.
type DownlinePage struct {
	Depth      int
	Items      []domain.DownlineMember
	Pagination PaginationMeta
}
