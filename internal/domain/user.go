package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaxReferralLevels bounds both the referral path length and the number of
// commission depths (0..8).
const MaxReferralLevels = 9

// KYCStatus is the verification state reported by the KYC provider.
type KYCStatus string

const (
	KYCVerified     KYCStatus = "verified"
	KYCPending      KYCStatus = "pending"
	KYCRejected     KYCStatus = "rejected"
	KYCNotSubmitted KYCStatus = "not_submitted"
)

// User is a member of the referral network.
type User struct {
	ID                     string
	Name                   string
	Email                  string
	Mobile                 string
	ReferralCode           string
	ReferredBy             string
	ReferralPath           []string
	ReferralLevel          int
	ReferralDownlineCounts []int
	ReferralWalletBalance  decimal.Decimal
	ReferralTotalEarned    decimal.Decimal
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// HasReferrer reports whether the user is already attached to a referrer.
func (u User) HasReferrer() bool {
	return u.ReferredBy != ""
}

// DownlineCounts returns the per-depth counts padded to MaxReferralLevels.
func (u User) DownlineCounts() []int {
	counts := make([]int, MaxReferralLevels)
	copy(counts, u.ReferralDownlineCounts)
	return counts
}

// DepthOf returns the position of ancestorID in the user's referral path, or
// -1 when the ancestor is not part of it.
func (u User) DepthOf(ancestorID string) int {
	for i, id := range u.ReferralPath {
		if id == ancestorID {
			return i
		}
	}
	return -1
}
