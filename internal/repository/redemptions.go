package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInsufficientReferralBalance is returned when a redemption exceeds the
// referral wallet balance.
var ErrInsufficientReferralBalance = errors.New("insufficient referral balance")

// DebitReferralBalance takes amount out of the user's referral wallet and
// records the redemption under redemptionID. It reports false, without
// touching the balance, when the redemption was already recorded.
func (r *Repository) DebitReferralBalance(ctx context.Context, userID, redemptionID string, amount decimal.Decimal) (bool, error) {
	if redemptionID == "" {
		return false, errors.New("redemption id is required")
	}
	params := map[string]any{
		"userId":       userID,
		"redemptionId": redemptionID,
		"amountPaise":  toPaise(amount),
		"now":          formatTime(r.now()),
	}
	res, err := r.client.ExecuteWrite(ctx, debitReferralCypher, params)
	if err != nil {
		return false, fmt.Errorf("debit referral balance of %s: %w", userID, err)
	}
	rec := res.First()
	switch {
	case rec == nil:
		return false, ErrUserNotFound
	case toBool(rec["duplicate"]):
		return false, nil
	case !toBool(rec["applied"]):
		return false, fmt.Errorf("%w: available %s", ErrInsufficientReferralBalance, fromPaise(rec["available"]).StringFixed(2))
	}
	return true, nil
}

// ReverseReferralRedemption puts a debited redemption back into the referral
// wallet. It reports false when there was nothing left to reverse.
func (r *Repository) ReverseReferralRedemption(ctx context.Context, userID, redemptionID string) (bool, error) {
	params := map[string]any{
		"userId":       userID,
		"redemptionId": redemptionID,
		"now":          formatTime(r.now()),
	}
	res, err := r.client.ExecuteWrite(ctx, reverseRedemptionCypher, params)
	if err != nil {
		return false, fmt.Errorf("reverse redemption %s: %w", redemptionID, err)
	}
	return len(res.Records) > 0, nil
}
