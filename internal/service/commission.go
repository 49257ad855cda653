package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/vanshika/icorewards/internal/domain"
	"github.com/vanshika/icorewards/internal/metrics"
)

const payoutRetries = 3

// PayoutResult is the outcome of one ancestor in a distribution.
type PayoutResult struct {
	Depth      int
	EarnerID   string
	Percentage decimal.Decimal
	Amount     decimal.Decimal
	Outcome    string
	Err        error
}

// DistributionReport summarises a commission fan-out.
type DistributionReport struct {
	BuyerID    string
	SourceType domain.SourceType
	SourceID   string
	Amount     decimal.Decimal
	Payouts    []PayoutResult
}

// TotalPaid sums the commissions created by this call.
func (r DistributionReport) TotalPaid() decimal.Decimal {
	total := decimal.Zero
	for _, p := range r.Payouts {
		if p.Outcome == metrics.OutcomePaid {
			total = total.Add(p.Amount)
		}
	}
	return total
}

// Failed returns the payouts that could not be attempted to completion.
func (r DistributionReport) Failed() []PayoutResult {
	var out []PayoutResult
	for _, p := range r.Payouts {
		if p.Outcome == metrics.OutcomeFailed {
			out = append(out, p)
		}
	}
	return out
}

// DistributeCommission pays the buyer's ancestors for one confirmed purchase.
// Ancestors are processed concurrently and independently; a failure for one
// is reported and does not stop the others. Repeating the call with the same
// source is safe: each (earner, source, depth) is paid at most once.
func (s *ReferralService) DistributeCommission(ctx context.Context, buyerID string, amount decimal.Decimal, sourceType domain.SourceType, sourceID string) (DistributionReport, error) {
	if !sourceType.Valid() {
		return DistributionReport{}, ErrInvalidSourceType
	}
	sourceID = strings.TrimSpace(sourceID)
	if sourceID == "" {
		return DistributionReport{}, ErrMissingSourceID
	}
	if !amount.IsPositive() {
		return DistributionReport{}, ErrInvalidAmount
	}

	buyer, err := s.getUser(ctx, buyerID)
	if err != nil {
		return DistributionReport{}, err
	}

	path := buyer.ReferralPath
	if len(path) > domain.MaxReferralLevels {
		path = path[:domain.MaxReferralLevels]
	}
	report := DistributionReport{
		BuyerID:    buyer.ID,
		SourceType: sourceType,
		SourceID:   sourceID,
		Amount:     amount,
		Payouts:    make([]PayoutResult, len(path)),
	}
	since := s.now().Add(-s.rules.ActiveWindow)

	var g errgroup.Group
	g.SetLimit(s.workers())
	for depth, ancestorID := range path {
		g.Go(func() error {
			res := s.payAncestor(ctx, buyer.ID, ancestorID, depth, amount, sourceType, sourceID, since)
			report.Payouts[depth] = res
			s.metrics.Commission(depth, res.Outcome, res.Amount.InexactFloat64())
			if res.Err != nil {
				s.logger.Error("commission payout failed",
					"earner_id", ancestorID, "depth", depth, "source_type", sourceType, "source_id", sourceID, "error", res.Err)
			} else if res.Outcome != metrics.OutcomePaid {
				s.logger.Debug("commission skipped",
					"earner_id", ancestorID, "depth", depth, "source_id", sourceID, "outcome", res.Outcome)
			}
			return nil
		})
	}
	_ = g.Wait()

	if failed := report.Failed(); len(failed) > 0 {
		s.logger.Warn("commission distribution incomplete", "source_id", sourceID, "failed", len(failed))
	}
	return report, nil
}

func (s *ReferralService) payAncestor(ctx context.Context, buyerID, ancestorID string, depth int, amount decimal.Decimal, sourceType domain.SourceType, sourceID string, since time.Time) PayoutResult {
	pct := s.rules.Percentage(depth)
	res := PayoutResult{
		Depth:      depth,
		EarnerID:   ancestorID,
		Percentage: pct,
		Amount:     CommissionAmount(amount, pct),
	}
	if !res.Amount.IsPositive() {
		res.Outcome = metrics.OutcomeZeroAmount
		return res
	}

	var ancestor domain.User
	err := s.retry(ctx, func() error {
		var err error
		ancestor, err = s.getUser(ctx, ancestorID)
		if errors.Is(err, ErrUserNotFound) {
			return backoff.Permanent(err)
		}
		return err
	})
	if err != nil {
		return failed(res, fmt.Errorf("load ancestor: %w", err))
	}
	if ancestor.ReferralLevel < depth {
		res.Outcome = metrics.OutcomeLevelLocked
		return res
	}

	active, err := s.isActive(ctx, ancestorID, since)
	if err != nil {
		return failed(res, fmt.Errorf("activity check: %w", err))
	}
	if !active {
		res.Outcome = metrics.OutcomeInactive
		return res
	}

	earning := domain.ReferralEarning{
		ID:           uuid.NewString(),
		EarnerID:     ancestorID,
		SourceUserID: buyerID,
		SourceType:   sourceType,
		SourceID:     sourceID,
		Depth:        depth,
		Percentage:   pct,
		Amount:       res.Amount,
		Status:       domain.EarningReleased,
		CreatedAt:    s.now(),
	}
	var created bool
	err = s.retry(ctx, func() error {
		var err error
		created, err = s.repo.RecordEarning(ctx, earning)
		if errors.Is(s.mapRepoErr(err), ErrUserNotFound) {
			return backoff.Permanent(err)
		}
		return err
	})
	if err != nil {
		return failed(res, fmt.Errorf("record earning: %w", err))
	}
	if !created {
		res.Outcome = metrics.OutcomeDuplicate
		return res
	}

	res.Outcome = metrics.OutcomePaid
	s.notifier.Notify(ancestorID, "Referral commission",
		fmt.Sprintf("You earned INR %s from a level %d referral purchase.", res.Amount.StringFixed(2), depth+1),
		NotifyReferral,
		map[string]any{
			"sourceType": string(sourceType),
			"sourceId":   sourceID,
			"depth":      depth,
			"amount":     res.Amount.StringFixed(2),
		})
	return res
}

// isActive applies the trailing-window token-buy requirement. A zero
// requirement disables the check.
func (s *ReferralService) isActive(ctx context.Context, userID string, since time.Time) (bool, error) {
	if !s.rules.MonthlyTokenRequirement.IsPositive() || s.activity == nil {
		return true, nil
	}
	var volume decimal.Decimal
	err := s.retry(ctx, func() error {
		var err error
		volume, err = s.activity.BuyVolumeSince(ctx, userID, since)
		return err
	})
	if err != nil {
		return false, err
	}
	return volume.GreaterThanOrEqual(s.rules.MonthlyTokenRequirement), nil
}

func (s *ReferralService) retry(ctx context.Context, op func() error) error {
	return backoff.Retry(op, backoff.WithContext(s.newBackOff(), ctx))
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 2 * time.Second
	return backoff.WithMaxRetries(b, payoutRetries)
}

func failed(res PayoutResult, err error) PayoutResult {
	res.Outcome = metrics.OutcomeFailed
	res.Err = err
	return res
}
