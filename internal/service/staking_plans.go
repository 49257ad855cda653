package service

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vanshika/icorewards/internal/domain"
)

const stakeRoundPlaces = 4

var planDurations = []int{3, 6, 12, 24}

var monthlyRates = map[domain.StackType]map[int]int64{
	domain.StackFixed: {3: 6, 6: 8, 12: 10, 24: 16},
	domain.StackFluid: {3: 3, 6: 6, 12: 8, 24: 10},
}

var stackLabels = map[domain.StackType]string{
	domain.StackFixed: "Fixed Stack",
	domain.StackFluid: "Fluid Stack",
}

// PlanTable returns every staking plan. Fluid plans carry noticeDays.
func PlanTable(noticeDays int) []domain.StakingPlan {
	plans := make([]domain.StakingPlan, 0, len(monthlyRates)*len(planDurations))
	for _, stack := range []domain.StackType{domain.StackFixed, domain.StackFluid} {
		for _, months := range planDurations {
			plan, _ := LookupPlan(stack, months, noticeDays)
			plans = append(plans, plan)
		}
	}
	return plans
}

// LookupPlan returns the plan for a stack type and duration.
func LookupPlan(stack domain.StackType, months, noticeDays int) (domain.StakingPlan, bool) {
	rates, ok := monthlyRates[stack]
	if !ok {
		return domain.StakingPlan{}, false
	}
	rate, ok := rates[months]
	if !ok {
		return domain.StakingPlan{}, false
	}
	plan := domain.StakingPlan{
		StackType:      stack,
		Label:          stackLabels[stack],
		DurationMonths: months,
		MonthlyRate:    decimal.NewFromInt(rate),
	}
	if stack == domain.StackFluid {
		plan.NoticeDays = noticeDays
		plan.EarlyWithdrawal = true
	}
	return plan, true
}

// NewPosition computes the interest figures and the monthly schedule of a
// stake opened at start.
func NewPosition(id, userID string, amount decimal.Decimal, plan domain.StakingPlan, start time.Time) domain.StakingPosition {
	monthly := amount.Mul(plan.MonthlyRate).Div(hundred).Round(stakeRoundPlaces)
	interest := monthly.Mul(decimal.NewFromInt(int64(plan.DurationMonths))).Round(stakeRoundPlaces)
	expected := amount.Add(interest).Round(stakeRoundPlaces)

	history := make([]domain.InterestEntry, 0, plan.DurationMonths)
	for month := 1; month <= plan.DurationMonths; month++ {
		history = append(history, domain.InterestEntry{
			Month:      month,
			Label:      fmt.Sprintf("Month %d", month),
			Amount:     monthly,
			CreditedAt: start.AddDate(0, month, 0),
			Status:     domain.InterestPending,
		})
	}

	return domain.StakingPosition{
		ID:                    id,
		UserID:                userID,
		TokenAmount:           amount,
		StackType:             plan.StackType,
		DurationMonths:        plan.DurationMonths,
		InterestRate:          plan.MonthlyRate,
		MonthlyInterestAmount: monthly,
		InterestAmount:        interest,
		ExpectedReturn:        expected,
		Status:                domain.StakeActive,
		StartedAt:             start,
		MaturesAt:             start.AddDate(0, plan.DurationMonths, 0),
		InterestHistory:       history,
		Withdrawal:            domain.WithdrawalNotice{NoticeDays: plan.NoticeDays},
	}
}

// DeriveEffectiveStatus returns the status a position has at now. Active
// fixed stakes past maturity are matured and requested withdrawals past their
// notice are available. Other statuses are returned unchanged.
func DeriveEffectiveStatus(pos domain.StakingPosition, now time.Time) domain.StakeStatus {
	switch pos.Status {
	case domain.StakeActive:
		if pos.StackType == domain.StackFixed && !pos.MaturesAt.After(now) {
			return domain.StakeMatured
		}
	case domain.StakeWithdrawalRequested:
		if w := pos.Withdrawal.WithdrawableAt; w != nil && !w.After(now) {
			return domain.StakeWithdrawalAvailable
		}
	}
	return pos.Status
}
