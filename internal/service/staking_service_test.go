package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshika/icorewards/internal/config"
	"github.com/vanshika/icorewards/internal/domain"
	"github.com/vanshika/icorewards/internal/ledger"
)

type stakingFixture struct {
	svc   *StakingService
	store *ledger.MemoryStore
	now   time.Time
}

func (f *stakingFixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func (f *stakingFixture) holding(t *testing.T, userID string) string {
	t.Helper()
	bal, err := f.store.Balance(context.Background(), domain.AccountRef{UserID: userID, Kind: domain.AccountHolding})
	require.NoError(t, err)
	return bal.Amount.String()
}

func newStakingFixture(t *testing.T, funded string) *stakingFixture {
	t.Helper()
	f := &stakingFixture{now: fixedNow}
	clock := func() time.Time { return f.now }
	f.store = ledger.NewMemoryStore().WithClock(clock)
	f.svc = NewStakingService(f.store, f.store, NewStakingRules(config.DefaultRewards())).WithClock(clock)

	ctx := context.Background()
	require.NoError(t, f.store.SetKYCStatus(ctx, "U1", domain.KYCVerified))
	_, err := f.store.Credit(ctx, domain.AccountRef{UserID: "U1", Kind: domain.AccountHolding}, dec(funded), ledger.ReasonCredit, "seed")
	require.NoError(t, err)
	return f
}

func TestPlanTable(t *testing.T) {
	plans := PlanTable(30)
	require.Len(t, plans, 8)
	assert.Equal(t, domain.StackFixed, plans[0].StackType)
	assert.Equal(t, "Fixed Stack", plans[0].Label)
	assert.Zero(t, plans[0].NoticeDays)
	assert.False(t, plans[0].EarlyWithdrawal)

	fluid, ok := LookupPlan(domain.StackFluid, 24, 30)
	require.True(t, ok)
	assert.True(t, fluid.MonthlyRate.Equal(dec("10")))
	assert.Equal(t, 30, fluid.NoticeDays)
	assert.True(t, fluid.EarlyWithdrawal)

	_, ok = LookupPlan(domain.StackFixed, 5, 30)
	assert.False(t, ok)
	_, ok = LookupPlan(domain.StackType("flex"), 12, 30)
	assert.False(t, ok)
}

func TestNewPosition(t *testing.T) {
	plan, _ := LookupPlan(domain.StackFixed, 12, 0)
	pos := NewPosition("S1", "U1", dec("1000"), plan, fixedNow)

	assert.True(t, pos.MonthlyInterestAmount.Equal(dec("100")))
	assert.True(t, pos.InterestAmount.Equal(dec("1200")))
	assert.True(t, pos.ExpectedReturn.Equal(dec("2200")))
	assert.Equal(t, fixedNow.AddDate(0, 12, 0), pos.MaturesAt)
	require.Len(t, pos.InterestHistory, 12)
	assert.Equal(t, "Month 1", pos.InterestHistory[0].Label)
	assert.Equal(t, fixedNow.AddDate(0, 1, 0), pos.InterestHistory[0].CreditedAt)
	assert.Equal(t, domain.InterestPending, pos.InterestHistory[11].Status)

	plan, _ = LookupPlan(domain.StackFluid, 3, 30)
	pos = NewPosition("S2", "U1", dec("333.3333"), plan, fixedNow)
	assert.True(t, pos.MonthlyInterestAmount.Equal(dec("10")))
	assert.True(t, pos.InterestAmount.Equal(dec("30")))
	assert.True(t, pos.ExpectedReturn.Equal(dec("363.3333")))
}

func TestDeriveEffectiveStatus(t *testing.T) {
	plan, _ := LookupPlan(domain.StackFixed, 3, 0)
	pos := NewPosition("S1", "U1", dec("100"), plan, fixedNow)

	assert.Equal(t, domain.StakeActive, DeriveEffectiveStatus(pos, pos.MaturesAt.Add(-time.Second)))
	assert.Equal(t, domain.StakeMatured, DeriveEffectiveStatus(pos, pos.MaturesAt))

	pos.Status = domain.StakeClaimed
	assert.Equal(t, domain.StakeClaimed, DeriveEffectiveStatus(pos, pos.MaturesAt.AddDate(1, 0, 0)))

	plan, _ = LookupPlan(domain.StackFluid, 3, 30)
	fluid := NewPosition("S2", "U1", dec("100"), plan, fixedNow)
	assert.Equal(t, domain.StakeActive, DeriveEffectiveStatus(fluid, fluid.MaturesAt.AddDate(1, 0, 0)))

	withdrawable := fixedNow.AddDate(0, 0, 30)
	fluid.Status = domain.StakeWithdrawalRequested
	fluid.Withdrawal.WithdrawableAt = &withdrawable
	assert.Equal(t, domain.StakeWithdrawalRequested, DeriveEffectiveStatus(fluid, withdrawable.Add(-time.Nanosecond)))
	assert.Equal(t, domain.StakeWithdrawalAvailable, DeriveEffectiveStatus(fluid, withdrawable))
}

func TestStakingService_StakeValidationOrder(t *testing.T) {
	f := newStakingFixture(t, "500")
	ctx := context.Background()

	_, err := f.svc.Stake(ctx, "U1", StakeInput{TokenAmount: dec("50"), StackType: "bogus", DurationMonths: 5})
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = f.svc.Stake(ctx, "U1", StakeInput{TokenAmount: dec("100"), StackType: domain.StackFixed, DurationMonths: 5})
	require.ErrorIs(t, err, ErrInvalidPlan)

	_, err = f.svc.Stake(ctx, "U2", StakeInput{TokenAmount: dec("100"), StackType: domain.StackFixed, DurationMonths: 3})
	require.ErrorIs(t, err, ErrKYCRequired)
	assert.Equal(t, KindPrecondition, KindOf(err))

	_, err = f.svc.Stake(ctx, "U1", StakeInput{TokenAmount: dec("501"), StackType: domain.StackFixed, DurationMonths: 3})
	require.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, "500", f.holding(t, "U1"))
}

func TestStakingService_FixedLifecycle(t *testing.T) {
	f := newStakingFixture(t, "5000")
	ctx := context.Background()

	pos, err := f.svc.Stake(ctx, "U1", StakeInput{TokenAmount: dec("1000"), StackType: domain.StackFixed, DurationMonths: 12})
	require.NoError(t, err)
	assert.True(t, pos.ExpectedReturn.Equal(dec("2200")))
	assert.Equal(t, domain.StakeActive, pos.Status)
	assert.Equal(t, "4000", f.holding(t, "U1"))

	_, err = f.svc.Claim(ctx, "U1", pos.ID)
	require.ErrorIs(t, err, ErrNotMatured)

	_, err = f.svc.RequestWithdrawal(ctx, "U1", pos.ID)
	require.ErrorIs(t, err, ErrNotFluidStake)

	f.now = pos.MaturesAt
	got, err := f.svc.GetStake(ctx, "U1", pos.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StakeMatured, got.Status)

	stored, err := f.store.GetStake(ctx, "U1", pos.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StakeMatured, stored.Status)

	claimed, err := f.svc.Claim(ctx, "U1", pos.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StakeClaimed, claimed.Status)
	require.NotNil(t, claimed.ClaimedAt)
	assert.Equal(t, pos.MaturesAt, *claimed.ClaimedAt)
	for _, entry := range claimed.InterestHistory {
		assert.Equal(t, domain.InterestReleased, entry.Status)
	}
	assert.Equal(t, "6200", f.holding(t, "U1"))

	_, err = f.svc.Claim(ctx, "U1", pos.ID)
	require.ErrorIs(t, err, ErrAlreadyClaimed)
	assert.Equal(t, "6200", f.holding(t, "U1"))

	_, err = f.svc.RequestWithdrawal(ctx, "U1", pos.ID)
	require.ErrorIs(t, err, ErrStakeClosed)
}

func TestStakingService_FluidLifecycle(t *testing.T) {
	f := newStakingFixture(t, "1000")
	ctx := context.Background()

	pos, err := f.svc.Stake(ctx, "U1", StakeInput{TokenAmount: dec("1000"), StackType: domain.StackFluid, DurationMonths: 6})
	require.NoError(t, err)
	assert.True(t, pos.ExpectedReturn.Equal(dec("1360")))
	assert.Equal(t, "0", f.holding(t, "U1"))

	_, err = f.svc.Claim(ctx, "U1", pos.ID)
	require.ErrorIs(t, err, ErrNoWithdrawalNotice)

	f.advance(24 * time.Hour)
	requested, err := f.svc.RequestWithdrawal(ctx, "U1", pos.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StakeWithdrawalRequested, requested.Status)
	require.NotNil(t, requested.Withdrawal.WithdrawableAt)
	assert.Equal(t, f.now.AddDate(0, 0, 30), *requested.Withdrawal.WithdrawableAt)

	f.advance(time.Hour)
	again, err := f.svc.RequestWithdrawal(ctx, "U1", pos.ID)
	require.NoError(t, err)
	assert.Equal(t, *requested.Withdrawal.RequestedAt, *again.Withdrawal.RequestedAt)

	_, err = f.svc.Claim(ctx, "U1", pos.ID)
	require.ErrorIs(t, err, ErrStillInCoolingPeriod)

	f.now = *requested.Withdrawal.WithdrawableAt
	list, err := f.svc.ListStakes(ctx, "U1", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.StakeWithdrawalAvailable, list[0].Status)

	claimed, err := f.svc.Claim(ctx, "U1", pos.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StakeClaimed, claimed.Status)
	require.NotNil(t, claimed.Withdrawal.CompletedAt)
	assert.Equal(t, "1360", f.holding(t, "U1"))
}

func TestStakingService_ZeroNoticeIsImmediatelyAvailable(t *testing.T) {
	f := newStakingFixture(t, "200")
	f.svc.rules.FluidNoticeDays = 0
	ctx := context.Background()

	pos, err := f.svc.Stake(ctx, "U1", StakeInput{TokenAmount: dec("200"), StackType: domain.StackFluid, DurationMonths: 3})
	require.NoError(t, err)
	requested, err := f.svc.RequestWithdrawal(ctx, "U1", pos.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StakeWithdrawalAvailable, requested.Status)

	_, err = f.svc.Claim(ctx, "U1", pos.ID)
	require.NoError(t, err)
}

func TestStakingService_NotFound(t *testing.T) {
	f := newStakingFixture(t, "200")
	ctx := context.Background()

	_, err := f.svc.GetStake(ctx, "U1", "missing")
	require.ErrorIs(t, err, ErrStakeNotFound)

	pos, err := f.svc.Stake(ctx, "U1", StakeInput{TokenAmount: dec("200"), StackType: domain.StackFixed, DurationMonths: 3})
	require.NoError(t, err)
	_, err = f.svc.Claim(ctx, "U2", pos.ID)
	require.ErrorIs(t, err, ErrStakeNotFound)
}

func TestStakingService_Summary(t *testing.T) {
	f := newStakingFixture(t, "1000")
	ctx := context.Background()

	fixed, err := f.svc.Stake(ctx, "U1", StakeInput{TokenAmount: dec("300"), StackType: domain.StackFixed, DurationMonths: 3})
	require.NoError(t, err)
	_, err = f.svc.Stake(ctx, "U1", StakeInput{TokenAmount: dec("400"), StackType: domain.StackFluid, DurationMonths: 12})
	require.NoError(t, err)

	f.now = fixed.MaturesAt
	_, err = f.svc.Claim(ctx, "U1", fixed.ID)
	require.NoError(t, err)

	summary, err := f.svc.Summary(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ActivePositions)
	assert.True(t, summary.TotalStaked.Equal(dec("400")))
	assert.True(t, summary.ExpectedReturn.Equal(dec("784")))
	assert.Equal(t, 1, summary.ByStackType[domain.StackFluid].Positions)
	_, hasFixed := summary.ByStackType[domain.StackFixed]
	assert.False(t, hasFixed)
}

func TestStakingService_Notifies(t *testing.T) {
	f := newStakingFixture(t, "1000")
	notifier := NewNotifier(f.store, nil, nil)
	f.svc.WithNotifier(notifier)
	ctx := context.Background()

	pos, err := f.svc.Stake(ctx, "U1", StakeInput{TokenAmount: dec("100"), StackType: domain.StackFixed, DurationMonths: 3})
	require.NoError(t, err)
	f.now = pos.MaturesAt
	_, err = f.svc.Claim(ctx, "U1", pos.ID)
	require.NoError(t, err)
	notifier.Wait()

	notes, err := f.store.ListNotifications(ctx, "U1", 10)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	titles := []string{notes[0].Title, notes[1].Title}
	assert.ElementsMatch(t, []string{"Staking started", "Staking completed"}, titles)
}
