package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vanshika/icorewards/internal/config"
	"github.com/vanshika/icorewards/internal/domain"
	"github.com/vanshika/icorewards/internal/ledger"
	"github.com/vanshika/icorewards/internal/metrics"
)

const (
	defaultStakeLimit = 100
	maxStakeLimit     = 200
	stakeWriteRetries = 3
)

// StakingLedger is the ledger contract used by the staking engine.
type StakingLedger interface {
	OpenStake(ctx context.Context, pos domain.StakingPosition) (domain.StakingPosition, error)
	GetStake(ctx context.Context, userID, stakeID string) (domain.StakingPosition, error)
	ListStakes(ctx context.Context, userID string, limit int) ([]domain.StakingPosition, error)
	UpdateStake(ctx context.Context, pos domain.StakingPosition) (domain.StakingPosition, error)
	ClaimStake(ctx context.Context, pos domain.StakingPosition) (domain.StakingPosition, error)
}

// KYCProvider reports a user's verification state.
type KYCProvider interface {
	KYCStatus(ctx context.Context, userID string) (domain.KYCStatus, error)
}

// StakingRules are the tunables of the staking engine.
type StakingRules struct {
	MinTokens       decimal.Decimal
	FluidNoticeDays int
}

// NewStakingRules converts the rewards configuration into staking rules.
func NewStakingRules(cfg config.RewardsConfig) StakingRules {
	return StakingRules{
		MinTokens:       decimal.NewFromFloat(cfg.StakingMinTokens),
		FluidNoticeDays: cfg.FluidNoticeDays,
	}
}

// StakingService opens, refreshes and settles staking positions.
type StakingService struct {
	ledger   StakingLedger
	kyc      KYCProvider
	rules    StakingRules
	notifier *Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
	nowFn    func() time.Time
	idFn     func() string
}

// NewStakingService constructs the staking engine.
func NewStakingService(store StakingLedger, kyc KYCProvider, rules StakingRules) *StakingService {
	return &StakingService{
		ledger: store,
		kyc:    kyc,
		rules:  rules,
		logger: slog.Default().With("component", "staking"),
		nowFn:  time.Now,
		idFn:   uuid.NewString,
	}
}

// WithClock overrides the time provider (used primarily in tests).
func (s *StakingService) WithClock(nowFn func() time.Time) *StakingService {
	if nowFn != nil {
		s.nowFn = nowFn
	}
	return s
}

// WithLogger sets the component logger.
func (s *StakingService) WithLogger(logger *slog.Logger) *StakingService {
	if logger != nil {
		s.logger = logger.With("component", "staking")
	}
	return s
}

// WithMetrics records operation outcomes on m.
func (s *StakingService) WithMetrics(m *metrics.Metrics) *StakingService {
	s.metrics = m
	return s
}

// WithNotifier sends staking notifications through n.
func (s *StakingService) WithNotifier(n *Notifier) *StakingService {
	s.notifier = n
	return s
}

// Plans returns the plan table.
func (s *StakingService) Plans() []domain.StakingPlan {
	return PlanTable(s.rules.FluidNoticeDays)
}

// Stake locks in.TokenAmount from the user's holding under the selected plan.
func (s *StakingService) Stake(ctx context.Context, userID string, in StakeInput) (domain.StakingPosition, error) {
	pos, err := s.stake(ctx, userID, in)
	s.metrics.Staking("stake", resultLabel(err))
	return pos, err
}

func (s *StakingService) stake(ctx context.Context, userID string, in StakeInput) (domain.StakingPosition, error) {
	if userID == "" {
		return domain.StakingPosition{}, ErrMissingUserID
	}
	if !in.TokenAmount.IsPositive() || in.TokenAmount.LessThan(s.rules.MinTokens) {
		return domain.StakingPosition{}, fmt.Errorf("%w: minimum stake is %s tokens", ErrInvalidAmount, s.rules.MinTokens)
	}
	plan, ok := LookupPlan(in.StackType, in.DurationMonths, s.rules.FluidNoticeDays)
	if !ok {
		return domain.StakingPosition{}, ErrInvalidPlan
	}
	status, err := s.kyc.KYCStatus(ctx, userID)
	if err != nil {
		return domain.StakingPosition{}, fmt.Errorf("kyc status: %w", err)
	}
	if status != domain.KYCVerified {
		return domain.StakingPosition{}, ErrKYCRequired
	}

	pos := NewPosition(s.idFn(), userID, in.TokenAmount, plan, s.now())
	opened, err := s.ledger.OpenStake(ctx, pos)
	if errors.Is(err, ledger.ErrInsufficientHolding) {
		return domain.StakingPosition{}, ErrInsufficientBalance
	}
	if err != nil {
		return domain.StakingPosition{}, fmt.Errorf("open stake: %w", err)
	}

	s.logger.Info("stake opened", "user_id", userID, "stake_id", opened.ID,
		"stack_type", opened.StackType, "months", opened.DurationMonths, "amount", opened.TokenAmount.String())
	s.notifier.Notify(userID, "Staking started",
		fmt.Sprintf("You staked %s tokens in %s for %d months. Expected return: %s tokens.",
			opened.TokenAmount.String(), plan.Label, opened.DurationMonths, opened.ExpectedReturn.String()),
		NotifyStaking,
		map[string]any{"stakeId": opened.ID, "stackType": string(opened.StackType)})
	return opened, nil
}

// ListStakes returns the user's positions with time-based transitions applied.
func (s *StakingService) ListStakes(ctx context.Context, userID string, limit int) ([]domain.StakingPosition, error) {
	positions, err := s.ledger.ListStakes(ctx, userID, normalizeLimit(limit, defaultStakeLimit, maxStakeLimit))
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range positions {
		positions[i] = s.refresh(ctx, positions[i], now)
	}
	return positions, nil
}

// GetStake returns one position with time-based transitions applied.
func (s *StakingService) GetStake(ctx context.Context, userID, stakeID string) (domain.StakingPosition, error) {
	pos, err := s.load(ctx, userID, stakeID)
	if err != nil {
		return domain.StakingPosition{}, err
	}
	return s.refresh(ctx, pos, s.now()), nil
}

// RequestWithdrawal starts the notice period of a fluid stake. Repeating the
// request returns the position unchanged.
func (s *StakingService) RequestWithdrawal(ctx context.Context, userID, stakeID string) (domain.StakingPosition, error) {
	pos, err := s.requestWithdrawal(ctx, userID, stakeID)
	s.metrics.Staking("request_withdrawal", resultLabel(err))
	return pos, err
}

func (s *StakingService) requestWithdrawal(ctx context.Context, userID, stakeID string) (domain.StakingPosition, error) {
	for attempt := 0; attempt < stakeWriteRetries; attempt++ {
		pos, err := s.load(ctx, userID, stakeID)
		if err != nil {
			return domain.StakingPosition{}, err
		}
		now := s.now()
		pos.Status = DeriveEffectiveStatus(pos, now)

		if pos.Status.Terminal() {
			return domain.StakingPosition{}, ErrStakeClosed
		}
		if pos.StackType != domain.StackFluid {
			return domain.StakingPosition{}, ErrNotFluidStake
		}
		if pos.Withdrawal.RequestedAt != nil {
			return pos, nil
		}

		notice := s.rules.FluidNoticeDays
		requested := now
		withdrawable := now.AddDate(0, 0, notice)
		pos.Withdrawal.NoticeDays = notice
		pos.Withdrawal.RequestedAt = &requested
		pos.Withdrawal.WithdrawableAt = &withdrawable
		pos.Status = domain.StakeWithdrawalRequested
		if notice == 0 {
			pos.Status = domain.StakeWithdrawalAvailable
		}

		updated, err := s.ledger.UpdateStake(ctx, pos)
		if errors.Is(err, ledger.ErrConflict) {
			continue
		}
		if err != nil {
			return domain.StakingPosition{}, s.mapLedgerErr(err)
		}
		s.logger.Info("withdrawal requested", "user_id", userID, "stake_id", stakeID, "withdrawable_at", withdrawable)
		return updated, nil
	}
	return domain.StakingPosition{}, ErrConcurrentUpdate
}

// Claim settles a position, crediting principal plus full interest to the
// holding in one ledger transaction.
func (s *StakingService) Claim(ctx context.Context, userID, stakeID string) (domain.StakingPosition, error) {
	pos, err := s.claim(ctx, userID, stakeID)
	s.metrics.Staking("claim", resultLabel(err))
	return pos, err
}

func (s *StakingService) claim(ctx context.Context, userID, stakeID string) (domain.StakingPosition, error) {
	for attempt := 0; attempt < stakeWriteRetries; attempt++ {
		pos, err := s.load(ctx, userID, stakeID)
		if err != nil {
			return domain.StakingPosition{}, err
		}
		now := s.now()
		pos.Status = DeriveEffectiveStatus(pos, now)

		switch {
		case pos.Status == domain.StakeClaimed:
			return domain.StakingPosition{}, ErrAlreadyClaimed
		case pos.Status == domain.StakeCancelled:
			return domain.StakingPosition{}, ErrStakeClosed
		}

		switch pos.StackType {
		case domain.StackFixed:
			if pos.MaturesAt.After(now) {
				return domain.StakingPosition{}, ErrNotMatured
			}
		case domain.StackFluid:
			w := pos.Withdrawal.WithdrawableAt
			if w == nil {
				return domain.StakingPosition{}, ErrNoWithdrawalNotice
			}
			if w.After(now) {
				return domain.StakingPosition{}, ErrStillInCoolingPeriod
			}
			completed := now
			pos.Withdrawal.CompletedAt = &completed
		}

		claimedAt := now
		pos.Status = domain.StakeClaimed
		pos.ClaimedAt = &claimedAt
		for i := range pos.InterestHistory {
			pos.InterestHistory[i].Status = domain.InterestReleased
		}

		claimed, err := s.ledger.ClaimStake(ctx, pos)
		if errors.Is(err, ledger.ErrConflict) {
			continue
		}
		if err != nil {
			return domain.StakingPosition{}, s.mapLedgerErr(err)
		}

		s.logger.Info("stake claimed", "user_id", userID, "stake_id", stakeID, "credited", claimed.ExpectedReturn.String())
		s.notifier.Notify(userID, "Staking completed",
			fmt.Sprintf("Your stake of %s tokens was claimed. %s tokens were credited to your holding.",
				claimed.TokenAmount.String(), claimed.ExpectedReturn.String()),
			NotifyStaking,
			map[string]any{"stakeId": claimed.ID, "stackType": string(claimed.StackType)})
		return claimed, nil
	}
	return domain.StakingPosition{}, ErrConcurrentUpdate
}

// Summary totals the user's open positions per stack type.
func (s *StakingService) Summary(ctx context.Context, userID string) (domain.StakingSummary, error) {
	positions, err := s.ListStakes(ctx, userID, maxStakeLimit)
	if err != nil {
		return domain.StakingSummary{}, err
	}
	summary := domain.StakingSummary{
		UserID:         userID,
		TotalStaked:    decimal.Zero,
		ExpectedReturn: decimal.Zero,
		ByStackType:    make(map[domain.StackType]domain.StakingTotals),
	}
	for _, pos := range positions {
		if pos.Status.Terminal() {
			continue
		}
		summary.ActivePositions++
		summary.TotalStaked = summary.TotalStaked.Add(pos.TokenAmount)
		summary.ExpectedReturn = summary.ExpectedReturn.Add(pos.ExpectedReturn)

		totals := summary.ByStackType[pos.StackType]
		totals.Positions++
		totals.Staked = totals.Staked.Add(pos.TokenAmount)
		totals.ExpectedReturn = totals.ExpectedReturn.Add(pos.ExpectedReturn)
		summary.ByStackType[pos.StackType] = totals
	}
	return summary, nil
}

// refresh applies the derived status and persists it when it changed. A lost
// race keeps the derived value for this read; the next read retries.
func (s *StakingService) refresh(ctx context.Context, pos domain.StakingPosition, now time.Time) domain.StakingPosition {
	effective := DeriveEffectiveStatus(pos, now)
	if effective == pos.Status {
		return pos
	}
	pos.Status = effective
	updated, err := s.ledger.UpdateStake(ctx, pos)
	if err != nil {
		if !errors.Is(err, ledger.ErrConflict) {
			s.logger.Warn("persist stake status failed", "stake_id", pos.ID, "status", effective, "error", err)
		}
		return pos
	}
	return updated
}

func (s *StakingService) load(ctx context.Context, userID, stakeID string) (domain.StakingPosition, error) {
	pos, err := s.ledger.GetStake(ctx, userID, stakeID)
	if err != nil {
		return domain.StakingPosition{}, s.mapLedgerErr(err)
	}
	return pos, nil
}

func (s *StakingService) mapLedgerErr(err error) error {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return ErrStakeNotFound
	case errors.Is(err, ledger.ErrInsufficientHolding):
		return ErrInsufficientBalance
	default:
		return err
	}
}

func (s *StakingService) now() time.Time {
	return s.nowFn().UTC()
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return KindOf(err).String()
}
