package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vanshika/icorewards/internal/config"
	"github.com/vanshika/icorewards/internal/domain"
	"github.com/vanshika/icorewards/internal/ledger"
	"github.com/vanshika/icorewards/internal/metrics"
	"github.com/vanshika/icorewards/internal/repository"
)

// WalletLedger is the ledger contract used by wallet operations. Each call is
// a single ledger transaction.
type WalletLedger interface {
	SwapWalletToTokens(ctx context.Context, tx domain.IcoTransaction) (ledger.SwapReceipt, error)
	CreditReferralRedemption(ctx context.Context, userID, redemptionID string, amount decimal.Decimal) (domain.LedgerEntry, bool, error)
}

// ReferralBalanceStore debits the referral balance kept on the user node.
type ReferralBalanceStore interface {
	DebitReferralBalance(ctx context.Context, userID, redemptionID string, amount decimal.Decimal) (bool, error)
	ReverseReferralRedemption(ctx context.Context, userID, redemptionID string) (bool, error)
}

// WalletRules are the tunables of wallet operations.
type WalletRules struct {
	MinReferralRedeem decimal.Decimal
}

// NewWalletRules converts the rewards configuration into wallet rules.
func NewWalletRules(cfg config.RewardsConfig) WalletRules {
	return WalletRules{MinReferralRedeem: decimal.NewFromFloat(cfg.MinReferralRedeemINR)}
}

// SwapResult is the outcome of a wallet to token swap.
type SwapResult struct {
	Transaction    domain.IcoTransaction
	WalletBalance  decimal.Decimal
	HoldingBalance decimal.Decimal
	Report         DistributionReport
}

// RedemptionResult is the outcome of a referral redemption.
type RedemptionResult struct {
	ID            string
	Amount        decimal.Decimal
	WalletBalance decimal.Decimal
}

// WalletService spends the fiat wallet on tokens and moves referral earnings
// into the wallet.
type WalletService struct {
	ledger   WalletLedger
	kyc      KYCProvider
	balances ReferralBalanceStore
	prices   PriceSource
	referral *ReferralService
	rules    WalletRules
	notifier *Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
	idFn     func() string
}

// NewWalletService wires the wallet operations.
func NewWalletService(store WalletLedger, kyc KYCProvider, balances ReferralBalanceStore, prices PriceSource, referral *ReferralService, rules WalletRules) *WalletService {
	return &WalletService{
		ledger:   store,
		kyc:      kyc,
		balances: balances,
		prices:   prices,
		referral: referral,
		rules:    rules,
		logger:   slog.Default().With("component", "wallet"),
		idFn:     uuid.NewString,
	}
}

// WithLogger sets the component logger.
func (s *WalletService) WithLogger(logger *slog.Logger) *WalletService {
	if logger != nil {
		s.logger = logger.With("component", "wallet")
	}
	return s
}

// WithMetrics records operation outcomes on m.
func (s *WalletService) WithMetrics(m *metrics.Metrics) *WalletService {
	s.metrics = m
	return s
}

// WithNotifier sends wallet notifications through n.
func (s *WalletService) WithNotifier(n *Notifier) *WalletService {
	s.notifier = n
	return s
}

// WithIDGenerator overrides the id source.
func (s *WalletService) WithIDGenerator(fn func() string) *WalletService {
	if fn != nil {
		s.idFn = fn
	}
	return s
}

// Swap buys tokens with amount from the user's wallet at the current price
// and pays referral commission on the purchase.
func (s *WalletService) Swap(ctx context.Context, userID string, amount decimal.Decimal) (SwapResult, error) {
	res, err := s.swap(ctx, strings.TrimSpace(userID), amount)
	s.metrics.Wallet("swap", resultLabel(err))
	return res, err
}

func (s *WalletService) swap(ctx context.Context, userID string, amount decimal.Decimal) (SwapResult, error) {
	if userID == "" {
		return SwapResult{}, ErrMissingUserID
	}
	if err := validateFiat(amount); err != nil {
		return SwapResult{}, err
	}
	if _, err := s.referral.GetUser(ctx, userID); err != nil {
		return SwapResult{}, err
	}
	status, err := s.kyc.KYCStatus(ctx, userID)
	if err != nil {
		return SwapResult{}, fmt.Errorf("kyc status: %w", err)
	}
	if status != domain.KYCVerified {
		return SwapResult{}, ErrKYCRequired
	}

	tokens := s.prices.TokensFor(amount)
	if !tokens.IsPositive() {
		return SwapResult{}, fmt.Errorf("%w: amount buys no tokens", ErrInvalidAmount)
	}
	tx := domain.IcoTransaction{
		ID:          s.idFn(),
		UserID:      userID,
		Type:        domain.IcoBuy,
		Status:      domain.IcoCompleted,
		TokenAmount: tokens,
		FiatAmount:  amount,
		PriceINR:    amount.DivRound(tokens, 8),
		SourceID:    "swap_" + s.idFn(),
	}
	receipt, err := s.ledger.SwapWalletToTokens(ctx, tx)
	if errors.Is(err, ledger.ErrInsufficientHolding) {
		return SwapResult{}, ErrInsufficientWalletBalance
	}
	if err != nil {
		return SwapResult{}, fmt.Errorf("swap: %w", err)
	}

	result := SwapResult{
		Transaction:    tx,
		WalletBalance:  receipt.Wallet.BalanceAfter,
		HoldingBalance: receipt.Holding.BalanceAfter,
	}
	// The swap is committed; commission failures are logged, not returned.
	report, err := s.referral.DistributeCommission(ctx, userID, amount, domain.SourceICO, tx.SourceID)
	if err != nil {
		s.logger.Error("swap commission failed", "user_id", userID, "source_id", tx.SourceID, "error", err)
	}
	result.Report = report

	s.logger.Info("wallet swap completed", "user_id", userID, "source_id", tx.SourceID,
		"amount", amount.StringFixed(2), "tokens", tokens.String())
	s.notifier.Notify(userID, "Token swap completed",
		fmt.Sprintf("You swapped INR %s for %s tokens.", amount.StringFixed(2), tokens.String()),
		NotifyTransaction,
		map[string]any{"transactionId": tx.ID, "sourceId": tx.SourceID})
	return result, nil
}

// RedeemReferral moves amount from the user's referral balance into the
// wallet. The graph debit and the ledger credit share one redemption id; if
// the credit fails the debit is reversed.
func (s *WalletService) RedeemReferral(ctx context.Context, userID string, amount decimal.Decimal) (RedemptionResult, error) {
	res, err := s.redeemReferral(ctx, strings.TrimSpace(userID), amount)
	s.metrics.Wallet("redeem_referral", resultLabel(err))
	return res, err
}

func (s *WalletService) redeemReferral(ctx context.Context, userID string, amount decimal.Decimal) (RedemptionResult, error) {
	if userID == "" {
		return RedemptionResult{}, ErrMissingUserID
	}
	if err := validateFiat(amount); err != nil {
		return RedemptionResult{}, err
	}
	if amount.LessThan(s.rules.MinReferralRedeem) {
		return RedemptionResult{}, fmt.Errorf("%w: minimum redemption is %s", ErrInvalidAmount, s.rules.MinReferralRedeem.StringFixed(2))
	}

	id := s.idFn()
	applied, err := s.balances.DebitReferralBalance(ctx, userID, id, amount)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		return RedemptionResult{}, ErrUserNotFound
	case errors.Is(err, ErrInsufficientReferralBalance):
		return RedemptionResult{}, err
	case err != nil:
		return RedemptionResult{}, fmt.Errorf("debit referral balance: %w", err)
	case !applied:
		return RedemptionResult{}, fmt.Errorf("redemption %s was already debited", id)
	}

	entry, _, err := s.ledger.CreditReferralRedemption(ctx, userID, id, amount)
	if err != nil {
		s.reverse(ctx, userID, id)
		return RedemptionResult{}, fmt.Errorf("credit wallet: %w", err)
	}

	s.logger.Info("referral earnings redeemed", "user_id", userID, "redemption_id", id, "amount", amount.StringFixed(2))
	s.notifier.Notify(userID, "Referral earnings redeemed",
		fmt.Sprintf("INR %s from referral earnings was added to your wallet.", amount.StringFixed(2)),
		NotifyTransaction,
		map[string]any{"redemptionId": id})
	return RedemptionResult{ID: id, Amount: amount, WalletBalance: entry.BalanceAfter}, nil
}

func (s *WalletService) reverse(ctx context.Context, userID, redemptionID string) {
	ctx = context.WithoutCancel(ctx)
	reversed, err := s.balances.ReverseReferralRedemption(ctx, userID, redemptionID)
	switch {
	case err != nil:
		s.logger.Error("referral redemption reversal failed, balance needs manual repair",
			"user_id", userID, "redemption_id", redemptionID, "error", err)
	case !reversed:
		s.logger.Warn("referral redemption not found for reversal", "user_id", userID, "redemption_id", redemptionID)
	default:
		s.logger.Warn("referral redemption reversed", "user_id", userID, "redemption_id", redemptionID)
	}
}

// validateFiat accepts positive INR amounts with at most two decimals.
func validateFiat(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !amount.Equal(amount.Round(2)) {
		return fmt.Errorf("%w: at most two decimals", ErrInvalidAmount)
	}
	return nil
}
