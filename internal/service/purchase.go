package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vanshika/icorewards/internal/domain"
)

// PurchaseLedger records confirmed token sales.
type PurchaseLedger interface {
	RecordPurchase(ctx context.Context, tx domain.IcoTransaction) (bool, error)
}

// PriceSource converts fiat into tokens at the current price.
type PriceSource interface {
	TokensFor(fiat decimal.Decimal) decimal.Decimal
}

// PurchaseResult is the outcome of ConfirmPurchase.
type PurchaseResult struct {
	Recorded    bool
	TokenAmount decimal.Decimal
	Report      DistributionReport
}

// PurchaseService handles payment confirmations: ico purchases are written to
// the ledger and every confirmed payment triggers the commission fan-out.
type PurchaseService struct {
	ledger   PurchaseLedger
	prices   PriceSource
	referral *ReferralService
	logger   *slog.Logger
}

// NewPurchaseService wires the purchase flow.
func NewPurchaseService(store PurchaseLedger, prices PriceSource, referral *ReferralService, logger *slog.Logger) *PurchaseService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PurchaseService{
		ledger:   store,
		prices:   prices,
		referral: referral,
		logger:   logger.With("component", "purchase"),
	}
}

// ConfirmPurchase records the payment and distributes commission on its fiat
// amount. Redelivering a payment does not record it twice and only pays the
// commissions that were not paid before.
func (p *PurchaseService) ConfirmPurchase(ctx context.Context, in PurchaseInput) (PurchaseResult, error) {
	in.UserID = strings.TrimSpace(in.UserID)
	in.SourceID = strings.TrimSpace(in.SourceID)
	switch {
	case in.UserID == "":
		return PurchaseResult{}, ErrMissingUserID
	case !in.SourceType.Valid():
		return PurchaseResult{}, ErrInvalidSourceType
	case in.SourceID == "":
		return PurchaseResult{}, ErrMissingSourceID
	case !in.FiatAmount.IsPositive():
		return PurchaseResult{}, ErrInvalidAmount
	}

	if _, err := p.referral.GetUser(ctx, in.UserID); err != nil {
		return PurchaseResult{}, err
	}

	var result PurchaseResult
	if in.SourceType == domain.SourceICO {
		tokens := p.prices.TokensFor(in.FiatAmount)
		if !tokens.IsPositive() {
			return PurchaseResult{}, fmt.Errorf("%w: amount buys no tokens", ErrInvalidAmount)
		}
		price := in.FiatAmount.DivRound(tokens, 8)
		recorded, err := p.ledger.RecordPurchase(ctx, domain.IcoTransaction{
			ID:          uuid.NewString(),
			UserID:      in.UserID,
			Type:        domain.IcoBuy,
			Status:      domain.IcoCompleted,
			TokenAmount: tokens,
			FiatAmount:  in.FiatAmount,
			PriceINR:    price,
			SourceID:    in.SourceID,
		})
		if err != nil {
			return PurchaseResult{}, fmt.Errorf("record purchase: %w", err)
		}
		result.Recorded = recorded
		result.TokenAmount = tokens
		if !recorded {
			p.logger.Info("purchase already recorded", "user_id", in.UserID, "source_id", in.SourceID)
		}
	}

	report, err := p.referral.DistributeCommission(ctx, in.UserID, in.FiatAmount, in.SourceType, in.SourceID)
	if err != nil {
		return PurchaseResult{}, err
	}
	result.Report = report
	p.logger.Info("purchase confirmed",
		"user_id", in.UserID,
		"source_type", in.SourceType,
		"source_id", in.SourceID,
		"amount", in.FiatAmount.StringFixed(2),
		"commission_paid", report.TotalPaid().StringFixed(2),
	)
	return result, nil
}
