package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"github.com/vanshika/icorewards/internal/domain"
	"github.com/vanshika/icorewards/internal/pricing"
	"github.com/vanshika/icorewards/internal/service"
)

const defaultNotificationLimit = 50

// WalletStore exposes balances and notifications of a user.
type WalletStore interface {
	Balances(ctx context.Context, userID string) ([]domain.Balance, error)
	ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
}

// PriceQuoter serves the current token price.
type PriceQuoter interface {
	Current() pricing.Quote
}

// APIHandlers exposes HTTP handlers for the REST API.
type APIHandlers struct {
	logger    *slog.Logger
	referral  *service.ReferralService
	staking   *service.StakingService
	purchases *service.PurchaseService
	walletOps *service.WalletService
	prices    PriceQuoter
	wallet    WalletStore
}

// APIDependencies are the engines behind the API.
type APIDependencies struct {
	Referral  *service.ReferralService
	Staking   *service.StakingService
	Purchases *service.PurchaseService
	WalletOps *service.WalletService
	Prices    PriceQuoter
	Wallet    WalletStore
}

// NewAPIHandlers constructs an APIHandlers instance.
func NewAPIHandlers(logger *slog.Logger, deps APIDependencies) *APIHandlers {
	return &APIHandlers{
		logger:    logger,
		referral:  deps.Referral,
		staking:   deps.Staking,
		purchases: deps.Purchases,
		walletOps: deps.WalletOps,
		prices:    deps.Prices,
		wallet:    deps.Wallet,
	}
}

func (h *APIHandlers) registerUser(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var payload registerRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := h.referral.RegisterUser(r.Context(), service.RegisterUserInput{
		ID:           callerID(r.Context()),
		Name:         payload.Name,
		Email:        payload.Email,
		Mobile:       payload.Mobile,
		ReferralCode: payload.ReferralCode,
	})
	if err != nil {
		h.writeServiceError(w, "register user", err)
		return
	}
	respondJSON(w, http.StatusCreated, toUserResponse(user))
}

func (h *APIHandlers) referralCode(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	code, err := h.referral.EnsureReferralCode(r.Context(), callerID(r.Context()))
	if err != nil {
		h.writeServiceError(w, "referral code", err)
		return
	}
	respondJSON(w, http.StatusOK, codeResponse{ReferralCode: code})
}

func (h *APIHandlers) referralSummary(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	summary, err := h.referral.Summary(r.Context(), callerID(r.Context()))
	if err != nil {
		h.writeServiceError(w, "referral summary", err)
		return
	}
	respondJSON(w, http.StatusOK, summaryResponse{
		UserID:         summary.UserID,
		ReferralCode:   summary.ReferralCode,
		ReferredBy:     summary.ReferredBy,
		Level:          summary.Level,
		DownlineCounts: summary.DownlineCounts,
		TotalDownline:  summary.TotalDownline,
		WalletBalance:  summary.WalletBalance,
		TotalEarned:    summary.TotalEarned,
		Percentages:    summary.Percentages,
	})
}

func (h *APIHandlers) referralTree(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	maxDepth := parseInt(r.URL.Query().Get("maxDepth"), 0)
	tree, err := h.referral.Tree(r.Context(), callerID(r.Context()), maxDepth)
	if err != nil {
		h.writeServiceError(w, "referral tree", err)
		return
	}
	respondJSON(w, http.StatusOK, toTreeNode(tree))
}

func (h *APIHandlers) referralDownline(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()
	page, err := h.referral.Downline(r.Context(), callerID(r.Context()), service.DownlineParams{
		Depth:    parseInt(query.Get("depth"), 0),
		Page:     parseInt(query.Get("page"), 1),
		PageSize: parseInt(query.Get("limit"), 0),
	})
	if err != nil {
		h.writeServiceError(w, "referral downline", err)
		return
	}
	respondJSON(w, http.StatusOK, toDownlineResponse(page))
}

func (h *APIHandlers) referralEarnings(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit := parseInt(r.URL.Query().Get("limit"), 0)
	res, err := h.referral.Earnings(r.Context(), callerID(r.Context()), limit)
	if err != nil {
		h.writeServiceError(w, "referral earnings", err)
		return
	}
	resp := earningsResponse{Items: make([]earningResponse, 0, len(res.Items)), Total: res.Total}
	for _, e := range res.Items {
		resp.Items = append(resp.Items, earningResponse{
			ID:           e.ID,
			SourceUserID: e.SourceUserID,
			SourceType:   string(e.SourceType),
			SourceID:     e.SourceID,
			Depth:        e.Depth,
			Percentage:   e.Percentage,
			Amount:       e.Amount,
			Status:       string(e.Status),
			CreatedAt:    formatTime(e.CreatedAt),
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *APIHandlers) listPlans(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	plans := h.staking.Plans()
	resp := make([]planResponse, 0, len(plans))
	for _, p := range plans {
		resp = append(resp, planResponse{
			StackType:       string(p.StackType),
			Label:           p.Label,
			DurationMonths:  p.DurationMonths,
			MonthlyRate:     p.MonthlyRate,
			NoticeDays:      p.NoticeDays,
			EarlyWithdrawal: p.EarlyWithdrawal,
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *APIHandlers) createStake(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var payload stakeRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	pos, err := h.staking.Stake(r.Context(), callerID(r.Context()), service.StakeInput{
		TokenAmount:    payload.TokenAmount,
		StackType:      payload.StackType,
		DurationMonths: payload.DurationMonths,
	})
	if err != nil {
		h.writeServiceError(w, "create stake", err)
		return
	}
	respondJSON(w, http.StatusCreated, toStakeResponse(pos))
}

func (h *APIHandlers) listStakes(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit := parseInt(r.URL.Query().Get("limit"), 0)
	positions, err := h.staking.ListStakes(r.Context(), callerID(r.Context()), limit)
	if err != nil {
		h.writeServiceError(w, "list stakes", err)
		return
	}
	resp := make([]stakeResponse, 0, len(positions))
	for _, p := range positions {
		resp = append(resp, toStakeResponse(p))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *APIHandlers) getStake(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	pos, err := h.staking.GetStake(r.Context(), callerID(r.Context()), ps.ByName("id"))
	if err != nil {
		h.writeServiceError(w, "get stake", err)
		return
	}
	respondJSON(w, http.StatusOK, toStakeResponse(pos))
}

func (h *APIHandlers) requestWithdrawal(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	pos, err := h.staking.RequestWithdrawal(r.Context(), callerID(r.Context()), ps.ByName("id"))
	if err != nil {
		h.writeServiceError(w, "request withdrawal", err)
		return
	}
	respondJSON(w, http.StatusOK, toStakeResponse(pos))
}

func (h *APIHandlers) claimStake(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	pos, err := h.staking.Claim(r.Context(), callerID(r.Context()), ps.ByName("id"))
	if err != nil {
		h.writeServiceError(w, "claim stake", err)
		return
	}
	respondJSON(w, http.StatusOK, toStakeResponse(pos))
}

func (h *APIHandlers) stakingSummary(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	summary, err := h.staking.Summary(r.Context(), callerID(r.Context()))
	if err != nil {
		h.writeServiceError(w, "staking summary", err)
		return
	}
	resp := stakingSummaryResponse{
		ActivePositions: summary.ActivePositions,
		TotalStaked:     summary.TotalStaked,
		ExpectedReturn:  summary.ExpectedReturn,
		ByStackType:     make(map[string]stakingTotalsResponse, len(summary.ByStackType)),
	}
	for stack, totals := range summary.ByStackType {
		resp.ByStackType[string(stack)] = stakingTotalsResponse{
			Positions:      totals.Positions,
			Staked:         totals.Staked,
			ExpectedReturn: totals.ExpectedReturn,
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// confirmPayment handles the signed gateway callback. The buyer comes from
// the payload and the token amount from the current price.
func (h *APIHandlers) confirmPayment(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var payload paymentRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.purchases.ConfirmPurchase(r.Context(), service.PurchaseInput{
		UserID:     payload.UserID,
		SourceType: payload.SourceType,
		SourceID:   payload.SourceID,
		FiatAmount: payload.Amount,
	})
	if err != nil {
		h.writeServiceError(w, "confirm payment", err)
		return
	}
	respondJSON(w, http.StatusOK, paymentResponse{
		Recorded:       res.Recorded,
		TokenAmount:    res.TokenAmount,
		CommissionPaid: res.Report.TotalPaid(),
		Payouts:        toPayoutResponses(res.Report),
		FailedPayouts:  len(res.Report.Failed()),
	})
}

func (h *APIHandlers) swapToTokens(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var payload amountRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.walletOps.Swap(r.Context(), callerID(r.Context()), payload.Amount)
	if err != nil {
		h.writeServiceError(w, "swap", err)
		return
	}
	respondJSON(w, http.StatusOK, swapResponse{
		TransactionID:  res.Transaction.ID,
		SourceID:       res.Transaction.SourceID,
		Amount:         res.Transaction.FiatAmount,
		TokenAmount:    res.Transaction.TokenAmount,
		PriceINR:       res.Transaction.PriceINR,
		WalletBalance:  res.WalletBalance,
		HoldingBalance: res.HoldingBalance,
		CommissionPaid: res.Report.TotalPaid(),
	})
}

func (h *APIHandlers) redeemReferral(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var payload amountRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.walletOps.RedeemReferral(r.Context(), callerID(r.Context()), payload.Amount)
	if err != nil {
		h.writeServiceError(w, "redeem referral", err)
		return
	}
	respondJSON(w, http.StatusOK, redemptionResponse{
		RedemptionID:  res.ID,
		Amount:        res.Amount,
		WalletBalance: res.WalletBalance,
	})
}

func (h *APIHandlers) currentPrice(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	q := h.prices.Current()
	respondJSON(w, http.StatusOK, priceResponse{Symbol: q.Symbol, PriceINR: q.PriceINR})
}

func (h *APIHandlers) balances(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	balances, err := h.wallet.Balances(r.Context(), callerID(r.Context()))
	if err != nil {
		h.writeServiceError(w, "balances", err)
		return
	}
	resp := make([]balanceResponse, 0, len(balances))
	for _, b := range balances {
		resp = append(resp, balanceResponse{
			Kind:      string(b.Account.Kind),
			Amount:    b.Amount,
			UpdatedAt: formatTime(b.UpdatedAt),
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *APIHandlers) notifications(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit := parseInt(r.URL.Query().Get("limit"), defaultNotificationLimit)
	if limit <= 0 || limit > 200 {
		limit = defaultNotificationLimit
	}
	notes, err := h.wallet.ListNotifications(r.Context(), callerID(r.Context()), limit)
	if err != nil {
		h.writeServiceError(w, "notifications", err)
		return
	}
	resp := make([]notificationResponse, 0, len(notes))
	for _, n := range notes {
		resp = append(resp, notificationResponse{
			ID:        n.ID,
			Title:     n.Title,
			Message:   n.Message,
			Type:      n.Type,
			Metadata:  n.Metadata,
			CreatedAt: formatTime(n.CreatedAt),
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

// writeServiceError maps engine errors onto HTTP statuses. Internal errors
// are logged and hidden from the caller.
func (h *APIHandlers) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch service.KindOf(err) {
	case service.KindValidation:
		writeError(w, http.StatusBadRequest, err.Error())
	case service.KindConflict:
		writeError(w, http.StatusConflict, err.Error())
	case service.KindPrecondition:
		writeError(w, http.StatusForbidden, err.Error())
	case service.KindNotFound:
		writeError(w, http.StatusNotFound, err.Error())
	default:
		h.logger.Error(op+" failed", "error", err)
		writeError(w, http.StatusInternalServerError, op+" failed")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	return nil
}

func parseInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	if v, err := strconv.Atoi(value); err == nil {
		return v
	}
	return fallback
}

func writeError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{
		"error": msg,
	})
}
