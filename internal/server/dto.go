package server

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vanshika/icorewards/internal/domain"
	"github.com/vanshika/icorewards/internal/service"
)

type registerRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Mobile       string `json:"mobile"`
	ReferralCode string `json:"referralCode"`
}

type stakeRequest struct {
	TokenAmount    decimal.Decimal  `json:"tokenAmount"`
	StackType      domain.StackType `json:"stackType"`
	DurationMonths int              `json:"durationMonths"`
}

// paymentRequest is the gateway callback body. Unknown fields, including
// tokenAmount, are rejected.
type paymentRequest struct {
	UserID     string            `json:"userId"`
	SourceType domain.SourceType `json:"sourceType"`
	SourceID   string            `json:"sourceId"`
	Amount     decimal.Decimal   `json:"amount"`
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type userResponse struct {
	UserID        string   `json:"userId"`
	Name          string   `json:"name,omitempty"`
	Email         string   `json:"email,omitempty"`
	Mobile        string   `json:"mobile,omitempty"`
	ReferralCode  string   `json:"referralCode"`
	ReferredBy    string   `json:"referredBy,omitempty"`
	ReferralPath  []string `json:"referralPath"`
	ReferralLevel int      `json:"referralLevel"`
	CreatedAt     string   `json:"createdAt,omitempty"`
}

type codeResponse struct {
	ReferralCode string `json:"referralCode"`
}

type summaryResponse struct {
	UserID         string            `json:"userId"`
	ReferralCode   string            `json:"referralCode"`
	ReferredBy     string            `json:"referredBy,omitempty"`
	Level          int               `json:"level"`
	DownlineCounts []int             `json:"downlineCounts"`
	TotalDownline  int               `json:"totalDownline"`
	WalletBalance  decimal.Decimal   `json:"walletBalance"`
	TotalEarned    decimal.Decimal   `json:"totalEarned"`
	Percentages    []decimal.Decimal `json:"percentages"`
}

type treeNode struct {
	UserID        string     `json:"userId"`
	Name          string     `json:"name,omitempty"`
	ReferralCode  string     `json:"referralCode,omitempty"`
	ReferralLevel int        `json:"referralLevel"`
	Depth         int        `json:"depth"`
	JoinedAt      string     `json:"joinedAt,omitempty"`
	Children      []treeNode `json:"children"`
}

type downlineMember struct {
	UserID        string `json:"userId"`
	Name          string `json:"name,omitempty"`
	ReferralCode  string `json:"referralCode,omitempty"`
	ReferredBy    string `json:"referredBy"`
	ReferralLevel int    `json:"referralLevel"`
	JoinedAt      string `json:"joinedAt,omitempty"`
}

type paginationResponse struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalItems int64 `json:"totalItems"`
	TotalPages int   `json:"totalPages"`
}

type downlineResponse struct {
	Depth      int                `json:"depth"`
	Items      []downlineMember   `json:"items"`
	Pagination paginationResponse `json:"pagination"`
}

type earningResponse struct {
	ID           string          `json:"id"`
	SourceUserID string          `json:"sourceUserId"`
	SourceType   string          `json:"sourceType"`
	SourceID     string          `json:"sourceId"`
	Depth        int             `json:"depth"`
	Percentage   decimal.Decimal `json:"percentage"`
	Amount       decimal.Decimal `json:"amount"`
	Status       string          `json:"status"`
	CreatedAt    string          `json:"createdAt"`
}

type earningsResponse struct {
	Items []earningResponse `json:"items"`
	Total int64             `json:"total"`
}

type planResponse struct {
	StackType       string          `json:"stackType"`
	Label           string          `json:"label"`
	DurationMonths  int             `json:"durationMonths"`
	MonthlyRate     decimal.Decimal `json:"monthlyRate"`
	NoticeDays      int             `json:"noticeDays"`
	EarlyWithdrawal bool            `json:"earlyWithdrawal"`
}

type interestEntryResponse struct {
	Month      int             `json:"month"`
	Label      string          `json:"label"`
	Amount     decimal.Decimal `json:"amount"`
	CreditedAt string          `json:"creditedAt"`
	Status     string          `json:"status"`
}

type withdrawalResponse struct {
	NoticeDays     int    `json:"noticeDays"`
	RequestedAt    string `json:"requestedAt,omitempty"`
	WithdrawableAt string `json:"withdrawableAt,omitempty"`
	CompletedAt    string `json:"completedAt,omitempty"`
}

type stakeResponse struct {
	ID                    string                  `json:"id"`
	TokenAmount           decimal.Decimal         `json:"tokenAmount"`
	StackType             string                  `json:"stackType"`
	DurationMonths        int                     `json:"durationMonths"`
	InterestRate          decimal.Decimal         `json:"interestRate"`
	MonthlyInterestAmount decimal.Decimal         `json:"monthlyInterestAmount"`
	InterestAmount        decimal.Decimal         `json:"interestAmount"`
	ExpectedReturn        decimal.Decimal         `json:"expectedReturn"`
	Status                string                  `json:"status"`
	StartedAt             string                  `json:"startedAt"`
	MaturesAt             string                  `json:"maturesAt"`
	ClaimedAt             string                  `json:"claimedAt,omitempty"`
	InterestHistory       []interestEntryResponse `json:"interestHistory"`
	Withdrawal            withdrawalResponse      `json:"withdrawal"`
}

type stakingTotalsResponse struct {
	Positions      int             `json:"positions"`
	Staked         decimal.Decimal `json:"staked"`
	ExpectedReturn decimal.Decimal `json:"expectedReturn"`
}

type stakingSummaryResponse struct {
	ActivePositions int                              `json:"activePositions"`
	TotalStaked     decimal.Decimal                  `json:"totalStaked"`
	ExpectedReturn  decimal.Decimal                  `json:"expectedReturn"`
	ByStackType     map[string]stakingTotalsResponse `json:"byStackType"`
}

type payoutResponse struct {
	Depth    int             `json:"depth"`
	EarnerID string          `json:"earnerId"`
	Amount   decimal.Decimal `json:"amount"`
	Outcome  string          `json:"outcome"`
}

type paymentResponse struct {
	Recorded       bool             `json:"recorded"`
	TokenAmount    decimal.Decimal  `json:"tokenAmount"`
	CommissionPaid decimal.Decimal  `json:"commissionPaid"`
	Payouts        []payoutResponse `json:"payouts"`
	FailedPayouts  int              `json:"failedPayouts"`
}

type swapResponse struct {
	TransactionID  string          `json:"transactionId"`
	SourceID       string          `json:"sourceId"`
	Amount         decimal.Decimal `json:"amount"`
	TokenAmount    decimal.Decimal `json:"tokenAmount"`
	PriceINR       decimal.Decimal `json:"priceInr"`
	WalletBalance  decimal.Decimal `json:"walletBalance"`
	HoldingBalance decimal.Decimal `json:"holdingBalance"`
	CommissionPaid decimal.Decimal `json:"commissionPaid"`
}

type redemptionResponse struct {
	RedemptionID  string          `json:"redemptionId"`
	Amount        decimal.Decimal `json:"amount"`
	WalletBalance decimal.Decimal `json:"walletBalance"`
}

type priceResponse struct {
	Symbol   string          `json:"symbol"`
	PriceINR decimal.Decimal `json:"priceInr"`
}

type balanceResponse struct {
	Kind      string          `json:"kind"`
	Amount    decimal.Decimal `json:"amount"`
	UpdatedAt string          `json:"updatedAt,omitempty"`
}

type notificationResponse struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Type      string         `json:"type"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt string         `json:"createdAt"`
}

func toUserResponse(u domain.User) userResponse {
	path := u.ReferralPath
	if path == nil {
		path = []string{}
	}
	return userResponse{
		UserID:        u.ID,
		Name:          u.Name,
		Email:         u.Email,
		Mobile:        u.Mobile,
		ReferralCode:  u.ReferralCode,
		ReferredBy:    u.ReferredBy,
		ReferralPath:  path,
		ReferralLevel: u.ReferralLevel,
		CreatedAt:     formatTime(u.CreatedAt),
	}
}

func toPayoutResponses(report service.DistributionReport) []payoutResponse {
	out := make([]payoutResponse, 0, len(report.Payouts))
	for _, p := range report.Payouts {
		out = append(out, payoutResponse{
			Depth:    p.Depth,
			EarnerID: p.EarnerID,
			Amount:   p.Amount,
			Outcome:  p.Outcome,
		})
	}
	return out
}

func toTreeNode(n *domain.ReferralNode) treeNode {
	node := treeNode{
		UserID:        n.UserID,
		Name:          n.Name,
		ReferralCode:  n.ReferralCode,
		ReferralLevel: n.ReferralLevel,
		Depth:         n.Depth,
		JoinedAt:      formatTime(n.JoinedAt),
		Children:      make([]treeNode, 0, len(n.Children)),
	}
	for _, child := range n.Children {
		node.Children = append(node.Children, toTreeNode(child))
	}
	return node
}

func toDownlineResponse(page service.DownlinePage) downlineResponse {
	resp := downlineResponse{
		Depth: page.Depth,
		Items: make([]downlineMember, 0, len(page.Items)),
		Pagination: paginationResponse{
			Page:       page.Pagination.Page,
			PageSize:   page.Pagination.PageSize,
			TotalItems: page.Pagination.TotalItems,
			TotalPages: page.Pagination.TotalPages,
		},
	}
	for _, m := range page.Items {
		resp.Items = append(resp.Items, downlineMember{
			UserID:        m.UserID,
			Name:          m.Name,
			ReferralCode:  m.ReferralCode,
			ReferredBy:    m.ReferredBy,
			ReferralLevel: m.ReferralLevel,
			JoinedAt:      formatTime(m.JoinedAt),
		})
	}
	return resp
}

func toStakeResponse(p domain.StakingPosition) stakeResponse {
	resp := stakeResponse{
		ID:                    p.ID,
		TokenAmount:           p.TokenAmount,
		StackType:             string(p.StackType),
		DurationMonths:        p.DurationMonths,
		InterestRate:          p.InterestRate,
		MonthlyInterestAmount: p.MonthlyInterestAmount,
		InterestAmount:        p.InterestAmount,
		ExpectedReturn:        p.ExpectedReturn,
		Status:                string(p.Status),
		StartedAt:             formatTime(p.StartedAt),
		MaturesAt:             formatTime(p.MaturesAt),
		ClaimedAt:             formatTimePtr(p.ClaimedAt),
		InterestHistory:       make([]interestEntryResponse, 0, len(p.InterestHistory)),
		Withdrawal: withdrawalResponse{
			NoticeDays:     p.Withdrawal.NoticeDays,
			RequestedAt:    formatTimePtr(p.Withdrawal.RequestedAt),
			WithdrawableAt: formatTimePtr(p.Withdrawal.WithdrawableAt),
			CompletedAt:    formatTimePtr(p.Withdrawal.CompletedAt),
		},
	}
	for _, e := range p.InterestHistory {
		resp.InterestHistory = append(resp.InterestHistory, interestEntryResponse{
			Month:      e.Month,
			Label:      e.Label,
			Amount:     e.Amount,
			CreditedAt: formatTime(e.CreditedAt),
			Status:     string(e.Status),
		})
	}
	return resp
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(ts *time.Time) string {
	if ts == nil || ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339)
}
