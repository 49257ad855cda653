package ledger

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/vanshika/icorewards/internal/domain"
)

const selectStakeSQL = `
	SELECT id, user_id, token_amount::text, stack_type, duration_months, interest_rate::text,
	       monthly_interest::text, interest_amount::text, expected_return::text, status,
	       started_at, matures_at, claimed_at, interest_history::text, withdrawal::text,
	       version, created_at, updated_at
	FROM staking_positions`

type interestJSON struct {
	Month      int             `json:"month"`
	Label      string          `json:"label"`
	Amount     decimal.Decimal `json:"amount"`
	CreditedAt time.Time       `json:"creditedAt"`
	Status     string          `json:"status"`
}

type withdrawalJSON struct {
	NoticeDays     int        `json:"noticeDays"`
	RequestedAt    *time.Time `json:"requestedAt,omitempty"`
	WithdrawableAt *time.Time `json:"withdrawableAt,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}

func encodeStakeJSON(pos domain.StakingPosition) (string, string, error) {
	entries := make([]interestJSON, 0, len(pos.InterestHistory))
	for _, e := range pos.InterestHistory {
		entries = append(entries, interestJSON(e))
	}
	history, err := json.Marshal(entries)
	if err != nil {
		return "", "", fmt.Errorf("encode interest history: %w", err)
	}
	withdrawal, err := json.Marshal(withdrawalJSON(pos.Withdrawal))
	if err != nil {
		return "", "", fmt.Errorf("encode withdrawal: %w", err)
	}
	return string(history), string(withdrawal), nil
}

func scanStake(row pgx.Row) (domain.StakingPosition, error) {
	var (
		pos                                       domain.StakingPosition
		stackType, status                         string
		amount, rate, monthly, interest, expected string
		history, withdrawal                       string
	)
	err := row.Scan(&pos.ID, &pos.UserID, &amount, &stackType, &pos.DurationMonths, &rate,
		&monthly, &interest, &expected, &status,
		&pos.StartedAt, &pos.MaturesAt, &pos.ClaimedAt, &history, &withdrawal,
		&pos.Version, &pos.CreatedAt, &pos.UpdatedAt)
	if err != nil {
		return domain.StakingPosition{}, err
	}
	pos.StackType = domain.StackType(stackType)
	pos.Status = domain.StakeStatus(status)

	for _, f := range []struct {
		raw    string
		target *decimal.Decimal
	}{
		{amount, &pos.TokenAmount},
		{rate, &pos.InterestRate},
		{monthly, &pos.MonthlyInterestAmount},
		{interest, &pos.InterestAmount},
		{expected, &pos.ExpectedReturn},
	} {
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return domain.StakingPosition{}, fmt.Errorf("decode stake %s amount: %w", pos.ID, err)
		}
		*f.target = d
	}

	var entries []interestJSON
	if err := json.Unmarshal([]byte(history), &entries); err != nil {
		return domain.StakingPosition{}, fmt.Errorf("decode stake %s history: %w", pos.ID, err)
	}
	for _, e := range entries {
		pos.InterestHistory = append(pos.InterestHistory, domain.InterestEntry(e))
	}

	var w withdrawalJSON
	if err := json.Unmarshal([]byte(withdrawal), &w); err != nil {
		return domain.StakingPosition{}, fmt.Errorf("decode stake %s withdrawal: %w", pos.ID, err)
	}
	pos.Withdrawal = domain.WithdrawalNotice(w)
	return pos, nil
}
