package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/vanshika/icorewards/internal/domain"
)

// EarningKey is the natural key that makes commission records unique per
// earner, triggering event and depth.
func EarningKey(earnerID string, sourceType domain.SourceType, sourceID string, depth int) string {
	return fmt.Sprintf("%s|%s|%s|%d", earnerID, sourceType, sourceID, depth)
}

// RecordEarning creates the commission record and credits the earner's
// referral balances in one statement. It reports false, without touching
// balances, when a record for the same key already exists.
func (r *Repository) RecordEarning(ctx context.Context, e domain.ReferralEarning) (bool, error) {
	if e.ID == "" || e.EarnerID == "" {
		return false, errors.New("earning id and earner id are required")
	}

	created := e.CreatedAt
	if created.IsZero() {
		created = r.now()
	}
	params := map[string]any{
		"earnerId":    e.EarnerID,
		"earningKey":  EarningKey(e.EarnerID, e.SourceType, e.SourceID, e.Depth),
		"amountPaise": toPaise(e.Amount),
		"now":         formatTime(r.now()),
		"props": map[string]any{
			"earningId":    e.ID,
			"earnerId":     e.EarnerID,
			"sourceUserId": e.SourceUserID,
			"sourceType":   string(e.SourceType),
			"sourceId":     e.SourceID,
			"depth":        e.Depth,
			"percentage":   e.Percentage.String(),
			"amountPaise":  toPaise(e.Amount),
			"status":       string(e.Status),
			"createdAt":    formatTime(created),
		},
	}

	res, err := r.client.ExecuteWrite(ctx, recordEarningCypher, params)
	if err != nil {
		return false, fmt.Errorf("record earning %s: %w", e.ID, err)
	}
	rec := res.First()
	if rec == nil {
		return false, ErrUserNotFound
	}
	return toBool(rec["created"]), nil
}

// ListEarnings returns the newest commission records paid to userID.
func (r *Repository) ListEarnings(ctx context.Context, userID string, limit int) (domain.EarningListResult, error) {
	params := map[string]any{"userId": userID, "limit": limit}
	res, err := r.client.ExecuteRead(ctx, listEarningsCypher, params)
	if err != nil {
		return domain.EarningListResult{}, fmt.Errorf("list earnings query: %w", err)
	}

	items := make([]domain.ReferralEarning, 0, len(res.Records))
	for _, rec := range res.Records {
		items = append(items, decodeEarning(rec["earning"]))
	}

	countRes, err := r.client.ExecuteRead(ctx, countEarningsCypher, params)
	if err != nil {
		return domain.EarningListResult{}, fmt.Errorf("count earnings query: %w", err)
	}
	var total int64
	if rec := countRes.First(); rec != nil {
		total = toInt64(rec["total"])
	}
	return domain.EarningListResult{Items: items, Total: total}, nil
}

func decodeEarning(val any) domain.ReferralEarning {
	m, _ := val.(map[string]any)
	e := domain.ReferralEarning{
		ID:           toString(m["earningId"]),
		EarnerID:     toString(m["earnerId"]),
		SourceUserID: toString(m["sourceUserId"]),
		SourceType:   domain.SourceType(toString(m["sourceType"])),
		SourceID:     toString(m["sourceId"]),
		Depth:        int(toInt64(m["depth"])),
		Percentage:   toDecimal(m["percentage"]),
		Amount:       fromPaise(m["amountPaise"]),
		Status:       domain.EarningStatus(toString(m["status"])),
	}
	if created := toTimePtr(m["createdAt"]); created != nil {
		e.CreatedAt = *created
	}
	return e
}
