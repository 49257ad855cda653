package repository

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vanshika/icorewards/internal/domain"
)

func decodeUser(val any) domain.User {
	m, _ := val.(map[string]any)
	u := domain.User{
		ID:                     toString(m["userId"]),
		Name:                   toString(m["name"]),
		Email:                  toString(m["email"]),
		Mobile:                 toString(m["mobile"]),
		ReferralCode:           toString(m["referralCode"]),
		ReferredBy:             toString(m["referredBy"]),
		ReferralPath:           toStringSlice(m["referralPath"]),
		ReferralLevel:          int(toInt64(m["referralLevel"])),
		ReferralDownlineCounts: toIntSlice(m["referralDownlineCounts"]),
		ReferralWalletBalance:  fromPaise(m["referralWalletPaise"]),
		ReferralTotalEarned:    fromPaise(m["referralTotalEarnedPaise"]),
	}
	if created := toTimePtr(m["createdAt"]); created != nil {
		u.CreatedAt = *created
	}
	if updated := toTimePtr(m["updatedAt"]); updated != nil {
		u.UpdatedAt = *updated
	}
	return u
}

// toPaise converts a rupee amount to integer paise, rounding sub-paise
// remainders half away from zero.
func toPaise(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func fromPaise(val any) decimal.Decimal {
	return decimal.New(toInt64(val), -2)
}

// toDecimal reads a decimal stored as a string or a number.
func toDecimal(val any) decimal.Decimal {
	switch v := val.(type) {
	case string:
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	case int64:
		return decimal.NewFromInt(v)
	case float64:
		return decimal.NewFromFloat(v)
	}
	return decimal.Zero
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func toString(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case []byte:
		return string(v)
	default:
		return ""
	}
}

func toInt64(val any) int64 {
	switch v := val.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func toBool(val any) bool {
	b, _ := val.(bool)
	return b
}

func toStringSlice(val any) []string {
	switch v := val.(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, toString(item))
		}
		return out
	default:
		return nil
	}
}

func toIntSlice(val any) []int {
	switch v := val.(type) {
	case []int:
		return append([]int(nil), v...)
	case []int64:
		out := make([]int, len(v))
		for i, item := range v {
			out[i] = int(item)
		}
		return out
	case []any:
		out := make([]int, len(v))
		for i, item := range v {
			out[i] = int(toInt64(item))
		}
		return out
	default:
		return nil
	}
}

func toTimePtr(val any) *time.Time {
	switch v := val.(type) {
	case time.Time:
		return &v
	case string:
		if v == "" {
			return nil
		}
		if parsed, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return &parsed
		}
		if parsed, err := time.Parse(time.RFC3339, v); err == nil {
			return &parsed
		}
	}
	return nil
}
