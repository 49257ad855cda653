package service

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vanshika/icorewards/internal/config"
	"github.com/vanshika/icorewards/internal/domain"
)

const (
	referralCodePrefix   = "ICO"
	referralCodeLength   = 6
	referralCodeAttempts = 5
	base36Alphabet       = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

var hundred = decimal.NewFromInt(100)

// ReferralRules are the tunables of the referral engine.
type ReferralRules struct {
	Percentages             []decimal.Decimal
	PromotionThreshold      int
	MonthlyTokenRequirement decimal.Decimal
	ActiveWindow            time.Duration
	FallbackCode            string
	Workers                 int
}

// NewReferralRules converts the rewards configuration into engine rules.
func NewReferralRules(cfg config.RewardsConfig) ReferralRules {
	pcts := make([]decimal.Decimal, len(cfg.ReferralPercentages))
	for i, p := range cfg.ReferralPercentages {
		pcts[i] = decimal.NewFromFloat(p)
	}
	return ReferralRules{
		Percentages:             pcts,
		PromotionThreshold:      cfg.PromotionThreshold,
		MonthlyTokenRequirement: decimal.NewFromFloat(cfg.MonthlyTokenRequirement),
		ActiveWindow:            time.Duration(cfg.ActiveWindowDays) * 24 * time.Hour,
		FallbackCode:            config.NormalizeReferralCode(cfg.FallbackReferralCode),
		Workers:                 cfg.FanoutWorkers,
	}
}

// DefaultReferralRules returns the rules built from the default rewards config.
func DefaultReferralRules() ReferralRules {
	return NewReferralRules(config.DefaultRewards())
}

// Percentage returns the commission percentage paid at depth, or zero when
// the depth is outside the schedule.
func (r ReferralRules) Percentage(depth int) decimal.Decimal {
	if depth < 0 || depth >= len(r.Percentages) {
		return decimal.Zero
	}
	return r.Percentages[depth]
}

// CalculateLevel returns the number of consecutive depths, starting at 0,
// whose downline count reaches threshold. The last depth never promotes, so
// the result is at most len(counts)-1.
func CalculateLevel(counts []int, threshold int) int {
	level := 0
	for i := 0; i < len(counts)-1; i++ {
		if counts[i] < threshold {
			break
		}
		level = i + 1
	}
	return level
}

// BuildReferralPath returns the path of a user referred by referrer: the
// referrer first, then its own ancestors, capped at MaxReferralLevels.
func BuildReferralPath(referrer domain.User) []string {
	path := make([]string, 0, domain.MaxReferralLevels)
	path = append(path, referrer.ID)
	for _, id := range referrer.ReferralPath {
		if len(path) == domain.MaxReferralLevels {
			break
		}
		path = append(path, id)
	}
	return path
}

// CommissionAmount computes amount * pct / 100 rounded to paise.
func CommissionAmount(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(hundred).Round(2)
}

// randomReferralCode returns ICO followed by six upper-case base36 characters.
func randomReferralCode() string {
	var b strings.Builder
	b.Grow(len(referralCodePrefix) + referralCodeLength)
	b.WriteString(referralCodePrefix)
	for i := 0; i < referralCodeLength; i++ {
		b.WriteByte(base36Alphabet[rand.IntN(len(base36Alphabet))])
	}
	return b.String()
}

func timestampReferralCode(now time.Time) string {
	return referralCodePrefix + strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
}
