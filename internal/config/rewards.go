package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vanshika/icorewards/internal/domain"
)

// MaxReferralLevels is the number of ancestor depths paid by the referral plan.
const MaxReferralLevels = domain.MaxReferralLevels

// DefaultReferralPercentages is the per-depth commission schedule, depth 0 first.
var DefaultReferralPercentages = []float64{5, 15, 10, 8, 5, 3, 2, 1, 1}

// RewardsConfig carries the tunables consumed by the referral and staking engines.
type RewardsConfig struct {
	ReferralPercentages     []float64
	PromotionThreshold      int
	MonthlyTokenRequirement float64
	ActiveWindowDays        int
	FallbackReferralCode    string
	StakingMinTokens        float64
	FluidNoticeDays         int
	TokenPriceINR           float64
	TokenSymbol             string
	FanoutWorkers           int
	MinReferralRedeemINR    float64
}

// rewardsOverlay mirrors RewardsConfig for the optional YAML file. Nil fields
// leave the environment value untouched.
type rewardsOverlay struct {
	ReferralPercentages     []float64 `yaml:"referral_percentages"`
	PromotionThreshold      *int      `yaml:"promotion_threshold"`
	MonthlyTokenRequirement *float64  `yaml:"monthly_token_requirement"`
	ActiveWindowDays        *int      `yaml:"active_window_days"`
	FallbackReferralCode    *string   `yaml:"fallback_referral_code"`
	StakingMinTokens        *float64  `yaml:"staking_min_tokens"`
	FluidNoticeDays         *int      `yaml:"fluid_notice_days"`
	TokenPriceINR           *float64  `yaml:"token_price_inr"`
	TokenSymbol             *string   `yaml:"token_symbol"`
	FanoutWorkers           *int      `yaml:"fanout_workers"`
	MinReferralRedeemINR    *float64  `yaml:"min_referral_redeem_inr"`
}

// DefaultRewards returns the production defaults of the reward plans.
func DefaultRewards() RewardsConfig {
	return RewardsConfig{
		ReferralPercentages:     append([]float64(nil), DefaultReferralPercentages...),
		PromotionThreshold:      8,
		MonthlyTokenRequirement: 100,
		ActiveWindowDays:        30,
		StakingMinTokens:        100,
		FluidNoticeDays:         30,
		TokenPriceINR:           10,
		TokenSymbol:             "ICOX",
		FanoutWorkers:           4,
		MinReferralRedeemINR:    10,
	}
}

// Validate checks the rewards configuration for values the engines cannot honour.
func (r RewardsConfig) Validate() error {
	if len(r.ReferralPercentages) != MaxReferralLevels {
		return fmt.Errorf("referral percentages: expected %d values, got %d", MaxReferralLevels, len(r.ReferralPercentages))
	}
	for depth, pct := range r.ReferralPercentages {
		if pct < 0 {
			return fmt.Errorf("referral percentage at depth %d is negative", depth)
		}
	}
	if r.PromotionThreshold < 1 {
		return errors.New("promotion threshold must be at least 1")
	}
	if r.MonthlyTokenRequirement < 0 {
		return errors.New("monthly token requirement must not be negative")
	}
	if r.ActiveWindowDays < 0 {
		return errors.New("active window days must not be negative")
	}
	if r.StakingMinTokens < 0 {
		return errors.New("staking minimum must not be negative")
	}
	if r.FluidNoticeDays < 0 {
		return errors.New("fluid notice days must not be negative")
	}
	if r.TokenPriceINR <= 0 {
		return errors.New("token price must be positive")
	}
	if r.MinReferralRedeemINR < 0 {
		return errors.New("minimum referral redemption must not be negative")
	}
	return nil
}

// NormalizeReferralCode trims and upper-cases a referral code.
func NormalizeReferralCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func loadRewards() (RewardsConfig, error) {
	r := DefaultRewards()

	if v := os.Getenv("REFERRAL_PERCENTAGES"); v != "" {
		pcts, err := parseFloatList(v)
		if err != nil {
			return RewardsConfig{}, fmt.Errorf("invalid REFERRAL_PERCENTAGES: %w", err)
		}
		r.ReferralPercentages = pcts
	}
	if err := parseInts([]intSetting{
		{"REFERRAL_PROMOTION_THRESHOLD", &r.PromotionThreshold},
		{"REFERRAL_ACTIVE_WINDOW_DAYS", &r.ActiveWindowDays},
		{"FLUID_STACK_NOTICE_DAYS", &r.FluidNoticeDays},
		{"REFERRAL_FANOUT_WORKERS", &r.FanoutWorkers},
	}); err != nil {
		return RewardsConfig{}, err
	}
	r.FallbackReferralCode = NormalizeReferralCode(os.Getenv("REFERRAL_FALLBACK_CODE"))
	r.TokenSymbol = valueOrDefault("ICO_TOKEN_SYMBOL", r.TokenSymbol)

	floats := []struct {
		key    string
		target *float64
	}{
		{"REFERRAL_MIN_MONTHLY_TOKENS", &r.MonthlyTokenRequirement},
		{"STAKING_MIN_TOKENS", &r.StakingMinTokens},
		{"ICO_PRICE_INR", &r.TokenPriceINR},
		{"WALLET_MIN_REFERRAL_REDEEM", &r.MinReferralRedeemINR},
	}
	for _, f := range floats {
		if v := os.Getenv(f.key); v != "" {
			parsed, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return RewardsConfig{}, fmt.Errorf("invalid %s: %w", f.key, err)
			}
			*f.target = parsed
		}
	}

	if path := os.Getenv("REWARDS_CONFIG_FILE"); path != "" {
		if err := r.overlayFile(path); err != nil {
			return RewardsConfig{}, err
		}
	}

	if err := r.Validate(); err != nil {
		return RewardsConfig{}, fmt.Errorf("invalid rewards config: %w", err)
	}
	return r, nil
}

func (r *RewardsConfig) overlayFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read rewards config %s: %w", path, err)
	}
	return r.overlay(raw)
}

func (r *RewardsConfig) overlay(raw []byte) error {
	var o rewardsOverlay
	if err := yaml.Unmarshal(raw, &o); err != nil {
		return fmt.Errorf("decode rewards config: %w", err)
	}
	if o.ReferralPercentages != nil {
		r.ReferralPercentages = o.ReferralPercentages
	}
	if o.PromotionThreshold != nil {
		r.PromotionThreshold = *o.PromotionThreshold
	}
	if o.MonthlyTokenRequirement != nil {
		r.MonthlyTokenRequirement = *o.MonthlyTokenRequirement
	}
	if o.ActiveWindowDays != nil {
		r.ActiveWindowDays = *o.ActiveWindowDays
	}
	if o.FallbackReferralCode != nil {
		r.FallbackReferralCode = NormalizeReferralCode(*o.FallbackReferralCode)
	}
	if o.StakingMinTokens != nil {
		r.StakingMinTokens = *o.StakingMinTokens
	}
	if o.FluidNoticeDays != nil {
		r.FluidNoticeDays = *o.FluidNoticeDays
	}
	if o.TokenPriceINR != nil {
		r.TokenPriceINR = *o.TokenPriceINR
	}
	if o.TokenSymbol != nil {
		r.TokenSymbol = *o.TokenSymbol
	}
	if o.FanoutWorkers != nil {
		r.FanoutWorkers = *o.FanoutWorkers
	}
	if o.MinReferralRedeemINR != nil {
		r.MinReferralRedeemINR = *o.MinReferralRedeemINR
	}
	return nil
}

func parseFloatList(csv string) ([]float64, error) {
	parts := strings.Split(csv, ",")
	values := make([]float64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}
