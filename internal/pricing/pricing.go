// Package pricing holds the current token price. The price lives in the
// ledger settings table, where operators change it; Watch picks up changes
// while the server runs.
package pricing

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// SettingKey is the settings row that stores the INR price of one token.
const SettingKey = "ICO_PRICE_INR"

// SettingsStore is the subset of the ledger the price is read from.
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
}

// Quote is a snapshot of the price.
type Quote struct {
	Symbol   string
	PriceINR decimal.Decimal
}

// Service serves the token price to the engines.
type Service struct {
	store    SettingsStore
	logger   *slog.Logger
	fallback decimal.Decimal

	mu    sync.RWMutex
	quote Quote
}

// NewService builds a Service that starts at the configured default price.
func NewService(store SettingsStore, logger *slog.Logger, symbol string, defaultPrice decimal.Decimal) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		logger:   logger.With("component", "pricing"),
		fallback: defaultPrice,
		quote:    Quote{Symbol: symbol, PriceINR: defaultPrice},
	}
}

// Current returns the cached quote.
func (s *Service) Current() Quote {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.quote
}

// Reload re-reads the stored price. A missing or invalid value falls back to
// the configured default.
func (s *Service) Reload(ctx context.Context) (Quote, error) {
	raw, ok, err := s.store.GetSetting(ctx, SettingKey)
	if err != nil {
		return s.Current(), fmt.Errorf("reload price: %w", err)
	}

	price := s.fallback
	if ok {
		parsed, err := decimal.NewFromString(raw)
		switch {
		case err != nil:
			s.logger.Warn("stored token price is not a number, using default", "value", raw)
		case !parsed.IsPositive():
			s.logger.Warn("stored token price is not positive, using default", "value", raw)
		default:
			price = parsed
		}
	}

	s.mu.Lock()
	s.quote.PriceINR = price
	q := s.quote
	s.mu.Unlock()
	return q, nil
}

// Watch reloads the price every interval until ctx is done. Failed reloads
// keep the previous quote.
func (s *Service) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			before := s.Current().PriceINR
			q, err := s.Reload(ctx)
			if err != nil {
				if ctx.Err() == nil {
					s.logger.Warn("token price reload failed", "error", err)
				}
				continue
			}
			if !q.PriceINR.Equal(before) {
				s.logger.Info("token price updated", "price_inr", q.PriceINR.String())
			}
		}
	}
}

// TokensFor converts a fiat amount into tokens at the current price, rounded
// to 8 places.
func (s *Service) TokensFor(fiat decimal.Decimal) decimal.Decimal {
	q := s.Current()
	if !q.PriceINR.IsPositive() {
		return decimal.Zero
	}
	return fiat.DivRound(q.PriceINR, 8)
}
