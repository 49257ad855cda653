package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshika/icorewards/internal/ledger"
	"github.com/vanshika/icorewards/internal/logging"
)

type failingSettings struct{}

func (failingSettings) GetSetting(context.Context, string) (string, bool, error) {
	return "", false, errors.New("db down")
}

func TestService_Reload(t *testing.T) {
	store := ledger.NewMemoryStore()
	svc := NewService(store, logging.Discard(), "ICOX", decimal.NewFromInt(10))
	ctx := context.Background()

	assert.True(t, svc.Current().PriceINR.Equal(decimal.NewFromInt(10)))

	q, err := svc.Reload(ctx)
	require.NoError(t, err)
	assert.True(t, q.PriceINR.Equal(decimal.NewFromInt(10)), "missing setting keeps the default")

	require.NoError(t, store.PutSetting(ctx, SettingKey, "12.5"))
	q, err = svc.Reload(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ICOX", q.Symbol)
	assert.True(t, q.PriceINR.Equal(decimal.RequireFromString("12.5")))

	require.NoError(t, store.PutSetting(ctx, SettingKey, "-3"))
	q, err = svc.Reload(ctx)
	require.NoError(t, err)
	assert.True(t, q.PriceINR.Equal(decimal.NewFromInt(10)))

	require.NoError(t, store.PutSetting(ctx, SettingKey, "twenty"))
	q, err = svc.Reload(ctx)
	require.NoError(t, err)
	assert.True(t, q.PriceINR.Equal(decimal.NewFromInt(10)))

	assert.True(t, svc.TokensFor(decimal.NewFromInt(1000)).Equal(decimal.NewFromInt(50)))
}

func TestService_ReloadErrorKeepsQuote(t *testing.T) {
	svc := NewService(failingSettings{}, logging.Discard(), "ICOX", decimal.NewFromInt(10))

	q, err := svc.Reload(context.Background())
	require.Error(t, err)
	assert.True(t, q.PriceINR.Equal(decimal.NewFromInt(10)))
	assert.True(t, svc.Current().PriceINR.Equal(decimal.NewFromInt(10)))
}

func TestService_WatchPicksUpChanges(t *testing.T) {
	store := ledger.NewMemoryStore()
	svc := NewService(store, logging.Discard(), "ICOX", decimal.NewFromInt(10))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		svc.Watch(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.NoError(t, store.PutSetting(ctx, SettingKey, "25"))
	assert.Eventually(t, func() bool {
		return svc.Current().PriceINR.Equal(decimal.NewFromInt(25))
	}, time.Second, 5*time.Millisecond)
	assert.True(t, svc.TokensFor(decimal.NewFromInt(100)).Equal(decimal.NewFromInt(4)))

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Watch did not stop after cancel")
	}
}

func TestService_WatchDisabled(t *testing.T) {
	svc := NewService(ledger.NewMemoryStore(), logging.Discard(), "ICOX", decimal.NewFromInt(10))
	// A non-positive interval returns immediately.
	svc.Watch(context.Background(), 0)
}
