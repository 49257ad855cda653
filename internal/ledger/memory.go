package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vanshika/icorewards/internal/domain"
)

// MemoryStore implements Store in process memory. A single mutex serialises
// every operation, which gives the same all-or-nothing behaviour as the
// PostgreSQL transactions.
type MemoryStore struct {
	mu            sync.Mutex
	nowFn         func() time.Time
	balances      map[domain.AccountRef]domain.Balance
	entries       []domain.LedgerEntry
	purchases     map[string]domain.IcoTransaction
	redemptions   map[string]domain.LedgerEntry
	stakes        map[string]domain.StakingPosition
	notifications []domain.Notification
	settings      map[string]string
	kyc           map[string]domain.KYCStatus
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nowFn:       time.Now,
		balances:    make(map[domain.AccountRef]domain.Balance),
		purchases:   make(map[string]domain.IcoTransaction),
		redemptions: make(map[string]domain.LedgerEntry),
		stakes:      make(map[string]domain.StakingPosition),
		settings:    make(map[string]string),
		kyc:         make(map[string]domain.KYCStatus),
	}
}

// WithClock overrides the timestamp source.
func (m *MemoryStore) WithClock(nowFn func() time.Time) *MemoryStore {
	if nowFn != nil {
		m.nowFn = nowFn
	}
	return m
}

func (m *MemoryStore) Balance(_ context.Context, ref domain.AccountRef) (domain.Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balanceLocked(ref), nil
}

func (m *MemoryStore) Balances(_ context.Context, userID string) ([]domain.Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return []domain.Balance{
		m.balanceLocked(domain.AccountRef{UserID: userID, Kind: domain.AccountHolding}),
		m.balanceLocked(domain.AccountRef{UserID: userID, Kind: domain.AccountWallet}),
	}, nil
}

func (m *MemoryStore) Credit(_ context.Context, ref domain.AccountRef, amount decimal.Decimal, reason, reference string) (domain.LedgerEntry, error) {
	if !amount.IsPositive() {
		return domain.LedgerEntry{}, ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyLocked(ref, amount, reason, reference)
}

func (m *MemoryStore) Debit(_ context.Context, ref domain.AccountRef, amount decimal.Decimal, reason, reference string) (domain.LedgerEntry, error) {
	if !amount.IsPositive() {
		return domain.LedgerEntry{}, ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyLocked(ref, amount.Neg(), reason, reference)
}

func (m *MemoryStore) Entries(_ context.Context, userID string, limit int) ([]domain.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.LedgerEntry
	for i := len(m.entries) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if m.entries[i].Account.UserID == userID {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

func (m *MemoryStore) RecordPurchase(_ context.Context, tx domain.IcoTransaction) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.purchases[tx.SourceID]; exists {
		return false, nil
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = m.now()
	}
	if tx.Type == domain.IcoBuy && tx.Status == domain.IcoCompleted {
		if _, err := m.applyLocked(holding(tx.UserID), tx.TokenAmount, ReasonPurchase, tx.SourceID); err != nil {
			return false, err
		}
	}
	m.purchases[tx.SourceID] = tx
	return true, nil
}

func (m *MemoryStore) BuyVolumeSince(_ context.Context, userID string, since time.Time) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := decimal.Zero
	for _, tx := range m.purchases {
		if tx.UserID != userID || tx.Type != domain.IcoBuy || tx.Status != domain.IcoCompleted {
			continue
		}
		if tx.CreatedAt.Before(since) {
			continue
		}
		total = total.Add(tx.TokenAmount)
	}
	return total, nil
}

func (m *MemoryStore) SwapWalletToTokens(_ context.Context, tx domain.IcoTransaction) (SwapReceipt, error) {
	if !tx.FiatAmount.IsPositive() || !tx.TokenAmount.IsPositive() {
		return SwapReceipt{}, ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.purchases[tx.SourceID]; exists {
		return SwapReceipt{}, fmt.Errorf("swap %s: %w", tx.SourceID, ErrConflict)
	}
	if m.balanceLocked(wallet(tx.UserID)).Amount.LessThan(tx.FiatAmount) {
		return SwapReceipt{}, ErrInsufficientHolding
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = m.now()
	}
	var (
		receipt SwapReceipt
		err     error
	)
	if receipt.Wallet, err = m.applyLocked(wallet(tx.UserID), tx.FiatAmount.Neg(), ReasonSwap, tx.SourceID); err != nil {
		return SwapReceipt{}, err
	}
	if receipt.Holding, err = m.applyLocked(holding(tx.UserID), tx.TokenAmount, ReasonPurchase, tx.SourceID); err != nil {
		return SwapReceipt{}, err
	}
	m.purchases[tx.SourceID] = tx
	return receipt, nil
}

func (m *MemoryStore) CreditReferralRedemption(_ context.Context, userID, redemptionID string, amount decimal.Decimal) (domain.LedgerEntry, bool, error) {
	if !amount.IsPositive() {
		return domain.LedgerEntry{}, false, ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, exists := m.redemptions[redemptionID]; exists {
		return entry, false, nil
	}
	entry, err := m.applyLocked(wallet(userID), amount, ReasonReferralRedeem, redemptionID)
	if err != nil {
		return domain.LedgerEntry{}, false, err
	}
	m.redemptions[redemptionID] = entry
	return entry, true, nil
}

func (m *MemoryStore) OpenStake(_ context.Context, pos domain.StakingPosition) (domain.StakingPosition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.stakes[pos.ID]; exists {
		return domain.StakingPosition{}, fmt.Errorf("stake %s: %w", pos.ID, ErrConflict)
	}
	if _, err := m.applyLocked(holding(pos.UserID), pos.TokenAmount.Neg(), ReasonStakeOpen, pos.ID); err != nil {
		return domain.StakingPosition{}, err
	}
	now := m.now()
	pos.Version = 1
	pos.CreatedAt = now
	pos.UpdatedAt = now
	m.stakes[pos.ID] = cloneStake(pos)
	return cloneStake(pos), nil
}

func (m *MemoryStore) GetStake(_ context.Context, userID, stakeID string) (domain.StakingPosition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos, ok := m.stakes[stakeID]
	if !ok || pos.UserID != userID {
		return domain.StakingPosition{}, ErrNotFound
	}
	return cloneStake(pos), nil
}

func (m *MemoryStore) ListStakes(_ context.Context, userID string, limit int) ([]domain.StakingPosition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.StakingPosition
	for _, pos := range m.stakes {
		if pos.UserID == userID {
			out = append(out, cloneStake(pos))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) UpdateStake(_ context.Context, pos domain.StakingPosition) (domain.StakingPosition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateStakeLocked(pos)
}

func (m *MemoryStore) ClaimStake(_ context.Context, pos domain.StakingPosition) (domain.StakingPosition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.stakes[pos.ID]
	if !ok {
		return domain.StakingPosition{}, ErrNotFound
	}
	if current.Status == domain.StakeClaimed {
		return domain.StakingPosition{}, ErrConflict
	}
	updated, err := m.updateStakeLocked(pos)
	if err != nil {
		return domain.StakingPosition{}, err
	}
	if _, err := m.applyLocked(holding(pos.UserID), pos.ExpectedReturn, ReasonStakeClaim, pos.ID); err != nil {
		m.stakes[pos.ID] = current
		return domain.StakingPosition{}, err
	}
	return updated, nil
}

func (m *MemoryStore) InsertNotification(_ context.Context, n domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = m.now()
	}
	m.notifications = append(m.notifications, n)
	return nil
}

func (m *MemoryStore) ListNotifications(_ context.Context, userID string, limit int) ([]domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Notification
	for i := len(m.notifications) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if m.notifications[i].UserID == userID {
			out = append(out, m.notifications[i])
		}
	}
	return out, nil
}

func (m *MemoryStore) GetSetting(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.settings[key]
	return v, ok, nil
}

func (m *MemoryStore) PutSetting(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

func (m *MemoryStore) KYCStatus(_ context.Context, userID string) (domain.KYCStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if status, ok := m.kyc[userID]; ok {
		return status, nil
	}
	return domain.KYCNotSubmitted, nil
}

func (m *MemoryStore) SetKYCStatus(_ context.Context, userID string, status domain.KYCStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kyc[userID] = status
	return nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() {}

func (m *MemoryStore) now() time.Time {
	return m.nowFn().UTC()
}

func (m *MemoryStore) balanceLocked(ref domain.AccountRef) domain.Balance {
	if b, ok := m.balances[ref]; ok {
		return b
	}
	return domain.Balance{Account: ref, Amount: decimal.Zero}
}

// applyLocked moves the balance by delta and appends the ledger entry.
func (m *MemoryStore) applyLocked(ref domain.AccountRef, delta decimal.Decimal, reason, reference string) (domain.LedgerEntry, error) {
	if delta.IsZero() {
		return domain.LedgerEntry{}, ErrInvalidAmount
	}
	current := m.balanceLocked(ref)
	next := current.Amount.Add(delta)
	if next.IsNegative() {
		return domain.LedgerEntry{}, ErrInsufficientHolding
	}
	now := m.now()
	m.balances[ref] = domain.Balance{Account: ref, Amount: next, UpdatedAt: now}
	entry := domain.LedgerEntry{
		ID:           uuid.NewString(),
		Account:      ref,
		Delta:        delta,
		BalanceAfter: next,
		Reason:       reason,
		Reference:    reference,
		CreatedAt:    now,
	}
	m.entries = append(m.entries, entry)
	return entry, nil
}

func (m *MemoryStore) updateStakeLocked(pos domain.StakingPosition) (domain.StakingPosition, error) {
	current, ok := m.stakes[pos.ID]
	if !ok || current.UserID != pos.UserID {
		return domain.StakingPosition{}, ErrNotFound
	}
	if current.Version != pos.Version {
		return domain.StakingPosition{}, ErrConflict
	}
	pos.Version++
	pos.CreatedAt = current.CreatedAt
	pos.UpdatedAt = m.now()
	m.stakes[pos.ID] = cloneStake(pos)
	return cloneStake(pos), nil
}

func cloneStake(pos domain.StakingPosition) domain.StakingPosition {
	pos.InterestHistory = append([]domain.InterestEntry(nil), pos.InterestHistory...)
	return pos
}
