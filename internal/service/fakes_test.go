package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"

	"github.com/vanshika/icorewards/internal/domain"
	"github.com/vanshika/icorewards/internal/repository"
)

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

// fakeRepo is an in-memory ReferralRepository with the same atomicity the
// graph statements provide.
type fakeRepo struct {
	mu       sync.Mutex
	users    map[string]domain.User
	earnings map[string]domain.ReferralEarning
	order    []string

	redemptions map[string]fakeRedemption

	getErr    map[string]error
	recordErr error
	created   int
}

type fakeRedemption struct {
	userID   string
	amount   decimal.Decimal
	reversed bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:    make(map[string]domain.User),
		earnings: make(map[string]domain.ReferralEarning),
		getErr:   make(map[string]error),

		redemptions: make(map[string]fakeRedemption),
	}
}

func (f *fakeRepo) CreateUser(_ context.Context, u domain.User) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.users[u.ID]; ok {
		return existing, nil
	}
	f.created++
	u.CreatedAt = fixedNow.Add(time.Duration(len(f.order)) * time.Second)
	u.UpdatedAt = u.CreatedAt
	u.ReferralDownlineCounts = make([]int, domain.MaxReferralLevels)
	u.ReferralWalletBalance = decimal.Zero
	u.ReferralTotalEarned = decimal.Zero
	f.users[u.ID] = u
	f.order = append(f.order, u.ID)
	return u, nil
}

func (f *fakeRepo) GetUser(_ context.Context, id string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.getErr[id]; err != nil {
		return domain.User{}, err
	}
	u, ok := f.users[id]
	if !ok {
		return domain.User{}, repository.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (f *fakeRepo) FindByReferralCode(_ context.Context, code string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ReferralCode == code {
			return cloneUser(u), nil
		}
	}
	return domain.User{}, repository.ErrUserNotFound
}

func (f *fakeRepo) SetReferralCode(_ context.Context, id, code string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return "", repository.ErrUserNotFound
	}
	if u.ReferralCode != "" {
		return u.ReferralCode, nil
	}
	for _, other := range f.users {
		if other.ReferralCode == code {
			return "", repository.ErrReferralCodeTaken
		}
	}
	u.ReferralCode = code
	f.users[id] = u
	return code, nil
}

func (f *fakeRepo) AttachReferrer(_ context.Context, id, referrerID string, path []string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return false, repository.ErrUserNotFound
	}
	if u.ReferredBy != "" {
		return false, nil
	}
	u.ReferredBy = referrerID
	u.ReferralPath = append([]string(nil), path...)
	f.users[id] = u
	return true, nil
}

func (f *fakeRepo) IncrementDownline(_ context.Context, id string, depth int) ([]int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, 0, repository.ErrUserNotFound
	}
	counts := u.DownlineCounts()
	counts[depth]++
	u.ReferralDownlineCounts = counts
	f.users[id] = u
	return append([]int(nil), counts...), u.ReferralLevel, nil
}

func (f *fakeRepo) RaiseLevel(_ context.Context, id string, level int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return 0, repository.ErrUserNotFound
	}
	if level > u.ReferralLevel {
		u.ReferralLevel = level
		f.users[id] = u
	}
	return u.ReferralLevel, nil
}

func (f *fakeRepo) RecordEarning(_ context.Context, e domain.ReferralEarning) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recordErr != nil {
		return false, f.recordErr
	}
	u, ok := f.users[e.EarnerID]
	if !ok {
		return false, repository.ErrUserNotFound
	}
	key := repository.EarningKey(e.EarnerID, e.SourceType, e.SourceID, e.Depth)
	if _, exists := f.earnings[key]; exists {
		return false, nil
	}
	f.earnings[key] = e
	u.ReferralWalletBalance = u.ReferralWalletBalance.Add(e.Amount)
	u.ReferralTotalEarned = u.ReferralTotalEarned.Add(e.Amount)
	f.users[e.EarnerID] = u
	return true, nil
}

func (f *fakeRepo) ListEarnings(_ context.Context, userID string, limit int) (domain.EarningListResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []domain.ReferralEarning
	for _, e := range f.earnings {
		if e.EarnerID == userID {
			items = append(items, e)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Depth < items[j].Depth })
	total := int64(len(items))
	if len(items) > limit {
		items = items[:limit]
	}
	return domain.EarningListResult{Items: items, Total: total}, nil
}

func (f *fakeRepo) ListDownline(_ context.Context, userID string, depth, offset, limit int) (domain.DownlineListResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []domain.DownlineMember
	for _, id := range f.order {
		u := f.users[id]
		if len(u.ReferralPath) > depth && u.ReferralPath[depth] == userID {
			items = append(items, domain.DownlineMember{
				UserID: u.ID, Name: u.Name, ReferralCode: u.ReferralCode, ReferredBy: u.ReferredBy,
				ReferralLevel: u.ReferralLevel, Depth: depth, JoinedAt: u.CreatedAt,
			})
		}
	}
	total := int64(len(items))
	if offset >= len(items) {
		return domain.DownlineListResult{Items: nil, Total: total}, nil
	}
	end := min(offset+limit, len(items))
	return domain.DownlineListResult{Items: items[offset:end], Total: total}, nil
}

func (f *fakeRepo) LoadSubtree(_ context.Context, rootID string) ([]domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.User
	for _, id := range f.order {
		u := f.users[id]
		if u.ID == rootID || u.DepthOf(rootID) >= 0 {
			out = append(out, cloneUser(u))
		}
	}
	return out, nil
}

func (f *fakeRepo) DebitReferralBalance(_ context.Context, userID, redemptionID string, amount decimal.Decimal) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return false, repository.ErrUserNotFound
	}
	if _, exists := f.redemptions[redemptionID]; exists {
		return false, nil
	}
	if u.ReferralWalletBalance.LessThan(amount) {
		return false, fmt.Errorf("%w: available %s", repository.ErrInsufficientReferralBalance, u.ReferralWalletBalance.StringFixed(2))
	}
	u.ReferralWalletBalance = u.ReferralWalletBalance.Sub(amount)
	f.users[userID] = u
	f.redemptions[redemptionID] = fakeRedemption{userID: userID, amount: amount}
	return true, nil
}

func (f *fakeRepo) ReverseReferralRedemption(_ context.Context, userID, redemptionID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.redemptions[redemptionID]
	if !ok || r.reversed || r.userID != userID {
		return false, nil
	}
	u := f.users[userID]
	u.ReferralWalletBalance = u.ReferralWalletBalance.Add(r.amount)
	f.users[userID] = u
	r.reversed = true
	f.redemptions[redemptionID] = r
	return true, nil
}

func (f *fakeRepo) user(id string) domain.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneUser(f.users[id])
}

// seed stores a user directly, bypassing registration.
func (f *fakeRepo) seed(u domain.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ReferralDownlineCounts == nil {
		u.ReferralDownlineCounts = make([]int, domain.MaxReferralLevels)
	}
	if _, ok := f.users[u.ID]; !ok {
		f.order = append(f.order, u.ID)
	}
	f.users[u.ID] = u
}

func cloneUser(u domain.User) domain.User {
	u.ReferralPath = append([]string(nil), u.ReferralPath...)
	u.ReferralDownlineCounts = append([]int(nil), u.ReferralDownlineCounts...)
	return u
}

// fakeActivity returns fixed buy volumes per user.
type fakeActivity struct {
	volumes map[string]decimal.Decimal
	err     error
}

func (a fakeActivity) BuyVolumeSince(_ context.Context, userID string, _ time.Time) (decimal.Decimal, error) {
	if a.err != nil {
		return decimal.Zero, a.err
	}
	return a.volumes[userID], nil
}

// recordingActivity remembers the window start of every volume query.
type recordingActivity struct {
	mu    sync.Mutex
	since []time.Time
}

func (a *recordingActivity) BuyVolumeSince(_ context.Context, _ string, since time.Time) (decimal.Decimal, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.since = append(a.since, since)
	return decimal.NewFromInt(1000), nil
}

func (a *recordingActivity) calls() []time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]time.Time(nil), a.since...)
}

// sequentialCodes hands out ICO000001, ICO000002, ...
func sequentialCodes() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("ICO%06d", n)
	}
}

func noRetry() backoff.BackOff {
	return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 2)
}

func newReferralService(repo *fakeRepo, activity ActivityLedger, rules ReferralRules) *ReferralService {
	return NewReferralService(repo, activity, rules).
		WithClock(func() time.Time { return fixedNow }).
		WithCodeGenerator(sequentialCodes()).
		WithRetryPolicy(noRetry)
}

// noActivityRules disables the monthly activity requirement.
func noActivityRules() ReferralRules {
	rules := DefaultReferralRules()
	rules.MonthlyTokenRequirement = decimal.Zero
	return rules
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }
