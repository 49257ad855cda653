package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/vanshika/icorewards/internal/config"
	"github.com/vanshika/icorewards/internal/domain"
	"github.com/vanshika/icorewards/internal/metrics"
	"github.com/vanshika/icorewards/internal/repository"
)

const (
	codeCacheSize       = 4096
	defaultEarningLimit = 50
	maxEarningLimit     = 200
	defaultDownlineSize = 20
	maxDownlineSize     = 100
	maxTreeDepth        = domain.MaxReferralLevels - 1
)

// ReferralRepository is the storage contract of the referral engine.
type ReferralRepository interface {
	CreateUser(ctx context.Context, user domain.User) (domain.User, error)
	GetUser(ctx context.Context, userID string) (domain.User, error)
	FindByReferralCode(ctx context.Context, code string) (domain.User, error)
	SetReferralCode(ctx context.Context, userID, code string) (string, error)
	AttachReferrer(ctx context.Context, userID, referrerID string, path []string) (bool, error)
	IncrementDownline(ctx context.Context, ancestorID string, depth int) ([]int, int, error)
	RaiseLevel(ctx context.Context, userID string, level int) (int, error)
	RecordEarning(ctx context.Context, earning domain.ReferralEarning) (bool, error)
	ListEarnings(ctx context.Context, userID string, limit int) (domain.EarningListResult, error)
	ListDownline(ctx context.Context, userID string, depth, offset, limit int) (domain.DownlineListResult, error)
	LoadSubtree(ctx context.Context, rootID string) ([]domain.User, error)
}

// ActivityLedger reports completed token-buy volume for the activity check.
type ActivityLedger interface {
	BuyVolumeSince(ctx context.Context, userID string, since time.Time) (decimal.Decimal, error)
}

// ReferralService maintains the referral network and pays commissions.
type ReferralService struct {
	repo       ReferralRepository
	activity   ActivityLedger
	rules      ReferralRules
	notifier   *Notifier
	metrics    *metrics.Metrics
	logger     *slog.Logger
	codes      *lru.Cache[string, string]
	nowFn      func() time.Time
	codeFn     func() string
	newBackOff func() backoff.BackOff
}

// NewReferralService constructs the engine. activity may be nil when the
// monthly requirement is disabled.
func NewReferralService(repo ReferralRepository, activity ActivityLedger, rules ReferralRules) *ReferralService {
	codes, err := lru.New[string, string](codeCacheSize)
	if err != nil {
		panic(fmt.Sprintf("referral code cache: %v", err))
	}
	return &ReferralService{
		repo:       repo,
		activity:   activity,
		rules:      rules,
		logger:     slog.Default().With("component", "referrals"),
		codes:      codes,
		nowFn:      time.Now,
		codeFn:     randomReferralCode,
		newBackOff: defaultBackOff,
	}
}

// WithClock overrides the time provider (used primarily in tests).
func (s *ReferralService) WithClock(nowFn func() time.Time) *ReferralService {
	if nowFn != nil {
		s.nowFn = nowFn
	}
	return s
}

// WithLogger sets the logger used for fan-out diagnostics.
func (s *ReferralService) WithLogger(logger *slog.Logger) *ReferralService {
	if logger != nil {
		s.logger = logger.With("component", "referrals")
	}
	return s
}

// WithMetrics records commission outcomes on m.
func (s *ReferralService) WithMetrics(m *metrics.Metrics) *ReferralService {
	s.metrics = m
	return s
}

// WithNotifier sends "Referral commission" notifications through n.
func (s *ReferralService) WithNotifier(n *Notifier) *ReferralService {
	s.notifier = n
	return s
}

// WithRetryPolicy overrides the per-ancestor payout retry schedule.
func (s *ReferralService) WithRetryPolicy(fn func() backoff.BackOff) *ReferralService {
	if fn != nil {
		s.newBackOff = fn
	}
	return s
}

// WithCodeGenerator overrides the random referral code source.
func (s *ReferralService) WithCodeGenerator(fn func() string) *ReferralService {
	if fn != nil {
		s.codeFn = fn
	}
	return s
}

// Rules returns the active referral rules.
func (s *ReferralService) Rules() ReferralRules {
	return s.rules
}

// RegisterUser creates the user, assigns its referral code and applies the
// optional referral code. An invalid code is rejected before anything is written.
func (s *ReferralService) RegisterUser(ctx context.Context, in RegisterUserInput) (domain.User, error) {
	id := strings.TrimSpace(in.ID)
	if id == "" {
		return domain.User{}, ErrMissingUserID
	}
	code := config.NormalizeReferralCode(in.ReferralCode)
	if code != "" {
		referrer, found, err := s.resolveCode(ctx, code)
		if err != nil {
			return domain.User{}, err
		}
		if !found && code != s.rules.FallbackCode {
			return domain.User{}, ErrInvalidReferralCode
		}
		if found && referrer.ID == id {
			return domain.User{}, ErrSelfReferral
		}
	}

	if _, err := s.getUser(ctx, id); errors.Is(err, ErrUserNotFound) {
		_, err = s.repo.CreateUser(ctx, domain.User{
			ID:     id,
			Name:   sanitizeName(in.Name),
			Email:  normalizeEmail(in.Email),
			Mobile: normalizeMobile(in.Mobile),
		})
		if err != nil {
			return domain.User{}, err
		}
	} else if err != nil {
		return domain.User{}, err
	}

	if _, err := s.EnsureReferralCode(ctx, id); err != nil {
		return domain.User{}, err
	}
	if err := s.ApplyReferralCode(ctx, id, code); err != nil {
		return domain.User{}, err
	}
	return s.getUser(ctx, id)
}

// EnsureReferralCode returns the user's referral code, generating one when
// missing. Random codes are retried on collision, then a timestamp code is used.
func (s *ReferralService) EnsureReferralCode(ctx context.Context, userID string) (string, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.ReferralCode != "" {
		return user.ReferralCode, nil
	}

	for attempt := 0; attempt < referralCodeAttempts; attempt++ {
		code, err := s.repo.SetReferralCode(ctx, userID, s.codeFn())
		if errors.Is(err, repository.ErrReferralCodeTaken) {
			continue
		}
		if err != nil {
			return "", s.mapRepoErr(err)
		}
		s.codes.Add(code, userID)
		return code, nil
	}

	code, err := s.repo.SetReferralCode(ctx, userID, timestampReferralCode(s.now()))
	if err != nil {
		return "", s.mapRepoErr(err)
	}
	s.codes.Add(code, userID)
	return code, nil
}

// ApplyReferralCode attaches userID below the owner of code. Empty codes,
// the fallback code and already-referred users are no-ops.
func (s *ReferralService) ApplyReferralCode(ctx context.Context, userID, code string) error {
	code = config.NormalizeReferralCode(code)
	if code == "" {
		return nil
	}
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.HasReferrer() {
		s.metrics.Signup("already_referred")
		return nil
	}

	referrer, found, err := s.resolveCode(ctx, code)
	if err != nil {
		return err
	}
	if !found {
		if s.rules.FallbackCode != "" && code == s.rules.FallbackCode {
			s.metrics.Signup("fallback")
			return nil
		}
		s.metrics.Signup("invalid_code")
		return ErrInvalidReferralCode
	}
	if referrer.ID == user.ID {
		s.metrics.Signup("self_referral")
		return ErrSelfReferral
	}
	if slices.Contains(referrer.ReferralPath, user.ID) {
		s.metrics.Signup("loop")
		return ErrReferralLoop
	}

	path := BuildReferralPath(referrer)
	attached, err := s.repo.AttachReferrer(ctx, user.ID, referrer.ID, path)
	if err != nil {
		return s.mapRepoErr(err)
	}
	if !attached {
		s.metrics.Signup("already_referred")
		return nil
	}
	s.metrics.Signup("attached")
	s.logger.Info("referral attached", "user_id", user.ID, "referrer_id", referrer.ID, "path_length", len(path))

	s.fanOutDownline(ctx, user.ID, path)
	return nil
}

// fanOutDownline bumps the downline counter of every ancestor in path and
// re-evaluates its level. Each ancestor is updated independently.
func (s *ReferralService) fanOutDownline(ctx context.Context, userID string, path []string) {
	var g errgroup.Group
	g.SetLimit(s.workers())
	for depth, ancestorID := range path {
		g.Go(func() error {
			if err := s.promoteAncestor(ctx, ancestorID, depth); err != nil {
				s.logger.Error("downline update failed",
					"user_id", userID, "ancestor_id", ancestorID, "depth", depth, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (s *ReferralService) promoteAncestor(ctx context.Context, ancestorID string, depth int) error {
	counts, stored, err := s.repo.IncrementDownline(ctx, ancestorID, depth)
	if err != nil {
		return err
	}
	if level := CalculateLevel(counts, s.rules.PromotionThreshold); level > stored {
		if _, err := s.repo.RaiseLevel(ctx, ancestorID, level); err != nil {
			return err
		}
		s.logger.Info("referral level raised", "user_id", ancestorID, "level", level)
	}
	_, err = s.EnsureReferralCode(ctx, ancestorID)
	return err
}

// Summary returns the referral dashboard of userID.
func (s *ReferralService) Summary(ctx context.Context, userID string) (domain.ReferralSummary, error) {
	code, err := s.EnsureReferralCode(ctx, userID)
	if err != nil {
		return domain.ReferralSummary{}, err
	}
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return domain.ReferralSummary{}, err
	}

	counts := user.DownlineCounts()
	total := 0
	for _, c := range counts {
		total += c
	}
	return domain.ReferralSummary{
		UserID:         user.ID,
		ReferralCode:   code,
		ReferredBy:     user.ReferredBy,
		Level:          user.ReferralLevel,
		DownlineCounts: counts,
		TotalDownline:  total,
		WalletBalance:  user.ReferralWalletBalance,
		TotalEarned:    user.ReferralTotalEarned,
		Percentages:    append([]decimal.Decimal(nil), s.rules.Percentages...),
	}, nil
}

// Earnings returns the newest commission records of userID.
func (s *ReferralService) Earnings(ctx context.Context, userID string, limit int) (domain.EarningListResult, error) {
	if _, err := s.getUser(ctx, userID); err != nil {
		return domain.EarningListResult{}, err
	}
	return s.repo.ListEarnings(ctx, userID, normalizeLimit(limit, defaultEarningLimit, maxEarningLimit))
}

// Downline returns one page of the users found at the requested depth below userID.
func (s *ReferralService) Downline(ctx context.Context, userID string, params DownlineParams) (DownlinePage, error) {
	if _, err := s.getUser(ctx, userID); err != nil {
		return DownlinePage{}, err
	}
	depth := clampInt(params.Depth, 0, maxTreeDepth)
	page, pageSize := normalizePagination(params.Page, params.PageSize, defaultDownlineSize, maxDownlineSize)

	res, err := s.repo.ListDownline(ctx, userID, depth, (page-1)*pageSize, pageSize)
	if err != nil {
		return DownlinePage{}, err
	}
	return DownlinePage{
		Depth:      depth,
		Items:      res.Items,
		Pagination: buildPaginationMeta(page, pageSize, res.Total),
	}, nil
}

// Tree returns the referral tree rooted at userID pruned to maxDepth. Values
// outside 1..8 select the full depth.
func (s *ReferralService) Tree(ctx context.Context, userID string, maxDepth int) (*domain.ReferralNode, error) {
	if maxDepth <= 0 || maxDepth > maxTreeDepth {
		maxDepth = maxTreeDepth
	}
	users, err := s.repo.LoadSubtree(ctx, userID)
	if err != nil {
		return nil, err
	}
	sortUsersByJoin(users)
	root := BuildReferralTree(users, userID)
	if root == nil {
		return nil, ErrUserNotFound
	}
	return PruneReferralTree(root, maxDepth), nil
}

// GetUser loads a user, translating storage misses to ErrUserNotFound.
func (s *ReferralService) GetUser(ctx context.Context, userID string) (domain.User, error) {
	return s.getUser(ctx, userID)
}

func (s *ReferralService) getUser(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return domain.User{}, s.mapRepoErr(err)
	}
	return user, nil
}

// resolveCode maps a normalised code to its owner. Codes never change once
// assigned, so the code to id mapping is cached.
func (s *ReferralService) resolveCode(ctx context.Context, code string) (domain.User, bool, error) {
	if id, ok := s.codes.Get(code); ok {
		user, err := s.getUser(ctx, id)
		if err == nil {
			return user, true, nil
		}
		if !errors.Is(err, ErrUserNotFound) {
			return domain.User{}, false, err
		}
		s.codes.Remove(code)
	}

	user, err := s.repo.FindByReferralCode(ctx, code)
	if errors.Is(err, repository.ErrUserNotFound) {
		return domain.User{}, false, nil
	}
	if err != nil {
		return domain.User{}, false, err
	}
	s.codes.Add(code, user.ID)
	return user, true, nil
}

func (s *ReferralService) mapRepoErr(err error) error {
	if errors.Is(err, repository.ErrUserNotFound) {
		return ErrUserNotFound
	}
	return err
}

func (s *ReferralService) workers() int {
	if s.rules.Workers <= 0 {
		return 4
	}
	return s.rules.Workers
}

func (s *ReferralService) now() time.Time {
	return s.nowFn().UTC()
}
