package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/vanshika/icorewards/internal/domain"
	"github.com/vanshika/icorewards/internal/graph"
)

var (
	// ErrUserNotFound is returned when no user node matches the lookup.
	ErrUserNotFound = errors.New("user not found")
	// ErrReferralCodeTaken is returned when a referral code collides with an existing one.
	ErrReferralCodeTaken = errors.New("referral code already in use")
)

const constraintViolation = "Neo.ClientError.Schema.ConstraintValidationFailed"

// Repository persists the referral network on the graph database.
type Repository struct {
	client graph.Client
	nowFn  func() time.Time
}

// New instantiates a Repository backed by the supplied graph client.
func New(client graph.Client) *Repository {
	return &Repository{client: client, nowFn: time.Now}
}

// WithClock overrides the timestamp source used for createdAt/updatedAt.
func (r *Repository) WithClock(nowFn func() time.Time) *Repository {
	if nowFn != nil {
		r.nowFn = nowFn
	}
	return r
}

// EnsureSchema creates the uniqueness constraints and indexes the engine relies on.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := r.client.ExecuteWrite(ctx, stmt, nil); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// CreateUser inserts the user node if it does not exist yet and returns the
// stored state. Referral linkage and counters are never overwritten.
func (r *Repository) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	if user.ID == "" {
		return domain.User{}, errors.New("user id is required")
	}

	now := r.now()
	params := map[string]any{
		"userId":     user.ID,
		"props":      userProperties(user),
		"zeroCounts": zeroCounts(),
		"now":        formatTime(now),
	}
	res, err := r.client.ExecuteWrite(ctx, createUserCypher, params)
	if err != nil {
		return domain.User{}, fmt.Errorf("create user %s: %w", user.ID, wrapConstraint(err))
	}
	rec := res.First()
	if rec == nil {
		return domain.User{}, fmt.Errorf("create user %s: no record returned", user.ID)
	}
	return decodeUser(rec["user"]), nil
}

// GetUser loads a user by id.
func (r *Repository) GetUser(ctx context.Context, userID string) (domain.User, error) {
	res, err := r.client.ExecuteRead(ctx, getUserCypher, map[string]any{"userId": userID})
	if err != nil {
		return domain.User{}, fmt.Errorf("get user %s: %w", userID, err)
	}
	rec := res.First()
	if rec == nil {
		return domain.User{}, ErrUserNotFound
	}
	return decodeUser(rec["user"]), nil
}

// FindByReferralCode resolves a normalised referral code to its owner.
func (r *Repository) FindByReferralCode(ctx context.Context, code string) (domain.User, error) {
	res, err := r.client.ExecuteRead(ctx, findByCodeCypher, map[string]any{"code": code})
	if err != nil {
		return domain.User{}, fmt.Errorf("find referral code %s: %w", code, err)
	}
	rec := res.First()
	if rec == nil {
		return domain.User{}, ErrUserNotFound
	}
	return decodeUser(rec["user"]), nil
}

// SetReferralCode assigns code to the user unless one is already present and
// returns the code that ends up stored.
func (r *Repository) SetReferralCode(ctx context.Context, userID, code string) (string, error) {
	params := map[string]any{
		"userId": userID,
		"code":   code,
		"now":    formatTime(r.now()),
	}
	res, err := r.client.ExecuteWrite(ctx, setReferralCodeCypher, params)
	if err != nil {
		return "", fmt.Errorf("set referral code for %s: %w", userID, wrapConstraint(err))
	}
	rec := res.First()
	if rec == nil {
		return "", ErrUserNotFound
	}
	return toString(rec["code"]), nil
}

// AttachReferrer links the user to its referrer and stores the materialised
// path. It reports false when the user already had a referrer.
func (r *Repository) AttachReferrer(ctx context.Context, userID, referrerID string, path []string) (bool, error) {
	params := map[string]any{
		"userId":     userID,
		"referrerId": referrerID,
		"path":       path,
		"now":        formatTime(r.now()),
	}
	res, err := r.client.ExecuteWrite(ctx, attachReferrerCypher, params)
	if err != nil {
		return false, fmt.Errorf("attach referrer %s -> %s: %w", userID, referrerID, err)
	}
	return len(res.Records) > 0, nil
}

// IncrementDownline adds one member at depth to the ancestor's downline
// counters and returns the updated counts with the stored level.
func (r *Repository) IncrementDownline(ctx context.Context, ancestorID string, depth int) ([]int, int, error) {
	if depth < 0 || depth >= domain.MaxReferralLevels {
		return nil, 0, fmt.Errorf("downline depth %d out of range", depth)
	}
	params := map[string]any{
		"userId":     ancestorID,
		"depth":      depth,
		"zeroCounts": zeroCounts(),
		"now":        formatTime(r.now()),
	}
	res, err := r.client.ExecuteWrite(ctx, incrementDownlineCypher, params)
	if err != nil {
		return nil, 0, fmt.Errorf("increment downline of %s at depth %d: %w", ancestorID, depth, err)
	}
	rec := res.First()
	if rec == nil {
		return nil, 0, ErrUserNotFound
	}
	return toIntSlice(rec["counts"]), int(toInt64(rec["level"])), nil
}

// RaiseLevel stores level when it is higher than the current one.
func (r *Repository) RaiseLevel(ctx context.Context, userID string, level int) (int, error) {
	params := map[string]any{
		"userId": userID,
		"level":  level,
		"now":    formatTime(r.now()),
	}
	res, err := r.client.ExecuteWrite(ctx, raiseLevelCypher, params)
	if err != nil {
		return 0, fmt.Errorf("raise level of %s: %w", userID, err)
	}
	rec := res.First()
	if rec == nil {
		return 0, ErrUserNotFound
	}
	return int(toInt64(rec["level"])), nil
}

// ListDownline returns users whose referral path holds userID at depth.
func (r *Repository) ListDownline(ctx context.Context, userID string, depth, offset, limit int) (domain.DownlineListResult, error) {
	params := map[string]any{
		"userId": userID,
		"depth":  depth,
		"skip":   offset,
		"limit":  limit,
	}
	res, err := r.client.ExecuteRead(ctx, listDownlineCypher, params)
	if err != nil {
		return domain.DownlineListResult{}, fmt.Errorf("list downline query: %w", err)
	}

	items := make([]domain.DownlineMember, 0, len(res.Records))
	for _, rec := range res.Records {
		u := decodeUser(rec["user"])
		items = append(items, domain.DownlineMember{
			UserID:        u.ID,
			Name:          u.Name,
			ReferralCode:  u.ReferralCode,
			ReferredBy:    u.ReferredBy,
			ReferralLevel: u.ReferralLevel,
			Depth:         depth,
			JoinedAt:      u.CreatedAt,
		})
	}

	countRes, err := r.client.ExecuteRead(ctx, countDownlineCypher, params)
	if err != nil {
		return domain.DownlineListResult{}, fmt.Errorf("count downline query: %w", err)
	}
	var total int64
	if rec := countRes.First(); rec != nil {
		total = toInt64(rec["total"])
	}

	return domain.DownlineListResult{Items: items, Total: total}, nil
}

// LoadSubtree returns the root user together with every user whose referral
// path contains it, oldest first.
func (r *Repository) LoadSubtree(ctx context.Context, rootID string) ([]domain.User, error) {
	res, err := r.client.ExecuteRead(ctx, loadSubtreeCypher, map[string]any{"rootId": rootID})
	if err != nil {
		return nil, fmt.Errorf("load subtree of %s: %w", rootID, err)
	}
	users := make([]domain.User, 0, len(res.Records))
	for _, rec := range res.Records {
		users = append(users, decodeUser(rec["user"]))
	}
	return users, nil
}

func (r *Repository) now() time.Time {
	return r.nowFn().UTC()
}

func userProperties(u domain.User) map[string]any {
	props := map[string]any{
		"name":   u.Name,
		"email":  u.Email,
		"mobile": u.Mobile,
	}
	if u.ReferralCode != "" {
		props["referralCode"] = u.ReferralCode
	}
	return props
}

func zeroCounts() []int64 {
	return make([]int64, domain.MaxReferralLevels)
}

func wrapConstraint(err error) error {
	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) && neoErr.Code == constraintViolation {
		return fmt.Errorf("%w: %s", ErrReferralCodeTaken, neoErr.Msg)
	}
	return err
}
