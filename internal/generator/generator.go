package generator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vanshika/icorewards/internal/domain"
	"github.com/vanshika/icorewards/internal/service"
)

// UserRecord is one generated signup.
type UserRecord struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email,omitempty"`
	Mobile     string    `json:"mobile,omitempty"`
	ReferrerID string    `json:"referrerId,omitempty"`
	Depth      int       `json:"depth"`
	SignedUpAt time.Time `json:"signedUpAt"`
}

// PurchaseRecord is one generated confirmed payment.
type PurchaseRecord struct {
	UserID     string            `json:"userId"`
	SourceType domain.SourceType `json:"sourceType"`
	SourceID   string            `json:"sourceId"`
	AmountINR  decimal.Decimal   `json:"amountInr"`
	PaidAt     time.Time         `json:"paidAt"`
}

// Dataset contains the generated users and purchases. Users are ordered so
// every referrer precedes its referees.
type Dataset struct {
	Users     []UserRecord     `json:"users"`
	Purchases []PurchaseRecord `json:"purchases"`
}

// Generator produces a seeded referral forest with purchases on top of it.
type Generator struct {
	cfg           Config
	rand          *rand.Rand
	nameFragments nameFragments
	now           time.Time
}

// New returns a configured Generator instance.
func New(cfg Config) *Generator {
	def := DefaultConfig()
	if cfg.NumUsers <= 0 {
		cfg.NumUsers = def.NumUsers
	}
	if cfg.NumPurchases < 0 {
		cfg.NumPurchases = 0
	}
	if cfg.RootShare <= 0 {
		cfg.RootShare = def.RootShare
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = def.MaxDepth
	}
	if cfg.MinAmountINR <= 0 {
		cfg.MinAmountINR = def.MinAmountINR
	}
	if cfg.MaxAmountINR < cfg.MinAmountINR {
		cfg.MaxAmountINR = cfg.MinAmountINR
	}
	if cfg.Seed == 0 {
		cfg.Seed = uint64(time.Now().UnixNano())
	}

	return &Generator{
		cfg:           cfg,
		rand:          rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		nameFragments: defaultNameFragments(),
		now:           time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

// WithReferenceTime anchors generated timestamps before t.
func (g *Generator) WithReferenceTime(t time.Time) *Generator {
	g.now = t.UTC()
	return g
}

// Generate synthesises users and purchases. It respects context cancellation.
func (g *Generator) Generate(ctx context.Context) (Dataset, error) {
	users := make([]UserRecord, g.cfg.NumUsers)

	for i := range users {
		if err := ctx.Err(); err != nil {
			return Dataset{}, err
		}

		first, last := g.randomName()
		u := UserRecord{
			ID:         fmt.Sprintf("USR-%06d", i+1),
			Name:       first + " " + last,
			SignedUpAt: g.now.Add(-time.Duration(g.cfg.NumUsers-i) * time.Minute),
		}
		if g.rand.Float64() < 0.8 {
			u.Email = g.randomEmail(first, last, i)
		}
		if g.rand.Float64() < 0.6 {
			u.Mobile = g.randomMobile()
		}
		if i > 0 && g.rand.Float64() >= g.cfg.RootShare {
			parent := users[g.pickParent(i)]
			if parent.Depth < g.cfg.MaxDepth {
				u.ReferrerID = parent.ID
				u.Depth = parent.Depth + 1
			}
		}
		users[i] = u
	}

	purchases := make([]PurchaseRecord, g.cfg.NumPurchases)
	span := (g.cfg.MaxAmountINR - g.cfg.MinAmountINR) * 100

	for i := range purchases {
		if err := ctx.Err(); err != nil {
			return Dataset{}, err
		}

		buyer := users[g.rand.IntN(len(users))]
		sourceType := domain.SourceICO
		prefix := "pay"
		if g.rand.Float64() < g.cfg.OrderShare {
			sourceType = domain.SourceOrder
			prefix = "order"
		}
		paise := int64(g.cfg.MinAmountINR) * 100
		if span > 0 {
			paise += g.rand.Int64N(int64(span) + 1)
		}
		purchases[i] = PurchaseRecord{
			UserID:     buyer.ID,
			SourceType: sourceType,
			SourceID:   fmt.Sprintf("%s_%07d", prefix, i+1),
			AmountINR:  decimal.New(paise, -2),
			PaidAt:     buyer.SignedUpAt.Add(time.Duration(1+g.rand.IntN(60*24*30)) * time.Minute),
		}
	}

	return Dataset{Users: users, Purchases: purchases}, nil
}

// pickParent favours recent signups so chains grow deep instead of wide.
func (g *Generator) pickParent(i int) int {
	window := 50
	if i < window || g.rand.Float64() < 0.3 {
		return g.rand.IntN(i)
	}
	return i - 1 - g.rand.IntN(window)
}

func (g *Generator) randomName() (string, string) {
	return g.nameFragments.first[g.rand.IntN(len(g.nameFragments.first))],
		g.nameFragments.last[g.rand.IntN(len(g.nameFragments.last))]
}

func (g *Generator) randomEmail(first, last string, i int) string {
	host := g.nameFragments.domains[g.rand.IntN(len(g.nameFragments.domains))]
	return fmt.Sprintf("%s.%s%d@%s", strings.ToLower(first), strings.ToLower(last), i+1, host)
}

func (g *Generator) randomMobile() string {
	return fmt.Sprintf("+91%d%09d", 6+g.rand.IntN(4), g.rand.IntN(1_000_000_000))
}

// ImportUsers converts generated signups into bulk import requests.
func ImportUsers(records []UserRecord) []service.ImportUser {
	out := make([]service.ImportUser, len(records))
	for i, r := range records {
		out[i] = service.ImportUser{
			RegisterUserInput: service.RegisterUserInput{
				ID:     r.ID,
				Name:   r.Name,
				Email:  r.Email,
				Mobile: r.Mobile,
			},
			ReferrerID: r.ReferrerID,
		}
	}
	return out
}

// PurchaseInputs converts generated payments into purchase confirmations.
// Token amounts are left to the current price.
func PurchaseInputs(records []PurchaseRecord) []service.PurchaseInput {
	out := make([]service.PurchaseInput, len(records))
	for i, r := range records {
		out[i] = service.PurchaseInput{
			UserID:     r.UserID,
			SourceType: r.SourceType,
			SourceID:   r.SourceID,
			FiatAmount: r.AmountINR,
		}
	}
	return out
}

type nameFragments struct {
	first   []string
	last    []string
	domains []string
}

func defaultNameFragments() nameFragments {
	return nameFragments{
		first:   []string{"Aarav", "Vivaan", "Aditya", "Ananya", "Diya", "Ishaan", "Kavya", "Meera", "Rohan", "Saanvi", "Arjun", "Priya", "Neha", "Kabir", "Zara"},
		last:    []string{"Sharma", "Verma", "Patel", "Iyer", "Reddy", "Khan", "Gupta", "Nair", "Singh", "Das", "Mehta", "Joshi"},
		domains: []string{"example.com", "mail.com", "inbox.in", "post.net"},
	}
}
