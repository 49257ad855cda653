package generator

// Config drives the synthetic referral dataset generator.
type Config struct {
	NumUsers int

	// RootShare is the probability that a user signs up without a referrer.
	RootShare float64

	// MaxDepth bounds the generation distance from a root user.
	MaxDepth int

	NumPurchases int
	OrderShare   float64
	MinAmountINR int
	MaxAmountINR int
	Seed         uint64
}

// DefaultConfig returns settings producing referral chains deep enough to
// exercise every commission level.
func DefaultConfig() Config {
	return Config{
		NumUsers:     5000,
		RootShare:    0.05,
		MaxDepth:     12,
		NumPurchases: 20000,
		OrderShare:   0.3,
		MinAmountINR: 100,
		MaxAmountINR: 50000,
		Seed:         42,
	}
}
