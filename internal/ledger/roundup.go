package ledger

import (
	"math/rand"
	"time"
)

// RoundupStrategy computes the savings amount, in paise, generated by a
// purchase. A result of 0 means no round-up applies and the caller skips
// creating a transaction.
//
// The amount is computed exactly once, server-side, and persisted with the
// transaction; any client-side preview is advisory only.
type RoundupStrategy interface {
	Roundup(purchaseAmount int64) int64
}

// CeilingStrategy rounds the purchase up to the next whole rupee.
// Roundup(4650) == 50; Roundup(5000) == 0.
type CeilingStrategy struct{}

func (CeilingStrategy) Roundup(purchaseAmount int64) int64 {
	if purchaseAmount <= 0 {
		return 0
	}
	return (100 - purchaseAmount%100) % 100
}

// RandomFlatStrategy saves a random flat amount between 5 and 10 rupees,
// independent of the purchase amount ("gamified savings"). Paise granularity
// gives the 2-decimal precision by construction.
type RandomFlatStrategy struct {
	rng *rand.Rand
}

func NewRandomFlatStrategy() *RandomFlatStrategy {
	return &RandomFlatStrategy{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// NewRandomFlatStrategyWithSource exists for deterministic tests.
func NewRandomFlatStrategyWithSource(src rand.Source) *RandomFlatStrategy {
	return &RandomFlatStrategy{rng: rand.New(src)}
}

func (s *RandomFlatStrategy) Roundup(purchaseAmount int64) int64 {
	// [500, 1000) paise, i.e. [5.00, 10.00) rupees.
	return s.rng.Int63n(500) + 500
}

// StrategyFromName maps the ROUNDUP_STRATEGY config value to a strategy.
// Unknown names fall back to the ceiling strategy.
func StrategyFromName(name string) RoundupStrategy {
	if name == "random" {
		return NewRandomFlatStrategy()
	}
	return CeilingStrategy{}
}
