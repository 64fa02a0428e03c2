package ledger_test

import (
	"math/rand"
	"testing"

	"github.com/sparewise/roundup-wallet/internal/ledger"
	"github.com/stretchr/testify/assert"
)

func TestCeilingStrategy(t *testing.T) {
	tests := []struct {
		name           string
		purchaseAmount int64
		expected       int64
	}{
		{"Rounds up to next rupee", 4650, 50},
		{"Whole rupee amount yields zero", 5000, 0},
		{"One paisa short of whole", 4699, 1},
		{"Just over a whole rupee", 4601, 99},
		{"Small purchase", 77, 23},
		{"Zero purchase yields zero", 0, 0},
		{"Negative purchase yields zero", -100, 0},
	}

	strategy := ledger.CeilingStrategy{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, strategy.Roundup(tt.purchaseAmount))
		})
	}
}

func TestCeilingStrategyDeterministic(t *testing.T) {
	strategy := ledger.CeilingStrategy{}
	first := strategy.Roundup(4650)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, strategy.Roundup(4650))
	}
}

func TestRandomFlatStrategyRange(t *testing.T) {
	strategy := ledger.NewRandomFlatStrategyWithSource(rand.NewSource(42))

	for _, purchase := range []int64{1, 4650, 5000, 1000000} {
		for i := 0; i < 200; i++ {
			got := strategy.Roundup(purchase)
			if got < 500 || got >= 1000 {
				t.Fatalf("Roundup(%d) = %d, want value in [500, 1000)", purchase, got)
			}
		}
	}
}

func TestStrategyFromName(t *testing.T) {
	assert.IsType(t, ledger.CeilingStrategy{}, ledger.StrategyFromName("ceiling"))
	assert.IsType(t, ledger.CeilingStrategy{}, ledger.StrategyFromName("unknown"))
	assert.IsType(t, &ledger.RandomFlatStrategy{}, ledger.StrategyFromName("random"))
}
