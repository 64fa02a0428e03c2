package ledger_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sparewise/roundup-wallet/internal/ledger"
	"github.com/sparewise/roundup-wallet/internal/ledger/ledgertest"
	"github.com/stretchr/testify/assert"
)

func newTestWallet(t *testing.T, store *ledgertest.MemStore, balance int64) *ledger.Wallet {
	t.Helper()
	w := &ledger.Wallet{
		ID:       uuid.New(),
		UserID:   uuid.New(),
		Currency: "INR",
	}
	if err := store.CreateWallet(context.Background(), w); err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}
	if balance > 0 {
		proc := ledger.NewProcessor(store)
		if _, err := proc.Apply(context.Background(), w.UserID.String(), ledger.TransactionDeposit, balance, "opening balance", "seed-"+w.ID.String()); err != nil {
			t.Fatalf("seed deposit: %v", err)
		}
	}
	return w
}

func TestApplyValidation(t *testing.T) {
	store := ledgertest.NewMemStore()
	w := newTestWallet(t, store, 0)
	proc := ledger.NewProcessor(store)

	_, err := proc.Apply(context.Background(), w.UserID.String(), ledger.TransactionDeposit, 0, "", "ref-1")
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	_, err = proc.Apply(context.Background(), w.UserID.String(), ledger.TransactionDeposit, -500, "", "ref-2")
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	_, err = proc.Apply(context.Background(), w.UserID.String(), ledger.TransactionType("transfer"), 500, "", "ref-3")
	assert.ErrorIs(t, err, ledger.ErrInvalidType)

	_, err = proc.Apply(context.Background(), uuid.NewString(), ledger.TransactionDeposit, 500, "", "ref-4")
	assert.ErrorIs(t, err, ledger.ErrWalletNotFound)
}

func TestApplyEffects(t *testing.T) {
	store := ledgertest.NewMemStore()
	w := newTestWallet(t, store, 0)
	proc := ledger.NewProcessor(store)
	ctx := context.Background()

	_, err := proc.Apply(ctx, w.UserID.String(), ledger.TransactionDeposit, 10000, "deposit", "ref-dep")
	assert.NoError(t, err)

	_, err = proc.Apply(ctx, w.UserID.String(), ledger.TransactionRoundUp, 723, "round-up", "ref-rnd")
	assert.NoError(t, err)

	_, err = proc.Apply(ctx, w.UserID.String(), ledger.TransactionReward, 250, "reward", "ref-rwd")
	assert.NoError(t, err)

	_, err = proc.Apply(ctx, w.UserID.String(), ledger.TransactionWithdrawal, 1000, "withdrawal", "ref-wdr")
	assert.NoError(t, err)

	got, err := store.GetWalletByID(ctx, w.ID.String())
	assert.NoError(t, err)
	assert.Equal(t, int64(10000+723+250-1000), got.Balance)
	assert.Equal(t, int64(723), got.RoundupTotal)
	assert.Equal(t, int64(250), got.RewardsEarned)
	assert.NotNil(t, got.LastTransactionAt)
}

func TestApplyIdempotency(t *testing.T) {
	store := ledgertest.NewMemStore()
	w := newTestWallet(t, store, 0)
	proc := ledger.NewProcessor(store)
	ctx := context.Background()

	first, err := proc.Apply(ctx, w.UserID.String(), ledger.TransactionDeposit, 5000, "deposit", "ref-once")
	assert.NoError(t, err)

	second, err := proc.Apply(ctx, w.UserID.String(), ledger.TransactionDeposit, 5000, "deposit", "ref-once")
	assert.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	count, _ := store.CountTransactions(ctx, w.ID.String())
	assert.Equal(t, int64(1), count)

	got, _ := store.GetWalletByID(ctx, w.ID.String())
	assert.Equal(t, int64(5000), got.Balance)
}

func TestWithdrawalOverdraft(t *testing.T) {
	store := ledgertest.NewMemStore()
	w := newTestWallet(t, store, 10000)
	ctx := context.Background()

	t.Run("rejected by default", func(t *testing.T) {
		proc := ledger.NewProcessor(store)
		_, err := proc.Apply(ctx, w.UserID.String(), ledger.TransactionWithdrawal, 20000, "", "ref-over-1")
		assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

		got, _ := store.GetWalletByID(ctx, w.ID.String())
		assert.Equal(t, int64(10000), got.Balance)
	})

	t.Run("allowed when configured", func(t *testing.T) {
		proc := ledger.NewProcessor(store, ledger.WithOverdraft())
		_, err := proc.Apply(ctx, w.UserID.String(), ledger.TransactionWithdrawal, 20000, "", "ref-over-2")
		assert.NoError(t, err)

		got, _ := store.GetWalletByID(ctx, w.ID.String())
		assert.Equal(t, int64(-10000), got.Balance)
	})
}

// Balance 100.00, apply a 7.23 round-up, then reject a 200.00 withdrawal
// without touching the balance.
func TestRoundupThenRejectedWithdrawal(t *testing.T) {
	store := ledgertest.NewMemStore()
	w := newTestWallet(t, store, 10000)
	proc := ledger.NewProcessor(store)
	ctx := context.Background()

	roundup := ledger.CeilingStrategy{}.Roundup(9277)
	assert.Equal(t, int64(23), roundup)

	_, err := proc.Apply(ctx, w.UserID.String(), ledger.TransactionRoundUp, 723, "round-up from purchase", "ref-rnd")
	assert.NoError(t, err)

	got, _ := store.GetWalletByID(ctx, w.ID.String())
	assert.Equal(t, int64(10723), got.Balance)
	assert.Equal(t, int64(723), got.RoundupTotal)

	_, err = proc.Apply(ctx, w.UserID.String(), ledger.TransactionWithdrawal, 20000, "withdrawal", "ref-wdr")
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	got, _ = store.GetWalletByID(ctx, w.ID.String())
	assert.Equal(t, int64(10723), got.Balance)
}

func TestApplyRetriesOnConflict(t *testing.T) {
	store := ledgertest.NewMemStore()
	w := newTestWallet(t, store, 0)
	proc := ledger.NewProcessor(store, ledger.WithRetryPolicy(3, time.Millisecond))

	store.ConflictsToInject = 2
	_, err := proc.Apply(context.Background(), w.UserID.String(), ledger.TransactionDeposit, 500, "", "ref-retry")
	assert.NoError(t, err)

	got, _ := store.GetWalletByID(context.Background(), w.ID.String())
	assert.Equal(t, int64(500), got.Balance)
}

func TestApplySurfacesStoreUnavailable(t *testing.T) {
	store := ledgertest.NewMemStore()
	w := newTestWallet(t, store, 0)
	proc := ledger.NewProcessor(store, ledger.WithRetryPolicy(2, time.Millisecond))

	store.ConflictsToInject = 10
	_, err := proc.Apply(context.Background(), w.UserID.String(), ledger.TransactionDeposit, 500, "", "ref-down")
	assert.ErrorIs(t, err, ledger.ErrStoreUnavailable)
}

func TestConcurrentAppliesLoseNothing(t *testing.T) {
	store := ledgertest.NewMemStore()
	w := newTestWallet(t, store, 0)
	proc := ledger.NewProcessor(store, ledger.WithRetryPolicy(20, time.Millisecond))

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = proc.Apply(context.Background(), w.UserID.String(), ledger.TransactionDeposit, 100, "", fmt.Sprintf("ref-conc-%d", i))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoErrorf(t, err, "worker %d", i)
	}

	got, _ := store.GetWalletByID(context.Background(), w.ID.String())
	assert.Equal(t, int64(workers*100), got.Balance)

	count, _ := store.CountTransactions(context.Background(), w.ID.String())
	assert.Equal(t, int64(workers), count)
}

// The wallet aggregates must always equal a fold over the ledger.
func TestAggregatesMatchReplay(t *testing.T) {
	store := ledgertest.NewMemStore()
	w := newTestWallet(t, store, 0)
	proc := ledger.NewProcessor(store)
	ctx := context.Background()

	ops := []struct {
		typ    ledger.TransactionType
		amount int64
	}{
		{ledger.TransactionDeposit, 10000},
		{ledger.TransactionRoundUp, 50},
		{ledger.TransactionRoundUp, 23},
		{ledger.TransactionReward, 500},
		{ledger.TransactionWithdrawal, 2500},
		{ledger.TransactionDeposit, 199},
	}
	for i, op := range ops {
		_, err := proc.Apply(ctx, w.UserID.String(), op.typ, op.amount, "", fmt.Sprintf("ref-seq-%d", i))
		assert.NoError(t, err)
	}

	applied, _ := store.GetWalletByID(ctx, w.ID.String())
	replayed, err := store.RecomputeAggregates(ctx, w.ID.String())
	assert.NoError(t, err)

	assert.Equal(t, applied.Balance, replayed.Balance)
	assert.Equal(t, applied.RoundupTotal, replayed.RoundupTotal)
	assert.Equal(t, applied.RewardsEarned, replayed.RewardsEarned)
	assert.Equal(t, int64(10000+50+23+500-2500+199), applied.Balance)
	assert.Equal(t, int64(73), applied.RoundupTotal)
	assert.Equal(t, int64(500), applied.RewardsEarned)
}

// Aggregate replays race concurrent applies for the wallet row; the version
// check must serialize them so no apply's effect is ever clobbered by a
// replay writing back a stale snapshot.
func TestRecomputeDuringConcurrentApplies(t *testing.T) {
	store := ledgertest.NewMemStore()
	w := newTestWallet(t, store, 0)
	proc := ledger.NewProcessor(store, ledger.WithRetryPolicy(50, time.Millisecond))
	ctx := context.Background()

	const deposits = 8
	var wg sync.WaitGroup
	errs := make([]error, deposits)
	for i := 0; i < deposits; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = proc.Apply(ctx, w.UserID.String(), ledger.TransactionDeposit, 100, "", fmt.Sprintf("ref-replay-%d", i))
		}(i)
	}
	for i := 0; i < deposits; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.RecomputeAggregates(ctx, w.ID.String())
		}()
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoErrorf(t, err, "apply %d", i)
	}

	got, _ := store.GetWalletByID(ctx, w.ID.String())
	assert.Equal(t, int64(deposits*100), got.Balance)

	replayed, err := store.RecomputeAggregates(ctx, w.ID.String())
	assert.NoError(t, err)
	assert.Equal(t, got.Balance, replayed.Balance)
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls int
}

func (n *recordingNotifier) TransactionApplied(w *ledger.Wallet, tx *ledger.Transaction) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
}

func TestNotifierCalledOncePerApply(t *testing.T) {
	store := ledgertest.NewMemStore()
	w := newTestWallet(t, store, 0)
	notifier := &recordingNotifier{}
	proc := ledger.NewProcessor(store, ledger.WithNotifier(notifier))
	ctx := context.Background()

	_, err := proc.Apply(ctx, w.UserID.String(), ledger.TransactionDeposit, 500, "", "ref-n1")
	assert.NoError(t, err)

	// Duplicate apply is a no-op and must not notify again.
	_, err = proc.Apply(ctx, w.UserID.String(), ledger.TransactionDeposit, 500, "", "ref-n1")
	assert.NoError(t, err)

	assert.Equal(t, 1, notifier.calls)
}
