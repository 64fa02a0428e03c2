// Package ledgertest provides an in-memory ledger.Store for tests. It
// honours the same version check as the gorm store so concurrency and
// retry behaviour can be exercised without a database.
package ledgertest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sparewise/roundup-wallet/internal/ledger"
	"gorm.io/gorm"
)

type MemStore struct {
	mu      sync.Mutex
	wallets map[string]*ledger.Wallet
	txs     map[string]*ledger.Transaction

	// ConflictsToInject makes the next N ApplyTransaction calls fail with
	// ErrConflict before touching state, to exercise retry paths.
	ConflictsToInject int
}

func NewMemStore() *MemStore {
	return &MemStore{
		wallets: make(map[string]*ledger.Wallet),
		txs:     make(map[string]*ledger.Transaction),
	}
}

func (s *MemStore) CreateWallet(ctx context.Context, w *ledger.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.wallets {
		if existing.UserID == w.UserID {
			return ledger.ErrWalletExists
		}
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	cp := *w
	s.wallets[w.ID.String()] = &cp
	return nil
}

func (s *MemStore) GetWalletByUserID(ctx context.Context, userID string) (*ledger.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range s.wallets {
		if w.UserID.String() == userID {
			cp := *w
			return &cp, nil
		}
	}
	return nil, ledger.ErrWalletNotFound
}

func (s *MemStore) GetWalletByID(ctx context.Context, walletID string) (*ledger.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[walletID]
	if !ok {
		return nil, ledger.ErrWalletNotFound
	}
	cp := *w
	return &cp, nil
}

func (s *MemStore) DeleteWallet(ctx context.Context, walletID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.wallets, walletID)
	for id, tx := range s.txs {
		if tx.WalletID.String() == walletID {
			delete(s.txs, id)
		}
	}
	return nil
}

func (s *MemStore) ApplyTransaction(ctx context.Context, w *ledger.Wallet, tx *ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ConflictsToInject > 0 {
		s.ConflictsToInject--
		return ledger.ErrConflict
	}

	for _, existing := range s.txs {
		if existing.Reference == tx.Reference {
			return gorm.ErrDuplicatedKey
		}
	}

	stored, ok := s.wallets[w.ID.String()]
	if !ok {
		return ledger.ErrWalletNotFound
	}
	if stored.Version != w.Version {
		return ledger.ErrConflict
	}

	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	txCopy := *tx
	s.txs[tx.ID.String()] = &txCopy

	stored.Balance = w.Balance
	stored.RoundupTotal = w.RoundupTotal
	stored.RewardsEarned = w.RewardsEarned
	stored.LastTransactionAt = w.LastTransactionAt
	stored.Version++
	w.Version = stored.Version
	return nil
}

func (s *MemStore) GetTransactionByReference(ctx context.Context, reference string) (*ledger.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tx := range s.txs {
		if tx.Reference == reference {
			cp := *tx
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *MemStore) GetTransactionByID(ctx context.Context, txID string) (*ledger.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.txs[txID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *tx
	return &cp, nil
}

func (s *MemStore) ListTransactions(ctx context.Context, walletID string, limit, offset int) ([]ledger.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var txs []ledger.Transaction
	for _, tx := range s.txs {
		if tx.WalletID.String() == walletID {
			txs = append(txs, *tx)
		}
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].CreatedAt.After(txs[j].CreatedAt) })

	if offset >= len(txs) {
		return nil, nil
	}
	txs = txs[offset:]
	if limit < len(txs) {
		txs = txs[:limit]
	}
	return txs, nil
}

func (s *MemStore) CountTransactions(ctx context.Context, walletID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, tx := range s.txs {
		if tx.WalletID.String() == walletID {
			count++
		}
	}
	return count, nil
}

func (s *MemStore) UpsertWallet(ctx context.Context, w *ledger.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *w
	if existing, ok := s.wallets[w.ID.String()]; ok {
		cp.Version = existing.Version
	}
	s.wallets[w.ID.String()] = &cp
	return nil
}

func (s *MemStore) UpsertTransaction(ctx context.Context, tx *ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *tx
	s.txs[tx.ID.String()] = &cp
	return nil
}

func (s *MemStore) DeleteTransaction(ctx context.Context, txID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.txs, txID)
	return nil
}

func (s *MemStore) RecomputeAggregates(ctx context.Context, walletID string) (*ledger.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[walletID]
	if !ok {
		return nil, ledger.ErrWalletNotFound
	}

	var balance, roundup, rewards int64
	var last *time.Time
	for _, tx := range s.txs {
		if tx.WalletID.String() != walletID || tx.Status != ledger.TransactionSuccess {
			continue
		}
		switch tx.Type {
		case ledger.TransactionWithdrawal:
			balance -= tx.Amount
		case ledger.TransactionRoundUp:
			balance += tx.Amount
			roundup += tx.Amount
		case ledger.TransactionReward:
			balance += tx.Amount
			rewards += tx.Amount
		default:
			balance += tx.Amount
		}
		if last == nil || tx.CreatedAt.After(*last) {
			created := tx.CreatedAt
			last = &created
		}
	}

	w.Balance = balance
	w.RoundupTotal = roundup
	w.RewardsEarned = rewards
	w.LastTransactionAt = last
	w.Version++

	cp := *w
	return &cp, nil
}

func (s *MemStore) SampleWallets(ctx context.Context, limit int) ([]ledger.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var wallets []ledger.Wallet
	for _, w := range s.wallets {
		wallets = append(wallets, *w)
		if len(wallets) >= limit {
			break
		}
	}
	return wallets, nil
}
