package ledger

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type gormStore struct {
	db *gorm.DB
}

// NewStore returns a gorm-backed Store. It is used twice per process:
// once over the primary DSN and once over the mirror DSN.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) CreateWallet(ctx context.Context, w *Wallet) error {
	err := s.db.WithContext(ctx).Create(w).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrWalletExists
	}
	return err
}

func (s *gormStore) GetWalletByUserID(ctx context.Context, userID string) (*Wallet, error) {
	var wallet Wallet
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (s *gormStore) GetWalletByID(ctx context.Context, walletID string) (*Wallet, error) {
	var wallet Wallet
	err := s.db.WithContext(ctx).Where("id = ?", walletID).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (s *gormStore) DeleteWallet(ctx context.Context, walletID string) error {
	// Account deletion cascades to the owned transactions.
	return s.db.WithContext(ctx).Transaction(func(dtx *gorm.DB) error {
		if err := dtx.Where("wallet_id = ?", walletID).Delete(&Transaction{}).Error; err != nil {
			return err
		}
		return dtx.Where("id = ?", walletID).Delete(&Wallet{}).Error
	})
}

func (s *gormStore) ApplyTransaction(ctx context.Context, w *Wallet, tx *Transaction) error {
	return s.db.WithContext(ctx).Transaction(func(dtx *gorm.DB) error {
		if err := dtx.Create(tx).Error; err != nil {
			return err
		}

		res := dtx.Model(&Wallet{}).
			Where("id = ? AND version = ?", w.ID, w.Version).
			Updates(map[string]interface{}{
				"balance":             w.Balance,
				"roundup_total":       w.RoundupTotal,
				"rewards_earned":      w.RewardsEarned,
				"last_transaction_at": w.LastTransactionAt,
				"version":             w.Version + 1,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}
		w.Version++
		return nil
	})
}

func (s *gormStore) GetTransactionByReference(ctx context.Context, reference string) (*Transaction, error) {
	var tx Transaction
	if err := s.db.WithContext(ctx).Where("reference = ?", reference).First(&tx).Error; err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *gormStore) GetTransactionByID(ctx context.Context, txID string) (*Transaction, error) {
	var tx Transaction
	if err := s.db.WithContext(ctx).Where("id = ?", txID).First(&tx).Error; err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *gormStore) ListTransactions(ctx context.Context, walletID string, limit, offset int) ([]Transaction, error) {
	var txs []Transaction
	err := s.db.WithContext(ctx).Where("wallet_id = ?", walletID).
		Order("created_at desc").
		Limit(limit).
		Offset(offset).
		Find(&txs).Error
	return txs, err
}

func (s *gormStore) CountTransactions(ctx context.Context, walletID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Transaction{}).Where("wallet_id = ?", walletID).Count(&count).Error
	return count, err
}

func (s *gormStore) UpsertWallet(ctx context.Context, w *Wallet) error {
	res := s.db.WithContext(ctx).Model(&Wallet{}).Where("id = ?", w.ID).Updates(map[string]interface{}{
		"user_id":             w.UserID,
		"balance":             w.Balance,
		"roundup_total":       w.RoundupTotal,
		"rewards_earned":      w.RewardsEarned,
		"last_transaction_at": w.LastTransactionAt,
		"mirror_id":           w.MirrorID,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return s.db.WithContext(ctx).Create(w).Error
	}
	return nil
}

func (s *gormStore) UpsertTransaction(ctx context.Context, tx *Transaction) error {
	res := s.db.WithContext(ctx).Model(&Transaction{}).Where("id = ?", tx.ID).Updates(map[string]interface{}{
		"wallet_id":   tx.WalletID,
		"user_id":     tx.UserID,
		"reference":   tx.Reference,
		"type":        tx.Type,
		"amount":      tx.Amount,
		"status":      tx.Status,
		"description": tx.Description,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return s.db.WithContext(ctx).Create(tx).Error
	}
	return nil
}

func (s *gormStore) DeleteTransaction(ctx context.Context, txID string) error {
	return s.db.WithContext(ctx).Where("id = ?", txID).Delete(&Transaction{}).Error
}

const (
	recomputeMaxRetries = 3
	recomputeBackoff    = 50 * time.Millisecond
)

// RecomputeAggregates replays the wallet's successful transactions. The
// write-back carries the same version predicate as ApplyTransaction: an
// apply that commits between the snapshot read and the update bumps the
// version, the update matches zero rows, and the whole replay runs again
// so the fresh transaction is included.
func (s *gormStore) RecomputeAggregates(ctx context.Context, walletID string) (*Wallet, error) {
	for attempt := 0; attempt < recomputeMaxRetries; attempt++ {
		wallet, err := s.recomputeOnce(ctx, walletID)
		if err == nil {
			return wallet, nil
		}
		if !errors.Is(err, ErrConflict) {
			return nil, err
		}
		time.Sleep(time.Duration(attempt+1) * recomputeBackoff)
	}
	return nil, ErrStoreUnavailable
}

func (s *gormStore) recomputeOnce(ctx context.Context, walletID string) (*Wallet, error) {
	var wallet Wallet
	err := s.db.WithContext(ctx).Transaction(func(dtx *gorm.DB) error {
		if err := dtx.Where("id = ?", walletID).First(&wallet).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrWalletNotFound
			}
			return err
		}

		var txs []Transaction
		if err := dtx.Where("wallet_id = ? AND status = ?", walletID, TransactionSuccess).
			Order("created_at asc").Find(&txs).Error; err != nil {
			return err
		}

		var balance, roundup, rewards int64
		var last *time.Time
		for i := range txs {
			t := txs[i]
			switch t.Type {
			case TransactionWithdrawal:
				balance -= t.Amount
			case TransactionRoundUp:
				balance += t.Amount
				roundup += t.Amount
			case TransactionReward:
				balance += t.Amount
				rewards += t.Amount
			default:
				balance += t.Amount
			}
			created := t.CreatedAt
			last = &created
		}

		wallet.Balance = balance
		wallet.RoundupTotal = roundup
		wallet.RewardsEarned = rewards
		wallet.LastTransactionAt = last

		res := dtx.Model(&Wallet{}).
			Where("id = ? AND version = ?", walletID, wallet.Version).
			Updates(map[string]interface{}{
				"balance":             balance,
				"roundup_total":       roundup,
				"rewards_earned":      rewards,
				"last_transaction_at": last,
				"version":             wallet.Version + 1,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}
		wallet.Version++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (s *gormStore) SampleWallets(ctx context.Context, limit int) ([]Wallet, error) {
	var wallets []Wallet
	err := s.db.WithContext(ctx).Order("updated_at desc").Limit(limit).Find(&wallets).Error
	return wallets, err
}
