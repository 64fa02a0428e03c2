package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sparewise/roundup-wallet/pkg/logger"
	"gorm.io/gorm"
)

// Notifier is told about every successfully applied transaction. The mirror
// coordinator hangs off this hook; failures there never affect the apply.
type Notifier interface {
	TransactionApplied(w *Wallet, tx *Transaction)
}

// Processor validates and applies monetary operations to a wallet. It is
// the only writer of wallet aggregates. Per-wallet application is
// serialized through the store's version check: a losing writer gets
// ErrConflict and the whole apply is retried on a fresh read.
type Processor struct {
	store          Store
	notifier       Notifier
	allowOverdraft bool
	maxRetries     int
	retryBackoff   time.Duration
}

type ProcessorOption func(*Processor)

// WithOverdraft lifts the non-negative balance floor on withdrawals.
func WithOverdraft() ProcessorOption {
	return func(p *Processor) { p.allowOverdraft = true }
}

func WithNotifier(n Notifier) ProcessorOption {
	return func(p *Processor) { p.notifier = n }
}

func WithRetryPolicy(maxRetries int, backoff time.Duration) ProcessorOption {
	return func(p *Processor) {
		p.maxRetries = maxRetries
		p.retryBackoff = backoff
	}
}

func NewProcessor(store Store, opts ...ProcessorOption) *Processor {
	p := &Processor{
		store:        store,
		maxRetries:   3,
		retryBackoff: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Apply records one transaction against the user's wallet and updates the
// wallet aggregates in the same store transaction. The reference is the
// idempotency key: if a transaction with it already reached a terminal
// status the existing record is returned unchanged and the wallet is not
// touched again.
func (p *Processor) Apply(ctx context.Context, userID string, typ TransactionType, amount int64, description, reference string) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !typ.Valid() {
		return nil, ErrInvalidType
	}

	if existing, err := p.store.GetTransactionByReference(ctx, reference); err == nil {
		if existing.Status.Terminal() {
			return existing, nil
		}
		// A pending record with this reference belongs to an in-flight
		// apply; treat the duplicate call as already handled.
		return existing, nil
	}

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * p.retryBackoff):
			}
		}

		tx, err := p.applyOnce(ctx, userID, typ, amount, description, reference)
		if err == nil {
			if p.notifier != nil {
				w, werr := p.store.GetWalletByID(ctx, tx.WalletID.String())
				if werr == nil {
					p.notifier.TransactionApplied(w, tx)
				}
			}
			return tx, nil
		}

		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost a race against a concurrent apply with the same
			// reference; the winner's record is the answer.
			if existing, ferr := p.store.GetTransactionByReference(ctx, reference); ferr == nil {
				return existing, nil
			}
		}

		if !errors.Is(err, ErrConflict) {
			return nil, err
		}
		lastErr = err
		logger.Warn("Wallet apply conflict, retrying", logger.Fields{
			logger.UserIdKey:    userID,
			logger.ReferenceKey: reference,
			"attempt":           attempt + 1,
		})
	}

	logger.Error("Wallet apply retry budget exhausted", logger.Fields{
		logger.UserIdKey:    userID,
		logger.ReferenceKey: reference,
		"error":             lastErr.Error(),
	})
	return nil, ErrStoreUnavailable
}

func (p *Processor) applyOnce(ctx context.Context, userID string, typ TransactionType, amount int64, description, reference string) (*Transaction, error) {
	wallet, err := p.store.GetWalletByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := applyEffect(wallet, typ, amount, p.allowOverdraft); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	wallet.LastTransactionAt = &now

	tx := &Transaction{
		ID:          uuid.New(),
		WalletID:    wallet.ID,
		UserID:      wallet.UserID,
		Reference:   reference,
		Type:        typ,
		Amount:      amount,
		Status:      TransactionSuccess,
		Description: description,
	}

	if err := p.store.ApplyTransaction(ctx, wallet, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

func applyEffect(w *Wallet, typ TransactionType, amount int64, allowOverdraft bool) error {
	switch typ {
	case TransactionRoundUp:
		w.Balance += amount
		w.RoundupTotal += amount
	case TransactionDeposit:
		w.Balance += amount
	case TransactionReward:
		w.Balance += amount
		w.RewardsEarned += amount
	case TransactionWithdrawal:
		if !allowOverdraft && w.Balance < amount {
			return ErrInsufficientFunds
		}
		w.Balance -= amount
	default:
		return ErrInvalidType
	}
	return nil
}
