package ledger

import (
	"time"

	"github.com/google/uuid"
)

// Wallet aggregates are derived from the transaction ledger: balance,
// roundup_total and rewards_earned must always equal a fold over the
// wallet's successful transactions. They are only written through the
// Processor's apply path or RecomputeAggregates.
type Wallet struct {
	ID                uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primary_key" json:"id"`
	UserID            uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	Balance           int64      `gorm:"not null;default:0" json:"balance"`
	RoundupTotal      int64      `gorm:"not null;default:0" json:"roundup_total"`
	RewardsEarned     int64      `gorm:"not null;default:0" json:"rewards_earned"`
	Currency          string     `gorm:"not null;default:INR" json:"currency"`
	LastTransactionAt *time.Time `json:"last_transaction_at,omitempty"`
	// MirrorID correlates this wallet with its copy in the secondary store.
	MirrorID string `json:"mirror_id,omitempty"`
	// Version guards concurrent aggregate updates (compare-and-swap).
	Version   int64     `gorm:"not null;default:0" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type TransactionType string

const (
	TransactionRoundUp    TransactionType = "round-up"
	TransactionDeposit    TransactionType = "deposit"
	TransactionWithdrawal TransactionType = "withdrawal"
	TransactionReward     TransactionType = "reward"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionRoundUp, TransactionDeposit, TransactionWithdrawal, TransactionReward:
		return true
	}
	return false
}

// IsCredit reports whether the type increases the wallet balance.
func (t TransactionType) IsCredit() bool {
	return t != TransactionWithdrawal
}

type TransactionStatus string

const (
	TransactionPending TransactionStatus = "pending"
	TransactionSuccess TransactionStatus = "success"
	TransactionFailed  TransactionStatus = "failed"
)

func (s TransactionStatus) Terminal() bool {
	return s == TransactionSuccess || s == TransactionFailed
}

// Transaction is an append-only ledger record. Amounts are int64 paise.
// Once terminal it is never edited in place; corrections happen through
// compensating transactions.
type Transaction struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primary_key" json:"id"`
	WalletID uuid.UUID `gorm:"type:uuid;not null;index" json:"wallet_id"`
	UserID   uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	// Reference is the idempotency key. Webhook redelivery and client
	// retries reuse it, so it carries a unique index.
	Reference   string            `gorm:"uniqueIndex;not null" json:"reference"`
	Type        TransactionType   `gorm:"not null" json:"type"`
	Amount      int64             `gorm:"not null" json:"amount"`
	Status      TransactionStatus `gorm:"not null" json:"status"`
	Description string            `json:"description"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}
