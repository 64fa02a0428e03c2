package payment

import (
	"time"

	"github.com/google/uuid"
)

type IntentStatus string

const (
	IntentCreated IntentStatus = "created"
	IntentSuccess IntentStatus = "success"
	IntentFailed  IntentStatus = "failed"
)

func (s IntentStatus) Terminal() bool {
	return s == IntentSuccess || s == IntentFailed
}

type IntentKind string

const (
	IntentDeposit IntentKind = "deposit"
	IntentRoundup IntentKind = "round-up"
)

// Intent correlates a gateway order with the ledger. It transitions to a
// terminal status only through a signature-verified webhook, and exactly one
// ledger transaction is created on success.
type Intent struct {
	ID          uuid.UUID    `gorm:"type:uuid;default:uuid_generate_v4();primary_key" json:"id"`
	UserID      uuid.UUID    `gorm:"type:uuid;not null;index" json:"user_id"`
	Amount      int64        `gorm:"not null" json:"amount"` // in paise
	Description string       `json:"description"`
	Kind        IntentKind   `gorm:"not null;default:deposit" json:"kind"`
	Status      IntentStatus `gorm:"not null;default:created" json:"status"`
	// ProviderOrderID is the gateway's order id; capture events are keyed
	// on it. Nil until the gateway order is registered, so intents persisted
	// ahead of the gateway call don't collide on the unique index.
	ProviderOrderID *string `gorm:"uniqueIndex" json:"provider_order_id"`
	// ProviderResponse keeps the raw callback payload for audit.
	ProviderResponse string    `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
