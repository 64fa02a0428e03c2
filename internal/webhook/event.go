package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GatewayEvent is the parsed form of a Razorpay webhook payload. Untyped
// payload shapes are rejected at this boundary instead of flowing inward.
type GatewayEvent struct {
	Event     string
	OrderID   string
	PaymentID string
	Amount    int64 // in paise
	Status    string
}

func ParseGatewayEvent(raw []byte) (*GatewayEvent, error) {
	var envelope struct {
		Event   string `json:"event"`
		Payload struct {
			Payment struct {
				Entity struct {
					OrderID string `json:"order_id"`
					ID      string `json:"id"`
					Amount  int64  `json:"amount"`
					Status  string `json:"status"`
				} `json:"entity"`
			} `json:"payment"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("malformed gateway payload: %w", err)
	}
	if envelope.Event == "" {
		return nil, fmt.Errorf("gateway payload missing event field")
	}

	entity := envelope.Payload.Payment.Entity
	return &GatewayEvent{
		Event:     envelope.Event,
		OrderID:   entity.OrderID,
		PaymentID: entity.ID,
		Amount:    entity.Amount,
		Status:    entity.Status,
	}, nil
}

// VerifySignature checks the hex HMAC-SHA256 of the raw body against the
// x-razorpay-signature header value.
func VerifySignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

const (
	MirrorInsert = "INSERT"
	MirrorUpdate = "UPDATE"
	MirrorDelete = "DELETE"

	TableWallets      = "wallets"
	TableTransactions = "transactions"
)

// MirrorEvent is a change-capture event from the secondary store.
type MirrorEvent struct {
	Type      string          `json:"type"`
	Table     string          `json:"table"`
	Record    json.RawMessage `json:"record"`
	OldRecord json.RawMessage `json:"old_record"`
}

func (e *MirrorEvent) Validate() error {
	switch e.Type {
	case MirrorInsert, MirrorUpdate, MirrorDelete:
	default:
		return fmt.Errorf("unknown mirror event type: %q", e.Type)
	}
	switch e.Table {
	case TableWallets, TableTransactions:
	default:
		return fmt.Errorf("unhandled mirror table: %q", e.Table)
	}
	if e.Type == MirrorDelete && len(e.OldRecord) == 0 {
		return fmt.Errorf("mirror delete event missing old_record")
	}
	if e.Type != MirrorDelete && len(e.Record) == 0 {
		return fmt.Errorf("mirror %s event missing record", e.Type)
	}
	return nil
}

type MirrorWalletRecord struct {
	ID                uuid.UUID  `json:"id"`
	UserID            uuid.UUID  `json:"user_id"`
	Balance           int64      `json:"balance"`
	RoundupTotal      int64      `json:"roundup_total"`
	RewardsEarned     int64      `json:"rewards_earned"`
	LastTransactionAt *time.Time `json:"last_transaction_at"`
}

type MirrorTransactionRecord struct {
	ID          uuid.UUID `json:"id"`
	WalletID    uuid.UUID `json:"wallet_id"`
	UserID      uuid.UUID `json:"user_id"`
	Reference   string    `json:"reference"`
	Type        string    `json:"type"`
	Amount      int64     `json:"amount"`
	Status      string    `json:"status"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}
