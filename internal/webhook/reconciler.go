package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sparewise/roundup-wallet/internal/ledger"
	"github.com/sparewise/roundup-wallet/internal/payment"
	"github.com/sparewise/roundup-wallet/pkg/logger"
)

// Reconciler idempotently applies externally-sourced events to the primary
// ledger. Gateway captures go through the Processor like any other apply;
// mirror change events go through aggregate recomputation, never raw field
// overwrites.
type Reconciler struct {
	Intents   payment.Repository
	Processor *ledger.Processor
	Store     ledger.Store
}

func NewReconciler(intents payment.Repository, processor *ledger.Processor, store ledger.Store) *Reconciler {
	return &Reconciler{Intents: intents, Processor: processor, Store: store}
}

// ReconcileGateway handles a payment.captured event. The intent must exist:
// a capture with no originating intent is rejected, otherwise replayed
// capture events could mint arbitrary wallet credits.
//
// The ledger apply happens before the intent transition. The apply is
// idempotent on its reference, so if the intent update fails and the
// gateway redelivers, the credit is not doubled.
func (r *Reconciler) ReconcileGateway(ctx context.Context, ev *GatewayEvent, rawPayload []byte) error {
	if ev.Event != "payment.captured" {
		logger.Warn("Ignoring unhandled gateway event", logger.Fields{"event": ev.Event})
		return nil
	}

	intent, err := r.Intents.FindByProviderOrderID(ev.OrderID)
	if err != nil {
		if errors.Is(err, payment.ErrIntentNotFound) {
			return fmt.Errorf("%w: order %s", ledger.ErrIntentNotFound, ev.OrderID)
		}
		return err
	}

	if intent.Status.Terminal() {
		// Duplicate delivery; already applied.
		return nil
	}

	typ := ledger.TransactionDeposit
	if intent.Kind == payment.IntentRoundup {
		typ = ledger.TransactionRoundUp
	}

	reference := "pay-" + intent.ID.String()
	if _, err := r.Processor.Apply(ctx, intent.UserID.String(), typ, intent.Amount, intent.Description, reference); err != nil {
		return err
	}

	if err := r.Intents.MarkStatus(intent.ID.String(), payment.IntentSuccess, string(rawPayload)); err != nil {
		return err
	}

	logger.Info("Gateway capture reconciled", logger.Fields{
		"order_id":          ev.OrderID,
		"payment_id":        ev.PaymentID,
		logger.ReferenceKey: reference,
	})
	return nil
}

// ReconcileMirror applies a change-capture event from the secondary store.
// Wallet aggregates are always rebuilt by replaying the local transaction
// ledger so mirror-originated writes can never shrink the monotonic
// counters or diverge from the transaction history.
func (r *Reconciler) ReconcileMirror(ctx context.Context, ev *MirrorEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	switch ev.Table {
	case TableWallets:
		return r.reconcileMirrorWallet(ctx, ev)
	case TableTransactions:
		return r.reconcileMirrorTransaction(ctx, ev)
	}
	return nil
}

func (r *Reconciler) reconcileMirrorWallet(ctx context.Context, ev *MirrorEvent) error {
	if ev.Type == MirrorDelete {
		var old MirrorWalletRecord
		if err := json.Unmarshal(ev.OldRecord, &old); err != nil {
			return fmt.Errorf("malformed mirror wallet old_record: %w", err)
		}
		return r.Store.DeleteWallet(ctx, old.ID.String())
	}

	var rec MirrorWalletRecord
	if err := json.Unmarshal(ev.Record, &rec); err != nil {
		return fmt.Errorf("malformed mirror wallet record: %w", err)
	}

	if _, err := r.Store.GetWalletByID(ctx, rec.ID.String()); err != nil {
		if !errors.Is(err, ledger.ErrWalletNotFound) {
			return err
		}
		// Identity fields only; aggregates come from the replay below.
		w := &ledger.Wallet{
			ID:       rec.ID,
			UserID:   rec.UserID,
			Currency: "INR",
			MirrorID: rec.ID.String(),
		}
		if err := r.Store.UpsertWallet(ctx, w); err != nil {
			return err
		}
	}

	_, err := r.Store.RecomputeAggregates(ctx, rec.ID.String())
	return err
}

func (r *Reconciler) reconcileMirrorTransaction(ctx context.Context, ev *MirrorEvent) error {
	if ev.Type == MirrorDelete {
		var old MirrorTransactionRecord
		if err := json.Unmarshal(ev.OldRecord, &old); err != nil {
			return fmt.Errorf("malformed mirror transaction old_record: %w", err)
		}
		if err := r.Store.DeleteTransaction(ctx, old.ID.String()); err != nil {
			return err
		}
		// Full replay of what remains; incremental subtraction drifts.
		_, err := r.Store.RecomputeAggregates(ctx, old.WalletID.String())
		return err
	}

	var rec MirrorTransactionRecord
	if err := json.Unmarshal(ev.Record, &rec); err != nil {
		return fmt.Errorf("malformed mirror transaction record: %w", err)
	}

	typ := ledger.TransactionType(rec.Type)
	if !typ.Valid() {
		return fmt.Errorf("mirror transaction %s has unknown type %q", rec.ID, rec.Type)
	}

	if existing, err := r.Store.GetTransactionByID(ctx, rec.ID.String()); err == nil && existing.Status.Terminal() && ev.Type == MirrorInsert {
		// Redelivered insert for an already-applied transaction.
		return nil
	}

	status := ledger.TransactionStatus(rec.Status)
	if status == "" {
		status = ledger.TransactionSuccess
	}

	tx := &ledger.Transaction{
		ID:          rec.ID,
		WalletID:    rec.WalletID,
		UserID:      rec.UserID,
		Reference:   rec.Reference,
		Type:        typ,
		Amount:      rec.Amount,
		Status:      status,
		Description: rec.Description,
		CreatedAt:   rec.CreatedAt,
	}
	if tx.Reference == "" {
		tx.Reference = "mir-" + rec.ID.String()
	}

	if err := r.Store.UpsertTransaction(ctx, tx); err != nil {
		return err
	}

	_, err := r.Store.RecomputeAggregates(ctx, rec.WalletID.String())
	return err
}
