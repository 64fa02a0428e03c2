package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sparewise/roundup-wallet/internal/ledger"
	"github.com/sparewise/roundup-wallet/pkg/events"
	"github.com/sparewise/roundup-wallet/pkg/logger"
	"gorm.io/gorm"
)

// Coordinator replicates primary-store writes into the mirror store through
// the Redis queue. Replication is best-effort and fully decoupled from the
// request path: a mirror outage delays sync but never fails or rolls back a
// primary write. Reads are always served from the primary.
type Coordinator struct {
	Primary     ledger.Store
	Mirror      ledger.Store
	RedisClient *events.RedisClient
}

func NewCoordinator(primary, mirrorStore ledger.Store, redisClient *events.RedisClient) *Coordinator {
	return &Coordinator{Primary: primary, Mirror: mirrorStore, RedisClient: redisClient}
}

// TransactionApplied satisfies ledger.Notifier. A queue failure is logged
// and dropped; the divergence scan picks up anything missed.
func (c *Coordinator) TransactionApplied(w *ledger.Wallet, tx *ledger.Transaction) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	event := events.SyncEvent{
		Kind:      "transaction",
		RecordID:  tx.ID.String(),
		WalletID:  w.ID.String(),
		Timestamp: time.Now().UTC(),
	}
	if err := c.RedisClient.PublishSyncEvent(ctx, event); err != nil {
		logger.Error("Failed to queue mirror sync event", logger.Fields{
			logger.WalletIdKey: w.ID.String(),
			"error":            err.Error(),
		})
	}
}

func (c *Coordinator) Start() {
	logger.Info("Starting mirror sync worker...")
	go c.processEvents()
}

func (c *Coordinator) processEvents() {
	for {
		result, err := c.RedisClient.Client.BLPop(context.Background(), 5*time.Second, events.MirrorQueue).Result()
		if err != nil {
			continue
		}

		eventData := []byte(result[1])
		var event events.SyncEvent
		if err := json.Unmarshal(eventData, &event); err != nil {
			logger.Error("MirrorSync: Failed to unmarshal event", logger.Fields{"error": err.Error(), "data": string(eventData)})
			c.moveToDLQ(eventData)
			continue
		}

		c.replicate(event, eventData)
	}
}

func (c *Coordinator) replicate(event events.SyncEvent, rawData []byte) {
	maxRetries := 3
	for i := 0; i < maxRetries; i++ {
		err := c.replicateOnce(context.Background(), event)
		if err == nil {
			return
		}

		logger.Warn("MirrorSync: Replication failed, retrying", logger.Fields{
			logger.WalletIdKey: event.WalletID,
			"kind":             event.Kind,
			"attempt":          i + 1,
			"error":            err.Error(),
		})
		time.Sleep(time.Duration(i+1) * time.Second)
	}

	logger.Error("MirrorSync: Max retries exhausted, moving to DLQ", logger.Fields{logger.WalletIdKey: event.WalletID})
	c.moveToDLQ(rawData)
}

func (c *Coordinator) replicateOnce(ctx context.Context, event events.SyncEvent) error {
	// The primary is the source of truth: re-read it rather than trusting
	// whatever state the event was queued with.
	wallet, err := c.Primary.GetWalletByID(ctx, event.WalletID)
	if err != nil {
		if errors.Is(err, ledger.ErrWalletNotFound) {
			// Deleted since the event was queued; nothing to replicate.
			return nil
		}
		return err
	}

	if event.Kind == "transaction" {
		tx, err := c.Primary.GetTransactionByID(ctx, event.RecordID)
		switch {
		case err == nil:
			if err := c.Mirror.UpsertTransaction(ctx, tx); err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			// Deleted since the event was queued; the wallet copy below
			// still carries the resulting aggregates.
		default:
			// A transient read failure must not count as replicated, or
			// the mirror silently loses the transaction row for good.
			return err
		}
	}

	return c.Mirror.UpsertWallet(ctx, wallet)
}

func (c *Coordinator) moveToDLQ(data []byte) {
	if err := c.RedisClient.PushToDLQ(context.Background(), data); err != nil {
		logger.Error("MirrorSync: Failed to push to DLQ", logger.Fields{"error": err.Error()})
	}
}

// Divergence describes an aggregate mismatch between the stores.
type Divergence struct {
	WalletID             string
	PrimaryBalance       int64
	MirrorBalance        int64
	PrimaryRoundupTotal  int64
	MirrorRoundupTotal   int64
	PrimaryRewardsEarned int64
	MirrorRewardsEarned  int64
}

// Scan compares aggregate counters for a sample of wallets. Exact equality
// is expected; mismatches are logged, not auto-corrected. If correction is
// ever added it must take the primary's values.
func (c *Coordinator) Scan(ctx context.Context, sampleSize int) ([]Divergence, error) {
	wallets, err := c.Primary.SampleWallets(ctx, sampleSize)
	if err != nil {
		return nil, err
	}

	var diverged []Divergence
	for i := range wallets {
		pw := wallets[i]
		mw, err := c.Mirror.GetWalletByID(ctx, pw.ID.String())
		if err != nil {
			if errors.Is(err, ledger.ErrWalletNotFound) {
				logger.Warn("Divergence scan: wallet missing from mirror", logger.Fields{logger.WalletIdKey: pw.ID.String()})
			}
			continue
		}

		if pw.Balance == mw.Balance && pw.RoundupTotal == mw.RoundupTotal && pw.RewardsEarned == mw.RewardsEarned {
			continue
		}

		d := Divergence{
			WalletID:             pw.ID.String(),
			PrimaryBalance:       pw.Balance,
			MirrorBalance:        mw.Balance,
			PrimaryRoundupTotal:  pw.RoundupTotal,
			MirrorRoundupTotal:   mw.RoundupTotal,
			PrimaryRewardsEarned: pw.RewardsEarned,
			MirrorRewardsEarned:  mw.RewardsEarned,
		}
		diverged = append(diverged, d)

		logger.Error("Divergence scan: aggregate mismatch", logger.Fields{
			logger.WalletIdKey: d.WalletID,
			"primary_balance":  d.PrimaryBalance,
			"mirror_balance":   d.MirrorBalance,
		})
	}

	return diverged, nil
}

// StartScanner runs the divergence pass periodically until ctx is done.
func (c *Coordinator) StartScanner(ctx context.Context, interval time.Duration, sampleSize int) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := c.Scan(ctx, sampleSize); err != nil {
					logger.Error("Divergence scan failed", logger.Fields{"error": err.Error()})
				}
			}
		}
	}()
}
