package webhook

import (
	"context"
	"time"

	"github.com/sparewise/roundup-wallet/pkg/config"
	"github.com/sparewise/roundup-wallet/pkg/events"
	"github.com/sparewise/roundup-wallet/pkg/logger"
)

// RetryWorker drains gateway events that failed inline reconciliation.
// Each event gets a bounded number of attempts before landing in the DLQ.
type RetryWorker struct {
	Config      config.Config
	Reconciler  *Reconciler
	RedisClient *events.RedisClient
}

func NewRetryWorker(cfg config.Config, reconciler *Reconciler, redisClient *events.RedisClient) *RetryWorker {
	return &RetryWorker{Config: cfg, Reconciler: reconciler, RedisClient: redisClient}
}

func (w *RetryWorker) Start() {
	logger.Info("Starting webhook retry worker...")
	go w.processEvents()
}

func (w *RetryWorker) processEvents() {
	for {
		result, err := w.RedisClient.Client.BLPop(context.Background(), 5*time.Second, events.GatewayQueue).Result()
		if err != nil {
			continue
		}

		rawPayload := []byte(result[1])
		ev, err := ParseGatewayEvent(rawPayload)
		if err != nil {
			logger.Error("RetryWorker: Failed to parse event", logger.Fields{"error": err.Error(), "data": string(rawPayload)})
			w.moveToDLQ(rawPayload)
			continue
		}

		w.handleEvent(ev, rawPayload)
	}
}

func (w *RetryWorker) handleEvent(ev *GatewayEvent, rawPayload []byte) {
	maxRetries := 3
	for i := 0; i < maxRetries; i++ {
		err := w.Reconciler.ReconcileGateway(context.Background(), ev, rawPayload)
		if err == nil {
			logger.Info("RetryWorker: Successfully reconciled event", logger.Fields{"event": ev.Event, "order_id": ev.OrderID})
			return
		}

		logger.Warn("RetryWorker: Failed to reconcile event, retrying", logger.Fields{
			"event":    ev.Event,
			"order_id": ev.OrderID,
			"attempt":  i + 1,
			"error":    err.Error(),
		})
		time.Sleep(time.Duration(i+1) * time.Second)
	}

	logger.Error("RetryWorker: Max retries exhausted, moving to DLQ", logger.Fields{"order_id": ev.OrderID})
	w.moveToDLQ(rawPayload)
}

func (w *RetryWorker) moveToDLQ(data []byte) {
	if err := w.RedisClient.PushToDLQ(context.Background(), data); err != nil {
		logger.Error("RetryWorker: Failed to push to DLQ", logger.Fields{"error": err.Error()})
	}
}
