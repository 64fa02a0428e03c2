package webhook

import (
	"errors"
	"io"
	"net/http"

	"github.com/sparewise/roundup-wallet/internal/ledger"
	"github.com/sparewise/roundup-wallet/pkg/config"
	"github.com/sparewise/roundup-wallet/pkg/events"
	"github.com/sparewise/roundup-wallet/pkg/logger"
	"github.com/sparewise/roundup-wallet/pkg/utils"
)

type Handler struct {
	Config     config.Config
	Reconciler *Reconciler
	Redis      *events.RedisClient
}

func NewHandler(cfg config.Config, reconciler *Reconciler, redisClient *events.RedisClient) *Handler {
	return &Handler{Config: cfg, Reconciler: reconciler, Redis: redisClient}
}

// RazorpayWebhook verifies and reconciles a gateway callback inline. The
// response status drives the gateway's own retry policy: 200 covers the
// idempotent no-op case, anything else gets redelivered. Retriable store
// failures are additionally queued for the background worker; double
// delivery is safe because the apply is keyed on the intent.
func (h *Handler) RazorpayWebhook(w http.ResponseWriter, r *http.Request) {
	signature := r.Header.Get("x-razorpay-signature")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Error("Webhook: Failed to read body", logger.Fields{"error": err.Error()})
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if !VerifySignature(h.Config.RazorpayWebhookSecret, body, signature) {
		logger.Error("Webhook: Signature mismatch", logger.Fields{"remote_addr": r.RemoteAddr})
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	ev, err := ParseGatewayEvent(body)
	if err != nil {
		logger.Error("Webhook: Malformed payload", logger.Fields{"error": err.Error()})
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := h.Reconciler.ReconcileGateway(r.Context(), ev, body); err != nil {
		if errors.Is(err, ledger.ErrIntentNotFound) {
			logger.Warn("Webhook: No intent for capture event", logger.Fields{"order_id": ev.OrderID})
			w.WriteHeader(http.StatusNotFound)
			return
		}

		if errors.Is(err, ledger.ErrStoreUnavailable) {
			if qerr := h.Redis.PublishGatewayRetry(r.Context(), body); qerr != nil {
				logger.Error("Webhook: Failed to queue event for retry", logger.Fields{"error": qerr.Error()})
			}
		}

		logger.Error("Webhook: Reconciliation failed", logger.Fields{
			"order_id": ev.OrderID,
			"error":    err.Error(),
		})
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// MirrorWebhook receives change-capture events from the secondary store.
// The route sits behind API-key auth with the MIRROR_SYNC permission.
func (h *Handler) MirrorWebhook(w http.ResponseWriter, r *http.Request) {
	var ev MirrorEvent
	if status, err := utils.DecodeJSONBody(w, r, &ev); err != nil {
		utils.BuildErrorResponse(w, status, "Invalid request", map[string]string{"error": err.Error()})
		return
	}

	if err := ev.Validate(); err != nil {
		utils.BuildErrorResponse(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	if err := h.Reconciler.ReconcileMirror(r.Context(), &ev); err != nil {
		logger.Error("Mirror event reconciliation failed", logger.Fields{
			"type":  ev.Type,
			"table": ev.Table,
			"error": err.Error(),
		})
		utils.BuildErrorResponse(w, ledger.HTTPStatus(err), "Failed to apply mirror event", nil)
		return
	}

	utils.BuildSuccessResponse(w, http.StatusOK, "Mirror event applied", nil)
}
