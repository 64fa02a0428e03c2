package payment

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sparewise/roundup-wallet/internal/user"
	"github.com/sparewise/roundup-wallet/pkg/config"
	"github.com/sparewise/roundup-wallet/pkg/logger"
	"github.com/sparewise/roundup-wallet/pkg/utils"
)

const razorpayAPIURL = "https://api.razorpay.com/v1"

type Handler struct {
	Config  config.Config
	Repo    Repository
	client  *http.Client
	baseURL string
}

func NewHandler(cfg config.Config, repo Repository) *Handler {
	return &Handler{
		Config:  cfg,
		Repo:    repo,
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: razorpayAPIURL,
	}
}

type CreateOrderRequest struct {
	Amount      int64  `json:"amount"` // in paise
	Description string `json:"description"`
	Kind        string `json:"kind"` // "deposit" or "round-up"
}

// CreateOrder registers a gateway order and records the PaymentIntent. The
// wallet is only credited later, when the signed capture webhook arrives.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	usr, ok := r.Context().Value(utils.UserKey).(user.User)
	if !ok {
		utils.BuildErrorResponse(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	var req CreateOrderRequest
	if status, err := utils.DecodeJSONBody(w, r, &req); err != nil {
		utils.BuildErrorResponse(w, status, "Invalid request", map[string]string{"error": err.Error()})
		return
	}

	if req.Amount < h.Config.MinTransactionAmount {
		utils.BuildErrorResponse(w, http.StatusBadRequest, "Amount below minimum", nil)
		return
	}

	kind := IntentDeposit
	if req.Kind == string(IntentRoundup) {
		kind = IntentRoundup
	}

	description := req.Description
	if description == "" {
		description = "Wallet deposit"
	}

	// The intent is persisted before the gateway call. A live order whose
	// intent never made it to the database could never be reconciled; an
	// intent with no order is just a dead row.
	intent := &Intent{
		ID:          uuid.New(),
		UserID:      usr.ID,
		Amount:      req.Amount,
		Description: description,
		Kind:        kind,
		Status:      IntentCreated,
	}
	if err := h.Repo.CreateIntent(intent); err != nil {
		utils.BuildErrorResponse(w, http.StatusInternalServerError, "Failed to register payment intent", nil)
		return
	}

	orderPayload := map[string]interface{}{
		"amount":   req.Amount,
		"currency": "INR",
		"receipt":  usr.ID.String(),
		"notes": map[string]interface{}{
			"description": description,
			"user_id":     usr.ID.String(),
			"kind":        string(kind),
		},
	}
	jsonPayload, _ := json.Marshal(orderPayload)

	orderReq, _ := http.NewRequest("POST", h.baseURL+"/orders", strings.NewReader(string(jsonPayload)))
	orderReq.SetBasicAuth(h.Config.RazorpayKeyID, h.Config.RazorpayKeySecret)
	orderReq.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(orderReq)
	if err != nil {
		h.failIntent(intent.ID.String())
		utils.BuildErrorResponse(w, http.StatusInternalServerError, "Failed to reach Razorpay", nil)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		logger.Error("Razorpay order error", logger.Fields{
			"status_code": resp.StatusCode,
			"body":        string(respBody),
			"amount":      req.Amount,
		})
		h.failIntent(intent.ID.String())
		utils.BuildErrorResponse(w, http.StatusBadGateway, "Razorpay error", nil)
		return
	}

	var orderResp struct {
		ID       string `json:"id"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Status   string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&orderResp); err != nil {
		h.failIntent(intent.ID.String())
		utils.BuildErrorResponse(w, http.StatusInternalServerError, "Failed to parse Razorpay response", nil)
		return
	}

	if err := h.Repo.SetProviderOrder(intent.ID.String(), orderResp.ID); err != nil {
		// The order exists but the join key was not recorded: surface the
		// failure so the client retries with a fresh intent instead of
		// paying an order no capture can reconcile.
		logger.Error("Failed to attach provider order to intent", logger.Fields{
			"intent_id": intent.ID.String(),
			"order_id":  orderResp.ID,
			"error":     err.Error(),
		})
		h.failIntent(intent.ID.String())
		utils.BuildErrorResponse(w, http.StatusInternalServerError, "Failed to register payment intent", nil)
		return
	}

	utils.BuildSuccessResponse(w, http.StatusOK, "Order created", map[string]interface{}{
		"intent_id": intent.ID,
		"order_id":  orderResp.ID,
		"amount":    orderResp.Amount,
		"currency":  orderResp.Currency,
		"key_id":    h.Config.RazorpayKeyID,
	})
}

func (h *Handler) failIntent(intentID string) {
	if err := h.Repo.MarkStatus(intentID, IntentFailed, ""); err != nil {
		logger.Error("Failed to mark payment intent failed", logger.Fields{
			"intent_id": intentID,
			"error":     err.Error(),
		})
	}
}

func (h *Handler) GetIntentStatus(w http.ResponseWriter, r *http.Request) {
	usr, _ := r.Context().Value(utils.UserKey).(user.User)

	vars := mux.Vars(r)
	intentID := vars["intentId"]

	intent, err := h.Repo.GetIntent(intentID, usr.ID.String())
	if err != nil {
		utils.BuildErrorResponse(w, http.StatusNotFound, "Payment intent not found", nil)
		return
	}

	utils.BuildSuccessResponse(w, http.StatusOK, "Payment intent status", map[string]interface{}{
		"intent_id": intent.ID,
		"status":    intent.Status,
		"amount":    intent.Amount,
		"kind":      intent.Kind,
	})
}
