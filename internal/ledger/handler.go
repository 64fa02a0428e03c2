package ledger

import (
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/sparewise/roundup-wallet/internal/user"
	"github.com/sparewise/roundup-wallet/pkg/config"
	"github.com/sparewise/roundup-wallet/pkg/id"
	"github.com/sparewise/roundup-wallet/pkg/utils"
)

const recentTransactionLimit = 50

type Handler struct {
	Config    config.Config
	Store     Store
	Processor *Processor
	Roundup   RoundupStrategy
}

func NewHandler(cfg config.Config, store Store, processor *Processor, roundup RoundupStrategy) *Handler {
	return &Handler{Config: cfg, Store: store, Processor: processor, Roundup: roundup}
}

// GetWallet returns the wallet with its most recent transactions.
func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	usr, ok := r.Context().Value(utils.UserKey).(user.User)
	if !ok {
		utils.BuildErrorResponse(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	wallet, err := h.Store.GetWalletByUserID(r.Context(), usr.ID.String())
	if err != nil {
		utils.BuildErrorResponse(w, HTTPStatus(err), "Wallet not found", nil)
		return
	}

	txs, err := h.Store.ListTransactions(r.Context(), wallet.ID.String(), recentTransactionLimit, 0)
	if err != nil {
		utils.BuildErrorResponse(w, http.StatusInternalServerError, "Failed to fetch transactions", nil)
		return
	}

	utils.BuildSuccessResponse(w, http.StatusOK, "Wallet Details", map[string]interface{}{
		"wallet":       wallet,
		"transactions": txs,
	})
}

func (h *Handler) GetWalletBalance(w http.ResponseWriter, r *http.Request) {
	usr, _ := r.Context().Value(utils.UserKey).(user.User)

	wallet, err := h.Store.GetWalletByUserID(r.Context(), usr.ID.String())
	if err != nil {
		utils.BuildErrorResponse(w, HTTPStatus(err), "Wallet not found", nil)
		return
	}

	utils.BuildSuccessResponse(w, http.StatusOK, "Wallet Balance", map[string]any{
		"balance":        wallet.Balance,
		"roundup_total":  wallet.RoundupTotal,
		"rewards_earned": wallet.RewardsEarned,
	})
}

type CreateTransactionRequest struct {
	Type        TransactionType `json:"type"`
	Amount      int64           `json:"amount"` // in paise
	Description string          `json:"description"`
	Reference   string          `json:"reference"`
}

// CreateTransaction applies a deposit, withdrawal or reward. Clients may
// supply their own reference to make retries idempotent; one is generated
// otherwise.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	usr, _ := r.Context().Value(utils.UserKey).(user.User)

	var req CreateTransactionRequest
	if status, err := utils.DecodeJSONBody(w, r, &req); err != nil {
		utils.BuildErrorResponse(w, status, "Invalid request", map[string]string{"error": err.Error()})
		return
	}

	if req.Type == TransactionRoundUp {
		utils.BuildErrorResponse(w, http.StatusBadRequest, "Round-ups are created via the roundup endpoint", nil)
		return
	}

	reference := req.Reference
	if reference == "" {
		reference = fmt.Sprintf("txn-%s", id.Generate())
	}

	tx, err := h.Processor.Apply(r.Context(), usr.ID.String(), req.Type, req.Amount, req.Description, reference)
	if err != nil {
		utils.BuildErrorResponse(w, HTTPStatus(err), err.Error(), nil)
		return
	}

	wallet, _ := h.Store.GetWalletByUserID(r.Context(), usr.ID.String())

	utils.BuildSuccessResponse(w, http.StatusCreated, "Transaction applied", map[string]interface{}{
		"transaction": tx,
		"new_balance": wallet.Balance,
	})
}

type RoundupRequest struct {
	PurchaseAmount int64  `json:"purchase_amount"` // in paise
	Description    string `json:"description"`
}

// SimulateRoundup computes the savings amount for a purchase server-side
// and records it. A zero result (whole-rupee purchase under the ceiling
// strategy) is skipped, never written as a zero-amount round-up.
func (h *Handler) SimulateRoundup(w http.ResponseWriter, r *http.Request) {
	usr, _ := r.Context().Value(utils.UserKey).(user.User)

	var req RoundupRequest
	if status, err := utils.DecodeJSONBody(w, r, &req); err != nil {
		utils.BuildErrorResponse(w, status, "Invalid request", map[string]string{"error": err.Error()})
		return
	}

	if req.PurchaseAmount <= 0 {
		utils.BuildErrorResponse(w, http.StatusBadRequest, "Invalid purchase amount", nil)
		return
	}

	roundup := h.Roundup.Roundup(req.PurchaseAmount)
	if roundup == 0 {
		utils.BuildSuccessResponse(w, http.StatusOK, "Purchase already whole, no round-up", map[string]interface{}{
			"roundup_amount": 0,
		})
		return
	}

	description := req.Description
	if description == "" {
		description = "Round-up from purchase"
	}

	reference := fmt.Sprintf("rnd-%s-%d", usr.ID.String(), time.Now().UnixNano())
	tx, err := h.Processor.Apply(r.Context(), usr.ID.String(), TransactionRoundUp, roundup, description, reference)
	if err != nil {
		utils.BuildErrorResponse(w, HTTPStatus(err), err.Error(), nil)
		return
	}

	wallet, _ := h.Store.GetWalletByUserID(r.Context(), usr.ID.String())

	utils.BuildSuccessResponse(w, http.StatusCreated, "Round-up saved", map[string]interface{}{
		"transaction":    tx,
		"roundup_amount": roundup,
		"new_balance":    wallet.Balance,
	})
}

func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	usr, _ := r.Context().Value(utils.UserKey).(user.User)

	wallet, err := h.Store.GetWalletByUserID(r.Context(), usr.ID.String())
	if err != nil {
		utils.BuildErrorResponse(w, HTTPStatus(err), "Wallet not found", nil)
		return
	}

	limit, offset, page := utils.GetPaginationDetails(r)

	txs, err := h.Store.ListTransactions(r.Context(), wallet.ID.String(), limit, offset)
	if err != nil {
		utils.BuildErrorResponse(w, http.StatusInternalServerError, "Failed to fetch transactions", nil)
		return
	}

	count, _ := h.Store.CountTransactions(r.Context(), wallet.ID.String())
	totalPages := int(math.Ceil(float64(count) / float64(limit)))

	utils.BuildSuccessResponse(w, http.StatusOK, "Transaction History", map[string]interface{}{
		"transactions": txs,
		"meta": map[string]interface{}{
			"total_items":  count,
			"total_pages":  totalPages,
			"current_page": page,
			"limit":        limit,
		},
	})
}
