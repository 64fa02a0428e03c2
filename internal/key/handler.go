package key

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/sparewise/roundup-wallet/internal/user"
	"github.com/sparewise/roundup-wallet/pkg/config"
	"github.com/sparewise/roundup-wallet/pkg/utils"
)

const maxActiveKeys = 5

type Handler struct {
	Config config.Config
	Repo   Repository
}

func NewHandler(cfg config.Config, repo Repository) *Handler {
	return &Handler{Config: cfg, Repo: repo}
}

type CreateKeyRequest struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
	TTLDays     int      `json:"ttl_days"`
}

func (h *Handler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	usr, ok := r.Context().Value(utils.UserKey).(user.User)
	if !ok {
		utils.BuildErrorResponse(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	var req CreateKeyRequest
	if status, err := utils.DecodeJSONBody(w, r, &req); err != nil {
		utils.BuildErrorResponse(w, status, "Invalid request", map[string]string{"error": err.Error()})
		return
	}

	if len(req.Permissions) == 0 {
		utils.BuildErrorResponse(w, http.StatusBadRequest, "At least one permission is required", nil)
		return
	}
	for _, p := range req.Permissions {
		if !IsAllowedPermission(p) {
			utils.BuildErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("Unknown permission: %s", p), nil)
			return
		}
	}

	count, err := h.Repo.CountActiveKeys(usr.ID.String())
	if err != nil {
		utils.BuildErrorResponse(w, http.StatusInternalServerError, "Failed to check active keys", nil)
		return
	}
	if count >= maxActiveKeys {
		utils.BuildErrorResponse(w, http.StatusConflict, "Active key limit reached", nil)
		return
	}

	ttl := req.TTLDays
	if ttl <= 0 || ttl > 365 {
		ttl = 90
	}

	plainKey, err := generateKey()
	if err != nil {
		utils.BuildErrorResponse(w, http.StatusInternalServerError, "Failed to generate key", nil)
		return
	}

	apiKey := APIKey{
		UserID:      usr.ID,
		Key:         HashKey(plainKey),
		MaskedKey:   maskKey(plainKey),
		Permissions: req.Permissions,
		Name:        req.Name,
		ExpiresAt:   time.Now().AddDate(0, 0, ttl),
	}

	if err := h.Repo.CreateKey(&apiKey); err != nil {
		utils.BuildErrorResponse(w, http.StatusInternalServerError, "Failed to store key", nil)
		return
	}

	// The plain key is shown exactly once.
	utils.BuildSuccessResponse(w, http.StatusCreated, "API key created", map[string]interface{}{
		"key":        plainKey,
		"masked_key": apiKey.MaskedKey,
		"expires_at": apiKey.ExpiresAt,
	})
}

type RolloverKeyRequest struct {
	KeyID string `json:"key_id"`
}

// RolloverAPIKey revokes an existing key and issues a replacement with the
// same name and permissions.
func (h *Handler) RolloverAPIKey(w http.ResponseWriter, r *http.Request) {
	usr, _ := r.Context().Value(utils.UserKey).(user.User)

	var req RolloverKeyRequest
	if status, err := utils.DecodeJSONBody(w, r, &req); err != nil {
		utils.BuildErrorResponse(w, status, "Invalid request", map[string]string{"error": err.Error()})
		return
	}

	oldKey, err := h.Repo.GetKey(req.KeyID, usr.ID.String())
	if err != nil {
		utils.BuildErrorResponse(w, http.StatusNotFound, "Key not found", nil)
		return
	}

	if err := h.Repo.RevokeKey(oldKey.ID.String(), usr.ID.String()); err != nil {
		utils.BuildErrorResponse(w, http.StatusInternalServerError, "Failed to revoke key", nil)
		return
	}

	plainKey, err := generateKey()
	if err != nil {
		utils.BuildErrorResponse(w, http.StatusInternalServerError, "Failed to generate key", nil)
		return
	}

	newKey := APIKey{
		UserID:      usr.ID,
		Key:         HashKey(plainKey),
		MaskedKey:   maskKey(plainKey),
		Permissions: oldKey.Permissions,
		Name:        oldKey.Name,
		ExpiresAt:   time.Now().AddDate(0, 0, 90),
	}

	if err := h.Repo.CreateKey(&newKey); err != nil {
		utils.BuildErrorResponse(w, http.StatusInternalServerError, "Failed to store key", nil)
		return
	}

	utils.BuildSuccessResponse(w, http.StatusCreated, "API key rolled over", map[string]interface{}{
		"key":        plainKey,
		"masked_key": newKey.MaskedKey,
		"expires_at": newKey.ExpiresAt,
	})
}

func generateKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "rwk_" + hex.EncodeToString(buf), nil
}

func maskKey(plainKey string) string {
	if len(plainKey) < 12 {
		return "****"
	}
	return plainKey[:8] + "..." + plainKey[len(plainKey)-4:]
}
