package auth

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sparewise/roundup-wallet/internal/ledger"
	"github.com/sparewise/roundup-wallet/internal/user"
	"github.com/sparewise/roundup-wallet/pkg/config"
	"github.com/sparewise/roundup-wallet/pkg/logger"
	"github.com/sparewise/roundup-wallet/pkg/utils"
	"golang.org/x/crypto/bcrypt"
)

type Handler struct {
	Config   config.Config
	UserRepo user.Repository
	Ledger   ledger.Store
}

func NewHandler(cfg config.Config, userRepo user.Repository, ledgerStore ledger.Store) *Handler {
	return &Handler{Config: cfg, UserRepo: userRepo, Ledger: ledgerStore}
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates the user and provisions their wallet in the same
// request. Every user owns exactly one wallet from registration onwards;
// the ledger never lazily creates one.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if status, err := utils.DecodeJSONBody(w, r, &req); err != nil {
		utils.BuildErrorResponse(w, status, "Invalid request", map[string]string{"error": err.Error()})
		return
	}

	if req.Email == "" || len(req.Password) < 8 {
		utils.BuildErrorResponse(w, http.StatusBadRequest, "Email and a password of at least 8 characters are required", nil)
		return
	}

	if existing, _ := h.UserRepo.FindByEmail(req.Email); existing != nil && existing.Email == req.Email {
		utils.BuildErrorResponse(w, http.StatusConflict, "Email already registered", nil)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		utils.BuildErrorResponse(w, http.StatusInternalServerError, "Failed to secure password", nil)
		return
	}

	usr := &user.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hashed),
	}
	if err := h.UserRepo.CreateUser(usr); err != nil {
		utils.BuildErrorResponse(w, http.StatusInternalServerError, "Failed to create user", nil)
		return
	}

	wallet := &ledger.Wallet{UserID: usr.ID, Currency: "INR"}
	if err := h.Ledger.CreateWallet(r.Context(), wallet); err != nil {
		logger.Error("Failed to provision wallet at registration", logger.Fields{
			logger.UserIdKey: usr.ID.String(),
			"error":          err.Error(),
		})
		utils.BuildErrorResponse(w, http.StatusInternalServerError, "Failed to create wallet", nil)
		return
	}

	token, expiresAt, err := h.issueToken(usr)
	if err != nil {
		utils.BuildErrorResponse(w, http.StatusInternalServerError, "Failed to generate token", nil)
		return
	}

	utils.BuildSuccessResponse(w, http.StatusCreated, "Registration successful", map[string]interface{}{
		"token":      token,
		"expires_at": expiresAt,
		"user":       usr,
		"wallet":     wallet,
	})
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if status, err := utils.DecodeJSONBody(w, r, &req); err != nil {
		utils.BuildErrorResponse(w, status, "Invalid request", map[string]string{"error": err.Error()})
		return
	}

	usr, err := h.UserRepo.FindByEmail(req.Email)
	if err != nil {
		utils.BuildErrorResponse(w, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(usr.PasswordHash), []byte(req.Password)); err != nil {
		utils.BuildErrorResponse(w, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}

	token, expiresAt, err := h.issueToken(usr)
	if err != nil {
		utils.BuildErrorResponse(w, http.StatusInternalServerError, "Failed to generate token", nil)
		return
	}

	utils.BuildSuccessResponse(w, http.StatusOK, "Login successful", map[string]interface{}{
		"token":      token,
		"expires_at": expiresAt,
		"user":       usr,
	})
}

func (h *Handler) issueToken(usr *user.User) (string, time.Time, error) {
	expirationTime := time.Now().Add(time.Hour * 72)
	jwtToken := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		utils.UserIDKey: usr.ID,
		utils.ExpKey:    expirationTime.Unix(),
	})

	tokenString, err := jwtToken.SignedString([]byte(h.Config.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expirationTime, nil
}
