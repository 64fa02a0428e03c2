package routes

import (
	"net/http"
	"os"
	"strings"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/sparewise/roundup-wallet/internal/auth"
	"github.com/sparewise/roundup-wallet/internal/education"
	"github.com/sparewise/roundup-wallet/internal/key"
	"github.com/sparewise/roundup-wallet/internal/ledger"
	"github.com/sparewise/roundup-wallet/internal/middleware"
	"github.com/sparewise/roundup-wallet/internal/payment"
	"github.com/sparewise/roundup-wallet/internal/user"
	"github.com/sparewise/roundup-wallet/internal/webhook"
	"github.com/sparewise/roundup-wallet/pkg/config"
	"github.com/sparewise/roundup-wallet/pkg/events"
	"github.com/sparewise/roundup-wallet/pkg/logger"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// Deps carries the process-scoped handles the routes need. Everything is
// constructed once in main and injected here.
type Deps struct {
	DB          *gorm.DB
	Ledger      ledger.Store
	Processor   *ledger.Processor
	Roundup     ledger.RoundupStrategy
	Reconciler  *webhook.Reconciler
	Intents     payment.Repository
	RedisClient *events.RedisClient
}

func RegisterRoutes(r *mux.Router, cfg config.Config, deps Deps) http.Handler {
	userRepo := user.NewRepository(deps.DB)
	keyRepo := key.NewRepository(deps.DB)
	eduRepo := education.NewRepository(deps.DB)

	authHandler := auth.NewHandler(cfg, userRepo, deps.Ledger)
	keyHandler := key.NewHandler(cfg, keyRepo)
	ledgerHandler := ledger.NewHandler(cfg, deps.Ledger, deps.Processor, deps.Roundup)
	paymentHandler := payment.NewHandler(cfg, deps.Intents)
	webhookHandler := webhook.NewHandler(cfg, deps.Reconciler, deps.RedisClient)
	eduHandler := education.NewHandler(cfg, eduRepo)

	r.Use(middleware.LoggingMiddleware)

	authLimiter := middleware.NewRateLimiter(rate.Limit(1), 5)
	authR := r.PathPrefix("/api/auth").Subrouter()
	authR.Use(authLimiter.Limit)
	authR.HandleFunc("/register", authHandler.Register).Methods("POST")
	authR.HandleFunc("/login", authHandler.Login).Methods("POST")

	keysR := r.PathPrefix("/api/keys").Subrouter()
	keysR.Use(auth.JWTMiddleware(cfg, userRepo))
	keysR.HandleFunc("/create", keyHandler.CreateAPIKey).Methods("POST")
	keysR.HandleFunc("/rollover", keyHandler.RolloverAPIKey).Methods("POST")

	walletR := r.PathPrefix("/api/wallet").Subrouter()
	walletR.Use(auth.UnifiedAuthMiddleware(cfg, userRepo, keyRepo))
	walletR.Handle("", auth.RequirePermission(string(key.PermissionRead))(http.HandlerFunc(ledgerHandler.GetWallet))).Methods("GET")
	walletR.Handle("/balance", auth.RequirePermission(string(key.PermissionRead))(http.HandlerFunc(ledgerHandler.GetWalletBalance))).Methods("GET")
	walletR.Handle("/transactions", auth.RequirePermission(string(key.PermissionRead))(http.HandlerFunc(ledgerHandler.GetTransactions))).Methods("GET")
	walletR.Handle("/transactions", auth.RequirePermission(string(key.PermissionDeposit))(http.HandlerFunc(ledgerHandler.CreateTransaction))).Methods("POST")
	walletR.Handle("/roundup", auth.RequirePermission(string(key.PermissionDeposit))(http.HandlerFunc(ledgerHandler.SimulateRoundup))).Methods("POST")

	paymentsR := r.PathPrefix("/api/payments").Subrouter()
	paymentsR.Use(auth.JWTMiddleware(cfg, userRepo))
	paymentsR.HandleFunc("/order", paymentHandler.CreateOrder).Methods("POST")
	paymentsR.HandleFunc("/{intentId}/status", paymentHandler.GetIntentStatus).Methods("GET")

	// Webhooks authenticate themselves: the gateway by payload signature,
	// the mirror by a MIRROR_SYNC api key.
	webhooksR := r.PathPrefix("/api/webhooks").Subrouter()
	webhooksR.HandleFunc("/razorpay", webhookHandler.RazorpayWebhook).Methods("POST")
	mirrorR := webhooksR.PathPrefix("/mirror").Subrouter()
	mirrorR.Use(auth.APIKeyMiddleware(keyRepo, userRepo))
	mirrorR.Handle("", auth.RequirePermission(string(key.PermissionMirrorSync))(http.HandlerFunc(webhookHandler.MirrorWebhook))).Methods("POST")

	eduR := r.PathPrefix("/api/education").Subrouter()
	eduR.Use(auth.JWTMiddleware(cfg, userRepo))
	eduR.HandleFunc("/lessons/complete", eduHandler.CompleteLesson).Methods("POST")
	eduR.HandleFunc("/score", eduHandler.GetScore).Methods("GET")

	if cfg.Env != "production" {

		r.HandleFunc("/swagger.yaml", func(w http.ResponseWriter, r *http.Request) {
			content, err := os.ReadFile("docs/swagger.yaml")
			if err != nil {
				logger.Error("Failed to read swagger.yaml", logger.Fields{"error": err.Error()})
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			modifiedContent := strings.Replace(string(content), "{{BASE_URL}}", "/", -1)

			w.Header().Set("Content-Type", "application/yaml")
			w.Write([]byte(modifiedContent))
		})

		r.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
			httpSwagger.URL("/swagger.yaml"),
		))
		logger.Info("Swagger documentation enabled at /swagger/index.html")
	}

	corsObj := handlers.CORS(
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "x-api-key"}),
	)

	return corsObj(r)
}
