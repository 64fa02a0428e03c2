package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/mux"
	"github.com/sparewise/roundup-wallet/cmd/routes"
	"github.com/sparewise/roundup-wallet/internal/ledger"
	"github.com/sparewise/roundup-wallet/internal/mirror"
	"github.com/sparewise/roundup-wallet/internal/payment"
	"github.com/sparewise/roundup-wallet/internal/webhook"
	"github.com/sparewise/roundup-wallet/pkg/config"
	"github.com/sparewise/roundup-wallet/pkg/database"
	"github.com/sparewise/roundup-wallet/pkg/events"
	"github.com/sparewise/roundup-wallet/pkg/logger"
	"gorm.io/gorm"
)

func main() {
	cfg := config.LoadConfig()

	db, err := database.Connect(cfg.DBUrl)
	if err != nil {
		logger.Fatal("Primary database connection failed", logger.WithError(err))
	}
	defer database.Close(db)

	var mirrorDB *gorm.DB
	if cfg.MirrorDBUrl != "" {
		mirrorDB, err = database.Connect(cfg.MirrorDBUrl)
		if err != nil {
			// The mirror being down must not block user-visible operations;
			// replication events queue up in Redis until it returns.
			logger.Error("Mirror database connection failed", logger.WithError(err))
		}
	} else {
		logger.Info("No mirror database configured; replication disabled")
	}

	redisClient := events.NewRedisClient(cfg)

	primaryStore := ledger.NewStore(db)

	processorOpts := []ledger.ProcessorOption{}
	if cfg.AllowOverdraft {
		processorOpts = append(processorOpts, ledger.WithOverdraft())
	}

	var coordinator *mirror.Coordinator
	if mirrorDB != nil {
		mirrorStore := ledger.NewStore(mirrorDB)
		coordinator = mirror.NewCoordinator(primaryStore, mirrorStore, redisClient)
		processorOpts = append(processorOpts, ledger.WithNotifier(coordinator))
	}

	processor := ledger.NewProcessor(primaryStore, processorOpts...)
	roundup := ledger.StrategyFromName(cfg.RoundupStrategy)

	intents := payment.NewRepository(db)
	reconciler := webhook.NewReconciler(intents, processor, primaryStore)

	// background workers
	retryWorker := webhook.NewRetryWorker(cfg, reconciler, redisClient)
	retryWorker.Start()

	scanCtx, stopScan := context.WithCancel(context.Background())
	defer stopScan()
	if coordinator != nil {
		coordinator.Start()
		coordinator.StartScanner(scanCtx, 10*time.Minute, 100)
	}

	r := mux.NewRouter()
	handler := routes.RegisterRoutes(r, cfg, routes.Deps{
		DB:          db,
		Ledger:      primaryStore,
		Processor:   processor,
		Roundup:     roundup,
		Reconciler:  reconciler,
		Intents:     intents,
		RedisClient: redisClient,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("Server starting", logger.Fields{"port": cfg.Port, "env": cfg.Env})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Could not listen", logger.Fields{"port": cfg.Port, "error": err.Error()})
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	<-c

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	server.Shutdown(ctx)
	logger.Info("Server gracefully shut down")
}
