package main

import (
	"context"
	"encoding/json"
	stdlog "log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/username/tradefolio/backend/src/brokers/publicapi"
	"github.com/username/tradefolio/backend/src/config"
	"github.com/username/tradefolio/backend/src/database"
	"github.com/username/tradefolio/backend/src/handlers"
	"github.com/username/tradefolio/backend/src/logger"
	"github.com/username/tradefolio/backend/src/parsers"
	"github.com/username/tradefolio/backend/src/parsers/publicbroker"
	"github.com/username/tradefolio/backend/src/processors"
	"github.com/username/tradefolio/backend/src/scheduler"
	"github.com/username/tradefolio/backend/src/services"
	"github.com/username/tradefolio/backend/src/utils"
	"golang.org/x/time/rate"
)

func rateLimitMiddleware(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				logger.L.Warn("Rate limit exceeded", "path", r.URL.Path)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigins := make(map[string]bool, len(config.Cfg.AllowedOrigins))
		for _, o := range config.Cfg.AllowedOrigins {
			allowedOrigins[o] = true
		}

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	logger.L.Info("Tradefolio backend server starting...")

	// Monetary fields serialize as JSON numbers, matching what the
	// dashboard frontend expects.
	decimal.MarshalJSONWithoutQuotes = true

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	database.RunMigrations(config.Cfg.DatabasePath, config.Cfg.MigrationsDir)

	parsers.Register(publicbroker.NewParser())

	reportCache := cache.New(services.DefaultCacheExpiration, services.CacheCleanupInterval)

	transactionProcessor := processors.NewTransactionProcessor()
	assignmentProcessor := processors.NewAssignmentProcessor()
	optionProcessor := processors.NewOptionProcessor(config.Cfg.ExpiryCutoff)
	stockProcessor := processors.NewStockProcessor()
	aggregationProcessor := processors.NewAggregationProcessor()
	reconciliationProcessor := processors.NewReconciliationProcessor(config.Cfg.ReconcileBoundaryDays)

	reportService := services.NewReportService(
		config.Cfg,
		transactionProcessor,
		assignmentProcessor,
		optionProcessor,
		stockProcessor,
		aggregationProcessor,
		reconciliationProcessor,
		reportCache,
	)

	brokerClient := publicapi.NewClient(
		config.Cfg.BrokerBaseURL,
		config.Cfg.BrokerAPIToken,
		config.Cfg.TokenValidityMinutes,
		config.Cfg.HistoryPageSize,
	)
	syncService := services.NewSyncService(brokerClient, reportService)

	statsHandler := handlers.NewStatsHandler(reportService)
	tradesHandler := handlers.NewTradesHandler(reportService)
	refreshHandler := handlers.NewRefreshHandler(syncService)

	sched := scheduler.New()
	if err := sched.AddJob(config.Cfg.RefreshSchedule, services.NewRefreshJob(syncService)); err != nil {
		stdlog.Fatalf("Failed to register refresh job: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	// Warm the snapshot so the dashboard has data before the first tick.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if _, err := syncService.Sync(ctx); err != nil {
			logger.L.Warn("Initial broker sync failed, waiting for next scheduled run", "error", err)
		}
	}()

	limiter := rate.NewLimiter(rate.Every(config.Cfg.RateLimitInterval), config.Cfg.RateLimitBurst)

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(handlers.ContextualLoggerMiddleware)
	r.Use(enableCORS)
	r.Use(rateLimitMiddleware(limiter))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "Tradefolio Backend is running"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", statsHandler.HandleHealth)
		r.Get("/stats", statsHandler.HandleGetStats)
		r.Get("/chart", statsHandler.HandleGetChart)

		r.Get("/trades", tradesHandler.HandleGetTrades)
		r.Get("/trades/unknown-basis", tradesHandler.HandleGetUnknownBasis)
		r.Get("/trades/raw", tradesHandler.HandleGetRawTrades)
		r.Get("/debug/history", tradesHandler.HandleGetHistoryCensus)

		r.Post("/update", refreshHandler.HandleUpdate)
		r.Post("/reset", refreshHandler.HandleReset)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			utils.SendJSONError(w, "Not found", http.StatusNotFound)
			return
		}
		http.NotFound(w, r)
	})

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stdlog.Fatalf("Failed to start server: %v", err)
	}
}
