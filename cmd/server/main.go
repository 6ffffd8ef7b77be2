package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/ledgersim/ledgersim-api/internal/auth"
	"github.com/ledgersim/ledgersim-api/internal/database"
	"github.com/ledgersim/ledgersim-api/internal/ledger"
	"github.com/ledgersim/ledgersim-api/internal/marketdata"
	"github.com/ledgersim/ledgersim-api/internal/processing"
	"github.com/ledgersim/ledgersim-api/internal/snapshot"
	"github.com/ledgersim/ledgersim-api/pkg/middleware"
)

const defaultStartingCash = 10_000

// init configures logging based on environment settings. Development gets
// pretty console output; DEBUG=true raises the log level.
func init() {
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main wires the ledger engine behind the API server and a cron trigger that
// processes the day after market close.
func main() {
	_ = godotenv.Load()

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "ledger.db"
	}

	db, err := database.NewDatabase(dbPath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	ledgerDB := ledger.NewDatabase(db)
	startingCash := defaultStartingCash
	if v := os.Getenv("STARTING_CASH"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			startingCash = parsed
		}
	}
	if err := ledgerDB.Seed(float64(startingCash)); err != nil {
		zlog.Fatal().Err(err).Msg("Failed to seed ledger")
	}

	// Quote fallback chain: local store first, then stooq.
	quotes := marketdata.NewChain(
		marketdata.NewStore(db),
		marketdata.NewStooqClient(),
	)

	snapshots := snapshot.NewManager(db)
	processingService := processing.NewService(ledgerDB, snapshots, quotes)
	processingHandlers := processing.NewGinHandlers(processingService)
	ledgerHandlers := ledger.NewGinHandlers(ledgerDB)

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "ledgersim-dev-secret"
	}
	authService := auth.NewService(jwtSecret)
	authHandlers := auth.NewGinHandlers(authService)
	if key, secret := os.Getenv("API_KEY"), os.Getenv("API_SECRET"); key != "" {
		authService.RegisterCredentials(key, secret)
	}

	// Scheduled daily processing, after market close in New York.
	cronSpec := os.Getenv("CRON_SPEC")
	if cronSpec == "" {
		cronSpec = "30 17 * * MON-FRI"
	}
	et, err := time.LoadLocation("America/New_York")
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load ET timezone")
	}
	scheduler := cron.New(cron.WithLocation(et))
	_, err = scheduler.AddFunc(cronSpec, func() {
		today := time.Now().In(et)
		result, err := processingService.ProcessDay(context.Background(), today)
		if err != nil {
			zlog.Error().Err(err).Str("state", result.State).Msg("scheduled run failed")
			return
		}
		zlog.Info().
			Str("run_id", result.RunID).
			Str("state", result.State).
			Msg("scheduled run finished")
	})
	if err != nil {
		zlog.Fatal().Err(err).Str("cron_spec", cronSpec).Msg("Failed to schedule daily run")
	}
	scheduler.Start()
	defer scheduler.Stop()

	router := gin.Default()
	router.Use(middleware.RateLimit())
	setupRoutes(router, authHandlers, ledgerHandlers, processingHandlers)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints:
// - Auth routes: public token exchange
// - Order and ledger routes: JWT protected
// - Internal routes: run trigger, protected by internal auth
func setupRoutes(
	router *gin.Engine,
	authHandlers *auth.GinHandlers,
	ledgerHandlers *ledger.GinHandlers,
	processingHandlers *processing.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		orders := v1.Group("/orders")
		orders.Use(middleware.JWTAuth())
		{
			orders.POST("", ledgerHandlers.EnqueueOrderHandler())
		}

		views := v1.Group("")
		views.Use(middleware.JWTAuth())
		{
			views.GET("/portfolio", ledgerHandlers.PortfolioHandler())
			views.GET("/portfolio/history", ledgerHandlers.PortfolioHistoryHandler())
			views.GET("/trades", ledgerHandlers.TradeLogHandler())
		}

		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth())
		{
			internal.POST("/process/:date", processingHandlers.ProcessDayHandler())
		}
	}
}
