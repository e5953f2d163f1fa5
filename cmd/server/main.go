package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/gin-gonic/gin"

	"github.com/reconloop/recon-api/internal/auth"
	"github.com/reconloop/recon-api/internal/database"
	"github.com/reconloop/recon-api/internal/ledger"
	"github.com/reconloop/recon-api/internal/party"
	"github.com/reconloop/recon-api/internal/payment"
	"github.com/reconloop/recon-api/internal/statement"
	"github.com/reconloop/recon-api/pkg/middleware"
	"github.com/reconloop/recon-api/pkg/response"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
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

// registerErrorMappings wires the domain error taxonomy into the
// response envelope.
func registerErrorMappings() {
	response.RegisterError(ledger.ErrImbalanced, http.StatusUnprocessableEntity, response.ErrCodeImbalanced)
	response.RegisterError(ledger.ErrLineReconciled, http.StatusUnprocessableEntity, response.ErrCodeImbalanced)
	response.RegisterError(ledger.ErrNoRate, http.StatusBadRequest, response.ErrCodeBadRequest)
	response.RegisterError(payment.ErrInvalidTransition, http.StatusConflict, response.ErrCodeInvalidState)
	response.RegisterError(payment.ErrInvalidClearingConfig, http.StatusBadRequest, response.ErrCodeBadRequest)
	response.RegisterError(payment.ErrNegativeAmount, http.StatusBadRequest, response.ErrCodeBadRequest)
	response.RegisterError(statement.ErrStatementNotDraft, http.StatusConflict, response.ErrCodeInvalidState)
	response.RegisterError(statement.ErrLineNotConfirmed, http.StatusConflict, response.ErrCodeInvalidState)
}

// main initializes and runs the reconciliation API server with graceful
// shutdown support.
func main() {
	db, err := database.NewDatabase()
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	registerErrorMappings()

	router := gin.Default()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "recon-secret-key"
	}
	authService := auth.NewService(jwtSecret)
	authHandlers := auth.NewGinHandlers(authService)
	// Register test credentials
	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret)

	ledgerHandlers := ledger.NewGinHandlers(ledger.NewDatabase(db))
	partyHandlers := party.NewGinHandlers(party.NewDatabase(db))

	paymentService := payment.NewService(db)
	paymentHandlers := payment.NewGinHandlers(paymentService)

	statementService := statement.NewService(db)
	statementHandlers := statement.NewGinHandlers(statementService)

	// Retry unexplained statement lines in the background
	retryProcessor := statement.NewProcessor(statementService)
	processorCtx, processorCancel := context.WithCancel(context.Background())
	defer processorCancel()

	go retryProcessor.Start(processorCtx)

	router.Use(middleware.RateLimit())

	setupRoutes(router, authHandlers, ledgerHandlers, partyHandlers, paymentHandlers, statementHandlers)

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

// setupRoutes configures all API endpoints and their handlers, grouped
// by functionality:
// - Auth routes: public endpoints for authentication
// - Setup routes (accounts, parties, journals): JWT protected
// - Payment and statement routes: JWT protected
// - Internal routes (reconciliation triggers): internal auth
func setupRoutes(
	router *gin.Engine,
	authHandlers *auth.GinHandlers,
	ledgerHandlers *ledger.GinHandlers,
	partyHandlers *party.GinHandlers,
	paymentHandlers *payment.GinHandlers,
	statementHandlers *statement.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		ledgerGroup := v1.Group("/ledger")
		ledgerGroup.Use(middleware.JWTAuth())
		{
			ledgerGroup.POST("/accounts", ledgerHandlers.CreateAccountHandler())
			ledgerGroup.POST("/obligations", ledgerHandlers.CreateObligationHandler())
			ledgerGroup.POST("/rates", ledgerHandlers.CreateRateHandler())
			ledgerGroup.GET("/lines/:line_id", ledgerHandlers.GetLineHandler())
		}

		parties := v1.Group("/parties")
		parties.Use(middleware.JWTAuth())
		{
			parties.POST("", partyHandlers.CreatePartyHandler())
			parties.GET("/:party_id", partyHandlers.GetPartyHandler())
		}

		payments := v1.Group("/payments")
		payments.Use(middleware.JWTAuth())
		{
			payments.POST("/journals", paymentHandlers.CreateJournalHandler())
			payments.POST("/groups", paymentHandlers.CreateGroupHandler())
			payments.POST("", paymentHandlers.CreatePaymentHandler())
			payments.POST("/:payment_id/submit", paymentHandlers.SubmitPaymentHandler())
			payments.POST("/:payment_id/process", paymentHandlers.ProcessPaymentHandler())
			payments.GET("/:payment_id", paymentHandlers.GetPaymentHandler())
		}

		statements := v1.Group("/statements")
		statements.Use(middleware.JWTAuth())
		{
			statements.POST("", statementHandlers.CreateStatementHandler())
			statements.POST("/:statement_id/lines", statementHandlers.AddLineHandler())
			statements.GET("/:statement_id", statementHandlers.GetStatementHandler())
			statements.POST("/:statement_id/confirm", statementHandlers.ConfirmStatementHandler())
		}

		// Internal routes (should be protected by internal network)
		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth())
		{
			internal.POST("/reconcile/:line_id", statementHandlers.ReconcileLineHandler())
			internal.POST("/lines/:line_id/counterparts", statementHandlers.AddCounterpartHandler())
			internal.POST("/counterparts/:counterpart_id/post", statementHandlers.PostCounterpartHandler())
			internal.POST("/counterparts/:counterpart_id/copy", statementHandlers.CopyCounterpartHandler())
		}
	}
}
