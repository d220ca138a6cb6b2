// @title           AI Estimate Backend API
// @version         1.0.0
// @description     Backend API for AI project estimates. Handles submissions to the workflow engine, free-tier quota, subscriptions and live progress.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:4000
// @BasePath  /

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"ai-estimate-backend/internal/billing"
	"ai-estimate-backend/internal/cache"
	"ai-estimate-backend/internal/config"
	"ai-estimate-backend/internal/database"
	"ai-estimate-backend/internal/handlers"
	"ai-estimate-backend/internal/logging"
	"ai-estimate-backend/internal/metrics"
	"ai-estimate-backend/internal/middleware"
	"ai-estimate-backend/internal/services"
	"ai-estimate-backend/internal/supabase"
	"ai-estimate-backend/internal/workflow"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	logger := logging.New(cfg)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := supabase.NewDatabaseClient(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("Failed to initialize database client: %v", err)
	}
	defer dbClient.Close()

	if err := database.NewMigrator(dbClient.DB(), logger).Run(ctx); err != nil {
		logger.Fatalf("Migration failed: %v", err)
	}

	supabaseClient, err := supabase.NewClient(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize Supabase client: %v", err)
	}

	storageClient, err := supabase.NewStorageClient(cfg.SupabaseURL, cfg.SupabaseServiceRoleKey, cfg.SupabaseStorageBucket)
	if err != nil {
		logger.Fatalf("Failed to initialize storage client: %v", err)
	}

	realtimeClient := supabase.NewRealtimeClient(logger)

	redisCache := cache.NewRedis(cfg.RedisURL, logger)
	defer redisCache.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(registry)

	stripeProvider := billing.NewStripeProvider(cfg)
	workflowClient := workflow.NewClient(cfg.WorkflowWebhookURL)

	estimateService := services.NewEstimateService(dbClient, dbClient, dbClient, storageClient, workflowClient, cfg.FreeLimit, logger, m)
	progressService := services.NewProgressService(dbClient, dbClient, realtimeClient, logger, m)
	subscriptionService := services.NewSubscriptionService(stripeProvider, dbClient, cfg, logger)
	profileService := services.NewProfileService(dbClient, storageClient, logger)
	accountService := services.NewAccountService(supabaseClient, logger)
	reconciler := billing.NewReconciler(stripeProvider, dbClient, redisCache, logger, m)

	healthHandler := handlers.NewHealthHandler(dbClient, logger)
	estimateHandler := handlers.NewEstimateHandler(estimateService, subscriptionService, logger)
	statusHandler := handlers.NewStatusHandler(progressService, logger)
	progressHandler := handlers.NewProgressHandler(progressService, cfg.WorkflowCallbackToken, logger)
	subscriptionHandler := handlers.NewSubscriptionHandler(subscriptionService, logger)
	webhookHandler := handlers.NewWebhookHandler(cfg, reconciler, logger)
	profileHandler := handlers.NewProfileHandler(profileService, logger)
	accountHandler := handlers.NewAccountHandler(accountService, logger)
	diagnosticsHandler := handlers.NewDiagnosticsHandler(subscriptionService, dbClient, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	router.Use(m.Middleware())
	router.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	// Health and metrics (no auth)
	router.GET("/health", healthHandler.Health)
	router.GET("/healthz", healthHandler.Health)
	router.GET("/metrics", gin.WrapH(metrics.Handler(registry)))

	// Provider diagnostics (no auth)
	router.GET("/stripe-test", diagnosticsHandler.StripeTest)
	router.GET("/stripe-whoami", diagnosticsHandler.StripeWhoami)
	router.POST("/debug-write", diagnosticsHandler.DebugWrite)

	// Callbacks (no user auth)
	router.POST("/stripe-webhook", webhookHandler.HandleStripeWebhook)
	router.POST("/progress", progressHandler.Record)

	api := router.Group("/")
	api.Use(middleware.AuthMiddleware(cfg))

	api.POST("/estimates", estimateHandler.SubmitEstimate)
	api.GET("/estimates", estimateHandler.ListEstimates)
	api.GET("/estimates/:execution_id", estimateHandler.GetEstimate)
	api.GET("/estimates/:execution_id/status", statusHandler.GetStatus)
	api.GET("/estimates/:execution_id/events", statusHandler.StreamStatus)
	api.GET("/drafts/latest", estimateHandler.LatestDraft)

	api.POST("/create-subscription", subscriptionHandler.CreateSubscription)
	api.POST("/cancel-subscription", subscriptionHandler.CancelSubscription)
	api.POST("/resume-subscription", subscriptionHandler.ResumeSubscription)
	api.GET("/get-subscription-status", subscriptionHandler.GetSubscriptionStatus)
	api.POST("/get-subscription-status", subscriptionHandler.GetSubscriptionStatus)

	api.GET("/profile", profileHandler.GetProfile)
	api.POST("/profile", profileHandler.CreateProfile)
	api.PATCH("/profile", profileHandler.UpdateProfile)
	api.DELETE("/profile", profileHandler.DeleteProfile)

	api.POST("/account/disable", middleware.RequireRecentAuth(cfg.ReauthWindow), accountHandler.Disable)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.ReconcileSchedule, func() {
		if err := reconciler.Sweep(ctx); err != nil {
			logger.WithError(err).Error("subscription sweep failed")
		}
	}); err != nil {
		logger.Fatalf("Invalid reconcile schedule %q: %v", cfg.ReconcileSchedule, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.WithField("port", cfg.Port).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return realtimeClient.Listen(gctx, cfg.DatabaseURL)
	})

	g.Go(func() error {
		scheduler.Start()
		<-gctx.Done()
		<-scheduler.Stop().Done()
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Fatal("Server stopped with error")
	}
}
