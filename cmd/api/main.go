package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/course-enrollment-api/api/swagger"
	"github.com/noah-isme/course-enrollment-api/internal/handler"
	internalmiddleware "github.com/noah-isme/course-enrollment-api/internal/middleware"
	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/internal/repository"
	"github.com/noah-isme/course-enrollment-api/internal/service"
	"github.com/noah-isme/course-enrollment-api/pkg/cache"
	"github.com/noah-isme/course-enrollment-api/pkg/config"
	"github.com/noah-isme/course-enrollment-api/pkg/database"
	"github.com/noah-isme/course-enrollment-api/pkg/jobs"
	"github.com/noah-isme/course-enrollment-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/course-enrollment-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/course-enrollment-api/pkg/middleware/requestid"
	"github.com/noah-isme/course-enrollment-api/pkg/money"
	"github.com/noah-isme/course-enrollment-api/pkg/signing"
)

// @title Course Enrollment API
// @version 1.0.0
// @description Checkout orchestration and payment reconciliation for course enrollment fees.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, checkout locking disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	paymentRepo := repository.NewPaymentRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	preEnrollmentRepo := repository.NewPreEnrollmentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	settingsRepo := repository.NewPaymentSettingsRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	lockRepo := repository.NewCheckoutLockRepository(redisClient, logr)

	auditSvc := service.NewAuditService(auditRepo, logr, jobs.QueueConfig{
		Workers:    cfg.Audit.Workers,
		MaxRetries: cfg.Audit.Retries,
		RetryDelay: time.Second,
		Logger:     logr,
	})
	auditSvc.Start(ctx)

	settingsSvc := service.NewPaymentSettingsService(settingsRepo, logr, cfg.Asaas.WebhookToken)
	gateway := service.NewAsaasGateway(service.AsaasGatewayConfig{
		SandboxURL:      cfg.Asaas.SandboxURL,
		ProductionURL:   cfg.Asaas.ProductionURL,
		Timeout:         cfg.Asaas.Timeout,
		MinutesToExpire: cfg.Asaas.MinutesToExpire,
	}, &http.Client{Timeout: cfg.Asaas.Timeout}, validate, metrics, logr)
	resolver := service.NewDiscountResolver(paymentRepo, auditSvc, metrics, logr, money.FromFloat(cfg.Checkout.MinimumCharge))

	checkoutSvc := service.NewCheckoutService(service.CheckoutDependencies{
		PreEnrollments: preEnrollmentRepo,
		Enrollments:    enrollmentRepo,
		Courses:        courseRepo,
		Payments:       paymentRepo,
		Settings:       settingsSvc,
		Resolver:       resolver,
		Gateway:        gateway,
		Locks:          lockRepo,
		Tokens:         signing.NewCallbackSigner(cfg.Checkout.CallbackSecret, cfg.Checkout.CallbackTTL),
		Audit:          auditSvc,
	}, service.CheckoutConfig{
		MinimumCharge:   money.FromFloat(cfg.Checkout.MinimumCharge),
		ReuseTolerance:  money.FromFloat(cfg.Checkout.ReuseTolerance),
		LockTTL:         cfg.Checkout.LockTTL,
		CallbackBaseURL: cfg.Checkout.CallbackBaseURL,
	}, validate, metrics, logr)
	webhookSvc := service.NewWebhookService(settingsSvc, paymentRepo, preEnrollmentRepo, enrollmentRepo, auditSvc, validate, metrics, logr)

	authSvc := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})

	checks := map[string]handler.Pinger{"postgres": db.PingContext}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	checkoutHandler := handler.NewCheckoutHandler(checkoutSvc)
	webhookHandler := handler.NewWebhookHandler(webhookSvc)
	metricsHandler := handler.NewMetricsHandler(metrics, checks)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(corsmiddleware.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		SkipPrefixes:   []string{cfg.APIPrefix + "/webhooks/"},
	}))
	r.Use(internalmiddleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/webhooks/asaas", webhookHandler.Asaas)
	api.GET("/checkout/return", checkoutHandler.Return)

	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(authSvc))
	secured.POST("/checkout/pre-enrollment", checkoutHandler.PreEnrollment)
	secured.POST("/checkout/enrollment", checkoutHandler.Enrollment)

	admin := secured.Group("/admin")
	admin.Use(internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))
	admin.GET("/pre-enrollments/:id/discount", checkoutHandler.DiscountPreview)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	auditSvc.Stop()
}
