package main

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"storefront-backend/config"
	"storefront-backend/database"
	"storefront-backend/internal/api"
	"storefront-backend/internal/middleware"
	"storefront-backend/internal/repository"
	"storefront-backend/internal/services"
	"storefront-backend/internal/utils"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	logger := utils.NewLogger(cfg.LogLevel)
	if envErr != nil {
		logger.Info("No .env file found, using system environment variables")
	}
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.ConnectionString, cfg.DatabaseName, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := db.Close(closeCtx); err != nil {
			logger.WithError(err).Warn("MongoDB disconnect failed")
		}
	}()

	if err := db.EnsureIndexes(ctx); err != nil {
		logger.WithError(err).Warn("Failed to ensure indexes")
	}

	monitor := database.NewMonitor(db, cfg.DBHealthInterval, logger)
	go monitor.Start(ctx)

	// Stores
	orderRepo := repository.NewOrderRepository(db)
	userRepo := repository.NewUserRepository(db)
	adminRepo := repository.NewAdminRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	productRepo := repository.NewProductRepository(db)

	// Delivery channels
	hub := services.NewNotificationHub(cfg.AllowedOrigins(), logger)

	mailer := services.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, logger)
	if !mailer.Configured() {
		logger.Warn("EMAIL_USER/EMAIL_PASS not set; emails will be simulated and only logged")
	}
	emailService := services.NewEmailService(mailer, cfg.ClientURL, cfg.AdminPanelURL, cfg.AdminEmail, logger)

	var pushProvider services.PushProvider = services.NewLogPushProvider(logger)
	if cfg.FirebaseServiceAccount != "" {
		fcmProvider, err := services.NewFCMProvider(ctx, cfg.FirebaseServiceAccount, logger)
		if err != nil {
			logger.WithError(err).Warn("FCM unavailable, push notifications will only be logged")
		} else {
			pushProvider = fcmProvider
		}
	}
	pushService := services.NewPushService(pushProvider, userRepo, adminRepo, logger)

	var retryQueue services.RetryQueue
	var retryWorker *services.RetryWorker
	if cfg.RedisURL != "" {
		queue, err := services.NewRedisRetryQueue(ctx, cfg.RedisURL)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, failed notifications will not be retried")
		} else {
			defer queue.Close()
			retryQueue = queue
			retryWorker = services.NewRetryWorker(queue, logger)
		}
	}

	// Services
	authService := services.NewAuthService(cfg.JWTSecret, cfg.RefreshTokenSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	notificationService := services.NewNotificationService(notificationRepo, hub, logger)
	dispatcher := services.NewDispatcher(retryQueue, logger)
	orderService := services.NewOrderService(orderRepo, userRepo, emailService, pushService, notificationService, dispatcher, logger)
	userService := services.NewUserService(userRepo, authService, emailService, logger)

	if retryWorker != nil {
		orderService.RegisterRetryHandlers(retryWorker)
		go retryWorker.Start(ctx)
	}

	svc := api.Services{
		Orders:        orderService,
		Dashboard:     services.NewDashboardService(orderRepo, userRepo, productRepo),
		Notifications: notificationService,
		Broadcast:     services.NewBroadcastService(userRepo, pushService, notificationService, logger),
		Users:         userService,
		Admins:        services.NewAdminService(adminRepo, authService, logger),
		Products:      services.NewProductService(productRepo),
		Hub:           hub,
	}

	security := middleware.DefaultSecurityConfig()
	security.RateLimitRequests = cfg.RateLimitRequests
	security.RateLimitBurst = cfg.RateLimitBurst

	router := api.NewRouter(api.RouterConfig{
		AllowedOrigins: cfg.AllowedOrigins(),
		Debug:          cfg.DebugErrors(),
		SecureCookies:  cfg.IsProduction(),
		Security:       security,
	}, svc, middleware.NewAuthMiddleware(authService, userRepo, adminRepo, logger), monitor, logger)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
		TLSConfig: &tls.Config{
			MinVersion: tls.VersionTLS13,
		},
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		var err error
		if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
			logger.WithField("port", cfg.Port).Info("Starting storefront API with TLS")
			err = server.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			logger.WithField("port", cfg.Port).Info("Starting storefront API")
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server shutdown complete")
}
