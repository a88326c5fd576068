package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sbguangha/tianyishenshu/internal/config"
	"github.com/sbguangha/tianyishenshu/internal/db/migrate"
	"github.com/sbguangha/tianyishenshu/internal/handler"
	"github.com/sbguangha/tianyishenshu/internal/middleware"
	"github.com/sbguangha/tianyishenshu/internal/repository"
	"github.com/sbguangha/tianyishenshu/internal/service"
	"github.com/sbguangha/tianyishenshu/internal/sms"
	"github.com/sbguangha/tianyishenshu/internal/utils"

	"github.com/gin-gonic/gin"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.SuperAdminPhone == "" {
		log.Println("INFO: SUPER_ADMIN_PHONE not set, no identity will be elevated to admin")
	}

	// --- Database Connection ---
	dbPool, err := config.ConnectDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer dbPool.Close()

	// --- Auto Migration ---
	if cfg.AutoMigrate {
		if err := migrate.Run(cfg.DatabaseURL(), "up"); err != nil {
			log.Fatalf("Failed to auto-migrate database: %v", err)
		}
	}

	rdb, err := config.ConnectRedis(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer rdb.Close()

	// --- Initialize Utilities ---
	jwtUtil := utils.NewJWTUtil(utils.JWTConfig{
		Secret:   cfg.JWTSecret,
		Issuer:   cfg.JWTIssuer,
		ShortTTL: cfg.SessionShortTTL,
		LongTTL:  cfg.SessionLongTTL,
	})
	hasher := utils.NewHasher(cfg.BcryptCost)

	// config validation guarantees a gateway in production
	var smsSender sms.Sender = sms.LogSender{}
	if cfg.SMSAPIKey != "" && cfg.SMSBaseURL != "" {
		smsSender = sms.NewHTTPSender(cfg.SMSAPIKey, cfg.SMSBaseURL, cfg.SMSSender)
	}

	// --- Initialize Repositories ---
	userRepo := repository.NewUserRepository(dbPool)
	exchangeCodeRepo := repository.NewExchangeCodeRepository(dbPool)
	smsCodeStore := repository.NewRedisSMSCodeStore(rdb)

	// --- Initialize Services ---
	exchangeCodeService := service.NewExchangeCodeService(exchangeCodeRepo, cfg.StoreTimeout)
	credentialService := service.NewCredentialService(userRepo, smsCodeStore, smsSender, hasher, service.CredentialOptions{
		SuperAdminPhone:     cfg.SuperAdminPhone,
		SMSCodeTTL:          cfg.SMSCodeTTL,
		RequireExchangeCode: cfg.RegistrationRequiresExchangeCode,
		StoreTimeout:        cfg.StoreTimeout,
	})
	authService := service.NewAuthService(credentialService, exchangeCodeService, jwtUtil, cfg.SMSReturnCodeToClient)

	// --- Initialize Handlers ---
	authHandler := handler.NewAuthHandler(authService, exchangeCodeService)
	exchangeCodeHandler := handler.NewExchangeCodeHandler(exchangeCodeService)
	healthHandler := handler.NewHealthHandler(dbPool, handler.PingFunc(func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}))

	// --- Setup Gin Router ---
	router := gin.Default()

	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", cfg.CORSOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	// --- Initialize Middlewares ---
	jwtAuthMW := middleware.JWTAuthMiddleware(jwtUtil)
	adminRoleMW := middleware.AdminMiddleware()

	// --- Register Routes ---
	apiGroup := router.Group("/api/v1")
	healthHandler.RegisterHealthRoutes(apiGroup)
	authHandler.RegisterAuthRoutes(apiGroup, jwtAuthMW)
	exchangeCodeHandler.RegisterExchangeCodeRoutes(apiGroup, jwtAuthMW, adminRoleMW)

	// --- Start Server ---
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
