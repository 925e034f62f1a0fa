package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dialogue-server/internal/ai"
	"dialogue-server/internal/config"
	"dialogue-server/internal/handler"
	"dialogue-server/internal/middleware"
	"dialogue-server/internal/prompt"
	"dialogue-server/internal/service"
	"dialogue-server/internal/storage"
	"dialogue-server/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"
)

func main() {
	// .env опционален, в проде переменные приходят из окружения
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:    cfg.LogLevel,
		Encoding: cfg.LogEncoding,
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	zap.ReplaceGlobals(log)
	zap.L().Info("Logger initialized", zap.String("logLevel", cfg.LogLevel))

	// --- Dependency Injection ---
	aiClient, err := ai.NewClient(cfg)
	if err != nil {
		zap.L().Fatal("Failed to create AI client", zap.Error(err))
	}

	profile, known := prompt.ByName(cfg.EmotionProfile)
	if !known {
		zap.L().Warn("Неизвестный профиль эмоций, используется профиль по умолчанию",
			zap.String("requested", cfg.EmotionProfile),
			zap.String("used", profile.Name),
		)
	}

	generator := service.NewGenerator(aiClient, profile, cfg, log.Named("Generator"))
	store := storage.NewFileStore(cfg.OutputDir, log.Named("FileStore"))

	var uploader storage.Uploader
	if cfg.S3Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		s3Uploader, err := storage.NewS3Uploader(ctx, cfg, log.Named("S3Uploader"))
		cancel()
		if err != nil {
			zap.L().Fatal("Failed to create S3 uploader", zap.Error(err))
		}
		uploader = s3Uploader
		zap.L().Info("S3 uploader initialized", zap.String("bucket", cfg.S3Bucket))
	}

	apiHandler := handler.New(generator, store, uploader, log.Named("Handler"))

	// --- HTTP Server Setup (Gin) ---
	gin.SetMode(gin.ReleaseMode)
	if cfg.Env == "development" {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.RedirectTrailingSlash = true
	router.Use(middleware.GinZapLogger(log))
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.GetAllowedOrigins()
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type"}
	corsConfig.AllowCredentials = true
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	router.GET("/health", healthHandler)
	router.HEAD("/health", healthHandler)

	apiHandler.RegisterRoutes(router)

	p := ginprometheus.NewPrometheus("gin")
	p.Use(router)

	srv := &http.Server{
		Addr:        ":" + cfg.ServerPort,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// WriteTimeout не задан: NDJSON-поток генерации живет дольше
		// любого разумного фиксированного лимита
		IdleTimeout: 60 * time.Second,
	}

	zap.L().Info("Starting HTTP server", zap.String("port", cfg.ServerPort))

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zap.L().Fatal("HTTP Server listen error", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zap.L().Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("HTTP Server forced to shutdown", zap.Error(err))
	}

	zap.L().Info("Server exiting")
}
