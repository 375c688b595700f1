package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"

	"staging-server/internal/config"
	"staging-server/internal/database"
	"staging-server/internal/handler"
	"staging-server/internal/logger"
	"staging-server/internal/messaging"
	"staging-server/internal/notifier"
	"staging-server/internal/repository"
	"staging-server/internal/service"
	"staging-server/internal/session"
	"staging-server/internal/storage"
	"staging-server/internal/version"
	"staging-server/migrations"
)

func main() {
	// --- Configuration ---
	cfg := config.Load()

	// --- Logger Setup ---
	log, err := logger.New(cfg.Logger)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	zap.ReplaceGlobals(log)
	zap.L().Info("Logger initialized successfully")
	zap.L().Info("Configuration loaded", zap.String("env", cfg.AppEnv))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- External Connections ---
	db, err := database.New(ctx, cfg.Postgres.URL, log)
	if err != nil {
		zap.L().Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(migrations.FS, cfg.Postgres.MigrationsPath, db.Pool, log)
	if err := migrator.Up(ctx); err != nil {
		zap.L().Fatal("Failed to apply database migrations", zap.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		zap.L().Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	zap.L().Info("Connected to Redis")

	mqConn, err := messaging.Connect(ctx, log, cfg.RabbitMQ.URL)
	if err != nil {
		zap.L().Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer mqConn.Close()

	// --- Dependency Injection ---
	imageRepo := repository.NewPgImageRepository(db.Pool, log)
	jobStore := repository.NewRedisEditJobStore(redisClient, log)
	chainManager := version.NewChainManager(imageRepo, log)

	taskPublisher, err := messaging.NewRabbitMQPublisher(mqConn, "", cfg.RabbitMQ.TaskQueue.Name, cfg.RabbitMQ.TaskQueue.Name, log)
	if err != nil {
		zap.L().Fatal("Failed to create task publisher", zap.Error(err))
	}
	defer taskPublisher.Close()

	store, err := storage.NewLocalStore(cfg.Storage.SavePath, cfg.Storage.PublicBaseURL, cfg.Storage.ThumbnailSize, log)
	if err != nil {
		zap.L().Fatal("Failed to initialize image store", zap.Error(err))
	}

	orchestrator := service.NewEditOrchestrator(
		imageRepo, chainManager, jobStore, taskPublisher, store, cfg.Redis.JobTTL, log)

	sizeLoader := session.NewHTTPSizeLoader(30*time.Second, log)
	sessionManager := session.NewManager(imageRepo, chainManager, orchestrator, sizeLoader, log)

	connManager := notifier.NewConnectionManager(log)
	wsHandler := notifier.NewWebSocketHandler(connManager, log)

	resultHandler := service.NewResultHandler(orchestrator, sessionManager, connManager, log)

	// --- Result Consumer ---
	consumerCtx, consumerCancel := context.WithCancel(ctx)
	defer consumerCancel()
	go messaging.Consume(consumerCtx, log, mqConn, cfg.RabbitMQ.ResultQueue, "edit_result_server", resultHandler.HandleDelivery)

	// --- HTTP Server Setup (Gin) ---
	gin.SetMode(gin.ReleaseMode)
	if cfg.AppEnv == "development" {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.RedirectTrailingSlash = true
	router.Use(handler.ZapLoggingMiddleware(log))
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.HTTP.AllowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-User-ID"}
	corsConfig.AllowCredentials = true
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	editorHandler := handler.NewEditorHandler(sessionManager, chainManager, orchestrator, wsHandler, log)
	editorHandler.RegisterRoutes(router)

	// Prometheus middleware применяем после регистрации роутов
	p := ginprometheus.NewPrometheus("gin")
	p.Use(router)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	zap.L().Info("Starting HTTP server", zap.String("port", cfg.HTTP.Port))

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

	consumerCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("HTTP Server forced to shutdown", zap.Error(err))
	}

	zap.L().Info("Server exiting")
}
