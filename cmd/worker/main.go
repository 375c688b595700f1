package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"staging-server/internal/config"
	"staging-server/internal/logger"
	"staging-server/internal/messaging"
	"staging-server/internal/provider"
	"staging-server/internal/storage"
	"staging-server/internal/worker"
)

func main() {
	// --- 1. Загрузка конфигурации ---
	cfg := config.Load()

	// --- 2. Инициализация логгера ---
	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Sync()
	appLogger.Info("Logger initialized", zap.String("level", cfg.Logger.Level))
	appLogger.Info("Starting Image Editor Worker...", zap.String("env", cfg.AppEnv))

	// --- 3. Инициализация клиента провайдера и хранилища ---
	providerClient, err := provider.NewHTTPClient(
		cfg.Provider.BaseURL,
		cfg.Provider.APIKey,
		cfg.Provider.InferenceSteps,
		time.Duration(cfg.Provider.Timeout)*time.Second,
		appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize provider client", zap.Error(err))
	}

	store, err := storage.NewLocalStore(cfg.Storage.SavePath, cfg.Storage.PublicBaseURL, cfg.Storage.ThumbnailSize, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize image store", zap.Error(err))
	}
	appLogger.Info("Provider client and image store initialized")

	// --- 4. Подключение к RabbitMQ ---
	mqCtx, mqCancel := context.WithCancel(context.Background())
	defer mqCancel()

	conn, err := messaging.Connect(mqCtx, appLogger, cfg.RabbitMQ.URL)
	if err != nil {
		appLogger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer conn.Close()

	resultPublisher, err := messaging.NewRabbitMQPublisher(
		conn, "", cfg.RabbitMQ.ResultQueue.Name, cfg.RabbitMQ.ResultQueue.Name, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to create result publisher", zap.Error(err))
	}
	defer resultPublisher.Close()

	// --- 5. Инициализация обработчика сообщений ---
	messageHandler := worker.NewHandler(appLogger, providerClient, store, resultPublisher, cfg.PushGatewayURL)
	appLogger.Info("Message handler initialized")

	// --- 6. Запуск Consumer'а ---
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		messaging.Consume(mqCtx, appLogger, conn, cfg.RabbitMQ.TaskQueue, cfg.RabbitMQ.ConsumerName, messageHandler.HandleDelivery)
		appLogger.Info("RabbitMQ consumer exited")
	}()

	appLogger.Info("Image Editor Worker started successfully")

	// --- 7. Ожидание сигнала завершения ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down Image Editor Worker...")

	// --- 8. Graceful Shutdown ---
	mqCancel()

	appLogger.Info("Waiting for background tasks to finish...")
	wg.Wait()

	appLogger.Info("Image Editor Worker shut down gracefully")
}
