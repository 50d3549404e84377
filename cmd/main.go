package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/padelhub/match-system/cache"
	"github.com/padelhub/match-system/config"
	"github.com/padelhub/match-system/db"
	"github.com/padelhub/match-system/handlers"
	"github.com/padelhub/match-system/live"
	"github.com/padelhub/match-system/repositories"
	api "github.com/padelhub/match-system/routes"
	"github.com/padelhub/match-system/services"
	"github.com/padelhub/match-system/storage"
	"github.com/padelhub/match-system/workers"
)

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	// Redis держит кэш таблицы лидеров; без него сервис работает через SQL.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Warn("redis unavailable, leaderboard served from database", slog.Any("error", err))
	} else {
		logger.Info("redis connection established", slog.String("addr", cfg.RedisAddr))
	}

	// Инициализация загрузчика файлов (Cloudflare R2)
	var uploader storage.FileUploader
	if cfg.R2AccountID != "" {
		uploader, err = storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		logger.Warn("R2 not configured, media uploads disabled")
	}

	// Инициализация WebSocket Hub
	wsHub := live.NewHub()
	go wsHub.Run()
	logger.Info("WebSocket hub started")

	// Инициализация репозиториев
	userRepo := repositories.NewPostgresUserRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	medalRepo := repositories.NewPostgresMedalRepository(dbConn)
	statsRepo := repositories.NewPostgresStatsRepository(dbConn)
	notificationRepo := repositories.NewPostgresNotificationRepository(dbConn)
	logger.Info("repositories initialized")

	// Инициализация сервисов
	clock := services.NewRealClock()
	leaderboard := cache.NewLeaderboard(redisClient)

	notificationService := services.NewNotificationService(notificationRepo, wsHub, logger)
	lifecycleService := services.NewLifecycleService(matchRepo, notificationService, clock, logger)
	medalService := services.NewMedalService(medalRepo, uploader, clock, logger)
	statsService := services.NewStatsService(statsRepo, userRepo, leaderboard, logger)
	matchService := services.NewMatchService(matchRepo, userRepo, lifecycleService, notificationService, uploader, clock, logger)
	resultService := services.NewResultService(matchRepo, medalService, statsService, lifecycleService, notificationService, clock, logger)
	authService := services.NewAuthService(userRepo)
	userService := services.NewUserService(userRepo, uploader)
	logger.Info("services initialized")

	// Каталог медалей статический, синхронизируем его на старте.
	if err := medalService.SyncCatalog(context.Background()); err != nil {
		logger.Error("failed to sync medal catalog", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("medal catalog synced")

	// Фоновая отмена недобранных матчей
	cancellationWorker := workers.NewCancellationWorker(lifecycleService, logger)
	if err := cancellationWorker.Start(context.Background()); err != nil {
		logger.Error("failed to start cancellation worker", slog.Any("error", err))
		os.Exit(1)
	}
	defer cancellationWorker.Stop()

	// Инициализация обработчиков HTTP
	authHandler := handlers.NewAuthHandler(authService, cfg.JWTSecretKey)
	userHandler := handlers.NewUserHandler(userService)
	matchHandler := handlers.NewMatchHandler(matchService, resultService)
	medalHandler := handlers.NewMedalHandler(medalService)
	statsHandler := handlers.NewStatsHandler(statsService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub)
	logger.Info("HTTP handlers initialized")

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		[]byte(cfg.JWTSecretKey),
		authHandler,
		userHandler,
		matchHandler,
		medalHandler,
		statsHandler,
		notificationHandler,
		webSocketHandler,
	)
	logger.Info("routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}
