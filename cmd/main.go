package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/widyatma/wicara/adapters/llm"
	"github.com/widyatma/wicara/adapters/mongo"
	"github.com/widyatma/wicara/adapters/stt"
	"github.com/widyatma/wicara/adapters/tts"
	"github.com/widyatma/wicara/internal/api"
	"github.com/widyatma/wicara/internal/keystore"
	"github.com/widyatma/wicara/usecase"
)

func main() {
	// Load .env if present; real deployments set the environment directly
	godotenv.Load()

	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Initialize storage
	mongoClient, err := mongo.NewClient(logger)
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	conversationRepo := mongo.NewConversationRepository(mongoClient.Database)
	audioRepo := mongo.NewAudioRepository(mongoClient.Database)
	if err := audioRepo.EnsureIndexes(context.Background()); err != nil {
		logger.Fatal("Failed to create audio indexes", zap.Error(err))
	}

	// Initialize backend adapters
	speechToText := stt.NewFromEnv(logger)
	chatModel, err := llm.NewFromEnv(logger)
	if err != nil {
		logger.Fatal("Failed to initialize chat backend", zap.Error(err))
	}
	textToSpeech, err := tts.NewFromEnv(logger)
	if err != nil {
		logger.Fatal("Failed to initialize speech synthesis backend", zap.Error(err))
	}

	// Initialize usecase services
	chatService := usecase.NewChatService(
		conversationRepo,
		audioRepo,
		speechToText,
		chatModel,
		textToSpeech,
		usecase.NewChatConfigFromEnv(),
		logger,
	)

	// Per-session API key registry
	keys := keystore.NewRegistry()

	// Initialize API routes
	api.InitRoutes(e, api.NewServer(chatService, conversationRepo, audioRepo, textToSpeech, keys, logger))

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("port", port))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	if err := mongoClient.Close(context.Background()); err != nil {
		logger.Error("Failed to close MongoDB connection", zap.Error(err))
	}

	logger.Info("Server exited")
}
