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

	"github.com/radebe49/objection-dojo/adapters/llm"
	"github.com/radebe49/objection-dojo/adapters/memory"
	"github.com/radebe49/objection-dojo/adapters/tts"
	"github.com/radebe49/objection-dojo/internal/api"
	"github.com/radebe49/objection-dojo/usecase"
)

func main() {
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

	// Initialize adapters
	responder, err := llm.NewCerebrasClient(llm.NewCerebrasConfigFromEnv(), logger)
	if err != nil {
		logger.Fatal("Failed to initialize Cerebras client", zap.Error(err))
	}

	synthesizer, err := tts.NewElevenLabsTTS(tts.NewElevenLabsConfigFromEnv(), logger)
	if err != nil {
		logger.Fatal("Failed to initialize Eleven Labs client", zap.Error(err))
	}

	// Memory backend is resolved once here, never per request
	conversationMemory := memory.NewFromEnv(logger)

	// Initialize turn orchestration
	turnService := usecase.NewTurnService(responder, synthesizer, conversationMemory, logger)

	// Initialize API routes
	api.InitRoutes(e, turnService, logger)

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

	logger.Info("Server exited")
}
