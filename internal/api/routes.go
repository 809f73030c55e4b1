package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/radebe49/objection-dojo/internal/audio"
	"github.com/radebe49/objection-dojo/usecase"
)

// TurnProcessor runs one conversation turn
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, req usecase.TurnRequest) (*usecase.TurnResult, error)
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, turns TurnProcessor, logger *zap.Logger) {
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"message": "Objection Dojo API",
			"status":  "healthy",
		})
	})

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})

	e.POST("/chat", func(c echo.Context) error {
		return chat(c, turns, logger)
	})
}

// chat processes one utterance and returns the persona reply with audio
func chat(c echo.Context, turns TurnProcessor, logger *zap.Logger) error {
	var req ChatRequest

	if err := c.Bind(&req); err != nil {
		logger.Error("Failed to bind chat request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	if req.SessionID == "" || strings.TrimSpace(req.UserText) == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Session ID and user text are required",
		})
	}

	if req.CurrentPatience < 0 || req.CurrentPatience > 100 {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_patience",
			Message: "Current patience must be between 0 and 100",
		})
	}

	result, err := turns.ProcessTurn(c.Request().Context(), usecase.TurnRequest{
		SessionID:       req.SessionID,
		UserText:        req.UserText,
		CurrentPatience: req.CurrentPatience,
	})
	if err != nil {
		logger.Error("Turn processing failed",
			zap.String("sessionID", req.SessionID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "turn_failed",
			Message: err.Error(),
		})
	}

	return c.JSON(http.StatusOK, ChatResponse{
		AIText:        result.AIText,
		PatienceScore: result.PatienceScore,
		DealClosed:    result.DealClosed,
		AudioBase64:   audio.Encode(result.Audio),
	})
}
