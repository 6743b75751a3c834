// Package handlers implements the HTTP endpoints of the swipe API.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/amaumene/moviematch/internal/config"
	apperrors "github.com/amaumene/moviematch/internal/errors"
	"github.com/amaumene/moviematch/internal/services"
	"github.com/amaumene/moviematch/internal/stream"
	"github.com/amaumene/moviematch/pkg/logger"
)

// Handler handles HTTP requests for the swipe API.
type Handler struct {
	services *services.Container
	config   *config.Config
	logger   logger.Logger
}

// New creates a new Handler with the provided services and configuration.
func New(services *services.Container, config *config.Config) *Handler {
	log := services.Logger
	if log == nil {
		log = logger.New()
	}
	return &Handler{
		services: services,
		config:   config,
		logger:   log,
	}
}

// RegisterRoutes registers all HTTP routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.handleHealth)

	api := r.Group("/api")

	// Catalog proxy, compatible with the original front-end
	api.GET("/discover/top-rated", h.handleTopRated)
	api.GET("/discover/anime", h.handleAnime)

	api.POST("/sessions", h.handleCreateSession)
	api.GET("/sessions/:id", h.handleGetSession)
	api.POST("/sessions/:id/advance", h.handleAdvance)
	api.POST("/sessions/:id/swipe", h.handleSwipe)
	api.POST("/sessions/:id/reset", h.handleReset)
	api.DELETE("/sessions/:id", h.handleDeleteSession)

	api.GET("/images", h.handleImage)
}

func (h *Handler) handleHealth(c *gin.Context) {
	sessions := 0
	if h.services.Sessions != nil {
		sessions = h.services.Sessions.Len()
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": sessions})
}

// respondError maps domain errors onto HTTP statuses.
func (h *Handler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	var ce *apperrors.CatalogError
	switch {
	case errors.As(err, &ce):
		switch ce.Type {
		case apperrors.ErrorTypeSessionNotFound:
			status = http.StatusNotFound
		case apperrors.ErrorTypeInvalidPage:
			status = http.StatusBadRequest
		case apperrors.ErrorTypeEmptyBatch:
			status = http.StatusServiceUnavailable
		case apperrors.ErrorTypeTimeout:
			status = http.StatusGatewayTimeout
		case apperrors.ErrorTypeRateLimited:
			status = http.StatusTooManyRequests
		}
	case errors.Is(err, stream.ErrInvalidAction):
		status = http.StatusBadRequest
	case errors.Is(err, stream.ErrNotReady), errors.Is(err, stream.ErrSessionBusy), errors.Is(err, stream.ErrSessionReset):
		status = http.StatusConflict
	case errors.Is(err, stream.ErrSessionClosed):
		status = http.StatusGone
	}

	if status >= http.StatusInternalServerError {
		h.logger.Errorf("[API] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
