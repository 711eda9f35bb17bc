// Package handler provides the HTTP handlers for auth, document and
// annotation operations.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pdf-annotator/backend/internal/auth"
	"github.com/pdf-annotator/backend/internal/config"
	"github.com/pdf-annotator/backend/internal/models"
	"github.com/pdf-annotator/backend/internal/pdfinfo"
	"github.com/pdf-annotator/backend/internal/session"
	"github.com/pdf-annotator/backend/internal/storage"
)

// Handler provides HTTP handlers for the service.
type Handler struct {
	repo   storage.Repository
	sync   *session.Synchronizer
	auth   *auth.Service
	pages  pdfinfo.PageCounter
	cfg    *config.Config
	logger *zap.Logger
}

// NewHandler creates a new handler.
func NewHandler(repo storage.Repository, sync *session.Synchronizer, authsvc *auth.Service, pages pdfinfo.PageCounter, cfg *config.Config, logger *zap.Logger) *Handler {
	return &Handler{
		repo:   repo,
		sync:   sync,
		auth:   authsvc,
		pages:  pages,
		cfg:    cfg,
		logger: logger,
	}
}

// RegisterRoutes registers the handler routes on the given router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	authRoutes := rg.Group("/auth")
	authRoutes.POST("/register", h.Register)
	authRoutes.POST("/login", h.Login)
	authRoutes.GET("/me", h.auth.Middleware(h.logger), h.Me)

	docs := rg.Group("/documents", h.auth.Middleware(h.logger))
	docs.POST("/upload", h.Upload)
	docs.GET("", h.List)
	docs.GET("/:id", h.GetFile)
	docs.GET("/:id/annotations", h.GetAnnotations)
	docs.PUT("/:id/annotations", h.ReplaceAnnotations)
	docs.DELETE("/:id", h.Delete)
}

// identity pulls the verified caller identity or aborts with 401.
func (h *Handler) identity(c *gin.Context) (auth.Identity, bool) {
	ident, ok := auth.IdentityFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
			Error:   "unauthorized",
			Message: "missing identity",
		})
	}
	return ident, ok
}

// fail translates a domain error into an HTTP response. Ownership misses
// surface as 404 so nothing leaks about other users' documents.
func (h *Handler) fail(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: "document not found",
		})
	case errors.Is(err, models.ErrValidation):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
	case errors.Is(err, models.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error:   "unauthorized",
			Message: "authentication failed",
		})
	case errors.Is(err, models.ErrTransport):
		h.logger.Error("Storage unavailable", zap.String("op", op), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Error:   "service_unavailable",
			Message: "storage temporarily unavailable",
		})
	default:
		h.logger.Error("Operation failed", zap.String("op", op), zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "internal_error",
			Message: "operation failed",
		})
	}
}
