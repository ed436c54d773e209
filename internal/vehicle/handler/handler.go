package handler

import (
	"marketplace_backend/internal/vehicle/service"
	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterPublicRoutes mounts the plate lookup behind the given middleware.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup, limit gin.HandlerFunc) {
	rg.GET("/:plate", limit, h.Lookup)
}

func (h *Handler) Lookup(c *gin.Context) {
	vehicle, err := h.svc.Lookup(c.Request.Context(), c.Param("plate"))
	if httpkit.HandleError(c, err) {
		return
	}
	if vehicle == nil {
		httpkit.HandleError(c, apperr.NotFound("vehicle not found"))
		return
	}
	httpkit.OK(c, vehicle)
}
