package handler

import (
	"strconv"
	"strings"

	"marketplace_backend/internal/notification/inapp"
	"marketplace_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

type HTTPHandler struct {
	svc *inapp.Service
}

func NewHTTPHandler(svc *inapp.Service) *HTTPHandler {
	return &HTTPHandler{svc: svc}
}

func (h *HTTPHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/unread", h.CountUnread)
	rg.GET("/unread-by-type", h.CountUnreadByType)
	rg.GET("/stats", h.Stats)
	rg.PATCH("/:id/read", h.MarkRead)
	rg.PATCH("/read-all", h.MarkAllRead)
	rg.DELETE("/:id", h.Delete)
}

func (h *HTTPHandler) List(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	items, total, err := h.svc.List(c.Request.Context(), actor.ID, page, limit)
	if httpkit.HandleError(c, err) {
		return
	}

	if page < 1 {
		page = 1
	}
	httpkit.OK(c, gin.H{
		"items": items,
		"total": total,
		"page":  page,
	})
}

func (h *HTTPHandler) CountUnread(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}

	count, err := h.svc.CountUnread(c.Request.Context(), actor.ID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"count": count})
}

func (h *HTTPHandler) CountUnreadByType(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}

	typesParam := strings.TrimSpace(c.Query("types"))
	types := make([]string, 0)
	if typesParam != "" {
		types = strings.Split(typesParam, ",")
	}

	count, err := h.svc.CountUnreadByTypes(c.Request.Context(), actor.ID, types)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"count": count})
}

func (h *HTTPHandler) Stats(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}

	stats, err := h.svc.Stats(c.Request.Context(), actor.ID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, stats)
}

func (h *HTTPHandler) MarkRead(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}

	if err := h.svc.MarkRead(c.Request.Context(), actor.ID, c.Param("id")); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"status": "ok"})
}

func (h *HTTPHandler) MarkAllRead(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}

	updated, err := h.svc.MarkAllRead(c.Request.Context(), actor.ID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"status": "ok", "updated": updated})
}

func (h *HTTPHandler) Delete(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), actor.ID, c.Param("id")); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"status": "ok"})
}
