package handler

import (
	"net/http"

	"marketplace_backend/internal/messaging/service"
	"marketplace_backend/internal/messaging/transport"
	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/httpkit"
	"marketplace_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for messaging
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new messaging handler
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterJobRoutes mounts the message routes nested under a job.
func (h *Handler) RegisterJobRoutes(rg *gin.RouterGroup) {
	rg.GET("/:id/messages", h.ListForJob)
	rg.POST("/:id/messages", h.Send)
	rg.POST("/:id/messages/read-all", h.MarkAllRead)
	rg.POST("/:id/attachments/presign", h.PresignAttachment)
}

// RegisterMessageRoutes mounts per-message routes.
func (h *Handler) RegisterMessageRoutes(rg *gin.RouterGroup) {
	rg.GET("/unread", h.UnreadCount)
	rg.POST("/:id/delivered", h.MarkDelivered)
	rg.POST("/:id/read", h.MarkRead)
}

// RegisterConversationRoutes mounts the conversation overview.
func (h *Handler) RegisterConversationRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.Conversations)
}

// RegisterAdminRoutes mounts the system announcement route.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/:id/messages", h.SendSystem)
}

func (h *Handler) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.HandleError(c, apperr.ValidationField(validator.FirstField(err), msgValidationFailed))
		return false
	}
	return true
}

func (h *Handler) ListForJob(c *gin.Context) {
	msgs, err := h.svc.ListForJob(c.Request.Context(), httpkit.GetActor(c), c.Param("id"))
	if httpkit.HandleError(c, err) {
		return
	}

	items := make([]transport.MessageResponse, 0, len(msgs))
	for i := range msgs {
		items = append(items, transport.ToMessageResponse(&msgs[i]))
	}
	httpkit.OK(c, transport.MessageListResponse{Items: items, Total: len(items)})
}

func (h *Handler) Send(c *gin.Context) {
	var req transport.SendMessageRequest
	if !h.bind(c, &req) {
		return
	}

	msg, err := h.svc.Send(c.Request.Context(), httpkit.GetActor(c), c.Param("id"), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.Created(c, transport.ToMessageResponse(msg))
}

func (h *Handler) SendSystem(c *gin.Context) {
	var req transport.SystemMessageRequest
	if !h.bind(c, &req) {
		return
	}

	msg, err := h.svc.SendSystem(c.Request.Context(), httpkit.GetActor(c), c.Param("id"), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.Created(c, transport.ToMessageResponse(msg))
}

func (h *Handler) MarkAllRead(c *gin.Context) {
	updated, err := h.svc.MarkAllRead(c.Request.Context(), httpkit.GetActor(c), c.Param("id"))
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.MarkAllReadResponse{Updated: updated})
}

func (h *Handler) PresignAttachment(c *gin.Context) {
	var req transport.PresignAttachmentRequest
	if !h.bind(c, &req) {
		return
	}

	presigned, err := h.svc.PresignAttachment(c.Request.Context(), httpkit.GetActor(c), c.Param("id"), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, presigned)
}

func (h *Handler) MarkDelivered(c *gin.Context) {
	msg, err := h.svc.MarkDelivered(c.Request.Context(), httpkit.GetActor(c), c.Param("id"))
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToMessageResponse(msg))
}

func (h *Handler) MarkRead(c *gin.Context) {
	msg, err := h.svc.MarkRead(c.Request.Context(), httpkit.GetActor(c), c.Param("id"))
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToMessageResponse(msg))
}

func (h *Handler) UnreadCount(c *gin.Context) {
	count, err := h.svc.UnreadCount(c.Request.Context(), httpkit.GetActor(c))
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.UnreadCountResponse{Count: count})
}

func (h *Handler) Conversations(c *gin.Context) {
	items, err := h.svc.Conversations(c.Request.Context(), httpkit.GetActor(c))
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ConversationListResponse{Items: items, Total: len(items)})
}
