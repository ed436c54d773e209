package handler

import (
	"net/http"

	"marketplace_backend/internal/guest/cookie"
	"marketplace_backend/internal/jobs/domain"
	"marketplace_backend/internal/jobs/service"
	"marketplace_backend/internal/jobs/transport"
	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/httpkit"
	"marketplace_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for jobs
type Handler struct {
	svc *service.Service
	val *validator.Validator
	jar *cookie.Jar
}

// New creates a new jobs handler
func New(svc *service.Service, val *validator.Validator, jar *cookie.Jar) *Handler {
	return &Handler{svc: svc, val: val, jar: jar}
}

// RegisterPublicRoutes mounts draft routes open to guests. createLimit guards creation.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup, createLimit gin.HandlerFunc) {
	rg.POST("", createLimit, h.CreateDraft)
	rg.GET("/:id", h.Get)
	rg.PATCH("/:id", h.PatchDraft)
	rg.POST("/:id/submit", h.Submit)
	rg.POST("/:id/photos/presign", h.PresignPhoto)
}

// RegisterRoutes mounts the authenticated job routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.PATCH("/:id", h.Update)
	rg.POST("/:id/status", h.Transition)
	rg.DELETE("/:id", h.Delete)
}

func (h *Handler) principal(c *gin.Context) (domain.Principal, bool) {
	p, err := h.svc.PrincipalFor(c.Request.Context(), httpkit.GetActor(c), h.jar.Read(c))
	if httpkit.HandleError(c, err) {
		return domain.Principal{}, false
	}
	return p, true
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

func (h *Handler) CreateDraft(c *gin.Context) {
	var req transport.CreateJobRequest
	if !h.bind(c, &req) {
		return
	}

	result, err := h.svc.CreateDraft(c.Request.Context(), httpkit.GetActor(c), h.jar.Read(c), req)
	if httpkit.HandleError(c, err) {
		return
	}
	if result.IssuedToken != "" {
		h.jar.Set(c, result.IssuedToken)
	}

	httpkit.Created(c, transport.ToJobResponse(result.Job))
}

func (h *Handler) PatchDraft(c *gin.Context) {
	var req transport.PatchDraftRequest
	if !h.bind(c, &req) {
		return
	}
	p, ok := h.principal(c)
	if !ok {
		return
	}

	job, err := h.svc.PatchDraft(c.Request.Context(), p, c.Param("id"), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToJobResponse(job))
}

func (h *Handler) Submit(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}

	job, err := h.svc.Submit(c.Request.Context(), p, c.Param("id"))
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToJobResponse(job))
}

func (h *Handler) PresignPhoto(c *gin.Context) {
	var req transport.PresignPhotoRequest
	if !h.bind(c, &req) {
		return
	}
	p, ok := h.principal(c)
	if !ok {
		return
	}

	upload, err := h.svc.PresignPhoto(c.Request.Context(), p, c.Param("id"), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, upload)
}

func (h *Handler) Get(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}

	job, err := h.svc.Get(c.Request.Context(), p, c.Param("id"))
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToJobResponse(job))
}

func (h *Handler) List(c *gin.Context) {
	var req transport.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.HandleError(c, apperr.ValidationField(validator.FirstField(err), msgValidationFailed))
		return
	}

	result, err := h.svc.List(c.Request.Context(), domain.Principal{Actor: httpkit.GetActor(c)}, req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

func (h *Handler) Update(c *gin.Context) {
	var req transport.UpdateJobRequest
	if !h.bind(c, &req) {
		return
	}
	p, ok := h.principal(c)
	if !ok {
		return
	}

	job, err := h.svc.Update(c.Request.Context(), p, c.Param("id"), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToJobResponse(job))
}

func (h *Handler) Transition(c *gin.Context) {
	var req transport.TransitionRequest
	if !h.bind(c, &req) {
		return
	}
	p, ok := h.principal(c)
	if !ok {
		return
	}

	job, err := h.svc.Transition(c.Request.Context(), p, c.Param("id"), req.Status, req.Reason)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToJobResponse(job))
}

func (h *Handler) Delete(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), p, c.Param("id")); httpkit.HandleError(c, err) {
		return
	}

	c.Status(http.StatusNoContent)
}
