package handler

import (
	"net/http"

	jobdomain "marketplace_backend/internal/jobs/domain"
	"marketplace_backend/internal/quotes/service"
	"marketplace_backend/internal/quotes/transport"
	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/httpkit"
	"marketplace_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for quotes
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new quotes handler
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterJobRoutes mounts the quote routes nested under a job.
func (h *Handler) RegisterJobRoutes(rg *gin.RouterGroup) {
	rg.GET("/:id/quotes", h.ListForJob)
	rg.POST("/:id/quotes", h.Submit)
	rg.POST("/:id/quotes/:quoteId/accept", h.Accept)
	rg.POST("/:id/quotes/:quoteId/reject", h.Reject)
}

// RegisterRoutes mounts the professional's own quote routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/mine", h.ListMine)
	rg.PATCH("/:id", h.Update)
	rg.POST("/:id/withdraw", h.Withdraw)
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

func principal(c *gin.Context) jobdomain.Principal {
	return jobdomain.Principal{Actor: httpkit.GetActor(c)}
}

func (h *Handler) ListForJob(c *gin.Context) {
	quotes, err := h.svc.ListForJob(c.Request.Context(), principal(c), c.Param("id"))
	if httpkit.HandleError(c, err) {
		return
	}

	items := make([]transport.QuoteResponse, 0, len(quotes))
	for i := range quotes {
		items = append(items, service.ToQuoteResponse(&quotes[i]))
	}
	httpkit.OK(c, transport.QuoteListResponse{
		Items:      items,
		Total:      len(items),
		Page:       1,
		PageSize:   len(items),
		TotalPages: 1,
	})
}

func (h *Handler) Submit(c *gin.Context) {
	var req transport.SubmitQuoteRequest
	if !h.bind(c, &req) {
		return
	}

	quote, err := h.svc.SubmitQuote(c.Request.Context(), httpkit.GetActor(c), c.Param("id"), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.Created(c, service.ToQuoteResponse(quote))
}

func (h *Handler) Accept(c *gin.Context) {
	quote, err := h.svc.AcceptQuote(c.Request.Context(), principal(c), c.Param("id"), c.Param("quoteId"))
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, service.ToQuoteResponse(quote))
}

func (h *Handler) Reject(c *gin.Context) {
	var req transport.RejectQuoteRequest
	if c.Request.ContentLength > 0 && !h.bind(c, &req) {
		return
	}

	quote, err := h.svc.RejectQuote(c.Request.Context(), principal(c), c.Param("id"), c.Param("quoteId"), req.Reason)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, service.ToQuoteResponse(quote))
}

func (h *Handler) ListMine(c *gin.Context) {
	var req transport.ListMyQuotesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.HandleError(c, apperr.ValidationField(validator.FirstField(err), msgValidationFailed))
		return
	}

	result, err := h.svc.ListMine(c.Request.Context(), httpkit.GetActor(c), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

func (h *Handler) Update(c *gin.Context) {
	var req transport.UpdateQuoteRequest
	if !h.bind(c, &req) {
		return
	}

	quote, err := h.svc.UpdateQuote(c.Request.Context(), httpkit.GetActor(c), c.Param("id"), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, service.ToQuoteResponse(quote))
}

func (h *Handler) Withdraw(c *gin.Context) {
	quote, err := h.svc.WithdrawQuote(c.Request.Context(), httpkit.GetActor(c), c.Param("id"))
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, service.ToQuoteResponse(quote))
}
