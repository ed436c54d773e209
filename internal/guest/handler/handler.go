package handler

import (
	"marketplace_backend/internal/guest/cookie"
	"marketplace_backend/internal/guest/service"
	"marketplace_backend/internal/guest/transport"
	"marketplace_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Handler serves the post-login draft linking endpoints.
type Handler struct {
	svc *service.Service
	jar *cookie.Jar
}

// New creates a guest handler.
func New(svc *service.Service, jar *cookie.Jar) *Handler {
	return &Handler{svc: svc, jar: jar}
}

// RegisterRoutes mounts the link routes on an authenticated /jobs group.
// Professionals never own jobs, so only customers and admins may link.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	link := rg.Group("/link-drafts", httpkit.RequireRole(httpkit.RoleCustomer, httpkit.RoleAdmin))
	link.GET("", h.ListCandidates)
	link.POST("", h.LinkDrafts)
}

// ListCandidates previews the guest jobs matching the account's verified email.
func (h *Handler) ListCandidates(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}

	jobs, err := h.svc.ResolveGuestDraftsByEmail(c.Request.Context(), actor.Email)
	if httpkit.HandleError(c, err) {
		return
	}

	items := make([]transport.LinkCandidate, 0, len(jobs))
	for _, job := range jobs {
		items = append(items, transport.LinkCandidate{
			ID:        job.ID,
			Title:     job.Title,
			Category:  string(job.Category),
			Status:    string(job.Status),
			CreatedAt: job.CreatedAt,
		})
	}
	httpkit.OK(c, transport.LinkCandidatesResponse{Items: items})
}

// LinkDrafts attaches the caller's guest drafts to their account. The email
// comes from the verified identity only, never from the request body.
func (h *Handler) LinkDrafts(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}

	token := h.jar.Read(c)
	result, err := h.svc.LinkDraftsToAccount(c.Request.Context(), service.LinkRequest{
		GuestToken:   token,
		ContactEmail: actor.Email,
	}, actor.ID)
	if httpkit.HandleError(c, err) {
		return
	}
	if token != "" {
		h.jar.Clear(c)
	}

	httpkit.OK(c, transport.LinkDraftsResponse{
		Linked:   result.Linked,
		JobIDs:   result.JobIDs,
		Promoted: result.Promoted,
	})
}
