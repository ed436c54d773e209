// Package guest provides the guest identity module: anonymous draft
// attribution and the post-login linking protocol.
package guest

import (
	"marketplace_backend/internal/docstore"
	"marketplace_backend/internal/events"
	"marketplace_backend/internal/guest/cookie"
	"marketplace_backend/internal/guest/handler"
	"marketplace_backend/internal/guest/repository"
	"marketplace_backend/internal/guest/service"
	apphttp "marketplace_backend/internal/http"
	"marketplace_backend/platform/config"
	"marketplace_backend/platform/logger"
)

// Module represents the guest identity module
type Module struct {
	handler *handler.Handler
	service *service.Service
	jar     *cookie.Jar
}

// NewModule creates a new guest module with all dependencies wired
func NewModule(store docstore.Store, eventBus events.Bus, cfg config.GuestConfig, log *logger.Logger) *Module {
	repo := repository.New(store)
	svc := service.New(repo, cfg.GetGuestCookieMaxAge(), log)
	svc.SetEventBus(eventBus)
	jar := cookie.New(cfg)

	return &Module{
		handler: handler.New(svc, jar),
		service: svc,
		jar:     jar,
	}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "guest"
}

// Service returns the service layer for external use
func (m *Module) Service() *service.Service {
	return m.service
}

// Cookies returns the guest cookie jar shared with the jobs module
func (m *Module) Cookies() *cookie.Jar {
	return m.jar
}

// SetJobLinker wires the job lifecycle into the link protocol
func (m *Module) SetJobLinker(jobs service.JobLinker) {
	m.service.SetJobLinker(jobs)
}

// RegisterRoutes registers the module's routes
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/jobs"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
