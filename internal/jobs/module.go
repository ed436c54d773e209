// Package jobs provides the job request lifecycle module.
package jobs

import (
	"marketplace_backend/internal/docstore"
	"marketplace_backend/internal/events"
	"marketplace_backend/internal/guest/cookie"
	apphttp "marketplace_backend/internal/http"
	"marketplace_backend/internal/jobs/handler"
	"marketplace_backend/internal/jobs/repository"
	"marketplace_backend/internal/jobs/service"
	"marketplace_backend/internal/ratelimit"
	"marketplace_backend/platform/config"
	"marketplace_backend/platform/logger"
	"marketplace_backend/platform/validator"
)

// Module represents the jobs domain module
type Module struct {
	handler      *handler.Handler
	service      *service.Service
	draftLimiter ratelimit.Limiter
	jar          *cookie.Jar
	log          *logger.Logger
}

// NewModule creates a new jobs module with all dependencies wired.
// draftLimiter throttles public draft creation per guest cookie or IP.
func NewModule(store docstore.Store, eventBus events.Bus, val *validator.Validator, jar *cookie.Jar, draftLimiter ratelimit.Limiter, cfg config.MarketplaceConfig, log *logger.Logger) *Module {
	repo := repository.New(store)
	svc := service.New(repo, cfg, log)
	svc.SetEventBus(eventBus)

	return &Module{
		handler:      handler.New(svc, val, jar),
		service:      svc,
		draftLimiter: draftLimiter,
		jar:          jar,
		log:          log,
	}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "jobs"
}

// Service returns the service layer for external use
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes registers the module's routes
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	createLimit := ratelimit.Middleware(m.draftLimiter, ratelimit.CookieOrIP(m.jar.Name()), m.log)
	m.handler.RegisterPublicRoutes(ctx.Public.Group("/jobs"), createLimit)
	m.handler.RegisterRoutes(ctx.Protected.Group("/jobs"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
