// Package quotes provides the quote coordination module.
package quotes

import (
	"context"

	"marketplace_backend/internal/docstore"
	"marketplace_backend/internal/events"
	apphttp "marketplace_backend/internal/http"
	"marketplace_backend/internal/quotes/handler"
	"marketplace_backend/internal/quotes/repository"
	"marketplace_backend/internal/quotes/service"
	"marketplace_backend/platform/config"
	"marketplace_backend/platform/logger"
	"marketplace_backend/platform/validator"
)

// Module represents the quotes domain module
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates a new quotes module with all dependencies wired
func NewModule(store docstore.Store, eventBus events.Bus, val *validator.Validator, jobs service.JobLedger, cfg config.MarketplaceConfig, log *logger.Logger) *Module {
	repo := repository.New(store)
	svc := service.New(repo, jobs, cfg, log)
	svc.SetEventBus(eventBus)

	m := &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
	m.RegisterHandlers(eventBus)
	return m
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "quotes"
}

// Service returns the service layer for external use
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes registers the module's routes
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterJobRoutes(ctx.Protected.Group("/jobs"))
	m.handler.RegisterRoutes(ctx.Protected.Group("/quotes"))
}

// RegisterHandlers subscribes to the job events quotes react to.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.JobCancelled{}.EventName(), m)
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.JobCancelled:
		return m.service.RejectPendingForJob(ctx, e.JobID)
	default:
		return nil
	}
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
