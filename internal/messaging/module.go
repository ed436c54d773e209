// Package messaging provides the job-scoped messaging module.
package messaging

import (
	"context"

	"marketplace_backend/internal/docstore"
	"marketplace_backend/internal/events"
	apphttp "marketplace_backend/internal/http"
	"marketplace_backend/internal/messaging/handler"
	"marketplace_backend/internal/messaging/repository"
	"marketplace_backend/internal/messaging/service"
	"marketplace_backend/platform/logger"
	"marketplace_backend/platform/validator"
)

// Module represents the messaging domain module
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates a new messaging module with all dependencies wired
func NewModule(store docstore.Store, eventBus events.Bus, val *validator.Validator, jobs service.JobReader, quotes service.QuoteHistory, log *logger.Logger) *Module {
	repo := repository.New(store)
	svc := service.New(repo, jobs, quotes, log)
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
	return "messaging"
}

// Service returns the service layer for external use
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes registers the module's routes
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterJobRoutes(ctx.Protected.Group("/jobs"))
	m.handler.RegisterMessageRoutes(ctx.Protected.Group("/messages"))
	m.handler.RegisterConversationRoutes(ctx.Protected.Group("/conversations"))
	m.handler.RegisterAdminRoutes(ctx.Admin.Group("/jobs"))
}

// RegisterHandlers subscribes to the events that post system messages.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.QuoteAccepted{}.EventName(), m)
	bus.Subscribe(events.JobCancelled{}.EventName(), m)
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.QuoteAccepted:
		return m.service.AnnounceQuoteAccepted(ctx, e)
	case events.JobCancelled:
		return m.service.AnnounceJobCancelled(ctx, e)
	default:
		return nil
	}
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
