// Package vehicle provides the vehicle registry lookup used to prefill
// automotive jobs.
package vehicle

import (
	"context"

	apphttp "marketplace_backend/internal/http"
	jobdomain "marketplace_backend/internal/jobs/domain"
	"marketplace_backend/internal/ratelimit"
	"marketplace_backend/internal/vehicle/client"
	"marketplace_backend/internal/vehicle/handler"
	"marketplace_backend/internal/vehicle/service"
	"marketplace_backend/platform/config"
	"marketplace_backend/platform/logger"
)

// Module is the vehicle registry module.
type Module struct {
	service    *service.Service
	handler    *handler.Handler
	limiter    ratelimit.Limiter
	cookieName string
	log        *logger.Logger
}

// NewModule creates the vehicle module. It returns nil when no registry is
// configured; a nil module registers nothing.
func NewModule(cfg config.VehicleConfig, limiter ratelimit.Limiter, guestCookieName string, log *logger.Logger) *Module {
	if !cfg.IsVehicleLookupEnabled() {
		log.Info("vehicle module disabled: VEHICLE_API_URL not configured")
		return nil
	}

	svc := service.New(client.New(cfg.GetVehicleAPIURL(), cfg.GetVehicleAPIKey(), log), log)
	log.Info("vehicle module initialized")

	return &Module{
		service:    svc,
		handler:    handler.New(svc),
		limiter:    limiter,
		cookieName: guestCookieName,
		log:        log,
	}
}

func (m *Module) Name() string { return "vehicle" }

// Service returns the vehicle service, or nil when disabled.
func (m *Module) Service() *service.Service {
	if m == nil {
		return nil
	}
	return m.service
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	if m == nil {
		return
	}
	limit := ratelimit.Middleware(m.limiter, ratelimit.CookieOrIP(m.cookieName), m.log)
	m.handler.RegisterPublicRoutes(ctx.Public.Group("/vehicles"), limit)
}

// JobPrefill adapts the vehicle service to the job draft prefill.
type JobPrefill struct {
	svc *service.Service
}

// NewJobPrefill returns nil when svc is nil.
func NewJobPrefill(svc *service.Service) *JobPrefill {
	if svc == nil {
		return nil
	}
	return &JobPrefill{svc: svc}
}

func (p *JobPrefill) Lookup(ctx context.Context, plate string) (*jobdomain.Vehicle, error) {
	if p == nil {
		return nil, nil
	}
	found, err := p.svc.Lookup(ctx, plate)
	if err != nil || found == nil {
		return nil, err
	}
	return &jobdomain.Vehicle{
		LicensePlate: found.LicensePlate,
		Make:         found.Make,
		Model:        found.Model,
		Year:         found.Year,
	}, nil
}

var _ apphttp.Module = (*Module)(nil)
