package router

import (
	"context"
	"net/http"
	"time"

	apphttp "marketplace_backend/internal/http"
	"marketplace_backend/platform/httpkit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const healthTimeout = 2 * time.Second

// New builds the gin engine, mounts shared middleware and lets every module
// register its routes.
func New(app *apphttp.App) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestID())
	engine.Use(httpkit.RequestLogger(app.Logger))
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(cors.New(corsConfig(app.Config)))

	engine.GET("/api/health", func(c *gin.Context) {
		if app.Health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
			defer cancel()
			if err := app.Health.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := engine.Group("/api/v1")
	v1.Use(httpkit.ResolveActor(app.Actors))
	v1.Use(app.Middleware...)

	protected := v1.Group("")
	protected.Use(httpkit.RequireActor())

	admin := v1.Group("/admin")
	admin.Use(httpkit.RequireRole(httpkit.RoleAdmin))

	routerCtx := &apphttp.RouterContext{
		Engine:    engine,
		V1:        v1,
		Public:    v1.Group("/public"),
		Protected: protected,
		Admin:     admin,
		Logger:    app.Logger,
	}

	for _, module := range app.Modules {
		module.RegisterRoutes(routerCtx)
		app.Logger.Info("module registered", "module", module.Name())
	}

	return engine
}

func corsConfig(cfg apphttp.RouterConfig) cors.Config {
	corsCfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: cfg.GetCORSAllowCreds(),
		MaxAge:           12 * time.Hour,
	}
	if cfg.GetCORSAllowAll() {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.GetCORSOrigins()
	}
	return corsCfg
}
