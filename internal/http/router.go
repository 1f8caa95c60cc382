package http

import (
	"log/slog"
	"net/http"

	"github.com/geocoder89/staffauth/internal/config"
	"github.com/geocoder89/staffauth/internal/domain/user"
	"github.com/geocoder89/staffauth/internal/http/handlers"
	"github.com/geocoder89/staffauth/internal/http/middlewares"
	"github.com/geocoder89/staffauth/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const (
	serviceName = "staffauth"
	importRoute = "/users/import"
)

// Deps are the collaborators the HTTP layer needs. Prom and Gatherer may be
// nil, in which case metrics are not collected or exposed.
type Deps struct {
	Auth     handlers.LoginService
	Users    handlers.UserService
	Gate     middlewares.Authenticator
	Health   *handlers.HealthHandler
	Prom     *observability.Prom
	Gatherer prometheus.Gatherer
}

func NewRouter(log *slog.Logger, cfg config.Config, deps Deps) *gin.Engine {
	if cfg.Env != "dev" && cfg.Env != "test" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware

	r.Use(middlewares.Recovery(log))
	r.Use(middlewares.RequestID())
	if cfg.OTelEnabled {
		r.Use(otelgin.Middleware(serviceName))
	}
	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders(cfg.IsProd()))
	r.Use(middlewares.CORSMiddleware(cfg.CORSAllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(cfg.MaxBodyBytes, map[string]int64{
		importRoute: cfg.MaxUploadBytes,
	}))
	r.Use(middlewares.RequireJSON(importRoute))

	// health and docs
	health := deps.Health
	if health == nil {
		health = handlers.NewHealthHandler(nil)
	}
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)
	r.GET("/swagger", handlers.SwaggerUI)
	r.GET("/docs/openapi.yaml", handlers.OpenAPISpec)

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	// auth
	var failures middlewares.FailureRecorder
	if deps.Prom != nil {
		failures = deps.Prom
	}
	authMw := middlewares.NewAuthMiddleware(deps.Gate, failures, log)
	authHandler := handlers.NewAuthHandler(deps.Auth, failures, log)

	loginLimiter := middlewares.NewRateLimiter(cfg.LoginRateLimit, cfg.LoginRateWindow)

	authGroup := r.Group("/auth")
	authGroup.POST("/login", loginLimiter.RateLimiterMiddleware(middlewares.KeyByIP), authHandler.Login)

	authed := authGroup.Group("", authMw.RequireAuth())
	authed.GET("/me", authHandler.Me)
	authed.GET("/verify/:scope", authHandler.Verify)

	// users
	usersHandler := handlers.NewUsersHandler(deps.Users, cfg.MaxUploadBytes, log)

	users := r.Group("/users", authMw.RequireAuth())

	// a user changes its own password; Admin may change anyone's
	passwordLimiter := middlewares.NewRateLimiter(cfg.LoginRateLimit, cfg.LoginRateWindow)
	users.PUT("/:id/password",
		authMw.RequireSelfOrRole("id", user.AdminOnly),
		passwordLimiter.RateLimiterMiddleware(middlewares.KeyByUserOrIP),
		usersHandler.UpdatePassword,
	)

	admin := users.Group("", authMw.RequireRole(user.AdminOnly))
	admin.GET("", usersHandler.ListUsers)
	admin.POST("", usersHandler.CreateUser)
	admin.DELETE("", usersHandler.DeleteUsers)
	admin.GET("/export", usersHandler.ExportUsers)
	admin.POST("/import", usersHandler.ImportUsers)
	admin.GET("/:id", usersHandler.GetUserByID)
	admin.PUT("/:id", usersHandler.UpdateUser)
	admin.DELETE("/:id", usersHandler.DeleteUser)

	r.NoRoute(func(ctx *gin.Context) {
		handlers.RespondError(ctx, http.StatusNotFound, "route_not_found", "Route not found.", nil)
	})

	return r
}
