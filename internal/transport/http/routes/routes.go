package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arklim/auth-core/internal/transport/http/handlers"
	"github.com/arklim/auth-core/internal/transport/http/middleware"
)

// Deps groups everything the router needs.
type Deps struct {
	Auth     *handlers.AuthHandler
	Password *handlers.PasswordHandler
	Health   *handlers.HealthHandler
	Metrics  *middleware.HTTPMetrics
	Registry *prometheus.Registry
}

// New builds the gin engine with all routes and middleware attached.
func New(env string, deps Deps) *gin.Engine {
	if env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger())
	if deps.Metrics != nil {
		router.Use(deps.Metrics.Handler())
	}

	router.GET("/healthz", deps.Health.Live)
	router.GET("/readyz", deps.Health.Ready)

	if deps.Registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api/v1")
	auth := api.Group("/auth")
	{
		auth.POST("/login", deps.Auth.Login)
		auth.POST("/refresh", deps.Auth.Refresh)
		auth.POST("/logout", deps.Auth.Logout)
		auth.POST("/logout-all", deps.Auth.LogoutEverywhere)

		password := auth.Group("/password")
		{
			password.POST("/forgot", deps.Password.Forgot)
			password.POST("/verify-code", deps.Password.VerifyCode)
			password.POST("/reset", deps.Password.Reset)
		}
	}

	return router
}
