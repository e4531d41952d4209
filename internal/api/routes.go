package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/irfndi/crossover-go/internal/api/handlers"
	"github.com/irfndi/crossover-go/internal/middleware"
)

// Handlers groups everything SetupRoutes mounts. Runs and Auth are optional:
// without a database there is nothing to list, and without an API key hash
// no tokens can be issued.
type Handlers struct {
	Backtest *handlers.BacktestHandler
	Runs     *handlers.RunsHandler
	Auth     *handlers.AuthHandler
	Health   *handlers.HealthHandler

	JWT     *middleware.AuthMiddleware
	APIKeys *middleware.APIKeyVerifier
}

// NewRouter creates the engine with recovery, tracing, request logging and CORS.
func NewRouter(serviceName string, allowedOrigins []string, logger *logrus.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(middleware.RequestLogger(logger))
	router.Use(corsMiddleware(allowedOrigins))
	return router
}

func SetupRoutes(router *gin.Engine, h Handlers) {
	router.GET("/health", h.Health.HealthCheck)
	router.GET("/ready", h.Health.ReadinessCheck)
	router.GET("/live", h.Health.LivenessCheck)

	v1 := router.Group("/api/v1")
	{
		backtest := v1.Group("/backtest")
		{
			backtest.GET("", h.Backtest.GetBacktest)
			backtest.GET("/signals.csv", h.Backtest.GetSignalsCSV)
			backtest.POST("/evaluate", h.Backtest.Evaluate)
			backtest.POST("/sweep", h.Backtest.Sweep)
		}

		if h.Auth != nil && h.APIKeys != nil {
			v1.POST("/auth/token", h.APIKeys.RequireAPIKey(), h.Auth.IssueToken)
		}

		if h.Runs != nil && h.JWT != nil {
			runs := v1.Group("/runs", h.JWT.RequireAuth())
			{
				runs.GET("", h.Runs.ListRuns)
				runs.GET("/:id", h.Runs.GetRun)
			}
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, handlers.ErrorResponse{Error: "not_found", Message: "route not found"})
	})
}

// corsMiddleware allows the configured origins. "*" allows any origin.
func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowAll := false
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (allowAll || allowed[origin]) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, "+middleware.HeaderAPIKey)
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
