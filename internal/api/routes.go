// Package api assembles the HTTP surface: routing, shared middleware, and
// server lifecycle.
package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/afftrack/linktrack/internal/handler"
	"github.com/afftrack/linktrack/internal/logger"
	"github.com/afftrack/linktrack/internal/middleware"
)

// SetupRoutes wires every endpoint onto the router. Visitor-facing routes
// get fallback recovery, the bot filter, and the rate limiter.
func SetupRoutes(
	router *gin.Engine,
	orch *handler.Orchestrator,
	health *handler.HealthHandler,
	log logger.Logger,
	fallbackURL string,
	maxClicksPerMin int,
	rateLimitWindow time.Duration,
	stop <-chan struct{},
) {
	router.GET("/health", health.HealthCheck)
	router.GET("/health/ready", health.ReadyCheck)

	// Visitor traffic: every route here must end in a redirect or a pixel,
	// never an error page.
	visitor := router.Group("")
	visitor.Use(middleware.FallbackRecovery(log, fallbackURL))
	visitor.Use(middleware.BotFilter())
	visitor.Use(middleware.RateLimiter(maxClicksPerMin, rateLimitWindow, stop))
	visitor.GET("/redirect", orch.HandleRedirect)
	visitor.GET("/track/chain", orch.HandleChainTrack)
	visitor.GET("/click/:clickId", orch.HandleClickByID)
	visitor.GET("/pixel.gif", orch.HandlePixel)

	// Capture endpoints: called by landing pages, not navigated to.
	capture := router.Group("")
	capture.Use(middleware.BotFilter())
	capture.GET("/capture.js", orch.HandleCaptureScript)
	capture.GET("/capture/final", orch.HandleServerCapture)
	capture.POST("/capture/client", orch.HandleClientCapture)

	// Link minting is an operator API, no bot filtering.
	router.POST("/links", orch.HandleMintLink)
}
