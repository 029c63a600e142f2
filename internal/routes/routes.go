package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rayimanoj-oliva/wb-crm/internal/config"
	"github.com/rayimanoj-oliva/wb-crm/internal/loaders"
	"github.com/rayimanoj-oliva/wb-crm/internal/middleware"
	"github.com/rayimanoj-oliva/wb-crm/internal/payments"
	"github.com/rayimanoj-oliva/wb-crm/internal/webhook"
	"github.com/rayimanoj-oliva/wb-crm/internal/ws"
)

// Deps bundles the controllers the route table wires up.
type Deps struct {
	Webhook  *webhook.Controller
	Payments *payments.Controller
	Hub      *ws.Hub
}

// SetupRoutes configures all application routes
func SetupRoutes(router *gin.Engine, db *loaders.PostgresClient, cfg *config.Config, deps Deps) {
	// Apply global middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(middleware.RequestID())

	// Setup route groups
	SetupHealthRoutes(router, db)
	RegisterAPIRoutes(router, deps)
	Setup404Handler(router)
}

// Setup404Handler configures the 404 handler
func Setup404Handler(router *gin.Engine) {
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Not Found",
			"message": "The requested resource was not found",
			"path":    c.Request.URL.Path,
		})
	})
}
