package routes

import (
	"github.com/gin-gonic/gin"
)

// RegisterAPIRoutes wires the webhook surface. Two inbound paths exist
// because Meta app configs in the wild point at both; they share one
// handler.
func RegisterAPIRoutes(router *gin.Engine, deps Deps) {
	router.GET("/webhook", deps.Webhook.HandleVerification)
	router.POST("/webhook", deps.Webhook.HandleInbound)
	router.GET("/webhook2", deps.Webhook.HandleVerification)
	router.POST("/webhook2", deps.Webhook.HandleInbound)

	router.POST("/payments/webhook", deps.Payments.HandleWebhook)

	router.GET("/ws", deps.Hub.Handle)
}
