package controller

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"order-tracking-service/internal/middleware"
)

// NewRouter registers every route of the service.
func NewRouter(ctl *OrderController, auth middleware.Authenticator, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))

	// public
	r.GET("/healthz", ctl.Health)

	// bearer token required
	authed := r.Group("/")
	authed.Use(middleware.AuthMiddleware(auth, log))

	authed.POST("/logout", ctl.Logout)
	authed.GET("/tracking/mine", ctl.MyTracking)

	orders := authed.Group("/orders")
	orders.GET("", ctl.ListOrders)
	orders.GET("/:leadId", ctl.GetOrder)
	orders.GET("/:leadId/timeline", ctl.Timeline)
	orders.GET("/:leadId/change-eligibility", ctl.ChangeEligibility)
	orders.PUT("/:leadId/address", ctl.ChangeAddress)
	orders.PUT("/:leadId/delivery-date", ctl.ChangeDeliveryDate)
	orders.GET("/:leadId/documents/:kind", ctl.Document)
	orders.GET("/:leadId/countdown", ctl.Countdown)
	orders.GET("/:leadId/tracking", ctl.Tracking)
	orders.GET("/:leadId/watch", ctl.Watch)

	admin := authed.Group("/admin")
	admin.Use(middleware.AdminOnly())
	admin.GET("/orders", ctl.AdminOrders)
	admin.GET("/orders/stats", ctl.AdminStats)
	admin.GET("/orders/status/:status", ctl.AdminOrdersByStatus)
	admin.PATCH("/orders/:leadId/status", ctl.AdminSetStatus)

	return r
}
