package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"order-tracking-service/internal/middleware"
)

func startStream(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
}

// GET /orders/:leadId/countdown
//
// Sends a countdown event every second. The stream ends after the first
// event reporting the window closed.
func (ctl *OrderController) Countdown(c *gin.Context) {
	ctx := c.Request.Context()
	ticks, err := ctl.orders.Countdown(ctx, middleware.Session(c), c.Param("leadId"))
	if err != nil {
		ctl.fail(c, err)
		return
	}

	startStream(c)
	for {
		select {
		case <-ctx.Done():
			return
		case cw, ok := <-ticks:
			if !ok {
				return
			}
			c.SSEvent("countdown", cw)
			c.Writer.Flush()
		}
	}
}

// GET /orders/:leadId/watch
func (ctl *OrderController) Watch(c *gin.Context) {
	ctx := c.Request.Context()
	updates, stop, err := ctl.orders.Watch(ctx, middleware.Session(c), c.Param("leadId"))
	if err != nil {
		ctl.fail(c, err)
		return
	}
	defer stop()

	startStream(c)
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-updates:
			if !ok {
				return
			}
			c.SSEvent("status", v)
			c.Writer.Flush()
		}
	}
}
