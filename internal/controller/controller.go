package controller

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"order-tracking-service/internal/dto"
	"order-tracking-service/internal/lifecycle"
	"order-tracking-service/internal/middleware"
	"order-tracking-service/internal/model"
	"order-tracking-service/internal/service"
	"order-tracking-service/internal/session"
)

// OrderService is what the handlers need from service.OrderService.
type OrderService interface {
	ListOrders(ctx context.Context, sess *session.Session, filter string) (*dto.OrderList, error)
	GetOrder(ctx context.Context, sess *session.Session, leadID string) (*dto.OrderView, error)
	Timeline(ctx context.Context, sess *session.Session, leadID string) ([]lifecycle.Step, error)
	ChangeEligibility(ctx context.Context, sess *session.Session, leadID string) (*dto.ChangeEligibility, error)
	Countdown(ctx context.Context, sess *session.Session, leadID string) (<-chan lifecycle.ChangeWindow, error)
	ChangeAddress(ctx context.Context, sess *session.Session, leadID string, req model.ChangeRequest) (*dto.OrderView, error)
	ChangeDeliveryDate(ctx context.Context, sess *session.Session, leadID string, req model.ChangeRequest) (*dto.OrderView, error)
	Document(ctx context.Context, sess *session.Session, leadID string, kind lifecycle.DocumentKind) ([]byte, error)
	Tracking(ctx context.Context, sess *session.Session, leadID string) (*dto.TrackingView, error)
	Watch(ctx context.Context, sess *session.Session, leadID string) (<-chan dto.TrackingView, func(), error)
	MyTracking(ctx context.Context, sess *session.Session) ([]dto.TrackingView, error)
	AdminOrders(ctx context.Context, status string) ([]dto.TrackingView, error)
	AdminStats(ctx context.Context) (dto.Stats, error)
	AdminSetStatus(ctx context.Context, sess *session.Session, leadID, status, reason string) (*dto.TrackingView, error)
}

type SessionEnder interface {
	Logout(ctx context.Context, token string) error
}

type OrderController struct {
	orders OrderService
	auth   SessionEnder
	log    *zap.Logger
}

func NewOrderController(orders OrderService, auth SessionEnder, log *zap.Logger) *OrderController {
	return &OrderController{orders: orders, auth: auth, log: log}
}

// GET /healthz
func (ctl *OrderController) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GET /orders?status=
func (ctl *OrderController) ListOrders(c *gin.Context) {
	res, err := ctl.orders.ListOrders(c.Request.Context(), middleware.Session(c), c.Query("status"))
	if err != nil {
		ctl.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /orders/:leadId
func (ctl *OrderController) GetOrder(c *gin.Context) {
	res, err := ctl.orders.GetOrder(c.Request.Context(), middleware.Session(c), c.Param("leadId"))
	if err != nil {
		ctl.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /orders/:leadId/timeline
func (ctl *OrderController) Timeline(c *gin.Context) {
	steps, err := ctl.orders.Timeline(c.Request.Context(), middleware.Session(c), c.Param("leadId"))
	if err != nil {
		ctl.fail(c, err)
		return
	}
	res := gin.H{"leadId": c.Param("leadId"), "timeline": steps}
	if current, ok := lifecycle.CurrentStep(steps); ok {
		res["current"] = current
	}
	c.JSON(http.StatusOK, res)
}

// GET /orders/:leadId/change-eligibility
func (ctl *OrderController) ChangeEligibility(c *gin.Context) {
	res, err := ctl.orders.ChangeEligibility(c.Request.Context(), middleware.Session(c), c.Param("leadId"))
	if err != nil {
		ctl.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// PUT /orders/:leadId/address
func (ctl *OrderController) ChangeAddress(c *gin.Context) {
	ctl.change(c, ctl.orders.ChangeAddress)
}

// PUT /orders/:leadId/delivery-date
func (ctl *OrderController) ChangeDeliveryDate(c *gin.Context) {
	ctl.change(c, ctl.orders.ChangeDeliveryDate)
}

type changeHandler func(ctx context.Context, sess *session.Session, leadID string, req model.ChangeRequest) (*dto.OrderView, error)

func (ctl *OrderController) change(c *gin.Context, apply changeHandler) {
	var req dto.ChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	res, err := apply(c.Request.Context(), middleware.Session(c), c.Param("leadId"), model.ChangeRequest{
		NewValue: req.NewValue,
		Reason:   req.Reason,
	})
	if err != nil {
		ctl.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /orders/:leadId/documents/:kind
func (ctl *OrderController) Document(c *gin.Context) {
	leadID := c.Param("leadId")
	kind, err := lifecycle.ParseDocumentKind(c.Param("kind"))
	if err != nil {
		ctl.fail(c, fmt.Errorf("%w: %v", service.ErrInvalidDocument, err))
		return
	}

	pdf, err := ctl.orders.Document(c.Request.Context(), middleware.Session(c), leadID, kind)
	if err != nil {
		ctl.fail(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="%s-%s.pdf"`, leadID, kind))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// GET /orders/:leadId/tracking
func (ctl *OrderController) Tracking(c *gin.Context) {
	res, err := ctl.orders.Tracking(c.Request.Context(), middleware.Session(c), c.Param("leadId"))
	if err != nil {
		ctl.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /tracking/mine
func (ctl *OrderController) MyTracking(c *gin.Context) {
	res, err := ctl.orders.MyTracking(c.Request.Context(), middleware.Session(c))
	if err != nil {
		ctl.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": res})
}

// POST /logout
func (ctl *OrderController) Logout(c *gin.Context) {
	sess := middleware.Session(c)
	if err := ctl.auth.Logout(c.Request.Context(), sess.Token); err != nil {
		ctl.log.Warn("logout failed", zap.String("userId", sess.UserID), zap.Error(err))
	}
	c.Status(http.StatusNoContent)
}

// GET /admin/orders
func (ctl *OrderController) AdminOrders(c *gin.Context) {
	ctl.adminOrders(c, "")
}

// GET /admin/orders/status/:status
func (ctl *OrderController) AdminOrdersByStatus(c *gin.Context) {
	ctl.adminOrders(c, c.Param("status"))
}

func (ctl *OrderController) adminOrders(c *gin.Context, status string) {
	res, err := ctl.orders.AdminOrders(c.Request.Context(), status)
	if err != nil {
		ctl.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": res})
}

// GET /admin/orders/stats
func (ctl *OrderController) AdminStats(c *gin.Context) {
	res, err := ctl.orders.AdminStats(c.Request.Context())
	if err != nil {
		ctl.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// PATCH /admin/orders/:leadId/status
func (ctl *OrderController) AdminSetStatus(c *gin.Context) {
	var req dto.StatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	res, err := ctl.orders.AdminSetStatus(c.Request.Context(), middleware.Session(c), c.Param("leadId"), req.Status, req.Reason)
	if err != nil {
		ctl.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
