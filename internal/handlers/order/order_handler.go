package order

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"eshop_back_end/internal/apperr"
	"eshop_back_end/internal/handlers"
	"eshop_back_end/internal/models"
	"eshop_back_end/internal/services"
)

const idempotencyHeader = "Idempotency-Key"

// Orders is the order service as the handlers use it.
type Orders interface {
	CreateOrder(ctx context.Context, cmd services.CreateOrderCommand) (models.Order, error)
	GetOrder(ctx context.Context, id string) (models.OrderDetail, error)
	ListOrders(ctx context.Context) ([]models.OrderSummary, error)
	ListUserOrders(ctx context.Context, userID string) ([]models.OrderDetail, error)
	TotalSales(ctx context.Context) (decimal.Decimal, error)
	CountOrders(ctx context.Context) (int64, error)
	DeleteOrder(ctx context.Context, id string) (int64, error)
	UpdateOrderStatus(ctx context.Context, id, status string) (models.Order, error)
}

type Handler struct {
	orders   Orders
	checkout Checkout
	resp     *handlers.Responder
}

func NewHandler(orders Orders, checkout Checkout, resp *handlers.Responder) *Handler {
	return &Handler{orders: orders, checkout: checkout, resp: resp}
}

// GET /orders
func (h *Handler) ListOrders(c *gin.Context) {
	orders, err := h.orders.ListOrders(c.Request.Context())
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// GET /orders/:id
func (h *Handler) GetOrder(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// POST /orders
func (h *Handler) CreateOrder(c *gin.Context) {
	var cmd services.CreateOrderCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		h.resp.Error(c, apperr.Binding(err, "invalid order payload"))
		return
	}
	cmd.IdempotencyKey = c.GetHeader(idempotencyHeader)

	order, err := h.orders.CreateOrder(c.Request.Context(), cmd)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// PUT /orders/:id
func (h *Handler) UpdateOrder(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.Error(c, apperr.Binding(err, "invalid order payload"))
		return
	}

	order, err := h.orders.UpdateOrderStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// DELETE /orders/:id
func (h *Handler) DeleteOrder(c *gin.Context) {
	if _, err := h.orders.DeleteOrder(c.Request.Context(), c.Param("id")); err != nil {
		h.resp.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "the order is deleted"})
}

// GET /orders/get/totalsales
func (h *Handler) TotalSales(c *gin.Context) {
	total, err := h.orders.TotalSales(c.Request.Context())
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"totalSales": total})
}

// GET /orders/get/count
func (h *Handler) CountOrders(c *gin.Context) {
	n, err := h.orders.CountOrders(c.Request.Context())
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

// GET /orders/get/userorders/:userid
func (h *Handler) UserOrders(c *gin.Context) {
	orders, err := h.orders.ListUserOrders(c.Request.Context(), c.Param("userid"))
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}
