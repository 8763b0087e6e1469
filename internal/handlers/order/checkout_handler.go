package order

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"eshop_back_end/internal/models"
	"eshop_back_end/internal/payments"
	"eshop_back_end/internal/services"
)

const (
	signatureHeader = "Stripe-Signature"
	maxWebhookBody  = 65536
	maxCheckoutBody = 1 << 20
)

type Checkout interface {
	CreateSession(ctx context.Context, cmd services.CheckoutCommand) (payments.Session, error)
	CompleteCheckout(ctx context.Context, payload []byte, signature string) (*models.Order, error)
}

type checkoutRequest struct {
	Items []models.CartItem `json:"orderItems"`
	User  string            `json:"user"`
	models.ShippingAddress
}

// parseCheckout accepts a bare array of cart lines, or an object with orderItems
// and optional order data.
func parseCheckout(body []byte) (services.CheckoutCommand, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var items []models.CartItem
		if err := json.Unmarshal(body, &items); err != nil {
			return services.CheckoutCommand{}, err
		}
		return services.CheckoutCommand{Items: items}, nil
	}

	var req checkoutRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return services.CheckoutCommand{}, err
	}
	cmd := services.CheckoutCommand{Items: req.Items}
	if req.User != "" || req.ShippingAddress != (models.ShippingAddress{}) {
		cmd.Order = &services.CheckoutOrder{User: req.User, ShippingAddress: req.ShippingAddress}
	}
	return cmd, nil
}

// POST /orders/create-checkout-session
func (h *Handler) CreateCheckoutSession(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxCheckoutBody)
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.resp.BadRequest(c, "checkout session cannot be created - check the order items")
		return
	}
	cmd, err := parseCheckout(body)
	if err != nil {
		h.resp.BadRequest(c, "checkout session cannot be created - check the order items")
		return
	}

	session, err := h.checkout.CreateSession(c.Request.Context(), cmd)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": session.ID})
}

// POST /orders/checkout-webhook
func (h *Handler) CheckoutWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.resp.BadRequest(c, "webhook payload too large")
		return
	}

	order, err := h.checkout.CompleteCheckout(c.Request.Context(), payload, c.GetHeader(signatureHeader))
	if err != nil {
		h.resp.Error(c, err)
		return
	}

	res := gin.H{"received": true}
	if order != nil {
		res["order"] = order.ID
	}
	c.JSON(http.StatusOK, res)
}
