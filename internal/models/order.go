package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const DefaultOrderStatus = "pending"

// OrderItem is one persisted line of an order.
type OrderItem struct {
	ID       string `json:"id"`
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}

type ShippingAddress struct {
	ShippingAddress1 string `json:"shippingAddress1" binding:"required"`
	ShippingAddress2 string `json:"shippingAddress2,omitempty"`
	City             string `json:"city" binding:"required"`
	Zip              string `json:"zip" binding:"required"`
	Country          string `json:"country" binding:"required"`
	Phone            string `json:"phone" binding:"required"`
}

// Trimmed returns the address with surrounding whitespace removed from every field.
func (a ShippingAddress) Trimmed() ShippingAddress {
	return ShippingAddress{
		ShippingAddress1: strings.TrimSpace(a.ShippingAddress1),
		ShippingAddress2: strings.TrimSpace(a.ShippingAddress2),
		City:             strings.TrimSpace(a.City),
		Zip:              strings.TrimSpace(a.Zip),
		Country:          strings.TrimSpace(a.Country),
		Phone:            strings.TrimSpace(a.Phone),
	}
}

// Order is the stored order record. TotalPrice is a snapshot taken at creation.
type Order struct {
	ID         string   `json:"id"`
	OrderItems []string `json:"orderItems"`
	ShippingAddress
	Status         string          `json:"status"`
	TotalPrice     decimal.Decimal `json:"totalPrice"`
	User           string          `json:"user"`
	DateOrdered    time.Time       `json:"dateOrdered"`
	IdempotencyKey string          `json:"-"`
}

// UserRef is the display-only expansion of an order's user.
type UserRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// OrderSummary is the listing view: user expanded, items left as ids.
type OrderSummary struct {
	ID         string   `json:"id"`
	OrderItems []string `json:"orderItems"`
	ShippingAddress
	Status      string          `json:"status"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
	User        *UserRef        `json:"user"`
	DateOrdered time.Time       `json:"dateOrdered"`
}

// OrderItemDetail expands an item's product; Product is nil when it no longer exists.
type OrderItemDetail struct {
	ID       string         `json:"id"`
	Product  *ProductDetail `json:"product"`
	Quantity int            `json:"quantity"`
}

// OrderDetail is the fully expanded view: item -> product -> category, user -> name.
type OrderDetail struct {
	ID         string            `json:"id"`
	OrderItems []OrderItemDetail `json:"orderItems"`
	ShippingAddress
	Status      string          `json:"status"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
	User        *UserRef        `json:"user"`
	DateOrdered time.Time       `json:"dateOrdered"`
}

func (o Order) Summary(user *UserRef) OrderSummary {
	return OrderSummary{
		ID:              o.ID,
		OrderItems:      o.OrderItems,
		ShippingAddress: o.ShippingAddress,
		Status:          o.Status,
		TotalPrice:      o.TotalPrice,
		User:            user,
		DateOrdered:     o.DateOrdered,
	}
}

func (o Order) Detail(items []OrderItemDetail, user *UserRef) OrderDetail {
	return OrderDetail{
		ID:              o.ID,
		OrderItems:      items,
		ShippingAddress: o.ShippingAddress,
		Status:          o.Status,
		TotalPrice:      o.TotalPrice,
		User:            user,
		DateOrdered:     o.DateOrdered,
	}
}
