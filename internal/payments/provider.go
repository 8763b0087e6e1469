// Package payments wraps the hosted checkout provider.
package payments

import (
	"context"
	"errors"
)

var (
	ErrInvalidSignature = errors.New("payments: invalid webhook signature")
	ErrNotConfigured    = errors.New("payments: provider not configured")
)

// LineItem is one priced checkout line. UnitAmount is in minor units.
type LineItem struct {
	Name       string
	UnitAmount int64
	Quantity   int64
}

type SessionRequest struct {
	Currency   string
	SuccessURL string
	CancelURL  string
	Items      []LineItem
	Metadata   map[string]string
}

type Session struct {
	ID  string
	URL string
}

// CompletedCheckout is the part of a checkout.session.completed event the order flow needs.
type CompletedCheckout struct {
	SessionID string
	Metadata  map[string]string
	// AmountTotal is what the customer was charged, in minor units. Zero when absent.
	AmountTotal int64
}

type Provider interface {
	CreateCheckoutSession(ctx context.Context, req SessionRequest) (Session, error)
	// ParseCheckoutCompleted verifies a webhook. ok is false for any other event type.
	ParseCheckoutCompleted(payload []byte, signature string) (CompletedCheckout, bool, error)
}
