package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/checkout/session"
	"github.com/stripe/stripe-go/v83/webhook"
)

const eventCheckoutCompleted = "checkout.session.completed"

type sessionFunc func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)

// StripeProvider creates hosted checkout sessions through the global stripe.Key,
// which the caller sets at startup.
type StripeProvider struct {
	newSession    sessionFunc
	enabled       bool
	webhookSecret string
}

var _ Provider = (*StripeProvider)(nil)

// NewStripeProvider returns a provider that refuses to create sessions when secretKey is empty.
func NewStripeProvider(secretKey, webhookSecret string) *StripeProvider {
	return &StripeProvider{
		newSession:    session.New,
		enabled:       secretKey != "",
		webhookSecret: webhookSecret,
	}
}

func (p *StripeProvider) CreateCheckoutSession(_ context.Context, req SessionRequest) (Session, error) {
	if !p.enabled {
		return Session{}, ErrNotConfigured
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	currency := strings.ToLower(req.Currency)
	params.LineItems = make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Items))
	for _, item := range req.Items {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(item.Quantity),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency),
				UnitAmount: stripe.Int64(item.UnitAmount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
			},
		})
	}

	s, err := p.newSession(params)
	if err != nil {
		return Session{}, fmt.Errorf("stripe: create checkout session: %w", err)
	}
	return Session{ID: s.ID, URL: s.URL}, nil
}

func (p *StripeProvider) ParseCheckoutCompleted(payload []byte, signature string) (CompletedCheckout, bool, error) {
	if p.webhookSecret == "" {
		return CompletedCheckout{}, false, ErrNotConfigured
	}
	event, err := webhook.ConstructEvent(payload, signature, p.webhookSecret)
	if err != nil {
		return CompletedCheckout{}, false, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if event.Type != eventCheckoutCompleted {
		return CompletedCheckout{}, false, nil
	}

	var s stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
		return CompletedCheckout{}, false, fmt.Errorf("stripe: decode checkout session: %w", err)
	}
	return CompletedCheckout{SessionID: s.ID, Metadata: s.Metadata, AmountTotal: s.AmountTotal}, true, nil
}
