package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"eshop_back_end/internal/apperr"
	"eshop_back_end/internal/logger"
	"eshop_back_end/internal/models"
	"eshop_back_end/internal/payments"
	"eshop_back_end/internal/repository"
)

const (
	PaidOrderStatus = "paid"

	metadataOrderKey   = "order"
	metadataItemPrefix = "item_"
	// Stripe allows 50 metadata keys of at most 500 characters.
	maxMetadataItems = 49
	maxMetadataValue = 500
)

// CheckoutOrder is the optional order data carried through a checkout session
// so the webhook can create the order once payment completes.
type CheckoutOrder struct {
	User string `json:"user"`
	models.ShippingAddress
}

type CheckoutCommand struct {
	Items []models.CartItem
	Order *CheckoutOrder
}

type CheckoutConfig struct {
	Currency   string
	SuccessURL string
	CancelURL  string
	MaxFanOut  int
}

// CheckoutService prices a cart and opens a hosted checkout session. Nothing is persisted.
type CheckoutService struct {
	catalog  repository.Catalog
	provider payments.Provider
	orders   *OrderService
	cfg      CheckoutConfig
	log      *zap.Logger
}

func NewCheckoutService(catalog repository.Catalog, provider payments.Provider, orders *OrderService,
	cfg CheckoutConfig, log *zap.Logger) *CheckoutService {
	if cfg.MaxFanOut <= 0 {
		cfg.MaxFanOut = DefaultMaxFanOut
	}
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	return &CheckoutService{catalog: catalog, provider: provider, orders: orders, cfg: cfg, log: logger.OrNop(log)}
}

// UnitAmount converts a decimal price to minor units, rounding half away from zero.
func UnitAmount(price decimal.Decimal) int64 {
	return price.Shift(2).Round(0).IntPart()
}

// CreateSession resolves every cart line and returns the provider's session id.
func (s *CheckoutService) CreateSession(ctx context.Context, cmd CheckoutCommand) (payments.Session, error) {
	if len(cmd.Items) == 0 {
		return payments.Session{}, apperr.Validation("cart is empty")
	}
	if err := validateItems(cmd.Items); err != nil {
		return payments.Session{}, err
	}

	var metadata map[string]string
	if cmd.Order != nil {
		var err error
		if metadata, err = encodeOrderMetadata(cmd); err != nil {
			return payments.Session{}, err
		}
	}

	products, err := resolveProducts(ctx, s.catalog, cmd.Items, s.cfg.MaxFanOut)
	if err != nil {
		return payments.Session{}, err
	}

	lines := make([]payments.LineItem, len(cmd.Items))
	for i, item := range cmd.Items {
		lines[i] = payments.LineItem{
			Name:       products[i].Name,
			UnitAmount: UnitAmount(products[i].Price),
			Quantity:   int64(item.Quantity),
		}
	}

	session, err := s.provider.CreateCheckoutSession(ctx, payments.SessionRequest{
		Currency:   s.cfg.Currency,
		SuccessURL: s.cfg.SuccessURL,
		CancelURL:  s.cfg.CancelURL,
		Items:      lines,
		Metadata:   metadata,
	})
	if err != nil {
		if errors.Is(err, payments.ErrNotConfigured) {
			return payments.Session{}, apperr.Upstream("payments are not configured", err)
		}
		return payments.Session{}, apperr.Upstream("failed to create checkout session", err)
	}

	s.log.Info("checkout session created", zap.String("session_id", session.ID), zap.Int("lines", len(lines)))
	return session, nil
}

// CompleteCheckout handles a provider webhook. It returns the created order, or nil when the
// event is not a completed checkout or the session carried no order data.
func (s *CheckoutService) CompleteCheckout(ctx context.Context, payload []byte, signature string) (*models.Order, error) {
	done, ok, err := s.provider.ParseCheckoutCompleted(payload, signature)
	if err != nil {
		if errors.Is(err, payments.ErrInvalidSignature) {
			return nil, apperr.Validation("invalid webhook signature")
		}
		return nil, apperr.Upstream("failed to read webhook", err)
	}
	if !ok {
		return nil, nil
	}

	cmd, found, err := decodeOrderMetadata(done.Metadata)
	if err != nil {
		return nil, err
	}
	if !found {
		s.log.Info("checkout completed without order data", zap.String("session_id", done.SessionID))
		return nil, nil
	}
	cmd.Status = PaidOrderStatus
	cmd.IdempotencyKey = done.SessionID

	order, err := s.orders.CreateOrder(ctx, cmd)
	if err != nil {
		return nil, err
	}
	// The charge is already captured; a mismatch is only logged.
	if computed := UnitAmount(order.TotalPrice); done.AmountTotal > 0 && computed != done.AmountTotal {
		s.log.Warn("checkout amount differs from order total",
			zap.String("session_id", done.SessionID),
			zap.String("order_id", order.ID),
			zap.Int64("charged", done.AmountTotal),
			zap.Int64("computed", computed),
		)
	}
	return &order, nil
}

func encodeOrderMetadata(cmd CheckoutCommand) (map[string]string, error) {
	full := CreateOrderCommand{Items: cmd.Items, ShippingAddress: cmd.Order.ShippingAddress, User: cmd.Order.User}.normalized()
	if err := full.validate(); err != nil {
		return nil, err
	}
	if len(cmd.Items) > maxMetadataItems {
		return nil, apperr.Validation(fmt.Sprintf("checkout with order data supports at most %d items", maxMetadataItems))
	}

	order, err := json.Marshal(CheckoutOrder{User: full.User, ShippingAddress: full.ShippingAddress})
	if err != nil {
		return nil, apperr.Validation("invalid order data")
	}
	if len(order) > maxMetadataValue {
		return nil, apperr.Validation("order data is too long")
	}

	md := map[string]string{metadataOrderKey: string(order)}
	for i, item := range cmd.Items {
		md[metadataItemPrefix+strconv.Itoa(i)] = item.Product + ":" + strconv.Itoa(item.Quantity)
	}
	return md, nil
}

func decodeOrderMetadata(md map[string]string) (CreateOrderCommand, bool, error) {
	raw, ok := md[metadataOrderKey]
	if !ok {
		return CreateOrderCommand{}, false, nil
	}

	var order CheckoutOrder
	if err := json.Unmarshal([]byte(raw), &order); err != nil {
		return CreateOrderCommand{}, false, apperr.Validation("invalid order metadata")
	}

	var items []models.CartItem
	for i := 0; ; i++ {
		v, ok := md[metadataItemPrefix+strconv.Itoa(i)]
		if !ok {
			break
		}
		product, qty, found := strings.Cut(v, ":")
		n, err := strconv.Atoi(qty)
		if !found || err != nil {
			return CreateOrderCommand{}, false, apperr.Validation("invalid order item metadata")
		}
		items = append(items, models.CartItem{Product: product, Quantity: n})
	}

	return CreateOrderCommand{Items: items, ShippingAddress: order.ShippingAddress, User: order.User}, true, nil
}
