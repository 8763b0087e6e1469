package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"eshop_back_end/internal/apperr"
	"eshop_back_end/internal/models"
	"eshop_back_end/internal/payments"
)

type fakeProvider struct {
	calls    int
	req      payments.SessionRequest
	err      error
	event    payments.CompletedCheckout
	eventOK  bool
	parseErr error
}

func (f *fakeProvider) CreateCheckoutSession(_ context.Context, req payments.SessionRequest) (payments.Session, error) {
	f.calls++
	f.req = req
	if f.err != nil {
		return payments.Session{}, f.err
	}
	return payments.Session{ID: "cs_test_123"}, nil
}

func (f *fakeProvider) ParseCheckoutCompleted([]byte, string) (payments.CompletedCheckout, bool, error) {
	return f.event, f.eventOK, f.parseErr
}

func newCheckoutFixture(t *testing.T) (*orderFixture, *fakeProvider, *CheckoutService) {
	f := newOrderFixture(t)
	provider := &fakeProvider{}
	svc := NewCheckoutService(f.catalog, provider, f.svc, CheckoutConfig{
		SuccessURL: "http://localhost:4200/success",
		CancelURL:  "http://localhost:4200/error",
	}, nil)
	return f, provider, svc
}

func TestUnitAmount(t *testing.T) {
	cases := map[string]int64{
		"5.50":   550,
		"10":     1000,
		"0.005":  1,
		"19.994": 1999,
		"0":      0,
	}
	for in, want := range cases {
		assert.Equal(t, want, UnitAmount(decimal.RequireFromString(in)), in)
	}
}

func TestCreateSessionBuildsMinorUnitLines(t *testing.T) {
	f, provider, svc := newCheckoutFixture(t)

	session, err := svc.CreateSession(context.Background(), CheckoutCommand{Items: []models.CartItem{
		{Product: f.p2.ID, Quantity: 3},
		{Product: f.p1.ID, Quantity: 1},
	}})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_123", session.ID)

	require.Len(t, provider.req.Items, 2)
	assert.Equal(t, payments.LineItem{Name: "Bulb", UnitAmount: 550, Quantity: 3}, provider.req.Items[0])
	assert.Equal(t, payments.LineItem{Name: "Lamp", UnitAmount: 1000, Quantity: 1}, provider.req.Items[1])
	assert.Equal(t, "usd", provider.req.Currency)
	assert.Equal(t, "http://localhost:4200/success", provider.req.SuccessURL)
	assert.Empty(t, provider.req.Metadata)

	assert.Zero(t, f.orders.ItemCount())
}

func TestCreateSessionRejectsBadCarts(t *testing.T) {
	_, provider, svc := newCheckoutFixture(t)

	cases := map[string][]models.CartItem{
		"empty":           nil,
		"zero quantity":   {{Product: uuid.NewString(), Quantity: 0}},
		"unknown product": {{Product: uuid.NewString(), Quantity: 1}},
	}
	for name, items := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreateSession(context.Background(), CheckoutCommand{Items: items})
			assert.True(t, apperr.Is(err, apperr.KindValidation), name)
		})
	}
	assert.Zero(t, provider.calls)
}

func TestCreateSessionProviderFailureIsUpstream(t *testing.T) {
	f, provider, svc := newCheckoutFixture(t)
	provider.err = errors.New("stripe down")

	_, err := svc.CreateSession(context.Background(), CheckoutCommand{Items: []models.CartItem{{Product: f.p1.ID, Quantity: 1}}})
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
}

func TestCheckoutWithOrderDataCreatesPaidOrderOnWebhook(t *testing.T) {
	f, provider, svc := newCheckoutFixture(t)
	ctx := context.Background()
	cmd := f.command(models.CartItem{Product: f.p1.ID, Quantity: 2}, models.CartItem{Product: f.p2.ID, Quantity: 1})

	_, err := svc.CreateSession(ctx, CheckoutCommand{
		Items: cmd.Items,
		Order: &CheckoutOrder{User: cmd.User, ShippingAddress: cmd.ShippingAddress},
	})
	require.NoError(t, err)
	require.Contains(t, provider.req.Metadata, "order")
	assert.Equal(t, f.p1.ID+":2", provider.req.Metadata["item_0"])

	provider.event = payments.CompletedCheckout{SessionID: "cs_test_123", Metadata: provider.req.Metadata}
	provider.eventOK = true

	order, err := svc.CompleteCheckout(ctx, []byte("{}"), "sig")
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, PaidOrderStatus, order.Status)
	assert.True(t, order.TotalPrice.Equal(decimal.RequireFromString("25.50")))

	again, err := svc.CompleteCheckout(ctx, []byte("{}"), "sig")
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, order.ID, again.ID)

	n, err := f.orders.CountOrders(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestCompleteCheckoutFlagsChargedAmountDrift(t *testing.T) {
	f := newOrderFixture(t)
	core, logs := observer.New(zapcore.WarnLevel)
	provider := &fakeProvider{}
	svc := NewCheckoutService(f.catalog, provider, f.svc, CheckoutConfig{}, zap.New(core))
	ctx := context.Background()

	cmd := f.command(models.CartItem{Product: f.p1.ID, Quantity: 1})
	_, err := svc.CreateSession(ctx, CheckoutCommand{
		Items: cmd.Items,
		Order: &CheckoutOrder{User: cmd.User, ShippingAddress: cmd.ShippingAddress},
	})
	require.NoError(t, err)

	repriced := f.p1
	repriced.Price = decimal.RequireFromString("11.00")
	f.catalog.PutProduct(repriced)

	provider.event = payments.CompletedCheckout{SessionID: "cs_drift", Metadata: provider.req.Metadata, AmountTotal: 1000}
	provider.eventOK = true
	order, err := svc.CompleteCheckout(ctx, []byte("{}"), "sig")
	require.NoError(t, err)
	require.NotNil(t, order)

	drift := logs.FilterMessage("checkout amount differs from order total").All()
	require.Len(t, drift, 1)
	fields := drift[0].ContextMap()
	assert.EqualValues(t, 1000, fields["charged"])
	assert.EqualValues(t, 1100, fields["computed"])
	assert.Equal(t, order.ID, fields["order_id"])
}

func TestCompleteCheckoutMatchingAmountLogsNothing(t *testing.T) {
	f := newOrderFixture(t)
	core, logs := observer.New(zapcore.WarnLevel)
	provider := &fakeProvider{}
	svc := NewCheckoutService(f.catalog, provider, f.svc, CheckoutConfig{}, zap.New(core))
	ctx := context.Background()

	cmd := f.command(models.CartItem{Product: f.p2.ID, Quantity: 2})
	_, err := svc.CreateSession(ctx, CheckoutCommand{
		Items: cmd.Items,
		Order: &CheckoutOrder{User: cmd.User, ShippingAddress: cmd.ShippingAddress},
	})
	require.NoError(t, err)

	provider.event = payments.CompletedCheckout{SessionID: "cs_exact", Metadata: provider.req.Metadata, AmountTotal: 1100}
	provider.eventOK = true
	_, err = svc.CompleteCheckout(ctx, []byte("{}"), "sig")
	require.NoError(t, err)
	assert.Zero(t, logs.Len())
}

func TestCheckoutWithIncompleteOrderDataIsRejected(t *testing.T) {
	f, provider, svc := newCheckoutFixture(t)

	_, err := svc.CreateSession(context.Background(), CheckoutCommand{
		Items: []models.CartItem{{Product: f.p1.ID, Quantity: 1}},
		Order: &CheckoutOrder{User: f.user.ID},
	})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Zero(t, provider.calls)
}

func TestCompleteCheckoutIgnoresSessionsWithoutOrderData(t *testing.T) {
	_, provider, svc := newCheckoutFixture(t)
	provider.event = payments.CompletedCheckout{SessionID: "cs_1"}
	provider.eventOK = true

	order, err := svc.CompleteCheckout(context.Background(), nil, "")
	require.NoError(t, err)
	assert.Nil(t, order)
}

func TestCompleteCheckoutRejectsBadSignature(t *testing.T) {
	_, provider, svc := newCheckoutFixture(t)
	provider.parseErr = payments.ErrInvalidSignature

	_, err := svc.CompleteCheckout(context.Background(), nil, "")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
