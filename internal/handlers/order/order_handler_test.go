package order

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eshop_back_end/internal/handlers"
	"eshop_back_end/internal/models"
	"eshop_back_end/internal/payments"
	"eshop_back_end/internal/repository/memory"
	"eshop_back_end/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubProvider struct {
	req     payments.SessionRequest
	event   payments.CompletedCheckout
	eventOK bool
	sigErr  error
}

func (p *stubProvider) CreateCheckoutSession(_ context.Context, req payments.SessionRequest) (payments.Session, error) {
	p.req = req
	return payments.Session{ID: "cs_test_1"}, nil
}

func (p *stubProvider) ParseCheckoutCompleted([]byte, string) (payments.CompletedCheckout, bool, error) {
	return p.event, p.eventOK, p.sigErr
}

type fixture struct {
	router   *gin.Engine
	orders   *memory.OrderStore
	provider *stubProvider
	user     models.User
	lamp     models.Product
	bulb     models.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{orders: memory.NewOrderStore(), provider: &stubProvider{}}
	catalog := memory.NewCatalog()
	users := memory.NewUserStore()

	var err error
	f.user, err = users.InsertUser(context.Background(), models.User{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)
	cat := catalog.PutCategory(models.Category{Name: "Lighting"})
	f.lamp = catalog.PutProduct(models.Product{Name: "Lamp", Price: decimal.RequireFromString("10.00"), Category: cat.ID})
	f.bulb = catalog.PutProduct(models.Product{Name: "Bulb", Price: decimal.RequireFromString("5.50"), Category: cat.ID})

	orderSvc := services.NewOrderService(f.orders, catalog, users, nil, services.OrderServiceConfig{}, nil)
	checkout := services.NewCheckoutService(catalog, f.provider, orderSvc, services.CheckoutConfig{}, nil)
	h := NewHandler(orderSvc, checkout, handlers.NewResponder(false, nil))

	r := gin.New()
	r.GET("/orders", h.ListOrders)
	r.POST("/orders", h.CreateOrder)
	r.POST("/orders/create-checkout-session", h.CreateCheckoutSession)
	r.POST("/orders/checkout-webhook", h.CheckoutWebhook)
	r.GET("/orders/get/totalsales", h.TotalSales)
	r.GET("/orders/get/count", h.CountOrders)
	r.GET("/orders/get/userorders/:userid", h.UserOrders)
	r.GET("/orders/:id", h.GetOrder)
	r.PUT("/orders/:id", h.UpdateOrder)
	r.DELETE("/orders/:id", h.DeleteOrder)
	f.router = r
	return f
}

func (f *fixture) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) orderBody() string {
	return `{
		"orderItems": [{"product": "` + f.lamp.ID + `", "quantity": 2}, {"product": "` + f.bulb.ID + `", "quantity": 1}],
		"shippingAddress1": "1 Main St", "city": "Springfield", "zip": "12345",
		"country": "US", "phone": "555-0100", "user": "` + f.user.ID + `"
	}`
}

func (f *fixture) createOrder(t *testing.T, headers ...string) models.Order {
	t.Helper()
	w := f.do(http.MethodPost, "/orders", f.orderBody(), headers...)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var order models.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))
	return order
}

func TestCreateOrderReturnsTotal(t *testing.T) {
	f := newFixture(t)

	order := f.createOrder(t)
	assert.True(t, order.TotalPrice.Equal(decimal.RequireFromString("25.50")))
	assert.Equal(t, models.DefaultOrderStatus, order.Status)
	assert.Len(t, order.OrderItems, 2)
}

func TestCreateOrderValidation(t *testing.T) {
	f := newFixture(t)

	cases := map[string]string{
		"bad json":      `{"orderItems":`,
		"no items":      `{"orderItems": [], "user": "` + f.user.ID + `"}`,
		"missing phone": strings.Replace(f.orderBody(), `"phone": "555-0100",`, "", 1),
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := f.do(http.MethodPost, "/orders", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), `"success":false`)
		})
	}
	assert.Zero(t, f.orders.ItemCount())
}

func TestCreateOrderValidationNamesField(t *testing.T) {
	f := newFixture(t)

	body := strings.Replace(f.orderBody(), `"quantity": 1`, `"quantity": -1`, 1)
	w := f.do(http.MethodPost, "/orders", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"orderItems[1].quantity must be greater than 0"}`, w.Body.String())

	body = strings.Replace(f.orderBody(), `"city": "Springfield",`, "", 1)
	w = f.do(http.MethodPost, "/orders", body)
	assert.JSONEq(t, `{"success":false,"message":"city is required"}`, w.Body.String())
}

func TestCreateOrderIdempotencyHeader(t *testing.T) {
	f := newFixture(t)

	first := f.createOrder(t, "Idempotency-Key", "abc")
	second := f.createOrder(t, "Idempotency-Key", "abc")
	assert.Equal(t, first.ID, second.ID)

	w := f.do(http.MethodGet, "/orders/get/count", "")
	assert.JSONEq(t, `{"count":1}`, w.Body.String())
}

func TestDeleteThenGetIsNotFound(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)

	w := f.do(http.MethodDelete, "/orders/"+f.user.ID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(http.MethodDelete, "/orders/"+order.ID, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"message":"the order is deleted"}`, w.Body.String())

	w = f.do(http.MethodGet, "/orders/"+order.ID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Zero(t, f.orders.ItemCount())

	w = f.do(http.MethodDelete, "/orders/not-an-id", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetOrderExpanded(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)

	w := f.do(http.MethodGet, "/orders/"+order.ID, "")
	require.Equal(t, http.StatusOK, w.Code)

	var detail models.OrderDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	require.Len(t, detail.OrderItems, 2)
	require.NotNil(t, detail.OrderItems[0].Product)
	assert.Equal(t, "Lamp", detail.OrderItems[0].Product.Name)
	require.NotNil(t, detail.OrderItems[0].Product.Category)
	assert.Equal(t, "Lighting", detail.OrderItems[0].Product.Category.Name)
	require.NotNil(t, detail.User)
	assert.Equal(t, "Ada", detail.User.Name)
}

func TestReports(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/orders/get/totalsales", "")
	require.Equal(t, http.StatusOK, w.Code)
	var sales struct {
		TotalSales decimal.Decimal `json:"totalSales"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sales))
	assert.True(t, sales.TotalSales.IsZero())

	w = f.do(http.MethodGet, "/orders/get/count", "")
	assert.JSONEq(t, `{"count":0}`, w.Body.String())

	f.createOrder(t)
	f.createOrder(t)
	w = f.do(http.MethodGet, "/orders/get/totalsales", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sales))
	assert.True(t, sales.TotalSales.Equal(decimal.RequireFromString("51")))

	w = f.do(http.MethodGet, "/orders/get/userorders/"+f.user.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	var history []models.OrderDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	assert.Len(t, history, 2)

	w = f.do(http.MethodGet, "/orders", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.OrderSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 2)
}

func TestUpdateOrderStatus(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)

	w := f.do(http.MethodPut, "/orders/"+order.ID, `{"status":"shipped"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var updated models.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, "shipped", updated.Status)

	w = f.do(http.MethodPut, "/orders/"+order.ID, `{"status":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckoutAcceptsBareArray(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/orders/create-checkout-session",
		`[{"product":"`+f.bulb.ID+`","quantity":3}]`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"id":"cs_test_1"}`, w.Body.String())
	require.Len(t, f.provider.req.Items, 1)
	assert.EqualValues(t, 550, f.provider.req.Items[0].UnitAmount)
	assert.Empty(t, f.provider.req.Metadata)
}

func TestCheckoutWithOrderDataThenWebhook(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/orders/create-checkout-session", f.orderBody())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotEmpty(t, f.provider.req.Metadata)
	assert.Zero(t, f.orders.ItemCount())

	f.provider.event = payments.CompletedCheckout{SessionID: "cs_test_1", Metadata: f.provider.req.Metadata}
	f.provider.eventOK = true

	w = f.do(http.MethodPost, "/orders/checkout-webhook", `{}`, "Stripe-Signature", "t=1,v1=abc")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res struct {
		Received bool   `json:"received"`
		Order    string `json:"order"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.Received)
	assert.NotEmpty(t, res.Order)

	w = f.do(http.MethodGet, "/orders/"+res.Order, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"paid"`)
}

func TestCheckoutRejections(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/orders/create-checkout-session", `[]`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = f.do(http.MethodPost, "/orders/create-checkout-session", `nope`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.provider.sigErr = payments.ErrInvalidSignature
	w = f.do(http.MethodPost, "/orders/checkout-webhook", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckoutRejectsOversizedBody(t *testing.T) {
	f := newFixture(t)
	line := `{"product":"` + f.bulb.ID + `","quantity":1},`
	body := "[" + strings.Repeat(line, maxCheckoutBody/len(line)+1) + `{"product":"` + f.bulb.ID + `","quantity":1}]`

	w := f.do(http.MethodPost, "/orders/create-checkout-session", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, f.provider.req.Items)
}

func TestParseCheckout(t *testing.T) {
	cmd, err := parseCheckout([]byte(` [{"product":"p","quantity":1}]`))
	require.NoError(t, err)
	assert.Len(t, cmd.Items, 1)
	assert.Nil(t, cmd.Order)

	cmd, err = parseCheckout([]byte(`{"orderItems":[{"product":"p","quantity":1}]}`))
	require.NoError(t, err)
	assert.Nil(t, cmd.Order)

	cmd, err = parseCheckout([]byte(`{"orderItems":[],"user":"u","city":"X"}`))
	require.NoError(t, err)
	require.NotNil(t, cmd.Order)
	assert.Equal(t, "X", cmd.Order.City)
}
