package services

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eshop_back_end/internal/apperr"
	"eshop_back_end/internal/models"
	"eshop_back_end/internal/repository/memory"
)

type orderFixture struct {
	orders  *memory.OrderStore
	catalog *memory.Catalog
	users   *memory.UserStore
	svc     *OrderService

	user     models.User
	category models.Category
	p1, p2   models.Product
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	f := &orderFixture{
		orders:  memory.NewOrderStore(),
		catalog: memory.NewCatalog(),
		users:   memory.NewUserStore(),
	}
	var err error
	f.user, err = f.users.InsertUser(context.Background(), models.User{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)

	f.category = f.catalog.PutCategory(models.Category{Name: "Lighting"})
	f.p1 = f.catalog.PutProduct(models.Product{Name: "Lamp", Price: decimal.RequireFromString("10.00"), Category: f.category.ID})
	f.p2 = f.catalog.PutProduct(models.Product{Name: "Bulb", Price: decimal.RequireFromString("5.50"), Category: f.category.ID})

	f.svc = NewOrderService(f.orders, f.catalog, f.users, nil, OrderServiceConfig{MaxFanOut: 2}, nil)
	return f
}

func (f *orderFixture) command(items ...models.CartItem) CreateOrderCommand {
	return CreateOrderCommand{
		Items: items,
		ShippingAddress: models.ShippingAddress{
			ShippingAddress1: "1 Main St",
			City:             "Springfield",
			Zip:              "12345",
			Country:          "US",
			Phone:            "555-0100",
		},
		User: f.user.ID,
	}
}

func TestCreateOrderComputesDecimalTotal(t *testing.T) {
	f := newOrderFixture(t)

	order, err := f.svc.CreateOrder(context.Background(), f.command(
		models.CartItem{Product: f.p1.ID, Quantity: 2},
		models.CartItem{Product: f.p2.ID, Quantity: 1},
	))
	require.NoError(t, err)

	assert.True(t, order.TotalPrice.Equal(decimal.RequireFromString("25.50")), order.TotalPrice.String())
	assert.Len(t, order.OrderItems, 2)
	assert.Equal(t, models.DefaultOrderStatus, order.Status)
	assert.Equal(t, f.user.ID, order.User)
	assert.False(t, order.DateOrdered.IsZero())
	assert.Equal(t, 2, f.orders.ItemCount())

	items, err := f.orders.FindOrderItems(context.Background(), order.OrderItems)
	require.NoError(t, err)
	byID := map[string]models.OrderItem{}
	for _, it := range items {
		byID[it.ID] = it
	}
	assert.Equal(t, f.p1.ID, byID[order.OrderItems[0]].Product)
	assert.Equal(t, f.p2.ID, byID[order.OrderItems[1]].Product)
}

func TestCreateOrderTotalIsOrderIndependent(t *testing.T) {
	f := newOrderFixture(t)
	prices := []string{"0.10", "0.20", "19.99", "3.33", "7"}
	items := make([]models.CartItem, 0, len(prices))
	for i, price := range prices {
		p := f.catalog.PutProduct(models.Product{Name: "p" + price, Price: decimal.RequireFromString(price)})
		items = append(items, models.CartItem{Product: p.ID, Quantity: i + 1})
	}

	rng := rand.New(rand.NewSource(42))
	var first decimal.Decimal
	for round := 0; round < 10; round++ {
		shuffled := append([]models.CartItem(nil), items...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		order, err := f.svc.CreateOrder(context.Background(), f.command(shuffled...))
		require.NoError(t, err)
		if round == 0 {
			first = order.TotalPrice
			continue
		}
		assert.True(t, first.Equal(order.TotalPrice), "round %d: %s != %s", round, first, order.TotalPrice)
	}
	assert.True(t, first.Equal(decimal.RequireFromString("108.79")), first.String())
}

func TestCreateOrderValidationWritesNothing(t *testing.T) {
	f := newOrderFixture(t)

	cases := map[string]CreateOrderCommand{
		"no items":        f.command(),
		"zero quantity":   f.command(models.CartItem{Product: f.p1.ID, Quantity: 0}),
		"malformed id":    f.command(models.CartItem{Product: "abc", Quantity: 1}),
		"unknown product": f.command(models.CartItem{Product: f.p1.ID, Quantity: 1}, models.CartItem{Product: uuid.NewString(), Quantity: 1}),
	}
	missingCity := f.command(models.CartItem{Product: f.p1.ID, Quantity: 1})
	missingCity.City = " "
	cases["missing city"] = missingCity
	unknownUser := f.command(models.CartItem{Product: f.p1.ID, Quantity: 1})
	unknownUser.User = "65f000000000000000000000"
	cases["unknown user"] = unknownUser

	for name, cmd := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.CreateOrder(context.Background(), cmd)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindValidation), err.Error())
		})
	}

	assert.Zero(t, f.orders.ItemCount())
	n, err := f.orders.CountOrders(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCreateOrderCompensatesWhenItemInsertFails(t *testing.T) {
	f := newOrderFixture(t)
	f.orders.Faults = memory.OrderFaults{InsertItem: errors.New("disk full"), ItemInsertsBeforeFailure: 2}

	_, err := f.svc.CreateOrder(context.Background(), f.command(
		models.CartItem{Product: f.p1.ID, Quantity: 1},
		models.CartItem{Product: f.p2.ID, Quantity: 1},
		models.CartItem{Product: f.p1.ID, Quantity: 3},
	))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
	assert.Zero(t, f.orders.ItemCount())
}

func TestCreateOrderCompensatesWhenCommitFails(t *testing.T) {
	f := newOrderFixture(t)
	f.orders.Faults = memory.OrderFaults{InsertOrder: errors.New("primary stepped down")}

	_, err := f.svc.CreateOrder(context.Background(), f.command(
		models.CartItem{Product: f.p1.ID, Quantity: 1},
		models.CartItem{Product: f.p2.ID, Quantity: 1},
	))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
	assert.Zero(t, f.orders.ItemCount())
}

// ctxOrderStore fails deletes on a done context, like a real driver.
type ctxOrderStore struct {
	*memory.OrderStore
}

func (s ctxOrderStore) DeleteOrderItems(ctx context.Context, ids []string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.OrderStore.DeleteOrderItems(ctx, ids)
}

func TestCompensationOutlivesCancelledRequest(t *testing.T) {
	f := newOrderFixture(t)
	store := ctxOrderStore{f.orders}
	svc := NewOrderService(store, f.catalog, f.users, nil, OrderServiceConfig{}, nil)

	item, err := f.orders.InsertOrderItem(context.Background(), models.OrderItem{Product: f.p1.ID, Quantity: 1})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cause := errors.New("commit failed")
	err = svc.compensate(ctx, []string{item.ID}, cause)
	assert.ErrorIs(t, err, cause)
	assert.Zero(t, f.orders.ItemCount())
}

func TestCreateOrderIdempotentReplay(t *testing.T) {
	f := newOrderFixture(t)
	cmd := f.command(models.CartItem{Product: f.p1.ID, Quantity: 1})
	cmd.IdempotencyKey = "retry-1"

	first, err := f.svc.CreateOrder(context.Background(), cmd)
	require.NoError(t, err)
	second, err := f.svc.CreateOrder(context.Background(), cmd)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	n, err := f.orders.CountOrders(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, 1, f.orders.ItemCount())
}

func TestCreateOrderReleasesKeyAfterFailure(t *testing.T) {
	f := newOrderFixture(t)
	cmd := f.command(models.CartItem{Product: f.p1.ID, Quantity: 1})
	cmd.IdempotencyKey = "retry-2"

	f.orders.Faults = memory.OrderFaults{InsertOrder: errors.New("timeout")}
	_, err := f.svc.CreateOrder(context.Background(), cmd)
	require.Error(t, err)

	f.orders.Faults = memory.OrderFaults{}
	order, err := f.svc.CreateOrder(context.Background(), cmd)
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
}

func TestCreateOrderInFlightKeyConflicts(t *testing.T) {
	f := newOrderFixture(t)
	_, err := f.svc.idem.Reserve(context.Background(), f.user.ID+":busy")
	require.NoError(t, err)

	cmd := f.command(models.CartItem{Product: f.p1.ID, Quantity: 1})
	cmd.IdempotencyKey = "busy"
	_, err = f.svc.CreateOrder(context.Background(), cmd)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestIdempotencyKeysAreScopedPerUser(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	other, err := f.users.InsertUser(ctx, models.User{Name: "Bob", Email: "bob@example.com"})
	require.NoError(t, err)

	cmd := f.command(models.CartItem{Product: f.p1.ID, Quantity: 1})
	cmd.IdempotencyKey = "shared"
	mine, err := f.svc.CreateOrder(ctx, cmd)
	require.NoError(t, err)

	cmd.User = other.ID
	theirs, err := f.svc.CreateOrder(ctx, cmd)
	require.NoError(t, err)

	assert.NotEqual(t, mine.ID, theirs.ID)
	assert.Equal(t, other.ID, theirs.User)
	n, err := f.orders.CountOrders(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestCreateOrderUsesCurrentPrice(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	before, err := f.svc.CreateOrder(ctx, f.command(models.CartItem{Product: f.p1.ID, Quantity: 1}))
	require.NoError(t, err)

	repriced := f.p1
	repriced.Price = decimal.RequireFromString("12.00")
	f.catalog.PutProduct(repriced)

	after, err := f.svc.CreateOrder(ctx, f.command(models.CartItem{Product: f.p1.ID, Quantity: 1}))
	require.NoError(t, err)

	assert.True(t, before.TotalPrice.Equal(decimal.RequireFromString("10.00")), before.TotalPrice.String())
	assert.True(t, after.TotalPrice.Equal(decimal.RequireFromString("12.00")), after.TotalPrice.String())
}

func TestGetOrderExpandsItemsProductsAndUser(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	gone, err := f.orders.InsertOrderItem(ctx, models.OrderItem{Product: uuid.NewString(), Quantity: 4})
	require.NoError(t, err)
	kept, err := f.orders.InsertOrderItem(ctx, models.OrderItem{Product: f.p1.ID, Quantity: 2})
	require.NoError(t, err)
	order, err := f.orders.InsertOrder(ctx, models.Order{
		OrderItems:  []string{kept.ID, gone.ID},
		Status:      models.DefaultOrderStatus,
		TotalPrice:  decimal.RequireFromString("20"),
		User:        f.user.ID,
		DateOrdered: time.Now(),
	})
	require.NoError(t, err)

	detail, err := f.svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)

	require.Len(t, detail.OrderItems, 2)
	require.NotNil(t, detail.OrderItems[0].Product)
	assert.Equal(t, "Lamp", detail.OrderItems[0].Product.Name)
	require.NotNil(t, detail.OrderItems[0].Product.Category)
	assert.Equal(t, "Lighting", detail.OrderItems[0].Product.Category.Name)
	assert.Nil(t, detail.OrderItems[1].Product)
	require.NotNil(t, detail.User)
	assert.Equal(t, "Ada", detail.User.Name)
}

func TestGetOrderNotFound(t *testing.T) {
	f := newOrderFixture(t)

	for _, id := range []string{"not-an-id", "65f000000000000000000000"} {
		_, err := f.svc.GetOrder(context.Background(), id)
		assert.True(t, apperr.Is(err, apperr.KindNotFound), id)
	}
}

func TestListOrdersNewestFirst(t *testing.T) {
	f := newOrderFixture(t)
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	f.svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Hour)
	}

	var ids []string
	for i := 0; i < 3; i++ {
		o, err := f.svc.CreateOrder(context.Background(), f.command(models.CartItem{Product: f.p1.ID, Quantity: 1}))
		require.NoError(t, err)
		ids = append(ids, o.ID)
	}

	list, err := f.svc.ListOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{list[0].ID, list[1].ID, list[2].ID})
	require.NotNil(t, list[0].User)
	assert.Equal(t, "Ada", list[0].User.Name)
}

func TestListUserOrders(t *testing.T) {
	f := newOrderFixture(t)
	_, err := f.svc.CreateOrder(context.Background(), f.command(models.CartItem{Product: f.p2.ID, Quantity: 2}))
	require.NoError(t, err)

	orders, err := f.svc.ListUserOrders(context.Background(), f.user.ID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Len(t, orders[0].OrderItems, 1)
	assert.Equal(t, "Bulb", orders[0].OrderItems[0].Product.Name)

	none, err := f.svc.ListUserOrders(context.Background(), "65f000000000000000000000")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = f.svc.ListUserOrders(context.Background(), "bogus")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestTotalSalesAndCount(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	total, err := f.svc.TotalSales(ctx)
	require.NoError(t, err)
	assert.True(t, total.IsZero())
	n, err := f.svc.CountOrders(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = f.svc.CreateOrder(ctx, f.command(models.CartItem{Product: f.p1.ID, Quantity: 2}, models.CartItem{Product: f.p2.ID, Quantity: 1}))
	require.NoError(t, err)
	_, err = f.svc.CreateOrder(ctx, f.command(models.CartItem{Product: f.p2.ID, Quantity: 1}))
	require.NoError(t, err)

	total, err = f.svc.TotalSales(ctx)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("31")), total.String())
	n, err = f.svc.CountOrders(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestDeleteOrderCascades(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order, err := f.svc.CreateOrder(ctx, f.command(models.CartItem{Product: f.p1.ID, Quantity: 2}, models.CartItem{Product: f.p2.ID, Quantity: 1}))
	require.NoError(t, err)

	_, err = f.svc.DeleteOrder(ctx, "65f000000000000000000000")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = f.svc.DeleteOrder(ctx, "bogus")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	n, err := f.svc.DeleteOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Zero(t, f.orders.ItemCount())

	_, err = f.svc.GetOrder(ctx, order.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDeleteOrderReportsPartialDelete(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order, err := f.svc.CreateOrder(ctx, f.command(models.CartItem{Product: f.p1.ID, Quantity: 1}))
	require.NoError(t, err)

	f.orders.Faults = memory.OrderFaults{DeleteOrder: errors.New("connection reset")}
	_, err = f.svc.DeleteOrder(ctx, order.ID)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
	assert.Contains(t, apperr.MessageOf(err), "partially deleted")
}

func TestUpdateOrderStatus(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order, err := f.svc.CreateOrder(ctx, f.command(models.CartItem{Product: f.p1.ID, Quantity: 1}))
	require.NoError(t, err)

	_, err = f.svc.UpdateOrderStatus(ctx, order.ID, "  ")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	updated, err := f.svc.UpdateOrderStatus(ctx, order.ID, "shipped")
	require.NoError(t, err)
	assert.Equal(t, "shipped", updated.Status)
	assert.True(t, updated.TotalPrice.Equal(order.TotalPrice))

	_, err = f.svc.UpdateOrderStatus(ctx, "65f000000000000000000000", "shipped")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
