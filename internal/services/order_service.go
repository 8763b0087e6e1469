package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"eshop_back_end/internal/apperr"
	"eshop_back_end/internal/cache"
	"eshop_back_end/internal/logger"
	"eshop_back_end/internal/models"
	"eshop_back_end/internal/repository"
)

const (
	DefaultMaxFanOut           = 8
	DefaultCompensationTimeout = 10 * time.Second
)

// CreateOrderCommand is a submitted order before any write.
type CreateOrderCommand struct {
	Items []models.CartItem `json:"orderItems" binding:"required,min=1,dive"`
	models.ShippingAddress
	Status string `json:"status"`
	User   string `json:"user" binding:"required,mongodb"`

	IdempotencyKey string `json:"-"`
}

// normalized trims the free-text fields so whitespace-only values fail the required rules.
func (cmd CreateOrderCommand) normalized() CreateOrderCommand {
	cmd.ShippingAddress = cmd.ShippingAddress.Trimmed()
	cmd.Status = strings.TrimSpace(cmd.Status)
	cmd.User = strings.TrimSpace(cmd.User)
	cmd.IdempotencyKey = strings.TrimSpace(cmd.IdempotencyKey)
	return cmd
}

func (cmd CreateOrderCommand) validate() error {
	return apperr.ValidateStruct(cmd)
}

type OrderServiceConfig struct {
	MaxFanOut           int
	CompensationTimeout time.Duration
}

// OrderService creates orders from line items and serves the order read paths.
type OrderService struct {
	orders  repository.OrderStore
	catalog repository.Catalog
	users   repository.UserStore
	idem    cache.IdempotencyStore

	maxFanOut           int
	compensationTimeout time.Duration
	now                 func() time.Time
	log                 *zap.Logger
}

// NewOrderService wires the order flow. A nil idempotency store falls back to memory.
func NewOrderService(orders repository.OrderStore, catalog repository.Catalog, users repository.UserStore,
	idem cache.IdempotencyStore, cfg OrderServiceConfig, log *zap.Logger) *OrderService {
	if idem == nil {
		idem = cache.NewMemoryIdempotency(0)
	}
	if cfg.MaxFanOut <= 0 {
		cfg.MaxFanOut = DefaultMaxFanOut
	}
	if cfg.CompensationTimeout <= 0 {
		cfg.CompensationTimeout = DefaultCompensationTimeout
	}
	return &OrderService{
		orders:              orders,
		catalog:             catalog,
		users:               users,
		idem:                idem,
		maxFanOut:           cfg.MaxFanOut,
		compensationTimeout: cfg.CompensationTimeout,
		now:                 time.Now,
		log:                 logger.OrNop(log),
	}
}

// CreateOrder validates, resolves every product, stages one item per line, then commits the order.
// Staged items are removed again if staging or the commit fails.
func (s *OrderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (models.Order, error) {
	cmd = cmd.normalized()
	if err := cmd.validate(); err != nil {
		return models.Order{}, err
	}

	key := idempotencyScope(cmd.User, cmd.IdempotencyKey)
	if key != "" {
		reserved, err := s.idem.Reserve(ctx, key)
		if err != nil {
			return models.Order{}, apperr.Upstream("failed to reserve idempotency key", err)
		}
		if !reserved {
			return s.replay(ctx, key)
		}
	}

	order, err := s.createOrder(ctx, cmd, key)
	if err != nil && key != "" {
		releaseCtx, cancel := s.detached(ctx)
		defer cancel()
		if relErr := s.idem.Release(releaseCtx, key); relErr != nil {
			s.log.Warn("failed to release idempotency key", zap.String("key", key), zap.Error(relErr))
		}
	}
	return order, err
}

// idempotencyScope binds a client key to the ordering user, so one user's key
// never replays another user's order.
func idempotencyScope(user, key string) string {
	if key == "" {
		return ""
	}
	return user + ":" + key
}

func (s *OrderService) replay(ctx context.Context, key string) (models.Order, error) {
	order, err := s.orders.FindOrderByIdempotencyKey(ctx, key)
	switch {
	case err == nil:
		return order, nil
	case errors.Is(err, repository.ErrNotFound):
		return models.Order{}, apperr.Conflict("an order with this idempotency key is still being processed")
	default:
		return models.Order{}, apperr.Upstream("failed to load order", err)
	}
}

func (s *OrderService) createOrder(ctx context.Context, cmd CreateOrderCommand, key string) (models.Order, error) {
	if _, err := s.users.FindUser(ctx, cmd.User); err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrInvalidID) {
			return models.Order{}, apperr.Validation("user does not exist")
		}
		return models.Order{}, apperr.Upstream("failed to load user", err)
	}

	products, err := resolveProducts(ctx, s.catalog, cmd.Items, s.maxFanOut)
	if err != nil {
		return models.Order{}, err
	}

	itemIDs, err := s.stageItems(ctx, cmd.Items)
	if err != nil {
		return models.Order{}, s.compensate(ctx, itemIDs, apperr.Upstream("failed to create order items", err))
	}

	total := decimal.Zero
	for i, item := range cmd.Items {
		total = total.Add(products[i].Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	status := cmd.Status
	if status == "" {
		status = models.DefaultOrderStatus
	}

	created, err := s.orders.InsertOrder(ctx, models.Order{
		OrderItems:      itemIDs,
		ShippingAddress: cmd.ShippingAddress,
		Status:          status,
		TotalPrice:      total,
		User:            cmd.User,
		DateOrdered:     s.now().UTC(),
		IdempotencyKey:  key,
	})
	if err != nil {
		if key != "" && errors.Is(err, repository.ErrDuplicate) {
			if cerr := s.compensate(ctx, itemIDs, nil); cerr != nil {
				return models.Order{}, cerr
			}
			return s.replay(ctx, key)
		}
		return models.Order{}, s.compensate(ctx, itemIDs, apperr.Upstream("failed to create order", err))
	}

	s.log.Info("order created",
		zap.String("order_id", created.ID),
		zap.Int("items", len(itemIDs)),
		zap.String("total", total.String()),
	)
	return created, nil
}

// stageItems persists one item per line. On failure the ids staged so far are returned with the error.
func (s *OrderService) stageItems(ctx context.Context, items []models.CartItem) ([]string, error) {
	ids := make([]string, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxFanOut)

	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			staged, err := s.orders.InsertOrderItem(gctx, models.OrderItem{Product: item.Product, Quantity: item.Quantity})
			if err != nil {
				return err
			}
			ids[i] = staged.ID
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		staged := make([]string, 0, len(ids))
		for _, id := range ids {
			if id != "" {
				staged = append(staged, id)
			}
		}
		return staged, err
	}
	return ids, nil
}

// compensate deletes staged items on a context that outlives the request.
// It returns cause, or an upstream error when the cleanup itself fails.
func (s *OrderService) compensate(ctx context.Context, itemIDs []string, cause error) error {
	if len(itemIDs) == 0 {
		return cause
	}
	cctx, cancel := s.detached(ctx)
	defer cancel()

	n, err := s.orders.DeleteOrderItems(cctx, itemIDs)
	if err == nil && n != int64(len(itemIDs)) {
		err = fmt.Errorf("removed %d of %d staged items", n, len(itemIDs))
	}
	if err != nil {
		s.log.Error("order compensation failed, items left behind",
			zap.Strings("item_ids", itemIDs),
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
		return apperr.Upstream("failed to create order and to remove its staged items", err)
	}
	s.log.Warn("order creation rolled back", zap.Int("items", len(itemIDs)), zap.NamedError("cause", cause))
	return cause
}

func (s *OrderService) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.compensationTimeout)
}

// GetOrder returns the order with items expanded to product and category, and the user's name.
func (s *OrderService) GetOrder(ctx context.Context, id string) (models.OrderDetail, error) {
	order, err := s.orders.FindOrder(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrInvalidID) {
			return models.OrderDetail{}, apperr.NotFound("order not found")
		}
		return models.OrderDetail{}, apperr.Upstream("failed to load order", err)
	}
	details, err := s.expand(ctx, []models.Order{order})
	if err != nil {
		return models.OrderDetail{}, err
	}
	return details[0], nil
}

// ListOrders returns every order, newest first, with the user's name but item ids only.
func (s *OrderService) ListOrders(ctx context.Context) ([]models.OrderSummary, error) {
	orders, err := s.orders.ListOrders(ctx, "")
	if err != nil {
		return nil, apperr.Upstream("failed to list orders", err)
	}
	users, err := s.userRefs(ctx, orders)
	if err != nil {
		return nil, err
	}
	out := make([]models.OrderSummary, 0, len(orders))
	for _, o := range orders {
		out = append(out, o.Summary(users[o.User]))
	}
	return out, nil
}

// ListUserOrders returns one user's orders, newest first, fully expanded.
func (s *OrderService) ListUserOrders(ctx context.Context, userID string) ([]models.OrderDetail, error) {
	orders, err := s.orders.ListOrders(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidID) {
			return nil, apperr.Validation("invalid user id")
		}
		return nil, apperr.Upstream("failed to list orders", err)
	}
	return s.expand(ctx, orders)
}

func (s *OrderService) TotalSales(ctx context.Context) (decimal.Decimal, error) {
	total, err := s.orders.SumTotalPrice(ctx)
	if err != nil {
		return decimal.Zero, apperr.Upstream("the order sales cannot be generated", err)
	}
	return total, nil
}

func (s *OrderService) CountOrders(ctx context.Context) (int64, error) {
	n, err := s.orders.CountOrders(ctx)
	if err != nil {
		return 0, apperr.Upstream("failed to count orders", err)
	}
	return n, nil
}

// DeleteOrder removes the order and every item it references, returning the item count.
func (s *OrderService) DeleteOrder(ctx context.Context, id string) (int64, error) {
	n, err := s.orders.DeleteOrderCascade(ctx, id)
	switch {
	case err == nil:
		s.log.Info("order deleted", zap.String("order_id", id), zap.Int64("items", n))
		return n, nil
	case errors.Is(err, repository.ErrInvalidID):
		return 0, apperr.Validation("invalid order id")
	case errors.Is(err, repository.ErrNotFound):
		return 0, apperr.NotFound("order not found")
	case errors.Is(err, repository.ErrPartialDelete):
		s.log.Error("order partially deleted", zap.String("order_id", id), zap.Int64("items", n), zap.Error(err))
		return n, apperr.Upstream("order partially deleted: items were removed but the order remains", err)
	default:
		return 0, apperr.Upstream("failed to delete order", err)
	}
}

func (s *OrderService) UpdateOrderStatus(ctx context.Context, id, status string) (models.Order, error) {
	status = strings.TrimSpace(status)
	if status == "" {
		return models.Order{}, apperr.Validation("status is required")
	}
	order, err := s.orders.UpdateOrderStatus(ctx, id, status)
	switch {
	case err == nil:
		return order, nil
	case errors.Is(err, repository.ErrInvalidID):
		return models.Order{}, apperr.Validation("invalid order id")
	case errors.Is(err, repository.ErrNotFound):
		return models.Order{}, apperr.NotFound("order not found")
	default:
		return models.Order{}, apperr.Upstream("failed to update order", err)
	}
}

// expand loads items, products, categories and user names for orders in bulk.
func (s *OrderService) expand(ctx context.Context, orders []models.Order) ([]models.OrderDetail, error) {
	var itemIDs []string
	for _, o := range orders {
		itemIDs = append(itemIDs, o.OrderItems...)
	}

	items := map[string]models.OrderItem{}
	if len(itemIDs) > 0 {
		found, err := s.orders.FindOrderItems(ctx, itemIDs)
		if err != nil {
			return nil, apperr.Upstream("failed to load order items", err)
		}
		for _, it := range found {
			items[it.ID] = it
		}
	}

	productIDs := make([]string, 0, len(items))
	seen := map[string]bool{}
	for _, it := range items {
		if !seen[it.Product] {
			seen[it.Product] = true
			productIDs = append(productIDs, it.Product)
		}
	}
	products, err := s.productDetails(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	users, err := s.userRefs(ctx, orders)
	if err != nil {
		return nil, err
	}

	out := make([]models.OrderDetail, 0, len(orders))
	for _, o := range orders {
		lines := make([]models.OrderItemDetail, 0, len(o.OrderItems))
		for _, id := range o.OrderItems {
			it, ok := items[id]
			if !ok {
				continue
			}
			lines = append(lines, models.OrderItemDetail{ID: it.ID, Product: products[it.Product], Quantity: it.Quantity})
		}
		out = append(out, o.Detail(lines, users[o.User]))
	}
	return out, nil
}

// productDetails resolves products with their categories. Missing products map to nil.
func (s *OrderService) productDetails(ctx context.Context, ids []string) (map[string]*models.ProductDetail, error) {
	details := make([]*models.ProductDetail, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxFanOut)

	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			p, err := s.catalog.GetProduct(gctx, id)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrInvalidID) {
					return nil
				}
				return apperr.Upstream("failed to load product", err)
			}

			var category *models.Category
			if p.Category != "" {
				c, err := s.catalog.GetCategory(gctx, p.Category)
				switch {
				case err == nil:
					category = &c
				case errors.Is(err, repository.ErrNotFound), errors.Is(err, repository.ErrInvalidID):
				default:
					return apperr.Upstream("failed to load category", err)
				}
			}
			detail := p.WithCategory(category)
			details[i] = &detail
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]*models.ProductDetail, len(ids))
	for i, id := range ids {
		out[id] = details[i]
	}
	return out, nil
}

func (s *OrderService) userRefs(ctx context.Context, orders []models.Order) (map[string]*models.UserRef, error) {
	ids := make([]string, 0, len(orders))
	seen := map[string]bool{}
	for _, o := range orders {
		if !seen[o.User] {
			seen[o.User] = true
			ids = append(ids, o.User)
		}
	}
	if len(ids) == 0 {
		return map[string]*models.UserRef{}, nil
	}

	names, err := s.users.FindUserNames(ctx, ids)
	if err != nil {
		return nil, apperr.Upstream("failed to load users", err)
	}
	refs := make(map[string]*models.UserRef, len(names))
	for id, name := range names {
		refs[id] = &models.UserRef{ID: id, Name: name}
	}
	return refs, nil
}
