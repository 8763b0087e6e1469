// Package memory provides in-process implementations of the repository interfaces.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"eshop_back_end/internal/models"
	"eshop_back_end/internal/repository"
)

// OrderFaults injects failures into an OrderStore.
type OrderFaults struct {
	// InsertItem fails every item insert after the first ItemInsertsBeforeFailure succeed.
	InsertItem               error
	ItemInsertsBeforeFailure int
	InsertOrder              error
	DeleteOrder              error
}

type OrderStore struct {
	mu     sync.Mutex
	orders map[string]models.Order
	items  map[string]models.OrderItem
	itemOK int
	Faults OrderFaults
}

var _ repository.OrderStore = (*OrderStore)(nil)

func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders: make(map[string]models.Order),
		items:  make(map[string]models.OrderItem),
	}
}

func (s *OrderStore) InsertOrderItem(_ context.Context, item models.OrderItem) (models.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Faults.InsertItem != nil && s.itemOK >= s.Faults.ItemInsertsBeforeFailure {
		return models.OrderItem{}, s.Faults.InsertItem
	}
	s.itemOK++
	item.ID = primitive.NewObjectID().Hex()
	s.items[item.ID] = item
	return item, nil
}

func (s *OrderStore) FindOrderItems(_ context.Context, ids []string) ([]models.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.OrderItem, 0, len(ids))
	for _, id := range ids {
		if item, ok := s.items[id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *OrderStore) DeleteOrderItems(_ context.Context, ids []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteItemsLocked(ids), nil
}

func (s *OrderStore) deleteItemsLocked(ids []string) int64 {
	var n int64
	for _, id := range ids {
		if _, ok := s.items[id]; ok {
			delete(s.items, id)
			n++
		}
	}
	return n
}

func (s *OrderStore) InsertOrder(_ context.Context, order models.Order) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Faults.InsertOrder != nil {
		return models.Order{}, s.Faults.InsertOrder
	}
	if !primitive.IsValidObjectID(order.User) {
		return models.Order{}, repository.ErrInvalidID
	}
	if order.IdempotencyKey != "" {
		for _, existing := range s.orders {
			if existing.IdempotencyKey == order.IdempotencyKey {
				return models.Order{}, repository.ErrDuplicate
			}
		}
	}
	order.ID = primitive.NewObjectID().Hex()
	order.OrderItems = append([]string(nil), order.OrderItems...)
	s.orders[order.ID] = order
	return order, nil
}

func (s *OrderStore) FindOrder(_ context.Context, id string) (models.Order, error) {
	if !primitive.IsValidObjectID(id) {
		return models.Order{}, repository.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return models.Order{}, repository.ErrNotFound
	}
	return order, nil
}

func (s *OrderStore) FindOrderByIdempotencyKey(_ context.Context, key string) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, order := range s.orders {
		if key != "" && order.IdempotencyKey == key {
			return order, nil
		}
	}
	return models.Order{}, repository.ErrNotFound
}

func (s *OrderStore) ListOrders(_ context.Context, userID string) ([]models.Order, error) {
	if userID != "" && !primitive.IsValidObjectID(userID) {
		return nil, repository.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Order, 0, len(s.orders))
	for _, order := range s.orders {
		if userID == "" || order.User == userID {
			out = append(out, order)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DateOrdered.After(out[j].DateOrdered)
	})
	return out, nil
}

func (s *OrderStore) UpdateOrderStatus(_ context.Context, id, status string) (models.Order, error) {
	if !primitive.IsValidObjectID(id) {
		return models.Order{}, repository.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return models.Order{}, repository.ErrNotFound
	}
	order.Status = status
	s.orders[id] = order
	return order, nil
}

func (s *OrderStore) DeleteOrderCascade(_ context.Context, id string) (int64, error) {
	if !primitive.IsValidObjectID(id) {
		return 0, repository.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	n := s.deleteItemsLocked(order.OrderItems)
	if s.Faults.DeleteOrder != nil {
		return n, repository.ErrPartialDelete
	}
	delete(s.orders, id)
	return n, nil
}

func (s *OrderStore) SumTotalPrice(context.Context) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := decimal.Zero
	for _, order := range s.orders {
		total = total.Add(order.TotalPrice)
	}
	return total, nil
}

func (s *OrderStore) CountOrders(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.orders)), nil
}

// ItemCount reports how many order items are stored.
func (s *OrderStore) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
