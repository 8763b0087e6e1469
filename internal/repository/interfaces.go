package repository

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"eshop_back_end/internal/models"
)

var (
	// ErrNotFound signals that no document matched.
	ErrNotFound = errors.New("repository: not found")
	// ErrInvalidID signals an identifier the store cannot parse.
	ErrInvalidID = errors.New("repository: invalid id")
	// ErrDuplicate signals a unique constraint violation.
	ErrDuplicate = errors.New("repository: duplicate")
	// ErrPartialDelete signals that an order's items were removed but the order itself was not.
	ErrPartialDelete = errors.New("repository: order items deleted but order remains")
	// ErrInUse signals a delete refused because other records still reference the target.
	ErrInUse = errors.New("repository: still referenced")
)

// OrderStore persists orders and their items.
type OrderStore interface {
	InsertOrderItem(ctx context.Context, item models.OrderItem) (models.OrderItem, error)
	FindOrderItems(ctx context.Context, ids []string) ([]models.OrderItem, error)
	DeleteOrderItems(ctx context.Context, ids []string) (int64, error)

	InsertOrder(ctx context.Context, order models.Order) (models.Order, error)
	FindOrder(ctx context.Context, id string) (models.Order, error)
	FindOrderByIdempotencyKey(ctx context.Context, key string) (models.Order, error)
	// ListOrders returns orders sorted by DateOrdered descending. An empty userID lists all.
	ListOrders(ctx context.Context, userID string) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, id, status string) (models.Order, error)
	// DeleteOrderCascade removes the order's items, then the order, returning the item count.
	DeleteOrderCascade(ctx context.Context, id string) (int64, error)

	SumTotalPrice(ctx context.Context) (decimal.Decimal, error)
	CountOrders(ctx context.Context) (int64, error)
}

// ProductFilter narrows a product listing. Set filters combine; Limit caps the
// result when positive.
type ProductFilter struct {
	IDs          []string
	Categories   []string
	FeaturedOnly bool
	Limit        int
}

// Catalog is the read-only product and category lookup.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (models.Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, error)
	CountProducts(ctx context.Context) (int64, error)
	GetCategory(ctx context.Context, id string) (models.Category, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
}

// CategoryPatch holds the fields an update sets; nil fields are left unchanged.
type CategoryPatch struct {
	Name  *string
	Icon  *string
	Color *string
}

// CategoryStore is the admin write side of the catalog.
type CategoryStore interface {
	InsertCategory(ctx context.Context, category models.Category) (models.Category, error)
	UpdateCategory(ctx context.Context, id string, patch CategoryPatch) (models.Category, error)
	// DeleteCategory fails with ErrInUse while products are still filed under the category.
	DeleteCategory(ctx context.Context, id string) error
}

// UserPatch holds the fields an update sets; nil fields are left unchanged.
type UserPatch struct {
	Name         *string
	Email        *string
	PasswordHash *string
	Phone        *string
	IsAdmin      *bool
	Street       *string
	Apartment    *string
	Zip          *string
	City         *string
	Country      *string
}

type UserStore interface {
	InsertUser(ctx context.Context, user models.User) (models.User, error)
	FindUser(ctx context.Context, id string) (models.User, error)
	FindUserByEmail(ctx context.Context, email string) (models.User, error)
	// ListUsers returns users sorted by name.
	ListUsers(ctx context.Context) ([]models.User, error)
	CountUsers(ctx context.Context) (int64, error)
	UpdateUser(ctx context.Context, id string, patch UserPatch) (models.User, error)
	DeleteUser(ctx context.Context, id string) error
	// FindUserNames maps user id to display name; unknown ids are omitted.
	FindUserNames(ctx context.Context, ids []string) (map[string]string, error)
}
