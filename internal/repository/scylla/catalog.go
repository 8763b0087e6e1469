// Package scylla stores the product catalog in a ScyllaDB keyspace.
package scylla

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"eshop_back_end/internal/models"
	"eshop_back_end/internal/repository"
)

const productColumns = `product_id, name, description, image, brand, price, category_id, count_in_stock, is_featured, date_created`

// Catalog serves products and categories from the tables
// products, products_by_category and categories.
type Catalog struct {
	session *gocql.Session
}

var (
	_ repository.Catalog       = (*Catalog)(nil)
	_ repository.CategoryStore = (*Catalog)(nil)
)

func NewCatalog(session *gocql.Session) *Catalog {
	return &Catalog{session: session}
}

func parseUUID(id string) (gocql.UUID, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return gocql.UUID{}, repository.ErrInvalidID
	}
	return gocql.UUID(u), nil
}

type productRow struct {
	id, categoryID    gocql.UUID
	name, description string
	image, brand      string
	price             float64
	countInStock      int
	isFeatured        bool
	dateCreated       time.Time
}

func (r *productRow) dest() []interface{} {
	return []interface{}{&r.id, &r.name, &r.description, &r.image, &r.brand, &r.price,
		&r.categoryID, &r.countInStock, &r.isFeatured, &r.dateCreated}
}

func (r productRow) toModel() models.Product {
	p := models.Product{
		ID:           r.id.String(),
		Name:         r.name,
		Description:  r.description,
		Image:        r.image,
		Brand:        r.brand,
		Price:        decimal.NewFromFloat(r.price),
		CountInStock: r.countInStock,
		IsFeatured:   r.isFeatured,
		DateCreated:  r.dateCreated,
	}
	if r.categoryID != (gocql.UUID{}) {
		p.Category = r.categoryID.String()
	}
	return p
}

func (c *Catalog) GetProduct(ctx context.Context, id string) (models.Product, error) {
	pid, err := parseUUID(id)
	if err != nil {
		return models.Product{}, err
	}

	var row productRow
	err = c.session.Query(`SELECT `+productColumns+` FROM products WHERE product_id = ?`, pid).
		WithContext(ctx).Scan(row.dest()...)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return models.Product{}, repository.ErrNotFound
		}
		return models.Product{}, fmt.Errorf("scylla: get product: %w", err)
	}
	return row.toModel(), nil
}

func (c *Catalog) ListProducts(ctx context.Context, filter repository.ProductFilter) ([]models.Product, error) {
	var (
		products []models.Product
		err      error
	)
	switch {
	case len(filter.Categories) > 0:
		products, err = c.productsByCategory(ctx, filter.Categories)
	case len(filter.IDs) > 0:
		products, err = c.productsByID(ctx, filter.IDs)
	case filter.FeaturedOnly:
		products, err = c.scanProducts(c.session.Query(
			`SELECT `+productColumns+` FROM products WHERE is_featured = ? ALLOW FILTERING`, true).WithContext(ctx))
	default:
		products, err = c.scanProducts(c.session.Query(`SELECT ` + productColumns + ` FROM products`).WithContext(ctx))
	}
	if err != nil {
		return nil, err
	}

	keep := make(map[string]bool, len(filter.IDs))
	for _, id := range filter.IDs {
		keep[id] = true
	}
	filtered := products[:0]
	for _, p := range products {
		if len(filter.Categories) > 0 && len(keep) > 0 && !keep[p.ID] {
			continue
		}
		if filter.FeaturedOnly && !p.IsFeatured {
			continue
		}
		filtered = append(filtered, p)
	}
	products = filtered

	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	if filter.Limit > 0 && len(products) > filter.Limit {
		products = products[:filter.Limit]
	}
	return products, nil
}

func (c *Catalog) productsByID(ctx context.Context, ids []string) ([]models.Product, error) {
	pids := make([]gocql.UUID, 0, len(ids))
	for _, id := range ids {
		pid, err := parseUUID(id)
		if err != nil {
			return nil, err
		}
		pids = append(pids, pid)
	}
	q := c.session.Query(`SELECT `+productColumns+` FROM products WHERE product_id IN ?`, pids).WithContext(ctx)
	return c.scanProducts(q)
}

// productsByCategory resolves ids through the products_by_category index table.
func (c *Catalog) productsByCategory(ctx context.Context, categories []string) ([]models.Product, error) {
	var ids []string
	for _, cat := range categories {
		cid, err := parseUUID(cat)
		if err != nil {
			return nil, err
		}
		iter := c.session.Query(`SELECT product_id FROM products_by_category WHERE category_id = ?`, cid).
			WithContext(ctx).Iter()
		var pid gocql.UUID
		for iter.Scan(&pid) {
			ids = append(ids, pid.String())
		}
		if err := iter.Close(); err != nil {
			return nil, fmt.Errorf("scylla: products by category: %w", err)
		}
	}
	if len(ids) == 0 {
		return []models.Product{}, nil
	}
	return c.productsByID(ctx, ids)
}

func (c *Catalog) scanProducts(q *gocql.Query) ([]models.Product, error) {
	iter := q.Iter()
	products := make([]models.Product, 0, iter.NumRows())
	var row productRow
	for iter.Scan(row.dest()...) {
		products = append(products, row.toModel())
		row = productRow{}
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("scylla: list products: %w", err)
	}
	return products, nil
}

func (c *Catalog) CountProducts(ctx context.Context) (int64, error) {
	var n int64
	if err := c.session.Query(`SELECT COUNT(*) FROM products`).WithContext(ctx).Scan(&n); err != nil {
		return 0, fmt.Errorf("scylla: count products: %w", err)
	}
	return n, nil
}

func (c *Catalog) GetCategory(ctx context.Context, id string) (models.Category, error) {
	cid, err := parseUUID(id)
	if err != nil {
		return models.Category{}, err
	}

	var cat models.Category
	var got gocql.UUID
	err = c.session.Query(`SELECT category_id, name, icon, color FROM categories WHERE category_id = ?`, cid).
		WithContext(ctx).Scan(&got, &cat.Name, &cat.Icon, &cat.Color)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return models.Category{}, repository.ErrNotFound
		}
		return models.Category{}, fmt.Errorf("scylla: get category: %w", err)
	}
	cat.ID = got.String()
	return cat, nil
}

func (c *Catalog) ListCategories(ctx context.Context) ([]models.Category, error) {
	iter := c.session.Query(`SELECT category_id, name, icon, color FROM categories`).WithContext(ctx).Iter()

	var (
		out []models.Category
		id  gocql.UUID
		cat models.Category
	)
	for iter.Scan(&id, &cat.Name, &cat.Icon, &cat.Color) {
		cat.ID = id.String()
		out = append(out, cat)
		cat = models.Category{}
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("scylla: list categories: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (c *Catalog) InsertCategory(ctx context.Context, cat models.Category) (models.Category, error) {
	id := gocql.UUID(uuid.New())
	err := c.session.Query(`INSERT INTO categories (category_id, name, icon, color) VALUES (?, ?, ?, ?)`,
		id, cat.Name, cat.Icon, cat.Color).WithContext(ctx).Exec()
	if err != nil {
		return models.Category{}, fmt.Errorf("scylla: insert category: %w", err)
	}
	cat.ID = id.String()
	return cat, nil
}

// UpdateCategory sets only the patched columns. IF EXISTS keeps the update from
// creating a row for an unknown id.
func (c *Catalog) UpdateCategory(ctx context.Context, id string, patch repository.CategoryPatch) (models.Category, error) {
	cid, err := parseUUID(id)
	if err != nil {
		return models.Category{}, err
	}

	columns := []struct {
		name  string
		value *string
	}{{"name", patch.Name}, {"icon", patch.Icon}, {"color", patch.Color}}

	var (
		sets   []string
		values []interface{}
	)
	for _, col := range columns {
		if col.value != nil {
			sets = append(sets, col.name+" = ?")
			values = append(values, *col.value)
		}
	}
	if len(sets) == 0 {
		return c.GetCategory(ctx, id)
	}
	values = append(values, cid)

	applied, err := c.session.Query(`UPDATE categories SET `+strings.Join(sets, ", ")+` WHERE category_id = ? IF EXISTS`, values...).
		WithContext(ctx).ScanCAS()
	if err != nil {
		return models.Category{}, fmt.Errorf("scylla: update category: %w", err)
	}
	if !applied {
		return models.Category{}, repository.ErrNotFound
	}
	return c.GetCategory(ctx, id)
}

// DeleteCategory refuses while products_by_category still lists products under the id.
func (c *Catalog) DeleteCategory(ctx context.Context, id string) error {
	cid, err := parseUUID(id)
	if err != nil {
		return err
	}

	var n int64
	if err := c.session.Query(`SELECT COUNT(*) FROM products_by_category WHERE category_id = ?`, cid).
		WithContext(ctx).Scan(&n); err != nil {
		return fmt.Errorf("scylla: count category products: %w", err)
	}
	if n > 0 {
		return repository.ErrInUse
	}

	applied, err := c.session.Query(`DELETE FROM categories WHERE category_id = ? IF EXISTS`, cid).WithContext(ctx).ScanCAS()
	if err != nil {
		return fmt.Errorf("scylla: delete category: %w", err)
	}
	if !applied {
		return repository.ErrNotFound
	}
	return nil
}
