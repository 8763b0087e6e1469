package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"eshop_back_end/internal/models"
	"eshop_back_end/internal/repository"
)

type Catalog struct {
	mu         sync.RWMutex
	products   map[string]models.Product
	categories map[string]models.Category
}

var (
	_ repository.Catalog       = (*Catalog)(nil)
	_ repository.CategoryStore = (*Catalog)(nil)
)

func NewCatalog() *Catalog {
	return &Catalog{
		products:   make(map[string]models.Product),
		categories: make(map[string]models.Category),
	}
}

// PutProduct stores p, assigning a random id when p.ID is empty.
func (c *Catalog) PutProduct(p models.Product) models.Product {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	c.products[p.ID] = p
	return p
}

func (c *Catalog) PutCategory(cat models.Category) models.Category {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cat.ID == "" {
		cat.ID = uuid.NewString()
	}
	c.categories[cat.ID] = cat
	return cat
}

func (c *Catalog) GetProduct(_ context.Context, id string) (models.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return models.Product{}, repository.ErrInvalidID
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.products[id]
	if !ok {
		return models.Product{}, repository.ErrNotFound
	}
	return p, nil
}

func (c *Catalog) ListProducts(_ context.Context, filter repository.ProductFilter) ([]models.Product, error) {
	for _, id := range append(append([]string(nil), filter.IDs...), filter.Categories...) {
		if _, err := uuid.Parse(id); err != nil {
			return nil, repository.ErrInvalidID
		}
	}
	ids := toSet(filter.IDs)
	cats := toSet(filter.Categories)

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Product, 0, len(c.products))
	for _, p := range c.products {
		if len(ids) > 0 && !ids[p.ID] {
			continue
		}
		if len(cats) > 0 && !cats[p.Category] {
			continue
		}
		if filter.FeaturedOnly && !p.IsFeatured {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (c *Catalog) CountProducts(context.Context) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return int64(len(c.products)), nil
}

func (c *Catalog) GetCategory(_ context.Context, id string) (models.Category, error) {
	if _, err := uuid.Parse(id); err != nil {
		return models.Category{}, repository.ErrInvalidID
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	cat, ok := c.categories[id]
	if !ok {
		return models.Category{}, repository.ErrNotFound
	}
	return cat, nil
}

func (c *Catalog) ListCategories(context.Context) ([]models.Category, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Category, 0, len(c.categories))
	for _, cat := range c.categories {
		out = append(out, cat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (c *Catalog) InsertCategory(_ context.Context, cat models.Category) (models.Category, error) {
	cat.ID = ""
	return c.PutCategory(cat), nil
}

func (c *Catalog) UpdateCategory(_ context.Context, id string, patch repository.CategoryPatch) (models.Category, error) {
	if _, err := uuid.Parse(id); err != nil {
		return models.Category{}, repository.ErrInvalidID
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	cat, ok := c.categories[id]
	if !ok {
		return models.Category{}, repository.ErrNotFound
	}
	if patch.Name != nil {
		cat.Name = *patch.Name
	}
	if patch.Icon != nil {
		cat.Icon = *patch.Icon
	}
	if patch.Color != nil {
		cat.Color = *patch.Color
	}
	c.categories[id] = cat
	return cat, nil
}

func (c *Catalog) DeleteCategory(_ context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return repository.ErrInvalidID
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.categories[id]; !ok {
		return repository.ErrNotFound
	}
	for _, p := range c.products {
		if p.Category == id {
			return repository.ErrInUse
		}
	}
	delete(c.categories, id)
	return nil
}

func toSet(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
