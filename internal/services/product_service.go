package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"eshop_back_end/internal/apperr"
	"eshop_back_end/internal/logger"
	"eshop_back_end/internal/models"
	"eshop_back_end/internal/repository"
)

const searchLimit = 50

// ProductService serves the catalog and the admin category writes.
type ProductService struct {
	catalog    repository.Catalog
	categories repository.CategoryStore
	searcher   ProductSearcher
	log        *zap.Logger
}

// CategoryInvalidator is implemented by catalogs that cache categories.
type CategoryInvalidator interface {
	InvalidateCategory(ctx context.Context, id string) error
}

// NewProductService builds the catalog service. searcher may be nil, in which case
// search scans the catalog. When catalog caches categories, writes through
// categories invalidate the cached entry.
func NewProductService(catalog repository.Catalog, categories repository.CategoryStore, searcher ProductSearcher, log *zap.Logger) *ProductService {
	return &ProductService{catalog: catalog, categories: categories, searcher: searcher, log: logger.OrNop(log)}
}

// ProductQuery filters a listing by product ids and category ids.
type ProductQuery struct {
	IDs        []string
	Categories []string
}

func (s *ProductService) ListProducts(ctx context.Context, q ProductQuery) ([]models.Product, error) {
	products, err := s.catalog.ListProducts(ctx, repository.ProductFilter{IDs: q.IDs, Categories: q.Categories})
	if err != nil {
		if errors.Is(err, repository.ErrInvalidID) {
			return nil, apperr.Validation("invalid product or category id")
		}
		return nil, apperr.Upstream("failed to list products", err)
	}
	return products, nil
}

// FeaturedProducts returns up to count featured products; zero means all of them.
func (s *ProductService) FeaturedProducts(ctx context.Context, count int) ([]models.Product, error) {
	if count < 0 {
		return nil, apperr.Validation("count must not be negative")
	}
	products, err := s.catalog.ListProducts(ctx, repository.ProductFilter{FeaturedOnly: true, Limit: count})
	if err != nil {
		return nil, apperr.Upstream("failed to list featured products", err)
	}
	return products, nil
}

// GetProduct returns the product with its category expanded.
func (s *ProductService) GetProduct(ctx context.Context, id string) (models.ProductDetail, error) {
	p, err := s.catalog.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrInvalidID) {
			return models.ProductDetail{}, apperr.NotFound("product not found")
		}
		return models.ProductDetail{}, apperr.Upstream("failed to load product", err)
	}

	var category *models.Category
	if p.Category != "" {
		c, err := s.catalog.GetCategory(ctx, p.Category)
		switch {
		case err == nil:
			category = &c
		case errors.Is(err, repository.ErrNotFound), errors.Is(err, repository.ErrInvalidID):
		default:
			return models.ProductDetail{}, apperr.Upstream("failed to load category", err)
		}
	}
	return p.WithCategory(category), nil
}

func (s *ProductService) CountProducts(ctx context.Context) (int64, error) {
	n, err := s.catalog.CountProducts(ctx)
	if err != nil {
		return 0, apperr.Upstream("failed to count products", err)
	}
	return n, nil
}

func (s *ProductService) ListCategories(ctx context.Context) ([]models.Category, error) {
	cats, err := s.catalog.ListCategories(ctx)
	if err != nil {
		return nil, apperr.Upstream("failed to list categories", err)
	}
	return cats, nil
}

func (s *ProductService) GetCategory(ctx context.Context, id string) (models.Category, error) {
	c, err := s.catalog.GetCategory(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrInvalidID) {
			return models.Category{}, apperr.NotFound("the category with the given id was not found")
		}
		return models.Category{}, apperr.Upstream("failed to load category", err)
	}
	return c, nil
}

// Search asks the search index first and falls back to scanning the catalog when
// the index is unavailable.
func (s *ProductService) Search(ctx context.Context, query string) ([]models.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.Validation("query parameter q is required")
	}

	if s.searcher != nil {
		ids, err := s.searcher.SearchProductIDs(ctx, query, searchLimit)
		if err == nil {
			return s.productsInOrder(ctx, ids)
		}
		s.log.Warn("search index unavailable, scanning catalog", zap.Error(err))
	}

	all, err := s.catalog.ListProducts(ctx, repository.ProductFilter{})
	if err != nil {
		return nil, apperr.Upstream("failed to search products", err)
	}
	q := strings.ToLower(query)
	out := make([]models.Product, 0)
	for _, p := range all {
		if strings.Contains(strings.ToLower(p.Name), q) ||
			strings.Contains(strings.ToLower(p.Description), q) ||
			strings.Contains(strings.ToLower(p.Brand), q) {
			out = append(out, p)
			if len(out) == searchLimit {
				break
			}
		}
	}
	return out, nil
}

// productsInOrder loads ids from the catalog keeping the ranking. Ids the catalog no longer has are dropped.
func (s *ProductService) productsInOrder(ctx context.Context, ids []string) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}
	found, err := s.catalog.ListProducts(ctx, repository.ProductFilter{IDs: ids})
	if err != nil && !errors.Is(err, repository.ErrInvalidID) {
		return nil, apperr.Upstream("failed to load products", err)
	}
	byID := make(map[string]models.Product, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	out := make([]models.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// CategoryInput is the category creation payload.
type CategoryInput struct {
	Name  string `json:"name" binding:"required"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

// CategoryUpdate sets the fields present in the payload.
type CategoryUpdate struct {
	Name  *string `json:"name" binding:"omitnil,min=1"`
	Icon  *string `json:"icon"`
	Color *string `json:"color"`
}

func (s *ProductService) CreateCategory(ctx context.Context, in CategoryInput) (models.Category, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := apperr.ValidateStruct(in); err != nil {
		return models.Category{}, err
	}
	cat, err := s.categories.InsertCategory(ctx, models.Category{Name: in.Name, Icon: in.Icon, Color: in.Color})
	if err != nil {
		return models.Category{}, apperr.Upstream("the category cannot be created", err)
	}
	s.log.Info("category created", zap.String("category_id", cat.ID))
	return cat, nil
}

func (s *ProductService) UpdateCategory(ctx context.Context, id string, in CategoryUpdate) (models.Category, error) {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		in.Name = &name
	}
	if err := apperr.ValidateStruct(in); err != nil {
		return models.Category{}, err
	}
	if in.Name == nil && in.Icon == nil && in.Color == nil {
		return models.Category{}, apperr.Validation("nothing to update")
	}

	cat, err := s.categories.UpdateCategory(ctx, id, repository.CategoryPatch{Name: in.Name, Icon: in.Icon, Color: in.Color})
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrInvalidID):
		return models.Category{}, apperr.Validation("invalid category id")
	case errors.Is(err, repository.ErrNotFound):
		return models.Category{}, apperr.NotFound("category not found")
	default:
		return models.Category{}, apperr.Upstream("failed to update category", err)
	}
	s.invalidateCategory(ctx, id)
	return cat, nil
}

func (s *ProductService) DeleteCategory(ctx context.Context, id string) error {
	err := s.categories.DeleteCategory(ctx, id)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrInvalidID):
		return apperr.Validation("invalid category id")
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("category not found")
	case errors.Is(err, repository.ErrInUse):
		return apperr.Conflict("the category still has products")
	default:
		return apperr.Upstream("failed to delete category", err)
	}
	s.invalidateCategory(ctx, id)
	s.log.Info("category deleted", zap.String("category_id", id))
	return nil
}

func (s *ProductService) invalidateCategory(ctx context.Context, id string) {
	inv, ok := s.catalog.(CategoryInvalidator)
	if !ok {
		return
	}
	if err := inv.InvalidateCategory(ctx, id); err != nil {
		s.log.Warn("failed to invalidate cached category", zap.String("category_id", id), zap.Error(err))
	}
}
