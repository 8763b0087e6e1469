package services

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"eshop_back_end/internal/apperr"
	"eshop_back_end/internal/models"
	"eshop_back_end/internal/repository"
)

// resolveProducts looks up every line's product with at most limit lookups in flight.
// The result is indexed like items. Unknown products are validation errors.
func resolveProducts(ctx context.Context, catalog repository.Catalog, items []models.CartItem, limit int) ([]models.Product, error) {
	products := make([]models.Product, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			p, err := catalog.GetProduct(gctx, item.Product)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrInvalidID) {
					return apperr.Validation(fmt.Sprintf("product %s does not exist", item.Product))
				}
				return apperr.Upstream("failed to load product", err)
			}
			products[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return products, nil
}

// cartLines carries the item rules shared by orders and checkout sessions.
type cartLines struct {
	Items []models.CartItem `json:"orderItems" binding:"required,min=1,dive"`
}

func validateItems(items []models.CartItem) error {
	return apperr.ValidateStruct(cartLines{Items: items})
}
