package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Image        string          `json:"image"`
	Brand        string          `json:"brand"`
	Price        decimal.Decimal `json:"price"`
	Category     string          `json:"category"`
	CountInStock int             `json:"countInStock"`
	IsFeatured   bool            `json:"isFeatured"`
	DateCreated  time.Time       `json:"dateCreated"`
}

// ProductDetail is a product with its category expanded.
type ProductDetail struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Image        string          `json:"image"`
	Brand        string          `json:"brand"`
	Price        decimal.Decimal `json:"price"`
	Category     *Category       `json:"category"`
	CountInStock int             `json:"countInStock"`
	IsFeatured   bool            `json:"isFeatured"`
	DateCreated  time.Time       `json:"dateCreated"`
}

func (p Product) WithCategory(c *Category) ProductDetail {
	return ProductDetail{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		Image:        p.Image,
		Brand:        p.Brand,
		Price:        p.Price,
		Category:     c,
		CountInStock: p.CountInStock,
		IsFeatured:   p.IsFeatured,
		DateCreated:  p.DateCreated,
	}
}
