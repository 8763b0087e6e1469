package product

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"eshop_back_end/internal/handlers"
	"eshop_back_end/internal/models"
	"eshop_back_end/internal/services"
)

// Catalog is the product service as the handlers use it.
type Catalog interface {
	ListProducts(ctx context.Context, q services.ProductQuery) ([]models.Product, error)
	GetProduct(ctx context.Context, id string) (models.ProductDetail, error)
	CountProducts(ctx context.Context) (int64, error)
	FeaturedProducts(ctx context.Context, count int) ([]models.Product, error)
	Search(ctx context.Context, query string) ([]models.Product, error)

	ListCategories(ctx context.Context) ([]models.Category, error)
	GetCategory(ctx context.Context, id string) (models.Category, error)
	CreateCategory(ctx context.Context, in services.CategoryInput) (models.Category, error)
	UpdateCategory(ctx context.Context, id string, in services.CategoryUpdate) (models.Category, error)
	DeleteCategory(ctx context.Context, id string) error
}

// Linker resolves an upload path to a downloadable URL.
type Linker interface {
	Link(ctx context.Context, file string) (string, error)
}

type Handler struct {
	catalog Catalog
	uploads Linker
	resp    *handlers.Responder
}

// NewHandler builds the catalog handlers. uploads may be nil when no object store is configured.
func NewHandler(catalog Catalog, uploads Linker, resp *handlers.Responder) *Handler {
	return &Handler{catalog: catalog, uploads: uploads, resp: resp}
}

// GET /products?categories=a,b&productsId=x,y
func (h *Handler) ListProducts(c *gin.Context) {
	q := services.ProductQuery{
		IDs:        splitList(c.Query("productsId")),
		Categories: splitList(c.Query("categories")),
	}

	products, err := h.catalog.ListProducts(c.Request.Context(), q)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func splitList(v string) []string {
	var out []string
	for _, id := range strings.Split(v, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// GET /products/:id
func (h *Handler) GetProduct(c *gin.Context) {
	product, err := h.catalog.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// GET /products/search?q=
func (h *Handler) SearchProducts(c *gin.Context) {
	products, err := h.catalog.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

// GET /products/get/count
func (h *Handler) CountProducts(c *gin.Context) {
	n, err := h.catalog.CountProducts(c.Request.Context())
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

// GET /products/get/featured/:count
func (h *Handler) FeaturedProducts(c *gin.Context) {
	count, err := strconv.Atoi(c.Param("count"))
	if err != nil {
		h.resp.BadRequest(c, "count must be a number")
		return
	}
	products, err := h.catalog.FeaturedProducts(c.Request.Context(), count)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}
