package product

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"eshop_back_end/internal/apperr"
	"eshop_back_end/internal/services"
)

// GET /categories
func (h *Handler) ListCategories(c *gin.Context) {
	categories, err := h.catalog.ListCategories(c.Request.Context())
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

// GET /categories/:id
func (h *Handler) GetCategory(c *gin.Context) {
	category, err := h.catalog.GetCategory(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

// POST /categories
func (h *Handler) CreateCategory(c *gin.Context) {
	var in services.CategoryInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.resp.Error(c, apperr.Binding(err, "invalid category payload"))
		return
	}
	category, err := h.catalog.CreateCategory(c.Request.Context(), in)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

// PUT /categories/:id
func (h *Handler) UpdateCategory(c *gin.Context) {
	var in services.CategoryUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		h.resp.Error(c, apperr.Binding(err, "invalid category payload"))
		return
	}
	category, err := h.catalog.UpdateCategory(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

// DELETE /categories/:id
func (h *Handler) DeleteCategory(c *gin.Context) {
	if err := h.catalog.DeleteCategory(c.Request.Context(), c.Param("id")); err != nil {
		h.resp.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "the category is deleted"})
}
