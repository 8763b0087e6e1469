package product

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"eshop_back_end/internal/apperr"
)

// GET /public/uploads/*file redirects to a short-lived object URL.
func (h *Handler) ServeUpload(c *gin.Context) {
	if h.uploads == nil {
		h.resp.Error(c, apperr.NotFound("file not found"))
		return
	}

	url, err := h.uploads.Link(c.Request.Context(), c.Param("file"))
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	c.Redirect(http.StatusFound, url)
}
