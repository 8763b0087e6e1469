package user

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"eshop_back_end/internal/apperr"
	"eshop_back_end/internal/handlers"
	"eshop_back_end/internal/models"
	"eshop_back_end/internal/services"
)

type Users interface {
	Register(ctx context.Context, in services.NewUserInput) (models.User, error)
	CreateUser(ctx context.Context, in services.NewUserInput) (models.User, error)
	Login(ctx context.Context, email, password string) (services.LoginResult, error)
	GetUser(ctx context.Context, id string) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	CountUsers(ctx context.Context) (int64, error)
	UpdateUser(ctx context.Context, id string, in services.UpdateUserInput) (models.User, error)
	DeleteUser(ctx context.Context, id string) error
}

type Handler struct {
	users Users
	resp  *handlers.Responder
}

func NewHandler(users Users, resp *handlers.Responder) *Handler {
	return &Handler{users: users, resp: resp}
}

// POST /users/register
func (h *Handler) Register(c *gin.Context) {
	var in services.NewUserInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.resp.Error(c, apperr.Binding(err, "invalid user payload"))
		return
	}
	user, err := h.users.Register(c.Request.Context(), in)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// POST /users (admin)
func (h *Handler) CreateUser(c *gin.Context) {
	var in services.NewUserInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.resp.Error(c, apperr.Binding(err, "invalid user payload"))
		return
	}
	user, err := h.users.CreateUser(c.Request.Context(), in)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// POST /users/login
func (h *Handler) Login(c *gin.Context) {
	var in struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		h.resp.Error(c, apperr.Binding(err, "invalid login payload"))
		return
	}
	res, err := h.users.Login(c.Request.Context(), in.Email, in.Password)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /users
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.users.ListUsers(c.Request.Context())
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// GET /users/:id
func (h *Handler) GetUser(c *gin.Context) {
	user, err := h.users.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// GET /users/get/count
func (h *Handler) CountUsers(c *gin.Context) {
	n, err := h.users.CountUsers(c.Request.Context())
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

// PUT /users/:id (admin)
func (h *Handler) UpdateUser(c *gin.Context) {
	var in services.UpdateUserInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.resp.Error(c, apperr.Binding(err, "invalid user payload"))
		return
	}
	user, err := h.users.UpdateUser(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// DELETE /users/:id (admin)
func (h *Handler) DeleteUser(c *gin.Context) {
	if err := h.users.DeleteUser(c.Request.Context(), c.Param("id")); err != nil {
		h.resp.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "the user is deleted"})
}
