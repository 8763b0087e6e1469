package user

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eshop_back_end/internal/handlers"
	"eshop_back_end/internal/models"
	"eshop_back_end/internal/repository/memory"
	"eshop_back_end/internal/services"
	"eshop_back_end/internal/utils"
)

var secret = []byte("user-handler-secret")

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter() *gin.Engine {
	h := NewHandler(services.NewUserService(memory.NewUserStore(), secret, time.Hour, nil), handlers.NewResponder(false, nil))
	r := gin.New()
	r.POST("/users/register", h.Register)
	r.POST("/users/login", h.Login)
	r.POST("/users", h.CreateUser)
	r.GET("/users", h.ListUsers)
	r.GET("/users/get/count", h.CountUsers)
	r.GET("/users/:id", h.GetUser)
	r.PUT("/users/:id", h.UpdateUser)
	r.DELETE("/users/:id", h.DeleteUser)
	return r
}

func send(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterAndLogin(t *testing.T) {
	r := newRouter()

	w := send(r, http.MethodPost, "/users/register",
		`{"name":"Eve","email":"eve@example.com","password":"hunter22","isAdmin":true}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "hunter22")
	assert.NotContains(t, w.Body.String(), "passwordHash")

	var user models.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))
	assert.False(t, user.IsAdmin)

	w = send(r, http.MethodPost, "/users/login", `{"email":"eve@example.com","password":"hunter22"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var res services.LoginResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "eve@example.com", res.Email)

	claims, err := utils.ParseJWT(secret, res.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.False(t, claims.IsAdmin)
}

func TestLoginFailuresLookAlike(t *testing.T) {
	r := newRouter()
	send(r, http.MethodPost, "/users/register", `{"name":"Eve","email":"eve@example.com","password":"hunter22"}`)

	wrong := send(r, http.MethodPost, "/users/login", `{"email":"eve@example.com","password":"nope-nope"}`)
	unknown := send(r, http.MethodPost, "/users/login", `{"email":"ghost@example.com","password":"hunter22"}`)

	assert.Equal(t, http.StatusBadRequest, wrong.Code)
	assert.Equal(t, wrong.Code, unknown.Code)
	assert.JSONEq(t, wrong.Body.String(), unknown.Body.String())
}

func TestAdminUserRoutes(t *testing.T) {
	r := newRouter()

	w := send(r, http.MethodPost, "/users", `{"name":"Root","email":"root@example.com","password":"hunter22","isAdmin":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	var root models.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &root))
	assert.True(t, root.IsAdmin)

	w = send(r, http.MethodPost, "/users", `{"name":"Dup","email":"ROOT@example.com","password":"hunter22"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = send(r, http.MethodGet, "/users/"+root.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"Root"`)

	assert.Equal(t, http.StatusNotFound, send(r, http.MethodGet, "/users/123", "").Code)
	assert.JSONEq(t, `{"count":1}`, send(r, http.MethodGet, "/users/get/count", "").Body.String())

	w = send(r, http.MethodGet, "/users", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func TestRegisterRejectsBadPayloadsByField(t *testing.T) {
	r := newRouter()

	cases := map[string]struct {
		body string
		want string
	}{
		"no name":       {`{"email":"eve@example.com","password":"hunter22"}`, "name is required"},
		"bad email":     {`{"name":"Eve","email":"eve","password":"hunter22"}`, "email must be a valid email"},
		"long password": {`{"name":"Eve","email":"eve@example.com","password":"` + strings.Repeat("p", 73) + `"}`, "password must be at most 72 characters"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			w := send(r, http.MethodPost, "/users/register", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.JSONEq(t, `{"success":false,"message":"`+tc.want+`"}`, w.Body.String())
		})
	}
}

func TestUpdateAndDeleteUser(t *testing.T) {
	r := newRouter()
	w := send(r, http.MethodPost, "/users/register", `{"name":"Eve","email":"eve@example.com","password":"hunter22"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var eve models.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &eve))

	w = send(r, http.MethodPut, "/users/"+eve.ID, `{"city":"Lyon","password":"rotated-1"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated models.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, "Lyon", updated.City)
	assert.Equal(t, "Eve", updated.Name)

	w = send(r, http.MethodPost, "/users/login", `{"email":"eve@example.com","password":"rotated-1"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = send(r, http.MethodPut, "/users/"+eve.ID, `{"email":"not-an-email"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "email must be a valid email")

	w = send(r, http.MethodDelete, "/users/"+eve.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"message":"the user is deleted"}`, w.Body.String())

	w = send(r, http.MethodDelete, "/users/"+eve.ID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "user not found")
}
