package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"eshop_back_end/internal/cache"
	"eshop_back_end/internal/config"
	"eshop_back_end/internal/handlers"
	"eshop_back_end/internal/handlers/order"
	"eshop_back_end/internal/handlers/product"
	"eshop_back_end/internal/handlers/user"
	"eshop_back_end/internal/logger"
	mw "eshop_back_end/internal/middleware"
)

// Capabilities of every registered route.
var (
	ReadUpload = mw.Capability{Method: http.MethodGet, Resource: "uploads", Action: "read"}

	ListProducts     = mw.Capability{Method: http.MethodGet, Resource: "products", Action: "list"}
	ReadProduct      = mw.Capability{Method: http.MethodGet, Resource: "products", Action: "read"}
	SearchProducts   = mw.Capability{Method: http.MethodGet, Resource: "products", Action: "search"}
	CountProducts    = mw.Capability{Method: http.MethodGet, Resource: "products", Action: "count"}
	FeaturedProducts = mw.Capability{Method: http.MethodGet, Resource: "products", Action: "featured"}

	ListCategories = mw.Capability{Method: http.MethodGet, Resource: "categories", Action: "list"}
	ReadCategory   = mw.Capability{Method: http.MethodGet, Resource: "categories", Action: "read"}
	CreateCategory = mw.Capability{Method: http.MethodPost, Resource: "categories", Action: "create"}
	UpdateCategory = mw.Capability{Method: http.MethodPut, Resource: "categories", Action: "update"}
	DeleteCategory = mw.Capability{Method: http.MethodDelete, Resource: "categories", Action: "delete"}

	ListOrders      = mw.Capability{Method: http.MethodGet, Resource: "orders", Action: "list"}
	ReadOrder       = mw.Capability{Method: http.MethodGet, Resource: "orders", Action: "read"}
	CreateOrder     = mw.Capability{Method: http.MethodPost, Resource: "orders", Action: "create"}
	Checkout        = mw.Capability{Method: http.MethodPost, Resource: "orders", Action: "checkout"}
	CheckoutWebhook = mw.Capability{Method: http.MethodPost, Resource: "orders", Action: "checkout-webhook"}
	UpdateOrder     = mw.Capability{Method: http.MethodPut, Resource: "orders", Action: "update"}
	DeleteOrder     = mw.Capability{Method: http.MethodDelete, Resource: "orders", Action: "delete"}
	TotalSales      = mw.Capability{Method: http.MethodGet, Resource: "orders", Action: "total-sales"}
	CountOrders     = mw.Capability{Method: http.MethodGet, Resource: "orders", Action: "count"}
	UserOrders      = mw.Capability{Method: http.MethodGet, Resource: "orders", Action: "user-history"}

	Login      = mw.Capability{Method: http.MethodPost, Resource: "users", Action: "login"}
	Register   = mw.Capability{Method: http.MethodPost, Resource: "users", Action: "register"}
	CreateUser = mw.Capability{Method: http.MethodPost, Resource: "users", Action: "create"}
	ListUsers  = mw.Capability{Method: http.MethodGet, Resource: "users", Action: "list"}
	ReadUser   = mw.Capability{Method: http.MethodGet, Resource: "users", Action: "read"}
	CountUsers = mw.Capability{Method: http.MethodGet, Resource: "users", Action: "count"}
	UpdateUser = mw.Capability{Method: http.MethodPut, Resource: "users", Action: "update"}
	DeleteUser = mw.Capability{Method: http.MethodDelete, Resource: "users", Action: "delete"}
)

// Policy returns the capability table. Anything not marked public requires an admin token.
func Policy(allowPublicOrderCreate bool) *mw.Policy {
	p := mw.NewPolicy().Public(
		ReadUpload,
		ListProducts, ReadProduct, SearchProducts, CountProducts, FeaturedProducts,
		ListCategories, ReadCategory,
		ListOrders, ReadOrder, Checkout, CheckoutWebhook,
		Login, Register,
	)
	if allowPublicOrderCreate {
		p.Public(CreateOrder)
	}
	return p
}

// Deps are the services the router exposes. Uploads and LoginAttempts may be nil.
type Deps struct {
	Orders        order.Orders
	Checkout      order.Checkout
	Catalog       product.Catalog
	Uploads       product.Linker
	Users         user.Users
	LoginAttempts cache.LoginAttempts
}

// NewRouter builds the engine with the middleware stack and every route under cfg.APIURL.
func NewRouter(cfg config.Config, deps Deps, log *zap.Logger) *gin.Engine {
	log = logger.OrNop(log)

	r := gin.New()
	r.Use(mw.RequestLogger(log), mw.Recovery(log), cors.New(corsConfig(cfg.CORSOrigins)), mw.Timeout(cfg.RequestTimeout))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "route not found"})
	})

	resp := handlers.NewResponder(cfg.ExposeErrorDetails, log)
	gate := mw.NewGate([]byte(cfg.JWTSecret), Policy(cfg.AllowPublicOrderCreate), log)
	route := func(g *gin.RouterGroup, path string, capability mw.Capability, h ...gin.HandlerFunc) {
		g.Handle(capability.Method, path, append(gate.Guard(capability), h...)...)
	}

	products := product.NewHandler(deps.Catalog, deps.Uploads, resp)
	route(&r.RouterGroup, "/public/uploads/*file", ReadUpload, products.ServeUpload)

	api := r.Group(cfg.APIURL)

	p := api.Group("/products")
	route(p, "", ListProducts, products.ListProducts)
	route(p, "/search", SearchProducts, products.SearchProducts)
	route(p, "/get/count", CountProducts, products.CountProducts)
	route(p, "/get/featured/:count", FeaturedProducts, products.FeaturedProducts)
	route(p, "/:id", ReadProduct, products.GetProduct)

	cat := api.Group("/categories")
	route(cat, "", ListCategories, products.ListCategories)
	route(cat, "", CreateCategory, products.CreateCategory)
	route(cat, "/:id", ReadCategory, products.GetCategory)
	route(cat, "/:id", UpdateCategory, products.UpdateCategory)
	route(cat, "/:id", DeleteCategory, products.DeleteCategory)

	orders := order.NewHandler(deps.Orders, deps.Checkout, resp)
	o := api.Group("/orders")
	route(o, "", ListOrders, orders.ListOrders)
	route(o, "", CreateOrder, orders.CreateOrder)
	route(o, "/create-checkout-session", Checkout, orders.CreateCheckoutSession)
	route(o, "/checkout-webhook", CheckoutWebhook, orders.CheckoutWebhook)
	route(o, "/get/totalsales", TotalSales, orders.TotalSales)
	route(o, "/get/count", CountOrders, orders.CountOrders)
	route(o, "/get/userorders/:userid", UserOrders, orders.UserOrders)
	route(o, "/:id", ReadOrder, orders.GetOrder)
	route(o, "/:id", UpdateOrder, orders.UpdateOrder)
	route(o, "/:id", DeleteOrder, orders.DeleteOrder)

	users := user.NewHandler(deps.Users, resp)
	u := api.Group("/users")
	route(u, "/login", Login, mw.LoginRateLimit(deps.LoginAttempts, cfg.LoginMaxAttempts, log), users.Login)
	route(u, "/register", Register, users.Register)
	route(u, "", CreateUser, users.CreateUser)
	route(u, "", ListUsers, users.ListUsers)
	route(u, "/get/count", CountUsers, users.CountUsers)
	route(u, "/:id", ReadUser, users.GetUser)
	route(u, "/:id", UpdateUser, users.UpdateUser)
	route(u, "/:id", DeleteUser, users.DeleteUser)

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key"},
		ExposeHeaders: []string{"Content-Length", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	return cfg
}
