package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v83"
	"go.uber.org/zap"

	"eshop_back_end/internal/cache"
	"eshop_back_end/internal/config"
	"eshop_back_end/internal/database"
	"eshop_back_end/internal/handlers/product"
	"eshop_back_end/internal/logger"
	"eshop_back_end/internal/payments"
	"eshop_back_end/internal/repository"
	"eshop_back_end/internal/repository/mongostore"
	"eshop_back_end/internal/repository/scylla"
	"eshop_back_end/internal/routes"
	"eshop_back_end/internal/services"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, envLoaded, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()
	if !envLoaded {
		zl.Info("no .env file found, using process environment")
	}

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	decimal.MarshalJSONWithoutQuotes = true
	gin.SetMode(gin.ReleaseMode)

	stripe.Key = cfg.Stripe.SecretKey
	if cfg.Stripe.SecretKey == "" {
		zl.Warn("STRIPE_SECRET_KEY not set, checkout sessions are disabled")
	}

	conns, err := database.Connect(ctx, cfg, zl)
	if err != nil {
		return err
	}
	defer conns.Close(context.Background())

	if err := mongostore.EnsureIndexes(ctx, conns.MongoDB, zl); err != nil {
		return err
	}

	store := scylla.NewCatalog(conns.Scylla)
	pricing, reads := catalogs(store, conns.Redis, cfg.Redis.ProductCacheTTL, zl)

	var (
		idempotency   cache.IdempotencyStore
		loginAttempts cache.LoginAttempts
		searcher      services.ProductSearcher
		uploads       product.Linker
	)
	if conns.Redis != nil {
		idempotency = cache.NewRedisIdempotency(conns.Redis, cfg.Redis.IdempotencyTTL)
		loginAttempts = cache.NewRedisLoginAttempts(conns.Redis, cfg.LoginCooldown)
	} else {
		idempotency = cache.NewMemoryIdempotency(cfg.Redis.IdempotencyTTL)
		loginAttempts = cache.NewMemoryLoginAttempts(cfg.LoginCooldown)
	}
	if conns.Elastic != nil {
		searcher = services.NewElasticProductSearch(conns.Elastic)
	}
	if conns.MinIO != nil {
		uploads = services.NewUploadLinker(conns.MinIO, cfg.MinIO.Bucket, cfg.MinIO.PresignTTL)
	}

	users := mongostore.NewUserStore(conns.MongoDB)
	orders := services.NewOrderService(
		mongostore.NewOrderStore(conns.Mongo, conns.MongoDB, cfg.Mongo.Transactions),
		pricing, users, idempotency,
		services.OrderServiceConfig{MaxFanOut: cfg.OrderMaxFanOut, CompensationTimeout: cfg.CompensationTimeout},
		zl.Named("orders"),
	)
	checkout := services.NewCheckoutService(
		pricing,
		payments.NewStripeProvider(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret),
		orders,
		services.CheckoutConfig{
			Currency:   cfg.Stripe.Currency,
			SuccessURL: cfg.Stripe.SuccessURL,
			CancelURL:  cfg.Stripe.CancelURL,
			MaxFanOut:  cfg.OrderMaxFanOut,
		},
		zl.Named("checkout"),
	)

	router := routes.NewRouter(cfg, routes.Deps{
		Orders:        orders,
		Checkout:      checkout,
		Catalog:       services.NewProductService(reads, store, searcher, zl.Named("catalog")),
		Uploads:       uploads,
		Users:         services.NewUserService(users, []byte(cfg.JWTSecret), cfg.TokenTTL, zl.Named("users")),
		LoginAttempts: loginAttempts,
	}, zl)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info("server listening", zap.String("addr", srv.Addr), zap.String("api", cfg.APIURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// catalogs returns the catalog used to price orders and the one serving public
// reads. Pricing always hits the store; only reads go through the Redis cache.
func catalogs(store repository.Catalog, rdb *redis.Client, ttl time.Duration, zl *zap.Logger) (pricing, reads repository.Catalog) {
	if rdb == nil {
		return store, store
	}
	return store, cache.NewProductCache(store, rdb, ttl, zl)
}
