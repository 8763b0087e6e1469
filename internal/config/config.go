package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting of the API server.
type Config struct {
	Port           string
	APIURL         string
	RequestTimeout time.Duration
	CORSOrigins    []string
	LogLevel       string

	JWTSecret              string
	TokenTTL               time.Duration
	AllowPublicOrderCreate bool
	LoginMaxAttempts       int64
	LoginCooldown          time.Duration

	OrderMaxFanOut      int
	CompensationTimeout time.Duration
	ExposeErrorDetails  bool

	Mongo   MongoConfig
	Scylla  ScyllaConfig
	Redis   RedisConfig
	Elastic ElasticConfig
	MinIO   MinIOConfig
	Stripe  StripeConfig
}

type MongoConfig struct {
	URI          string
	Database     string
	Transactions bool
}

type ScyllaConfig struct {
	Hosts    []string
	Keyspace string
	Username string
	Password string
	// CACertPath enables TLS when set.
	CACertPath string
	Timeout    time.Duration
	NumConns   int
}

type RedisConfig struct {
	Addr            string
	Password        string
	DB              int
	ProductCacheTTL time.Duration
	IdempotencyTTL  time.Duration
}

// ElasticConfig is optional; an empty URL disables product search.
type ElasticConfig struct {
	URL      string
	Username string
	Password string
}

// MinIOConfig is optional; an empty endpoint disables upload redirects.
type MinIOConfig struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Bucket     string
	UseSSL     bool
	PresignTTL time.Duration
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
	SuccessURL    string
	CancelURL     string
}

// ErrMissingJWTSecret is returned when JWT_SECRET is not set.
var ErrMissingJWTSecret = errors.New("config: JWT_SECRET is required")

// Load reads an optional .env file and then the process environment.
// The returned bool reports whether a .env file was found.
func Load() (Config, bool, error) {
	loaded := godotenv.Load(".env") == nil
	cfg, err := FromEnv()
	return cfg, loaded, err
}

// FromEnv builds a Config from environment variables only.
func FromEnv() (Config, error) {
	cfg := Config{
		Port:           getString("PORT", "8080"),
		APIURL:         "/" + strings.Trim(getString("API_URL", "/api/v1"), "/"),
		RequestTimeout: getDuration("REQUEST_TIMEOUT", 15*time.Second),
		CORSOrigins:    getList("CORS_ORIGINS", []string{"*"}),
		LogLevel:       getString("LOG_LEVEL", "info"),

		JWTSecret:              os.Getenv("JWT_SECRET"),
		TokenTTL:               getDuration("TOKEN_TTL", 24*time.Hour),
		AllowPublicOrderCreate: getBool("ALLOW_PUBLIC_ORDER_CREATE", true),
		LoginMaxAttempts:       int64(getInt("LOGIN_MAX_ATTEMPTS", 5)),
		LoginCooldown:          getDuration("LOGIN_COOLDOWN", 15*time.Minute),

		OrderMaxFanOut:      getInt("ORDER_MAX_FANOUT", 8),
		CompensationTimeout: getDuration("COMPENSATION_TIMEOUT", 10*time.Second),
		ExposeErrorDetails:  getBool("EXPOSE_ERROR_DETAILS", false),

		Mongo: MongoConfig{
			URI:          getString("MONGO_URI", "mongodb://localhost:27017"),
			Database:     getString("MONGO_DATABASE", "eshop"),
			Transactions: getBool("MONGO_TRANSACTIONS", false),
		},
		Scylla: ScyllaConfig{
			Hosts:      getList("SCYLLA_HOSTS", []string{"127.0.0.1"}),
			Keyspace:   getString("SCYLLA_KEYSPACE", "catalog"),
			Username:   os.Getenv("SCYLLA_USERNAME"),
			Password:   os.Getenv("SCYLLA_PASSWORD"),
			CACertPath: os.Getenv("SCYLLA_SSL_CA_PATH"),
			Timeout:    getDuration("SCYLLA_TIMEOUT", 5*time.Second),
			NumConns:   getInt("SCYLLA_NUM_CONNS", 20),
		},
		Redis: RedisConfig{
			Addr:            os.Getenv("REDIS_HOST"),
			Password:        os.Getenv("REDIS_PASSWORD"),
			DB:              getInt("REDIS_DB", 0),
			ProductCacheTTL: getDuration("PRODUCT_CACHE_TTL", 10*time.Minute),
			IdempotencyTTL:  getDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		},
		Elastic: ElasticConfig{
			URL:      os.Getenv("ELASTIC_URL"),
			Username: os.Getenv("ELASTIC_USER"),
			Password: os.Getenv("ELASTIC_PASSWORD"),
		},
		MinIO: MinIOConfig{
			Endpoint:   os.Getenv("MINIO_ENDPOINT"),
			AccessKey:  os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey:  os.Getenv("MINIO_SECRET_KEY"),
			Bucket:     getString("MINIO_BUCKET", "uploads"),
			UseSSL:     getBool("MINIO_USE_SSL", false),
			PresignTTL: getDuration("MINIO_PRESIGN_TTL", 15*time.Minute),
		},
		Stripe: StripeConfig{
			SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
			Currency:      strings.ToLower(getString("CHECKOUT_CURRENCY", "usd")),
			SuccessURL:    getString("CHECKOUT_SUCCESS_URL", "http://localhost:4200/success"),
			CancelURL:     getString("CHECKOUT_CANCEL_URL", "http://localhost:4200/error"),
		},
	}

	if cfg.JWTSecret == "" {
		return cfg, ErrMissingJWTSecret
	}
	if cfg.OrderMaxFanOut <= 0 {
		return cfg, fmt.Errorf("config: ORDER_MAX_FANOUT must be positive, got %d", cfg.OrderMaxFanOut)
	}
	return cfg, nil
}

func getString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getList(key string, def []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func getBool(key string, def bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return v
}

func getInt(key string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return v
}

func getDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
