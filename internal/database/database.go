package database

import (
	"context"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/gocql/gocql"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"eshop_back_end/internal/config"
	"eshop_back_end/internal/logger"
)

// Connections holds every backing store client. Optional stores are nil when not configured.
type Connections struct {
	Scylla  *gocql.Session
	Mongo   *mongo.Client
	MongoDB *mongo.Database
	Redis   *redis.Client
	Elastic *elasticsearch.Client
	MinIO   *minio.Client
}

// Connect opens all configured stores. Scylla and Mongo are required.
func Connect(ctx context.Context, cfg config.Config, log *zap.Logger) (*Connections, error) {
	log = logger.OrNop(log)
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	conns := &Connections{}
	var err error

	if conns.Scylla, err = ConnectScylla(cfg.Scylla); err != nil {
		return nil, err
	}
	log.Info("connected to scylla", zap.Strings("hosts", cfg.Scylla.Hosts), zap.String("keyspace", cfg.Scylla.Keyspace))

	if conns.Mongo, err = ConnectMongo(ctx, cfg.Mongo); err != nil {
		conns.Close(context.Background())
		return nil, err
	}
	conns.MongoDB = conns.Mongo.Database(cfg.Mongo.Database)
	log.Info("connected to mongodb", zap.String("database", cfg.Mongo.Database))

	if cfg.Redis.Addr != "" {
		if conns.Redis, err = ConnectRedis(ctx, cfg.Redis); err != nil {
			conns.Close(context.Background())
			return nil, err
		}
		log.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))
	} else {
		log.Warn("REDIS_HOST not set, using in-memory idempotency and no product cache")
	}

	if cfg.Elastic.URL != "" {
		if conns.Elastic, err = ConnectElastic(cfg.Elastic); err != nil {
			conns.Close(context.Background())
			return nil, err
		}
		log.Info("connected to elasticsearch", zap.String("url", cfg.Elastic.URL))
	}

	if cfg.MinIO.Endpoint != "" {
		if conns.MinIO, err = ConnectMinIO(ctx, cfg.MinIO, log); err != nil {
			conns.Close(context.Background())
			return nil, err
		}
		log.Info("connected to minio", zap.String("endpoint", cfg.MinIO.Endpoint))
	}

	return conns, nil
}

// Close releases every open client.
func (c *Connections) Close(ctx context.Context) {
	if c.Scylla != nil {
		c.Scylla.Close()
	}
	if c.Mongo != nil {
		_ = c.Mongo.Disconnect(ctx)
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}

func ConnectScylla(cfg config.ScyllaConfig) (*gocql.Session, error) {
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = cfg.Keyspace
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = cfg.Timeout
	cluster.NumConns = cfg.NumConns
	cluster.MaxWaitSchemaAgreement = 30 * time.Second
	cluster.ReconnectInterval = time.Second
	if cfg.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}
	if cfg.CACertPath != "" {
		cluster.SslOpts = &gocql.SslOptions{
			CaPath:                 cfg.CACertPath,
			EnableHostVerification: true,
		}
	}
	cluster.PoolConfig.HostSelectionPolicy = gocql.TokenAwareHostPolicy(gocql.RoundRobinHostPolicy())

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("database: scylla session for %s: %w", cfg.Keyspace, err)
	}
	return session, nil
}

func ConnectMongo(ctx context.Context, cfg config.MongoConfig) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("database: mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("database: mongo ping: %w", err)
	}
	return client, nil
}

func ConnectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("database: redis ping: %w", err)
	}
	return client, nil
}

func ConnectElastic(cfg config.ElasticConfig) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("database: elasticsearch client: %w", err)
	}

	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("database: elasticsearch info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("database: elasticsearch info: %s", res.Status())
	}
	return client, nil
}

// ConnectMinIO creates the client and makes sure the upload bucket exists.
func ConnectMinIO(ctx context.Context, cfg config.MinIOConfig, log *zap.Logger) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("database: minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("database: minio bucket check: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("database: minio make bucket: %w", err)
		}
		logger.OrNop(log).Info("created minio bucket", zap.String("bucket", cfg.Bucket))
	}
	return client, nil
}
