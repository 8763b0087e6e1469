package main

import (
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"eshop_back_end/internal/cache"
	"eshop_back_end/internal/repository/memory"
)

func TestCatalogsPriceFromTheStore(t *testing.T) {
	store := memory.NewCatalog()

	pricing, reads := catalogs(store, nil, time.Minute, nil)
	assert.Same(t, store, pricing)
	assert.Same(t, store, reads)

	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = rdb.Close() })

	pricing, reads = catalogs(store, rdb, time.Minute, nil)
	assert.Same(t, store, pricing)
	assert.IsType(t, &cache.ProductCache{}, reads)
}
