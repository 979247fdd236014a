package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/sitesync/sitesync/internal/domain"
)

// BadgerCache caches fetched pages in a BadgerDB store so repeated crawls
// of unchanged wikis skip the network
type BadgerCache struct {
	db *badger.DB
}

// NewBadgerCache creates a new BadgerDB cache
func NewBadgerCache(opts Options) (*BadgerCache, error) {
	var badgerOpts badger.Options

	if opts.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Directory == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return nil, err
			}
			opts.Directory = filepath.Join(homeDir, ".sitesync", "cache")
		}

		if err := os.MkdirAll(opts.Directory, 0755); err != nil {
			return nil, err
		}

		badgerOpts = badger.DefaultOptions(opts.Directory)
	}

	if !opts.Logger {
		badgerOpts = badgerOpts.WithLogger(nil)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, err
	}

	// background value log garbage collection
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			_ = db.RunValueLogGC(0.5)
		}
	}()

	return &BadgerCache{db: db}, nil
}

// Get retrieves a cached page body by URL
func (c *BadgerCache) Get(ctx context.Context, key string) ([]byte, error) {
	cacheKey := GenerateKey(key)

	var value []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(cacheKey))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return domain.ErrCacheMiss
			}
			return err
		}

		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	return value, nil
}

// Set stores a page body with TTL
func (c *BadgerCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	cacheKey := GenerateKey(key)

	return c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(cacheKey), value)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
}

// Has checks if a URL is cached
func (c *BadgerCache) Has(ctx context.Context, key string) bool {
	cacheKey := GenerateKey(key)

	err := c.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(cacheKey))
		return err
	})

	return err == nil
}

// Delete removes a cached page
func (c *BadgerCache) Delete(ctx context.Context, key string) error {
	cacheKey := GenerateKey(key)

	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(cacheKey))
	})
}

// Close releases cache resources
func (c *BadgerCache) Close() error {
	return c.db.Close()
}

// Clear removes all entries from the cache
func (c *BadgerCache) Clear() error {
	return c.db.DropAll()
}

// Size returns the number of entries in the cache
func (c *BadgerCache) Size() int64 {
	var count int64
	_ = c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count
}
