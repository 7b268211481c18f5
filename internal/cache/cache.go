// Package cache implements the shared TTL cache of spec §4.N: analytics,
// build_suggestions, and search namespaces backed by redis so multiple API
// replicas observe the same cache, replacing the teacher's in-process map.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Namespace is one of the three cached result kinds of §4.N.
type Namespace string

const (
	NamespaceAnalytics        Namespace = "analytics"
	NamespaceBuildSuggestions Namespace = "build_suggestions"
	NamespaceSearch           Namespace = "search"
)

var namespaceTTL = map[Namespace]time.Duration{
	NamespaceAnalytics:        600 * time.Second,
	NamespaceBuildSuggestions: 1800 * time.Second,
	NamespaceSearch:           300 * time.Second,
}

// Cache wraps a redis client. Every read/write failure is logged and
// swallowed: cache absence must never block the request (§4.N).
type Cache struct {
	client *redis.Client
	log    *slog.Logger
}

// New connects to redis at url (e.g. "redis://localhost:6379/0") and
// verifies the connection with a bounded Ping.
func New(url string, log *slog.Logger) (*Cache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("cache.New: parse url: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cache.New: ping: %w", err)
	}

	if log == nil {
		log = slog.Default()
	}
	return &Cache{client: client, log: log}, nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}

// Get fetches a cached value. A miss — whether the key is absent, expired,
// or redis is unreachable — is reported identically as (nil, false); the
// caller always has a fallthrough computing path.
func (c *Cache) Get(ctx context.Context, ns Namespace, keyParts ...string) ([]byte, bool) {
	key := buildKey(ns, keyParts...)
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("cache get failed", "namespace", ns, "error", err)
		}
		return nil, false
	}
	return val, true
}

// Set stores value under the namespace's default TTL. Failures are logged,
// never returned — a cache write is never allowed to fail a request.
func (c *Cache) Set(ctx context.Context, ns Namespace, value []byte, keyParts ...string) {
	key := buildKey(ns, keyParts...)
	if err := c.client.Set(ctx, key, value, namespaceTTL[ns]).Err(); err != nil {
		c.log.Warn("cache set failed", "namespace", ns, "error", err)
	}
}

// InvalidateForDocument is the event-driven invalidation of §4.N: a
// Document create or delete invalidates all three namespaces for the
// owning user and KB.
func (c *Cache) InvalidateForDocument(ctx context.Context, owner, kbID string) {
	c.deletePattern(ctx, buildKey(NamespaceAnalytics, owner, "*"))
	c.deletePattern(ctx, buildKey(NamespaceSearch, owner, "*"))

	key := buildKey(NamespaceBuildSuggestions, kbID)
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.log.Warn("cache invalidate failed", "namespace", NamespaceBuildSuggestions, "error", err)
	}
}

func (c *Cache) deletePattern(ctx context.Context, pattern string) {
	var keys []string
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.log.Warn("cache scan failed", "pattern", pattern, "error", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.log.Warn("cache delete failed", "pattern", pattern, "error", err)
	}
}

func buildKey(ns Namespace, parts ...string) string {
	return "cache:" + string(ns) + ":" + strings.Join(parts, ":")
}

// SearchKey hashes a query and its filter set into the search namespace's
// key suffix (§4.N: `hash(query+filters)`).
func SearchKey(query, filters string) string {
	h := sha256.Sum256([]byte(query + "|" + filters))
	return fmt.Sprintf("%x", h[:8])
}
