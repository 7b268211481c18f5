package cache

import (
	"context"
	"os"
	"testing"
	"time"
)

func setupCache(t *testing.T) *Cache {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set, skipping integration test")
	}

	c, err := New(url, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCache_SetThenGet(t *testing.T) {
	c := setupCache(t)
	ctx := context.Background()

	c.Set(ctx, NamespaceSearch, []byte("result-payload"), "user-1", SearchKey("golang concurrency", "kb=abc"))

	got, ok := c.Get(ctx, NamespaceSearch, "user-1", SearchKey("golang concurrency", "kb=abc"))
	if !ok {
		t.Fatal("Get() ok = false, want true after Set")
	}
	if string(got) != "result-payload" {
		t.Errorf("Get() = %q, want %q", got, "result-payload")
	}
}

func TestCache_GetMissReturnsFalseNeverErrors(t *testing.T) {
	c := setupCache(t)
	_, ok := c.Get(context.Background(), NamespaceAnalytics, "nobody", "never-set")
	if ok {
		t.Error("Get() ok = true for a key that was never set")
	}
}

func TestCache_InvalidateForDocumentClearsAllThreeNamespaces(t *testing.T) {
	c := setupCache(t)
	ctx := context.Background()

	owner, kbID := "user-invalidate", "kb-invalidate"
	c.Set(ctx, NamespaceAnalytics, []byte("stats"), owner, "2026-07")
	c.Set(ctx, NamespaceSearch, []byte("hits"), owner, SearchKey("q", "f"))
	c.Set(ctx, NamespaceBuildSuggestions, []byte("ideas"), kbID)

	c.InvalidateForDocument(ctx, owner, kbID)

	if _, ok := c.Get(ctx, NamespaceAnalytics, owner, "2026-07"); ok {
		t.Error("analytics entry survived invalidation")
	}
	if _, ok := c.Get(ctx, NamespaceSearch, owner, SearchKey("q", "f")); ok {
		t.Error("search entry survived invalidation")
	}
	if _, ok := c.Get(ctx, NamespaceBuildSuggestions, kbID); ok {
		t.Error("build_suggestions entry survived invalidation")
	}
}

func TestSearchKey_DeterministicAndDistinct(t *testing.T) {
	a := SearchKey("how do channels work", "kb=x")
	b := SearchKey("how do channels work", "kb=x")
	if a != b {
		t.Errorf("SearchKey not deterministic: %q != %q", a, b)
	}
	if c := SearchKey("how do channels work", "kb=y"); c == a {
		t.Error("SearchKey collided across different filters")
	}
}

func TestCache_SetRespectsNamespaceTTL(t *testing.T) {
	setupCache(t)

	if namespaceTTL[NamespaceSearch] != 300*time.Second {
		t.Errorf("search TTL = %v, want 300s", namespaceTTL[NamespaceSearch])
	}
	if namespaceTTL[NamespaceBuildSuggestions] != 1800*time.Second {
		t.Errorf("build_suggestions TTL = %v, want 1800s", namespaceTTL[NamespaceBuildSuggestions])
	}
	if namespaceTTL[NamespaceAnalytics] != 600*time.Second {
		t.Errorf("analytics TTL = %v, want 600s", namespaceTTL[NamespaceAnalytics])
	}
}
