package tokencache_test

import (
	"context"
	"path/filepath"
	"testing"

	"momentshub/internal/config"
	"momentshub/internal/tokencache"
)

func caches(t *testing.T) map[string]tokencache.Cache {
	t.Helper()
	sqlite, err := tokencache.NewSQLiteCache(":memory:", tokencache.Scope("octo", "data", "main"))
	if err != nil {
		t.Fatalf("NewSQLiteCache() error = %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })
	return map[string]tokencache.Cache{
		"memory": tokencache.NewMemoryCache(),
		"sqlite": sqlite,
	}
}

func TestCache_RememberLookupForget(t *testing.T) {
	ctx := context.Background()
	for name, c := range caches(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := c.Lookup(ctx, "users/users.json"); err != nil || ok {
				t.Fatalf("Lookup() on empty cache = ok %v, err %v", ok, err)
			}

			if err := c.Remember(ctx, "users/users.json", "aaa"); err != nil {
				t.Fatalf("Remember() error = %v", err)
			}
			if err := c.Remember(ctx, "users/users.json", "bbb"); err != nil {
				t.Fatalf("Remember() overwrite error = %v", err)
			}
			got, ok, err := c.Lookup(ctx, "users/users.json")
			if err != nil || !ok || got != "bbb" {
				t.Errorf("Lookup() = %q, %v, %v; want %q, true, nil", got, ok, err, "bbb")
			}

			if err := c.Forget(ctx, "users/users.json"); err != nil {
				t.Fatalf("Forget() error = %v", err)
			}
			if _, ok, _ := c.Lookup(ctx, "users/users.json"); ok {
				t.Error("Lookup() after Forget() still found an entry")
			}
		})
	}
}

func TestCache_Clear(t *testing.T) {
	ctx := context.Background()
	for name, c := range caches(t) {
		t.Run(name, func(t *testing.T) {
			_ = c.Remember(ctx, "a.json", "1")
			_ = c.Remember(ctx, "b.json", "2")
			if err := c.Clear(ctx); err != nil {
				t.Fatalf("Clear() error = %v", err)
			}
			for _, p := range []string{"a.json", "b.json"} {
				if _, ok, _ := c.Lookup(ctx, p); ok {
					t.Errorf("Lookup(%q) after Clear() still found an entry", p)
				}
			}
		})
	}
}

func TestSQLiteCache_ScopesAreIsolated(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tokens.db")

	main, err := tokencache.NewSQLiteCache(path, tokencache.Scope("octo", "data", "main"))
	if err != nil {
		t.Fatalf("NewSQLiteCache() error = %v", err)
	}
	defer main.Close()
	dev, err := tokencache.NewSQLiteCache(path, tokencache.Scope("octo", "data", "dev"))
	if err != nil {
		t.Fatalf("NewSQLiteCache() error = %v", err)
	}
	defer dev.Close()

	if err := main.Remember(ctx, "users/users.json", "sha-main"); err != nil {
		t.Fatalf("Remember() error = %v", err)
	}
	if _, ok, _ := dev.Lookup(ctx, "users/users.json"); ok {
		t.Error("dev scope sees an entry remembered in main scope")
	}
	if got, ok, _ := main.Lookup(ctx, "users/users.json"); !ok || got != "sha-main" {
		t.Errorf("Lookup() = %q, %v; want %q, true", got, ok, "sha-main")
	}
}

func TestSQLiteCache_Persists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tokens.db")
	scope := tokencache.Scope("octo", "data", "main")

	first, err := tokencache.NewSQLiteCache(path, scope)
	if err != nil {
		t.Fatalf("NewSQLiteCache() error = %v", err)
	}
	if err := first.Remember(ctx, "chat/a__b.json", "abc"); err != nil {
		t.Fatalf("Remember() error = %v", err)
	}
	first.Close()

	second, err := tokencache.NewSQLiteCache(path, scope)
	if err != nil {
		t.Fatalf("reopen NewSQLiteCache() error = %v", err)
	}
	defer second.Close()
	if got, ok, _ := second.Lookup(ctx, "chat/a__b.json"); !ok || got != "abc" {
		t.Errorf("Lookup() after reopen = %q, %v; want %q, true", got, ok, "abc")
	}
}

func TestNewCacheFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.CacheConfig
		wantErr bool
	}{
		{"memory", config.CacheConfig{Type: "memory"}, false},
		{"sqlite", config.CacheConfig{Type: "sqlite", DataDir: t.TempDir()}, false},
		{"sqlite without dir", config.CacheConfig{Type: "sqlite"}, true},
		{"unknown", config.CacheConfig{Type: "redis"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := tokencache.NewCacheFromConfig(tt.cfg, "scope")
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewCacheFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if c != nil {
				c.Close()
			}
		})
	}
}
