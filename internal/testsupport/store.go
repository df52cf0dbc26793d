package testsupport

import (
	"context"
	"testing"

	"mediaconv/internal/catalog"
	"mediaconv/internal/config"
	"mediaconv/internal/gallery"
)

// MustOpenCatalog opens a catalog.Store for tests and registers cleanup.
func MustOpenCatalog(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()
	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// MustAddAsset registers asset in store and returns the stored copy.
func MustAddAsset(t testing.TB, store *catalog.Store, asset *gallery.Asset) *gallery.Asset {
	t.Helper()
	stored, err := store.AddAsset(context.Background(), asset)
	if err != nil {
		t.Fatalf("AddAsset: %v", err)
	}
	return stored
}
