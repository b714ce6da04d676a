package testsupport

import (
	"testing"

	"lauschr/internal/config"
	"lauschr/internal/docstore"
	"lauschr/internal/slugindex"
)

// MustOpenStore opens the document store rooted at the config's data dir.
func MustOpenStore(t testing.TB, cfg *config.Config) *docstore.Store {
	t.Helper()

	store, err := docstore.Open(cfg.Paths.DataDir, nil)
	if err != nil {
		t.Fatalf("docstore.Open: %v", err)
	}
	return store
}

// MustOpenIndex opens the slug index for tests and registers cleanup.
func MustOpenIndex(t testing.TB, cfg *config.Config) *slugindex.Index {
	t.Helper()

	index, err := slugindex.Open(cfg.SlugIndexPath())
	if err != nil {
		t.Fatalf("slugindex.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = index.Close()
	})
	return index
}
