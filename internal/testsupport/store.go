package testsupport

import (
	"context"
	"testing"
	"time"

	"bhasha/internal/catalog"
	"bhasha/internal/config"
)

// MustOpenStore opens a catalog.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewContribution inserts a published text contribution for tests.
func NewContribution(t testing.TB, store *catalog.Store, languageCode, title string) *catalog.Contribution {
	t.Helper()

	rec := &catalog.Contribution{
		Type:          catalog.TypeText,
		Title:         title,
		Body:          "test body",
		LanguageCode:  languageCode,
		ContributorID: 1,
		CreatedAt:     time.Now().UTC(),
	}
	if _, err := store.Add(context.Background(), rec); err != nil {
		t.Fatalf("store.Add: %v", err)
	}
	return rec
}
