package client

import (
	"path/filepath"
	"testing"
)

func setupTestStore(t *testing.T) (*TokenStore, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "session.db")
	store, err := OpenTokenStore(path)
	if err != nil {
		t.Fatalf("Failed to open token store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store, path
}

func TestTokenStoreEmpty(t *testing.T) {
	store, _ := setupTestStore(t)

	code, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if code != "" {
		t.Errorf("Expected no token, got %q", code)
	}
}

func TestTokenStoreSaveAndLoad(t *testing.T) {
	store, _ := setupTestStore(t)

	if err := store.Save("AB23CD"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	code, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if code != "AB23CD" {
		t.Errorf("Expected 'AB23CD', got %q", code)
	}
}

func TestTokenStoreSaveReplaces(t *testing.T) {
	store, _ := setupTestStore(t)

	store.Save("AB23CD")
	if err := store.Save("XY89ZW"); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	code, _ := store.Load()
	if code != "XY89ZW" {
		t.Errorf("Expected latest token 'XY89ZW', got %q", code)
	}
}

func TestTokenStoreClear(t *testing.T) {
	store, _ := setupTestStore(t)

	store.Save("AB23CD")
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	code, _ := store.Load()
	if code != "" {
		t.Errorf("Expected no token after clear, got %q", code)
	}

	// Clearing an empty store is fine.
	if err := store.Clear(); err != nil {
		t.Errorf("Clear on empty store failed: %v", err)
	}
}

func TestTokenStoreSurvivesReopen(t *testing.T) {
	store, path := setupTestStore(t)

	store.Save("AB23CD")
	store.Close()

	reopened, err := OpenTokenStore(path)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer reopened.Close()

	code, err := reopened.Load()
	if err != nil {
		t.Fatalf("Load after reopen failed: %v", err)
	}
	if code != "AB23CD" {
		t.Errorf("Token should survive a restart, got %q", code)
	}
}
