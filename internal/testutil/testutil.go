// Package testutil provides shared test helpers for setting up vaults and
// history databases.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/muninn/internal/history"
	"github.com/starford/muninn/internal/storage"
)

// TestHistory creates a temporary sent-history database that is
// automatically cleaned up.
func TestHistory(t *testing.T) *history.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "muninn-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := history.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a storage.Provider.
func TestVault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// WriteNote writes a note file into the vault directory, creating parent
// directories as needed.
func WriteNote(t *testing.T, vaultDir, rel, content string) {
	t.Helper()
	p := filepath.Join(vaultDir, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
