// Package testutil provides shared test helpers for setting up sources and fixture directories.
package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/starford/crmdesk/internal/fixtures"
	"github.com/starford/crmdesk/internal/source"
)

// TestSQLite creates a temporary SQLite source seeded with the sample data.
// It is closed and removed when the test ends.
func TestSQLite(t *testing.T) *source.SQLite {
	t.Helper()
	dbFile, err := os.CreateTemp("", "crmdesk-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := source.OpenSQLite(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := db.SeedIfEmpty(context.Background(), fixtures.Sample()); err != nil {
		t.Fatal(err)
	}
	return db
}

// TestMemory returns an in-memory source seeded with the sample data.
func TestMemory(t *testing.T) *source.Memory {
	t.Helper()
	return source.NewMemory(fixtures.Sample())
}

// TestFixtures creates a temporary fixture directory holding the sample data.
func TestFixtures(t *testing.T) (string, *fixtures.Dir) {
	t.Helper()
	root := t.TempDir()
	dir, err := fixtures.NewDir(root)
	if err != nil {
		t.Fatal(err)
	}
	if err := dir.Save(fixtures.Sample()); err != nil {
		t.Fatal(err)
	}
	return root, dir
}
