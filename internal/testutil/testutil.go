// Package testutil provides shared test helpers for source trees and
// build manifests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/humble/internal/index"
)

// TestDB creates a temporary SQLite manifest that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "humble-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Tree is a temporary source tree with sibling output directories.
type Tree struct {
	Source            string
	Destination       string
	AssetsSource      string
	AssetsDestination string
}

// TestTree creates an empty source and asset tree under t.TempDir.
// The output directories are not created.
func TestTree(t *testing.T) *Tree {
	t.Helper()
	root := t.TempDir()
	tr := &Tree{
		Source:            filepath.Join(root, "notes"),
		Destination:       filepath.Join(root, "site", "content"),
		AssetsSource:      filepath.Join(root, "attachments"),
		AssetsDestination: filepath.Join(root, "site", "static", "assets"),
	}
	for _, dir := range []string{tr.Source, tr.AssetsSource} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return tr
}

// WriteNote writes a note below the source root.
func (tr *Tree) WriteNote(t *testing.T, rel, content string) {
	t.Helper()
	writeFile(t, filepath.Join(tr.Source, filepath.FromSlash(rel)), []byte(content))
}

// WriteAsset writes a file below the asset source root.
func (tr *Tree) WriteAsset(t *testing.T, rel string, data []byte) {
	t.Helper()
	writeFile(t, filepath.Join(tr.AssetsSource, filepath.FromSlash(rel)), data)
}

// ReadOutput reads a file below the destination root.
func (tr *Tree) ReadOutput(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(tr.Destination, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func writeFile(t *testing.T, p string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatal(err)
	}
}
