// Package storage defines the file-system abstraction used for the source
// tree, the asset tree and the output directories.
package storage

import (
	"errors"

	"github.com/starford/humble/internal/models"
)

// ErrPathEscapes is returned when a relative path resolves outside the root.
var ErrPathEscapes = errors.New("storage: path escapes root")

// MatchFunc reports whether a file with the given base name is listed.
type MatchFunc func(name string) bool

// Provider is the interface for rooted file operations.
type Provider interface {
	// Root returns the absolute root directory.
	Root() string
	// List returns metadata for every file under dir (relative to root)
	// accepted by match, in lexical walk order.
	List(dir string, match MatchFunc) ([]models.FileMeta, error)
	// Read returns the raw bytes of the file at path (relative to root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to root),
	// creating parent directories.
	Write(path string, content []byte) error
}
