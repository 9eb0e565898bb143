package index

import "github.com/starford/humble/internal/models"

// Manifest is the read side of the build manifest.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type Manifest interface {
	Pages() ([]PageRow, error)
	Page(title string) (*PageRow, error)
	Backlinks(target string) ([]models.Backlink, error)
	Search(query string, limit int) ([]SearchResult, error)
	LastBuild() (*BuildRow, error)
}

// Verify *DB satisfies Manifest at compile time.
var _ Manifest = (*DB)(nil)
