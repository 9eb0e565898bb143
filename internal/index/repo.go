package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/humble/internal/apperr"
	"github.com/starford/humble/internal/models"
	"github.com/starford/humble/internal/site"
)

// BuildRow represents a row in the builds table.
type BuildRow struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Pages      int       `json:"pages"`
	Assets     int       `json:"assets"`
}

// PageRow represents a row in the pages table. Body is only filled by Page.
type PageRow struct {
	Title       string `json:"title"`
	SourcePath  string `json:"source_path"`
	OutputPath  string `json:"output_path"`
	Fingerprint string `json:"fingerprint"`
	BuildID     string `json:"build_id"`
	Body        string `json:"body,omitempty"`
}

// SearchResult represents one search hit.
type SearchResult struct {
	Title      string `json:"title"`
	OutputPath string `json:"output_path"`
	Snippet    string `json:"snippet"`
}

// RecordBuild replaces the manifest with the pages and backlinks of res and
// appends a builds row, all in one transaction.
func (db *DB) RecordBuild(res *site.Result) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.Exec(`
		INSERT INTO builds (id, started_at, finished_at, pages, assets)
		VALUES (?, ?, ?, ?, ?)
	`, res.ID, res.StartedAt.UTC(), res.FinishedAt.UTC(), len(res.Pages), len(res.AssetsCopied)); err != nil {
		return fmt.Errorf("index: insert build: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM pages`); err != nil {
		return fmt.Errorf("index: clear pages: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM backlinks`); err != nil {
		return fmt.Errorf("index: clear backlinks: %w", err)
	}
	if err := ftsReset(tx); err != nil {
		return err
	}

	pageStmt, err := tx.Prepare(`
		INSERT INTO pages (title, source_path, output_path, fingerprint, body, build_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("index: prepare page insert: %w", err)
	}
	defer pageStmt.Close()

	for _, p := range res.Pages {
		if _, err := pageStmt.Exec(p.Title, p.Source, p.Output, p.Fingerprint, p.Contents, res.ID); err != nil {
			return fmt.Errorf("index: insert page %q: %w", p.Title, err)
		}
		if err := ftsInsert(tx, p.Title, p.Contents); err != nil {
			return err
		}
	}

	if res.Backlinks != nil {
		linkStmt, err := tx.Prepare(`INSERT INTO backlinks (target, source, count, position) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare backlink insert: %w", err)
		}
		defer linkStmt.Close()

		for _, target := range res.Backlinks.Targets() {
			refs, _ := res.Backlinks.Lookup(target)
			for i, r := range refs {
				if _, err := linkStmt.Exec(target, r.Source, r.Count, i); err != nil {
					return fmt.Errorf("index: insert backlink: %w", err)
				}
			}
		}
	}

	return tx.Commit()
}

// Backlinks returns the pages linking to target in discovery order.
// An unlinked target yields an empty slice.
func (db *DB) Backlinks(target string) ([]models.Backlink, error) {
	rows, err := db.conn.Query(`
		SELECT source, count FROM backlinks WHERE target = ? ORDER BY position
	`, target)
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}
	defer rows.Close()

	out := []models.Backlink{}
	for rows.Next() {
		var b models.Backlink
		if err := rows.Scan(&b.Source, &b.Count); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Pages lists the pages of the last recorded build, ordered by title.
func (db *DB) Pages() ([]PageRow, error) {
	rows, err := db.conn.Query(`
		SELECT title, source_path, output_path, fingerprint, build_id FROM pages ORDER BY title
	`)
	if err != nil {
		return nil, fmt.Errorf("index: pages: %w", err)
	}
	defer rows.Close()

	out := []PageRow{}
	for rows.Next() {
		var p PageRow
		if err := rows.Scan(&p.Title, &p.SourcePath, &p.OutputPath, &p.Fingerprint, &p.BuildID); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Page returns one page with its written body, or apperr.ErrNotFound.
func (db *DB) Page(title string) (*PageRow, error) {
	var p PageRow
	err := db.conn.QueryRow(`
		SELECT title, source_path, output_path, fingerprint, build_id, body FROM pages WHERE title = ?
	`, title).Scan(&p.Title, &p.SourcePath, &p.OutputPath, &p.Fingerprint, &p.BuildID, &p.Body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: page %q: %w", title, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: page: %w", err)
	}
	return &p, nil
}

// LastBuild returns the most recent build, or apperr.ErrNotFound.
func (db *DB) LastBuild() (*BuildRow, error) {
	var b BuildRow
	err := db.conn.QueryRow(`
		SELECT id, started_at, finished_at, pages, assets FROM builds ORDER BY finished_at DESC LIMIT 1
	`).Scan(&b.ID, &b.StartedAt, &b.FinishedAt, &b.Pages, &b.Assets)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: last build: %w", apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: last build: %w", err)
	}
	return &b, nil
}
