// Package siteservice ties the assembler, the build manifest and the event
// broker together. It is shared by the CLI, the preview server and the MCP
// server.
package siteservice

import (
	"context"
	"log/slog"
	"sync"

	"github.com/starford/humble/internal/apperr"
	"github.com/starford/humble/internal/index"
	"github.com/starford/humble/internal/models"
	"github.com/starford/humble/internal/site"
	"github.com/starford/humble/internal/sse"
)

// Builder compiles the site.
type Builder interface {
	Build(ctx context.Context) (*site.Result, error)
}

// Store is the build manifest.
type Store interface {
	index.Manifest
	RecordBuild(res *site.Result) error
}

// Publisher receives build notifications.
type Publisher interface {
	PublishBuild(ev sse.BuildEvent)
}

// PageDetail is a written page with its backlinks.
type PageDetail struct {
	index.PageRow
	Backlinks []models.Backlink `json:"backlinks"`
}

// Service runs builds one at a time and answers queries from the manifest.
type Service struct {
	builder   Builder
	store     Store
	publisher Publisher
	logger    *slog.Logger

	mu sync.Mutex
}

// New creates a Service. publisher may be nil.
func New(builder Builder, store Store, publisher Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{builder: builder, store: store, publisher: publisher, logger: logger}
}

// Build runs a full build, waiting for any build already in progress.
func (s *Service) Build(ctx context.Context) (*site.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.build(ctx)
}

// TryBuild runs a full build unless one is already in progress, in which
// case it returns apperr.ErrBuildInProgress.
func (s *Service) TryBuild(ctx context.Context) (*site.Result, error) {
	if !s.mu.TryLock() {
		return nil, apperr.ErrBuildInProgress
	}
	defer s.mu.Unlock()
	return s.build(ctx)
}

func (s *Service) build(ctx context.Context) (*site.Result, error) {
	res, err := s.builder.Build(ctx)
	if err != nil {
		s.publish(sse.BuildEvent{Error: err.Error()})
		return nil, err
	}
	if err := s.store.RecordBuild(res); err != nil {
		// The site on disk is complete; only queries are stale.
		s.logger.Warn("record build failed", slog.String("build_id", res.ID), slog.String("error", err.Error()))
	}
	s.publish(sse.BuildEvent{
		ID:         res.ID,
		Pages:      len(res.Pages),
		Assets:     len(res.AssetsCopied),
		DurationMS: res.Duration().Milliseconds(),
	})
	return res, nil
}

func (s *Service) publish(ev sse.BuildEvent) {
	if s.publisher != nil {
		s.publisher.PublishBuild(ev)
	}
}

// Pages lists the pages of the last recorded build.
func (s *Service) Pages(_ context.Context) ([]index.PageRow, error) {
	return s.store.Pages()
}

// Page returns a page with its backlinks, or apperr.ErrNotFound.
func (s *Service) Page(_ context.Context, title string) (*PageDetail, error) {
	row, err := s.store.Page(title)
	if err != nil {
		return nil, err
	}
	refs, err := s.store.Backlinks(title)
	if err != nil {
		return nil, err
	}
	return &PageDetail{PageRow: *row, Backlinks: refs}, nil
}

// Backlinks returns the pages linking to title, in discovery order.
func (s *Service) Backlinks(_ context.Context, title string) ([]models.Backlink, error) {
	return s.store.Backlinks(title)
}

// Search runs a full-text search over the written pages.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.store.Search(query, limit)
}

// LastBuild returns the most recent build, or apperr.ErrNotFound.
func (s *Service) LastBuild(_ context.Context) (*index.BuildRow, error) {
	return s.store.LastBuild()
}
