package api

import (
	"github.com/starford/humble/internal/index"
	"github.com/starford/humble/internal/models"
	"github.com/starford/humble/internal/siteservice"
)

// PageDetail is a written page with its backlinks (aliased from the domain layer).
type PageDetail = siteservice.PageDetail

// PageListResponse wraps the page listing.
type PageListResponse struct {
	Pages []index.PageRow `json:"pages"`
	Total int             `json:"total"`
}

// BacklinksResponse lists the pages linking to Title.
type BacklinksResponse struct {
	Title     string            `json:"title"`
	Backlinks []models.Backlink `json:"backlinks"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results"`
}

// BuildResponse summarizes a build triggered through the API.
type BuildResponse struct {
	ID         string   `json:"id"`
	Pages      int      `json:"pages"`
	Assets     int      `json:"assets"`
	Unresolved []string `json:"unresolved_assets"`
	DurationMS int64    `json:"duration_ms"`
}
