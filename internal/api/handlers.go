package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/humble/internal/apperr"
	"github.com/starford/humble/internal/index"
	"github.com/starford/humble/internal/models"
	"github.com/starford/humble/internal/site"
)

// Service is what the handlers need from the site service.
type Service interface {
	Pages(ctx context.Context) ([]index.PageRow, error)
	Page(ctx context.Context, title string) (*PageDetail, error)
	Backlinks(ctx context.Context, title string) ([]models.Backlink, error)
	Search(ctx context.Context, query string, limit int) ([]index.SearchResult, error)
	LastBuild(ctx context.Context) (*index.BuildRow, error)
	TryBuild(ctx context.Context) (*site.Result, error)
}

// Handler holds API route handlers.
type Handler struct {
	svc Service
}

// NewHandler creates a new Handler.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// pageTitle extracts the {title} URL parameter.
// Supports encoded characters such as spaces (My%20Note).
func pageTitle(r *http.Request) string {
	raw := chi.URLParam(r, "title")
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListPages handles GET /api/pages.
func (h *Handler) ListPages(w http.ResponseWriter, r *http.Request) {
	pages, err := h.svc.Pages(r.Context())
	if err != nil {
		slog.Error("list pages failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, PageListResponse{Pages: pages, Total: len(pages)})
}

// GetPage handles GET /api/pages/{title}.
func (h *Handler) GetPage(w http.ResponseWriter, r *http.Request) {
	title := pageTitle(r)
	page, err := h.svc.Page(r.Context(), title)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get page failed", slog.String("title", title), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// GetBacklinks handles GET /api/backlinks/{title}.
// A title nothing links to yields an empty list, not 404.
func (h *Handler) GetBacklinks(w http.ResponseWriter, r *http.Request) {
	title := pageTitle(r)
	refs, err := h.svc.Backlinks(r.Context(), title)
	if err != nil {
		slog.Error("backlinks failed", slog.String("title", title), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, BacklinksResponse{Title: title, Backlinks: refs})
}

// Search handles GET /api/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// LastBuild handles GET /api/builds/last.
func (h *Handler) LastBuild(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.LastBuild(r.Context())
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("no build recorded"))
		} else {
			slog.Error("last build failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// Build handles POST /api/build. It runs a full build and answers once the
// build is done. A build that is already running yields 409.
func (h *Handler) Build(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.TryBuild(r.Context())
	if err != nil {
		if errors.Is(err, apperr.ErrBuildInProgress) {
			writeJSON(w, http.StatusConflict, errorBody(err.Error()))
			return
		}
		// Build failures come from the source tree, so the message is useful
		// to the caller.
		slog.Warn("build failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, BuildResponse{
		ID:         res.ID,
		Pages:      len(res.Pages),
		Assets:     len(res.AssetsCopied),
		Unresolved: nonNilSlice(res.AssetsUnresolved),
		DurationMS: res.Duration().Milliseconds(),
	})
}

func nonNilSlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
