package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/starford/humble/internal/apperr"
	"github.com/starford/humble/internal/index"
	"github.com/starford/humble/internal/models"
	"github.com/starford/humble/internal/site"
	"github.com/starford/humble/internal/siteservice"
	"github.com/starford/humble/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

// testEnv sets up a temp source tree, SQLite manifest, service, and router.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) (*siteservice.Service, *testutil.Tree, http.Handler) {
	t.Helper()
	return testEnvWithSSE(t, authToken != "", authToken, nil)
}

func testEnvWithSSE(t *testing.T, authEnabled bool, token string, sseHandler http.Handler) (*siteservice.Service, *testutil.Tree, http.Handler) {
	t.Helper()
	tree := testutil.TestTree(t)
	db := testutil.TestDB(t)
	asm := site.New(site.Options{
		Source:            tree.Source,
		Destination:       tree.Destination,
		AssetsSource:      tree.AssetsSource,
		AssetsDestination: tree.AssetsDestination,
	}, site.WithLogger(quietLogger()))
	svc := siteservice.New(asm, db, nil, quietLogger())
	return svc, tree, NewRouter(svc, authEnabled, token, sseHandler)
}

func writeSampleNotes(t *testing.T, tree *testutil.Tree) {
	t.Helper()
	tree.WriteNote(t, "Index.md", "---\npublish: true\n---\nStart at [[My Note]].\n")
	tree.WriteNote(t, "My Note.md", "---\npublish: true\n---\nuniquetoken lives here.\n")
	tree.WriteNote(t, "Other.md", "---\npublish: true\n---\n[[My Note]] and [[My Note|again]]\n")
}

func do(t *testing.T, router http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func buildSite(t *testing.T, router http.Handler) BuildResponse {
	t.Helper()
	w := do(t, router, http.MethodPost, "/build")
	if w.Code != http.StatusOK {
		t.Fatalf("build = %d, body = %s", w.Code, w.Body.String())
	}
	var resp BuildResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestBuildAndListPages(t *testing.T) {
	_, tree, router := testEnv(t, "")
	writeSampleNotes(t, tree)

	resp := buildSite(t, router)
	if resp.ID == "" {
		t.Error("build id is empty")
	}
	if resp.Pages != 3 {
		t.Errorf("pages = %d, want 3", resp.Pages)
	}
	if resp.Unresolved == nil {
		t.Error("unresolved_assets should be an empty list, not null")
	}

	w := do(t, router, http.MethodGet, "/pages")
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	var list PageListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Total != 3 || len(list.Pages) != 3 {
		t.Errorf("total = %d, len = %d, want 3", list.Total, len(list.Pages))
	}
}

func TestGetPage_EncodedTitle(t *testing.T) {
	_, tree, router := testEnv(t, "")
	writeSampleNotes(t, tree)
	buildSite(t, router)

	w := do(t, router, http.MethodGet, "/pages/My%20Note")
	if w.Code != http.StatusOK {
		t.Fatalf("get = %d, body = %s", w.Code, w.Body.String())
	}
	var page PageDetail
	_ = json.Unmarshal(w.Body.Bytes(), &page)
	if page.Title != "My Note" {
		t.Errorf("title = %q", page.Title)
	}
	if page.OutputPath != "posts/My Note.md" {
		t.Errorf("output_path = %q", page.OutputPath)
	}
	want := []models.Backlink{{Source: "Index", Count: 1}, {Source: "Other", Count: 2}}
	if len(page.Backlinks) != len(want) {
		t.Fatalf("backlinks = %+v, want %+v", page.Backlinks, want)
	}
	for i := range want {
		if page.Backlinks[i] != want[i] {
			t.Errorf("backlinks[%d] = %+v, want %+v", i, page.Backlinks[i], want[i])
		}
	}
}

func TestGetPage_NotFound(t *testing.T) {
	_, tree, router := testEnv(t, "")
	writeSampleNotes(t, tree)
	buildSite(t, router)

	w := do(t, router, http.MethodGet, "/pages/Nope")
	if w.Code != http.StatusNotFound {
		t.Errorf("missing page = %d, want 404", w.Code)
	}
}

func TestBacklinksEndpoint(t *testing.T) {
	_, tree, router := testEnv(t, "")
	writeSampleNotes(t, tree)
	buildSite(t, router)

	w := do(t, router, http.MethodGet, "/backlinks/My%20Note")
	if w.Code != http.StatusOK {
		t.Fatalf("backlinks = %d", w.Code)
	}
	var resp BacklinksResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Title != "My Note" || len(resp.Backlinks) != 2 {
		t.Errorf("resp = %+v", resp)
	}

	// Nothing links to Index: empty list, not 404.
	w = do(t, router, http.MethodGet, "/backlinks/Index")
	if w.Code != http.StatusOK {
		t.Fatalf("backlinks Index = %d", w.Code)
	}
	var raw map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &raw)
	if refs, ok := raw["backlinks"].([]any); !ok || len(refs) != 0 {
		t.Errorf("backlinks = %v, want []", raw["backlinks"])
	}
}

func TestSearchEndpoint(t *testing.T) {
	_, tree, router := testEnv(t, "")
	writeSampleNotes(t, tree)
	buildSite(t, router)

	w := do(t, router, http.MethodGet, "/search?q=uniquetoken")
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d, body = %s", w.Code, w.Body.String())
	}
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) != 1 || resp.Results[0].Title != "My Note" {
		t.Errorf("results = %+v", resp.Results)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	_, _, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/search")
	if w.Code != http.StatusBadRequest {
		t.Errorf("search without q = %d, want 400", w.Code)
	}
}

func TestLastBuild(t *testing.T) {
	_, tree, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/builds/last")
	if w.Code != http.StatusNotFound {
		t.Errorf("last build before any build = %d, want 404", w.Code)
	}

	writeSampleNotes(t, tree)
	built := buildSite(t, router)

	w = do(t, router, http.MethodGet, "/builds/last")
	if w.Code != http.StatusOK {
		t.Fatalf("last build = %d", w.Code)
	}
	var b index.BuildRow
	_ = json.Unmarshal(w.Body.Bytes(), &b)
	if b.ID != built.ID || b.Pages != 3 {
		t.Errorf("last build = %+v, want id %s", b, built.ID)
	}
}

func TestBuild_FailureIsUnprocessable(t *testing.T) {
	_, tree, router := testEnv(t, "")
	tree.WriteNote(t, "a/Same.md", "---\npublish: true\n---\n")
	tree.WriteNote(t, "b/Same.md", "---\npublish: true\n---\n")

	w := do(t, router, http.MethodPost, "/build")
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("duplicate titles build = %d, want 422", w.Code)
	}
}

// busyService reports a build already running.
type busyService struct {
	*siteservice.Service
}

func (busyService) TryBuild(context.Context) (*site.Result, error) {
	return nil, apperr.ErrBuildInProgress
}

func TestBuild_InProgressConflict(t *testing.T) {
	svc, _, _ := testEnv(t, "")
	router := NewRouter(busyService{Service: svc}, false, "", nil)

	w := do(t, router, http.MethodPost, "/build")
	if w.Code != http.StatusConflict {
		t.Errorf("concurrent build = %d, want 409", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, _, router := testEnv(t, "secret")

	req := httptest.NewRequest(http.MethodGet, "/pages", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("valid token = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, _, router := testEnv(t, "secret")

	w := do(t, router, http.MethodGet, "/pages")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, _, router := testEnv(t, "secret")

	req := httptest.NewRequest(http.MethodPost, "/build", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, _, router := testEnvWithSSE(t, false, "", nil)

	w := do(t, router, http.MethodGet, "/pages")
	if w.Code != http.StatusOK {
		t.Errorf("disabled auth = %d, want 200", w.Code)
	}
}

// sseStub writes headers and blocks until the request context is done.
var sseStub = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, _, router := testEnvWithSSE(t, true, "secret", sseStub)

	w := do(t, router, http.MethodGet, "/events")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_AuthDisabled(t *testing.T) {
	_, _, router := testEnvWithSSE(t, false, "", sseStub)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE should not require auth when disabled")
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, _, router := testEnvWithSSE(t, true, "tok", sseStub)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}
