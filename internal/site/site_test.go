package site

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/starford/humble/internal/apperr"
	"github.com/starford/humble/internal/models"
)

type fixture struct {
	source, dest, assetsSrc, assetsDest string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()
	f := fixture{
		source:     filepath.Join(root, "notes"),
		dest:       filepath.Join(root, "site", "content"),
		assetsSrc:  filepath.Join(root, "attachments"),
		assetsDest: filepath.Join(root, "site", "static", "assets"),
	}
	require.NoError(t, os.MkdirAll(f.source, 0o755))
	require.NoError(t, os.MkdirAll(f.assetsSrc, 0o755))
	return f
}

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func readFile(t *testing.T, dir, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func (f fixture) assembler(opts ...func(*Options)) *Assembler {
	o := Options{
		Source:            f.source,
		Destination:       f.dest,
		AssetsSource:      f.assetsSrc,
		AssetsDestination: f.assetsDest,
		Workers:           2,
	}
	for _, fn := range opts {
		fn(&o)
	}
	return New(o, WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))
}

type frontMatter struct {
	Backlinks      []string `yaml:"backlinks"`
	BacklinksCount []int    `yaml:"backlinks_count"`
}

func parseFrontMatter(t *testing.T, content string) frontMatter {
	t.Helper()
	require.True(t, bytes.HasPrefix([]byte(content), []byte("---\n")), "no front matter: %q", content)
	rest := content[len("---\n"):]
	end := bytes.Index([]byte(rest), []byte("\n---\n"))
	require.GreaterOrEqual(t, end, 0)
	var fm frontMatter
	require.NoError(t, yaml.Unmarshal([]byte(rest[:end+1]), &fm))
	return fm
}

func TestIsPublishable(t *testing.T) {
	markers := []string{DefaultPublishMarker}
	require.True(t, IsPublishable("---\npublish: true\n---\n", markers))
	require.True(t, IsPublishable("---\n  publish: true  \n---\n", markers))
	require.True(t, IsPublishable("body\r\npublish: true\r\n", markers))
	require.False(t, IsPublishable("---\npublish: false\n---\n", markers))
	require.False(t, IsPublishable("publish: truest", markers))
	require.False(t, IsPublishable("publish:true", markers))
	require.True(t, IsPublishable("publish = true", []string{"publish: true", "publish = true"}))
}

func TestFilterPublishable_OrderAndIdempotent(t *testing.T) {
	pages := []*models.Page{
		{Title: "A", Contents: "publish: true"},
		{Title: "B", Contents: "draft"},
		{Title: "C", Contents: "x\npublish: true\n"},
	}
	markers := []string{DefaultPublishMarker}

	once := FilterPublishable(pages, markers)
	require.Len(t, once, 2)
	require.Equal(t, "A", once[0].Title)
	require.Equal(t, "C", once[1].Title)

	twice := FilterPublishable(once, markers)
	require.Equal(t, once, twice)

	require.Empty(t, FilterPublishable(nil, markers))
}

func TestOutputPath(t *testing.T) {
	require.Equal(t, "_index.md", OutputPath("Index"))
	require.Equal(t, "posts/index.md", OutputPath("index"))
	require.Equal(t, "posts/My Note.md", OutputPath("My Note"))
}

func TestBuild_EndToEnd(t *testing.T) {
	f := newFixture(t)
	writeFile(t, f.source, "Index.md", "---\npublish: true\n---\nWelcome to [[Y]].\n")
	writeFile(t, f.source, "X.md", "---\npublish: true\n---\n[[Y]] [[Y|again]] [[Y#part]]\n![[pic.png]]\n")
	writeFile(t, f.source, "sub/Z.md", "---\npublish: true\n---\nSee [[Y]].\n")
	writeFile(t, f.source, "Y.md", "---\ntitle: Why\npublish: true\n---\nNo links.\n")
	writeFile(t, f.source, "Draft.md", "---\npublish: false\n---\n[[Y]]\n")
	writeFile(t, f.source, "notes.txt", "publish: true\n[[Y]]\n")
	png := []byte{0x89, 'P', 'N', 'G', 1, 2, 3}
	writeFile(t, f.assetsSrc, "img/pic.png", string(png))

	res, err := f.assembler().Build(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, res.ID)
	require.Len(t, res.Pages, 4)
	require.Equal(t, []string{"pic.png"}, res.AssetsCopied)

	refs, ok := res.Backlinks.Lookup("Y")
	require.True(t, ok)
	require.Equal(t, []models.Backlink{
		{Source: "Index", Count: 1},
		{Source: "X", Count: 3},
		{Source: "Z", Count: 1},
	}, refs)

	y := readFile(t, f.dest, "posts/Y.md")
	fm := parseFrontMatter(t, y)
	require.Equal(t, []string{"Index", "X", "Z"}, fm.Backlinks)
	require.Equal(t, []int{1, 3, 1}, fm.BacklinksCount)
	require.Contains(t, y, "title: Why")

	x := readFile(t, f.dest, "posts/X.md")
	fm = parseFrontMatter(t, x)
	require.Empty(t, fm.Backlinks)
	require.Contains(t, x, "backlinks: []")
	require.Contains(t, x, `[Y]({{< ref "Y" >}}) [again]({{< ref "Y" >}})`)
	require.Contains(t, x, `{{< figure src="/assets/pic.png" alt="pic.png" >}}`)

	index := readFile(t, f.dest, "_index.md")
	require.Contains(t, index, `Welcome to [Y]({{< ref "Y" >}}).`)
	require.NoFileExists(t, filepath.Join(f.dest, "posts", "Index.md"))
	require.NoFileExists(t, filepath.Join(f.dest, "posts", "Draft.md"))
	require.FileExists(t, filepath.Join(f.dest, "posts", "Z.md"))

	got, err := os.ReadFile(filepath.Join(f.assetsDest, "pic.png"))
	require.NoError(t, err)
	require.Equal(t, png, got)

	for _, p := range res.Pages {
		require.NotEmpty(t, p.Fingerprint, p.Title)
		require.True(t, p.Annotated, p.Title)
	}
}

func TestBuild_RebuildIsStable(t *testing.T) {
	f := newFixture(t)
	writeFile(t, f.source, "A.md", "---\npublish: true\n---\n[[B]]\n")
	writeFile(t, f.source, "B.md", "---\npublish: true\n---\nbody\n")

	a := f.assembler()
	first, err := a.Build(context.Background())
	require.NoError(t, err)
	before := readFile(t, f.dest, "posts/B.md")

	second, err := a.Build(context.Background())
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)
	require.Equal(t, before, readFile(t, f.dest, "posts/B.md"))
}

func TestBuild_OutputNestedInSource(t *testing.T) {
	f := newFixture(t)
	f.dest = filepath.Join(f.source, "out")
	f.assetsSrc = f.source
	f.assetsDest = filepath.Join(f.source, "static")
	writeFile(t, f.source, "A.md", "---\npublish: true\n---\n[[B]] ![[pic.png]]\n")
	writeFile(t, f.source, "B.md", "---\npublish: true\n---\nbody\n")
	writeFile(t, f.source, "img/pic.png", "PNG")

	a := f.assembler()
	for i := range 2 {
		res, err := a.Build(context.Background())
		require.NoError(t, err, "build %d", i+1)
		require.Len(t, res.Pages, 2)
		require.Equal(t, []string{"pic.png"}, res.AssetsCopied)
	}
	require.FileExists(t, filepath.Join(f.dest, "posts", "A.md"))
}

func TestBuild_DuplicateTitles(t *testing.T) {
	f := newFixture(t)
	writeFile(t, f.source, "a/Same.md", "---\npublish: true\n---\n")
	writeFile(t, f.source, "b/Same.md", "---\npublish: true\n---\n")

	_, err := f.assembler().Build(context.Background())
	require.ErrorIs(t, err, apperr.ErrDuplicateTitle)
}

func TestBuild_DuplicateTitleAmongDraftsIsFine(t *testing.T) {
	f := newFixture(t)
	writeFile(t, f.source, "a/Same.md", "---\npublish: true\n---\n")
	writeFile(t, f.source, "b/Same.md", "---\ndraft: true\n---\n")

	_, err := f.assembler().Build(context.Background())
	require.NoError(t, err)
}

func TestBuild_MissingFrontMatterPolicy(t *testing.T) {
	f := newFixture(t)
	writeFile(t, f.source, "Bare.md", "publish: true\n[[Other]]\n")

	_, err := f.assembler().Build(context.Background())
	require.ErrorIs(t, err, apperr.ErrMissingFrontMatter)

	res, err := f.assembler(func(o *Options) { o.SkipMissingFrontMatter = true }).Build(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Pages, 1)
	require.False(t, res.Pages[0].Annotated)
	require.Equal(t, "publish: true\n[Other]({{< ref \"Other\" >}})\n", readFile(t, f.dest, "posts/Bare.md"))
}

func TestBuild_ImageSharedByPagesCountedOnce(t *testing.T) {
	f := newFixture(t)
	writeFile(t, f.source, "A.md", "---\npublish: true\n---\n![[pic.png]]\n")
	writeFile(t, f.source, "B.md", "---\npublish: true\n---\n![[pic.png]]\n")
	writeFile(t, f.source, "C.md", "---\npublish: true\n---\n![[pic.png|again]]\n")
	writeFile(t, f.assetsSrc, "pic.png", "PNG")

	res, err := f.assembler().Build(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"pic.png"}, res.AssetsCopied)
}

func TestBuild_UnresolvedImageIsNotAnError(t *testing.T) {
	f := newFixture(t)
	writeFile(t, f.source, "A.md", "---\npublish: true\n---\n![[nowhere.png]]\n")

	res, err := f.assembler().Build(context.Background())
	require.NoError(t, err)
	require.Empty(t, res.AssetsCopied)
	require.Equal(t, []string{"nowhere.png"}, res.AssetsUnresolved)
}

func TestBuild_WithoutAssetSource(t *testing.T) {
	f := newFixture(t)
	writeFile(t, f.source, "A.md", "---\npublish: true\n---\n![[pic.png]]\n")

	res, err := f.assembler(func(o *Options) { o.AssetsSource = "" }).Build(context.Background())
	require.NoError(t, err)
	require.Empty(t, res.AssetsCopied)
	require.NoDirExists(t, f.assetsDest)
}

func TestBuild_MissingSource(t *testing.T) {
	f := newFixture(t)
	_, err := f.assembler(func(o *Options) { o.Source = filepath.Join(f.source, "nope") }).Build(context.Background())
	require.Error(t, err)
}

func TestBuild_Canceled(t *testing.T) {
	f := newFixture(t)
	writeFile(t, f.source, "A.md", "---\npublish: true\n---\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.assembler().Build(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

type countingRecorder struct {
	stages   map[string]int
	outcomes map[string]int
	pages    int
	assets   int
}

func (c *countingRecorder) ObserveStageDuration(stage string, _ time.Duration) { c.stages[stage]++ }
func (c *countingRecorder) ObserveBuildDuration(time.Duration)                 {}
func (c *countingRecorder) IncBuildOutcome(o string)                           { c.outcomes[o]++ }
func (c *countingRecorder) AddPagesWritten(n int)                              { c.pages += n }
func (c *countingRecorder) AddAssetsCopied(n int)                              { c.assets += n }

func TestBuild_RecordsMetrics(t *testing.T) {
	f := newFixture(t)
	writeFile(t, f.source, "A.md", "---\npublish: true\n---\n![[p.gif]]\n")
	writeFile(t, f.assetsSrc, "p.gif", "GIF89a")

	rec := &countingRecorder{stages: map[string]int{}, outcomes: map[string]int{}}
	a := New(Options{
		Source:            f.source,
		Destination:       f.dest,
		AssetsSource:      f.assetsSrc,
		AssetsDestination: f.assetsDest,
	}, WithRecorder(rec), WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))

	_, err := a.Build(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, rec.outcomes["success"])
	require.Equal(t, 1, rec.pages)
	require.Equal(t, 1, rec.assets)
	for _, s := range []string{StageLoad, StageFilter, StageIndex, StageAnnotate, StagePersist, StageResolve, StageCopy} {
		require.Equal(t, 1, rec.stages[s], s)
	}
}
