// Package site compiles a source tree of notes into a Hugo content tree.
//
// A build runs these stages in order, each finishing before the next starts:
//
//	load -> filter -> index -> annotate -> persist -> resolve -> copy
//
// Any error aborts the build. Files already written are left in place.
package site

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/starford/humble/internal/assets"
	"github.com/starford/humble/internal/backlinks"
	"github.com/starford/humble/internal/frontmatter"
	"github.com/starford/humble/internal/loader"
	"github.com/starford/humble/internal/metrics"
	"github.com/starford/humble/internal/models"
	"github.com/starford/humble/internal/parser"
	"github.com/starford/humble/internal/rewrite"
	"github.com/starford/humble/internal/storage"
)

// Stage names used in logs and metrics.
const (
	StageLoad     = "load"
	StageFilter   = "filter"
	StageIndex    = "index"
	StageAnnotate = "annotate"
	StagePersist  = "persist"
	StageResolve  = "resolve"
	StageCopy     = "copy"
)

// DefaultWorkers bounds per-page concurrency when Options.Workers is unset.
const DefaultWorkers = 4

// Options selects the trees a build reads and writes.
type Options struct {
	Source            string
	Pattern           string
	Destination       string
	AssetsSource      string // empty disables the asset stages
	AssetsDestination string
	Workers           int
	PublishMarkers    []string
	// SkipMissingFrontMatter writes pages without front matter unannotated
	// instead of failing the build.
	SkipMissingFrontMatter bool
}

// PageOutput describes one written page.
type PageOutput struct {
	Title       string            `json:"title"`
	Source      string            `json:"source"`
	Output      string            `json:"output"` // relative to the destination
	Fingerprint string            `json:"fingerprint"`
	Annotated   bool              `json:"annotated"`
	Backlinks   []models.Backlink `json:"backlinks"`
	Wikilinks   []models.WikiLink `json:"wikilinks,omitempty"`
	Contents    string            `json:"-"`
}

// Result is the outcome of a successful build.
type Result struct {
	ID               string
	StartedAt        time.Time
	FinishedAt       time.Time
	Pages            []PageOutput
	Backlinks        *backlinks.Index
	AssetsCopied     []string
	AssetsUnresolved []string
}

// Duration returns the wall time of the build.
func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Assembler) {
		a.logger = l
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(a *Assembler) {
		a.recorder = r
	}
}

// WithPatterns replaces the default wikilink patterns.
func WithPatterns(p parser.Patterns) Option {
	return func(a *Assembler) {
		a.patterns = p
	}
}

// Assembler runs builds. It holds no per-build state, but callers must not
// run two builds against the same destination at once.
type Assembler struct {
	opts     Options
	patterns parser.Patterns
	logger   *slog.Logger
	recorder metrics.Recorder
}

// New creates an Assembler.
func New(opts Options, options ...Option) *Assembler {
	if opts.Pattern == "" {
		opts.Pattern = loader.DefaultPattern
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if len(opts.PublishMarkers) == 0 {
		opts.PublishMarkers = []string{DefaultPublishMarker}
	}
	a := &Assembler{
		opts:     opts,
		patterns: parser.DefaultPatterns(),
		logger:   slog.Default(),
		recorder: metrics.NoopRecorder{},
	}
	for _, o := range options {
		o(a)
	}
	return a
}

// Options returns the effective options.
func (a *Assembler) Options() Options {
	return a.opts
}

// Build compiles the site.
func (a *Assembler) Build(ctx context.Context) (*Result, error) {
	res := &Result{ID: uuid.NewString(), StartedAt: time.Now()}
	log := a.logger.With(slog.String("build_id", res.ID))

	err := a.build(ctx, res, log)
	res.FinishedAt = time.Now()
	a.recorder.ObserveBuildDuration(res.Duration())

	switch {
	case err == nil:
		a.recorder.IncBuildOutcome(metrics.OutcomeSuccess)
		log.Info("build finished",
			slog.Int("pages", len(res.Pages)),
			slog.Int("assets", len(res.AssetsCopied)),
			slog.Duration("duration", res.Duration()))
		return res, nil
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		a.recorder.IncBuildOutcome(metrics.OutcomeCanceled)
	default:
		a.recorder.IncBuildOutcome(metrics.OutcomeFailed)
	}
	log.Error("build failed", slog.String("error", err.Error()))
	return nil, err
}

func (a *Assembler) build(ctx context.Context, res *Result, log *slog.Logger) error {
	src, err := storage.NewFS(a.opts.Source)
	if err != nil {
		return fmt.Errorf("site: source: %w", err)
	}
	src.Exclude(a.outputDirs()...)
	p := parser.New(a.patterns)

	var pages []*models.Page
	if err := a.stage(ctx, log, StageLoad, func() (err error) {
		pages, err = loader.New(src, p).LoadAll(a.opts.Pattern)
		return err
	}); err != nil {
		return err
	}

	if err := a.stage(ctx, log, StageFilter, func() error {
		loaded := len(pages)
		pages = FilterPublishable(pages, a.opts.PublishMarkers)
		log.Debug("publishable pages", slog.Int("loaded", loaded), slog.Int("published", len(pages)))
		return checkDuplicateTitles(pages)
	}); err != nil {
		return err
	}

	if err := a.stage(ctx, log, StageIndex, func() error {
		res.Backlinks = backlinks.Build(pages)
		log.Debug("backlink index built", slog.Int("targets", res.Backlinks.Len()))
		return nil
	}); err != nil {
		return err
	}

	outputs := make([]PageOutput, len(pages))
	if err := a.stage(ctx, log, StageAnnotate, func() error {
		return a.forEach(ctx, len(pages), func(i int) error {
			out, err := a.annotate(pages[i], res.Backlinks, log)
			outputs[i] = out
			return err
		})
	}); err != nil {
		return err
	}

	if err := a.stage(ctx, log, StagePersist, func() error {
		dest, err := storage.EnsureFS(a.opts.Destination)
		if err != nil {
			return fmt.Errorf("site: destination: %w", err)
		}
		if err := a.forEach(ctx, len(outputs), func(i int) error {
			return a.persist(dest, &outputs[i], log)
		}); err != nil {
			return err
		}
		a.recorder.AddPagesWritten(len(outputs))
		return nil
	}); err != nil {
		return err
	}
	res.Pages = outputs

	if a.opts.AssetsSource == "" {
		log.Debug("no asset source configured, skipping assets")
		return nil
	}

	var (
		assetSrc *storage.FS
		images   assets.ImageMap
	)
	if err := a.stage(ctx, log, StageResolve, func() (err error) {
		if assetSrc, err = storage.NewFS(a.opts.AssetsSource); err != nil {
			return fmt.Errorf("site: assets source: %w", err)
		}
		assetSrc.Exclude(a.outputDirs()...)
		images, err = assets.Resolve(assetSrc)
		return err
	}); err != nil {
		return err
	}

	return a.stage(ctx, log, StageCopy, func() error {
		assetDest, err := storage.EnsureFS(a.opts.AssetsDestination)
		if err != nil {
			return fmt.Errorf("site: assets destination: %w", err)
		}
		copier := assets.NewCopier(images, assetSrc, assetDest, a.patterns.Embed, log)
		for _, page := range pages {
			if err := ctx.Err(); err != nil {
				return err
			}
			cr, err := copier.CopyReferenced(page)
			if err != nil {
				return err
			}
			res.AssetsCopied = append(res.AssetsCopied, cr.Copied...)
			res.AssetsUnresolved = append(res.AssetsUnresolved, cr.Unresolved...)
		}
		a.recorder.AddAssetsCopied(len(res.AssetsCopied))
		return nil
	})
}

// outputDirs lists the trees a build writes to. They are never read back
// as input when nested in a source tree.
func (a *Assembler) outputDirs() []string {
	return []string{a.opts.Destination, a.opts.AssetsDestination}
}

func (a *Assembler) annotate(page *models.Page, idx *backlinks.Index, log *slog.Logger) (PageOutput, error) {
	refs, _ := idx.Lookup(page.Title)
	out := PageOutput{
		Title:     page.Title,
		Source:    page.Path,
		Output:    OutputPath(page.Title),
		Backlinks: refs,
		Wikilinks: page.Wikilinks,
	}

	annotated, err := frontmatter.Annotate(page.Contents, refs)
	switch {
	case err == nil:
		page.Contents = annotated
		out.Annotated = true
	case a.opts.SkipMissingFrontMatter && isMissingFrontMatter(err):
		log.Warn("page has no front matter, writing it unannotated",
			slog.String("page", page.Title), slog.String("path", page.Path))
	default:
		return out, fmt.Errorf("site: annotate %q: %w", page.Title, err)
	}
	out.Contents = page.Contents
	return out, nil
}

func isMissingFrontMatter(err error) bool {
	return errors.Is(err, frontmatter.ErrMissingFrontMatter) ||
		errors.Is(err, frontmatter.ErrMissingClosingDelimiter)
}

func (a *Assembler) persist(dest storage.Provider, out *PageOutput, log *slog.Logger) error {
	out.Contents = rewrite.Hugo(out.Contents, a.patterns)
	out.Fingerprint = frontmatter.Fingerprint(out.Contents)
	if err := dest.Write(out.Output, []byte(out.Contents)); err != nil {
		return fmt.Errorf("site: write %q: %w", out.Title, err)
	}
	log.Debug("page written", slog.String("page", out.Title), slog.String("output", out.Output))
	return nil
}

// forEach runs fn for 0..n-1 on at most Workers goroutines.
func (a *Assembler) forEach(ctx context.Context, n int, fn func(i int) error) error {
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Workers)
	for i := range n {
		if gCtx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			return fn(i)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (a *Assembler) stage(ctx context.Context, log *slog.Logger, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	err := fn()
	d := time.Since(start)
	a.recorder.ObserveStageDuration(name, d)
	if err != nil {
		return err
	}
	log.Info("stage done", slog.String("stage", name), slog.Duration("duration", d))
	return nil
}
