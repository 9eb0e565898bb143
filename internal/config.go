package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/humble/internal/loader"
	"github.com/starford/humble/internal/site"
	"github.com/starford/humble/internal/watch"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Missing front matter policies.
const (
	MissingFrontMatterFail = "fail"
	MissingFrontMatterSkip = "skip"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Site   SiteConfig        `yaml:"site"`
	SQLite SQLiteConfig      `yaml:"sqlite"`
	Watch  WatchConfig       `yaml:"watch"`
	Auth   AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Site.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Watch.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SiteConfig selects the trees a build reads and writes.
type SiteConfig struct {
	Source               string   `yaml:"source"`
	Pattern              string   `yaml:"pattern"`
	Destination          string   `yaml:"destination"`
	AssetsSource         string   `yaml:"assets_source"`
	AssetsDestination    string   `yaml:"assets_destination"`
	Workers              int      `yaml:"workers"`
	PublishMarkers       []string `yaml:"publish_markers"`
	OnMissingFrontMatter string   `yaml:"on_missing_front_matter"`
}

// Validate validates the site configuration.
func (c *SiteConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Source, validation.Required),
		validation.Field(&c.Pattern, validation.Required),
		validation.Field(&c.Destination, validation.Required),
		validation.Field(&c.Workers, validation.Required, validation.Min(1), validation.Max(64)),
		validation.Field(&c.PublishMarkers, validation.Required, validation.Each(validation.Required)),
		validation.Field(&c.OnMissingFrontMatter, validation.Required,
			validation.In(MissingFrontMatterFail, MissingFrontMatterSkip)),
	); err != nil {
		return fmt.Errorf("site: %w", err)
	}
	if (c.AssetsSource == "") != (c.AssetsDestination == "") {
		return errors.New("site: assets_source and assets_destination must be set together")
	}
	return nil
}

// Options converts the section into assembler options.
func (c *SiteConfig) Options() site.Options {
	return site.Options{
		Source:                 c.Source,
		Pattern:                c.Pattern,
		Destination:            c.Destination,
		AssetsSource:           c.AssetsSource,
		AssetsDestination:      c.AssetsDestination,
		Workers:                c.Workers,
		PublishMarkers:         c.PublishMarkers,
		SkipMissingFrontMatter: c.OnMissingFrontMatter == MissingFrontMatterSkip,
	}
}

// SQLiteConfig holds the build manifest database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// WatchConfig holds rebuild-on-change configuration.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(10*time.Millisecond)),
	)
}

// AuthConfig holds authentication configuration for the preview API.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 1313,
			},
		},
		Site: SiteConfig{
			Source:               "./notes",
			Pattern:              loader.DefaultPattern,
			Destination:          "./site/content",
			AssetsSource:         "./notes",
			AssetsDestination:    "./site/static/assets",
			Workers:              site.DefaultWorkers,
			PublishMarkers:       []string{site.DefaultPublishMarker},
			OnMissingFrontMatter: MissingFrontMatterFail,
		},
		SQLite: SQLiteConfig{
			Path: "./humble.db",
		},
		Watch: WatchConfig{
			Debounce: watch.DefaultDebounce,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
