package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/humble/internal"
	pkgconfig "github.com/starford/humble/pkg/config"
)

var version = "dev"

// loadConfig reads the config file, applies flag overrides and validates
// the result.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cmd.IsSet("source") {
		cfg.Site.Source = cmd.String("source")
	}
	if cmd.IsSet("dest") {
		cfg.Site.Destination = cmd.String("dest")
	}
	if cmd.IsSet("assets-source") {
		cfg.Site.AssetsSource = cmd.String("assets-source")
	}
	if cmd.IsSet("assets-dest") {
		cfg.Site.AssetsDestination = cmd.String("assets-dest")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

type runFunc func(ctx context.Context, opts ...internal.Option) error

func action(run runFunc) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := run(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
			return fmt.Errorf("app run error: %w", err)
		}
		return nil
	}
}

func backlinks(ctx context.Context, cmd *cli.Command) error {
	title := cmd.Args().First()
	if title == "" {
		return errors.New("backlinks: a page title is required")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunBacklinks(ctx, title, internal.WithConfig(cfg))
}

func main() {
	cmd := &cli.Command{
		Name:    "humble",
		Usage:   "Compile a folder of Markdown notes with wikilinks into a Hugo content tree",
		Version: version,
		Action:  action(internal.RunBuild),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "source",
				Aliases: []string{"s"},
				Usage:   "Directory holding the source notes",
				Sources: cli.EnvVars("HUMBLE_SOURCE"),
			},
			&cli.StringFlag{
				Name:    "dest",
				Aliases: []string{"d"},
				Usage:   "Hugo content directory to write pages to",
				Sources: cli.EnvVars("HUMBLE_DEST"),
			},
			&cli.StringFlag{
				Name:    "assets-source",
				Usage:   "Directory searched for embedded images",
				Sources: cli.EnvVars("HUMBLE_ASSETS_SOURCE"),
			},
			&cli.StringFlag{
				Name:    "assets-dest",
				Usage:   "Directory embedded images are copied to",
				Sources: cli.EnvVars("HUMBLE_ASSETS_DEST"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "build",
				Usage:  "Compile the site once",
				Action: action(internal.RunBuild),
			},
			{
				Name:   "watch",
				Usage:  "Compile the site and rebuild it on every change",
				Action: action(internal.RunWatch),
			},
			{
				Name:   "serve",
				Usage:  "Watch the site and serve a preview API, build events and metrics",
				Action: action(internal.RunServe),
			},
			{
				Name:      "backlinks",
				Usage:     "Print the pages linking to a page in the last build",
				ArgsUsage: "<title>",
				Action:    backlinks,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools on stdin/stdout",
				Action: action(internal.RunMCP),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
