package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/glamour"
	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/komorebi/internal"
	pkgconfig "github.com/starford/komorebi/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOrDefault(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg))
}

func listProjects(ctx context.Context, cmd *cli.Command) error {
	return callAndPrint(ctx, cmd, "list_projects", nil)
}

func generateReview(ctx context.Context, cmd *cli.Command) error {
	period := cmd.Args().First()
	if period == "" {
		period = "day"
	}
	return callAndPrint(ctx, cmd, "generate_review", map[string]any{
		"period": period,
		"date":   cmd.String("date"),
		"notes":  cmd.String("notes"),
	})
}

// callAndPrint runs one tool and writes its text to stdout, or to stderr
// with a non-zero exit when the tool reports an error.
func callAndPrint(ctx context.Context, cmd *cli.Command, tool string, args map[string]any) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// Keep the terminal clean; only warnings surface.
	cfg.App.LogLevel = max(cfg.App.LogLevel, slog.LevelWarn)

	text, isErr, err := internal.CallTool(ctx, tool, args, internal.WithConfig(cfg))
	if err != nil {
		return err
	}
	if isErr {
		fmt.Fprintln(os.Stderr, text)
		return errors.New(tool + " failed")
	}
	return render(os.Stdout, text, cmd.Bool("render"))
}

func render(w io.Writer, text string, styled bool) error {
	if styled {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(100),
		)
		if err != nil {
			return fmt.Errorf("init renderer: %w", err)
		}
		if text, err = r.Render(text); err != nil {
			return fmt.Errorf("render: %w", err)
		}
	}
	_, err := fmt.Fprintln(w, text)
	return err
}

func main() {
	cmd := &cli.Command{
		Name:  "komorebi",
		Usage: "Personal assistant core: Markdown projects, task index, reviews and an MCP tool surface",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.BoolFlag{
				Name:  "render",
				Usage: "Render Markdown output for the terminal",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "mcp",
				Usage:  "Serve the tools over MCP stdio",
				Action: serveMCP,
			},
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API and watch the projects directory",
				Action: serve,
			},
			{
				Name:   "projects",
				Usage:  "List projects with progress",
				Action: listProjects,
			},
			{
				Name:      "review",
				Usage:     "Generate a day, week or month review",
				ArgsUsage: "[day|week|month]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "date", Usage: "Explicit label: YYYY-MM-DD, YYYY-Www or YYYY-MM"},
					&cli.StringFlag{Name: "notes", Usage: "Reflection notes to include"},
				},
				Action: generateReview,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
