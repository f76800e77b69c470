package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/crmdesk/internal"
	"github.com/starford/crmdesk/internal/fixtures"
	pkgconfig "github.com/starford/crmdesk/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
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
	if err := internal.RunMCP(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("mcp run error: %w", err)
	}
	return nil
}

func initFixtures(_ context.Context, cmd *cli.Command) error {
	root := cmd.Args().First()
	if root == "" {
		root = "fixtures"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create fixtures dir: %w", err)
	}
	dir, err := fixtures.NewDir(root)
	if err != nil {
		return err
	}
	if err := dir.Save(fixtures.Sample()); err != nil {
		return fmt.Errorf("write fixtures: %w", err)
	}
	fmt.Fprintf(os.Stdout, "sample fixtures written to %s\n", dir.Root())
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "crmdesk",
		Usage:  "CRM workspace with a REST API, live dashboard events and assistant-driven UI components",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP server (default)",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the assistant tools over stdio",
				Action: serveMCP,
			},
			{
				Name:  "fixtures",
				Usage: "Manage fixture files",
				Commands: []*cli.Command{
					{
						Name:      "init",
						Usage:     "Write the sample data set into a directory",
						ArgsUsage: "[dir]",
						Action:    initFixtures,
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
