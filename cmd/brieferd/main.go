package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	appconfig "github.com/brieferhq/briefer/config"
	"github.com/brieferhq/briefer/internal/agent/core"
	"github.com/brieferhq/briefer/internal/agent/telemetry"
	"github.com/brieferhq/briefer/internal/server"
	"github.com/brieferhq/briefer/internal/store"
)

var version = "dev"

func main() {
	var configPath string

	var root = &cobra.Command{Use: "brieferd"}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	var serveAddr string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := appconfig.LoadConfig(configPath)
			if serveAddr != "" {
				cfg.Server.Address = serveAddr
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.Run(ctx, cfg)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")

	var runDepth string
	var runPurpose string
	var runFormat string
	var run = &cobra.Command{
		Use:   "run [query]",
		Short: "Run one research request and print the document",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := appconfig.LoadConfig(configPath)
			ctx := cmd.Context()

			tel := telemetry.New(cfg.Telemetry)
			pipeline, err := core.BuildPipeline(ctx, cfg, tel, nil)
			if err != nil {
				return err
			}

			controls := core.Controls{Depth: runDepth, Purpose: runPurpose, OutputFormat: runFormat}
			req := core.NormalizedRequest{
				Query:    args[0],
				Metadata: map[string]any{"controls": controls},
			}
			result, err := pipeline.Orchestrator.Run(ctx, req)
			if err != nil {
				return err
			}
			if runFormat == "json" {
				raw, err := json.MarshalIndent(result, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(raw))
				return nil
			}
			fmt.Println(result.Output.Document)
			return nil
		},
	}
	run.Flags().StringVar(&runDepth, "depth", "", "research depth: quick, standard or deep")
	run.Flags().StringVar(&runPurpose, "purpose", "", "purpose hint: brd, company_research, req_elaboration, market_query")
	run.Flags().StringVar(&runFormat, "format", "markdown", "output format: markdown or json")

	var migDir string
	var direction string
	var steps int
	var migrate = &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := appconfig.LoadConfig(configPath)
			dsn, err := cfg.Storage.Postgres.DSN()
			if err != nil {
				return err
			}
			return store.Migrate(migDir, dsn, direction, steps)
		},
	}
	migrate.Flags().StringVar(&migDir, "dir", "file://migrations", "migrations source (file://migrations)")
	migrate.Flags().StringVar(&direction, "direction", "up", "up or down")
	migrate.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")

	var versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("brieferd", version)
		},
	}

	root.AddCommand(serve, run, migrate, versionCmd)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
