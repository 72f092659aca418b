package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/dusk-indust/docgraph/internal/fixture"
	"github.com/dusk-indust/docgraph/internal/mcptools"
)

func newSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the example family graph into the configured database",
		Long: fmt.Sprintf(`Creates the %s and %s collections' documents: twelve characters and
the parentage edges between them. The collections must exist on ArangoDB;
Kuzu tables are created when missing.`, fixture.Characters, fixture.ChildOfs),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := a.openDatabase(ctx)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := seed(ctx, db); err != nil {
				return err
			}
			a.logger.Info("seeded example graph",
				"characters", len(fixture.AllCharacters()), "backend", a.cfg.Backend)
			return nil
		},
	}
}

func newServeMCPCmd(a *app) *cobra.Command {
	var (
		addr        string
		metricsPath string
		seedFirst   bool
	)
	cmd := &cobra.Command{
		Use:   "serve-mcp",
		Short: "Serve the query tools over MCP streamable HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			db, err := a.openDatabase(ctx)
			if err != nil {
				return err
			}
			defer db.Close()
			if seedFirst {
				if err := seed(ctx, db); err != nil {
					return err
				}
			}

			extra := map[string]http.Handler{}
			if metricsPath != "" {
				extra[metricsPath] = promhttp.Handler()
			}
			svc := mcptools.NewQueryService(a.dispatcher(db))
			a.logger.Info("serving MCP", "addr", addr, "metrics", metricsPath, "backend", a.cfg.Backend)
			return mcptools.RunMCPServer(ctx, svc, addr, extra)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8765", "listen address")
	cmd.Flags().StringVar(&metricsPath, "metrics-path", "/metrics", "path of the Prometheus endpoint; empty disables it")
	cmd.Flags().BoolVar(&seedFirst, "seed", false, "load the example graph before serving")
	return cmd
}
