package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/docgraph/internal/config"
)

// version is set by goreleaser at build time.
var version = "dev"

// CLI flags shared by every command.
type cliFlags struct {
	ConfigPath string
	Backend    string
	Verbose    bool
}

// app is the state built by the root pre-run and used by subcommands.
type app struct {
	flags  cliFlags
	cfg    *config.Config
	logger *slog.Logger
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	return root.Execute()
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "docgraph",
		Short: "Compile and run document graph queries",
		Long: `docgraph builds AQL or Cypher from declarative query files and runs
them against ArangoDB, an embedded Kuzu database or an in-memory store.

Examples:
  docgraph compile relatives.yml
  docgraph query --batch-size 50 relatives.yml
  docgraph --backend memory query --seed relatives.yml`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(stderr)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&a.flags.ConfigPath, "config", "", "path to docgraph.yml (default: ./docgraph.yml if present)")
	root.PersistentFlags().StringVar(&a.flags.Backend, "backend", "", "arango, kuzu or memory (overrides config and DOCGRAPH_BACKEND)")
	root.PersistentFlags().BoolVar(&a.flags.Verbose, "verbose", false, "log compiled queries")

	root.AddCommand(
		newCompileCmd(a),
		newQueryCmd(a),
		newSeedCmd(a),
		newServeMCPCmd(a),
		newVersionCmd(),
	)
	return root
}

// setup loads the configuration and builds the logger.
func (a *app) setup(stderr io.Writer) error {
	var err error
	if a.flags.ConfigPath != "" {
		a.cfg, err = config.LoadFile(a.flags.ConfigPath)
	} else {
		a.cfg, err = config.Load(".")
	}
	if err != nil {
		return err
	}
	if a.flags.Backend != "" {
		a.cfg.Backend = config.Backend(a.flags.Backend)
		if err := a.cfg.Validate(); err != nil {
			return err
		}
	}

	level := parseLevel(a.cfg.LogLevel)
	if a.flags.Verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	return nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		},
		// Replaces the root hook: a broken config must not hide the version.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	}
}
