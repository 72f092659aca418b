package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dusk-indust/docgraph/internal/compile"
	"github.com/dusk-indust/docgraph/internal/query"
)

// loadQuery reads a YAML (or JSON) query file; "-" reads stdin.
func loadQuery(cmd *cobra.Command, path string) (*query.Query, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	var spec query.Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("query %s: %w", path, err)
	}
	q, err := spec.Build()
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", path, err)
	}
	return q, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newCompileCmd(a *app) *cobra.Command {
	var dialect string
	cmd := &cobra.Command{
		Use:   "compile <query-file>",
		Short: "Print the AQL or Cypher text and bind variables of a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := loadQuery(cmd, args[0])
			if err != nil {
				return err
			}
			var d compile.Dialect = compile.AQL{}
			switch dialect {
			case "aql":
			case "cypher":
				d = compile.Cypher{}
			default:
				return fmt.Errorf("unknown dialect %q (want aql or cypher)", dialect)
			}
			c, err := d.Compile(q)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"dialect":  c.Dialect,
				"query":    c.Text,
				"bindVars": c.BindVars,
			})
		},
	}
	cmd.Flags().StringVar(&dialect, "dialect", "aql", "aql or cypher")
	return cmd
}

func newQueryCmd(a *app) *cobra.Command {
	var (
		batchSize int
		seedFirst bool
	)
	cmd := &cobra.Command{
		Use:   "query <query-file>",
		Short: "Run a query and print the resulting documents",
		Long: `Runs a query file against the configured backend and prints one JSON
document per line. With --batch-size the results are streamed through a
server-side cursor; otherwise they are fetched in one round trip.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			q, err := loadQuery(cmd, args[0])
			if err != nil {
				return err
			}
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
			d := a.dispatcher(db)
			out := cmd.OutOrStdout()

			if batchSize <= 0 {
				docs, err := d.Immediate(ctx, q)
				if err != nil {
					return err
				}
				for _, doc := range docs {
					fmt.Fprintln(out, string(doc))
				}
				a.logger.Info("query done", "documents", len(docs))
				return nil
			}

			n := 0
			err = d.Each(ctx, q, batchSize, func(doc json.RawMessage) error {
				n++
				_, err := fmt.Fprintln(out, string(doc))
				return err
			})
			if err != nil {
				return err
			}
			a.logger.Info("query done", "documents", n)
			return nil
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "stream results through a cursor of this batch size")
	cmd.Flags().BoolVar(&seedFirst, "seed", false, "load the example graph before querying (memory and kuzu backends)")
	return cmd
}
