package main

import (
	"context"
	"fmt"

	"github.com/dusk-indust/docgraph/internal/arango"
	"github.com/dusk-indust/docgraph/internal/config"
	"github.com/dusk-indust/docgraph/internal/exec"
	"github.com/dusk-indust/docgraph/internal/fixture"
	"github.com/dusk-indust/docgraph/internal/graph"
)

// schemaInitializer is implemented by backends that need tables declared
// before documents are inserted.
type schemaInitializer interface {
	InitSchema(ctx context.Context, tables []graph.TableSchema) error
}

// openDatabase connects to the configured backend. Declared schema tables
// are created on backends that need them.
func (a *app) openDatabase(ctx context.Context) (graph.Database, error) {
	var db graph.Database
	switch a.cfg.Backend {
	case config.BackendMemory:
		db = graph.NewMemStore()
	case config.BackendKuzu:
		var err error
		if db, err = openKuzu(a.cfg.Kuzu.Path); err != nil {
			return nil, fmt.Errorf("open kuzu: %w", err)
		}
	case config.BackendArango:
		opts := []arango.Option{
			arango.WithTimeout(a.cfg.Arango.Timeout),
			arango.WithLogger(a.logger),
		}
		if a.cfg.Arango.Token != "" {
			opts = append(opts, arango.WithBearerToken(a.cfg.Arango.Token))
		} else {
			opts = append(opts, arango.WithBasicAuth(a.cfg.Arango.User, a.cfg.Arango.Password))
		}
		db = arango.New(a.cfg.Arango.URL, a.cfg.Arango.Database, opts...)
	default:
		return nil, fmt.Errorf("unknown backend %q", a.cfg.Backend)
	}

	if len(a.cfg.Schema) > 0 {
		if err := initSchema(ctx, db, a.cfg.Schema); err != nil {
			db.Close()
			return nil, err
		}
	}
	a.logger.Debug("opened database", "backend", a.cfg.Backend, "dialect", db.Dialect().Name())
	return db, nil
}

func (a *app) dispatcher(db graph.Database) *exec.Dispatcher {
	return exec.New(db,
		exec.WithLogger(a.logger),
		exec.WithBatchSize(a.cfg.BatchSize),
	)
}

func initSchema(ctx context.Context, db graph.Database, tables []graph.TableSchema) error {
	si, ok := db.(schemaInitializer)
	if !ok {
		return nil
	}
	if err := si.InitSchema(ctx, tables); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// seed loads the example graph into db.
func seed(ctx context.Context, db graph.Database) error {
	w, ok := db.(graph.Writer)
	if !ok {
		return fmt.Errorf("backend %s does not accept writes", db.Dialect().Name())
	}
	if err := initSchema(ctx, db, fixture.Schema()); err != nil {
		return err
	}
	return fixture.Seed(ctx, w)
}
