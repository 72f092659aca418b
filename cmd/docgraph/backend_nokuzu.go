//go:build !cgo

package main

import (
	"errors"

	"github.com/dusk-indust/docgraph/internal/graph"
)

func openKuzu(string) (graph.Database, error) {
	return nil, errors.New("kuzu backend requires a cgo build")
}
