//go:build cgo

package main

import "github.com/dusk-indust/docgraph/internal/graph"

func openKuzu(path string) (graph.Database, error) {
	if path == "" {
		return graph.NewKuzuStore()
	}
	return graph.NewKuzuFileStore(path)
}
