// Package fixture seeds the Game of Thrones family graph used by examples,
// tests and the `docgraph seed` command: twelve characters in the Character
// collection and fourteen ChildOf edges pointing from child to parent.
package fixture

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/docgraph/internal/graph"
)

// Collection names.
const (
	Characters = "Character"
	ChildOfs   = "ChildOf"
)

// Character is a vertex of the fixture graph.
type Character struct {
	Name    string `json:"name"`
	Surname string `json:"surname"`
}

// CollectionName implements record.Record.
func (Character) CollectionName() string { return Characters }

// ChildOf links a child (From) to a parent (To).
type ChildOf struct {
	From string `json:"_from"`
	To   string `json:"_to"`
}

// CollectionName implements record.Record.
func (ChildOf) CollectionName() string { return ChildOfs }

var characters = []Character{
	{"Ned", "Stark"},
	{"Catelyn", "Stark"},
	{"Robb", "Stark"},
	{"Bran", "Stark"},
	{"Arya", "Stark"},
	{"Sansa", "Stark"},
	{"John", "Snow"},
	{"Tywin", "Lannister"},
	{"Jaime", "Lannister"},
	{"Cersei", "Lannister"},
	{"Tyrion", "Lannister"},
	{"Joffrey", "Baratheon"},
}

// parentage lists child -> parent links in insertion order. Traversals
// visit edges in this order, so expected results depend on it.
var parentage = [][2]string{
	{"Robb", "Ned"}, {"Robb", "Catelyn"},
	{"Sansa", "Ned"}, {"Sansa", "Catelyn"},
	{"Arya", "Ned"}, {"Arya", "Catelyn"},
	{"Bran", "Ned"}, {"Bran", "Catelyn"},
	{"John", "Ned"},
	{"Jaime", "Tywin"},
	{"Cersei", "Tywin"},
	{"Tyrion", "Tywin"},
	{"Joffrey", "Cersei"}, {"Joffrey", "Jaime"},
}

// AllCharacters returns a copy of the fixture characters.
func AllCharacters() []Character {
	return append([]Character(nil), characters...)
}

// Key is the document key of a character: its lowercased first name.
func Key(name string) string { return strings.ToLower(name) }

// ID is the document handle of a character.
func ID(name string) string { return Characters + "/" + Key(name) }

// IDs maps names to document handles.
func IDs(names ...string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = ID(n)
	}
	return out
}

// Schema declares the fixture tables for the embedded Kuzu backend.
func Schema() []graph.TableSchema {
	return []graph.TableSchema{
		{
			Name: Characters,
			Properties: []graph.Property{
				{Name: "name", Type: "STRING"},
				{Name: "surname", Type: "STRING"},
			},
		},
		{Name: ChildOfs, Edge: true, From: Characters, To: Characters},
	}
}

// Seed inserts the fixture into w. Characters are inserted concurrently;
// edges go in one at a time to keep their order stable.
func Seed(ctx context.Context, w graph.Writer) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range characters {
		g.Go(func() error {
			doc := map[string]any{"_key": Key(c.Name), "name": c.Name, "surname": c.Surname}
			if _, err := w.InsertDocument(gctx, Characters, doc); err != nil {
				return fmt.Errorf("seed %s: %w", c.Name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, p := range parentage {
		edge := ChildOf{From: ID(p[0]), To: ID(p[1])}
		if _, err := w.InsertDocument(ctx, ChildOfs, edge); err != nil {
			return fmt.Errorf("seed %s -> %s: %w", p[0], p[1], err)
		}
	}
	return nil
}
