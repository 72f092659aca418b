package query

import (
	"fmt"
	"strings"
)

// Operator is a comparison operator used in a filter condition. Operators
// are a closed set rendered verbatim by the compilers; operand values are
// always bound as variables.
type Operator string

const (
	OpEq    Operator = "=="
	OpNe    Operator = "!="
	OpLt    Operator = "<"
	OpLte   Operator = "<="
	OpGt    Operator = ">"
	OpGte   Operator = ">="
	OpIn    Operator = "IN"
	OpNotIn Operator = "NOT IN"
	OpLike  Operator = "LIKE"
	OpNull  Operator = "NULL" // field is null or absent; Value is ignored
)

var operatorAliases = map[string]Operator{
	"==": OpEq, "=": OpEq, "eq": OpEq,
	"!=": OpNe, "<>": OpNe, "ne": OpNe,
	"<": OpLt, "lt": OpLt,
	"<=": OpLte, "lte": OpLte,
	">": OpGt, "gt": OpGt,
	">=": OpGte, "gte": OpGte,
	"in": OpIn,
	"not in": OpNotIn, "nin": OpNotIn,
	"like": OpLike,
	"null": OpNull, "is null": OpNull,
}

// ParseOperator resolves an operator from its symbol or short name
// ("==", "eq", "not in", ...). Matching is case-insensitive.
func ParseOperator(s string) (Operator, error) {
	op, ok := operatorAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("query: unknown operator %q", s)
	}
	return op, nil
}

// Valid reports whether o is one of the supported operators.
func (o Operator) Valid() bool {
	switch o {
	case OpEq, OpNe, OpLt, OpLte, OpGt, OpGte, OpIn, OpNotIn, OpLike, OpNull:
		return true
	}
	return false
}

// Condition is a single `field <op> value` predicate. Field is a document
// attribute path such as "name" or "address.city".
type Condition struct {
	Field string
	Op    Operator
	Value any
}

// FieldRef starts a condition on a document attribute.
//
//	query.New("Character").Filter(query.Field("surname").Eq("Stark"))
type FieldRef struct {
	name string
}

// Field returns a FieldRef for the given attribute path.
func Field(name string) FieldRef { return FieldRef{name: name} }

func (f FieldRef) cond(op Operator, v any) Condition {
	return Condition{Field: f.name, Op: op, Value: v}
}

func (f FieldRef) Eq(v any) Condition  { return f.cond(OpEq, v) }
func (f FieldRef) Ne(v any) Condition  { return f.cond(OpNe, v) }
func (f FieldRef) Lt(v any) Condition  { return f.cond(OpLt, v) }
func (f FieldRef) Lte(v any) Condition { return f.cond(OpLte, v) }
func (f FieldRef) Gt(v any) Condition  { return f.cond(OpGt, v) }
func (f FieldRef) Gte(v any) Condition { return f.cond(OpGte, v) }

// In matches when the attribute equals one of values.
func (f FieldRef) In(values ...any) Condition { return f.cond(OpIn, values) }

// NotIn matches when the attribute equals none of values.
func (f FieldRef) NotIn(values ...any) Condition { return f.cond(OpNotIn, values) }

// Like matches a pattern where % is any run of characters and _ a single
// character.
func (f FieldRef) Like(pattern string) Condition { return f.cond(OpLike, pattern) }

// IsNull matches documents where the attribute is null or missing.
func (f FieldRef) IsNull() Condition { return f.cond(OpNull, nil) }

// Filter is one FILTER clause. A single condition is the common case; more
// than one condition forms an OR-group.
type Filter struct {
	Any []Condition
}
