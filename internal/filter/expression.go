// Package filter builds the filter and sort documents accepted by the
// backend listing endpoints.
package filter

import (
	"encoding/json"
	"fmt"
)

// Op is a comparison operator understood by the backend.
type Op string

const (
	OpEq       Op = "$eq"
	OpIn       Op = "$in"
	OpContains Op = "$contains"
	OpAll      Op = "$all"
	OpGt       Op = "$gt"
	OpLte      Op = "$lte"
)

// Clause holds the comparisons applied to a single field.
type Clause map[Op]any

// Expression is a set of per-field clauses. Top-level fields combine by
// conjunction: a record matches only if every clause matches.
type Expression map[string]Clause

// Eq matches a field equal to v.
func Eq(v any) Clause { return Clause{OpEq: v} }

// In matches a field equal to any of vs.
func In[T any](vs []T) Clause { return Clause{OpIn: vs} }

// Contains matches a collection field containing v.
func Contains(v any) Clause { return Clause{OpContains: v} }

// All matches a collection field containing every element of vs.
func All[T any](vs []T) Clause { return Clause{OpAll: vs} }

// Between matches a field in the half-open interval (lower, upper].
func Between(lower, upper any) Clause { return Clause{OpGt: lower, OpLte: upper} }

// AtMost matches a field less than or equal to upper.
func AtMost(upper any) Clause { return Clause{OpLte: upper} }

// With returns the expression extended with a clause for field. Operators
// merge into any existing clause for that field, last write winning per
// operator. A nil expression is allocated on first use.
func (e Expression) With(field string, c Clause) Expression {
	if e == nil {
		e = Expression{}
	}
	cur, ok := e[field]
	if !ok {
		cur = Clause{}
		e[field] = cur
	}
	for op, v := range c {
		cur[op] = v
	}
	return e
}

// Encode serializes the expression to the JSON document the backend accepts
// as its filter query parameter. An empty expression encodes to "" so callers
// can omit the parameter entirely.
func (e Expression) Encode() (string, error) {
	if len(e) == 0 {
		return "", nil
	}
	b, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("encode filter: %w", err)
	}
	return string(b), nil
}
