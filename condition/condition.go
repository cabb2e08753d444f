// Package condition implements the boolean condition algebra that adjudication
// rules are written in: a finite tree of AND/OR/NOT groups over typed field
// comparisons, evaluated against a read-only claim snapshot.
//
// The vocabulary is deliberately closed. There is no expression language and
// no scripting surface; every operator the engine will ever run is listed in
// this file.
package condition

import (
	"encoding/json"
	"fmt"
)

// GroupOp combines child results.
type GroupOp string

const (
	OpAnd GroupOp = "and"
	OpOr  GroupOp = "or"
	OpNot GroupOp = "not"
)

// Operator compares a resolved claim field against the leaf's typed value.
type Operator string

const (
	OpEq         Operator = "="
	OpNe         Operator = "!="
	OpGt         Operator = ">"
	OpLt         Operator = "<"
	OpGe         Operator = ">="
	OpLe         Operator = "<="
	OpIn         Operator = "in"
	OpNotIn      Operator = "not_in"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "starts_with"
)

// knownOperators is the complete leaf operator vocabulary.
var knownOperators = map[Operator]bool{
	OpEq: true, OpNe: true, OpGt: true, OpLt: true, OpGe: true, OpLe: true,
	OpIn: true, OpNotIn: true, OpContains: true, OpStartsWith: true,
}

// Node is one vertex of a condition tree: either a group (Op and Children set)
// or a leaf (Field, Operator and Value set). The two shapes are mutually
// exclusive; Validate rejects nodes that mix them.
type Node struct {
	// Group form.
	Op       GroupOp `json:"op,omitempty"`
	Children []*Node `json:"children,omitempty"`

	// Leaf form.
	Field    string   `json:"field,omitempty"`
	Operator Operator `json:"operator,omitempty"`
	Value    *Value   `json:"value,omitempty"`
}

// IsLeaf reports whether the node is a field comparison.
func (n *Node) IsLeaf() bool {
	return n != nil && n.Field != ""
}

// Group builds a group node.
func Group(op GroupOp, children ...*Node) *Node {
	return &Node{Op: op, Children: children}
}

// Leaf builds a comparison node.
func Leaf(field string, op Operator, value Value) *Node {
	return &Node{Field: field, Operator: op, Value: &value}
}

// And, Or and Not are shorthand constructors used heavily in tests and in the
// synthetic-claim harness.
func And(children ...*Node) *Node { return Group(OpAnd, children...) }
func Or(children ...*Node) *Node  { return Group(OpOr, children...) }
func Not(child *Node) *Node       { return Group(OpNot, child) }

// Parse decodes a condition tree from its JSON wire form and validates it.
// Rule save paths must go through Parse (or Validate) so the evaluator only
// ever sees well-formed trees.
func Parse(data []byte) (*Node, error) {
	var n Node
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("malformed condition JSON: %w", err)
	}
	if err := Validate(&n); err != nil {
		return nil, err
	}
	return &n, nil
}
