package condition

import (
	"fmt"
)

// MaxDepth bounds condition tree nesting. Trees from the visual builder rarely
// exceed 4 or 5 levels; the limit exists so the evaluator never has to defend
// against pathological input.
const MaxDepth = 32

// Validate checks a condition tree for structural soundness: known operators,
// group/leaf exclusivity, NOT arity, the depth limit and reference cycles.
// Enforcing this at save time keeps Evaluate itself simple and total.
func Validate(n *Node) error {
	if n == nil {
		return fmt.Errorf("condition cannot be nil")
	}
	seen := make(map[*Node]bool)
	return validate(n, 1, seen)
}

func validate(n *Node, depth int, seen map[*Node]bool) error {
	if n == nil {
		return fmt.Errorf("condition contains a nil node")
	}
	if depth > MaxDepth {
		return fmt.Errorf("condition exceeds maximum depth of %d", MaxDepth)
	}
	if seen[n] {
		return fmt.Errorf("condition contains a reference cycle")
	}
	seen[n] = true
	defer delete(seen, n)

	if n.IsLeaf() {
		if n.Op != "" || len(n.Children) > 0 {
			return fmt.Errorf("node for field %q mixes leaf and group forms", n.Field)
		}
		if !knownOperators[n.Operator] {
			return fmt.Errorf("unknown operator %q on field %q", n.Operator, n.Field)
		}
		if n.Value == nil {
			return fmt.Errorf("leaf for field %q has no comparison value", n.Field)
		}
		return validateLeafValue(n)
	}

	switch n.Op {
	case OpAnd, OpOr:
		if len(n.Children) == 0 {
			return fmt.Errorf("%s group must have at least one child", n.Op)
		}
	case OpNot:
		if len(n.Children) != 1 {
			return fmt.Errorf("not group must have exactly one child, got %d", len(n.Children))
		}
	case "":
		return fmt.Errorf("node is neither a group nor a leaf")
	default:
		return fmt.Errorf("unknown group operator %q", n.Op)
	}

	for _, child := range n.Children {
		if err := validate(child, depth+1, seen); err != nil {
			return err
		}
	}
	return nil
}

// validateLeafValue enforces the operator/value-kind pairings.
func validateLeafValue(n *Node) error {
	switch n.Operator {
	case OpIn, OpNotIn:
		if n.Value.Kind != KindStringList {
			return fmt.Errorf("operator %q on field %q requires a string_list value, got %s",
				n.Operator, n.Field, n.Value.Kind)
		}
	case OpContains, OpStartsWith:
		if n.Value.Kind != KindString {
			return fmt.Errorf("operator %q on field %q requires a string value, got %s",
				n.Operator, n.Field, n.Value.Kind)
		}
	case OpGt, OpLt, OpGe, OpLe:
		if n.Value.Kind != KindNumber && n.Value.Kind != KindDate {
			return fmt.Errorf("operator %q on field %q requires a number or date value, got %s",
				n.Operator, n.Field, n.Value.Kind)
		}
	case OpEq, OpNe:
		if n.Value.Kind == KindStringList {
			return fmt.Errorf("operator %q on field %q cannot compare against a string_list",
				n.Operator, n.Field)
		}
	}
	return nil
}
