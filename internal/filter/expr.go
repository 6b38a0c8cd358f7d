package filter

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Composite node operators. A node with an empty Op is a leaf.
const (
	OpAnd = "and"
	OpOr  = "or"
	OpNot = "not"
)

// ErrInvalid marks expressions rejected by Validate. Handlers map it to a
// save-time configuration error; the evaluation engine never sees such trees.
var ErrInvalid = errors.New("invalid filter expression")

const maxDepth = 32

// Expr is one node of a saved filter tree. Leaf nodes carry include sets
// (Match) and exclude sets (Exclude) keyed by schema field; composite nodes
// carry an operator and children. Trees are built once from a saved query and
// never mutated during evaluation.
type Expr struct {
	Op       string              `json:"op,omitempty"`
	Children []*Expr             `json:"children,omitempty"`
	Match    map[string][]string `json:"match,omitempty"`
	Exclude  map[string][]string `json:"exclude,omitempty"`
}

// Parse decodes a stored expression. A nil or empty payload is a valid
// "match everything" filter and decodes to nil.
func Parse(raw []byte) (*Expr, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var e Expr
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return &e, nil
}

// Validate rejects trees the evaluator cannot give well-defined answers for:
// unknown operators, unknown schema fields, and nodes mixing composite and
// leaf roles. Empty child lists are legal; their semantics are fixed by Matches.
func Validate(e *Expr) error {
	return validate(e, 0)
}

func validate(e *Expr, depth int) error {
	if e == nil {
		return nil
	}
	if depth > maxDepth {
		return fmt.Errorf("%w: tree deeper than %d levels", ErrInvalid, maxDepth)
	}
	op := strings.ToLower(strings.TrimSpace(e.Op))
	switch op {
	case OpAnd, OpOr, OpNot:
		if len(e.Match) > 0 || len(e.Exclude) > 0 {
			return fmt.Errorf("%w: composite %q node carries leaf constraints", ErrInvalid, op)
		}
		for _, c := range e.Children {
			if err := validate(c, depth+1); err != nil {
				return err
			}
		}
		return nil
	case "":
		if len(e.Children) > 0 {
			return fmt.Errorf("%w: leaf node carries children", ErrInvalid)
		}
		for field := range e.Match {
			if !KnownField(field) {
				return fmt.Errorf("%w: unknown field %q", ErrInvalid, field)
			}
		}
		for field := range e.Exclude {
			if !KnownField(field) {
				return fmt.Errorf("%w: unknown field %q", ErrInvalid, field)
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown operator %q", ErrInvalid, e.Op)
	}
}
