package filter

import "strings"

// Matches reports whether item satisfies expr. A nil expr matches everything.
// The warning count reports leaves that referenced a field outside the schema
// (or an unknown operator) and were treated as non-matching instead of
// aborting the batch.
//
// Empty child lists have fixed semantics: and matches everything, or matches
// nothing, not matches everything.
func Matches(expr *Expr, item Fields) (matched bool, warnings int) {
	if expr == nil {
		return true, 0
	}
	matched = eval(expr, item, &warnings)
	return matched, warnings
}

func eval(e *Expr, item Fields, warnings *int) bool {
	if e == nil {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(e.Op)) {
	case OpAnd:
		for _, c := range e.Children {
			if !eval(c, item, warnings) {
				return false
			}
		}
		return true
	case OpOr:
		for _, c := range e.Children {
			if eval(c, item, warnings) {
				return true
			}
		}
		return false
	case OpNot:
		// Inverts the conjunction of the children; no children means no
		// constraint, which matches everything.
		if len(e.Children) == 0 {
			return true
		}
		for _, c := range e.Children {
			if !eval(c, item, warnings) {
				return true
			}
		}
		return false
	case "":
		return evalLeaf(e, item, warnings)
	default:
		*warnings++
		return false
	}
}

func evalLeaf(e *Expr, item Fields, warnings *int) bool {
	for field, include := range e.Match {
		if !KnownField(field) {
			*warnings++
			return false
		}
		// An absent or empty include set accepts any value.
		if len(include) == 0 {
			continue
		}
		if !intersects(item.values(field), include) {
			return false
		}
	}
	for field, exclude := range e.Exclude {
		if !KnownField(field) {
			*warnings++
			return false
		}
		if intersects(item.values(field), exclude) {
			return false
		}
	}
	return true
}

func intersects(have, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if strings.EqualFold(strings.TrimSpace(h), strings.TrimSpace(w)) {
				return true
			}
		}
	}
	return false
}
