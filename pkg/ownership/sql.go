package ownership

import (
	"fmt"
	"strings"
)

// ToSQL renders the filter as a SQL WHERE fragment with positional
// placeholders starting at startIndex, plus the matching argument list.
// An empty filter renders to an empty string. Field names are emitted as
// declared in the spec; the collaborator's query layer owns any
// column-name mapping.
func (f Filter) ToSQL(startIndex int) (string, []any) {
	if f.Empty() {
		return "", nil
	}

	var parts []string
	var args []any
	idx := startIndex

	for _, c := range f.Conditions {
		parts = append(parts, fmt.Sprintf("%s %s $%d", c.Field, sqlOp(c.Op), idx))
		args = append(args, c.Value)
		idx++
	}

	for _, group := range f.OrGroups {
		if len(group) == 0 {
			continue
		}
		var ors []string
		for _, c := range group {
			ors = append(ors, fmt.Sprintf("%s %s $%d", c.Field, sqlOp(c.Op), idx))
			args = append(args, c.Value)
			idx++
		}
		parts = append(parts, "("+strings.Join(ors, " OR ")+")")
	}

	return strings.Join(parts, " AND "), args
}

// sqlOp normalizes a condition operator for SQL emission. Unknown
// operators fall back to equality rather than injecting raw text.
func sqlOp(op string) string {
	switch op {
	case "", "=":
		return "="
	case "!=":
		return "!="
	case "LIKE":
		return "LIKE"
	default:
		return "="
	}
}
