package ownership

import (
	"strings"

	"github.com/vantagecrm/gatekeeper/pkg/auth"
)

// TenantField is the record attribute carrying the tenant identifier.
const TenantField = "tenantId"

// Spec is a resource type's ownership field configuration. A resource
// that declares neither field opts out of ownership filtering and gets
// tenant-wide visibility (fail-open).
type Spec struct {
	// OwnerField names the attribute identifying the owning user.
	OwnerField string

	// AssignedField names the attribute identifying the assigned user.
	AssignedField string
}

// Condition is a single field comparison. Op defaults to "=" when empty;
// "!=" and "LIKE" are also supported.
type Condition struct {
	Field string
	Op    string
	Value any
}

// Filter is a boolean-combinable predicate. Conditions are AND-ed
// together; each OrGroup is OR-ed internally and AND-ed with everything
// else. Keeping OR groups separate is what makes Merge safe: two OR
// clauses are conjoined, never flattened into one.
type Filter struct {
	Conditions []Condition
	OrGroups   [][]Condition
}

// Empty reports whether the filter places no constraints at all.
func (f Filter) Empty() bool {
	return len(f.Conditions) == 0 && len(f.OrGroups) == 0
}

// BuildPredicate returns the visibility predicate for the caller on a
// resource with the given ownership spec. Pure function, no failure modes.
//
// Super admins are not tenant-bound and receive an unconstrained filter.
// Owner and admin roles see every row in their tenant, as do all roles
// on resources that declare no ownership fields.
func BuildPredicate(ac *auth.Context, spec Spec) Filter {
	if ac.SuperAdmin {
		return Filter{}
	}

	f := Filter{
		Conditions: []Condition{{Field: TenantField, Value: ac.TenantID}},
	}

	if ac.Role.Privileged() {
		return f
	}

	var group []Condition
	if spec.OwnerField != "" {
		group = append(group, Condition{Field: spec.OwnerField, Value: ac.UserID})
	}
	if spec.AssignedField != "" {
		group = append(group, Condition{Field: spec.AssignedField, Value: ac.UserID})
	}

	// No declared fields: fail open to tenant-wide visibility.
	if len(group) == 0 {
		return f
	}

	f.OrGroups = append(f.OrGroups, group)
	return f
}

// CanAccessRecord applies the same decision as BuildPredicate to a
// materialized record. Tenant mismatch denies regardless of role.
func CanAccessRecord(ac *auth.Context, spec Spec, record map[string]any) bool {
	if ac.SuperAdmin {
		return true
	}

	if fieldString(record, TenantField) != ac.TenantID {
		return false
	}

	if ac.Role.Privileged() {
		return true
	}

	if spec.OwnerField == "" && spec.AssignedField == "" {
		return true
	}

	if spec.OwnerField != "" && fieldString(record, spec.OwnerField) == ac.UserID {
		return true
	}
	if spec.AssignedField != "" && fieldString(record, spec.AssignedField) == ac.UserID {
		return true
	}

	return false
}

// Merge combines two filters into one that requires both. OR groups from
// each side are preserved as separate groups, so a caller-supplied search
// OR cannot widen the ownership OR.
func Merge(a, b Filter) Filter {
	merged := Filter{}
	merged.Conditions = append(merged.Conditions, a.Conditions...)
	merged.Conditions = append(merged.Conditions, b.Conditions...)
	merged.OrGroups = append(merged.OrGroups, a.OrGroups...)
	merged.OrGroups = append(merged.OrGroups, b.OrGroups...)
	return merged
}

// Matches evaluates the filter against a record.
func (f Filter) Matches(record map[string]any) bool {
	for _, c := range f.Conditions {
		if !c.matches(record) {
			return false
		}
	}

	for _, group := range f.OrGroups {
		if len(group) == 0 {
			continue
		}
		ok := false
		for _, c := range group {
			if c.matches(record) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}

	return true
}

func (c Condition) matches(record map[string]any) bool {
	got := fieldString(record, c.Field)
	want, _ := c.Value.(string)

	switch c.Op {
	case "", "=":
		return got == want
	case "!=":
		return got != want
	case "LIKE":
		return likeMatch(got, want)
	default:
		return false
	}
}

// likeMatch implements a minimal LIKE: a leading/trailing % means
// substring containment, otherwise exact match.
func likeMatch(s, pattern string) bool {
	core := pattern
	anchoredEnd := true
	anchoredStart := true
	if strings.HasPrefix(core, "%") {
		core = core[1:]
		anchoredStart = false
	}
	if strings.HasSuffix(core, "%") {
		core = core[:len(core)-1]
		anchoredEnd = false
	}
	switch {
	case anchoredStart && anchoredEnd:
		return s == pattern
	case anchoredStart:
		return strings.HasPrefix(s, core)
	case anchoredEnd:
		return strings.HasSuffix(s, core)
	default:
		return strings.Contains(s, core)
	}
}

// fieldString reads a record attribute as a string. Non-string values
// compare as absent.
func fieldString(record map[string]any, field string) string {
	if record == nil {
		return ""
	}
	if s, ok := record[field].(string); ok {
		return s
	}
	return ""
}
