package ownership

import (
	"reflect"
	"testing"

	"github.com/vantagecrm/gatekeeper/pkg/auth"
)

func TestToSQL_Empty(t *testing.T) {
	sql, args := (Filter{}).ToSQL(1)
	if sql != "" || args != nil {
		t.Errorf("ToSQL = (%q, %v), want empty", sql, args)
	}
}

func TestToSQL_TenantOnly(t *testing.T) {
	ac := &auth.Context{UserID: "u1", TenantID: "t1", Role: auth.RoleAdmin}
	f := BuildPredicate(ac, Spec{OwnerField: "ownerId"})

	sql, args := f.ToSQL(1)

	if sql != "tenantId = $1" {
		t.Errorf("sql = %q", sql)
	}
	if !reflect.DeepEqual(args, []any{"t1"}) {
		t.Errorf("args = %v", args)
	}
}

func TestToSQL_OwnershipGroup(t *testing.T) {
	ac := &auth.Context{UserID: "u1", TenantID: "t1", Role: auth.RoleMember}
	f := BuildPredicate(ac, Spec{OwnerField: "ownerId", AssignedField: "assignedToId"})

	sql, args := f.ToSQL(1)

	want := "tenantId = $1 AND (ownerId = $2 OR assignedToId = $3)"
	if sql != want {
		t.Errorf("sql = %q, want %q", sql, want)
	}
	if !reflect.DeepEqual(args, []any{"t1", "u1", "u1"}) {
		t.Errorf("args = %v", args)
	}
}

func TestToSQL_StartIndex(t *testing.T) {
	f := Filter{Conditions: []Condition{{Field: "status", Value: "active"}}}

	sql, _ := f.ToSQL(5)

	if sql != "status = $5" {
		t.Errorf("sql = %q", sql)
	}
}

func TestToSQL_Operators(t *testing.T) {
	f := Filter{Conditions: []Condition{
		{Field: "status", Op: "!=", Value: "archived"},
		{Field: "name", Op: "LIKE", Value: "%ann%"},
		{Field: "stage", Op: "; DROP TABLE", Value: "x"},
	}}

	sql, args := f.ToSQL(1)

	want := "status != $1 AND name LIKE $2 AND stage = $3"
	if sql != want {
		t.Errorf("sql = %q, want %q", sql, want)
	}
	if len(args) != 3 {
		t.Errorf("args = %v", args)
	}
}
