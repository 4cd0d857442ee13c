package auth

import (
	"context"
	"testing"
)

// mockResolver is a test resolver with configurable behavior.
type mockResolver struct {
	result Result
}

func (m *mockResolver) Resolve(_ context.Context, _ string) Result {
	return m.result
}

func TestChain_FirstYesStops(t *testing.T) {
	chain := &Chain{
		Resolvers: []Resolver{
			&mockResolver{result: Result{Decision: Yes, Context: &Context{UserID: "alice", TenantID: "org-1"}}},
			&mockResolver{result: Result{Decision: No, Err: ErrUnauthenticated}},
		},
	}

	result := chain.Resolve(context.Background(), "Bearer tok")

	if result.Decision != Yes {
		t.Errorf("Decision = %d, want Yes", result.Decision)
	}
	if result.Context.UserID != "alice" {
		t.Errorf("UserID = %q, want %q", result.Context.UserID, "alice")
	}
}

func TestChain_FirstNoStops(t *testing.T) {
	chain := &Chain{
		Resolvers: []Resolver{
			&mockResolver{result: Result{Decision: No, Err: ErrUnauthenticated}},
			&mockResolver{result: Result{Decision: Yes, Context: &Context{UserID: "bob"}}},
		},
	}

	result := chain.Resolve(context.Background(), "Bearer tok")

	if result.Decision != No {
		t.Errorf("Decision = %d, want No", result.Decision)
	}
}

func TestChain_AllAbstain_Unauthenticated(t *testing.T) {
	chain := &Chain{
		Resolvers: []Resolver{
			&mockResolver{result: Result{Decision: Abstain}},
			&mockResolver{result: Result{Decision: Abstain}},
		},
	}

	result := chain.Resolve(context.Background(), "")

	if result.Decision != No {
		t.Errorf("Decision = %d, want No", result.Decision)
	}
	if result.Err != ErrUnauthenticated {
		t.Errorf("Err = %v, want ErrUnauthenticated", result.Err)
	}
}

func TestChain_Empty_Unauthenticated(t *testing.T) {
	chain := &Chain{}
	result := chain.Resolve(context.Background(), "Bearer tok")
	if result.Decision != No {
		t.Errorf("Decision = %d, want No", result.Decision)
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
	}{
		{"owner", RoleOwner},
		{"ADMIN", RoleAdmin},
		{"Manager", RoleManager},
		{"member", RoleMember},
		{"viewer", RoleViewer},
		{"  Viewer  ", RoleViewer},
		{"", RoleMember},
		{"intern", RoleMember},
	}

	for _, tt := range tests {
		if got := ParseRole(tt.in); got != tt.want {
			t.Errorf("ParseRole(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRole_Privileged(t *testing.T) {
	tests := []struct {
		role Role
		want bool
	}{
		{RoleOwner, true},
		{RoleAdmin, true},
		{Role("Admin"), true},
		{RoleManager, false},
		{RoleMember, false},
		{RoleViewer, false},
	}

	for _, tt := range tests {
		if got := tt.role.Privileged(); got != tt.want {
			t.Errorf("Role(%q).Privileged() = %v, want %v", tt.role, got, tt.want)
		}
	}
}

func TestContext_RoundTrip(t *testing.T) {
	ac := &Context{UserID: "u1", TenantID: "t1", Role: RoleMember}
	ctx := WithContext(context.Background(), ac)

	got := FromContext(ctx)
	if got == nil || got.UserID != "u1" || got.TenantID != "t1" {
		t.Errorf("FromContext = %+v, want %+v", got, ac)
	}

	if FromContext(context.Background()) != nil {
		t.Error("FromContext on empty context should return nil")
	}
}
