package auth

import (
	"context"
	"testing"
)

func TestWithAuthAndFromContext(t *testing.T) {
	ac := AuthContext{Role: RoleService, ClientInfo: "menuboard-cli/1.0"}

	ctx := WithAuth(context.Background(), ac)
	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected AuthContext in context")
	}
	if got.Role != RoleService {
		t.Errorf("Role = %q, want %q", got.Role, RoleService)
	}
	if got.ClientInfo != "menuboard-cli/1.0" {
		t.Errorf("ClientInfo = %q, want %q", got.ClientInfo, "menuboard-cli/1.0")
	}
}

func TestFromContextMissing(t *testing.T) {
	_, ok := FromContext(context.Background())
	if ok {
		t.Error("expected false for missing AuthContext")
	}
}

func TestRoleFromMissing(t *testing.T) {
	if RoleFrom(context.Background()) != "" {
		t.Error("expected empty role for missing context")
	}
}

func TestIsService(t *testing.T) {
	if !IsService(WithAuth(context.Background(), AuthContext{Role: RoleService})) {
		t.Error("expected IsService = true for service role")
	}
	if IsService(WithAuth(context.Background(), AuthContext{Role: RoleAnon})) {
		t.Error("expected IsService = false for anon role")
	}
	if IsService(context.Background()) {
		t.Error("expected IsService = false for missing context")
	}
}

func TestRoleAllows(t *testing.T) {
	tests := []struct {
		have, want Role
		ok         bool
	}{
		{RoleService, RoleService, true},
		{RoleService, RoleAnon, true},
		{RoleAnon, RoleAnon, true},
		{RoleAnon, RoleService, false},
		{"", RoleAnon, false},
	}
	for _, tt := range tests {
		if got := tt.have.Allows(tt.want); got != tt.ok {
			t.Errorf("%q.Allows(%q) = %v, want %v", tt.have, tt.want, got, tt.ok)
		}
	}
}
