package models

import "testing"

func TestRole_Valid(t *testing.T) {
	tests := []struct {
		name string
		role Role
		want bool
	}{
		{"background is valid", RoleBackground, true},
		{"technical is valid", RoleTechnical, true},
		{"market is valid", RoleMarket, true},
		{"budget is valid", RoleBudget, true},
		{"planner is valid", RolePlanner, true},
		{"impact is valid", RoleImpact, true},
		{"integration is valid", RoleIntegration, true},
		{"empty string is invalid", Role(""), false},
		{"unknown role is invalid", Role("legal"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.role.Valid(); got != tt.want {
				t.Errorf("Role(%q).Valid() = %v, want %v", tt.role, got, tt.want)
			}
		})
	}
}

func TestSpecialistRoles_DeclarationOrder(t *testing.T) {
	want := []Role{RoleBackground, RoleTechnical, RoleMarket, RoleBudget, RolePlanner, RoleImpact}
	got := SpecialistRoles()
	if len(got) != len(want) {
		t.Fatalf("len(SpecialistRoles()) = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("SpecialistRoles()[%d] = %q, want %q", i, got[i], want[i])
		}
		if got[i].Order() != i {
			t.Errorf("%q.Order() = %d, want %d", got[i], got[i].Order(), i)
		}
	}

	// Mutating the copy must not affect later callers.
	got[0] = RoleImpact
	if SpecialistRoles()[0] != RoleBackground {
		t.Error("SpecialistRoles returned shared backing array")
	}
}

func TestRole_IntegrationSortsLast(t *testing.T) {
	if RoleIntegration.Order() <= RoleImpact.Order() {
		t.Errorf("integration order %d should be after impact order %d", RoleIntegration.Order(), RoleImpact.Order())
	}
	if !RoleIntegration.IsIntegration() {
		t.Error("RoleIntegration.IsIntegration() = false")
	}
	if RoleBudget.IsIntegration() {
		t.Error("RoleBudget.IsIntegration() = true")
	}
}

func TestRole_Label(t *testing.T) {
	if got := RoleMarket.Label(); got != "Market & Competitor Analysis" {
		t.Errorf("RoleMarket.Label() = %q", got)
	}
	if got := Role("custom").Label(); got != "custom" {
		t.Errorf("unknown role label = %q, want raw value", got)
	}
}
