package models

// Role identifies the specialist responsible for one section of a proposal.
type Role string

const (
	// RoleBackground researches the problem statement and strategic alignment.
	RoleBackground Role = "background"
	// RoleTechnical describes the technical framework and key innovations.
	RoleTechnical Role = "technical"
	// RoleMarket analyses target markets and competitors.
	RoleMarket Role = "market"
	// RoleBudget estimates a seed-phase budget.
	RoleBudget Role = "budget"
	// RolePlanner proposes timeline, milestones, KPIs and risks.
	RolePlanner Role = "planner"
	// RoleImpact assesses broader impact and ESG considerations.
	RoleImpact Role = "impact"
	// RoleIntegration synthesizes every other role's output into one document.
	RoleIntegration Role = "integration"
)

// specialistRoles is the declaration order. Synthesis input order follows it.
var specialistRoles = []Role{
	RoleBackground,
	RoleTechnical,
	RoleMarket,
	RoleBudget,
	RolePlanner,
	RoleImpact,
}

var roleLabels = map[Role]string{
	RoleBackground:  "Background Research",
	RoleTechnical:   "Technical Framework",
	RoleMarket:      "Market & Competitor Analysis",
	RoleBudget:      "Budget (Seed Format)",
	RolePlanner:     "Timeline, Milestones, KPIs, Risks",
	RoleImpact:      "Impact & Significance",
	RoleIntegration: "Integrated Proposal",
}

// SpecialistRoles returns the non-integration roles in declaration order.
// The returned slice is a copy.
func SpecialistRoles() []Role {
	out := make([]Role, len(specialistRoles))
	copy(out, specialistRoles)
	return out
}

// Valid returns true if the role is a known value.
func (r Role) Valid() bool {
	_, ok := roleLabels[r]
	return ok
}

// IsIntegration reports whether r is the distinguished integration role.
func (r Role) IsIntegration() bool {
	return r == RoleIntegration
}

// Label returns the section heading used for this role in prompts and reports.
func (r Role) Label() string {
	if label, ok := roleLabels[r]; ok {
		return label
	}
	return string(r)
}

// Order returns the role's position in declaration order.
// The integration role sorts after every specialist; unknown roles sort last.
func (r Role) Order() int {
	for i, role := range specialistRoles {
		if role == r {
			return i
		}
	}
	if r == RoleIntegration {
		return len(specialistRoles)
	}
	return len(specialistRoles) + 1
}
