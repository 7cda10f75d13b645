package synth

import (
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/ShayCichocki/proposer/pkg/models"
)

func allSections() []Section {
	var out []Section
	for _, role := range models.SpecialistRoles() {
		out = append(out, Section{Role: role, Output: "output for " + string(role)})
	}
	return out
}

func TestSections_DeclarationOrder(t *testing.T) {
	req := models.Request{
		Specialists: []models.Job{
			{Role: models.RoleImpact, State: models.JobSucceeded, Output: "impact"},
			{Role: models.RoleBackground, State: models.JobSucceeded, Output: "background"},
			{Role: models.RoleMarket, State: models.JobFailed, ErrorKind: "timeout"},
			{Role: models.RoleTechnical, State: models.JobSucceeded, Output: "technical"},
		},
	}

	got := Sections(req)
	want := []models.Role{models.RoleBackground, models.RoleTechnical, models.RoleImpact}
	if len(got) != len(want) {
		t.Fatalf("len(Sections) = %d, want %d", len(got), len(want))
	}
	for i, s := range got {
		if s.Role != want[i] {
			t.Errorf("Sections[%d].Role = %q, want %q", i, s.Role, want[i])
		}
	}
}

func TestIntegrationPrompt(t *testing.T) {
	sections := allSections()[:4]
	missing := []models.Role{models.RolePlanner, models.RoleImpact}

	got := IntegrationPrompt("Solar drones", sections, missing)

	if !strings.Contains(got, `"Solar drones"`) {
		t.Error("prompt missing brief")
	}
	for _, s := range sections {
		if !strings.Contains(got, s.Role.Label()) || !strings.Contains(got, s.Output) {
			t.Errorf("prompt missing section for %s", s.Role)
		}
	}
	if !strings.Contains(got, "No input was received for: Timeline, Milestones, KPIs, Risks, Impact & Significance") {
		t.Error("prompt does not name missing roles")
	}
	if !strings.Contains(strings.ToLower(got), "reconcile") {
		t.Error("prompt missing reconcile instruction")
	}
}

func TestIntegrationPrompt_NoMissingNote(t *testing.T) {
	got := IntegrationPrompt("brief", allSections(), nil)
	if strings.Contains(got, "No input was received") {
		t.Error("unexpected missing-roles note when every role succeeded")
	}
}

func TestAssemble(t *testing.T) {
	body := Assemble("  Smart grid sensors\nfor rural areas", allSections(), "the merged document")

	if !strings.HasPrefix(body, "# R&D Proposal: Smart grid sensors\n") {
		t.Errorf("unexpected title line: %q", strings.SplitN(body, "\n", 2)[0])
	}

	last := -1
	for _, role := range models.SpecialistRoles() {
		idx := strings.Index(body, "## "+role.Label()+"\n")
		if idx < 0 {
			t.Fatalf("body missing section %q", role.Label())
		}
		if idx < last {
			t.Errorf("section %q out of order", role.Label())
		}
		last = idx
	}
	idx := strings.Index(body, "## "+IntegratedHeading+"\n\nthe merged document")
	if idx < last {
		t.Errorf("integrated section not last (at %d, previous %d)", idx, last)
	}
}

func TestAssemble_OrderIndependentOfInput(t *testing.T) {
	want := Assemble("brief", allSections(), "merged")

	rapid.Check(t, func(t *rapid.T) {
		perm := rapid.Permutation(allSections()).Draw(t, "sections")
		if got := Assemble("brief", perm, "merged"); got != want {
			t.Fatalf("body depends on input order:\n%s", got)
		}
		if got := IntegrationPrompt("brief", perm, nil); got != IntegrationPrompt("brief", allSections(), nil) {
			t.Fatalf("integration prompt depends on input order")
		}
	})
}
