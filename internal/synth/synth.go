// Package synth builds the integration prompt and assembles the stored
// report body from specialist outputs.
//
// Section order is always the role declaration order, never the order in
// which jobs happened to finish.
package synth

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ShayCichocki/proposer/pkg/models"
)

// IntegratedHeading labels the synthesized section of a report.
const IntegratedHeading = "Integrated Proposal"

// Section is one successful specialist output.
type Section struct {
	Role   models.Role
	Output string
}

// Sections collects the successful specialist outputs of req in declaration order.
func Sections(req models.Request) []Section {
	var out []Section
	for _, job := range req.Succeeded() {
		out = append(out, Section{Role: job.Role, Output: job.Output})
	}
	return ordered(out)
}

// ordered returns a copy of sections sorted by role declaration order.
func ordered(sections []Section) []Section {
	out := make([]Section, len(sections))
	copy(out, sections)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Role.Order() < out[j].Role.Order()
	})
	return out
}

// IntegrationPrompt builds the prompt for the integration job. Every section
// is embedded under its role label; roles listed in missing are named so the
// synthesized document can acknowledge the gap.
func IntegrationPrompt(brief string, sections []Section, missing []models.Role) string {
	var b strings.Builder

	b.WriteString("You are a Principal Investigator writing a one-year seed R&D project proposal.\n")
	fmt.Fprintf(&b, "The core project idea is: %q\n", brief)
	fmt.Fprintf(&b, "You have received %d draft sections from specialist contributors. ", len(sections))
	b.WriteString("Reconcile overlaps and contradictions between them and produce one formal, coherent proposal document.\n\n")

	b.WriteString("Structure the document with: an executive summary, project background, objectives, ")
	b.WriteString("technical approach, market context, project plan with milestones, KPIs and risks, ")
	b.WriteString("budget outline, impact and significance, and a conclusion. ")
	b.WriteString("Use placeholders in square brackets for institution-specific details.\n\n")

	if len(missing) > 0 {
		labels := make([]string, 0, len(missing))
		for _, role := range missing {
			labels = append(labels, role.Label())
		}
		fmt.Fprintf(&b, "No input was received for: %s. Note these gaps rather than inventing content.\n\n",
			strings.Join(labels, ", "))
	}

	b.WriteString("--- [BEGIN SPECIALIST INPUTS] ---\n\n")
	for i, s := range ordered(sections) {
		fmt.Fprintf(&b, "--- %d. %s ---\n%s\n\n", i+1, s.Role.Label(), strings.TrimSpace(s.Output))
	}
	b.WriteString("--- [END SPECIALIST INPUTS] ---\n\n")
	b.WriteString("Now write the complete synthesized proposal.\n")

	return b.String()
}

// Assemble produces the stored report body: a title heading, one labeled
// section per successful role, then the integrated proposal.
func Assemble(brief string, sections []Section, integrated string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# R&D Proposal: %s\n\n", headline(brief))
	for _, s := range ordered(sections) {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", s.Role.Label(), strings.TrimSpace(s.Output))
	}
	fmt.Fprintf(&b, "## %s\n\n%s\n", IntegratedHeading, strings.TrimSpace(integrated))

	return b.String()
}

// headline returns the first line of brief, collapsed to single spaces.
func headline(brief string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(brief), "\n")
	return strings.Join(strings.Fields(line), " ")
}
