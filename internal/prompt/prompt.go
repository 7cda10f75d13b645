// Package prompt builds the instruction payload sent to each specialist role.
//
// Every template is fixed per role and contains a single brief placeholder.
// Builders are pure: no role ever sees another role's output here; the
// integration prompt is built by the synth package.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ShayCichocki/proposer/pkg/models"
)

// BriefPlaceholder is replaced with the verbatim brief in every template.
const BriefPlaceholder = "{{brief}}"

// ErrUnknownRole is returned when a role has no specialist template.
var ErrUnknownRole = errors.New("unknown specialist role")

var templates = map[models.Role]string{
	models.RoleBackground: backgroundPrompt,
	models.RoleTechnical:  technicalPrompt,
	models.RoleMarket:     marketPrompt,
	models.RoleBudget:     budgetPrompt,
	models.RolePlanner:    plannerPrompt,
	models.RoleImpact:     impactPrompt,
}

// Build returns the prompt for role with brief substituted into its template.
// It fails only if role is not one of the fixed specialist roles.
func Build(role models.Role, brief string) (string, error) {
	tmpl, ok := templates[role]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	return strings.ReplaceAll(tmpl, BriefPlaceholder, brief), nil
}

// Has reports whether role has a specialist template.
func Has(role models.Role) bool {
	_, ok := templates[role]
	return ok
}
