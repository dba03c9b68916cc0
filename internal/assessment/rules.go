package assessment

import (
	"slices"
	"strings"

	"grc/internal/models"
	"grc/pkg/domain"
	dErrors "grc/pkg/domain-errors"
)

// ResolveType picks the assessment type: the template's object type wins,
// then the requested type, then Control. The chosen type must be one that
// can be snapshotted.
func ResolveType(templateType domain.ObjectType, requested string) (domain.ObjectType, error) {
	raw := strings.TrimSpace(string(templateType))
	if raw == "" {
		raw = strings.TrimSpace(requested)
	}
	if raw == "" {
		return domain.TypeControl, nil
	}
	t, err := domain.ParseObjectType(raw)
	if err != nil || !domain.IsSnapshottable(t) {
		return "", dErrors.Newf(dErrors.CodeValidation, "invalid assessment type %q", raw)
	}
	return t, nil
}

// BuildTitle composes the generated title from the snapshotted object and
// the audit.
func BuildTitle(objectTitle, auditTitle string) string {
	return objectTitle + " assessment for " + auditTitle
}

// BuildTestPlan returns the test plan of a generated assessment. Without a
// template the snapshot's plan is copied; a template contributes its
// procedure description, followed by the snapshot's plan when
// test_plan_procedure is set.
func BuildTestPlan(tmpl *models.AssessmentTemplate, snapshotPlan string) string {
	if tmpl == nil {
		return snapshotPlan
	}
	if !tmpl.TestPlanProcedure {
		return tmpl.ProcedureDescription
	}
	parts := make([]string, 0, 2)
	for _, p := range []string{tmpl.ProcedureDescription, snapshotPlan} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "<br>")
}

// OrderDefinitions places local definitions (in declared order) before the
// global ones.
func OrderDefinitions(local, global []models.CustomAttributeDefinition) []models.CustomAttributeDefinition {
	out := make([]models.CustomAttributeDefinition, 0, len(local)+len(global))
	out = append(out, local...)
	return append(out, global...)
}

// Roster is what people resolution can draw from.
type Roster struct {
	Captains []int64
	Auditors []int64
	// SnapshotRole returns who holds a role on the snapshotted object.
	SnapshotRole func(role string) []int64
}

// ResolvePeople applies the default_people priority chain:
//
//  1. an explicit id list is used as is;
//  2. "Audit Lead" means the audit captains, "Auditors" the auditors (or
//     the captains when the audit has none), any other label the holders of
//     that role on the snapshotted object;
//  3. assignees never stay empty: they fall back to the captains. Verifiers
//     asked for but empty fall back to the auditors, then the captains.
//
// A nil template uses assignees "Principal Assignees", verifiers "Auditors".
func ResolvePeople(tmpl *models.AssessmentTemplate, roster Roster) (assignees, verifiers []int64) {
	settings := defaultPeople
	if tmpl != nil {
		settings = tmpl.DefaultPeople
	}

	assignees = resolveSetting(settings.Assignees, roster)
	if len(assignees) == 0 {
		assignees = sortedIDs(roster.Captains)
	}

	if settings.Verifiers.IsZero() {
		return assignees, nil
	}
	verifiers = resolveSetting(settings.Verifiers, roster)
	if len(verifiers) == 0 {
		verifiers = auditorsOrCaptains(roster)
	}
	return assignees, verifiers
}

func resolveSetting(setting models.PeopleSetting, roster Roster) []int64 {
	if len(setting.PersonIDs) > 0 {
		return sortedIDs(setting.PersonIDs)
	}
	switch setting.Label {
	case "":
		return nil
	case LabelAuditLead:
		return sortedIDs(roster.Captains)
	case LabelAuditors:
		return auditorsOrCaptains(roster)
	}
	if roster.SnapshotRole == nil {
		return nil
	}
	return sortedIDs(roster.SnapshotRole(setting.Label))
}

func auditorsOrCaptains(roster Roster) []int64 {
	if len(roster.Auditors) > 0 {
		return sortedIDs(roster.Auditors)
	}
	return sortedIDs(roster.Captains)
}

func sortedIDs(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

// NextStatus is the status after the text fields of an assessment changed.
// Untouched assessments keep their status; finished or fresh ones move back
// to In Progress.
func NextStatus(current string, changed bool) string {
	if !changed {
		return current
	}
	switch current {
	case models.AssessmentNotStarted, models.AssessmentCompleted, models.AssessmentVerified:
		return models.AssessmentInProgress
	}
	return current
}
