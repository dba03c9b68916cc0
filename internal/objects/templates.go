package objects

import (
	"fmt"
	"slices"
	"strings"

	"grc/internal/models"
	"grc/internal/store"
	"grc/pkg/domain"
	dErrors "grc/pkg/domain-errors"
)

// CreateTemplate stores an assessment template. The object type is kept as
// given; generation rejects templates whose type cannot be assessed.
func CreateTemplate(tx *store.Tx, t models.AssessmentTemplate) (models.AssessmentTemplate, error) {
	t.ID = 0
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return t, dErrors.New(dErrors.CodeValidation, "title is required")
	}
	if t.AuditID != 0 {
		if _, ok := tx.Audits().Get(t.AuditID); !ok {
			return t, dErrors.Newf(dErrors.CodeNotFound, "audit %d not found", t.AuditID)
		}
	}
	for _, slot := range []models.PeopleSetting{t.DefaultPeople.Assignees, t.DefaultPeople.Verifiers} {
		for _, id := range slot.PersonIDs {
			if _, ok := tx.People().Get(id); !ok {
				return t, dErrors.Newf(dErrors.CodeNotFound, "person %d not found", id)
			}
		}
	}
	t, err := tx.PutTemplate(t)
	if err != nil {
		return t, err
	}
	if t.Slug == "" {
		t.Slug = fmt.Sprintf("TEMPLATE-%d", t.ID)
		return tx.PutTemplate(t)
	}
	return t, nil
}

// CreateDefinition stores a custom attribute definition, either global for
// assessments or local to an existing template.
func CreateDefinition(tx *store.Tx, d models.CustomAttributeDefinition) (models.CustomAttributeDefinition, error) {
	d.ID = 0
	d.Title = strings.TrimSpace(d.Title)
	if d.Title == "" {
		return d, dErrors.New(dErrors.CodeValidation, "title is required")
	}
	if !slices.Contains(models.AttributeTypes, d.AttributeType) {
		return d, dErrors.Newf(dErrors.CodeValidation, "invalid attribute type %q", d.AttributeType)
	}
	switch d.DefinitionType {
	case models.DefinitionGlobalAssessment:
		d.DefinitionID = 0
	case models.DefinitionLocalTemplate:
		if _, ok := tx.Templates().Get(d.DefinitionID); !ok {
			return d, dErrors.Newf(dErrors.CodeNotFound, "assessment template %d not found", d.DefinitionID)
		}
	default:
		return d, dErrors.Newf(dErrors.CodeValidation, "invalid definition type %q", d.DefinitionType)
	}
	if d.AttributeType == models.AttributeDropdown && strings.TrimSpace(d.MultiChoiceOptions) == "" {
		return d, dErrors.New(dErrors.CodeValidation, "dropdown attributes need multi_choice_options")
	}
	clash := func(o models.CustomAttributeDefinition) bool {
		return o.DefinitionType == d.DefinitionType && o.DefinitionID == d.DefinitionID && strings.EqualFold(o.Title, d.Title)
	}
	if _, exists := tx.CADs().Find(clash); exists {
		return d, dErrors.Newf(dErrors.CodeConflict, "attribute %q is already defined", d.Title)
	}
	return tx.PutCAD(d)
}

// DefinitionsOf returns the local definitions of a template in creation
// order.
func DefinitionsOf(tx *store.Tx, templateID int64) []models.CustomAttributeDefinition {
	return tx.CADs().Filter(func(d models.CustomAttributeDefinition) bool {
		return d.DefinitionType == models.DefinitionLocalTemplate && d.DefinitionID == templateID
	})
}

// Revisions lists the change log of one resource, oldest first.
func Revisions(tx *store.Tx, ref domain.ObjectRef) []models.Revision {
	return tx.RevisionsOf(ref)
}
