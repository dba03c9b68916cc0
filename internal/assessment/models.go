package assessment

import (
	"grc/internal/acl"
	"grc/internal/models"
	"grc/pkg/domain"
)

// Assessment role names.
const (
	RoleCreators  = "Creators"
	RoleAssignees = "Assignees"
	RoleVerifiers = "Verifiers"
)

// Audit role names and the template labels pointing at them.
const (
	RoleAuditCaptains = acl.RoleAuditCaptains
	RoleAuditors      = acl.RoleAuditors

	LabelAuditLead = "Audit Lead"
	LabelAuditors  = "Auditors"
)

// defaultPeople applies when an assessment is generated without a template.
var defaultPeople = models.DefaultPeople{
	Assignees: models.PeopleSetting{Label: "Principal Assignees"},
	Verifiers: models.PeopleSetting{Label: LabelAuditors},
}

// GenerateRequest asks for one assessment of a snapshot inside an audit.
type GenerateRequest struct {
	AuditID    int64
	SnapshotID int64
	TemplateID int64
	// AssessmentType is the raw requested type; empty means unset.
	AssessmentType string
	// Title overrides the generated title when not blank.
	Title string
}

// BulkRequest generates one assessment per snapshot in a single commit.
type BulkRequest struct {
	AuditID        int64
	SnapshotIDs    []int64
	TemplateID     int64
	AssessmentType string
}

// UpdateRequest changes the free text fields of an assessment. Nil fields
// are left untouched.
type UpdateRequest struct {
	ID            int64
	Title         *string
	TestPlan      *string
	Design        *string
	Operationally *string
	Notes         *string
}

// Result is a persisted assessment with everything the API renders.
type Result struct {
	Assessment  models.Assessment
	ACL         []acl.Entry
	Definitions []models.CustomAttributeDefinition
	Audit       domain.ObjectRef
	Snapshot    domain.ObjectRef
}

// Plan is the pure outcome of resolving a generation request; applying it
// writes the assessment and its links.
type Plan struct {
	Audit      models.Audit
	Snapshot   models.Snapshot
	Template   *models.AssessmentTemplate
	Title      string
	Type       domain.ObjectType
	TestPlan   string
	Assignees  []int64
	Verifiers  []int64
	Creators   []int64
	LocalCADs  []models.CustomAttributeDefinition
	GlobalCADs []models.CustomAttributeDefinition
}
