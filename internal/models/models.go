// Package models holds the persisted GRC entities. Values stored in the
// repository are never mutated in place; slices are copied on write.
package models

import (
	"slices"
	"time"

	"grc/pkg/domain"
)

// Identified is implemented by every persisted entity.
type Identified interface {
	Identity() int64
}

// Business object statuses.
const (
	StatusDraft      = "Draft"
	StatusActive     = "Active"
	StatusDeprecated = "Deprecated"
)

// BusinessStatuses lists the statuses accepted for business objects.
var BusinessStatuses = []string{StatusDraft, StatusDeprecated, StatusActive}

// Person is a user of the application.
type Person struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash,omitempty"`
}

func (p Person) Identity() int64 { return p.ID }

// BusinessObject is a Control, Objective, Market or OrgGroup.
type BusinessObject struct {
	ID           int64             `json:"id"`
	Type         domain.ObjectType `json:"type"`
	Slug         string            `json:"slug"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	Notes        string            `json:"notes"`
	TestPlan     string            `json:"test_plan"`
	Status       string            `json:"status"`
	StartDate    *time.Time        `json:"start_date,omitempty"`
	EndDate      *time.Time        `json:"end_date,omitempty"`
	ReferenceURL string            `json:"reference_url"`

	// Legacy person fields predating ACL roles.
	PrincipalAssessor int64 `json:"principal_assessor,omitempty"`
	SecondaryAssessor int64 `json:"secondary_assessor,omitempty"`
	Contact           int64 `json:"contact,omitempty"`
	SecondaryContact  int64 `json:"secondary_contact,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (o BusinessObject) Identity() int64 { return o.ID }

// Ref returns the object's reference.
func (o BusinessObject) Ref() domain.ObjectRef { return domain.Ref(o.Type, o.ID) }

// Audit statuses.
const (
	AuditPlanned        = "Planned"
	AuditInProgress     = "In Progress"
	AuditManagerReview  = "Manager Review"
	AuditExternalReview = "Ready for External Review"
	AuditCompleted      = "Completed"
	DefaultAuditStatus  = AuditPlanned
)

// AuditStatuses lists the accepted audit statuses.
var AuditStatuses = []string{AuditPlanned, AuditInProgress, AuditManagerReview, AuditExternalReview, AuditCompleted}

// Audit groups snapshots of in-scope objects.
type Audit struct {
	ID          int64     `json:"id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (a Audit) Identity() int64 { return a.ID }

func (a Audit) Ref() domain.ObjectRef { return domain.Ref(domain.TypeAudit, a.ID) }

// Review statuses.
const (
	ReviewUnreviewed = "Unreviewed"
	ReviewReviewed   = "Reviewed"
)

// Review tracks the review workflow of one reviewable object.
type Review struct {
	ID             int64            `json:"id"`
	Reviewable     domain.ObjectRef `json:"reviewable"`
	Status         string           `json:"status"`
	LastReviewedBy int64            `json:"last_reviewed_by,omitempty"`
	LastReviewedAt *time.Time       `json:"last_reviewed_at,omitempty"`
}

func (r Review) Identity() int64 { return r.ID }

func (r Review) Ref() domain.ObjectRef { return domain.Ref(domain.TypeReview, r.ID) }

// AccessControlRole names a role that people can hold on objects of one type.
type AccessControlRole struct {
	ID                   int64             `json:"id"`
	Name                 string            `json:"name"`
	ObjectType           domain.ObjectType `json:"object_type"`
	Internal             bool              `json:"internal"`
	Mandatory            bool              `json:"mandatory"`
	DefaultToCurrentUser bool              `json:"default_to_current_user"`
}

func (r AccessControlRole) Identity() int64 { return r.ID }

// AccessControlList binds a role to an object. BaseID points at the source
// list for propagated entries.
type AccessControlList struct {
	ID     int64            `json:"id"`
	RoleID int64            `json:"ac_role_id"`
	Object domain.ObjectRef `json:"object"`
	BaseID int64            `json:"base_id,omitempty"`
}

func (l AccessControlList) Identity() int64 { return l.ID }

// AccessControlPerson grants a list's role to a person.
type AccessControlPerson struct {
	ID       int64 `json:"id"`
	ACLID    int64 `json:"ac_list_id"`
	PersonID int64 `json:"person_id"`
}

func (p AccessControlPerson) Identity() int64 { return p.ID }

// Revision actions.
const (
	ActionCreated  = "created"
	ActionModified = "modified"
	ActionDeleted  = "deleted"
)

// Revision is an immutable log entry holding the resource's content after
// the change.
type Revision struct {
	ID         int64            `json:"id"`
	Resource   domain.ObjectRef `json:"resource"`
	Action     string           `json:"action"`
	Content    map[string]any   `json:"content"`
	CreatedAt  time.Time        `json:"created_at"`
	ModifiedBy int64            `json:"modified_by,omitempty"`
}

func (r Revision) Identity() int64 { return r.ID }

// Snapshot freezes a child object's revision inside an audit.
type Snapshot struct {
	ID         int64            `json:"id"`
	Parent     domain.ObjectRef `json:"parent"`
	Child      domain.ObjectRef `json:"child"`
	RevisionID int64            `json:"revision_id"`
	CreatedAt  time.Time        `json:"created_at"`
}

func (s Snapshot) Identity() int64 { return s.ID }

func (s Snapshot) Ref() domain.ObjectRef { return domain.Ref(domain.TypeSnapshot, s.ID) }

// PeopleSetting is one default_people slot of a template: a role label or
// an explicit list of person ids.
type PeopleSetting struct {
	Label     string  `json:"label,omitempty"`
	PersonIDs []int64 `json:"person_ids,omitempty"`
}

// IsZero reports whether the slot was left unset.
func (p PeopleSetting) IsZero() bool { return p.Label == "" && len(p.PersonIDs) == 0 }

// DefaultPeople holds a template's assignee/verifier defaults.
type DefaultPeople struct {
	Assignees PeopleSetting `json:"assignees"`
	Verifiers PeopleSetting `json:"verifiers"`
}

// AssessmentTemplate drives assessment generation for one audit.
type AssessmentTemplate struct {
	ID                   int64             `json:"id"`
	Slug                 string            `json:"slug"`
	Title                string            `json:"title"`
	AuditID              int64             `json:"audit_id,omitempty"`
	TemplateObjectType   domain.ObjectType `json:"template_object_type"`
	TestPlanProcedure    bool              `json:"test_plan_procedure"`
	ProcedureDescription string            `json:"procedure_description"`
	DefaultPeople        DefaultPeople     `json:"default_people"`
}

func (t AssessmentTemplate) Identity() int64 { return t.ID }

func (t AssessmentTemplate) Clone() AssessmentTemplate {
	t.DefaultPeople.Assignees.PersonIDs = slices.Clone(t.DefaultPeople.Assignees.PersonIDs)
	t.DefaultPeople.Verifiers.PersonIDs = slices.Clone(t.DefaultPeople.Verifiers.PersonIDs)
	return t
}

// Custom attribute definition scopes.
const (
	DefinitionGlobalAssessment = "assessment"
	DefinitionLocalTemplate    = "assessment_template"
	DefinitionLocalAssessment  = "assessment_local"
)

// Custom attribute types.
const (
	AttributeText      = "Text"
	AttributeRichText  = "Rich Text"
	AttributeCheckbox  = "Checkbox"
	AttributeDate      = "Date"
	AttributeDropdown  = "Dropdown"
	AttributeMapPerson = "Map:Person"
)

// AttributeTypes lists the accepted custom attribute types.
var AttributeTypes = []string{AttributeText, AttributeRichText, AttributeCheckbox, AttributeDate, AttributeDropdown, AttributeMapPerson}

// CustomAttributeDefinition declares a custom attribute, either globally for
// a type or locally for one template or assessment.
type CustomAttributeDefinition struct {
	ID                 int64  `json:"id"`
	DefinitionType     string `json:"definition_type"`
	DefinitionID       int64  `json:"definition_id,omitempty"`
	Title              string `json:"title"`
	AttributeType      string `json:"attribute_type"`
	MultiChoiceOptions string `json:"multi_choice_options,omitempty"`
	Mandatory          bool   `json:"mandatory"`
}

func (d CustomAttributeDefinition) Identity() int64 { return d.ID }

// IsGlobal reports whether the definition applies to every assessment.
func (d CustomAttributeDefinition) IsGlobal() bool {
	return d.DefinitionType == DefinitionGlobalAssessment && d.DefinitionID == 0
}

// Assessment statuses.
const (
	AssessmentNotStarted = "Not Started"
	AssessmentInProgress = "In Progress"
	AssessmentInReview   = "In Review"
	AssessmentCompleted  = "Completed"
	AssessmentVerified   = "Verified"
	AssessmentRework     = "Rework Needed"
	AssessmentDeprecated = "Deprecated"
	AssessmentStartState = AssessmentNotStarted
)

// AssessmentStatuses lists the accepted assessment statuses.
var AssessmentStatuses = []string{
	AssessmentNotStarted, AssessmentInProgress, AssessmentInReview,
	AssessmentCompleted, AssessmentVerified, AssessmentRework, AssessmentDeprecated,
}

// Assessment records the evaluation of one snapshotted object in an audit.
type Assessment struct {
	ID             int64             `json:"id"`
	Slug           string            `json:"slug"`
	Title          string            `json:"title"`
	AuditID        int64             `json:"audit_id"`
	TemplateID     int64             `json:"template_id,omitempty"`
	AssessmentType domain.ObjectType `json:"assessment_type"`
	Status         string            `json:"status"`
	TestPlan       string            `json:"test_plan"`
	Design         string            `json:"design"`
	Operationally  string            `json:"operationally"`
	Notes          string            `json:"notes"`
	EvidencesURL   []string          `json:"evidences_url,omitempty"`
	// LocalCADs are copies of the template's local definitions owned by
	// this assessment, in declared order.
	LocalCADs []int64   `json:"local_cads,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a Assessment) Identity() int64 { return a.ID }

func (a Assessment) Ref() domain.ObjectRef { return domain.Ref(domain.TypeAssessment, a.ID) }

func (a Assessment) Clone() Assessment {
	a.EvidencesURL = slices.Clone(a.EvidencesURL)
	a.LocalCADs = slices.Clone(a.LocalCADs)
	return a
}

// Relationship links two objects, undirected.
type Relationship struct {
	ID          int64            `json:"id"`
	Source      domain.ObjectRef `json:"source"`
	Destination domain.ObjectRef `json:"destination"`
}

func (r Relationship) Identity() int64 { return r.ID }

// Links reports whether the relationship connects a and b in either direction.
func (r Relationship) Links(a, b domain.ObjectRef) bool {
	return (r.Source == a && r.Destination == b) || (r.Source == b && r.Destination == a)
}

// Other returns the end of the relationship that is not ref.
func (r Relationship) Other(ref domain.ObjectRef) (domain.ObjectRef, bool) {
	switch ref {
	case r.Source:
		return r.Destination, true
	case r.Destination:
		return r.Source, true
	}
	return domain.ObjectRef{}, false
}
