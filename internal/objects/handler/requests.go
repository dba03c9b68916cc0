package handler

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"grc/internal/models"
	"grc/internal/objects"
	"grc/pkg/domain"
	dErrors "grc/pkg/domain-errors"
)

// DateLayout is the wire format of object dates.
const DateLayout = "2006-01-02"

// Ref is the {"id": ..., "type": ...} stub used to point at objects.
type Ref struct {
	ID   int64  `json:"id"`
	Type string `json:"type,omitempty"`
}

// ACLEntry grants the role ac_role_id to person.
type ACLEntry struct {
	ACRoleID int64 `json:"ac_role_id"`
	Person   Ref   `json:"person"`
}

func grantsOf(entries []ACLEntry) []objects.Grant {
	var out []objects.Grant
	index := map[int64]int{}
	for _, e := range entries {
		i, ok := index[e.ACRoleID]
		if !ok {
			i = len(out)
			index[e.ACRoleID] = i
			out = append(out, objects.Grant{RoleID: e.ACRoleID})
		}
		out[i].PersonIDs = append(out[i].PersonIDs, e.Person.ID)
	}
	return out
}

func validateACL(entries []ACLEntry) error {
	for _, e := range entries {
		if e.ACRoleID <= 0 || e.Person.ID <= 0 {
			return dErrors.New(dErrors.CodeValidation, "access_control_list entries need ac_role_id and person.id")
		}
	}
	return nil
}

func parseDate(field, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return nil, dErrors.Newf(dErrors.CodeValidation, "%s must be formatted as YYYY-MM-DD", field)
	}
	return &t, nil
}

// BusinessRequest creates or replaces a Control-like object. A nil
// access_control_list leaves the people untouched on update.
type BusinessRequest struct {
	Slug              string      `json:"slug"`
	Title             string      `json:"title"`
	Description       string      `json:"description"`
	Notes             string      `json:"notes"`
	TestPlan          string      `json:"test_plan"`
	Status            string      `json:"status"`
	StartDate         string      `json:"start_date"`
	ReferenceURL      string      `json:"reference_url"`
	PrincipalAssessor int64       `json:"principal_assessor"`
	SecondaryAssessor int64       `json:"secondary_assessor"`
	Contact           int64       `json:"contact"`
	SecondaryContact  int64       `json:"secondary_contact"`
	ACL               *[]ACLEntry `json:"access_control_list"`
}

func (r *BusinessRequest) Normalize() {
	r.Slug = strings.TrimSpace(r.Slug)
	r.Title = strings.TrimSpace(r.Title)
	r.Status = strings.TrimSpace(r.Status)
	r.StartDate = strings.TrimSpace(r.StartDate)
	r.ReferenceURL = strings.TrimSpace(r.ReferenceURL)
}

func (r *BusinessRequest) Validate() error {
	if r.Title == "" {
		return dErrors.New(dErrors.CodeValidation, "title is required")
	}
	if _, err := parseDate("start_date", r.StartDate); err != nil {
		return err
	}
	if r.ACL != nil {
		return validateACL(*r.ACL)
	}
	return nil
}

// ToModel builds the object of type t; the request must be validated.
func (r *BusinessRequest) ToModel(t domain.ObjectType, id int64) models.BusinessObject {
	start, _ := parseDate("start_date", r.StartDate)
	return models.BusinessObject{
		ID:                id,
		Type:              t,
		Slug:              r.Slug,
		Title:             r.Title,
		Description:       r.Description,
		Notes:             r.Notes,
		TestPlan:          r.TestPlan,
		Status:            r.Status,
		StartDate:         start,
		ReferenceURL:      r.ReferenceURL,
		PrincipalAssessor: r.PrincipalAssessor,
		SecondaryAssessor: r.SecondaryAssessor,
		Contact:           r.Contact,
		SecondaryContact:  r.SecondaryContact,
	}
}

// Grants returns the people to apply and whether the list was sent at all.
func (r *BusinessRequest) Grants() ([]objects.Grant, bool) {
	if r.ACL == nil {
		return nil, false
	}
	return grantsOf(*r.ACL), true
}

// AuditRequest creates an audit and maps objects into its scope.
type AuditRequest struct {
	Slug          string  `json:"slug"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	Status        string  `json:"status"`
	AuditCaptains []int64 `json:"audit_captains"`
	Auditors      []int64 `json:"auditors"`
	Objects       []Ref   `json:"objects"`
}

func (r *AuditRequest) Normalize() {
	r.Slug = strings.TrimSpace(r.Slug)
	r.Title = strings.TrimSpace(r.Title)
	r.Status = strings.TrimSpace(r.Status)
}

func (r *AuditRequest) Validate() error {
	if r.Title == "" {
		return dErrors.New(dErrors.CodeValidation, "title is required")
	}
	_, err := refsOf(r.Objects)
	return err
}

func (r *AuditRequest) ToInput() objects.AuditInput {
	refs, _ := refsOf(r.Objects)
	return objects.AuditInput{
		Audit: models.Audit{
			Slug:        r.Slug,
			Title:       r.Title,
			Description: r.Description,
			Status:      r.Status,
		},
		Captains: r.AuditCaptains,
		Auditors: r.Auditors,
		Objects:  refs,
	}
}

// MapRequest adds objects to an audit's scope.
type MapRequest struct {
	Objects []Ref `json:"objects"`
}

func (r *MapRequest) Normalize() {}

func (r *MapRequest) Validate() error {
	if len(r.Objects) == 0 {
		return dErrors.New(dErrors.CodeValidation, "objects are required")
	}
	_, err := refsOf(r.Objects)
	return err
}

func refsOf(in []Ref) ([]domain.ObjectRef, error) {
	out := make([]domain.ObjectRef, 0, len(in))
	for _, ref := range in {
		t, err := domain.ParseObjectType(ref.Type)
		if err != nil {
			return nil, dErrors.Newf(dErrors.CodeValidation, "unknown object type %q", ref.Type)
		}
		if ref.ID <= 0 {
			return nil, dErrors.New(dErrors.CodeValidation, "object id must be positive")
		}
		out = append(out, domain.Ref(t, ref.ID))
	}
	return out, nil
}

// PersonRequest creates a person.
type PersonRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (r *PersonRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
}

func (r *PersonRequest) Validate() error {
	if r.Email == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}
	return nil
}

// PeopleSetting is a default_people slot: either a role label string or a
// list of person ids.
type PeopleSetting models.PeopleSetting

func (p *PeopleSetting) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*p = PeopleSetting{}
		return nil
	case len(data) > 0 && data[0] == '"':
		var label string
		if err := json.Unmarshal(data, &label); err != nil {
			return err
		}
		*p = PeopleSetting{Label: strings.TrimSpace(label)}
		return nil
	default:
		var ids []int64
		if err := json.Unmarshal(data, &ids); err != nil {
			return dErrors.Wrap(err, dErrors.CodeValidation, "default_people entries are a role label or a list of person ids")
		}
		*p = PeopleSetting{PersonIDs: ids}
		return nil
	}
}

func (p PeopleSetting) MarshalJSON() ([]byte, error) {
	if len(p.PersonIDs) > 0 {
		return json.Marshal(p.PersonIDs)
	}
	if p.Label == "" {
		return []byte("null"), nil
	}
	return json.Marshal(p.Label)
}

// TemplateRequest creates an assessment template.
type TemplateRequest struct {
	Title                string `json:"title"`
	Slug                 string `json:"slug"`
	Audit                *Ref   `json:"audit"`
	TemplateObjectType   string `json:"template_object_type"`
	TestPlanProcedure    bool   `json:"test_plan_procedure"`
	ProcedureDescription string `json:"procedure_description"`
	DefaultPeople        struct {
		Assignees PeopleSetting `json:"assignees"`
		Verifiers PeopleSetting `json:"verifiers"`
	} `json:"default_people"`
}

func (r *TemplateRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Slug = strings.TrimSpace(r.Slug)
	r.TemplateObjectType = strings.TrimSpace(r.TemplateObjectType)
}

func (r *TemplateRequest) Validate() error {
	if r.Title == "" {
		return dErrors.New(dErrors.CodeValidation, "title is required")
	}
	if r.Audit != nil && r.Audit.ID < 0 {
		return dErrors.New(dErrors.CodeValidation, "audit id must be positive")
	}
	return nil
}

// ToModel keeps template_object_type as sent; generation validates it.
func (r *TemplateRequest) ToModel() models.AssessmentTemplate {
	t := models.AssessmentTemplate{
		Title:                r.Title,
		Slug:                 r.Slug,
		TemplateObjectType:   domain.ObjectType(r.TemplateObjectType),
		TestPlanProcedure:    r.TestPlanProcedure,
		ProcedureDescription: r.ProcedureDescription,
		DefaultPeople: models.DefaultPeople{
			Assignees: models.PeopleSetting(r.DefaultPeople.Assignees),
			Verifiers: models.PeopleSetting(r.DefaultPeople.Verifiers),
		},
	}
	if r.Audit != nil {
		t.AuditID = r.Audit.ID
	}
	return t
}

// DefinitionRequest creates a custom attribute definition.
type DefinitionRequest struct {
	Title              string `json:"title"`
	AttributeType      string `json:"attribute_type"`
	DefinitionType     string `json:"definition_type"`
	DefinitionID       int64  `json:"definition_id"`
	MultiChoiceOptions string `json:"multi_choice_options"`
	Mandatory          bool   `json:"mandatory"`
}

func (r *DefinitionRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.AttributeType = strings.TrimSpace(r.AttributeType)
	r.DefinitionType = strings.TrimSpace(r.DefinitionType)
	if r.DefinitionType == "" {
		r.DefinitionType = models.DefinitionGlobalAssessment
	}
}

func (r *DefinitionRequest) Validate() error {
	if r.Title == "" {
		return dErrors.New(dErrors.CodeValidation, "title is required")
	}
	if r.AttributeType == "" {
		return dErrors.New(dErrors.CodeValidation, "attribute_type is required")
	}
	return nil
}

func (r *DefinitionRequest) ToModel() models.CustomAttributeDefinition {
	return models.CustomAttributeDefinition{
		Title:              r.Title,
		AttributeType:      r.AttributeType,
		DefinitionType:     r.DefinitionType,
		DefinitionID:       r.DefinitionID,
		MultiChoiceOptions: r.MultiChoiceOptions,
		Mandatory:          r.Mandatory,
	}
}
