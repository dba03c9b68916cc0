package handler

import (
	"time"

	"grc/internal/assessment"
)

// AssessmentResponse is the API rendering of an assessment.
type AssessmentResponse struct {
	ID                         int64                `json:"id"`
	Type                       string               `json:"type"`
	Slug                       string               `json:"slug"`
	Title                      string               `json:"title"`
	Status                     string               `json:"status"`
	AssessmentType             string               `json:"assessment_type"`
	TestPlan                   string               `json:"test_plan"`
	Design                     string               `json:"design"`
	Operationally              string               `json:"operationally"`
	Notes                      string               `json:"notes"`
	EvidencesURL               []string             `json:"evidences_url"`
	Audit                      Ref                  `json:"audit"`
	Snapshot                   *Ref                 `json:"snapshot,omitempty"`
	AccessControlList          []ACLEntryResponse   `json:"access_control_list"`
	CustomAttributeDefinitions []DefinitionResponse `json:"custom_attribute_definitions"`
	CreatedAt                  time.Time            `json:"created_at"`
	UpdatedAt                  time.Time            `json:"updated_at"`
}

// ACLEntryResponse is one role grant.
type ACLEntryResponse struct {
	ACRoleID int64     `json:"ac_role_id"`
	Person   PersonRef `json:"person"`
}

// PersonRef is a person stub.
type PersonRef struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// DefinitionResponse is a custom attribute definition attached to the
// assessment.
type DefinitionResponse struct {
	ID                 int64  `json:"id"`
	Title              string `json:"title"`
	AttributeType      string `json:"attribute_type"`
	DefinitionType     string `json:"definition_type"`
	MultiChoiceOptions string `json:"multi_choice_options"`
	Mandatory          bool   `json:"mandatory"`
}

// FromResult renders a service result.
func FromResult(r *assessment.Result) AssessmentResponse {
	a := r.Assessment
	resp := AssessmentResponse{
		ID:                         a.ID,
		Type:                       "Assessment",
		Slug:                       a.Slug,
		Title:                      a.Title,
		Status:                     a.Status,
		AssessmentType:             string(a.AssessmentType),
		TestPlan:                   a.TestPlan,
		Design:                     a.Design,
		Operationally:              a.Operationally,
		Notes:                      a.Notes,
		EvidencesURL:               append([]string{}, a.EvidencesURL...),
		Audit:                      Ref{ID: r.Audit.ID, Type: string(r.Audit.Type)},
		AccessControlList:          make([]ACLEntryResponse, 0, len(r.ACL)),
		CustomAttributeDefinitions: make([]DefinitionResponse, 0, len(r.Definitions)),
		CreatedAt:                  a.CreatedAt,
		UpdatedAt:                  a.UpdatedAt,
	}
	if !r.Snapshot.IsZero() {
		resp.Snapshot = &Ref{ID: r.Snapshot.ID, Type: string(r.Snapshot.Type)}
	}
	for _, e := range r.ACL {
		resp.AccessControlList = append(resp.AccessControlList, ACLEntryResponse{
			ACRoleID: e.RoleID,
			Person:   PersonRef{ID: e.PersonID, Type: "Person"},
		})
	}
	for _, d := range r.Definitions {
		resp.CustomAttributeDefinitions = append(resp.CustomAttributeDefinitions, DefinitionResponse{
			ID:                 d.ID,
			Title:              d.Title,
			AttributeType:      d.AttributeType,
			DefinitionType:     d.DefinitionType,
			MultiChoiceOptions: d.MultiChoiceOptions,
			Mandatory:          d.Mandatory,
		})
	}
	return resp
}

// Envelope wraps a single assessment as {"assessment": {...}}.
type Envelope struct {
	Assessment AssessmentResponse `json:"assessment"`
}

// BulkResponse lists generated assessments in request order.
type BulkResponse struct {
	Assessments []AssessmentResponse `json:"assessments"`
}
