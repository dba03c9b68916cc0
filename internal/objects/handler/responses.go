package handler

import (
	"time"

	"grc/internal/acl"
	"grc/internal/models"
	"grc/internal/objects"
)

// ACLResponse is one grant in an access_control_list.
type ACLResponse struct {
	ACRoleID int64 `json:"ac_role_id"`
	Person   Ref   `json:"person"`
}

func aclResponse(entries []acl.Entry) []ACLResponse {
	out := make([]ACLResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, ACLResponse{ACRoleID: e.RoleID, Person: Ref{ID: e.PersonID, Type: "Person"}})
	}
	return out
}

func peopleRefs(ids []int64) []Ref {
	out := make([]Ref, 0, len(ids))
	for _, id := range ids {
		out = append(out, Ref{ID: id, Type: "Person"})
	}
	return out
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(DateLayout)
	return &s
}

// BusinessResponse renders a Control-like object.
type BusinessResponse struct {
	ID                int64         `json:"id"`
	Type              string        `json:"type"`
	Slug              string        `json:"slug"`
	Title             string        `json:"title"`
	Description       string        `json:"description"`
	Notes             string        `json:"notes"`
	TestPlan          string        `json:"test_plan"`
	Status            string        `json:"status"`
	StartDate         *string       `json:"start_date"`
	EndDate           *string       `json:"end_date"`
	ReferenceURL      string        `json:"reference_url"`
	AccessControlList []ACLResponse `json:"access_control_list"`
	Review            *Ref          `json:"review"`
	ReviewStatus      string        `json:"review_status"`
	Reviewers         []Ref         `json:"reviewers"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

func FromBusiness(v objects.BusinessView) BusinessResponse {
	o := v.Object
	resp := BusinessResponse{
		ID:                o.ID,
		Type:              string(o.Type),
		Slug:              o.Slug,
		Title:             o.Title,
		Description:       o.Description,
		Notes:             o.Notes,
		TestPlan:          o.TestPlan,
		Status:            o.Status,
		StartDate:         formatDate(o.StartDate),
		EndDate:           formatDate(o.EndDate),
		ReferenceURL:      o.ReferenceURL,
		AccessControlList: aclResponse(v.ACL),
		ReviewStatus:      v.ReviewStatus,
		Reviewers:         peopleRefs(v.Reviewers),
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
	if v.ReviewID != 0 {
		resp.Review = &Ref{ID: v.ReviewID, Type: "Review"}
	}
	return resp
}

// AuditResponse renders an audit with its scope.
type AuditResponse struct {
	ID                int64         `json:"id"`
	Slug              string        `json:"slug"`
	Title             string        `json:"title"`
	Description       string        `json:"description"`
	Status            string        `json:"status"`
	AccessControlList []ACLResponse `json:"access_control_list"`
	Snapshots         []SnapshotRef `json:"snapshots"`
}

// SnapshotRef points at a snapshot and the object it froze.
type SnapshotRef struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	ChildType string `json:"child_type"`
	ChildID   int64  `json:"child_id"`
}

func FromAudit(v objects.AuditView) AuditResponse {
	resp := AuditResponse{
		ID:                v.Audit.ID,
		Slug:              v.Audit.Slug,
		Title:             v.Audit.Title,
		Description:       v.Audit.Description,
		Status:            v.Audit.Status,
		AccessControlList: aclResponse(v.ACL),
		Snapshots:         make([]SnapshotRef, 0, len(v.Snapshots)),
	}
	for _, s := range v.Snapshots {
		resp.Snapshots = append(resp.Snapshots, SnapshotRef{
			ID:        s.ID,
			Type:      "Snapshot",
			ChildType: string(s.Child.Type),
			ChildID:   s.Child.ID,
		})
	}
	return resp
}

// PersonResponse never carries the password hash.
type PersonResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func FromPerson(p models.Person) PersonResponse {
	return PersonResponse{ID: p.ID, Name: p.Name, Email: p.Email}
}

// TemplateResponse renders an assessment template.
type TemplateResponse struct {
	ID                   int64  `json:"id"`
	Slug                 string `json:"slug"`
	Title                string `json:"title"`
	Audit                *Ref   `json:"audit"`
	TemplateObjectType   string `json:"template_object_type"`
	TestPlanProcedure    bool   `json:"test_plan_procedure"`
	ProcedureDescription string `json:"procedure_description"`
	DefaultPeople        struct {
		Assignees PeopleSetting `json:"assignees"`
		Verifiers PeopleSetting `json:"verifiers"`
	} `json:"default_people"`
}

func FromTemplate(t models.AssessmentTemplate) TemplateResponse {
	resp := TemplateResponse{
		ID:                   t.ID,
		Slug:                 t.Slug,
		Title:                t.Title,
		TemplateObjectType:   string(t.TemplateObjectType),
		TestPlanProcedure:    t.TestPlanProcedure,
		ProcedureDescription: t.ProcedureDescription,
	}
	resp.DefaultPeople.Assignees = PeopleSetting(t.DefaultPeople.Assignees)
	resp.DefaultPeople.Verifiers = PeopleSetting(t.DefaultPeople.Verifiers)
	if t.AuditID != 0 {
		resp.Audit = &Ref{ID: t.AuditID, Type: "Audit"}
	}
	return resp
}

// RevisionResponse renders one change log entry.
type RevisionResponse struct {
	ID           int64          `json:"id"`
	ResourceType string         `json:"resource_type"`
	ResourceID   int64          `json:"resource_id"`
	Action       string         `json:"action"`
	Content      map[string]any `json:"content"`
	CreatedAt    time.Time      `json:"created_at"`
	ModifiedBy   *Ref           `json:"modified_by"`
}

func FromRevision(r models.Revision) RevisionResponse {
	resp := RevisionResponse{
		ID:           r.ID,
		ResourceType: string(r.Resource.Type),
		ResourceID:   r.Resource.ID,
		Action:       r.Action,
		Content:      r.Content,
		CreatedAt:    r.CreatedAt,
	}
	if r.ModifiedBy != 0 {
		resp.ModifiedBy = &Ref{ID: r.ModifiedBy, Type: "Person"}
	}
	return resp
}
