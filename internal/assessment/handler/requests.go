package handler

import (
	"strings"

	"grc/internal/assessment"
	"grc/pkg/domain"
	dErrors "grc/pkg/domain-errors"
)

// Ref is the {"id": ..., "type": ...} stub used to point at objects.
type Ref struct {
	ID   int64  `json:"id"`
	Type string `json:"type,omitempty"`
}

// PostRequest is the body of POST /api/assessments.
type PostRequest struct {
	Assessment AssessmentBody `json:"assessment"`
}

// AssessmentBody creates a generated assessment, or updates the text fields
// of an existing one when ID is set.
type AssessmentBody struct {
	ID             int64   `json:"id"`
	Generated      bool    `json:"_generated"`
	Audit          *Ref    `json:"audit"`
	Object         *Ref    `json:"object"`
	Template       *Ref    `json:"template"`
	AssessmentType *string `json:"assessment_type"`
	Title          *string `json:"title"`
	TestPlan       *string `json:"test_plan"`
	Design         *string `json:"design"`
	Operationally  *string `json:"operationally"`
	Notes          *string `json:"notes"`
}

func (r *PostRequest) Normalize() {
	b := &r.Assessment
	if b.Title != nil {
		t := strings.TrimSpace(*b.Title)
		if t == "" {
			b.Title = nil
		} else {
			b.Title = &t
		}
	}
	if b.AssessmentType != nil {
		t := strings.TrimSpace(*b.AssessmentType)
		b.AssessmentType = &t
	}
	if b.Object != nil {
		b.Object.Type = strings.TrimSpace(b.Object.Type)
	}
}

func (r *PostRequest) Validate() error {
	b := r.Assessment
	if b.ID < 0 {
		return dErrors.New(dErrors.CodeValidation, "id must be positive")
	}
	if b.IsUpdate() {
		return nil
	}
	if b.Audit == nil || b.Audit.ID <= 0 {
		return dErrors.New(dErrors.CodeValidation, "audit is required")
	}
	if b.Object == nil || b.Object.ID <= 0 {
		return dErrors.New(dErrors.CodeValidation, "object is required")
	}
	if b.Object.Type != "" && b.Object.Type != string(domain.TypeSnapshot) {
		return dErrors.Newf(dErrors.CodeValidation, "object must be a %s", domain.TypeSnapshot)
	}
	if b.Template != nil && b.Template.ID < 0 {
		return dErrors.New(dErrors.CodeValidation, "template id must be positive")
	}
	return nil
}

// IsUpdate reports whether the body targets an existing assessment.
func (b AssessmentBody) IsUpdate() bool {
	return b.ID > 0
}

// GenerateRequest maps the body to a generation request.
func (b AssessmentBody) GenerateRequest() assessment.GenerateRequest {
	req := assessment.GenerateRequest{
		AuditID:    b.Audit.ID,
		SnapshotID: b.Object.ID,
	}
	if b.Template != nil {
		req.TemplateID = b.Template.ID
	}
	if b.AssessmentType != nil {
		req.AssessmentType = *b.AssessmentType
	}
	// Generated assessments always get the composed title.
	if b.Title != nil && !b.Generated {
		req.Title = *b.Title
	}
	return req
}

// UpdateRequest maps the body to a text update.
func (b AssessmentBody) UpdateRequest() assessment.UpdateRequest {
	return assessment.UpdateRequest{
		ID:            b.ID,
		Title:         b.Title,
		TestPlan:      b.TestPlan,
		Design:        b.Design,
		Operationally: b.Operationally,
		Notes:         b.Notes,
	}
}

// BulkRequest is the body of POST /api/assessments/generate.
type BulkRequest struct {
	Audit          Ref    `json:"audit"`
	Template       *Ref   `json:"template"`
	Snapshots      []Ref  `json:"snapshots"`
	AssessmentType string `json:"assessment_type"`
}

const maxBulkSnapshots = 500

func (r *BulkRequest) Normalize() {
	r.AssessmentType = strings.TrimSpace(r.AssessmentType)
}

func (r *BulkRequest) Validate() error {
	if len(r.Snapshots) > maxBulkSnapshots {
		return dErrors.Newf(dErrors.CodeValidation, "at most %d snapshots per request", maxBulkSnapshots)
	}
	if r.Audit.ID <= 0 {
		return dErrors.New(dErrors.CodeValidation, "audit is required")
	}
	if len(r.Snapshots) == 0 {
		return dErrors.New(dErrors.CodeValidation, "snapshots are required")
	}
	for _, s := range r.Snapshots {
		if s.ID <= 0 {
			return dErrors.New(dErrors.CodeValidation, "snapshot ids must be positive")
		}
	}
	return nil
}

// ToDomain maps the body to a bulk generation request.
func (r BulkRequest) ToDomain() assessment.BulkRequest {
	req := assessment.BulkRequest{
		AuditID:        r.Audit.ID,
		AssessmentType: r.AssessmentType,
	}
	if r.Template != nil {
		req.TemplateID = r.Template.ID
	}
	for _, s := range r.Snapshots {
		req.SnapshotIDs = append(req.SnapshotIDs, s.ID)
	}
	return req
}
