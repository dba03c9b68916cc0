package converters

import (
	"strconv"
	"strings"

	"grc/internal/acl"
	"grc/internal/assessment"
	"grc/internal/models"
	"grc/internal/objects"
	"grc/internal/review"
	"grc/internal/store"
	"grc/pkg/domain"
	dErrors "grc/pkg/domain-errors"
	pstrings "grc/pkg/platform/strings"
)

type outcome int

const (
	outcomeUpdated outcome = iota
	outcomeCreated
	outcomeDeleted
)

// record is one exported object: its id and cells by column name.
type record struct {
	ID    int64
	Cells map[string]string
}

// rowInput is one import row mapped onto the importable columns present
// in its block.
type rowInput struct {
	Key    string
	Values map[string]string
	warn   func(format string, args ...any)
}

func (r *rowInput) value(col string) (string, bool) {
	v, ok := r.Values[col]
	return v, ok
}

// kind adapts one object type to the CSV channel.
type kind interface {
	Type() domain.ObjectType
	// Key names the column rows are matched by and whether a block
	// without it can be imported.
	Key() (column string, required bool)
	Columns(tx *store.Tx) []Column
	Records(tx *store.Tx) []record
	Apply(tx *store.Tx, in *rowInput) (outcome, error)
}

func (s *Service) kindFor(t domain.ObjectType) (kind, bool) {
	switch {
	case domain.IsBusinessType(t):
		return businessKind{t: t}, true
	case t == domain.TypeAudit:
		return auditKind{}, true
	case t == domain.TypeAssessment:
		return assessmentKind{propagation: s.propagation}, true
	case t == domain.TypePerson:
		return personKind{}, true
	}
	return nil, false
}

// syncRoles applies the people columns present in the row and reports
// whether any holder changed.
func syncRoles(tx *store.Tx, ref domain.ObjectRef, in *rowInput) (bool, error) {
	changed := false
	for _, col := range roleColumns(tx, ref.Type) {
		cell, ok := in.value(col.Name)
		if !ok {
			continue
		}
		c, err := acl.SyncPeople(tx, ref, col.Role, peopleOf(tx, cell, in.warn))
		if err != nil {
			return false, err
		}
		changed = changed || c
	}
	return changed, nil
}

func roleCells(tx *store.Tx, ref domain.ObjectRef, cells map[string]string) {
	for _, col := range roleColumns(tx, ref.Type) {
		cells[col.Name] = emailsCell(tx, acl.PeopleWithRole(tx, ref, col.Role))
	}
}

func setText(in *rowInput, col string, dst *string) {
	if v, ok := in.value(col); ok {
		*dst = strings.TrimSpace(v)
	}
}

type businessKind struct {
	t domain.ObjectType
}

func (k businessKind) Type() domain.ObjectType { return k.t }

func (k businessKind) Key() (string, bool) { return ColCode, false }

func (k businessKind) Columns(tx *store.Tx) []Column {
	cols := []Column{
		both(ColCode, "code"),
		both(ColTitle, "title"),
		both(ColDescription, "description"),
		both(ColNotes, "notes"),
		both(ColTestPlan, "test_plan"),
		both(ColState, "status"),
		both(ColEffectiveDate, "start_date"),
		exportOnly(ColEndDate, "end_date"),
		both(ColReferenceURL, "reference_url"),
	}
	cols = append(cols, roleColumns(tx, k.t)...)
	if domain.IsReviewable(k.t) {
		cols = append(cols, exportOnly(ColReviewState, "review_status"), exportOnly(ColReviewers, "reviewers"))
	}
	return append(cols, Column{Name: ColDelete, Importable: true})
}

func (k businessKind) Records(tx *store.Tx) []record {
	var out []record
	for _, o := range tx.Objects().Filter(func(o models.BusinessObject) bool { return o.Type == k.t }) {
		cells := map[string]string{
			ColCode:          o.Slug,
			ColTitle:         o.Title,
			ColDescription:   o.Description,
			ColNotes:         o.Notes,
			ColTestPlan:      o.TestPlan,
			ColState:         o.Status,
			ColEffectiveDate: formatDate(o.StartDate),
			ColEndDate:       formatDate(o.EndDate),
			ColReferenceURL:  o.ReferenceURL,
		}
		roleCells(tx, o.Ref(), cells)
		if domain.IsReviewable(k.t) {
			cells[ColReviewState] = review.StatusOf(tx, o.Ref())
			cells[ColReviewers] = emailsCell(tx, review.Reviewers(tx, o.Ref()))
		}
		out = append(out, record{ID: o.ID, Cells: cells})
	}
	return out
}

func (k businessKind) Apply(tx *store.Tx, in *rowInput) (outcome, error) {
	cur, exists := objects.FindBySlug(tx, k.t, in.Key)
	if v, ok := in.value(ColDelete); ok && truthy(v) {
		if !exists {
			return 0, dErrors.Newf(dErrors.CodeValidation, "%s '%s' does not exist and can not be deleted", k.t, in.Key)
		}
		return outcomeDeleted, objects.DeleteBusiness(tx, cur.Ref())
	}

	next := models.BusinessObject{Type: k.t, Slug: in.Key}
	if exists {
		next = cur
	}
	setText(in, ColTitle, &next.Title)
	setText(in, ColDescription, &next.Description)
	setText(in, ColNotes, &next.Notes)
	setText(in, ColTestPlan, &next.TestPlan)
	setText(in, ColReferenceURL, &next.ReferenceURL)
	if v, ok := in.value(ColState); ok && strings.TrimSpace(v) != "" {
		next.Status = v
	}
	if v, ok := in.value(ColEffectiveDate); ok {
		if strings.TrimSpace(v) == "" {
			next.StartDate = nil
		} else if d, ok := parseDate(v); ok {
			next.StartDate = d
		} else {
			in.warn("Invalid date '%s' in column '%s'. The value will be ignored.", v, ColEffectiveDate)
		}
	}

	if !exists {
		created, err := objects.CreateBusiness(tx, next)
		if err != nil {
			return 0, err
		}
		if _, err := syncRoles(tx, created.Ref(), in); err != nil {
			return 0, err
		}
		return outcomeCreated, acl.GrantDefaults(tx, created.Ref())
	}
	changed, err := syncRoles(tx, cur.Ref(), in)
	if err != nil {
		return 0, err
	}
	_, _, err = objects.UpdateBusiness(tx, next, changed)
	return outcomeUpdated, err
}

type auditKind struct{}

func (auditKind) Type() domain.ObjectType { return domain.TypeAudit }

func (auditKind) Key() (string, bool) { return ColCode, false }

func (auditKind) Columns(tx *store.Tx) []Column {
	cols := []Column{
		both(ColCode, "code"),
		both(ColTitle, "title"),
		both(ColDescription, "description"),
		both(ColState, "status"),
	}
	return append(cols, roleColumns(tx, domain.TypeAudit)...)
}

func (auditKind) Records(tx *store.Tx) []record {
	var out []record
	for _, a := range tx.Audits().Sorted() {
		cells := map[string]string{
			ColCode:        a.Slug,
			ColTitle:       a.Title,
			ColDescription: a.Description,
			ColState:       a.Status,
		}
		roleCells(tx, a.Ref(), cells)
		out = append(out, record{ID: a.ID, Cells: cells})
	}
	return out
}

func (auditKind) Apply(tx *store.Tx, in *rowInput) (outcome, error) {
	cur, exists := objects.FindAuditBySlug(tx, in.Key)
	next := models.Audit{Slug: in.Key}
	if exists {
		next = cur
	}
	setText(in, ColTitle, &next.Title)
	setText(in, ColDescription, &next.Description)
	if v, ok := in.value(ColState); ok && strings.TrimSpace(v) != "" {
		next.Status = v
	}

	if !exists {
		created, err := objects.CreateAudit(tx, next)
		if err != nil {
			return 0, err
		}
		if _, err := syncRoles(tx, created.Ref(), in); err != nil {
			return 0, err
		}
		return outcomeCreated, acl.GrantDefaults(tx, created.Ref())
	}
	changed, err := syncRoles(tx, cur.Ref(), in)
	if err != nil {
		return 0, err
	}
	_, _, err = objects.UpdateAudit(tx, next, changed)
	return outcomeUpdated, err
}

type assessmentKind struct {
	propagation acl.Propagation
}

func (assessmentKind) Type() domain.ObjectType { return domain.TypeAssessment }

func (assessmentKind) Key() (string, bool) { return ColCode, true }

func (assessmentKind) Columns(tx *store.Tx) []Column {
	cols := []Column{
		both(ColCode, "code"),
		both(ColTitle, "title"),
		exportOnly(ColAudit, "audit"),
		both(ColState, "status"),
		exportOnly(ColAssessment, "assessment_type"),
		both(ColTestPlan, "test_plan"),
		both(ColDesign, "design"),
		both(ColOperationally, "operationally"),
		both(ColNotes, "notes"),
		both(ColEvidenceURL, "evidences_url"),
	}
	return append(cols, roleColumns(tx, domain.TypeAssessment)...)
}

func (assessmentKind) Records(tx *store.Tx) []record {
	var out []record
	for _, a := range tx.Assessments().Sorted() {
		auditCode := ""
		if au, ok := tx.Audits().Get(a.AuditID); ok {
			auditCode = au.Slug
		}
		cells := map[string]string{
			ColCode:          a.Slug,
			ColTitle:         a.Title,
			ColAudit:         auditCode,
			ColState:         a.Status,
			ColAssessment:    string(a.AssessmentType),
			ColTestPlan:      a.TestPlan,
			ColDesign:        a.Design,
			ColOperationally: a.Operationally,
			ColNotes:         a.Notes,
			ColEvidenceURL:   pstrings.JoinMultiValue(a.EvidencesURL),
		}
		roleCells(tx, a.Ref(), cells)
		out = append(out, record{ID: a.ID, Cells: cells})
	}
	return out
}

func (k assessmentKind) Apply(tx *store.Tx, in *rowInput) (outcome, error) {
	cur, exists := tx.AssessmentBySlug(in.Key)
	if !exists {
		return 0, dErrors.Newf(dErrors.CodeValidation,
			"Assessment '%s' does not exist. Assessments are generated from audit snapshots", in.Key)
	}
	next := cur.Clone()
	setText(in, ColTitle, &next.Title)
	if next.Title == "" {
		return 0, dErrors.New(dErrors.CodeValidation, "title is required")
	}
	setText(in, ColTestPlan, &next.TestPlan)
	setText(in, ColDesign, &next.Design)
	setText(in, ColOperationally, &next.Operationally)
	setText(in, ColNotes, &next.Notes)
	if v, ok := in.value(ColState); ok && strings.TrimSpace(v) != "" {
		status, valid := objects.CanonicalStatus(v, models.AssessmentStatuses)
		if !valid {
			return 0, dErrors.Newf(dErrors.CodeValidation, "invalid assessment state '%s'", v)
		}
		next.Status = status
	}
	if v, ok := in.value(ColEvidenceURL); ok {
		next.EvidencesURL = pstrings.SplitMultiValue(v)
		if len(next.EvidencesURL) == 0 {
			next.EvidencesURL = nil
		}
	}

	changed, err := syncRoles(tx, cur.Ref(), in)
	if err != nil {
		return 0, err
	}
	if changed {
		targets := append(tx.Related(cur.Ref(), domain.TypeAudit), tx.Related(cur.Ref(), domain.TypeSnapshot)...)
		if err := acl.Repropagate(tx, k.propagation, cur.Ref(), targets...); err != nil {
			return 0, err
		}
	}
	_, _, err = assessment.Save(tx, next, changed)
	return outcomeUpdated, err
}

type personKind struct{}

func (personKind) Type() domain.ObjectType { return domain.TypePerson }

func (personKind) Key() (string, bool) { return ColEmail, true }

func (personKind) Columns(*store.Tx) []Column {
	return []Column{both(ColEmail, "email"), both(ColName, "name")}
}

func (personKind) Records(tx *store.Tx) []record {
	var out []record
	for _, p := range tx.People().Sorted() {
		out = append(out, record{ID: p.ID, Cells: map[string]string{ColEmail: p.Email, ColName: p.Name}})
	}
	return out
}

func (personKind) Apply(tx *store.Tx, in *rowInput) (outcome, error) {
	name, _ := in.value(ColName)
	name = strings.TrimSpace(name)
	cur, exists := objects.FindPersonByEmail(tx, in.Key)
	if !exists {
		_, err := objects.CreatePerson(tx, models.Person{Email: in.Key, Name: name})
		return outcomeCreated, err
	}
	if name != "" && name != cur.Name {
		cur.Name = name
		if _, err := tx.PutPerson(cur); err != nil {
			return 0, err
		}
	}
	return outcomeUpdated, nil
}

// cellFor returns a record's value for a filter key: "id" or a column
// matched by name or alias.
func cellFor(cols []Column, r record, key string) (string, error) {
	if HeaderKey(key) == "id" {
		return strconv.FormatInt(r.ID, 10), nil
	}
	col, ok := findColumn(cols, key)
	if !ok || !col.Exportable {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown filter field %q", key)
	}
	return r.Cells[col.Name], nil
}

func unknownType(raw string) error {
	return dErrors.Newf(dErrors.CodeValidation, "unknown object type '%s'", raw)
}
