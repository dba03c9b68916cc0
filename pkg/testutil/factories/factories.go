// Package factories persists GRC fixtures for tests. Every factory call runs
// inside the commit opened by SingleCommit and fails the test on error.
package factories

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"grc/internal/acl"
	"grc/internal/models"
	"grc/internal/objects"
	"grc/internal/review"
	"grc/internal/snapshot"
	"grc/internal/store"
	"grc/pkg/domain"
)

var seq atomic.Int64

func next() int64 { return seq.Add(1) }

// Factory creates objects in one open transaction.
type Factory struct {
	t  testing.TB
	tx *store.Tx
}

// SingleCommit runs fn in one commit; everything fn creates is visible to
// the application once it returns.
func SingleCommit(t testing.TB, ctx context.Context, st *store.Store, fn func(f *Factory)) {
	t.Helper()
	err := st.SingleCommit(ctx, func(tx *store.Tx) error {
		fn(&Factory{t: t, tx: tx})
		return nil
	})
	require.NoError(t, err)
}

// Tx exposes the transaction for assertions and ad-hoc writes.
func (f *Factory) Tx() *store.Tx { return f.tx }

// Person creates a person with a unique email unless one is given.
func (f *Factory) Person(opts ...func(*models.Person)) models.Person {
	f.t.Helper()
	n := next()
	p := models.Person{Email: fmt.Sprintf("person%d@example.com", n), Name: fmt.Sprintf("Person %d", n)}
	for _, o := range opts {
		o(&p)
	}
	out, err := objects.CreatePerson(f.tx, p)
	require.NoError(f.t, err)
	return out
}

// Business creates a business object of type t.
func (f *Factory) Business(t domain.ObjectType, opts ...func(*models.BusinessObject)) models.BusinessObject {
	f.t.Helper()
	o := models.BusinessObject{Type: t, Title: fmt.Sprintf("%s %d", t, next())}
	for _, opt := range opts {
		opt(&o)
	}
	out, err := objects.CreateBusiness(f.tx, o)
	require.NoError(f.t, err)
	return out
}

// Control creates a control.
func (f *Factory) Control(opts ...func(*models.BusinessObject)) models.BusinessObject {
	f.t.Helper()
	return f.Business(domain.TypeControl, opts...)
}

// Audit creates an audit.
func (f *Factory) Audit(opts ...func(*models.Audit)) models.Audit {
	f.t.Helper()
	a := models.Audit{Title: fmt.Sprintf("Audit %d", next())}
	for _, o := range opts {
		o(&a)
	}
	out, err := objects.CreateAudit(f.tx, a)
	require.NoError(f.t, err)
	return out
}

// Review attaches a review to ref with the given reviewers.
func (f *Factory) Review(ref domain.ObjectRef, reviewers ...int64) models.Review {
	f.t.Helper()
	r, err := review.Ensure(f.tx, ref)
	require.NoError(f.t, err)
	for _, id := range reviewers {
		require.NoError(f.t, acl.AddPerson(f.tx, r.Ref(), "Reviewers", id))
	}
	return r
}

// MarkReviewed moves ref's review to Reviewed.
func (f *Factory) MarkReviewed(ref domain.ObjectRef) models.Review {
	f.t.Helper()
	r := f.Review(ref)
	out, err := review.MarkReviewed(f.tx, r.ID)
	require.NoError(f.t, err)
	return out
}

// AccessControlRole creates a custom role.
func (f *Factory) AccessControlRole(t domain.ObjectType, name string, opts ...func(*models.AccessControlRole)) models.AccessControlRole {
	f.t.Helper()
	r := models.AccessControlRole{Name: name, ObjectType: t}
	for _, o := range opts {
		o(&r)
	}
	out, err := f.tx.PutRole(r)
	require.NoError(f.t, err)
	return out
}

// AccessControlList binds the named role of ref's type to ref.
func (f *Factory) AccessControlList(ref domain.ObjectRef, roleName string) models.AccessControlList {
	f.t.Helper()
	role, err := acl.MustRole(f.tx, ref.Type, roleName)
	require.NoError(f.t, err)
	l, err := acl.EnsureList(f.tx, role.ID, ref)
	require.NoError(f.t, err)
	return l
}

// AccessControlPerson grants roleName on ref to each person.
func (f *Factory) AccessControlPerson(ref domain.ObjectRef, roleName string, personIDs ...int64) {
	f.t.Helper()
	for _, id := range personIDs {
		require.NoError(f.t, acl.AddPerson(f.tx, ref, roleName, id))
	}
}

// AssessmentTemplate creates a template.
func (f *Factory) AssessmentTemplate(opts ...func(*models.AssessmentTemplate)) models.AssessmentTemplate {
	f.t.Helper()
	t := models.AssessmentTemplate{
		Title:              fmt.Sprintf("Template %d", next()),
		TemplateObjectType: domain.TypeControl,
	}
	for _, o := range opts {
		o(&t)
	}
	out, err := objects.CreateTemplate(f.tx, t)
	require.NoError(f.t, err)
	return out
}

// CustomAttributeDefinition creates a global assessment attribute unless
// opts scope it to a template.
func (f *Factory) CustomAttributeDefinition(opts ...func(*models.CustomAttributeDefinition)) models.CustomAttributeDefinition {
	f.t.Helper()
	d := models.CustomAttributeDefinition{
		Title:          fmt.Sprintf("attribute %d", next()),
		AttributeType:  models.AttributeText,
		DefinitionType: models.DefinitionGlobalAssessment,
	}
	for _, o := range opts {
		o(&d)
	}
	out, err := objects.CreateDefinition(f.tx, d)
	require.NoError(f.t, err)
	return out
}

// Snapshot freezes child inside the audit.
func (f *Factory) Snapshot(auditRef, child domain.ObjectRef) models.Snapshot {
	f.t.Helper()
	s, err := snapshot.Create(f.tx, auditRef, child)
	require.NoError(f.t, err)
	return s
}

// Assessment stores an assessment in the audit without running generation.
func (f *Factory) Assessment(auditID int64, opts ...func(*models.Assessment)) models.Assessment {
	f.t.Helper()
	now := f.tx.Now()
	a := models.Assessment{
		Title:          fmt.Sprintf("Assessment %d", next()),
		AuditID:        auditID,
		AssessmentType: domain.TypeControl,
		Status:         models.AssessmentStartState,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for _, o := range opts {
		o(&a)
	}
	out, err := f.tx.PutAssessment(a)
	require.NoError(f.t, err)
	if out.Slug == "" {
		out.Slug = fmt.Sprintf("%s-%d", domain.TypeAssessment.SlugPrefix(), out.ID)
		out, err = f.tx.PutAssessment(out)
		require.NoError(f.t, err)
	}
	if auditID != 0 {
		_, err = f.tx.Relate(out.Ref(), domain.Ref(domain.TypeAudit, auditID))
		require.NoError(f.t, err)
	}
	return out
}
