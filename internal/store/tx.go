package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"grc/internal/models"
	"grc/pkg/domain"
	audit "grc/pkg/platform/audit"
	"grc/pkg/platform/audit/publisher"
	"grc/pkg/platform/sentinel"
	"grc/pkg/requestcontext"
)

// Tx is a unit of work over a working copy of the state. Reads go through
// the table accessors; writes go through the Put/Delete methods so that
// dirty buckets are tracked and read-only views are enforced.
type Tx struct {
	ctx        context.Context
	state      *State
	readOnly   bool
	dirty      map[string]bool
	events     []audit.Event
	index      *indexes
	undo       []func()
	savepoints int
}

func newTx(ctx context.Context, state *State, readOnly bool) *Tx {
	return &Tx{ctx: ctx, state: state, readOnly: readOnly, dirty: map[string]bool{}, index: newIndexes()}
}

// Context returns the request context the unit of work runs under.
func (tx *Tx) Context() context.Context { return tx.ctx }

// Now is the request time, shared by every write of the unit of work.
func (tx *Tx) Now() time.Time { return requestcontext.Now(tx.ctx).UTC() }

// Actor is the signed-in person, 0 for system work.
func (tx *Tx) Actor() int64 { return requestcontext.PersonID(tx.ctx) }

func (tx *Tx) People() Table[models.Person]                  { return tx.state.People }
func (tx *Tx) Objects() Table[models.BusinessObject]         { return tx.state.Objects }
func (tx *Tx) Audits() Table[models.Audit]                   { return tx.state.Audits }
func (tx *Tx) Reviews() Table[models.Review]                 { return tx.state.Reviews }
func (tx *Tx) Roles() Table[models.AccessControlRole]        { return tx.state.Roles }
func (tx *Tx) ACLs() Table[models.AccessControlList]         { return tx.state.ACLs }
func (tx *Tx) ACLPeople() Table[models.AccessControlPerson]  { return tx.state.ACLPeople }
func (tx *Tx) Snapshots() Table[models.Snapshot]             { return tx.state.Snapshots }
func (tx *Tx) Revisions() Table[models.Revision]             { return tx.state.Revisions }
func (tx *Tx) Templates() Table[models.AssessmentTemplate]   { return tx.state.Templates }
func (tx *Tx) CADs() Table[models.CustomAttributeDefinition] { return tx.state.CADs }
func (tx *Tx) Assessments() Table[models.Assessment]         { return tx.state.Assessments }
func (tx *Tx) Relationships() Table[models.Relationship]     { return tx.state.Relationships }

func (tx *Tx) nextID() int64 {
	tx.state.NextID++
	tx.dirty[BucketMeta] = true
	return tx.state.NextID
}

func put[T models.Identified](tx *Tx, bucket string, table Table[T], v T, withID func(T, int64) T) (T, error) {
	if tx.readOnly {
		return v, sentinel.ErrReadOnly
	}
	if v.Identity() == 0 {
		v = withID(v, tx.nextID())
	}
	assign(tx, table, v.Identity(), v, true)
	tx.dirty[bucket] = true
	return v, nil
}

func remove[T models.Identified](tx *Tx, bucket string, table Table[T], id int64) error {
	if tx.readOnly {
		return sentinel.ErrReadOnly
	}
	if _, ok := table[id]; !ok {
		return fmt.Errorf("%s %d: %w", bucket, id, sentinel.ErrNotFound)
	}
	var zero T
	assign(tx, table, id, zero, false)
	tx.dirty[bucket] = true
	return nil
}

// assign stores v under id, or deletes id when present is false. It keeps
// the indexes current and, inside a savepoint, logs the inverse write.
func assign[T models.Identified](tx *Tx, table Table[T], id int64, v T, present bool) {
	old, had := table[id]
	if present {
		table[id] = v
	} else {
		delete(table, id)
	}
	tx.index.reindex(id, old, had, v, present)
	if tx.savepoints == 0 {
		return
	}
	if c, ok := any(old).(interface{ Clone() T }); ok && had {
		old = c.Clone()
	}
	tx.undo = append(tx.undo, func() { assign(tx, table, id, old, had) })
}

// PutPerson inserts (ID 0) or replaces a person.
func (tx *Tx) PutPerson(p models.Person) (models.Person, error) {
	return put(tx, BucketPeople, tx.state.People, p, func(v models.Person, id int64) models.Person { v.ID = id; return v })
}

// PutObject inserts (ID 0) or replaces a business object.
func (tx *Tx) PutObject(o models.BusinessObject) (models.BusinessObject, error) {
	return put(tx, BucketObjects, tx.state.Objects, o, func(v models.BusinessObject, id int64) models.BusinessObject { v.ID = id; return v })
}

func (tx *Tx) DeleteObject(id int64) error { return remove(tx, BucketObjects, tx.state.Objects, id) }

func (tx *Tx) PutAudit(a models.Audit) (models.Audit, error) {
	return put(tx, BucketAudits, tx.state.Audits, a, func(v models.Audit, id int64) models.Audit { v.ID = id; return v })
}

func (tx *Tx) DeleteAudit(id int64) error { return remove(tx, BucketAudits, tx.state.Audits, id) }

func (tx *Tx) PutReview(r models.Review) (models.Review, error) {
	return put(tx, BucketReviews, tx.state.Reviews, r, func(v models.Review, id int64) models.Review { v.ID = id; return v })
}

func (tx *Tx) DeleteReview(id int64) error { return remove(tx, BucketReviews, tx.state.Reviews, id) }

func (tx *Tx) PutRole(r models.AccessControlRole) (models.AccessControlRole, error) {
	return put(tx, BucketRoles, tx.state.Roles, r, func(v models.AccessControlRole, id int64) models.AccessControlRole { v.ID = id; return v })
}

func (tx *Tx) PutACL(l models.AccessControlList) (models.AccessControlList, error) {
	return put(tx, BucketACLs, tx.state.ACLs, l, func(v models.AccessControlList, id int64) models.AccessControlList { v.ID = id; return v })
}

func (tx *Tx) DeleteACL(id int64) error { return remove(tx, BucketACLs, tx.state.ACLs, id) }

func (tx *Tx) PutACLPerson(p models.AccessControlPerson) (models.AccessControlPerson, error) {
	return put(tx, BucketACLPeople, tx.state.ACLPeople, p, func(v models.AccessControlPerson, id int64) models.AccessControlPerson { v.ID = id; return v })
}

func (tx *Tx) DeleteACLPerson(id int64) error {
	return remove(tx, BucketACLPeople, tx.state.ACLPeople, id)
}

func (tx *Tx) PutSnapshot(s models.Snapshot) (models.Snapshot, error) {
	return put(tx, BucketSnapshots, tx.state.Snapshots, s, func(v models.Snapshot, id int64) models.Snapshot { v.ID = id; return v })
}

func (tx *Tx) PutTemplate(t models.AssessmentTemplate) (models.AssessmentTemplate, error) {
	return put(tx, BucketTemplates, tx.state.Templates, t.Clone(), func(v models.AssessmentTemplate, id int64) models.AssessmentTemplate { v.ID = id; return v })
}

func (tx *Tx) DeleteTemplate(id int64) error { return remove(tx, BucketTemplates, tx.state.Templates, id) }

func (tx *Tx) PutCAD(d models.CustomAttributeDefinition) (models.CustomAttributeDefinition, error) {
	return put(tx, BucketCADs, tx.state.CADs, d, func(v models.CustomAttributeDefinition, id int64) models.CustomAttributeDefinition { v.ID = id; return v })
}

func (tx *Tx) DeleteCAD(id int64) error { return remove(tx, BucketCADs, tx.state.CADs, id) }

func (tx *Tx) PutAssessment(a models.Assessment) (models.Assessment, error) {
	return put(tx, BucketAssessments, tx.state.Assessments, a.Clone(), func(v models.Assessment, id int64) models.Assessment { v.ID = id; return v })
}

func (tx *Tx) DeleteAssessment(id int64) error {
	return remove(tx, BucketAssessments, tx.state.Assessments, id)
}

func (tx *Tx) PutRelationship(r models.Relationship) (models.Relationship, error) {
	return put(tx, BucketRelationships, tx.state.Relationships, r, func(v models.Relationship, id int64) models.Relationship { v.ID = id; return v })
}

func (tx *Tx) DeleteRelationship(id int64) error {
	return remove(tx, BucketRelationships, tx.state.Relationships, id)
}

// Relate links a and b unless they are already linked.
func (tx *Tx) Relate(a, b domain.ObjectRef) (models.Relationship, error) {
	for _, rel := range tx.relationsOf(a) {
		if rel.Links(a, b) {
			return rel, nil
		}
	}
	return tx.PutRelationship(models.Relationship{Source: a, Destination: b})
}

// Related returns the refs linked to ref, optionally restricted to one type,
// ordered by relationship id.
func (tx *Tx) Related(ref domain.ObjectRef, only domain.ObjectType) []domain.ObjectRef {
	var out []domain.ObjectRef
	for _, r := range tx.relationsOf(ref) {
		other, ok := r.Other(ref)
		if !ok || (only != "" && other.Type != only) {
			continue
		}
		out = append(out, other)
	}
	return out
}

// Unrelate removes every relationship touching ref.
func (tx *Tx) Unrelate(ref domain.ObjectRef) error {
	for _, r := range tx.relationsOf(ref) {
		if err := tx.DeleteRelationship(r.ID); err != nil {
			return err
		}
	}
	return nil
}

// Record appends a revision for ref holding content.
func (tx *Tx) Record(action string, ref domain.ObjectRef, content map[string]any) (models.Revision, error) {
	return put(tx, BucketRevisions, tx.state.Revisions, models.Revision{
		Resource:   ref,
		Action:     action,
		Content:    content,
		CreatedAt:  tx.Now(),
		ModifiedBy: tx.Actor(),
	}, func(v models.Revision, id int64) models.Revision { v.ID = id; return v })
}

// Emit queues an audit event; it is persisted with the commit or dropped
// with a rollback.
func (tx *Tx) Emit(event audit.Event) {
	if tx.readOnly {
		return
	}
	tx.events = append(tx.events, publisher.Enrich(tx.ctx, event))
}

// Savepoint runs fn and undoes its writes and events when it fails, leaving
// the rest of the unit of work intact. Savepoints nest. Undoing costs as
// much as the writes fn made.
func (tx *Tx) Savepoint(fn func() error) error {
	if tx.readOnly {
		return fn()
	}
	mark := len(tx.undo)
	nextID := tx.state.NextID
	dirty := maps.Clone(tx.dirty)
	events := len(tx.events)

	tx.savepoints++
	err := fn()
	tx.savepoints--
	if err == nil {
		if tx.savepoints == 0 {
			tx.undo = nil
		}
		return nil
	}

	log := slices.Clone(tx.undo[mark:])
	tx.undo = tx.undo[:mark]
	depth := tx.savepoints
	tx.savepoints = 0
	for i := len(log) - 1; i >= 0; i-- {
		log[i]()
	}
	tx.savepoints = depth
	tx.state.NextID = nextID
	tx.dirty = dirty
	tx.events = tx.events[:events]
	return err
}

// Events returns the audit events queued so far.
func (tx *Tx) Events() []audit.Event { return tx.events }

// Dirty returns the buckets written by the unit of work.
func (tx *Tx) Dirty() []string {
	var out []string
	for _, b := range Buckets {
		if tx.dirty[b] {
			out = append(out, b)
		}
	}
	return out
}
