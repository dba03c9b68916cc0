package store

import (
	"slices"
	"strings"

	"grc/internal/models"
	"grc/pkg/domain"
)

// lookup maps a key to the ids of the entities carrying it, ascending. It
// is built from its table on first use and kept current by every write of
// the unit of work after that.
type lookup[T models.Identified, K comparable] struct {
	keys func(T) []K
	ids  map[K][]int64
}

func newLookup[T models.Identified, K comparable](keys func(T) []K) *lookup[T, K] {
	return &lookup[T, K]{keys: keys}
}

func (l *lookup[T, K]) get(table Table[T], k K) []int64 {
	if l.ids == nil {
		l.ids = map[K][]int64{}
		for id, v := range table {
			for _, k := range l.keys(v) {
				l.ids[k] = append(l.ids[k], id)
			}
		}
		for k, ids := range l.ids {
			slices.Sort(ids)
			l.ids[k] = slices.Compact(ids)
		}
	}
	return l.ids[k]
}

func (l *lookup[T, K]) add(k K, id int64) {
	ids := l.ids[k]
	if i, found := slices.BinarySearch(ids, id); !found {
		l.ids[k] = slices.Insert(ids, i, id)
	}
}

func (l *lookup[T, K]) drop(k K, id int64) {
	ids := l.ids[k]
	i, found := slices.BinarySearch(ids, id)
	if !found {
		return
	}
	if ids = slices.Delete(ids, i, i+1); len(ids) == 0 {
		delete(l.ids, k)
		return
	}
	l.ids[k] = ids
}

// replace moves id from the keys of old to the keys of v.
func (l *lookup[T, K]) replace(id int64, old T, had bool, v T, present bool) {
	if l.ids == nil {
		return
	}
	if had {
		for _, k := range l.keys(old) {
			l.drop(k, id)
		}
	}
	if present {
		for _, k := range l.keys(v) {
			l.add(k, id)
		}
	}
}

type slugKey struct {
	Type domain.ObjectType
	Slug string
}

// fold is the case-insensitive form of codes and emails.
func fold(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func folded(s string) []string {
	if f := fold(s); f != "" {
		return []string{f}
	}
	return nil
}

func refs(r ...domain.ObjectRef) []domain.ObjectRef { return r }

type indexes struct {
	peopleByEmail     *lookup[models.Person, string]
	objectsBySlug     *lookup[models.BusinessObject, slugKey]
	auditsBySlug      *lookup[models.Audit, string]
	assessmentsBySlug *lookup[models.Assessment, string]
	reviewsByObject   *lookup[models.Review, domain.ObjectRef]
	aclsByObject      *lookup[models.AccessControlList, domain.ObjectRef]
	aclsByBase        *lookup[models.AccessControlList, int64]
	aclPeople         *lookup[models.AccessControlPerson, int64]
	snapshotsByParent *lookup[models.Snapshot, domain.ObjectRef]
	revisionsByRef    *lookup[models.Revision, domain.ObjectRef]
	relationsByRef    *lookup[models.Relationship, domain.ObjectRef]
}

func newIndexes() *indexes {
	return &indexes{
		peopleByEmail: newLookup(func(p models.Person) []string { return folded(p.Email) }),
		objectsBySlug: newLookup(func(o models.BusinessObject) []slugKey {
			if f := fold(o.Slug); f != "" {
				return []slugKey{{Type: o.Type, Slug: f}}
			}
			return nil
		}),
		auditsBySlug:      newLookup(func(a models.Audit) []string { return folded(a.Slug) }),
		assessmentsBySlug: newLookup(func(a models.Assessment) []string { return folded(a.Slug) }),
		reviewsByObject:   newLookup(func(r models.Review) []domain.ObjectRef { return refs(r.Reviewable) }),
		aclsByObject:      newLookup(func(l models.AccessControlList) []domain.ObjectRef { return refs(l.Object) }),
		aclsByBase: newLookup(func(l models.AccessControlList) []int64 {
			if l.BaseID == 0 {
				return nil
			}
			return []int64{l.BaseID}
		}),
		aclPeople:         newLookup(func(p models.AccessControlPerson) []int64 { return []int64{p.ACLID} }),
		snapshotsByParent: newLookup(func(s models.Snapshot) []domain.ObjectRef { return refs(s.Parent) }),
		revisionsByRef:    newLookup(func(r models.Revision) []domain.ObjectRef { return refs(r.Resource) }),
		relationsByRef: newLookup(func(r models.Relationship) []domain.ObjectRef {
			return refs(r.Source, r.Destination)
		}),
	}
}

// reindex follows one write: id held old (when had) and now holds v (when
// present).
func (ix *indexes) reindex(id int64, old any, had bool, v any, present bool) {
	switch o := old.(type) {
	case models.Person:
		ix.peopleByEmail.replace(id, o, had, v.(models.Person), present)
	case models.BusinessObject:
		ix.objectsBySlug.replace(id, o, had, v.(models.BusinessObject), present)
	case models.Audit:
		ix.auditsBySlug.replace(id, o, had, v.(models.Audit), present)
	case models.Assessment:
		ix.assessmentsBySlug.replace(id, o, had, v.(models.Assessment), present)
	case models.Review:
		ix.reviewsByObject.replace(id, o, had, v.(models.Review), present)
	case models.AccessControlList:
		ix.aclsByObject.replace(id, o, had, v.(models.AccessControlList), present)
		ix.aclsByBase.replace(id, o, had, v.(models.AccessControlList), present)
	case models.AccessControlPerson:
		ix.aclPeople.replace(id, o, had, v.(models.AccessControlPerson), present)
	case models.Snapshot:
		ix.snapshotsByParent.replace(id, o, had, v.(models.Snapshot), present)
	case models.Revision:
		ix.revisionsByRef.replace(id, o, had, v.(models.Revision), present)
	case models.Relationship:
		ix.relationsByRef.replace(id, o, had, v.(models.Relationship), present)
	}
}

func pick[T models.Identified](table Table[T], ids []int64) []T {
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, table[id])
	}
	return out
}

func first[T models.Identified](table Table[T], ids []int64) (T, bool) {
	if len(ids) == 0 {
		var zero T
		return zero, false
	}
	return table[ids[0]], true
}

// PersonByEmail matches emails case-insensitively.
func (tx *Tx) PersonByEmail(email string) (models.Person, bool) {
	return first(tx.state.People, tx.index.peopleByEmail.get(tx.state.People, fold(email)))
}

// ObjectBySlug returns the object of type t whose code matches slug,
// case-insensitively.
func (tx *Tx) ObjectBySlug(t domain.ObjectType, slug string) (models.BusinessObject, bool) {
	key := slugKey{Type: t, Slug: fold(slug)}
	return first(tx.state.Objects, tx.index.objectsBySlug.get(tx.state.Objects, key))
}

func (tx *Tx) AuditBySlug(slug string) (models.Audit, bool) {
	return first(tx.state.Audits, tx.index.auditsBySlug.get(tx.state.Audits, fold(slug)))
}

func (tx *Tx) AssessmentBySlug(slug string) (models.Assessment, bool) {
	return first(tx.state.Assessments, tx.index.assessmentsBySlug.get(tx.state.Assessments, fold(slug)))
}

// ReviewOf returns the review attached to ref.
func (tx *Tx) ReviewOf(ref domain.ObjectRef) (models.Review, bool) {
	return first(tx.state.Reviews, tx.index.reviewsByObject.get(tx.state.Reviews, ref))
}

// ACLsOn returns the role lists attached to ref, ordered by id.
func (tx *Tx) ACLsOn(ref domain.ObjectRef) []models.AccessControlList {
	return pick(tx.state.ACLs, tx.index.aclsByObject.get(tx.state.ACLs, ref))
}

// ACLsBasedOn returns the propagated lists copied from the list baseID.
func (tx *Tx) ACLsBasedOn(baseID int64) []models.AccessControlList {
	return pick(tx.state.ACLs, tx.index.aclsByBase.get(tx.state.ACLs, baseID))
}

// ACLPeopleIn returns the holders of one role list, ordered by id.
func (tx *Tx) ACLPeopleIn(aclID int64) []models.AccessControlPerson {
	return pick(tx.state.ACLPeople, tx.index.aclPeople.get(tx.state.ACLPeople, aclID))
}

// SnapshotsIn returns the snapshots taken into parent, ordered by id.
func (tx *Tx) SnapshotsIn(parent domain.ObjectRef) []models.Snapshot {
	return pick(tx.state.Snapshots, tx.index.snapshotsByParent.get(tx.state.Snapshots, parent))
}

// RevisionsOf lists the change log of one resource, oldest first.
func (tx *Tx) RevisionsOf(ref domain.ObjectRef) []models.Revision {
	return pick(tx.state.Revisions, tx.index.revisionsByRef.get(tx.state.Revisions, ref))
}

func (tx *Tx) relationsOf(ref domain.ObjectRef) []models.Relationship {
	return pick(tx.state.Relationships, tx.index.relationsByRef.get(tx.state.Relationships, ref))
}
