package store

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"grc/internal/models"
)

// Bucket names used by the persisters. One bucket per table plus meta.
const (
	BucketMeta          = "meta"
	BucketPeople        = "people"
	BucketObjects       = "objects"
	BucketAudits        = "audits"
	BucketReviews       = "reviews"
	BucketRoles         = "roles"
	BucketACLs          = "acls"
	BucketACLPeople     = "acl_people"
	BucketSnapshots     = "snapshots"
	BucketRevisions     = "revisions"
	BucketTemplates     = "templates"
	BucketCADs          = "cads"
	BucketAssessments   = "assessments"
	BucketRelationships = "relationships"
)

// Buckets lists every bucket in a stable order.
var Buckets = []string{
	BucketMeta, BucketPeople, BucketObjects, BucketAudits, BucketReviews,
	BucketRoles, BucketACLs, BucketACLPeople, BucketSnapshots, BucketRevisions,
	BucketTemplates, BucketCADs, BucketAssessments, BucketRelationships,
}

// Table maps ids to entities.
type Table[T models.Identified] map[int64]T

// Get returns the entity with id.
func (t Table[T]) Get(id int64) (T, bool) {
	v, ok := t[id]
	return v, ok
}

// Sorted returns all entities ordered by id.
func (t Table[T]) Sorted() []T {
	return t.Filter(nil)
}

// Filter returns entities matching keep (all when keep is nil), ordered by id.
func (t Table[T]) Filter(keep func(T) bool) []T {
	ids := slices.Sorted(maps.Keys(t))
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		v := t[id]
		if keep == nil || keep(v) {
			out = append(out, v)
		}
	}
	return out
}

// Find returns the lowest-id entity matching keep.
func (t Table[T]) Find(keep func(T) bool) (T, bool) {
	var (
		best  T
		found bool
	)
	for id, v := range t {
		if keep(v) && (!found || id < best.Identity()) {
			best, found = v, true
		}
	}
	return best, found
}

// State is the whole repository. It is the source of truth; persisters
// only mirror it.
type State struct {
	NextID        int64
	People        Table[models.Person]
	Objects       Table[models.BusinessObject]
	Audits        Table[models.Audit]
	Reviews       Table[models.Review]
	Roles         Table[models.AccessControlRole]
	ACLs          Table[models.AccessControlList]
	ACLPeople     Table[models.AccessControlPerson]
	Snapshots     Table[models.Snapshot]
	Revisions     Table[models.Revision]
	Templates     Table[models.AssessmentTemplate]
	CADs          Table[models.CustomAttributeDefinition]
	Assessments   Table[models.Assessment]
	Relationships Table[models.Relationship]
}

// NewState returns an empty state.
func NewState() *State {
	return &State{
		People:        Table[models.Person]{},
		Objects:       Table[models.BusinessObject]{},
		Audits:        Table[models.Audit]{},
		Reviews:       Table[models.Review]{},
		Roles:         Table[models.AccessControlRole]{},
		ACLs:          Table[models.AccessControlList]{},
		ACLPeople:     Table[models.AccessControlPerson]{},
		Snapshots:     Table[models.Snapshot]{},
		Revisions:     Table[models.Revision]{},
		Templates:     Table[models.AssessmentTemplate]{},
		CADs:          Table[models.CustomAttributeDefinition]{},
		Assessments:   Table[models.Assessment]{},
		Relationships: Table[models.Relationship]{},
	}
}

// Clone returns a working copy whose maps and slices are detached from s.
// Revision content is shared; revisions are immutable.
func (s *State) Clone() *State {
	c := &State{
		NextID:        s.NextID,
		People:        maps.Clone(s.People),
		Objects:       maps.Clone(s.Objects),
		Audits:        maps.Clone(s.Audits),
		Reviews:       maps.Clone(s.Reviews),
		Roles:         maps.Clone(s.Roles),
		ACLs:          maps.Clone(s.ACLs),
		ACLPeople:     maps.Clone(s.ACLPeople),
		Snapshots:     maps.Clone(s.Snapshots),
		Revisions:     maps.Clone(s.Revisions),
		Templates:     make(Table[models.AssessmentTemplate], len(s.Templates)),
		CADs:          maps.Clone(s.CADs),
		Assessments:   make(Table[models.Assessment], len(s.Assessments)),
		Relationships: maps.Clone(s.Relationships),
	}
	for id, t := range s.Templates {
		c.Templates[id] = t.Clone()
	}
	for id, a := range s.Assessments {
		c.Assessments[id] = a.Clone()
	}
	return c
}

type meta struct {
	NextID int64 `json:"next_id"`
}

// EncodeBucket serializes one bucket as JSON. Tables are written as id-ordered
// lists so payloads are stable.
func (s *State) EncodeBucket(name string) ([]byte, error) {
	var v any
	switch name {
	case BucketMeta:
		v = meta{NextID: s.NextID}
	case BucketPeople:
		v = s.People.Sorted()
	case BucketObjects:
		v = s.Objects.Sorted()
	case BucketAudits:
		v = s.Audits.Sorted()
	case BucketReviews:
		v = s.Reviews.Sorted()
	case BucketRoles:
		v = s.Roles.Sorted()
	case BucketACLs:
		v = s.ACLs.Sorted()
	case BucketACLPeople:
		v = s.ACLPeople.Sorted()
	case BucketSnapshots:
		v = s.Snapshots.Sorted()
	case BucketRevisions:
		v = s.Revisions.Sorted()
	case BucketTemplates:
		v = s.Templates.Sorted()
	case BucketCADs:
		v = s.CADs.Sorted()
	case BucketAssessments:
		v = s.Assessments.Sorted()
	case BucketRelationships:
		v = s.Relationships.Sorted()
	default:
		return nil, fmt.Errorf("unknown bucket %q", name)
	}
	return json.Marshal(v)
}

// DecodeBucket loads one bucket into s.
func (s *State) DecodeBucket(name string, payload []byte) error {
	switch name {
	case BucketMeta:
		var m meta
		if err := json.Unmarshal(payload, &m); err != nil {
			return fmt.Errorf("decode %s: %w", name, err)
		}
		s.NextID = m.NextID
		return nil
	case BucketPeople:
		return decodeTable(name, payload, s.People)
	case BucketObjects:
		return decodeTable(name, payload, s.Objects)
	case BucketAudits:
		return decodeTable(name, payload, s.Audits)
	case BucketReviews:
		return decodeTable(name, payload, s.Reviews)
	case BucketRoles:
		return decodeTable(name, payload, s.Roles)
	case BucketACLs:
		return decodeTable(name, payload, s.ACLs)
	case BucketACLPeople:
		return decodeTable(name, payload, s.ACLPeople)
	case BucketSnapshots:
		return decodeTable(name, payload, s.Snapshots)
	case BucketRevisions:
		return decodeTable(name, payload, s.Revisions)
	case BucketTemplates:
		return decodeTable(name, payload, s.Templates)
	case BucketCADs:
		return decodeTable(name, payload, s.CADs)
	case BucketAssessments:
		return decodeTable(name, payload, s.Assessments)
	case BucketRelationships:
		return decodeTable(name, payload, s.Relationships)
	}
	return fmt.Errorf("unknown bucket %q", name)
}

func decodeTable[T models.Identified](name string, payload []byte, into Table[T]) error {
	var list []T
	if err := json.Unmarshal(payload, &list); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	for _, v := range list {
		into[v.Identity()] = v
	}
	return nil
}
