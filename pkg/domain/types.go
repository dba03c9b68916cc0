// Package domain holds the identifiers shared by every GRC module: object
// type names, references to persisted objects and the collection names used
// on the REST surface.
package domain

import (
	"fmt"
	"strconv"
	"strings"

	dErrors "grc/pkg/domain-errors"
)

// ObjectType is the model name of a persisted object ("Control", "Audit").
type ObjectType string

const (
	TypePerson                    ObjectType = "Person"
	TypeControl                   ObjectType = "Control"
	TypeObjective                 ObjectType = "Objective"
	TypeMarket                    ObjectType = "Market"
	TypeOrgGroup                  ObjectType = "OrgGroup"
	TypeAudit                     ObjectType = "Audit"
	TypeSnapshot                  ObjectType = "Snapshot"
	TypeAssessment                ObjectType = "Assessment"
	TypeAssessmentTemplate        ObjectType = "AssessmentTemplate"
	TypeReview                    ObjectType = "Review"
	TypeCustomAttributeDefinition ObjectType = "CustomAttributeDefinition"
	TypeRevision                  ObjectType = "Revision"
	TypeRelationship              ObjectType = "Relationship"
	TypeAccessControlRole         ObjectType = "AccessControlRole"
)

// businessTypes are the snapshottable, reviewable scope objects.
var businessTypes = []ObjectType{TypeControl, TypeObjective, TypeMarket, TypeOrgGroup}

var collections = map[ObjectType]string{
	TypePerson:                    "people",
	TypeControl:                   "controls",
	TypeObjective:                 "objectives",
	TypeMarket:                    "markets",
	TypeOrgGroup:                  "org_groups",
	TypeAudit:                     "audits",
	TypeSnapshot:                  "snapshots",
	TypeAssessment:                "assessments",
	TypeAssessmentTemplate:        "assessment_templates",
	TypeReview:                    "reviews",
	TypeCustomAttributeDefinition: "custom_attribute_definitions",
	TypeRevision:                  "revisions",
	TypeRelationship:              "relationships",
	TypeAccessControlRole:         "access_control_roles",
}

// BusinessTypes returns the scope object types in a stable order.
func BusinessTypes() []ObjectType {
	return append([]ObjectType(nil), businessTypes...)
}

// IsBusinessType reports whether t is a Control-like scope object.
func IsBusinessType(t ObjectType) bool {
	for _, bt := range businessTypes {
		if bt == t {
			return true
		}
	}
	return false
}

// IsSnapshottable reports whether objects of type t can be snapshotted into
// an audit and therefore be the type of a generated assessment.
func IsSnapshottable(t ObjectType) bool {
	return IsBusinessType(t)
}

// IsReviewable reports whether objects of type t carry a review workflow.
func IsReviewable(t ObjectType) bool {
	return IsBusinessType(t)
}

// Collection returns the REST collection name of t.
func (t ObjectType) Collection() string {
	return collections[t]
}

// SlugPrefix is the prefix of generated codes ("CONTROL", "ORGGROUP").
func (t ObjectType) SlugPrefix() string {
	return strings.ToUpper(string(t))
}

// ParseObjectType resolves a model name case-insensitively, also accepting
// spaced forms such as "Org Group".
func ParseObjectType(raw string) (ObjectType, error) {
	norm := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(raw), " ", ""))
	for t := range collections {
		if strings.ToLower(string(t)) == norm {
			return t, nil
		}
	}
	return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown object type %q", raw)
}

// TypeForCollection resolves a REST collection name.
func TypeForCollection(collection string) (ObjectType, bool) {
	for t, c := range collections {
		if c == collection {
			return t, true
		}
	}
	return "", false
}

// ObjectRef points at a persisted object.
type ObjectRef struct {
	Type ObjectType `json:"type"`
	ID   int64      `json:"id"`
}

// Ref is shorthand for ObjectRef{Type: t, ID: id}.
func Ref(t ObjectType, id int64) ObjectRef {
	return ObjectRef{Type: t, ID: id}
}

// IsZero reports whether the reference is unset.
func (r ObjectRef) IsZero() bool {
	return r.Type == "" && r.ID == 0
}

func (r ObjectRef) String() string {
	return fmt.Sprintf("%s:%d", r.Type, r.ID)
}

// ParseObjectRef parses the "Type:id" form produced by String.
func ParseObjectRef(raw string) (ObjectRef, error) {
	typ, idPart, ok := strings.Cut(raw, ":")
	if !ok {
		return ObjectRef{}, dErrors.Newf(dErrors.CodeInvalidInput, "malformed object reference %q", raw)
	}
	t, err := ParseObjectType(typ)
	if err != nil {
		return ObjectRef{}, err
	}
	id, err := ParseID(idPart)
	if err != nil {
		return ObjectRef{}, err
	}
	return ObjectRef{Type: t, ID: id}, nil
}

// ParseID parses a positive object id.
func ParseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, dErrors.Newf(dErrors.CodeInvalidInput, "invalid id %q", raw)
	}
	return id, nil
}
