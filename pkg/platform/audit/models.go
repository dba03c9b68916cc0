package audit

import (
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// Categories drive retention and the Kafka topic suffix.
type EventCategory string

const (
	// CategoryCompliance covers changes to the compliance record itself:
	// object edits, imports, generated assessments and reviews.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers authentication and administrative actions.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers read-mostly activity such as exports.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID          string
	Category    EventCategory
	Timestamp   time.Time
	ActorID     int64
	Action      string
	ObjectType  string
	ObjectID    int64
	Subject     string
	Detail      string
	RequestID   string
	ClientAgent string
}

type AuditEvent string

const (
	// Object lifecycle
	EventObjectCreated AuditEvent = "object_created"
	EventObjectUpdated AuditEvent = "object_updated"
	EventObjectDeleted AuditEvent = "object_deleted"

	// Bulk data movement
	EventObjectsImported AuditEvent = "objects_imported"
	EventObjectsExported AuditEvent = "objects_exported"

	// Assessment workflow
	EventAssessmentGenerated AuditEvent = "assessment_generated"
	EventReviewMarked        AuditEvent = "review_marked"
	EventReviewReset         AuditEvent = "review_reset"

	// Sessions and administration
	EventUserLoggedIn  AuditEvent = "user_logged_in"
	EventUserLoggedOut AuditEvent = "user_logged_out"
	EventLoginFailed   AuditEvent = "login_failed"
	EventLoginLocked   AuditEvent = "login_locked"
	EventRoleCreated   AuditEvent = "role_created"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventObjectCreated:       CategoryCompliance,
	EventObjectUpdated:       CategoryCompliance,
	EventObjectDeleted:       CategoryCompliance,
	EventObjectsImported:     CategoryCompliance,
	EventAssessmentGenerated: CategoryCompliance,
	EventReviewMarked:        CategoryCompliance,
	EventReviewReset:         CategoryCompliance,

	EventUserLoggedIn:  CategorySecurity,
	EventUserLoggedOut: CategorySecurity,
	EventLoginFailed:   CategorySecurity,
	EventLoginLocked:   CategorySecurity,
	EventRoleCreated:   CategorySecurity,

	EventObjectsExported: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}
