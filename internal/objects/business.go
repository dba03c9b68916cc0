// Package objects maintains the GRC object model: business objects, audits
// and their snapshots, people, assessment templates and custom attribute
// definitions. The Tx-level functions are shared by the REST handlers and
// the CSV importer so both channels apply the same rules.
package objects

import (
	"fmt"
	"strings"
	"time"

	"grc/internal/acl"
	"grc/internal/models"
	"grc/internal/review"
	"grc/internal/snapshot"
	"grc/internal/store"
	"grc/pkg/domain"
	dErrors "grc/pkg/domain-errors"
	audit "grc/pkg/platform/audit"
)

// FindBySlug returns the object of type t whose code matches slug,
// case-insensitively.
func FindBySlug(tx *store.Tx, t domain.ObjectType, slug string) (models.BusinessObject, bool) {
	return tx.ObjectBySlug(t, slug)
}

// CanonicalStatus matches raw against the accepted statuses, ignoring case.
func CanonicalStatus(raw string, accepted []string) (string, bool) {
	for _, s := range accepted {
		if strings.EqualFold(strings.TrimSpace(raw), s) {
			return s, true
		}
	}
	return "", false
}

func normalizeBusiness(o *models.BusinessObject) error {
	if !domain.IsBusinessType(o.Type) {
		return dErrors.Newf(dErrors.CodeValidation, "%q is not a business object type", o.Type)
	}
	o.Title = strings.TrimSpace(o.Title)
	o.Slug = strings.TrimSpace(o.Slug)
	if o.Title == "" {
		return dErrors.New(dErrors.CodeValidation, "title is required")
	}
	if o.Status == "" {
		o.Status = models.StatusDraft
	}
	status, ok := CanonicalStatus(o.Status, models.BusinessStatuses)
	if !ok {
		return dErrors.Newf(dErrors.CodeValidation, "invalid status %q", o.Status)
	}
	o.Status = status
	return nil
}

func checkSlug(tx *store.Tx, o models.BusinessObject) error {
	if existing, ok := FindBySlug(tx, o.Type, o.Slug); ok && existing.ID != o.ID {
		return dErrors.Newf(dErrors.CodeConflict, "code %q is already used by %s %d", o.Slug, o.Type, existing.ID)
	}
	return nil
}

// CreateBusiness stores a new business object, generating its code when
// none was given. Creating an object as Deprecated stamps its end date.
func CreateBusiness(tx *store.Tx, o models.BusinessObject) (models.BusinessObject, error) {
	o.ID = 0
	if err := normalizeBusiness(&o); err != nil {
		return o, err
	}
	if err := checkSlug(tx, o); err != nil {
		return o, err
	}
	now := tx.Now()
	o.CreatedAt, o.UpdatedAt = now, now
	o.EndDate = nil
	if o.Status == models.StatusDeprecated {
		o.EndDate = dateOf(now)
	}
	o, err := tx.PutObject(o)
	if err != nil {
		return o, err
	}
	if o.Slug == "" {
		o.Slug = fmt.Sprintf("%s-%d", o.Type.SlugPrefix(), o.ID)
		if o, err = tx.PutObject(o); err != nil {
			return o, err
		}
	}
	if _, err := tx.Record(models.ActionCreated, o.Ref(), snapshot.LogJSON(tx, o).ToMap()); err != nil {
		return o, err
	}
	tx.Emit(audit.Event{
		Action:     string(audit.EventObjectCreated),
		ObjectType: string(o.Type),
		ObjectID:   o.ID,
		Subject:    o.Slug,
	})
	return o, nil
}

// UpdateBusiness stores the edited object. The end date is owned by the
// status: it is stamped when the object becomes Deprecated and never taken
// from next. Nothing is written when next equals the stored object and
// extra (changes outside the row, such as its people) is false. A real
// change resets a Reviewed object to Unreviewed.
func UpdateBusiness(tx *store.Tx, next models.BusinessObject, extra bool) (models.BusinessObject, bool, error) {
	cur, ok := tx.Objects().Get(next.ID)
	if !ok || cur.Type != next.Type {
		return cur, false, dErrors.Newf(dErrors.CodeNotFound, "%s %d not found", next.Type, next.ID)
	}
	if err := normalizeBusiness(&next); err != nil {
		return cur, false, err
	}
	if next.Slug == "" {
		next.Slug = cur.Slug
	}
	if err := checkSlug(tx, next); err != nil {
		return cur, false, err
	}
	next.CreatedAt = cur.CreatedAt
	next.EndDate = cur.EndDate
	if next.Status == models.StatusDeprecated && cur.Status != models.StatusDeprecated {
		next.EndDate = dateOf(tx.Now())
	}
	next.UpdatedAt = cur.UpdatedAt
	if !extra && sameBusiness(cur, next) {
		return cur, false, nil
	}

	next.UpdatedAt = tx.Now()
	saved, err := tx.PutObject(next)
	if err != nil {
		return cur, false, err
	}
	if _, err := tx.Record(models.ActionModified, saved.Ref(), snapshot.LogJSON(tx, saved).ToMap()); err != nil {
		return cur, false, err
	}
	if err := review.ResetOnChange(tx, saved.Ref()); err != nil {
		return cur, false, err
	}
	tx.Emit(audit.Event{
		Action:     string(audit.EventObjectUpdated),
		ObjectType: string(saved.Type),
		ObjectID:   saved.ID,
		Subject:    saved.Slug,
	})
	return saved, true, nil
}

// DeleteBusiness removes the object with its review, people and links.
// Snapshots taken earlier keep their frozen content.
func DeleteBusiness(tx *store.Tx, ref domain.ObjectRef) error {
	o, ok := tx.Objects().Get(ref.ID)
	if !ok || o.Type != ref.Type {
		return dErrors.Newf(dErrors.CodeNotFound, "%s %d not found", ref.Type, ref.ID)
	}
	if err := review.Remove(tx, ref); err != nil {
		return err
	}
	if err := acl.RemoveObject(tx, ref); err != nil {
		return err
	}
	if err := tx.Unrelate(ref); err != nil {
		return err
	}
	if err := tx.DeleteObject(o.ID); err != nil {
		return err
	}
	if _, err := tx.Record(models.ActionDeleted, ref, map[string]any{
		"id":    o.ID,
		"type":  string(o.Type),
		"slug":  o.Slug,
		"title": o.Title,
	}); err != nil {
		return err
	}
	tx.Emit(audit.Event{
		Action:     string(audit.EventObjectDeleted),
		ObjectType: string(o.Type),
		ObjectID:   o.ID,
		Subject:    o.Slug,
	})
	return nil
}

func sameBusiness(a, b models.BusinessObject) bool {
	return a.Slug == b.Slug &&
		a.Title == b.Title &&
		a.Description == b.Description &&
		a.Notes == b.Notes &&
		a.TestPlan == b.TestPlan &&
		a.Status == b.Status &&
		a.ReferenceURL == b.ReferenceURL &&
		sameDate(a.StartDate, b.StartDate) &&
		sameDate(a.EndDate, b.EndDate) &&
		a.PrincipalAssessor == b.PrincipalAssessor &&
		a.SecondaryAssessor == b.SecondaryAssessor &&
		a.Contact == b.Contact &&
		a.SecondaryContact == b.SecondaryContact
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func dateOf(t time.Time) *time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}
