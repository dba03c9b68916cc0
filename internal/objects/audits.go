package objects

import (
	"fmt"
	"strings"

	"grc/internal/acl"
	"grc/internal/models"
	"grc/internal/snapshot"
	"grc/internal/store"
	"grc/pkg/domain"
	dErrors "grc/pkg/domain-errors"
	audit "grc/pkg/platform/audit"
)

// FindAuditBySlug returns the audit whose code matches slug.
func FindAuditBySlug(tx *store.Tx, slug string) (models.Audit, bool) {
	return tx.AuditBySlug(slug)
}

// AuditLogJSON is the revision content of an audit.
func AuditLogJSON(tx *store.Tx, a models.Audit) map[string]any {
	entries := []any{}
	for _, e := range acl.Entries(tx, a.Ref()) {
		entries = append(entries, map[string]any{
			"ac_role_id": e.RoleID,
			"person":     map[string]any{"id": e.PersonID},
		})
	}
	return map[string]any{
		"id":                  a.ID,
		"slug":                a.Slug,
		"title":               a.Title,
		"description":         a.Description,
		"status":              a.Status,
		"access_control_list": entries,
	}
}

func normalizeAudit(tx *store.Tx, a *models.Audit) error {
	a.Title = strings.TrimSpace(a.Title)
	a.Slug = strings.TrimSpace(a.Slug)
	if a.Title == "" {
		return dErrors.New(dErrors.CodeValidation, "title is required")
	}
	if a.Status == "" {
		a.Status = models.DefaultAuditStatus
	}
	status, ok := CanonicalStatus(a.Status, models.AuditStatuses)
	if !ok {
		return dErrors.Newf(dErrors.CodeValidation, "invalid audit status %q", a.Status)
	}
	a.Status = status
	if existing, ok := FindAuditBySlug(tx, a.Slug); ok && existing.ID != a.ID {
		return dErrors.Newf(dErrors.CodeConflict, "code %q is already used by audit %d", a.Slug, existing.ID)
	}
	return nil
}

// CreateAudit stores a new audit.
func CreateAudit(tx *store.Tx, a models.Audit) (models.Audit, error) {
	a.ID = 0
	if err := normalizeAudit(tx, &a); err != nil {
		return a, err
	}
	now := tx.Now()
	a.CreatedAt, a.UpdatedAt = now, now
	a, err := tx.PutAudit(a)
	if err != nil {
		return a, err
	}
	if a.Slug == "" {
		a.Slug = fmt.Sprintf("%s-%d", domain.TypeAudit.SlugPrefix(), a.ID)
		if a, err = tx.PutAudit(a); err != nil {
			return a, err
		}
	}
	if _, err := tx.Record(models.ActionCreated, a.Ref(), AuditLogJSON(tx, a)); err != nil {
		return a, err
	}
	tx.Emit(audit.Event{
		Action:     string(audit.EventObjectCreated),
		ObjectType: string(domain.TypeAudit),
		ObjectID:   a.ID,
		Subject:    a.Slug,
	})
	return a, nil
}

// UpdateAudit stores an edited audit; see UpdateBusiness for extra.
func UpdateAudit(tx *store.Tx, next models.Audit, extra bool) (models.Audit, bool, error) {
	cur, ok := tx.Audits().Get(next.ID)
	if !ok {
		return cur, false, dErrors.Newf(dErrors.CodeNotFound, "audit %d not found", next.ID)
	}
	if next.Slug == "" {
		next.Slug = cur.Slug
	}
	if err := normalizeAudit(tx, &next); err != nil {
		return cur, false, err
	}
	next.CreatedAt, next.UpdatedAt = cur.CreatedAt, cur.UpdatedAt
	if !extra && next == cur {
		return cur, false, nil
	}
	next.UpdatedAt = tx.Now()
	saved, err := tx.PutAudit(next)
	if err != nil {
		return cur, false, err
	}
	if _, err := tx.Record(models.ActionModified, saved.Ref(), AuditLogJSON(tx, saved)); err != nil {
		return cur, false, err
	}
	tx.Emit(audit.Event{
		Action:     string(audit.EventObjectUpdated),
		ObjectType: string(domain.TypeAudit),
		ObjectID:   saved.ID,
		Subject:    saved.Slug,
	})
	return saved, true, nil
}

// MapObjects snapshots each object into the audit, returning the snapshots
// in input order. Objects already in scope keep their first snapshot.
func MapObjects(tx *store.Tx, a models.Audit, refs ...domain.ObjectRef) ([]models.Snapshot, error) {
	out := make([]models.Snapshot, 0, len(refs))
	for _, ref := range refs {
		if !domain.IsSnapshottable(ref.Type) {
			return nil, dErrors.Newf(dErrors.CodeValidation, "%s cannot be mapped to an audit", ref.Type)
		}
		if o, ok := tx.Objects().Get(ref.ID); !ok || o.Type != ref.Type {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "%s %d not found", ref.Type, ref.ID)
		}
		snap, err := snapshot.Create(tx, a.Ref(), ref)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}
