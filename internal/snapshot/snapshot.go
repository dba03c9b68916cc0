// Package snapshot freezes business objects into audits.
package snapshot

import (
	"fmt"

	"grc/internal/models"
	"grc/internal/store"
	"grc/pkg/domain"
	"grc/pkg/platform/sentinel"
)

// Create records the current content of child and snapshots it into the
// audit. Snapshotting the same child twice returns the existing snapshot.
func Create(tx *store.Tx, auditRef domain.ObjectRef, child domain.ObjectRef) (models.Snapshot, error) {
	if !domain.IsSnapshottable(child.Type) {
		return models.Snapshot{}, fmt.Errorf("%s cannot be snapshotted: %w", child.Type, sentinel.ErrInvalidState)
	}
	if existing, ok := Find(tx, auditRef, child); ok {
		return existing, nil
	}
	o, ok := tx.Objects().Get(child.ID)
	if !ok || o.Type != child.Type {
		return models.Snapshot{}, fmt.Errorf("%s: %w", child, sentinel.ErrNotFound)
	}

	action := models.ActionCreated
	if len(tx.RevisionsOf(child)) > 0 {
		action = models.ActionModified
	}
	rev, err := tx.Record(action, child, LogJSON(tx, o).ToMap())
	if err != nil {
		return models.Snapshot{}, err
	}
	return tx.PutSnapshot(models.Snapshot{
		Parent:     auditRef,
		Child:      child,
		RevisionID: rev.ID,
		CreatedAt:  tx.Now(),
	})
}

// Find returns the snapshot of child in the audit.
func Find(tx *store.Tx, auditRef, child domain.ObjectRef) (models.Snapshot, bool) {
	for _, s := range tx.SnapshotsIn(auditRef) {
		if s.Child == child {
			return s, true
		}
	}
	return models.Snapshot{}, false
}

// ForAudit returns the audit's snapshots ordered by id.
func ForAudit(tx *store.Tx, auditRef domain.ObjectRef) []models.Snapshot {
	return tx.SnapshotsIn(auditRef)
}

// ContentOf returns the frozen content of a snapshot.
func ContentOf(tx *store.Tx, s models.Snapshot) (Content, error) {
	rev, ok := tx.Revisions().Get(s.RevisionID)
	if !ok {
		return nil, fmt.Errorf("revision %d of snapshot %d: %w", s.RevisionID, s.ID, sentinel.ErrNotFound)
	}
	return Content(rev.Content), nil
}
