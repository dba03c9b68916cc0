// Package review implements the review workflow of reviewable objects.
package review

import (
	"fmt"
	"slices"

	"grc/internal/acl"
	"grc/internal/models"
	"grc/internal/store"
	"grc/pkg/domain"
	audit "grc/pkg/platform/audit"
	"grc/pkg/platform/sentinel"
)

// ReviewersRole is the Review role whose holders are the reviewers.
const ReviewersRole = "Reviewers"

// For returns the review attached to ref.
func For(tx *store.Tx, ref domain.ObjectRef) (models.Review, bool) {
	return tx.ReviewOf(ref)
}

// StatusOf returns the review status of ref, Unreviewed when no review exists.
func StatusOf(tx *store.Tx, ref domain.ObjectRef) string {
	if r, ok := For(tx, ref); ok && r.Status != "" {
		return r.Status
	}
	return models.ReviewUnreviewed
}

// Reviewers returns the reviewer ids of ref, ascending. Every role held on
// the review counts as a reviewer role.
func Reviewers(tx *store.Tx, ref domain.ObjectRef) []int64 {
	r, ok := For(tx, ref)
	if !ok {
		return nil
	}
	var ids []int64
	for _, e := range acl.Entries(tx, r.Ref()) {
		ids = append(ids, e.PersonID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

// Ensure returns the review of ref, creating an Unreviewed one when missing.
func Ensure(tx *store.Tx, ref domain.ObjectRef) (models.Review, error) {
	if !domain.IsReviewable(ref.Type) {
		return models.Review{}, fmt.Errorf("%s is not reviewable: %w", ref.Type, sentinel.ErrInvalidState)
	}
	if r, ok := For(tx, ref); ok {
		return r, nil
	}
	return tx.PutReview(models.Review{Reviewable: ref, Status: models.ReviewUnreviewed})
}

// MarkReviewed records the current actor as the reviewer.
func MarkReviewed(tx *store.Tx, reviewID int64) (models.Review, error) {
	r, ok := tx.Reviews().Get(reviewID)
	if !ok {
		return r, fmt.Errorf("review %d: %w", reviewID, sentinel.ErrNotFound)
	}
	now := tx.Now()
	r.Status = models.ReviewReviewed
	r.LastReviewedBy = tx.Actor()
	r.LastReviewedAt = &now
	r, err := tx.PutReview(r)
	if err != nil {
		return r, err
	}
	tx.Emit(audit.Event{
		Action:     string(audit.EventReviewMarked),
		ObjectType: string(r.Reviewable.Type),
		ObjectID:   r.Reviewable.ID,
	})
	return r, nil
}

// ResetOnChange moves a Reviewed object back to Unreviewed after one of its
// attributes changed. Last reviewer details are kept.
func ResetOnChange(tx *store.Tx, ref domain.ObjectRef) error {
	r, ok := For(tx, ref)
	if !ok || r.Status != models.ReviewReviewed {
		return nil
	}
	r.Status = models.ReviewUnreviewed
	if _, err := tx.PutReview(r); err != nil {
		return err
	}
	tx.Emit(audit.Event{
		Action:     string(audit.EventReviewReset),
		ObjectType: string(ref.Type),
		ObjectID:   ref.ID,
	})
	return nil
}

// Remove deletes the review of ref along with its reviewer list.
func Remove(tx *store.Tx, ref domain.ObjectRef) error {
	r, ok := For(tx, ref)
	if !ok {
		return nil
	}
	if err := acl.RemoveObject(tx, r.Ref()); err != nil {
		return err
	}
	return tx.DeleteReview(r.ID)
}
