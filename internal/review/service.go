package review

import (
	"context"
	"errors"
	"log/slog"

	"grc/internal/acl"
	"grc/internal/models"
	"grc/internal/store"
	"grc/pkg/domain"
	dErrors "grc/pkg/domain-errors"
	"grc/pkg/platform/sentinel"
)

// Service exposes the review workflow over HTTP.
type Service struct {
	store  *store.Store
	logger *slog.Logger
}

func NewService(st *store.Store, logger *slog.Logger) *Service {
	return &Service{store: st, logger: logger}
}

// View is a review with its reviewers.
type View struct {
	Review    models.Review
	Reviewers []int64
}

// CreateRequest attaches a review (and reviewers) to a reviewable.
type CreateRequest struct {
	Reviewable domain.ObjectRef `json:"reviewable"`
	Reviewers  []int64          `json:"reviewers"`
}

func (r *CreateRequest) Normalize() {}

func (r *CreateRequest) Validate() error {
	if r.Reviewable.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "reviewable is required")
	}
	if !domain.IsReviewable(r.Reviewable.Type) {
		return dErrors.Newf(dErrors.CodeValidation, "%s is not reviewable", r.Reviewable.Type)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (View, error) {
	var out View
	err := s.store.SingleCommit(ctx, func(tx *store.Tx) error {
		if o, ok := tx.Objects().Get(req.Reviewable.ID); !ok || o.Type != req.Reviewable.Type {
			return dErrors.Newf(dErrors.CodeNotFound, "%s %d not found", req.Reviewable.Type, req.Reviewable.ID)
		}
		r, err := Ensure(tx, req.Reviewable)
		if err != nil {
			return err
		}
		if len(req.Reviewers) > 0 {
			if err := acl.SetPeople(tx, r.Ref(), ReviewersRole, req.Reviewers); err != nil {
				return err
			}
		}
		out = View{Review: r, Reviewers: Reviewers(tx, r.Reviewable)}
		return nil
	})
	return out, translate(err, "failed to create review")
}

func (s *Service) Get(ctx context.Context, id int64) (View, error) {
	var out View
	err := s.store.View(ctx, func(tx *store.Tx) error {
		r, ok := tx.Reviews().Get(id)
		if !ok {
			return dErrors.Newf(dErrors.CodeNotFound, "review %d not found", id)
		}
		out = View{Review: r, Reviewers: Reviewers(tx, r.Reviewable)}
		return nil
	})
	return out, translate(err, "failed to load review")
}

func (s *Service) MarkReviewed(ctx context.Context, id int64) (View, error) {
	var out View
	err := s.store.SingleCommit(ctx, func(tx *store.Tx) error {
		r, err := MarkReviewed(tx, id)
		if err != nil {
			return err
		}
		out = View{Review: r, Reviewers: Reviewers(tx, r.Reviewable)}
		return nil
	})
	if err == nil {
		s.logger.InfoContext(ctx, "review marked reviewed",
			"review_id", id,
			"reviewable", out.Review.Reviewable.String(),
		)
	}
	return out, translate(err, "failed to mark review")
}

func translate(err error, msg string) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "referenced object not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, "object is not reviewable")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
