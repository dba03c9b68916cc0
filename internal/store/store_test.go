package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"grc/internal/models"
	"grc/pkg/domain"
	audit "grc/pkg/platform/audit"
	auditmemory "grc/pkg/platform/audit/store/memory"
	"grc/pkg/platform/sentinel"
	"grc/pkg/requestcontext"
)

type StoreSuite struct {
	suite.Suite
	ctx    context.Context
	audits *auditmemory.InMemoryStore
	store  *Store
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	s.ctx = requestcontext.WithPersonID(context.Background(), 99)
	s.audits = auditmemory.NewInMemoryStore()
	st, err := New(s.ctx, WithPersister(NewMemoryPersister(s.audits)))
	s.Require().NoError(err)
	s.store = st
}

func (s *StoreSuite) TestCommitAssignsSequentialIDs() {
	var first, second models.BusinessObject
	err := s.store.SingleCommit(s.ctx, func(tx *Tx) error {
		var err error
		first, err = tx.PutObject(models.BusinessObject{Type: domain.TypeControl, Title: "a"})
		if err != nil {
			return err
		}
		second, err = tx.PutObject(models.BusinessObject{Type: domain.TypeControl, Title: "b"})
		return err
	})
	s.Require().NoError(err)
	s.Equal(first.ID+1, second.ID)

	_ = s.store.View(s.ctx, func(tx *Tx) error {
		s.Len(tx.Objects().Sorted(), 2)
		return nil
	})
}

func (s *StoreSuite) TestRollbackDiscardsWorkAndEvents() {
	boom := errors.New("boom")
	err := s.store.SingleCommit(s.ctx, func(tx *Tx) error {
		if _, err := tx.PutAudit(models.Audit{Title: "lost"}); err != nil {
			return err
		}
		tx.Emit(audit.Event{Action: string(audit.EventObjectCreated)})
		return boom
	})
	s.ErrorIs(err, boom)

	_ = s.store.View(s.ctx, func(tx *Tx) error {
		s.Empty(tx.Audits())
		return nil
	})
	events, _ := s.audits.ListRecent(s.ctx, 0)
	s.Empty(events)
}

func (s *StoreSuite) TestEventsPersistedWithCommit() {
	err := s.store.SingleCommit(s.ctx, func(tx *Tx) error {
		tx.Emit(audit.Event{Action: string(audit.EventObjectCreated), ObjectType: "Control", ObjectID: 1})
		return nil
	})
	s.Require().NoError(err)

	events, _ := s.audits.ListRecent(s.ctx, 0)
	s.Require().Len(events, 1)
	s.Equal(int64(99), events[0].ActorID)
}

func (s *StoreSuite) TestViewIsReadOnly() {
	err := s.store.View(s.ctx, func(tx *Tx) error {
		_, err := tx.PutPerson(models.Person{Email: "x@example.com"})
		return err
	})
	s.ErrorIs(err, sentinel.ErrReadOnly)
}

func (s *StoreSuite) TestRevisionsAndRelationships() {
	ctrl := domain.Ref(domain.TypeControl, 0)
	err := s.store.SingleCommit(s.ctx, func(tx *Tx) error {
		c, err := tx.PutObject(models.BusinessObject{Type: domain.TypeControl, Title: "c"})
		if err != nil {
			return err
		}
		ctrl = c.Ref()
		a, err := tx.PutAudit(models.Audit{Title: "a"})
		if err != nil {
			return err
		}
		if _, err := tx.Relate(ctrl, a.Ref()); err != nil {
			return err
		}
		if _, err := tx.Relate(a.Ref(), ctrl); err != nil {
			return err
		}
		rev, err := tx.Record(models.ActionCreated, ctrl, map[string]any{"title": "c"})
		s.Equal(int64(99), rev.ModifiedBy)
		return err
	})
	s.Require().NoError(err)

	_ = s.store.View(s.ctx, func(tx *Tx) error {
		s.Len(tx.Relationships(), 1)
		s.Len(tx.Related(ctrl, domain.TypeAudit), 1)
		s.Empty(tx.Related(ctrl, domain.TypeSnapshot))
		s.Len(tx.Revisions(), 1)
		return nil
	})

	err = s.store.SingleCommit(s.ctx, func(tx *Tx) error { return tx.Unrelate(ctrl) })
	s.Require().NoError(err)
	_ = s.store.View(s.ctx, func(tx *Tx) error {
		s.Empty(tx.Relationships())
		return nil
	})
}

func (s *StoreSuite) TestCommittedStateIsIsolatedFromWorkingCopy() {
	var id int64
	s.Require().NoError(s.store.SingleCommit(s.ctx, func(tx *Tx) error {
		a, err := tx.PutAssessment(models.Assessment{Title: "x", EvidencesURL: []string{"a"}})
		id = a.ID
		return err
	}))

	_ = s.store.SingleCommit(s.ctx, func(tx *Tx) error {
		a, _ := tx.Assessments().Get(id)
		a.EvidencesURL[0] = "mutated"
		return errors.New("abort")
	})

	_ = s.store.View(s.ctx, func(tx *Tx) error {
		a, _ := tx.Assessments().Get(id)
		s.Equal([]string{"a"}, a.EvidencesURL)
		return nil
	})
}

func (s *StoreSuite) TestDeleteMissingIsNotFound() {
	err := s.store.SingleCommit(s.ctx, func(tx *Tx) error { return tx.DeleteObject(12345) })
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *StoreSuite) TestSavepointUndoesOnlyTheFailedStep() {
	boom := errors.New("boom")
	var kept models.Audit
	err := s.store.SingleCommit(s.ctx, func(tx *Tx) error {
		var err error
		kept, err = tx.PutAudit(models.Audit{Title: "kept"})
		if err != nil {
			return err
		}
		tx.Emit(audit.Event{Action: "kept"})
		spErr := tx.Savepoint(func() error {
			if _, err := tx.PutObject(models.BusinessObject{Type: domain.TypeControl, Title: "lost"}); err != nil {
				return err
			}
			tx.Emit(audit.Event{Action: "lost"})
			return boom
		})
		s.ErrorIs(spErr, boom)
		s.Empty(tx.Objects().Sorted())
		s.Len(tx.Events(), 1)
		return nil
	})
	s.Require().NoError(err)

	_ = s.store.View(s.ctx, func(tx *Tx) error {
		_, ok := tx.Audits().Get(kept.ID)
		s.True(ok)
		s.Empty(tx.Objects().Sorted())
		return nil
	})
}
