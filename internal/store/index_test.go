package store

import (
	"errors"
	"fmt"
	"time"

	"grc/internal/models"
	"grc/pkg/domain"
)

func (s *StoreSuite) TestLookupsFollowSavepointRollback() {
	boom := errors.New("boom")
	err := s.store.SingleCommit(s.ctx, func(tx *Tx) error {
		ctrl, err := tx.PutObject(models.BusinessObject{Type: domain.TypeControl, Slug: "CTRL-1"})
		s.Require().NoError(err)
		_, found := tx.ObjectBySlug(domain.TypeControl, "ctrl-1")
		s.Require().True(found)
		lostID := tx.state.NextID + 1

		spErr := tx.Savepoint(func() error {
			renamed := ctrl
			renamed.Slug = "CTRL-2"
			if _, err := tx.PutObject(renamed); err != nil {
				return err
			}
			l, err := tx.PutACL(models.AccessControlList{RoleID: 1, Object: ctrl.Ref()})
			if err != nil {
				return err
			}
			if _, err := tx.PutACLPerson(models.AccessControlPerson{ACLID: l.ID, PersonID: 7}); err != nil {
				return err
			}
			if _, err := tx.Relate(ctrl.Ref(), domain.Ref(domain.TypeAudit, 99)); err != nil {
				return err
			}
			if _, err := tx.Record(models.ActionModified, ctrl.Ref(), nil); err != nil {
				return err
			}
			s.Len(tx.ACLsOn(ctrl.Ref()), 1)
			s.Len(tx.ACLPeopleIn(l.ID), 1)
			_, found := tx.ObjectBySlug(domain.TypeControl, "CTRL-2")
			s.True(found)
			return boom
		})
		s.ErrorIs(spErr, boom)

		_, found = tx.ObjectBySlug(domain.TypeControl, "CTRL-1")
		s.True(found)
		_, found = tx.ObjectBySlug(domain.TypeControl, "CTRL-2")
		s.False(found)
		s.Empty(tx.ACLsOn(ctrl.Ref()))
		s.Empty(tx.ACLPeople())
		s.Empty(tx.Related(ctrl.Ref(), ""))
		s.Empty(tx.RevisionsOf(ctrl.Ref()))

		next, err := tx.PutAudit(models.Audit{Title: "after"})
		s.Require().NoError(err)
		s.Equal(lostID, next.ID)
		return nil
	})
	s.Require().NoError(err)
}

func (s *StoreSuite) TestNestedSavepoints() {
	boom := errors.New("boom")

	s.Run("inner failure keeps the outer writes", func() {
		s.Require().NoError(s.store.SingleCommit(s.ctx, func(tx *Tx) error {
			return tx.Savepoint(func() error {
				if _, err := tx.PutObject(models.BusinessObject{Type: domain.TypeObjective, Slug: "OUTER"}); err != nil {
					return err
				}
				s.ErrorIs(tx.Savepoint(func() error {
					if _, err := tx.PutObject(models.BusinessObject{Type: domain.TypeObjective, Slug: "INNER"}); err != nil {
						return err
					}
					return boom
				}), boom)
				return nil
			})
		}))
		s.Require().NoError(s.store.View(s.ctx, func(tx *Tx) error {
			_, found := tx.ObjectBySlug(domain.TypeObjective, "OUTER")
			s.True(found)
			_, found = tx.ObjectBySlug(domain.TypeObjective, "INNER")
			s.False(found)
			return nil
		}))
	})

	s.Run("outer failure undoes a committed inner savepoint", func() {
		s.Require().NoError(s.store.SingleCommit(s.ctx, func(tx *Tx) error {
			err := tx.Savepoint(func() error {
				s.Require().NoError(tx.Savepoint(func() error {
					_, err := tx.PutObject(models.BusinessObject{Type: domain.TypeMarket, Slug: "INNER-OK"})
					return err
				}))
				return boom
			})
			s.ErrorIs(err, boom)
			_, found := tx.ObjectBySlug(domain.TypeMarket, "INNER-OK")
			s.False(found)
			return nil
		}))
	})
}

func (s *StoreSuite) TestSavepointCostIsBoundedByItsWrites() {
	s.Require().NoError(s.store.SingleCommit(s.ctx, func(tx *Tx) error {
		for i := range 200 {
			if _, err := tx.PutObject(models.BusinessObject{Type: domain.TypeControl, Slug: fmt.Sprintf("C-%d", i)}); err != nil {
				return err
			}
		}
		return nil
	}))

	s.Require().NoError(s.store.SingleCommit(s.ctx, func(tx *Tx) error {
		err := tx.Savepoint(func() error {
			_, err := tx.PutObject(models.BusinessObject{Type: domain.TypeControl, Slug: "ONE-MORE"})
			s.Len(tx.undo, 1)
			return err
		})
		s.Nil(tx.undo)
		return err
	}))
}

func (s *StoreSuite) TestLookupsAgreeWithScans() {
	s.Require().NoError(s.store.SingleCommit(s.ctx, func(tx *Tx) error {
		var objs []models.BusinessObject
		for i := range 20 {
			o, err := tx.PutObject(models.BusinessObject{Type: domain.TypeControl, Slug: fmt.Sprintf("Ctl-%d", i)})
			s.Require().NoError(err)
			objs = append(objs, o)
			// build the index before the writes below
			tx.ACLsOn(o.Ref())
		}
		for i, o := range objs {
			l, err := tx.PutACL(models.AccessControlList{RoleID: int64(i%3 + 1), Object: o.Ref()})
			s.Require().NoError(err)
			_, err = tx.PutACL(models.AccessControlList{RoleID: 9, Object: objs[(i+1)%len(objs)].Ref(), BaseID: l.ID})
			s.Require().NoError(err)
			_, err = tx.PutACLPerson(models.AccessControlPerson{ACLID: l.ID, PersonID: int64(i)})
			s.Require().NoError(err)
		}
		for i, o := range objs {
			if i%4 == 0 {
				s.Require().NoError(tx.DeleteObject(o.ID))
			}
		}

		for _, o := range objs {
			want := tx.ACLs().Filter(func(l models.AccessControlList) bool { return l.Object == o.Ref() })
			s.Equal(want, tx.ACLsOn(o.Ref()))
			got, found := tx.ObjectBySlug(domain.TypeControl, o.Slug)
			scanned, scannedFound := tx.Objects().Find(func(c models.BusinessObject) bool { return c.Slug == o.Slug })
			s.Equal(scannedFound, found)
			s.Equal(scanned, got)
		}
		for _, l := range tx.ACLs().Sorted() {
			want := tx.ACLPeople().Filter(func(p models.AccessControlPerson) bool { return p.ACLID == l.ID })
			s.Equal(want, tx.ACLPeopleIn(l.ID))
			derived := tx.ACLs().Filter(func(d models.AccessControlList) bool { return d.BaseID == l.ID })
			s.Equal(derived, tx.ACLsBasedOn(l.ID))
		}
		return nil
	}))
}

func (s *StoreSuite) TestDryRunDiscardsWork() {
	var seen bool
	err := s.store.DryRun(s.ctx, func(tx *Tx) error {
		_, err := tx.PutObject(models.BusinessObject{Type: domain.TypeControl, Slug: "DRY"})
		_, seen = tx.ObjectBySlug(domain.TypeControl, "DRY")
		return err
	})
	s.Require().NoError(err)
	s.True(seen)

	s.Require().NoError(s.store.View(s.ctx, func(tx *Tx) error {
		_, found := tx.ObjectBySlug(domain.TypeControl, "DRY")
		s.False(found)
		return nil
	}))
	events, _ := s.audits.ListRecent(s.ctx, 0)
	s.Empty(events)
}

func (s *StoreSuite) TestViewDoesNotWaitForRunningCommit() {
	viewed := make(chan int, 1)
	err := s.store.SingleCommit(s.ctx, func(tx *Tx) error {
		if _, err := tx.PutObject(models.BusinessObject{Type: domain.TypeControl, Slug: "PENDING"}); err != nil {
			return err
		}
		go func() {
			_ = s.store.View(s.ctx, func(v *Tx) error {
				viewed <- len(v.Objects())
				return nil
			})
		}()
		select {
		case n := <-viewed:
			s.Equal(0, n)
		case <-time.After(5 * time.Second):
			s.Fail("view blocked behind the commit")
		}
		return nil
	})
	s.Require().NoError(err)
}
