// Package acl manages access control roles, the per-object role lists and
// the people holding them.
package acl

import (
	"cmp"
	"fmt"
	"slices"

	"grc/internal/models"
	"grc/internal/store"
	"grc/pkg/domain"
	"grc/pkg/platform/sentinel"
)

// Entry is one (role, person) grant on an object.
type Entry struct {
	RoleID   int64
	RoleName string
	PersonID int64
}

// Role finds a role by object type and name.
func Role(tx *store.Tx, t domain.ObjectType, name string) (models.AccessControlRole, bool) {
	return tx.Roles().Find(func(r models.AccessControlRole) bool {
		return r.ObjectType == t && r.Name == name
	})
}

// MustRole is Role returning a not-found error.
func MustRole(tx *store.Tx, t domain.ObjectType, name string) (models.AccessControlRole, error) {
	r, ok := Role(tx, t, name)
	if !ok {
		return r, fmt.Errorf("access control role %s/%q: %w", t, name, sentinel.ErrNotFound)
	}
	return r, nil
}

// RolesFor returns every role of a type ordered by id.
func RolesFor(tx *store.Tx, t domain.ObjectType) []models.AccessControlRole {
	return tx.Roles().Filter(func(r models.AccessControlRole) bool { return r.ObjectType == t })
}

// CustomRolesFor maps role id to name for the non-internal roles of a type.
func CustomRolesFor(tx *store.Tx, t domain.ObjectType) map[int64]string {
	out := map[int64]string{}
	for _, r := range RolesFor(tx, t) {
		if !r.Internal {
			out[r.ID] = r.Name
		}
	}
	return out
}

// List returns the role list for (role, object).
func List(tx *store.Tx, roleID int64, ref domain.ObjectRef) (models.AccessControlList, bool) {
	for _, l := range tx.ACLsOn(ref) {
		if l.RoleID == roleID {
			return l, true
		}
	}
	return models.AccessControlList{}, false
}

// EnsureList returns the list for (role, object), creating it when missing.
func EnsureList(tx *store.Tx, roleID int64, ref domain.ObjectRef) (models.AccessControlList, error) {
	if l, ok := List(tx, roleID, ref); ok {
		return l, nil
	}
	return tx.PutACL(models.AccessControlList{RoleID: roleID, Object: ref})
}

func peopleOf(tx *store.Tx, aclID int64) []int64 {
	var ids []int64
	for _, p := range tx.ACLPeopleIn(aclID) {
		ids = append(ids, p.PersonID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

func addToList(tx *store.Tx, aclID, personID int64) error {
	if slices.Contains(peopleOf(tx, aclID), personID) {
		return nil
	}
	_, err := tx.PutACLPerson(models.AccessControlPerson{ACLID: aclID, PersonID: personID})
	return err
}

// AddPerson grants the named role on ref to a person.
func AddPerson(tx *store.Tx, ref domain.ObjectRef, roleName string, personID int64) error {
	role, err := MustRole(tx, ref.Type, roleName)
	if err != nil {
		return err
	}
	if _, ok := tx.People().Get(personID); !ok {
		return fmt.Errorf("person %d: %w", personID, sentinel.ErrNotFound)
	}
	l, err := EnsureList(tx, role.ID, ref)
	if err != nil {
		return err
	}
	return addToList(tx, l.ID, personID)
}

// SetPeople replaces the holders of the named role on ref.
func SetPeople(tx *store.Tx, ref domain.ObjectRef, roleName string, personIDs []int64) error {
	role, err := MustRole(tx, ref.Type, roleName)
	if err != nil {
		return err
	}
	l, err := EnsureList(tx, role.ID, ref)
	if err != nil {
		return err
	}
	for _, p := range tx.ACLPeopleIn(l.ID) {
		if err := tx.DeleteACLPerson(p.ID); err != nil {
			return err
		}
	}
	for _, id := range personIDs {
		if _, ok := tx.People().Get(id); !ok {
			return fmt.Errorf("person %d: %w", id, sentinel.ErrNotFound)
		}
		if err := addToList(tx, l.ID, id); err != nil {
			return err
		}
	}
	return nil
}

// PeopleWithRole returns the ids holding the named role on ref, ascending.
func PeopleWithRole(tx *store.Tx, ref domain.ObjectRef, roleName string) []int64 {
	role, ok := Role(tx, ref.Type, roleName)
	if !ok {
		return nil
	}
	l, ok := List(tx, role.ID, ref)
	if !ok {
		return nil
	}
	return peopleOf(tx, l.ID)
}

// Entries returns every grant on ref ordered by role id, then person id.
func Entries(tx *store.Tx, ref domain.ObjectRef) []Entry {
	var out []Entry
	for _, l := range tx.ACLsOn(ref) {
		role, _ := tx.Roles().Get(l.RoleID)
		for _, pid := range peopleOf(tx, l.ID) {
			out = append(out, Entry{RoleID: l.RoleID, RoleName: role.Name, PersonID: pid})
		}
	}
	slices.SortStableFunc(out, func(a, b Entry) int {
		if a.RoleID != b.RoleID {
			return cmp.Compare(a.RoleID, b.RoleID)
		}
		return cmp.Compare(a.PersonID, b.PersonID)
	})
	return out
}

// Propagate copies the propagated roles held on src onto every target as
// "<role> Mapped" entries whose base is the source list.
func Propagate(tx *store.Tx, p Propagation, src domain.ObjectRef, targets ...domain.ObjectRef) error {
	if src.Type != p.Source {
		return nil
	}
	for _, name := range p.Roles {
		srcRole, ok := Role(tx, src.Type, name)
		if !ok {
			continue
		}
		srcList, ok := List(tx, srcRole.ID, src)
		if !ok {
			continue
		}
		people := peopleOf(tx, srcList.ID)
		for _, target := range targets {
			if !slices.Contains(p.Targets, target.Type) {
				continue
			}
			mapped, err := MustRole(tx, target.Type, name+MappedSuffix)
			if err != nil {
				return err
			}
			l, ok := mappedList(tx, mapped.ID, target, srcList.ID)
			if !ok {
				var err error
				l, err = tx.PutACL(models.AccessControlList{RoleID: mapped.ID, Object: target, BaseID: srcList.ID})
				if err != nil {
					return err
				}
			}
			for _, pid := range people {
				if err := addToList(tx, l.ID, pid); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func mappedList(tx *store.Tx, roleID int64, target domain.ObjectRef, baseID int64) (models.AccessControlList, bool) {
	for _, l := range tx.ACLsBasedOn(baseID) {
		if l.RoleID == roleID && l.Object == target {
			return l, true
		}
	}
	return models.AccessControlList{}, false
}

// PropagatedPeople returns who holds "<role> Mapped" on target through any
// source list, ascending.
func PropagatedPeople(tx *store.Tx, target domain.ObjectRef, roleName string) []int64 {
	mapped, ok := Role(tx, target.Type, roleName+MappedSuffix)
	if !ok {
		return nil
	}
	var ids []int64
	for _, l := range tx.ACLsOn(target) {
		if l.RoleID == mapped.ID {
			ids = append(ids, peopleOf(tx, l.ID)...)
		}
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

// RemoveObject drops every list on ref, their people, and any propagated
// lists based on them.
func RemoveObject(tx *store.Tx, ref domain.ObjectRef) error {
	for _, l := range tx.ACLsOn(ref) {
		for _, d := range append(tx.ACLsBasedOn(l.ID), l) {
			for _, p := range tx.ACLPeopleIn(d.ID) {
				if err := tx.DeleteACLPerson(p.ID); err != nil {
					return err
				}
			}
			if err := tx.DeleteACL(d.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// SyncPeople makes personIDs the exact holders of the named role on ref and
// reports whether anything changed.
func SyncPeople(tx *store.Tx, ref domain.ObjectRef, roleName string, personIDs []int64) (bool, error) {
	want := slices.Clone(personIDs)
	slices.Sort(want)
	want = slices.Compact(want)
	if slices.Equal(want, PeopleWithRole(tx, ref, roleName)) {
		return false, nil
	}
	return true, SetPeople(tx, ref, roleName, want)
}

// GrantDefaults gives the acting person every default_to_current_user role
// on ref that nobody holds yet.
func GrantDefaults(tx *store.Tx, ref domain.ObjectRef) error {
	actor := tx.Actor()
	if actor == 0 {
		return nil
	}
	if _, ok := tx.People().Get(actor); !ok {
		return nil
	}
	for _, r := range RolesFor(tx, ref.Type) {
		if !r.DefaultToCurrentUser || len(PeopleWithRole(tx, ref, r.Name)) > 0 {
			continue
		}
		if err := AddPerson(tx, ref, r.Name, actor); err != nil {
			return err
		}
	}
	return nil
}

// Repropagate rebuilds the propagated copies of src's roles after the
// people on src changed.
func Repropagate(tx *store.Tx, p Propagation, src domain.ObjectRef, targets ...domain.ObjectRef) error {
	for _, l := range tx.ACLsOn(src) {
		for _, d := range tx.ACLsBasedOn(l.ID) {
			for _, ap := range tx.ACLPeopleIn(d.ID) {
				if err := tx.DeleteACLPerson(ap.ID); err != nil {
					return err
				}
			}
		}
	}
	return Propagate(tx, p, src, targets...)
}
