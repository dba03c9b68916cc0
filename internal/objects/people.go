package objects

import (
	"strings"

	"github.com/asaskevich/govalidator"

	"grc/internal/models"
	"grc/internal/store"
	"grc/pkg/domain"
	dErrors "grc/pkg/domain-errors"
	audit "grc/pkg/platform/audit"
)

// FindPersonByEmail matches emails case-insensitively.
func FindPersonByEmail(tx *store.Tx, email string) (models.Person, bool) {
	return tx.PersonByEmail(email)
}

// PeopleByEmail resolves a list of emails to person ids, returning the
// emails nobody uses.
func PeopleByEmail(tx *store.Tx, emails []string) (ids []int64, unknown []string) {
	for _, e := range emails {
		if p, ok := FindPersonByEmail(tx, e); ok {
			ids = append(ids, p.ID)
		} else {
			unknown = append(unknown, e)
		}
	}
	return ids, unknown
}

// Emails returns the emails of the given people in input order, skipping
// unknown ids.
func Emails(tx *store.Tx, ids []int64) []string {
	var out []string
	for _, id := range ids {
		if p, ok := tx.People().Get(id); ok {
			out = append(out, p.Email)
		}
	}
	return out
}

// CreatePerson stores a person. Emails are unique; the name defaults to the
// email's local part.
func CreatePerson(tx *store.Tx, p models.Person) (models.Person, error) {
	p.ID = 0
	email := strings.ToLower(strings.TrimSpace(p.Email))
	if !govalidator.StringLength(email, "1", "255") || !govalidator.IsEmail(email) {
		return p, dErrors.Newf(dErrors.CodeValidation, "invalid email %q", p.Email)
	}
	p.Email = email
	if _, exists := FindPersonByEmail(tx, p.Email); exists {
		return p, dErrors.Newf(dErrors.CodeConflict, "person with email %q already exists", p.Email)
	}
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		p.Name, _, _ = strings.Cut(p.Email, "@")
	}
	p, err := tx.PutPerson(p)
	if err != nil {
		return p, err
	}
	tx.Emit(audit.Event{
		Action:     string(audit.EventObjectCreated),
		ObjectType: string(domain.TypePerson),
		ObjectID:   p.ID,
		Subject:    p.Email,
	})
	return p, nil
}

// EnsurePerson returns the person with email, creating one when missing.
func EnsurePerson(tx *store.Tx, email, name string) (models.Person, error) {
	if p, ok := FindPersonByEmail(tx, email); ok {
		return p, nil
	}
	return CreatePerson(tx, models.Person{Email: email, Name: name})
}
