package acl

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"grc/internal/models"
	"grc/internal/store"
	"grc/pkg/domain"
)

//go:embed roles.yaml
var rolesYAML []byte

// MappedSuffix is appended to propagated role names.
const MappedSuffix = " Mapped"

// Audit roles.
const (
	RoleAuditCaptains = "Audit Captains"
	RoleAuditors      = "Auditors"
)

type seedFile struct {
	Roles []struct {
		ObjectTypes []domain.ObjectType `yaml:"object_types"`
		Names       []struct {
			Name                 string `yaml:"name"`
			Mandatory            bool   `yaml:"mandatory"`
			DefaultToCurrentUser bool   `yaml:"default_to_current_user"`
		} `yaml:"names"`
	} `yaml:"roles"`
	Propagated Propagation `yaml:"propagated"`
}

// Propagation describes which roles of the source type are mapped onto
// related objects.
type Propagation struct {
	Source  domain.ObjectType   `yaml:"source"`
	Roles   []string            `yaml:"roles"`
	Targets []domain.ObjectType `yaml:"targets"`
}

// Catalog is the parsed seed.
type Catalog struct {
	Roles       []models.AccessControlRole
	Propagation Propagation
}

// LoadCatalog parses the embedded role seed.
func LoadCatalog() (Catalog, error) {
	return ParseCatalog(rolesYAML)
}

// ParseCatalog parses a role seed document.
func ParseCatalog(doc []byte) (Catalog, error) {
	var f seedFile
	if err := yaml.Unmarshal(doc, &f); err != nil {
		return Catalog{}, fmt.Errorf("parse role seed: %w", err)
	}
	var c Catalog
	for _, group := range f.Roles {
		for _, t := range group.ObjectTypes {
			if _, err := domain.ParseObjectType(string(t)); err != nil {
				return Catalog{}, fmt.Errorf("role seed: %w", err)
			}
			for _, n := range group.Names {
				c.Roles = append(c.Roles, models.AccessControlRole{
					Name:                 n.Name,
					ObjectType:           t,
					Mandatory:            n.Mandatory,
					DefaultToCurrentUser: n.DefaultToCurrentUser,
				})
			}
		}
	}
	for _, t := range f.Propagated.Targets {
		for _, name := range f.Propagated.Roles {
			c.Roles = append(c.Roles, models.AccessControlRole{
				Name:       name + MappedSuffix,
				ObjectType: t,
				Internal:   true,
			})
		}
	}
	c.Propagation = f.Propagated
	return c, nil
}

// Seed creates the catalog's roles that do not exist yet.
func Seed(tx *store.Tx, c Catalog) error {
	for _, r := range c.Roles {
		if _, ok := Role(tx, r.ObjectType, r.Name); ok {
			continue
		}
		if _, err := tx.PutRole(r); err != nil {
			return fmt.Errorf("seed role %s/%s: %w", r.ObjectType, r.Name, err)
		}
	}
	return nil
}
