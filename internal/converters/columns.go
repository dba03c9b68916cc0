package converters

import (
	"strings"
	"time"

	"grc/internal/acl"
	"grc/internal/objects"
	"grc/internal/store"
	"grc/pkg/domain"
	pstrings "grc/pkg/platform/strings"
)

// Column headers shared by several kinds.
const (
	ColCode          = "Code"
	ColTitle         = "Title"
	ColDescription   = "Description"
	ColNotes         = "Notes"
	ColTestPlan      = "Assessment Procedure"
	ColState         = "State"
	ColEffectiveDate = "Effective Date"
	ColEndDate       = "Last Deprecated Date"
	ColReferenceURL  = "Reference URL"
	ColReviewState   = "Review State"
	ColReviewers     = "Reviewers"
	ColDelete        = "Delete"
	ColAudit         = "Audit"
	ColAssessment    = "Assessment Type"
	ColDesign        = "Design"
	ColOperationally = "Operationally"
	ColEvidenceURL   = "Evidence Url"
	ColEmail         = "Email"
	ColName          = "Name"
)

// ExportDateLayout is the date format of exported cells.
const ExportDateLayout = "01/02/2006"

var importDateLayouts = []string{ExportDateLayout, "1/2/2006", "2006-01-02"}

// Column describes one CSV column of an object type.
type Column struct {
	Name       string
	Alias      string
	Importable bool
	Exportable bool
	// Role is set on people columns holding the emails of a role's holders.
	Role string
}

func both(name, alias string) Column {
	return Column{Name: name, Alias: alias, Importable: true, Exportable: true}
}

func exportOnly(name, alias string) Column {
	return Column{Name: name, Alias: alias, Exportable: true}
}

// roleColumns returns one people column per custom role of t.
func roleColumns(tx *store.Tx, t domain.ObjectType) []Column {
	var out []Column
	for _, r := range acl.RolesFor(tx, t) {
		if r.Internal {
			continue
		}
		out = append(out, Column{Name: r.Name, Importable: true, Exportable: true, Role: r.Name})
	}
	return out
}

// HeaderKey normalizes a header or field name for matching: case and
// mandatory markers ("Code*") are ignored.
func HeaderKey(h string) string {
	h = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(h), "*"))
	return strings.ToLower(strings.Join(strings.Fields(h), " "))
}

// findColumn matches a header against column names and aliases.
func findColumn(cols []Column, header string) (Column, bool) {
	key := HeaderKey(header)
	for _, c := range cols {
		if HeaderKey(c.Name) == key || (c.Alias != "" && c.Alias == key) {
			return c, true
		}
	}
	return Column{}, false
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(ExportDateLayout)
}

func parseDate(raw string) (*time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range importDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, true
		}
	}
	return nil, false
}

func emailsCell(tx *store.Tx, ids []int64) string {
	return pstrings.JoinMultiValue(objects.Emails(tx, ids))
}

// peopleOf resolves a multi-value email cell; unknown emails are reported
// through warn and skipped.
func peopleOf(tx *store.Tx, cell string, warn func(string, ...any)) []int64 {
	emails := pstrings.DedupeAndTrimLower(pstrings.SplitMultiValue(cell))
	ids, unknown := objects.PeopleByEmail(tx, emails)
	for _, e := range unknown {
		warn("Unknown user email '%s'. The value will be ignored.", e)
	}
	return ids
}

func truthy(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "true", "y", "1", "x":
		return true
	}
	return false
}
