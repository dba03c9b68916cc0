package snapshot

import (
	"encoding/json"
	"slices"
	"strconv"

	"grc/internal/acl"
	"grc/internal/models"
	"grc/internal/store"
	"grc/pkg/domain"
)

// Content is the log_json of a snapshotted object. It may have been
// round-tripped through JSON, so numbers are read leniently.
type Content map[string]any

// legacyRoleFields maps roles to the person fields that predate ACLs.
var legacyRoleFields = map[string]string{
	"Principal Assignees": "principal_assessor",
	"Secondary Assignees": "secondary_assessor",
	"Control Operators":   "contact",
	"Control Owners":      "secondary_contact",
}

// LogJSON renders the content stored in revisions and snapshots.
func LogJSON(tx *store.Tx, o models.BusinessObject) Content {
	entries := []any{}
	for _, e := range acl.Entries(tx, o.Ref()) {
		entries = append(entries, map[string]any{
			"ac_role_id": e.RoleID,
			"person":     map[string]any{"id": e.PersonID},
		})
	}
	c := Content{
		"id":                  o.ID,
		"type":                string(o.Type),
		"slug":                o.Slug,
		"title":               o.Title,
		"description":         o.Description,
		"notes":               o.Notes,
		"test_plan":           o.TestPlan,
		"status":              o.Status,
		"reference_url":       o.ReferenceURL,
		"access_control_list": entries,
	}
	for field, id := range map[string]int64{
		"principal_assessor": o.PrincipalAssessor,
		"secondary_assessor": o.SecondaryAssessor,
		"contact":            o.Contact,
		"secondary_contact":  o.SecondaryContact,
	} {
		if id != 0 {
			c[field] = map[string]any{"id": id, "type": string(domain.TypePerson)}
		}
	}
	if o.EndDate != nil {
		c["end_date"] = o.EndDate.Format("2006-01-02")
	}
	return c
}

// String returns a string field, "" when missing.
func (c Content) String(key string) string {
	s, _ := c[key].(string)
	return s
}

// Title of the snapshotted object.
func (c Content) Title() string { return c.String("title") }

// TestPlan of the snapshotted object.
func (c Content) TestPlan() string { return c.String("test_plan") }

// HasACL reports whether the content carries access_control_list entries
// (possibly empty).
func (c Content) HasACL() bool {
	_, ok := c["access_control_list"]
	return ok
}

// PeopleWithRole resolves the holders of roleName for an object of type t.
// ACL entries win; content without an access_control_list falls back to the
// legacy person fields.
func (c Content) PeopleWithRole(tx *store.Tx, t domain.ObjectType, roleName string) []int64 {
	var ids []int64
	if c.HasACL() {
		role, ok := acl.Role(tx, t, roleName)
		if !ok {
			return nil
		}
		list, _ := c["access_control_list"].([]any)
		for _, raw := range list {
			entry, _ := raw.(map[string]any)
			if asInt64(entry["ac_role_id"]) != role.ID {
				continue
			}
			person, _ := entry["person"].(map[string]any)
			if id := asInt64(person["id"]); id != 0 {
				ids = append(ids, id)
			}
		}
	} else if field, ok := legacyRoleFields[roleName]; ok {
		if person, ok := c[field].(map[string]any); ok {
			if id := asInt64(person["id"]); id != 0 {
				ids = append(ids, id)
			}
		}
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	}
	return 0
}

// ToMap converts the content to a plain map for revisions.
func (c Content) ToMap() map[string]any { return map[string]any(c) }
