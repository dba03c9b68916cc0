package assessment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grc/internal/models"
	"grc/pkg/domain"
	dErrors "grc/pkg/domain-errors"
)

func TestResolveType(t *testing.T) {
	tests := []struct {
		name      string
		template  domain.ObjectType
		requested string
		want      domain.ObjectType
		wantErr   bool
	}{
		{"request only", "", "Control", domain.TypeControl, false},
		{"request objective", "", "Objective", domain.TypeObjective, false},
		{"nothing set defaults to control", "", "", domain.TypeControl, false},
		{"template wins over request", "Market", "Objective", domain.TypeMarket, false},
		{"template objective over control", "Objective", "Control", domain.TypeObjective, false},
		{"template and request agree", "Objective", "Objective", domain.TypeObjective, false},
		{"template only", "Objective", "", domain.TypeObjective, false},
		{"invalid template and request", "Invalid Type", "Invalid Type", "", true},
		{"invalid request", "", "Invalid Type", "", true},
		{"invalid template", "Invalid Type", "", "", true},
		{"known but not snapshottable", "", "Audit", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveType(tt.template, tt.requested)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildTitle(t *testing.T) {
	title := BuildTitle("Control 1", "Audit 2")
	assert.Contains(t, title, "Control 1")
	assert.Contains(t, title, "Audit 2")
	assert.Equal(t, "Control 1 assessment for Audit 2", title)
}

func TestBuildTestPlan(t *testing.T) {
	t.Run("no template copies the snapshot plan", func(t *testing.T) {
		assert.Equal(t, "Control Test Plan", BuildTestPlan(nil, "Control Test Plan"))
	})
	t.Run("procedure only", func(t *testing.T) {
		tmpl := &models.AssessmentTemplate{ProcedureDescription: "Template Plan"}
		assert.Equal(t, "Template Plan", BuildTestPlan(tmpl, "Control Test Plan"))
	})
	t.Run("procedure joined with snapshot plan", func(t *testing.T) {
		tmpl := &models.AssessmentTemplate{TestPlanProcedure: true, ProcedureDescription: "Template Plan"}
		assert.Equal(t, "Template Plan<br>Control Test Plan", BuildTestPlan(tmpl, "Control Test Plan"))
	})
	t.Run("empty parts are skipped", func(t *testing.T) {
		tmpl := &models.AssessmentTemplate{TestPlanProcedure: true}
		assert.Equal(t, "Control Test Plan", BuildTestPlan(tmpl, "Control Test Plan"))
	})
}

func TestOrderDefinitions(t *testing.T) {
	local := []models.CustomAttributeDefinition{{Title: "test text field"}, {Title: "test RTF"}, {Title: "test checkbox"}}
	global := []models.CustomAttributeDefinition{{Title: "rich_test_gca"}, {Title: "checkbox1_gca"}}
	var titles []string
	for _, d := range OrderDefinitions(local, global) {
		titles = append(titles, d.Title)
	}
	assert.Equal(t, []string{"test text field", "test RTF", "test checkbox", "rich_test_gca", "checkbox1_gca"}, titles)
}

func roleSource(m map[string][]int64) func(string) []int64 {
	return func(role string) []int64 { return m[role] }
}

func label(l string) models.PeopleSetting { return models.PeopleSetting{Label: l} }

func TestResolvePeople(t *testing.T) {
	captains := []int64{30, 31}
	auditors := []int64{21, 20}
	snapshotRoles := roleSource(map[string][]int64{
		"Principal Assignees": {40, 41},
		"Control Operators":   {50},
		"Admin":               {60},
	})
	full := Roster{Captains: captains, Auditors: auditors, SnapshotRole: snapshotRoles}

	tests := []struct {
		name          string
		tmpl          *models.AssessmentTemplate
		roster        Roster
		wantAssignees []int64
		wantVerifiers []int64
	}{
		{
			name:          "no template uses principal assignees and auditors",
			roster:        full,
			wantAssignees: []int64{40, 41},
			wantVerifiers: []int64{20, 21},
		},
		{
			name:          "no template and empty snapshot falls back to captains",
			roster:        Roster{Captains: captains, Auditors: auditors, SnapshotRole: roleSource(nil)},
			wantAssignees: []int64{30, 31},
			wantVerifiers: []int64{20, 21},
		},
		{
			name: "explicit ids are used as is",
			tmpl: &models.AssessmentTemplate{DefaultPeople: models.DefaultPeople{
				Assignees: models.PeopleSetting{PersonIDs: []int64{7}},
				Verifiers: models.PeopleSetting{PersonIDs: []int64{8}},
			}},
			roster:        full,
			wantAssignees: []int64{7},
			wantVerifiers: []int64{8},
		},
		{
			name:          "snapshot roles",
			tmpl:          &models.AssessmentTemplate{DefaultPeople: models.DefaultPeople{Assignees: label("Control Operators"), Verifiers: label("Admin")}},
			roster:        full,
			wantAssignees: []int64{50},
			wantVerifiers: []int64{60},
		},
		{
			name:          "verifiers left unset stay empty",
			tmpl:          &models.AssessmentTemplate{DefaultPeople: models.DefaultPeople{Assignees: label("Control Operators")}},
			roster:        full,
			wantAssignees: []int64{50},
		},
		{
			name:          "audit lead",
			tmpl:          &models.AssessmentTemplate{DefaultPeople: models.DefaultPeople{Assignees: label(LabelAuditLead), Verifiers: label(LabelAuditLead)}},
			roster:        full,
			wantAssignees: []int64{30, 31},
			wantVerifiers: []int64{30, 31},
		},
		{
			name:          "auditors",
			tmpl:          &models.AssessmentTemplate{DefaultPeople: models.DefaultPeople{Assignees: label(LabelAuditors)}},
			roster:        full,
			wantAssignees: []int64{20, 21},
		},
		{
			name:          "auditors fall back to captains",
			tmpl:          &models.AssessmentTemplate{DefaultPeople: models.DefaultPeople{Assignees: label(LabelAuditors), Verifiers: label(LabelAuditors)}},
			roster:        Roster{Captains: []int64{30}},
			wantAssignees: []int64{30},
			wantVerifiers: []int64{30},
		},
		{
			name:          "empty snapshot roles fall back to the audit",
			tmpl:          &models.AssessmentTemplate{DefaultPeople: models.DefaultPeople{Assignees: label("Control Owners"), Verifiers: label("Other Contacts")}},
			roster:        full,
			wantAssignees: []int64{30, 31},
			wantVerifiers: []int64{20, 21},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assignees, verifiers := ResolvePeople(tt.tmpl, tt.roster)
			assert.Equal(t, tt.wantAssignees, assignees)
			assert.Equal(t, tt.wantVerifiers, verifiers)
		})
	}
}

func TestNextStatus(t *testing.T) {
	assert.Equal(t, models.AssessmentNotStarted, NextStatus(models.AssessmentNotStarted, false))
	assert.Equal(t, models.AssessmentInProgress, NextStatus(models.AssessmentNotStarted, true))
	assert.Equal(t, models.AssessmentInProgress, NextStatus(models.AssessmentCompleted, true))
	assert.Equal(t, models.AssessmentInReview, NextStatus(models.AssessmentInReview, true))
}
