package assessments

import (
	"net/http"
	"slices"
	"testing"

	"github.com/stretchr/testify/suite"

	"grc/internal/acl"
	assessmenthandler "grc/internal/assessment/handler"
	"grc/internal/models"
	"grc/internal/store"
	"grc/pkg/domain"
	"grc/pkg/testutil/factories"
	"grc/pkg/testutil/harness"
)

const defaultUser = "user@example.com"

type GenerationSuite struct {
	harness.Suite
	control models.BusinessObject
}

func TestGenerationSuite(t *testing.T) {
	suite.Run(t, new(GenerationSuite))
}

func (s *GenerationSuite) SetupTest() {
	s.Suite.SetupTest()
	s.Login()
	s.Commit(func(f *factories.Factory) {
		s.Audit = f.Audit()
		s.control = f.Control(func(o *models.BusinessObject) { o.TestPlan = "Control Test Plan" })
	})
}

// snapshotControl freezes the control once its people are in place.
func (s *GenerationSuite) snapshotControl() {
	s.Commit(func(f *factories.Factory) {
		s.Snapshot = f.Snapshot(s.Audit.Ref(), s.control.Ref())
	})
}

func (s *GenerationSuite) auditPeople(role string, emails ...string) {
	s.Commit(func(f *factories.Factory) {
		for _, e := range emails {
			p := f.Person(func(p *models.Person) { p.Email = e })
			f.AccessControlPerson(s.Audit.Ref(), role, p.ID)
		}
	})
}

func (s *GenerationSuite) controlPeople(role string, emails ...string) {
	s.Commit(func(f *factories.Factory) {
		for _, e := range emails {
			p := f.Person(func(p *models.Person) { p.Email = e })
			f.AccessControlPerson(s.control.Ref(), role, p.ID)
		}
	})
}

func (s *GenerationSuite) template(opts ...func(*models.AssessmentTemplate)) models.AssessmentTemplate {
	var t models.AssessmentTemplate
	s.Commit(func(f *factories.Factory) {
		t = f.AssessmentTemplate(opts...)
	})
	return t
}

func procedure(t *models.AssessmentTemplate) {
	t.ProcedureDescription = "Assessment Template Test Plan"
}

func labels(assignees, verifiers string) func(*models.AssessmentTemplate) {
	return func(t *models.AssessmentTemplate) {
		procedure(t)
		t.DefaultPeople.Assignees.Label = assignees
		t.DefaultPeople.Verifiers.Label = verifiers
	}
}

// assertPeople checks the emails holding role on the generated assessment.
func (s *GenerationSuite) assertPeople(role string, resp assessmenthandler.AssessmentResponse, emails ...string) {
	s.T().Helper()
	var got []string
	s.View(func(tx *store.Tx) {
		r, ok := acl.Role(tx, domain.TypeAssessment, role)
		s.Require().True(ok, role)
		for _, e := range resp.AccessControlList {
			if e.ACRoleID != r.ID {
				continue
			}
			p, ok := tx.People().Get(e.Person.ID)
			s.Require().True(ok)
			got = append(got, p.Email)
		}
	})
	slices.Sort(got)
	want := slices.Clone(emails)
	slices.Sort(want)
	if len(want) == 0 {
		s.Empty(got, role)
		return
	}
	s.Equal(want, got, role)
}

func (s *GenerationSuite) assertPropagated(role, email string, target domain.ObjectRef) {
	s.T().Helper()
	s.View(func(tx *store.Tx) {
		var emails []string
		for _, id := range acl.PropagatedPeople(tx, target, role) {
			p, _ := tx.People().Get(id)
			emails = append(emails, p.Email)
		}
		s.Contains(emails, email, "%s Mapped on %s", role, target)
	})
}

func (s *GenerationSuite) TestTitleContainsAuditAndControlTitles() {
	s.snapshotControl()
	resp := s.AssessmentResponse(s.AssessmentPost(nil, nil))
	s.Contains(resp.Title, s.Audit.Title)
	s.Contains(resp.Title, s.control.Title)
	s.NotEqual("Temp title", resp.Title)
}

func (s *GenerationSuite) TestAssigneesAndVerifiersFromAudit() {
	auditors := []string{"user1@example.com", "user2@example.com"}
	captains := []string{"user3@example.com", "user4@example.com", "user5@example.com"}
	s.auditPeople("Auditors", auditors...)
	s.auditPeople("Audit Captains", captains...)
	s.snapshotControl()

	resp := s.AssessmentResponse(s.AssessmentPost(nil, nil))
	s.assertPeople("Verifiers", resp, auditors...)
	s.assertPeople("Assignees", resp, captains...)
	s.assertPeople("Creators", resp, defaultUser)
}

func (s *GenerationSuite) TestRolesPropagateToAuditAndSnapshot() {
	auditors := []string{"user1@example.com", "user2@example.com"}
	s.auditPeople("Auditors", auditors...)
	s.auditPeople("Audit Captains", "user3@example.com")
	s.snapshotControl()

	for _, tmpl := range []*models.AssessmentTemplate{nil, ptr(s.template())} {
		s.AssessmentResponse(s.AssessmentPost(tmpl, nil))
		for _, target := range []domain.ObjectRef{s.Audit.Ref(), s.Snapshot.Ref()} {
			s.assertPropagated("Verifiers", auditors[0], target)
			s.assertPropagated("Verifiers", auditors[1], target)
			s.assertPropagated("Assignees", "user3@example.com", target)
			s.assertPropagated("Creators", defaultUser, target)
		}
	}
}

func ptr[T any](v T) *T { return &v }

func (s *GenerationSuite) TestTemplateTestPlan() {
	s.snapshotControl()
	tmpl := s.template(procedure)
	resp := s.AssessmentResponse(s.AssessmentPost(&tmpl, nil))
	s.Equal(tmpl.ProcedureDescription, resp.TestPlan)
}

func (s *GenerationSuite) TestControlTestPlanJoinedToProcedure() {
	s.snapshotControl()
	tmpl := s.template(procedure, func(t *models.AssessmentTemplate) { t.TestPlanProcedure = true })
	resp := s.AssessmentResponse(s.AssessmentPost(&tmpl, nil))
	s.Equal(tmpl.ProcedureDescription+"<br>"+s.control.TestPlan, resp.TestPlan)
}

func (s *GenerationSuite) TestNoTemplateCopiesControlTestPlan() {
	s.snapshotControl()
	resp := s.AssessmentResponse(s.AssessmentPost(nil, nil))
	s.Equal("Control Test Plan", resp.TestPlan)
}

func (s *GenerationSuite) TestLocalAttributesPrecedeGlobalOnes() {
	s.snapshotControl()
	tmpl := s.template(procedure)
	s.Commit(func(f *factories.Factory) {
		for _, d := range []models.CustomAttributeDefinition{
			{DefinitionType: models.DefinitionGlobalAssessment, Title: "rich_test_gca", AttributeType: models.AttributeRichText},
			{DefinitionType: models.DefinitionGlobalAssessment, Title: "checkbox1_gca", AttributeType: models.AttributeCheckbox, MultiChoiceOptions: "test checkbox label"},
			{DefinitionType: models.DefinitionLocalTemplate, DefinitionID: tmpl.ID, Title: "test text field", AttributeType: models.AttributeText},
			{DefinitionType: models.DefinitionLocalTemplate, DefinitionID: tmpl.ID, Title: "test RTF", AttributeType: models.AttributeRichText},
			{DefinitionType: models.DefinitionLocalTemplate, DefinitionID: tmpl.ID, Title: "test checkbox", AttributeType: models.AttributeCheckbox, MultiChoiceOptions: "test checkbox label"},
		} {
			f.CustomAttributeDefinition(func(c *models.CustomAttributeDefinition) { *c = d })
		}
	})

	resp := s.AssessmentResponse(s.AssessmentPost(&tmpl, nil))
	var titles []string
	for _, d := range resp.CustomAttributeDefinitions {
		titles = append(titles, d.Title)
	}
	s.Equal([]string{"test text field", "test RTF", "test checkbox", "rich_test_gca", "checkbox1_gca"}, titles)
}

func (s *GenerationSuite) TestExplicitTemplatePeople() {
	var assignee, verifier models.Person
	s.Commit(func(f *factories.Factory) {
		assignee = f.Person(func(p *models.Person) { p.Email = "user1@example.com" })
		verifier = f.Person(func(p *models.Person) { p.Email = "user2@example.com" })
	})
	s.snapshotControl()
	tmpl := s.template(procedure, func(t *models.AssessmentTemplate) {
		t.DefaultPeople.Assignees.PersonIDs = []int64{assignee.ID}
		t.DefaultPeople.Verifiers.PersonIDs = []int64{verifier.ID}
	})

	resp := s.AssessmentResponse(s.AssessmentPost(&tmpl, nil))
	s.assertPeople("Verifiers", resp, verifier.Email)
	s.assertPeople("Assignees", resp, assignee.Email)
	s.assertPeople("Creators", resp, defaultUser)
}

func (s *GenerationSuite) TestPeopleFromSnapshotRoles() {
	roles := []string{"Principal Assignees", "Secondary Assignees", "Control Operators", "Control Owners", "Other Contacts", "Admin"}
	const assessor, verifier = "user1@example.com", "user2@example.com"
	for _, assessorRole := range roles {
		for _, verifierRole := range append([]string{""}, roles...) {
			s.Run(assessorRole+"/"+verifierRole, func() {
				s.SetupTest()
				s.controlPeople(assessorRole, assessor)
				if verifierRole != "" {
					s.controlPeople(verifierRole, verifier)
				}
				s.snapshotControl()
				tmpl := s.template(labels(assessorRole, verifierRole))

				resp := s.AssessmentResponse(s.AssessmentPost(&tmpl, nil))
				switch {
				case assessorRole == verifierRole:
					s.assertPeople("Verifiers", resp, assessor, verifier)
					s.assertPeople("Assignees", resp, assessor, verifier)
				case verifierRole == "":
					s.assertPeople("Verifiers", resp)
					s.assertPeople("Assignees", resp, assessor)
				default:
					s.assertPeople("Verifiers", resp, verifier)
					s.assertPeople("Assignees", resp, assessor)
				}
				s.assertPeople("Creators", resp, defaultUser)
			})
		}
	}
}

func (s *GenerationSuite) TestAuditLead() {
	for _, withVerifier := range []bool{true, false} {
		s.Run(map[bool]string{true: "with verifier", false: "assignees only"}[withVerifier], func() {
			s.SetupTest()
			const email = "user_1@example.com"
			s.auditPeople("Audit Captains", email)
			s.snapshotControl()
			verifiers := ""
			if withVerifier {
				verifiers = "Audit Lead"
			}
			tmpl := s.template(labels("Audit Lead", verifiers))

			resp := s.AssessmentResponse(s.AssessmentPost(&tmpl, nil))
			s.assertPeople("Assignees", resp, email)
			if withVerifier {
				s.assertPeople("Verifiers", resp, email)
			} else {
				s.assertPeople("Verifiers", resp)
			}
			s.assertPeople("Creators", resp, defaultUser)
		})
	}
}

func (s *GenerationSuite) TestAuditors() {
	users := []string{"user1@example.com", "user2@example.com"}
	for _, withVerifier := range []bool{true, false} {
		s.Run(map[bool]string{true: "with verifier", false: "assignees only"}[withVerifier], func() {
			s.SetupTest()
			s.auditPeople("Auditors", users...)
			s.snapshotControl()
			verifiers := ""
			if withVerifier {
				verifiers = "Auditors"
			}
			tmpl := s.template(labels("Auditors", verifiers))

			resp := s.AssessmentResponse(s.AssessmentPost(&tmpl, nil))
			s.assertPeople("Assignees", resp, users...)
			if withVerifier {
				s.assertPeople("Verifiers", resp, users...)
			} else {
				s.assertPeople("Verifiers", resp)
			}
			s.assertPeople("Creators", resp, defaultUser)
		})
	}
}

func (s *GenerationSuite) TestNoTemplateUsesPrincipalAssignees() {
	auditors := []string{"user1@example.com", "user2@example.com"}
	principals := []string{"user3@example.com", "user4@example.com"}
	s.auditPeople("Auditors", auditors...)
	s.controlPeople("Principal Assignees", principals...)
	s.snapshotControl()

	resp := s.AssessmentResponse(s.AssessmentPost(nil, nil))
	s.assertPeople("Assignees", resp, principals...)
	s.assertPeople("Verifiers", resp, auditors...)
}

func (s *GenerationSuite) TestAssessmentTypes() {
	s.snapshotControl()
	cases := []struct {
		name      string
		template  string
		requested any
		want      string
		status    int
	}{
		{"request only", "", "Objective", "Objective", http.StatusOK},
		{"defaults to the snapshot type", "", nil, "Control", http.StatusOK},
		{"template wins", "Market", "Objective", "Market", http.StatusOK},
		{"invalid request", "", "Invalid Type", "", http.StatusBadRequest},
		{"invalid template", "Invalid Type", "Control", "", http.StatusBadRequest},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			var tmpl *models.AssessmentTemplate
			if tc.template != "" {
				tmpl = ptr(s.template(func(t *models.AssessmentTemplate) {
					t.TemplateObjectType = domain.ObjectType(tc.template)
				}))
			}
			var extra map[string]any
			if tc.requested != nil {
				extra = map[string]any{"assessment_type": tc.requested}
			}
			rr := s.AssessmentPost(tmpl, extra)
			s.Require().Equal(tc.status, rr.Code, rr.Body.String())
			if tc.status == http.StatusOK {
				s.Equal(tc.want, s.AssessmentResponse(rr).AssessmentType)
			}
		})
	}
}

func (s *GenerationSuite) TestStatusStableOnEmptyTextFields() {
	s.snapshotControl()
	created := s.AssessmentResponse(s.AssessmentPost(nil, nil))
	s.Equal(models.AssessmentNotStarted, created.Status)

	update := func(fields map[string]any) assessmenthandler.AssessmentResponse {
		body := map[string]any{"id": created.ID}
		for k, v := range fields {
			body[k] = v
		}
		return s.AssessmentResponse(s.DoJSON(http.MethodPost, "/api/assessments", map[string]any{"assessment": body}))
	}

	same := update(map[string]any{"design": "", "operationally": "", "notes": ""})
	s.Equal(models.AssessmentNotStarted, same.Status)

	changed := update(map[string]any{"notes": "looked at it"})
	s.Equal(models.AssessmentInProgress, changed.Status)
}

func (s *GenerationSuite) TestEvidenceURLImportedOntoGeneratedAssessment() {
	s.snapshotControl()
	created := s.AssessmentResponse(s.AssessmentPost(nil, nil))
	s.Empty(created.EvidencesURL)

	resp := s.ImportData(harness.R(
		"object_type", "Assessment",
		"Code", created.Slug,
		"Evidence Url", "http://a.example\nhttp://b.example",
	))
	s.Require().Len(resp, 1)
	s.Equal(1, resp[0].Updated)
	s.Empty(resp[0].RowErrors)

	var got models.Assessment
	s.View(func(tx *store.Tx) {
		got, _ = tx.Assessments().Get(created.ID)
	})
	s.Equal([]string{"http://a.example", "http://b.example"}, got.EvidencesURL)
}
