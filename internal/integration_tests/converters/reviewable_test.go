package converters

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"grc/internal/models"
	"grc/internal/review"
	"grc/internal/store"
	"grc/pkg/testutil/factories"
	"grc/pkg/testutil/harness"
)

var allFields = map[string]any{"expression": map[string]any{}}

func exportAll(objectName string) map[string]any {
	return map[string]any{"object_name": objectName, "filters": allFields, "fields": "all"}
}

type ExportReviewableSuite struct {
	harness.Suite
	reviewers []models.Person
}

func TestExportReviewableSuite(t *testing.T) {
	suite.Run(t, new(ExportReviewableSuite))
}

func (s *ExportReviewableSuite) SetupTest() {
	s.Suite.SetupTest()
	s.Commit(func(f *factories.Factory) {
		s.reviewers = []models.Person{f.Person(), f.Person()}
		control := f.Control(func(o *models.BusinessObject) { o.Title = "Test control" })
		f.Review(control.Ref(), s.reviewers[0].ID, s.reviewers[1].ID)
	})
	s.Login()
}

func (s *ExportReviewableSuite) TestReviewableExportHasReviewColumns() {
	rr := s.ExportCSV(exportAll("Control"))
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	body := rr.Body.String()

	s.Contains(body, "Test control")
	s.Contains(body, "Review State")
	s.Contains(body, models.ReviewUnreviewed)
	s.Contains(body, "Reviewers")
	s.Contains(body, s.reviewers[0].Email)
	s.Contains(body, s.reviewers[1].Email)

	blocks := s.ExportBlocks(exportAll("Control"))
	s.Require().Len(blocks, 1)
	records := harness.Records(blocks[0])
	s.Require().Len(records, 1)
	s.Equal(models.ReviewUnreviewed, records[0]["Review State"])
	s.ElementsMatch(
		[]string{s.reviewers[0].Email, s.reviewers[1].Email},
		strings.Split(records[0]["Reviewers"], "\n"),
	)
}

func (s *ExportReviewableSuite) TestNonReviewableExportOmitsReviewColumns() {
	s.Commit(func(f *factories.Factory) {
		f.Audit(func(a *models.Audit) { a.Title = "Test audit" })
	})

	rr := s.ExportCSV(exportAll("Audit"))
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	body := rr.Body.String()

	s.Contains(body, "Test audit")
	s.NotContains(body, "Review State")
	s.NotContains(body, models.ReviewUnreviewed)
	s.NotContains(body, "Reviewers")
}

func (s *ExportReviewableSuite) TestReviewedStateIsExported() {
	var control models.BusinessObject
	s.Commit(func(f *factories.Factory) {
		control = f.Control(func(o *models.BusinessObject) { o.Title = "Reviewed control" })
		f.MarkReviewed(control.Ref())
	})

	blocks := s.ExportBlocks(map[string]any{
		"object_name": "Control",
		"filters": map[string]any{"expression": map[string]any{
			"left": "title", "op": map[string]any{"name": "="}, "right": "Reviewed control",
		}},
		"fields": []string{"Title", "Review State"},
	})
	s.Require().Len(blocks, 1)
	records := harness.Records(blocks[0])
	s.Require().Len(records, 1)
	s.Equal(control.Slug, records[0]["Code"])
	s.Equal(models.ReviewReviewed, records[0]["Review State"])
}

type ImportReviewableSuite struct {
	harness.Suite
}

func TestImportReviewableSuite(t *testing.T) {
	suite.Run(t, new(ImportReviewableSuite))
}

func (s *ImportReviewableSuite) SetupTest() {
	s.Suite.SetupTest()
	s.Login()
}

func (s *ImportReviewableSuite) TestReviewColumnsAndEndDateAreNotImported() {
	var control models.BusinessObject
	s.Commit(func(f *factories.Factory) {
		control = f.Control()
	})
	s.Nil(control.EndDate)

	resp := s.ImportData(harness.R(
		"object_type", "Control",
		"code", control.Slug,
		"Last Deprecated Date", "06/06/2017",
		"Review State", "Reviewed",
		"Reviewers", "example1@mail.com\nexample2@mail.com",
	))

	s.Require().Len(resp, 1)
	s.Equal(1, resp[0].Updated)
	s.Empty(resp[0].RowErrors)
	s.View(func(tx *store.Tx) {
		stored, ok := tx.Objects().Get(control.ID)
		s.Require().True(ok)
		s.Nil(stored.EndDate)
		s.Equal(models.ReviewUnreviewed, review.StatusOf(tx, control.Ref()))
		s.Empty(review.Reviewers(tx, control.Ref()))
	})
}

func (s *ImportReviewableSuite) TestImportThenExportRoundTrip() {
	resp := s.ImportData(
		harness.R("object_type", "Control", "Code*", "CTRL-RT-1", "Title*", "Round trip 1", "State", "active"),
		harness.R("object_type", "Control", "Code*", "CTRL-RT-2", "Title*", "Round trip 2", "State", "draft"),
	)
	s.Require().Len(resp, 1)
	s.Equal(2, resp[0].Created)

	blocks := s.ExportBlocks(map[string]any{
		"object_name": "Control",
		"filters":     allFields,
		"fields":      []string{"Title", "State", "Review State"},
	})
	s.Require().Len(blocks, 1)
	byCode := map[string]map[string]string{}
	for _, rec := range harness.Records(blocks[0]) {
		byCode[rec["Code"]] = rec
	}
	s.Equal("Round trip 1", byCode["CTRL-RT-1"]["Title"])
	s.Equal(models.StatusActive, byCode["CTRL-RT-1"]["State"])
	s.Equal(models.StatusDraft, byCode["CTRL-RT-2"]["State"])
	s.Equal(models.ReviewUnreviewed, byCode["CTRL-RT-2"]["Review State"])
}

func (s *ImportReviewableSuite) TestDryRunLeavesRepositoryUntouched() {
	body, err := harness.BuildCSV(harness.R("object_type", "Control", "Code*", "CTRL-DRY", "Title*", "Dry"))
	s.Require().NoError(err)

	rr := s.ImportCSV(body, true)
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	s.View(func(tx *store.Tx) {
		_, found := tx.Objects().Find(func(o models.BusinessObject) bool { return o.Slug == "CTRL-DRY" })
		s.False(found)
	})
}

func (s *ImportReviewableSuite) TestRequiresSession() {
	s.Suite.SetupTest()
	rr := s.ExportCSV(exportAll("Control"))
	s.Equal(http.StatusUnauthorized, rr.Code)
}
