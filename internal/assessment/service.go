// Package assessment generates assessments from audit snapshots and
// templates, and maintains their free text fields.
package assessment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"grc/internal/acl"
	"grc/internal/assessment/metrics"
	"grc/internal/models"
	"grc/internal/snapshot"
	"grc/internal/store"
	"grc/pkg/domain"
	dErrors "grc/pkg/domain-errors"
	audit "grc/pkg/platform/audit"
	"grc/pkg/platform/sentinel"
	"grc/pkg/requestcontext"
)

var tracer = otel.Tracer("grc/internal/assessment")

const defaultConcurrency = 8

// Service generates and updates assessments.
type Service struct {
	store       *store.Store
	propagation acl.Propagation
	logger      *slog.Logger
	metrics     *metrics.Metrics
	concurrency int
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithConcurrency bounds how many snapshots a bulk generation plans at once.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// NewService creates the service. propagation decides which assessment
// roles are mirrored onto the audit and the snapshot.
func NewService(st *store.Store, propagation acl.Propagation, opts ...Option) *Service {
	s := &Service{
		store:       st,
		propagation: propagation,
		logger:      slog.Default(),
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate creates one assessment for a snapshot of the audit.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*Result, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "assessment.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("audit.id", req.AuditID),
		attribute.Int64("snapshot.id", req.SnapshotID),
		attribute.Int64("template.id", req.TemplateID),
	)

	var out *Result
	err := s.store.SingleCommit(ctx, func(tx *store.Tx) error {
		plan, err := s.plan(tx, req)
		if err != nil {
			return err
		}
		a, err := s.apply(tx, plan)
		if err != nil {
			return err
		}
		out, err = load(tx, a.ID)
		return err
	})
	s.metrics.ObserveGenerateLatency(time.Since(start))
	if err != nil {
		err = translate(err, "failed to generate assessment")
		s.reject(ctx, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		return nil, err
	}

	s.metrics.IncrementGenerated("single", string(out.Assessment.AssessmentType), 1)
	s.logger.InfoContext(ctx, "assessment generated",
		"request_id", requestcontext.RequestID(ctx),
		"assessment_id", out.Assessment.ID,
		"audit_id", req.AuditID,
		"snapshot_id", req.SnapshotID,
		"assessment_type", out.Assessment.AssessmentType,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// GenerateBulk creates one assessment per snapshot in a single commit.
// Plans are resolved concurrently against the working copy; writes happen
// afterwards in request order.
func (s *Service) GenerateBulk(ctx context.Context, req BulkRequest) ([]*Result, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "assessment.GenerateBulk")
	defer span.End()

	ids := uniqueIDs(req.SnapshotIDs)
	span.SetAttributes(
		attribute.Int64("audit.id", req.AuditID),
		attribute.Int("snapshots", len(ids)),
	)
	if len(ids) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one snapshot is required")
	}

	var out []*Result
	err := s.store.SingleCommit(ctx, func(tx *store.Tx) error {
		plans := make([]Plan, len(ids))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.concurrency)
		for i, id := range ids {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				p, err := s.plan(tx, GenerateRequest{
					AuditID:        req.AuditID,
					SnapshotID:     id,
					TemplateID:     req.TemplateID,
					AssessmentType: req.AssessmentType,
				})
				if err != nil {
					return err
				}
				plans[i] = p
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		out = make([]*Result, 0, len(plans))
		for _, p := range plans {
			a, err := s.apply(tx, p)
			if err != nil {
				return err
			}
			r, err := load(tx, a.ID)
			if err != nil {
				return err
			}
			out = append(out, r)
		}
		return nil
	})
	s.metrics.ObserveGenerateLatency(time.Since(start))
	if err != nil {
		err = translate(err, "failed to generate assessments")
		s.reject(ctx, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "bulk generation failed")
		return nil, err
	}

	for _, r := range out {
		s.metrics.IncrementGenerated("bulk", string(r.Assessment.AssessmentType), 1)
	}
	s.logger.InfoContext(ctx, "assessments generated",
		"request_id", requestcontext.RequestID(ctx),
		"audit_id", req.AuditID,
		"count", len(out),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// Update changes the text fields of an assessment. Posting values equal to
// the stored ones (including empty over empty) is a no-op and never moves
// the status.
func (s *Service) Update(ctx context.Context, req UpdateRequest) (*Result, error) {
	var (
		out           *Result
		statusChanged bool
	)
	err := s.store.SingleCommit(ctx, func(tx *store.Tx) error {
		a, ok := tx.Assessments().Get(req.ID)
		if !ok {
			return dErrors.Newf(dErrors.CodeNotFound, "assessment %d not found", req.ID)
		}
		next := a.Clone()
		for _, f := range []struct {
			dst *string
			src *string
		}{
			{&next.Title, req.Title},
			{&next.TestPlan, req.TestPlan},
			{&next.Design, req.Design},
			{&next.Operationally, req.Operationally},
			{&next.Notes, req.Notes},
		} {
			if f.src != nil {
				*f.dst = *f.src
			}
		}
		saved, _, err := Save(tx, next, false)
		if err != nil {
			return err
		}
		statusChanged = saved.Status != a.Status
		out, err = load(tx, saved.ID)
		return err
	})
	if err != nil {
		return nil, translate(err, "failed to update assessment")
	}
	s.metrics.IncrementUpdate(statusChanged)
	return out, nil
}

// Get loads an assessment with its people and definitions.
func (s *Service) Get(ctx context.Context, id int64) (*Result, error) {
	var out *Result
	err := s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		out, err = load(tx, id)
		return err
	})
	if err != nil {
		return nil, translate(err, "failed to load assessment")
	}
	return out, nil
}

// plan resolves a request without writing. It only reads tx, so several
// plans may be resolved concurrently against the same working copy.
func (s *Service) plan(tx *store.Tx, req GenerateRequest) (Plan, error) {
	au, ok := tx.Audits().Get(req.AuditID)
	if !ok {
		return Plan{}, dErrors.Newf(dErrors.CodeNotFound, "audit %d not found", req.AuditID)
	}
	snap, ok := tx.Snapshots().Get(req.SnapshotID)
	if !ok {
		return Plan{}, dErrors.Newf(dErrors.CodeNotFound, "snapshot %d not found", req.SnapshotID)
	}
	if snap.Parent != au.Ref() {
		return Plan{}, dErrors.Newf(dErrors.CodeValidation, "snapshot %d does not belong to audit %d", snap.ID, au.ID)
	}

	var tmpl *models.AssessmentTemplate
	if req.TemplateID != 0 {
		t, ok := tx.Templates().Get(req.TemplateID)
		if !ok {
			return Plan{}, dErrors.Newf(dErrors.CodeNotFound, "assessment template %d not found", req.TemplateID)
		}
		t = t.Clone()
		tmpl = &t
	}

	var templateType domain.ObjectType
	if tmpl != nil {
		templateType = tmpl.TemplateObjectType
	}
	typ, err := ResolveType(templateType, req.AssessmentType)
	if err != nil {
		return Plan{}, err
	}

	content, err := snapshot.ContentOf(tx, snap)
	if err != nil {
		return Plan{}, err
	}
	roster := Roster{
		Captains: acl.PeopleWithRole(tx, au.Ref(), RoleAuditCaptains),
		Auditors: acl.PeopleWithRole(tx, au.Ref(), RoleAuditors),
		SnapshotRole: func(role string) []int64 {
			return content.PeopleWithRole(tx, snap.Child.Type, role)
		},
	}
	assignees, verifiers := ResolvePeople(tmpl, roster)

	var creators []int64
	if actor := tx.Actor(); actor != 0 {
		creators = []int64{actor}
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = BuildTitle(content.Title(), au.Title)
	}

	p := Plan{
		Audit:     au,
		Snapshot:  snap,
		Template:  tmpl,
		Title:     title,
		Type:      typ,
		TestPlan:  BuildTestPlan(tmpl, content.TestPlan()),
		Assignees: assignees,
		Verifiers: verifiers,
		Creators:  creators,
		GlobalCADs: tx.CADs().Filter(func(d models.CustomAttributeDefinition) bool {
			return d.IsGlobal()
		}),
	}
	if tmpl != nil {
		p.LocalCADs = tx.CADs().Filter(func(d models.CustomAttributeDefinition) bool {
			return d.DefinitionType == models.DefinitionLocalTemplate && d.DefinitionID == tmpl.ID
		})
	}
	return p, nil
}

// apply writes a plan: the assessment, copies of the template's local
// definitions, its people, relationships and propagated roles.
func (s *Service) apply(tx *store.Tx, p Plan) (models.Assessment, error) {
	now := tx.Now()
	a := models.Assessment{
		Title:          p.Title,
		AuditID:        p.Audit.ID,
		AssessmentType: p.Type,
		Status:         models.AssessmentStartState,
		TestPlan:       p.TestPlan,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if p.Template != nil {
		a.TemplateID = p.Template.ID
	}
	a, err := tx.PutAssessment(a)
	if err != nil {
		return a, err
	}
	a.Slug = fmt.Sprintf("%s-%d", domain.TypeAssessment.SlugPrefix(), a.ID)

	for _, d := range p.LocalCADs {
		d.ID = 0
		d.DefinitionType = models.DefinitionLocalAssessment
		d.DefinitionID = a.ID
		copied, err := tx.PutCAD(d)
		if err != nil {
			return a, err
		}
		a.LocalCADs = append(a.LocalCADs, copied.ID)
	}
	if a, err = tx.PutAssessment(a); err != nil {
		return a, err
	}

	for _, grant := range []struct {
		role   string
		people []int64
	}{
		{RoleCreators, p.Creators},
		{RoleAssignees, p.Assignees},
		{RoleVerifiers, p.Verifiers},
	} {
		for _, id := range grant.people {
			if err := acl.AddPerson(tx, a.Ref(), grant.role, id); err != nil {
				return a, err
			}
		}
	}

	for _, target := range []domain.ObjectRef{p.Audit.Ref(), p.Snapshot.Ref()} {
		if _, err := tx.Relate(a.Ref(), target); err != nil {
			return a, err
		}
	}
	if err := acl.Propagate(tx, s.propagation, a.Ref(), p.Audit.Ref(), p.Snapshot.Ref()); err != nil {
		return a, err
	}

	if _, err := tx.Record(models.ActionCreated, a.Ref(), LogJSON(a)); err != nil {
		return a, err
	}
	tx.Emit(audit.Event{
		Action:     string(audit.EventAssessmentGenerated),
		ObjectType: string(domain.TypeAssessment),
		ObjectID:   a.ID,
		Subject:    p.Snapshot.Child.String(),
		Detail:     string(a.AssessmentType),
	})
	return a, nil
}

// Save persists an edited assessment. Edits equal to the stored values
// (empty over empty included) are a no-op. A real change is logged and,
// unless the status itself was edited, moves the status per NextStatus.
// extra marks changes made outside the assessment row, such as its people.
func Save(tx *store.Tx, next models.Assessment, extra bool) (models.Assessment, bool, error) {
	cur, ok := tx.Assessments().Get(next.ID)
	if !ok {
		return next, false, dErrors.Newf(dErrors.CodeNotFound, "assessment %d not found", next.ID)
	}
	if !extra && !contentChanged(cur, next) {
		return cur, false, nil
	}
	if next.Status == cur.Status {
		next.Status = NextStatus(cur.Status, true)
	}
	next.UpdatedAt = tx.Now()
	saved, err := tx.PutAssessment(next)
	if err != nil {
		return cur, false, err
	}
	if _, err := tx.Record(models.ActionModified, saved.Ref(), LogJSON(saved)); err != nil {
		return cur, false, err
	}
	tx.Emit(audit.Event{
		Action:     string(audit.EventObjectUpdated),
		ObjectType: string(domain.TypeAssessment),
		ObjectID:   saved.ID,
		Subject:    saved.Slug,
	})
	return saved, true, nil
}

func contentChanged(a, b models.Assessment) bool {
	return a.Title != b.Title ||
		a.TestPlan != b.TestPlan ||
		a.Design != b.Design ||
		a.Operationally != b.Operationally ||
		a.Notes != b.Notes ||
		a.Status != b.Status ||
		!slices.Equal(a.EvidencesURL, b.EvidencesURL)
}

func load(tx *store.Tx, id int64) (*Result, error) {
	a, ok := tx.Assessments().Get(id)
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "assessment %d not found", id)
	}
	var local []models.CustomAttributeDefinition
	for _, cadID := range a.LocalCADs {
		if d, ok := tx.CADs().Get(cadID); ok {
			local = append(local, d)
		}
	}
	global := tx.CADs().Filter(func(d models.CustomAttributeDefinition) bool { return d.IsGlobal() })

	r := &Result{
		Assessment:  a,
		ACL:         acl.Entries(tx, a.Ref()),
		Definitions: OrderDefinitions(local, global),
		Audit:       domain.Ref(domain.TypeAudit, a.AuditID),
	}
	if snaps := tx.Related(a.Ref(), domain.TypeSnapshot); len(snaps) > 0 {
		r.Snapshot = snaps[0]
	}
	return r, nil
}

// LogJSON is the revision content of an assessment.
func LogJSON(a models.Assessment) map[string]any {
	return map[string]any{
		"id":              a.ID,
		"slug":            a.Slug,
		"title":           a.Title,
		"audit_id":        a.AuditID,
		"assessment_type": string(a.AssessmentType),
		"status":          a.Status,
		"test_plan":       a.TestPlan,
		"design":          a.Design,
		"operationally":   a.Operationally,
		"notes":           a.Notes,
		"evidences_url":   slices.Clone(a.EvidencesURL),
	}
}

func (s *Service) reject(ctx context.Context, err error) {
	code := dErrors.CodeOf(err)
	s.metrics.IncrementRejected(string(code))
	if code == dErrors.CodeInternal {
		s.logger.ErrorContext(ctx, "assessment generation failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return
	}
	s.logger.WarnContext(ctx, "assessment generation rejected",
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func translate(err error, msg string) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "referenced object not found")
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
