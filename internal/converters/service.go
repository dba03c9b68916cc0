// Package converters moves GRC objects in and out of the block CSV format:
// export renders filtered objects per type, import creates, updates or
// deletes objects row by row with per-row error isolation.
package converters

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"

	"grc/internal/acl"
	"grc/internal/blob/core"
	"grc/internal/converters/metrics"
	"grc/internal/store"
)

var tracer = otel.Tracer("grc/internal/converters")

const (
	defaultConcurrency  = 4
	defaultExportPrefix = "exports/"
	defaultPresignTTL   = 15 * time.Minute
)

// Service runs CSV imports and exports against the repository.
type Service struct {
	store        *store.Store
	propagation  acl.Propagation
	blobs        core.Store
	exportPrefix string
	presignTTL   time.Duration
	logger       *slog.Logger
	metrics      *metrics.Metrics
	concurrency  int
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

// WithBlobStore keeps a copy of every export under prefix.
func WithBlobStore(blobs core.Store, prefix string, presignTTL time.Duration) Option {
	return func(s *Service) {
		s.blobs = blobs
		if prefix != "" {
			s.exportPrefix = prefix
		}
		if presignTTL > 0 {
			s.presignTTL = presignTTL
		}
	}
}

// WithConcurrency bounds how many export blocks render at once.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// NewService creates the service. propagation is reapplied when an import
// changes the people of an assessment.
func NewService(st *store.Store, propagation acl.Propagation, opts ...Option) *Service {
	s := &Service{
		store:        st,
		propagation:  propagation,
		exportPrefix: defaultExportPrefix,
		presignTTL:   defaultPresignTTL,
		logger:       slog.Default(),
		concurrency:  defaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
