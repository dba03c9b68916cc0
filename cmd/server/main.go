package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"grc/internal/acl"
	"grc/internal/assessment"
	assessmenthandler "grc/internal/assessment/handler"
	assessmentmetrics "grc/internal/assessment/metrics"
	"grc/internal/audit"
	"grc/internal/auth"
	authhandler "grc/internal/auth/handler"
	"grc/internal/auth/lockout"
	sessionstore "grc/internal/auth/store/session"
	"grc/internal/auth/token"
	"grc/internal/blob"
	"grc/internal/converters"
	convertershandler "grc/internal/converters/handler"
	convertersmetrics "grc/internal/converters/metrics"
	httpapi "grc/internal/http"
	"grc/internal/objects"
	objectshandler "grc/internal/objects/handler"
	"grc/internal/platform/config"
	"grc/internal/platform/database"
	"grc/internal/platform/httpserver"
	"grc/internal/platform/kafka"
	"grc/internal/platform/logger"
	"grc/internal/platform/metrics"
	platformredis "grc/internal/platform/redis"
	"grc/internal/review"
	"grc/internal/store"
	platformaudit "grc/pkg/platform/audit"
	"grc/pkg/platform/audit/publisher"
	auditmemory "grc/pkg/platform/audit/store/memory"
	auditpostgres "grc/pkg/platform/audit/store/postgres"
	"grc/pkg/platform/audit/worker"
)

const tokenIssuer = "grc"

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal service packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

type deps struct {
	outbox   *auditpostgres.Store
	auditLog platformaudit.Store
	closers  []func()
	checks   []httpapi.HealthCheck
}

func (d *deps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	d := &deps{}
	defer d.close()

	st, err := openStore(ctx, cfg, log, d)
	if err != nil {
		return err
	}

	catalog, err := acl.LoadCatalog()
	if err != nil {
		return fmt.Errorf("load role catalog: %w", err)
	}
	if err := st.SingleCommit(ctx, func(tx *store.Tx) error { return acl.Seed(tx, catalog) }); err != nil {
		return fmt.Errorf("seed roles: %w", err)
	}

	blobs, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	sessions, failures, err := openAuthStores(ctx, cfg, log, d)
	if err != nil {
		return err
	}
	limiter, err := lockout.New(failures,
		lockout.WithLogger(log),
		lockout.WithConfig(lockout.Config{
			AttemptsPerWindow: cfg.Auth.LoginAttempts,
			Window:            cfg.Auth.LoginWindow,
			LockDuration:      cfg.Auth.LoginLockout,
		}),
	)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers)
		if err != nil {
			return err
		}
		defer producer.Close()
		if err := producer.EnsureTopic(ctx, cfg.Kafka.AuditTopic, 1, 1); err != nil {
			log.WarnContext(ctx, "could not ensure audit topic", "topic", cfg.Kafka.AuditTopic, "error", err)
		}
		d.checks = append(d.checks, httpapi.HealthCheck{Name: "kafka", Check: producer.Health})

		relay := worker.NewRelay(d.outbox, producer, cfg.Kafka.AuditTopic,
			worker.WithInterval(cfg.Kafka.RelayInterval),
			worker.WithLogger(log),
		)
		g.Go(func() error {
			if err := relay.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
		log.InfoContext(ctx, "audit outbox relay started", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.AuditTopic)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := metrics.New(reg)

	tokens := token.NewService(cfg.Auth.JWTSigningKey, tokenIssuer)
	authService := auth.NewService(st, sessions, tokens,
		auth.WithLogger(log),
		auth.WithSessionTTL(cfg.Auth.SessionTTL),
		auth.WithDevLogin(cfg.Auth.DevLogin, cfg.Auth.DefaultUserEmail),
		auth.WithLockout(limiter),
	)
	assessmentService := assessment.NewService(st, catalog.Propagation,
		assessment.WithLogger(log),
		assessment.WithMetrics(assessmentmetrics.New(reg)),
	)
	converterService := converters.NewService(st, catalog.Propagation,
		converters.WithLogger(log),
		converters.WithMetrics(convertersmetrics.New(reg)),
		converters.WithBlobStore(blobs, cfg.Blob.Prefix, cfg.Blob.PresignTTL),
	)

	router := httpapi.NewRouter(httpapi.Config{
		Logger:     log,
		Tokens:     tokens,
		Sessions:   authService,
		AdminToken: cfg.Server.AdminToken,
		Metrics:    httpMetrics,
		Gatherer:   reg,
		Checks:     d.checks,
	}, httpapi.Handlers{
		Auth:        authhandler.New(authService, log, cfg.Server.SecureCookies),
		Objects:     objectshandler.New(objects.NewService(st, objects.WithLogger(log)), log),
		Reviews:     review.NewHandler(review.NewService(st, log), log),
		Assessments: assessmenthandler.New(assessmentService, log),
		Converters:  convertershandler.New(converterService, log),
		Roles:       acl.NewHandler(acl.NewService(st, log), log),
		AuditLog:    audit.NewHandler(d.auditLog, log),
	})

	srv := httpserver.New(cfg.Server.Addr, router)
	g.Go(func() error {
		log.InfoContext(ctx, "starting server",
			"addr", cfg.Server.Addr,
			"storage", cfg.Storage.Driver,
			"blob", cfg.Blob.Driver,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// openStore selects the persister for cfg.Storage.Driver. Audit events go to
// the postgres outbox when available, otherwise to an in-process log.
func openStore(ctx context.Context, cfg config.Config, log *slog.Logger, d *deps) (*store.Store, error) {
	if cfg.Storage.Driver == "memory" {
		pub := publisher.NewPublisher(auditmemory.NewInMemoryStore(), publisher.WithLogger(log))
		d.auditLog = pub
		return store.New(ctx, store.WithPersister(store.NewMemoryPersister(pub)), store.WithLogger(log))
	}

	db, err := database.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	d.closers = append(d.closers, func() { _ = db.Close() })
	d.checks = append(d.checks, httpapi.HealthCheck{Name: "database", Check: db.PingContext})

	var persister *store.SQLPersister
	if cfg.Storage.Driver == "postgres" {
		outbox := auditpostgres.New(db)
		if err := outbox.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		d.outbox = outbox
		d.auditLog = outbox
		persister = store.NewSQLPersister(db, store.DialectPostgres, outbox)
	} else {
		pub := publisher.NewPublisher(auditmemory.NewInMemoryStore(),
			publisher.WithLogger(log),
			publisher.WithAsyncBuffer(1024),
		)
		d.closers = append(d.closers, pub.Close)
		d.auditLog = pub
		persister = store.NewSQLPersister(db, store.DialectSQLite, pub)
	}
	if err := persister.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return store.New(ctx, store.WithPersister(persister), store.WithLogger(log))
}

// openAuthStores keeps sessions and login failures in redis when it is
// configured, in process otherwise.
func openAuthStores(ctx context.Context, cfg config.Config, log *slog.Logger, d *deps) (auth.SessionStore, lockout.Store, error) {
	client, err := platformredis.Open(ctx, cfg.Redis, log)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	if client == nil {
		return sessionstore.New(), lockout.NewInMemoryStore(), nil
	}
	d.closers = append(d.closers, func() { _ = client.Close() })
	d.checks = append(d.checks, httpapi.HealthCheck{Name: "redis", Check: client.Health})
	return sessionstore.NewRedis(client.Client), lockout.NewRedis(client.Client), nil
}
