// Package app wires configuration into the certificate service and its HTTP
// surface. Both the server binary and the CLI build on it.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"eduverify/internal/certificate/handler"
	"eduverify/internal/certificate/lock"
	"eduverify/internal/certificate/registry"
	"eduverify/internal/certificate/service"
	"eduverify/internal/platform/config"
	"eduverify/internal/platform/httpserver"
	"eduverify/internal/platform/metrics"
	"eduverify/internal/platform/redis"
	audit "eduverify/pkg/platform/audit"
	"eduverify/pkg/platform/audit/outbox"
	"eduverify/pkg/platform/audit/publishers/compliance"
	"eduverify/pkg/platform/audit/publishers/ops"
	auditmemory "eduverify/pkg/platform/audit/store/memory"
	auditpostgres "eduverify/pkg/platform/audit/store/postgres"
	"eduverify/pkg/platform/circuit"
	"eduverify/pkg/platform/httputil"
	"eduverify/pkg/platform/middleware/request"
	"eduverify/pkg/platform/middleware/requesttime"
)

// App holds the wired service and the resources it owns.
type App struct {
	Service  *service.Service
	Registry *registry.Client

	cfg      config.Config
	logger   *slog.Logger
	gatherer prometheus.Gatherer
	redis    *redis.Client
	db       *sql.DB
	kafka    *kgo.Client
	relay    *outbox.Relay
}

type Option func(*options)

type options struct {
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
}

// WithRegistry registers collectors on reg and serves /metrics from it.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		o.registerer = reg
		o.gatherer = reg
	}
}

// New connects the configured backends and assembles the service. Close
// releases whatever New opened, including on partial failure.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...Option) (_ *App, err error) {
	o := options{registerer: prometheus.DefaultRegisterer, gatherer: prometheus.DefaultGatherer}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{cfg: cfg, logger: logger, gatherer: o.gatherer}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	m := metrics.NewWithRegisterer(o.registerer)
	breaker := circuit.New("registry",
		circuit.WithFailureThreshold(cfg.Registry.BreakerFailures),
		circuit.WithSuccessThreshold(cfg.Registry.BreakerSuccesses),
		circuit.WithCooldown(cfg.Registry.BreakerCooldown),
	)
	// One registry host serves every request; keep enough idle connections for it.
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 16
	a.Registry = registry.New(cfg.Registry.BaseURL,
		registry.WithHTTPClient(&http.Client{Transport: transport}),
		registry.WithTimeout(cfg.Registry.Timeout),
		registry.WithReadRetry(cfg.Registry.ReadRetryMaxElapsed),
		registry.WithMaxDocumentBytes(cfg.Registry.MaxDocumentBytes),
		registry.WithBreaker(breaker),
		registry.WithLogger(logger),
		registry.WithMetrics(m),
	)

	locker, err := a.locker(ctx)
	if err != nil {
		return nil, err
	}
	store, err := a.auditStore(ctx)
	if err != nil {
		return nil, err
	}

	sampler := ops.NewSampler(1)
	sampler.SetRate(audit.EventCertificateVerified, cfg.Audit.VerifySampleRate)

	a.Service = service.New(a.Registry,
		service.WithLocker(locker),
		service.WithAuditPublisher(compliance.New(store,
			compliance.WithLogger(logger),
			compliance.WithMetrics(compliance.NewMetrics(o.registerer)),
		)),
		service.WithOpsTracker(ops.New(store,
			ops.WithSampler(sampler),
			ops.WithLogger(logger),
			ops.WithMetrics(ops.NewMetrics(o.registerer)),
		)),
		service.WithLogger(logger),
		service.WithMetrics(m),
	)
	return a, nil
}

func (a *App) locker(ctx context.Context) (lock.Locker, error) {
	if a.cfg.Lock.Backend != "redis" {
		return lock.NewMemoryLocker(), nil
	}
	client, err := redis.New(ctx, a.cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	a.redis = client
	return lock.NewRedisLocker(client.Client, a.cfg.Lock.TTL, lock.WithLogger(a.logger)), nil
}

func (a *App) auditStore(ctx context.Context) (audit.Store, error) {
	if a.cfg.Audit.Backend != "postgres" {
		return auditmemory.NewInMemoryStore(), nil
	}
	db, err := sql.Open("postgres", a.cfg.Audit.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	a.db = db
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	store := auditpostgres.New(db)
	if err := store.Migrate(ctx); err != nil {
		return nil, err
	}

	if len(a.cfg.Audit.KafkaBrokers) == 0 {
		a.logger.WarnContext(ctx, "no kafka brokers configured; audit outbox will not be relayed")
		return store, nil
	}
	kafka, err := kgo.NewClient(
		kgo.SeedBrokers(a.cfg.Audit.KafkaBrokers...),
		kgo.DefaultProduceTopic(a.cfg.Audit.KafkaTopic),
		kgo.ClientID("eduverify-outbox-relay"),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	a.kafka = kafka
	a.relay = outbox.NewRelay(db, store, kafka, a.cfg.Audit.KafkaTopic,
		outbox.WithBatchSize(a.cfg.Audit.RelayBatch),
		outbox.WithInterval(a.cfg.Audit.RelayInterval),
		outbox.WithLogger(a.logger),
	)
	return store, nil
}

// Router returns the HTTP surface: certificate API, health and metrics.
func (a *App) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(request.RequestID)
	r.Use(request.Logger(a.logger))
	r.Use(requesttime.Middleware)

	r.Get("/healthz", a.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))

	handler.New(a.Service, a.logger,
		handler.WithMaxUploadBytes(a.cfg.Registry.MaxDocumentBytes+1<<20),
	).Register(r)
	return r
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"status": "ok"}
	code := http.StatusOK
	if a.redis != nil {
		if err := a.redis.Health(ctx); err != nil {
			status["redis"] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}
	if a.db != nil {
		if err := a.db.PingContext(ctx); err != nil {
			status["postgres"] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}
	if code != http.StatusOK {
		status["status"] = "degraded"
	}
	httputil.WriteJSON(w, code, status)
}

// Serve runs the HTTP server and the outbox relay until ctx is cancelled,
// then shuts the server down within the configured timeout.
func (a *App) Serve(ctx context.Context) error {
	srv := httpserver.New(a.cfg, a.Router())
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "starting eduverify", "addr", a.cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if a.relay != nil {
		g.Go(func() error {
			if err := a.relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("audit outbox relay: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		a.logger.Info("server stopped")
		return nil
	})
	return g.Wait()
}

// Close releases backend connections. It is safe on a nil or partly built App.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	if a.kafka != nil {
		a.kafka.Close()
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	return errors.Join(errs...)
}
