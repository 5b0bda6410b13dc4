// Package app wires every service package into one running process: the
// storage backends, the retrieval/ingestion/chat services built on top of
// them, the Proactive Scheduler, and the HTTP surface that exposes all of
// it. [New] builds the graph; [App.Run] serves it until its context is
// cancelled; [App.Shutdown] tears it down in reverse order.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/khazna/khazna/internal/backup"
	"github.com/khazna/khazna/internal/chatengine"
	"github.com/khazna/khazna/internal/config"
	"github.com/khazna/khazna/internal/entityresolve"
	"github.com/khazna/khazna/internal/fileproc"
	"github.com/khazna/khazna/internal/graphstore"
	graphpg "github.com/khazna/khazna/internal/graphstore/pgstore"
	"github.com/khazna/khazna/internal/graphsvc"
	"github.com/khazna/khazna/internal/graphviz"
	"github.com/khazna/khazna/internal/health"
	"github.com/khazna/khazna/internal/httpapi"
	"github.com/khazna/khazna/internal/ingest"
	"github.com/khazna/khazna/internal/memstore"
	"github.com/khazna/khazna/internal/ner"
	"github.com/khazna/khazna/internal/observe"
	"github.com/khazna/khazna/internal/push"
	"github.com/khazna/khazna/internal/resilience"
	"github.com/khazna/khazna/internal/scheduler"
	"github.com/khazna/khazna/internal/tools/catalog"
	"github.com/khazna/khazna/internal/tools/host"
	"github.com/khazna/khazna/internal/vectorstore"
	vectorpg "github.com/khazna/khazna/internal/vectorstore/pgstore"
	"github.com/khazna/khazna/pkg/embeddings"
	"github.com/khazna/khazna/pkg/llmgateway"
)

// Providers holds the external model backends main() built from the
// configured provider registry. Both are required; [New] fails without
// them since every service downstream depends on an LLM or an embedder.
type Providers struct {
	LLM        llmgateway.Provider
	Embeddings embeddings.Provider
}

// App owns every live service and the HTTP listener that serves them. The
// zero value is not usable; construct with [New].
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	graph   graphstore.GraphRAGQuerier
	vectors vectorstore.Store
	redis   *redis.Client

	gateway   *llmgateway.Gateway
	graphSvc  *graphsvc.Service
	memory    *memstore.Store
	scheduler *scheduler.Scheduler
	pushHub   *push.Hub

	server *http.Server

	closers  []func() error
	stopOnce sync.Once
}

// Option customises App construction, primarily to inject fakes in tests.
type Option func(*App)

// WithGraphStore overrides the PostgreSQL-backed knowledge graph with g.
func WithGraphStore(g graphstore.GraphRAGQuerier) Option {
	return func(a *App) { a.graph = g }
}

// WithVectorStore overrides the pgvector-backed semantic index with v.
func WithVectorStore(v vectorstore.Store) Option {
	return func(a *App) { a.vectors = v }
}

// WithRedisClient overrides the Redis client backing working memory.
func WithRedisClient(rdb *redis.Client) Option {
	return func(a *App) { a.redis = rdb }
}

// New builds every service described by cfg and providers but does not
// start serving HTTP — call [App.Run] for that. Stores and services are
// constructed in dependency order; any failure tears down what was already
// opened before returning.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers.LLM == nil {
		return nil, fmt.Errorf("app: no LLM provider configured")
	}
	if providers.Embeddings == nil {
		return nil, fmt.Errorf("app: no embeddings provider configured")
	}

	a := &App{cfg: cfg, logger: slog.Default()}
	for _, o := range opts {
		o(a)
	}

	if a.graph == nil {
		store, err := graphpg.NewStore(ctx, cfg.Storage.GraphDSN)
		if err != nil {
			return nil, fmt.Errorf("app: open graph store: %w", err)
		}
		a.graph = store
		a.addCloser("graph store", func() error { store.Close(); return nil })
	}

	if a.vectors == nil {
		vectorDSN := cfg.Storage.VectorDSN
		if vectorDSN == "" {
			vectorDSN = cfg.Storage.GraphDSN
		}
		store, err := vectorpg.NewStore(ctx, vectorDSN, cfg.Storage.EmbeddingDimensions)
		if err != nil {
			a.Shutdown(ctx)
			return nil, fmt.Errorf("app: open vector store: %w", err)
		}
		a.vectors = store
		a.addCloser("vector store", func() error { store.Close(); return nil })
	}

	if a.redis == nil {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.RedisAddr,
			Password: cfg.Storage.RedisPassword,
			DB:       cfg.Storage.RedisDB,
		})
		a.addCloser("redis client", a.redis.Close)
	}

	llmProvider := providers.LLM
	if name := cfg.Providers.LLM.Name; name != "" {
		llmProvider = resilience.NewLLMFallback(llmProvider, name, resilience.FallbackConfig{
			CircuitBreaker: resilience.CircuitBreakerConfig{Name: name},
		})
	}
	a.gateway = llmgateway.New(llmProvider)

	resolver := entityresolve.New(a.graph, a.vectors, providers.Embeddings, entityresolve.Thresholds{
		Person:  cfg.Thresholds.EntityResolutionPerson,
		Default: cfg.Thresholds.EntityResolutionDefault,
		Fuzzy:   cfg.Thresholds.FuzzyMatch,
	})
	a.graphSvc = graphsvc.New(a.graph, resolver)

	a.memory = memstore.New(a.redis, a.gateway,
		memstore.WithWorkingCap(cfg.Memory.WorkingCap),
		memstore.WithCompressionThreshold(cfg.Memory.CompressionThreshold),
	)

	recognizer := ner.New(a.gateway)

	toolHost := host.New()
	catalogDeps := catalog.Deps{
		Graph:            a.graphSvc,
		Embed:            providers.Embeddings,
		Resolver:         resolver,
		SelfRAGThreshold: cfg.Thresholds.SelfRAG,
	}
	for _, t := range catalog.New(catalogDeps) {
		if err := toolHost.Register(t); err != nil {
			a.Shutdown(ctx)
			return nil, fmt.Errorf("app: register tool %q: %w", t.Definition.Name, err)
		}
	}

	chat := chatengine.New(chatengine.Deps{
		Gateway:  a.gateway,
		Memory:   a.memory,
		Graph:    a.graphSvc,
		Tools:    toolHost,
		NER:      recognizer,
		Timezone: fixedOffsetZone(cfg.TimezoneOffsetHours),
	})

	ingestSvc := ingest.New(ingest.Deps{
		Gateway: a.gateway,
		Graph:   a.graphSvc,
		Vectors: a.vectors,
		Embed:   providers.Embeddings,
		NER:     recognizer,
	})

	fileprocSvc := fileproc.New(fileproc.Deps{
		Gateway:          a.gateway,
		Graph:            a.graphSvc,
		Ingest:           ingestSvc,
		Vectors:          a.vectors,
		Embed:            providers.Embeddings,
		WhisperServerURL: cfg.Providers.ASR.BaseURL,
	})

	backupSvc := backup.New(backup.Deps{
		Graph:   a.graphSvc,
		Vectors: a.vectors,
		Memory:  a.memory,
	}, cfg.Backup.Dir)

	graphvizSvc := graphviz.New(graphviz.Deps{Graph: a.graph})

	a.pushHub = push.NewHub(a.logger)

	sched, err := scheduler.New(scheduler.Deps{
		Graph:  a.graphSvc,
		Backup: backupSvc,
		Push:   a.pushHub,
		Logger: a.logger,
	}, scheduler.Config{
		TimezoneOffsetHours:          cfg.TimezoneOffsetHours,
		MorningHour:                  cfg.Scheduler.MorningHour,
		NoonHour:                     cfg.Scheduler.NoonHour,
		EveningHour:                  cfg.Scheduler.EveningHour,
		BackupHour:                   cfg.Scheduler.BackupHour,
		ReminderCheckIntervalMinutes: cfg.Scheduler.ReminderCheckIntervalMinutes,
		SmartAlertIntervalHours:      cfg.Scheduler.SmartAlertIntervalHours,
		RetentionDays:                cfg.Scheduler.RetentionDays,
		StalledProjectDays:           cfg.Scheduler.StalledProjectDays,
		OldDebtDays:                  cfg.Scheduler.OldDebtDays,
	})
	if err != nil {
		a.Shutdown(ctx)
		return nil, fmt.Errorf("app: build scheduler: %w", err)
	}
	a.scheduler = sched

	// observe.DefaultMetrics reads whatever MeterProvider main() registered
	// via [observe.InitProvider] (a no-op provider in tests that never call
	// it), and is itself safe to call from more than one App instance in
	// the same process.
	metrics := observe.DefaultMetrics()

	httpHandler := httpapi.New(httpapi.Deps{
		Chat:     chat,
		Ingest:   ingestSvc,
		FileProc: fileprocSvc,
		Graph:    a.graphSvc,
		Vectors:  a.vectors,
		Embed:    providers.Embeddings,
		Gateway:  a.gateway,
		Backup:   backupSvc,
		GraphViz: graphvizSvc,
		Push:     a.pushHub,
		Logger:   a.logger,
		FilesDir: cfg.Backup.Dir,
	})

	healthHandler := health.New(health.Checker{
		Name: "graph_store",
		Check: func(ctx context.Context) error {
			_, err := a.graph.GetEntity(ctx, "healthcheck")
			return err
		},
	})

	mux := http.NewServeMux()
	httpHandler.Register(mux)
	mux.HandleFunc("GET /healthz", healthHandler.Healthz)
	mux.HandleFunc("GET /readyz", healthHandler.Readyz)
	mux.Handle("GET /metrics", promhttp.Handler())

	a.server = &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: observe.Middleware(metrics)(mux),
	}

	return a, nil
}

// Run starts the scheduler and serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.scheduler.Start()

	errCh := make(chan error, 1)
	go func() {
		var err error
		if a.cfg.Server.TLS != nil {
			err = a.server.ListenAndServeTLS(a.cfg.Server.TLS.CertFile, a.cfg.Server.TLS.KeyFile)
		} else {
			err = a.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Shutdown stops the scheduler, drains in-flight requests, and releases
// every resource opened by [New], in reverse order. Safe to call more than
// once; only the first call has effect.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		if a.scheduler != nil {
			a.scheduler.Stop()
		}
		if a.server != nil {
			if err := a.server.Shutdown(ctx); err != nil {
				shutdownErr = fmt.Errorf("app: shut down http server: %w", err)
			}
		}
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](); err != nil && shutdownErr == nil {
				shutdownErr = err
			}
		}
	})
	return shutdownErr
}

// addCloser registers fn to run during Shutdown, in reverse registration
// order, after the HTTP server and scheduler have stopped.
func (a *App) addCloser(name string, fn func() error) {
	a.closers = append(a.closers, func() error {
		if err := fn(); err != nil {
			return fmt.Errorf("app: close %s: %w", name, err)
		}
		return nil
	})
}

// fixedOffsetZone returns a fixed-offset [time.Location] hours east of UTC,
// matching the spec's "fixed UTC offset, no DST" timezone handling.
func fixedOffsetZone(hours int) *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC%+d", hours), hours*3600)
}
