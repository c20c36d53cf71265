package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tangoverse/mneme/internal/api/handlers"
	mw "github.com/tangoverse/mneme/internal/api/middleware"
	"github.com/tangoverse/mneme/internal/buildconfig"
	"github.com/tangoverse/mneme/internal/config"
	"github.com/tangoverse/mneme/internal/domain"
	"github.com/tangoverse/mneme/internal/service"
	"github.com/tangoverse/mneme/internal/store"
	"github.com/tangoverse/mneme/internal/store/inmem"
	"go.uber.org/zap"
)

const (
	metricsNamespace = "mneme"
	limiterIdleTTL   = 10 * time.Minute
)

// Stores bundles the memory-tier backends the app runs on.
type Stores struct {
	Backend  string
	Episodes domain.EpisodeStore
	Semantic domain.SemanticStore
	Rules    domain.RuleStore
	Pinger   domain.Pinger
}

// PostgresStores builds the memory tiers on a pgx pool.
func PostgresStores(db *pgxpool.Pool) Stores {
	return Stores{
		Backend:  config.BackendPostgres,
		Episodes: store.NewEpisodeStore(db),
		Semantic: store.NewSemanticStore(db),
		Rules:    store.NewRuleStore(db),
		Pinger:   store.NewPoolPinger(db),
	}
}

// MemoryStores builds the memory tiers on the in-memory store.
func MemoryStores(st *inmem.Store) Stores {
	return Stores{
		Backend:  config.BackendMemory,
		Episodes: st.Episodes(),
		Semantic: st.Semantic(),
		Rules:    st.Rules(),
		Pinger:   st,
	}
}

// App holds the router and background workers for lifecycle management.
type App struct {
	Router   *chi.Mux
	Sessions *service.BeliefSessions
	Memory   *service.MemoryService
	Registry *prometheus.Registry

	limiter   *mw.RateLimiter
	metrics   *mw.MetricsCollector
	backend   string
	startTime time.Time
	logger    *zap.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewApp wires services, middleware and routes over the given stores.
func NewApp(stores Stores, logger *zap.Logger) *App {
	memorySvc := service.NewMemoryService(stores.Episodes, stores.Semantic, stores.Rules, service.MemoryConfig{
		MinEpisodes:         config.ChunkMinEpisodes(),
		ConfidenceThreshold: config.ChunkConfidenceThreshold(),
		DefaultLearningRate: config.RuleLearningRate(),
		RecallLimit:         config.RecallDefaultLimit(),
	}, logger.With(zap.String("component", "memory")))

	sessions := service.NewBeliefSessions(config.BeliefSessionTTL(), logger.With(zap.String("component", "beliefs")))
	sessions.SetInterval(config.BeliefSweepInterval())

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "belief_sessions_active",
			Help:      "Number of live belief sessions",
		}, func() float64 { return float64(sessions.Len()) }),
	)

	r := chi.NewRouter()
	app := &App{
		Router:    r,
		Sessions:  sessions,
		Memory:    memorySvc,
		Registry:  reg,
		limiter:   mw.NewRateLimiter(config.RateLimitRPS(), config.RateLimitBurst()),
		metrics:   mw.NewMetricsCollector(metricsNamespace, reg),
		backend:   stores.Backend,
		startTime: time.Now(),
		logger:    logger,
		stopCh:    make(chan struct{}),
	}

	sessionHandler := handlers.NewSessionHandler(sessions, logger)
	episodeHandler := handlers.NewEpisodeHandler(memorySvc, logger)
	semanticHandler := handlers.NewSemanticHandler(memorySvc, logger)
	ruleHandler := handlers.NewRuleHandler(memorySvc, logger)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(app.metrics.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(app.limiter.Middleware)

	r.Get("/health", app.healthHandler(stores.Pinger))
	r.Get("/metrics", app.metricsHandler())
	r.Handle("/metrics/prometheus", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", sessionHandler.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", sessionHandler.Get)
				r.Delete("/", sessionHandler.Delete)
				r.Post("/evidence", sessionHandler.AddEvidence)
				r.Get("/evidence", sessionHandler.ListEvidence)
				r.Get("/beliefs/{key}", sessionHandler.GetBelief)
				r.Get("/preferences", sessionHandler.Preferences)
				r.Get("/response-parameters", sessionHandler.ResponseParameters)
			})
		})

		r.Route("/agents/{agentID}", func(r chi.Router) {
			r.Post("/episodes", episodeHandler.Create)
			r.Get("/episodes", episodeHandler.Recall)
			r.Get("/semantic", semanticHandler.List)
			r.Get("/semantic/{concept}", semanticHandler.Get)
			r.Put("/rules", ruleHandler.Upsert)
			r.Get("/rules", ruleHandler.List)
			r.Post("/rules/best", ruleHandler.Best)
		})

		r.Route("/rules/{id}", func(r chi.Router) {
			r.Get("/", ruleHandler.Get)
			r.Post("/simulate", ruleHandler.Simulate)
			r.Post("/outcome", ruleHandler.Outcome)
			r.Put("/enabled", ruleHandler.SetEnabled)
		})
	})

	return app
}

// Start launches the session sweeper and rate limiter pruning.
func (app *App) Start() {
	app.Sessions.Start()

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		ticker := time.NewTicker(limiterIdleTTL)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := app.limiter.Prune(limiterIdleTTL); n > 0 {
					app.logger.Debug("pruned idle rate limiters", zap.Int("count", n))
				}
			case <-app.stopCh:
				return
			}
		}
	}()
}

// Stop halts background workers and waits for them to exit.
func (app *App) Stop() {
	close(app.stopCh)
	app.wg.Wait()
	app.Sessions.Stop()
}

func (app *App) healthHandler(pinger domain.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		build := buildconfig.Current()
		if pinger != nil {
			if err := pinger.Ping(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]any{
					"status": "error",
					"store":  app.backend,
					"error":  err.Error(),
				})
				return
			}
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"store":   app.backend,
			"version": build.Version,
			"commit":  build.Commit,
		})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)
		writeJSON(w, http.StatusOK, map[string]any{
			"uptime_seconds":  uptime.Seconds(),
			"uptime_human":    uptime.Round(time.Second).String(),
			"request_count":   app.metrics.RequestCount(),
			"error_count":     app.metrics.ErrorCount(),
			"belief_sessions": app.Sessions.Len(),
			"goroutines":      runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb": float64(memStats.Alloc) / 1024 / 1024,
				"sys_mb":   float64(memStats.Sys) / 1024 / 1024,
				"num_gc":   memStats.NumGC,
			},
			"go_version": runtime.Version(),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Ensure stores satisfy interfaces at compile time.
var (
	_ domain.EpisodeStore  = (*store.EpisodeStore)(nil)
	_ domain.SemanticStore = (*store.SemanticStore)(nil)
	_ domain.RuleStore     = (*store.RuleStore)(nil)
	_ domain.Pinger        = (*store.PoolPinger)(nil)
	_ domain.EpisodeStore  = (*inmem.EpisodeStore)(nil)
	_ domain.SemanticStore = (*inmem.SemanticStore)(nil)
	_ domain.RuleStore     = (*inmem.RuleStore)(nil)
	_ domain.Pinger        = (*inmem.Store)(nil)
)
