// Package app wires the serving components together behind the HTTP API
// surface. It owns composition order and shutdown, nothing else.
package app

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/artifact"
	"inferd/internal/cache"
	"inferd/internal/config"
	"inferd/internal/dispatch"
	"inferd/internal/health"
	"inferd/internal/loader"
	"inferd/internal/orchestrator"
	"inferd/internal/registry"
	"inferd/pkg/types"
)

// App is the composed service. It implements httpapi.Service.
type App struct {
	cfg config.Config
	log zerolog.Logger

	store  *artifact.Store
	reg    *registry.Registry
	loader *loader.Loader
	cache  *cache.Cache
	disp   *dispatch.Dispatcher
	orch   *orchestrator.Orchestrator
	health *health.Checker

	startedAt time.Time
}

// Option customizes App construction.
type Option func(*options)

type options struct {
	adapter loader.Adapter
	pub     loader.EventPublisher
}

// WithAdapter replaces the default stub runtime adapter.
func WithAdapter(a loader.Adapter) Option {
	return func(o *options) {
		if a != nil {
			o.adapter = a
		}
	}
}

// WithEventPublisher installs a model lifecycle event publisher.
func WithEventPublisher(p loader.EventPublisher) Option {
	return func(o *options) { o.pub = p }
}

// New composes the service from configuration. The catalog is read here, so
// registered models survive restarts; residency does not, models return to
// status registered and are loaded on first use.
func New(cfg config.Config, log zerolog.Logger, opts ...Option) (*App, error) {
	cfg.Normalize()
	if cfg.CatalogPath == "" {
		cfg.CatalogPath = "data/catalog.json"
	}
	if cfg.ArtifactDir == "" {
		cfg.ArtifactDir = "data/artifacts"
	}

	o := options{adapter: loader.StubAdapter{}}
	for _, opt := range opts {
		opt(&o)
	}

	store, err := artifact.New(cfg.ArtifactDir, log)
	if err != nil {
		return nil, err
	}
	reg, err := registry.Open(cfg.CatalogPath, log)
	if err != nil {
		return nil, err
	}

	var ldOpts []loader.Option
	if o.pub != nil {
		ldOpts = append(ldOpts, loader.WithEventPublisher(o.pub))
	}
	ld := loader.New(store, reg, o.adapter, log, ldOpts...)
	reg.SetLifecycle(ld)

	c := cache.New(cfg.CacheCapacity, cfg.CacheTTL())
	disp := dispatch.New(reg, ld, c, cfg.WorkerPoolSize, cfg.DefaultDeadline(), log)
	orch := orchestrator.New(disp, cfg.JobRetention(), cfg.WorkerPoolSize, log)
	chk := health.New(reg, cfg.RequiredTypes, disp.Stats(), c, ld, orch)

	return &App{
		cfg:       cfg,
		log:       log.With().Str("component", "app").Logger(),
		store:     store,
		reg:       reg,
		loader:    ld,
		cache:     c,
		disp:      disp,
		orch:      orch,
		health:    chk,
		startedAt: time.Now(),
	}, nil
}

// Registry exposes the catalog for admin tooling and tests.
func (a *App) Registry() *registry.Registry { return a.reg }

// Loader exposes the resident table for tests.
func (a *App) Loader() *loader.Loader { return a.loader }

// ListModels returns registered descriptors matching the filter.
func (a *App) ListModels(f registry.Filter) []types.ModelDescriptor {
	return a.reg.List(f)
}

// Register adds a model to the catalog.
func (a *App) Register(req types.RegisterRequest) error {
	return a.reg.Register(req.Name, req.Type, req.Version, req.Artifact, req.Metrics)
}

// Unregister removes a model, unloading it first when resident.
func (a *App) Unregister(name string) error {
	return a.reg.Unregister(name)
}

// Update swaps a model's artifact and version, reloading when resident.
func (a *App) Update(ctx context.Context, name string, req types.UpdateRequest) error {
	return a.reg.Update(ctx, name, req.Artifact, req.Version, req.Metrics)
}

// Infer dispatches one inference request.
func (a *App) Infer(ctx context.Context, req types.InferRequest) (types.InferenceResult, error) {
	return a.disp.Infer(ctx, req)
}

// SubmitBatch starts an asynchronous batch job.
func (a *App) SubmitBatch(ctx context.Context, reqs []types.InferRequest) types.BatchSubmitResponse {
	j := a.orch.SubmitBatch(ctx, reqs)
	return types.BatchSubmitResponse{
		JobID:     j.ID(),
		Status:    types.BatchPending,
		StatusURL: "/batch/" + j.ID(),
	}
}

// Job returns a snapshot of the batch job with the given id.
func (a *App) Job(id string) (types.BatchJob, bool) {
	return a.orch.Job(id)
}

// Stream processes the request's inputs in order, emitting one item per
// input that is not skipped.
func (a *App) Stream(ctx context.Context, req types.StreamRequest) <-chan types.StreamItem {
	source := make(chan json.RawMessage, len(req.Inputs))
	for _, in := range req.Inputs {
		source <- in
	}
	close(source)
	base := types.InferRequest{
		Model:         req.Model,
		ModelType:     req.ModelType,
		Policy:        req.Policy,
		PinnedVersion: req.PinnedVersion,
		Parameters:    req.Parameters,
	}
	return a.orch.Stream(ctx, source, base, req.SkipEvery)
}

// Readiness reports whether the service can serve inference requests.
func (a *App) Readiness() types.Readiness {
	return a.health.Readiness()
}

// Status builds the full operational snapshot.
func (a *App) Status() types.StatusResponse {
	rd := a.health.Readiness()
	now := time.Now()
	return types.StatusResponse{
		Ready:          rd.Ready,
		Reason:         rd.Reason,
		ModelsTotal:    a.reg.Len(),
		Residents:      a.loader.Residents(),
		Stats:          a.disp.Stats().Snapshot(),
		CacheEntries:   a.cache.Len(),
		JobsTracked:    a.orch.JobsTracked(),
		UptimeSeconds:  int64(now.Sub(a.startedAt) / time.Second),
		ServerTimeUnix: now.Unix(),
	}
}

// Close unloads every resident model.
func (a *App) Close() error {
	return a.loader.Close()
}
