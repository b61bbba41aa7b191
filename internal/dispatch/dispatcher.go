// Package dispatch routes inference requests to resident models: selector
// resolution, result-cache lookup, single-flight computation, and a bounded
// worker pool for the invocations themselves.
package dispatch

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"inferd/internal/cache"
	"inferd/internal/loader"
	"inferd/internal/registry"
	"inferd/pkg/types"
)

// Dispatcher resolves and executes inference requests.
type Dispatcher struct {
	reg    *registry.Registry
	loader *loader.Loader
	cache  *cache.Cache

	sem   *semaphore.Weighted
	group singleflight.Group
	stats *Stats

	defaultDeadline time.Duration
	log             zerolog.Logger
}

// New constructs a Dispatcher with a worker pool of the given size.
func New(reg *registry.Registry, ld *loader.Loader, c *cache.Cache, workers int, defaultDeadline time.Duration, log zerolog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	return &Dispatcher{
		reg:             reg,
		loader:          ld,
		cache:           c,
		sem:             semaphore.NewWeighted(int64(workers)),
		stats:           NewStats(0.2),
		defaultDeadline: defaultDeadline,
		log:             log.With().Str("component", "dispatch").Logger(),
	}
}

// Stats exposes the per-model observation tracker.
func (d *Dispatcher) Stats() *Stats { return d.stats }

// Infer runs one request: resolve the selector, consult the cache, and on a
// miss compute under single-flight so concurrent identical requests share
// one invocation. A deadline bounds only the caller's wait; the computation
// itself continues and its eventual result is cached.
func (d *Dispatcher) Infer(ctx context.Context, req types.InferRequest) (types.InferenceResult, error) {
	name, err := d.resolve(req)
	if err != nil {
		return types.InferenceResult{}, err
	}

	key := cache.Key(name, req.Input, req.Parameters)
	if res, ok := d.cache.Get(key); ok {
		res.CacheHit = true
		d.stats.ObserveHit(name)
		inferRequestsTotal.WithLabelValues(name, "hit").Inc()
		return res, nil
	}

	wait := ctx
	if dl := d.deadline(req); dl > 0 {
		var cancel context.CancelFunc
		wait, cancel = context.WithTimeout(ctx, dl)
		defer cancel()
	}

	// Detach the computation from the caller so a timed-out request still
	// finishes, caches, and serves future hits.
	bg := context.WithoutCancel(ctx)
	ch := d.group.DoChan(key, func() (any, error) {
		return d.compute(bg, name, key, req)
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return types.InferenceResult{}, r.Err
		}
		return r.Val.(types.InferenceResult), nil
	case <-wait.Done():
		if ctx.Err() != nil {
			return types.InferenceResult{}, ctx.Err()
		}
		inferRequestsTotal.WithLabelValues(name, "timeout").Inc()
		d.log.Warn().Str("model", name).Msg("request deadline elapsed")
		return types.InferenceResult{}, ErrTimeout(name)
	}
}

// resolve maps the request's model selector to a concrete registered name.
func (d *Dispatcher) resolve(req types.InferRequest) (string, error) {
	if req.Model != "" {
		if _, err := d.reg.Get(req.Model); err != nil {
			return "", err
		}
		return req.Model, nil
	}
	if req.ModelType == "" {
		return "", ErrInvalidRequest("model or model_type is required")
	}
	policy := types.SelectionPolicy{Kind: req.Policy, Version: req.PinnedVersion}
	if policy.Kind == "" {
		policy.Kind = types.PolicyMostAccurate
	}
	return d.reg.SelectBest(req.ModelType, policy)
}

func (d *Dispatcher) deadline(req types.InferRequest) time.Duration {
	if req.DeadlineMs > 0 {
		return time.Duration(req.DeadlineMs) * time.Millisecond
	}
	return d.defaultDeadline
}

// compute performs the cache-miss path: ensure residency, invoke on the
// bounded pool, cache and record on success.
func (d *Dispatcher) compute(ctx context.Context, name, key string, req types.InferRequest) (types.InferenceResult, error) {
	res, err := d.loader.EnsureLoaded(ctx, name)
	if err != nil {
		d.stats.ObserveError(name)
		inferRequestsTotal.WithLabelValues(name, "error").Inc()
		return types.InferenceResult{}, err
	}
	defer res.Release()

	if err := d.sem.Acquire(ctx, 1); err != nil {
		d.stats.ObserveError(name)
		inferRequestsTotal.WithLabelValues(name, "error").Inc()
		return types.InferenceResult{}, err
	}
	workerInflight.Inc()
	start := time.Now()
	payload, err := res.Invoke(ctx, req.Input, req.Parameters)
	elapsed := time.Since(start)
	workerInflight.Dec()
	d.sem.Release(1)

	if err != nil {
		d.stats.ObserveError(name)
		inferRequestsTotal.WithLabelValues(name, "error").Inc()
		d.log.Error().Str("model", name).Err(err).Msg("invocation failed")
		return types.InferenceResult{}, ErrInvocation(name, err)
	}

	out := types.InferenceResult{
		Payload:       payload,
		ModelName:     name,
		ModelVersion:  res.Version,
		LatencyMs:     float64(elapsed) / float64(time.Millisecond),
		TimestampUnix: time.Now().Unix(),
	}
	d.cache.Put(key, out)
	d.stats.ObserveOK(name, out.LatencyMs)
	inferRequestsTotal.WithLabelValues(name, "miss").Inc()
	inferLatency.WithLabelValues(name).Observe(elapsed.Seconds())
	return out, nil
}
