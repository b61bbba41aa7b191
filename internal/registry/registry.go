// Package registry tracks named model descriptors and persists them to a
// durable catalog file. The in-memory table is the source of truth for the
// process lifetime; the catalog is re-read only at construction.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"inferd/pkg/types"
)

// Lifecycle is the loader surface the registry drives when a model is
// unregistered or updated while resident. Both calls must be safe when the
// model is not resident.
type Lifecycle interface {
	Unload(name string) error
	Reload(ctx context.Context, name string) error
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	Type   types.ModelType
	Status types.ModelStatus
}

// Registry is the catalog of registered models. All descriptor mutations go
// through it and are persisted before they become visible.
type Registry struct {
	mu          sync.RWMutex
	models      map[string]*types.ModelDescriptor
	catalogPath string
	lifecycle   Lifecycle
	log         zerolog.Logger
	now         func() time.Time
}

// Open loads (or initializes) the catalog at catalogPath.
func Open(catalogPath string, log zerolog.Logger) (*Registry, error) {
	models, err := loadCatalog(catalogPath)
	if err != nil {
		return nil, err
	}
	r := &Registry{
		models:      models,
		catalogPath: catalogPath,
		log:         log.With().Str("component", "registry").Logger(),
		now:         time.Now,
	}
	r.log.Info().Int("models", len(models)).Str("catalog", catalogPath).Msg("catalog loaded")
	return r, nil
}

// SetLifecycle installs the loader hook. Must be called before serving;
// split from Open because the loader itself resolves artifacts through the
// registry.
func (r *Registry) SetLifecycle(l Lifecycle) {
	r.mu.Lock()
	r.lifecycle = l
	r.mu.Unlock()
}

// Register adds a new model descriptor with status registered.
func (r *Registry) Register(name string, t types.ModelType, version string, ref types.ArtifactRef, metrics map[string]float64) error {
	if name == "" {
		return fmt.Errorf("empty model name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.models[name]; ok {
		return ErrAlreadyRegistered(name)
	}
	now := r.now()
	d := &types.ModelDescriptor{
		Name:      name,
		Type:      t,
		Version:   version,
		Artifact:  ref,
		Metrics:   copyMetrics(metrics),
		Status:    types.StatusRegistered,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.models[name] = d
	if err := r.persistLocked(); err != nil {
		delete(r.models, name)
		return err
	}
	r.log.Info().Str("model", name).Str("version", version).Msg("model registered")
	return nil
}

// Unregister removes a model, unloading it first when resident.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	d, ok := r.models[name]
	lc := r.lifecycle
	r.mu.Unlock()
	if !ok {
		return ErrNotFound(name)
	}
	if lc != nil {
		if err := lc.Unload(name); err != nil {
			return fmt.Errorf("unload %s: %w", name, err)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.models, name)
	if err := r.persistLocked(); err != nil {
		r.models[name] = d
		return err
	}
	r.log.Info().Str("model", name).Msg("model unregistered")
	return nil
}

// Get returns a copy of the descriptor for name.
func (r *Registry) Get(name string) (types.ModelDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.models[name]
	if !ok {
		return types.ModelDescriptor{}, ErrNotFound(name)
	}
	return cloneDescriptor(d), nil
}

// List returns copies of descriptors matching the filter, sorted by name.
func (r *Registry) List(f Filter) []types.ModelDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.ModelDescriptor, 0, len(r.models))
	for _, d := range r.models {
		if f.Type != "" && d.Type != f.Type {
			continue
		}
		if f.Status != "" && d.Status != f.Status {
			continue
		}
		out = append(out, cloneDescriptor(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Update atomically swaps the artifact reference, bumps the version, and
// merges metrics. When the model is resident a loader reload is triggered
// after the swap; the old resident stays servable until the new one is
// ready.
func (r *Registry) Update(ctx context.Context, name string, ref types.ArtifactRef, version string, metrics map[string]float64) error {
	r.mu.Lock()
	d, ok := r.models[name]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound(name)
	}
	prev := cloneDescriptor(d)
	d.Artifact = ref
	d.Version = version
	for k, v := range metrics {
		if d.Metrics == nil {
			d.Metrics = make(map[string]float64)
		}
		d.Metrics[k] = v
	}
	d.UpdatedAt = r.now()
	if err := r.persistLocked(); err != nil {
		*d = prev
		r.mu.Unlock()
		return err
	}
	lc := r.lifecycle
	r.mu.Unlock()

	r.log.Info().Str("model", name).Str("version", version).Msg("model updated")
	if lc != nil {
		if err := lc.Reload(ctx, name); err != nil {
			return fmt.Errorf("reload %s: %w", name, err)
		}
	}
	return nil
}

// SetStatus records a lifecycle status transition for name. Used by the
// loader; persisted like every other mutation.
func (r *Registry) SetStatus(name string, status types.ModelStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.models[name]
	if !ok {
		return ErrNotFound(name)
	}
	if d.Status == status {
		return nil
	}
	prev := d.Status
	d.Status = status
	d.UpdatedAt = r.now()
	if err := r.persistLocked(); err != nil {
		d.Status = prev
		return err
	}
	return nil
}

// SelectBest picks the ready model of type t according to policy.
// Candidates missing the policy metric sort last; ties break on the
// lexicographically smallest name.
func (r *Registry) SelectBest(t types.ModelType, policy types.SelectionPolicy) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var candidates []*types.ModelDescriptor
	for _, d := range r.models {
		if d.Type != t || d.Status != types.StatusReady {
			continue
		}
		if policy.Kind == types.PolicyPinned && d.Version != policy.Version {
			continue
		}
		candidates = append(candidates, d)
	}
	if len(candidates) == 0 {
		return "", ErrNoCandidates(t)
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		switch policy.Kind {
		case types.PolicyFastest:
			la, aok := a.Metrics[types.MetricLatencyMS]
			lb, bok := b.Metrics[types.MetricLatencyMS]
			if aok != bok {
				return aok // metric present beats absent
			}
			if aok && la != lb {
				return la < lb
			}
		case types.PolicyMostAccurate:
			aa, aok := a.Metrics[types.MetricAccuracy]
			ab, bok := b.Metrics[types.MetricAccuracy]
			if aok != bok {
				return aok
			}
			if aok && aa != ab {
				return aa > ab
			}
		}
		return a.Name < b.Name
	})
	return candidates[0].Name, nil
}

// Len returns the number of registered models.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.models)
}

func (r *Registry) persistLocked() error {
	if r.catalogPath == "" {
		return nil
	}
	return saveCatalog(r.catalogPath, r.models)
}

func cloneDescriptor(d *types.ModelDescriptor) types.ModelDescriptor {
	out := *d
	out.Metrics = copyMetrics(d.Metrics)
	return out
}

func copyMetrics(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
