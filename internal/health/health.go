// Package health aggregates readiness and metric snapshots from the serving
// components for external health-check collaborators.
package health

import (
	"fmt"

	"inferd/internal/cache"
	"inferd/internal/dispatch"
	"inferd/internal/loader"
	"inferd/internal/orchestrator"
	"inferd/internal/registry"
	"inferd/pkg/types"
)

// Checker answers readiness and snapshot queries.
type Checker struct {
	reg      *registry.Registry
	required []types.ModelType

	stats  *dispatch.Stats
	cache  *cache.Cache
	loader *loader.Loader
	orch   *orchestrator.Orchestrator
}

// New builds a Checker. required lists the model types that must each have
// a ready model; empty means "at least one ready model of any type".
func New(reg *registry.Registry, required []string, stats *dispatch.Stats, c *cache.Cache, ld *loader.Loader, orch *orchestrator.Orchestrator) *Checker {
	req := make([]types.ModelType, 0, len(required))
	for _, r := range required {
		req = append(req, types.ModelType(r))
	}
	return &Checker{reg: reg, required: req, stats: stats, cache: c, loader: ld, orch: orch}
}

// Readiness reports whether the service can serve inference requests.
func (c *Checker) Readiness() types.Readiness {
	if len(c.required) == 0 {
		if len(c.reg.List(registry.Filter{Status: types.StatusReady})) == 0 {
			return types.Readiness{Ready: false, Reason: "no ready models"}
		}
		return types.Readiness{Ready: true}
	}
	for _, t := range c.required {
		if len(c.reg.List(registry.Filter{Type: t, Status: types.StatusReady})) == 0 {
			return types.Readiness{Ready: false, Reason: fmt.Sprintf("no ready model of type %s", t)}
		}
	}
	return types.Readiness{Ready: true}
}

// MetricsSnapshot returns counters and gauges aggregated across components.
func (c *Checker) MetricsSnapshot() map[string]any {
	return map[string]any{
		"models":        c.stats.Snapshot(),
		"cache_entries": c.cache.Len(),
		"residents":     len(c.loader.Residents()),
		"jobs_tracked":  c.orch.JobsTracked(),
	}
}
