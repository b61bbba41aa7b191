// Package loader brings registered models into a resident, invokable state.
// Per model name: at most one load in flight at any time; concurrent
// EnsureLoaded calls fan in to the in-flight load. Resident handles are
// refcounted so a reload or unload never invalidates an invocation already
// in progress.
package loader

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"inferd/internal/artifact"
	"inferd/pkg/types"
)

// Catalog is the registry surface the loader resolves models through and
// reports status transitions to.
type Catalog interface {
	Get(name string) (types.ModelDescriptor, error)
	SetStatus(name string, status types.ModelStatus) error
}

// inflightLoad tracks a single in-progress load; waiters block on done.
type inflightLoad struct {
	done chan struct{}
	res  *Resident
	err  error
}

// Loader owns the resident-model table.
type Loader struct {
	mu       sync.Mutex
	resident map[string]*Resident
	loads    map[string]*inflightLoad

	store   *artifact.Store
	cat     Catalog
	adapter Adapter
	pub     EventPublisher
	log     zerolog.Logger
}

// Option customizes a Loader.
type Option func(*Loader)

// WithEventPublisher installs a lifecycle event publisher.
func WithEventPublisher(p EventPublisher) Option {
	return func(l *Loader) {
		if p != nil {
			l.pub = p
		}
	}
}

// New constructs a Loader over the given artifact store, catalog, and
// runtime adapter.
func New(store *artifact.Store, cat Catalog, adapter Adapter, log zerolog.Logger, opts ...Option) *Loader {
	l := &Loader{
		resident: make(map[string]*Resident),
		loads:    make(map[string]*inflightLoad),
		store:    store,
		cat:      cat,
		adapter:  adapter,
		pub:      noopPublisher{},
		log:      log.With().Str("component", "loader").Logger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// EnsureLoaded returns a ready resident handle for name, loading it if
// necessary. The returned handle has a reference acquired; the caller must
// Release it after invoking.
func (l *Loader) EnsureLoaded(ctx context.Context, name string) (*Resident, error) {
	for {
		l.mu.Lock()
		if res := l.resident[name]; res != nil && res.acquire() {
			l.mu.Unlock()
			return res, nil
		}
		if fl := l.loads[name]; fl != nil {
			l.mu.Unlock()
			select {
			case <-fl.done:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			if fl.err != nil {
				return nil, fl.err
			}
			if fl.res.acquire() {
				return fl.res, nil
			}
			// loaded then immediately retired; retry from scratch
			continue
		}
		fl := &inflightLoad{done: make(chan struct{})}
		l.loads[name] = fl
		l.mu.Unlock()

		res, err := l.load(ctx, name)
		l.mu.Lock()
		delete(l.loads, name)
		if err == nil {
			l.resident[name] = res
		}
		fl.res, fl.err = res, err
		l.mu.Unlock()
		close(fl.done)
		if err != nil {
			return nil, err
		}
		if res.acquire() {
			return res, nil
		}
	}
}

// load performs one artifact fetch + adapter open, driving registry status.
// Callers serialize per name through the inflight table.
func (l *Loader) load(ctx context.Context, name string) (*Resident, error) {
	start := time.Now()
	desc, err := l.cat.Get(name)
	if err != nil {
		return nil, err
	}
	l.pub.Publish(Event{Name: "load_start", Model: name, Fields: map[string]any{"version": desc.Version}})
	l.setStatus(name, types.StatusLoading)

	path, err := l.store.Fetch(ctx, desc.Artifact)
	if err != nil {
		return nil, l.failLoad(name, err)
	}
	inv, err := l.adapter.Open(desc, path)
	if err != nil {
		return nil, l.failLoad(name, err)
	}
	res := &Resident{
		Name:     name,
		Version:  desc.Version,
		Device:   deviceOf(inv),
		LoadedAt: time.Now(),
		invoker:  inv,
	}
	l.setStatus(name, types.StatusReady)
	dur := time.Since(start)
	l.log.Info().Str("model", name).Str("version", desc.Version).Dur("dur", dur).Msg("model loaded")
	l.pub.Publish(Event{Name: "load_ready", Model: name, Fields: map[string]any{"dur_ms": int(dur / time.Millisecond)}})
	return res, nil
}

func (l *Loader) failLoad(name string, cause error) error {
	l.setStatus(name, types.StatusFailed)
	l.log.Error().Str("model", name).Err(cause).Msg("model load failed")
	l.pub.Publish(Event{Name: "load_failed", Model: name, Fields: map[string]any{"error": cause.Error()}})
	return ErrLoad(name, cause)
}

func (l *Loader) setStatus(name string, status types.ModelStatus) {
	if err := l.cat.SetStatus(name, status); err != nil {
		l.log.Warn().Str("model", name).Str("status", string(status)).Err(err).Msg("status update failed")
	}
}

// Unload retires the resident handle for name. Idempotent: unloading an
// absent model returns nil.
func (l *Loader) Unload(name string) error {
	l.mu.Lock()
	res := l.resident[name]
	delete(l.resident, name)
	l.mu.Unlock()
	if res == nil {
		return nil
	}
	err := res.retire()
	l.setStatus(name, types.StatusRegistered)
	l.pub.Publish(Event{Name: "unload", Model: name, Fields: map[string]any{}})
	return err
}

// Reload loads the current descriptor's artifact into a fresh handle and
// swaps it in, retiring the old one. The old handle stays servable until the
// replacement is ready; no-op when the model is not resident.
func (l *Loader) Reload(ctx context.Context, name string) error {
	for {
		l.mu.Lock()
		if fl := l.loads[name]; fl != nil {
			l.mu.Unlock()
			select {
			case <-fl.done:
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		if l.resident[name] == nil {
			l.mu.Unlock()
			return nil
		}
		fl := &inflightLoad{done: make(chan struct{})}
		l.loads[name] = fl
		l.mu.Unlock()

		res, err := l.load(ctx, name)
		l.mu.Lock()
		var old *Resident
		if err == nil {
			old = l.resident[name]
			l.resident[name] = res
		}
		delete(l.loads, name)
		fl.res, fl.err = res, err
		l.mu.Unlock()
		close(fl.done)
		if err != nil {
			return err
		}
		if old != nil {
			_ = old.retire()
		}
		l.pub.Publish(Event{Name: "reload_ready", Model: name, Fields: map[string]any{"version": res.Version}})
		return nil
	}
}

// Residents returns a snapshot of loaded instances sorted by model name.
func (l *Loader) Residents() []types.ResidentStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]types.ResidentStatus, 0, len(l.resident))
	for _, res := range l.resident {
		out = append(out, types.ResidentStatus{
			ModelName: res.Name,
			Version:   res.Version,
			Device:    res.Device,
			LoadedAt:  res.LoadedAt.Unix(),
			Refs:      res.Refs(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModelName < out[j].ModelName })
	return out
}

// Close unloads every resident model and aggregates failures.
func (l *Loader) Close() error {
	l.mu.Lock()
	names := make([]string, 0, len(l.resident))
	for name := range l.resident {
		names = append(names, name)
	}
	l.mu.Unlock()
	var result *multierror.Error
	for _, name := range names {
		if err := l.Unload(name); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// deviceOf asks the invoker for its device tag when it exposes one.
func deviceOf(inv Invoker) string {
	if d, ok := inv.(interface{ Device() string }); ok {
		return d.Device()
	}
	return "cpu"
}
