package loader

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Resident is a loaded model instance. It is never mutated after becoming
// ready; the loader replaces the table entry on reload instead. In-flight
// invocations hold a reference so retirement waits for them.
type Resident struct {
	Name     string
	Version  string
	Device   string
	LoadedAt time.Time

	invoker Invoker

	mu      sync.Mutex
	refs    int
	retired bool
	closed  bool
}

// Invoke runs the model on the given input.
func (r *Resident) Invoke(ctx context.Context, input json.RawMessage, params map[string]any) (json.RawMessage, error) {
	return r.invoker.Invoke(ctx, input, params)
}

// acquire takes a reference; returns false once the handle is retired.
func (r *Resident) acquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.retired {
		return false
	}
	r.refs++
	return true
}

// Release drops a reference taken by EnsureLoaded. The underlying invoker is
// closed when a retired handle drops its last reference.
func (r *Resident) Release() {
	r.mu.Lock()
	if r.refs > 0 {
		r.refs--
	}
	shouldClose := r.retired && r.refs == 0 && !r.closed
	if shouldClose {
		r.closed = true
	}
	r.mu.Unlock()
	if shouldClose {
		_ = r.invoker.Close()
	}
}

// retire marks the handle unavailable for new acquisitions and closes the
// invoker immediately when nothing is in flight.
func (r *Resident) retire() error {
	r.mu.Lock()
	r.retired = true
	shouldClose := r.refs == 0 && !r.closed
	if shouldClose {
		r.closed = true
	}
	r.mu.Unlock()
	if shouldClose {
		return r.invoker.Close()
	}
	return nil
}

// Refs returns the current reference count.
func (r *Resident) Refs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refs
}
