package loader

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"inferd/pkg/types"
)

// Invoker is a resident model's opaque invocation capability. Kind-specific
// post-processing lives behind this interface, never in the dispatcher.
type Invoker interface {
	Invoke(ctx context.Context, input json.RawMessage, params map[string]any) (json.RawMessage, error)
	Close() error
}

// Adapter constructs invokers from fetched artifacts. Concrete runtimes
// (ONNX, TensorRT, remote runners) satisfy this interface.
type Adapter interface {
	Open(desc types.ModelDescriptor, artifactPath string) (Invoker, error)
}

// AdapterFunc adapts a function to the Adapter interface.
type AdapterFunc func(desc types.ModelDescriptor, artifactPath string) (Invoker, error)

func (f AdapterFunc) Open(desc types.ModelDescriptor, artifactPath string) (Invoker, error) {
	return f(desc, artifactPath)
}

// InvokerFunc adapts a function to the Invoker interface with a no-op Close.
type InvokerFunc func(ctx context.Context, input json.RawMessage, params map[string]any) (json.RawMessage, error)

func (f InvokerFunc) Invoke(ctx context.Context, input json.RawMessage, params map[string]any) (json.RawMessage, error) {
	return f(ctx, input, params)
}

func (f InvokerFunc) Close() error { return nil }

// stubClasses are the labels emitted by the stub adapter.
var stubClasses = []string{
	"engine", "transmission", "brake", "suspension", "exhaust",
	"radiator", "alternator", "starter", "battery", "fuel_pump",
}

// StubAdapter produces deterministic payloads derived from the input hash so
// the daemon serves end to end without a real runtime. Same payload for the
// same (input, params), which keeps cache semantics observable.
type StubAdapter struct{}

func (StubAdapter) Open(desc types.ModelDescriptor, artifactPath string) (Invoker, error) {
	switch desc.Type {
	case types.ModelTypeDetector:
		return stubInvoker{kind: types.ModelTypeDetector}, nil
	case types.ModelTypeClassifier:
		return stubInvoker{kind: types.ModelTypeClassifier}, nil
	default:
		return nil, fmt.Errorf("stub adapter: unsupported model type %q", desc.Type)
	}
}

type stubInvoker struct {
	kind types.ModelType
}

func (s stubInvoker) Invoke(ctx context.Context, input json.RawMessage, params map[string]any) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seed := stubSeed(input, params)
	switch s.kind {
	case types.ModelTypeDetector:
		n := int(seed%3) + 1
		dets := make([]map[string]any, 0, n)
		for i := 0; i < n; i++ {
			k := (seed + uint64(i)) % uint64(len(stubClasses))
			dets = append(dets, map[string]any{
				"label":      stubClasses[k],
				"confidence": 0.5 + float64((seed+uint64(i))%50)/100,
				"box":        []int{int(seed % 100), int(seed % 80), int(seed%100 + 64), int(seed%80 + 48)},
			})
		}
		return json.Marshal(map[string]any{"detections": dets})
	case types.ModelTypeClassifier:
		k := seed % uint64(len(stubClasses))
		return json.Marshal(map[string]any{
			"label":      stubClasses[k],
			"confidence": 0.5 + float64(seed%50)/100,
		})
	}
	return nil, fmt.Errorf("stub adapter: unsupported model type %q", s.kind)
}

func (s stubInvoker) Close() error { return nil }

func stubSeed(input json.RawMessage, params map[string]any) uint64 {
	h := sha256.New()
	h.Write(input)
	if len(params) > 0 {
		if b, err := json.Marshal(params); err == nil {
			h.Write(b)
		}
	}
	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8])
}
