package types

import "time"

// ModelType is the capability tag of a model.
type ModelType string

const (
	ModelTypeDetector   ModelType = "detector"
	ModelTypeClassifier ModelType = "classifier"
)

// ModelStatus is the lifecycle state recorded on a descriptor.
// Transitions: registered -> loading -> ready | failed; ready -> retired.
type ModelStatus string

const (
	StatusRegistered ModelStatus = "registered"
	StatusLoading    ModelStatus = "loading"
	StatusReady      ModelStatus = "ready"
	StatusFailed     ModelStatus = "failed"
	StatusRetired    ModelStatus = "retired"
)

// Metric keys consulted by policy-based selection.
const (
	MetricLatencyMS = "latency_ms"
	MetricAccuracy  = "accuracy"
)

// ArtifactRef locates a model artifact. URI is either a filesystem path or
// an http(s) URL; SHA256 is the optional hex content checksum.
type ArtifactRef struct {
	URI    string `json:"uri"`
	SHA256 string `json:"sha256,omitempty"`
}

// ModelDescriptor is the registry record for a named model.
type ModelDescriptor struct {
	// Unique model name within the registry.
	// example: detector-v1
	Name string `json:"name"`
	// Capability tag (detector, classifier).
	Type ModelType `json:"type"`
	// Semantic version string.
	// example: 1.0.0
	Version string `json:"version"`
	// Artifact location and checksum.
	Artifact ArtifactRef `json:"artifact"`
	// Performance metadata, e.g. latency_ms, accuracy.
	Metrics map[string]float64 `json:"metrics,omitempty"`
	// Current lifecycle status.
	Status    ModelStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// PolicyKind selects how SelectBest ranks ready candidates.
type PolicyKind string

const (
	PolicyFastest      PolicyKind = "fastest"
	PolicyMostAccurate PolicyKind = "most_accurate"
	PolicyPinned       PolicyKind = "pinned"
)

// SelectionPolicy is a policy kind plus the pinned version when Kind is
// PolicyPinned.
type SelectionPolicy struct {
	Kind    PolicyKind `json:"kind"`
	Version string     `json:"version,omitempty"`
}
