package types

import "encoding/json"

// InferRequest is a single inference request. Exactly one of Model or
// (ModelType + Policy) selects the target model.
type InferRequest struct {
	// Explicit model name. Takes precedence over policy selection.
	// example: detector-v1
	Model string `json:"model,omitempty"`
	// Model type for policy-based selection when Model is empty.
	// example: detector
	ModelType ModelType `json:"model_type,omitempty"`
	// Selection policy: fastest | most_accurate | pinned.
	// example: fastest
	Policy PolicyKind `json:"policy,omitempty"`
	// Version to pin when Policy is pinned.
	// example: 1.2.0
	PinnedVersion string `json:"pinned_version,omitempty"`
	// Opaque input payload; the serving layer never inspects it.
	Input json.RawMessage `json:"input"`
	// Optional model parameters (thresholds, top_k, ...).
	Parameters map[string]any `json:"parameters,omitempty"`
	// Per-request deadline in milliseconds; 0 uses the server default.
	// example: 2000
	DeadlineMs int64 `json:"deadline_ms,omitempty"`
}

// InferenceResult is the outcome of a successful inference.
type InferenceResult struct {
	// Opaque structured output from the model.
	Payload json.RawMessage `json:"payload"`
	// Name of the model that produced the payload.
	ModelName string `json:"model_name"`
	// Version of the model that produced the payload.
	ModelVersion string `json:"model_version"`
	// Wall-clock latency of the producing invocation in milliseconds.
	LatencyMs float64 `json:"latency_ms"`
	// Completion time in unix seconds.
	TimestampUnix int64 `json:"timestamp_unix"`
	// True when the payload was served from the result cache.
	CacheHit bool `json:"cache_hit"`
}

// BatchStatus is the lifecycle state of a batch job.
type BatchStatus string

const (
	BatchPending   BatchStatus = "pending"
	BatchRunning   BatchStatus = "running"
	BatchCompleted BatchStatus = "completed"
	BatchPartial   BatchStatus = "partial"
	BatchFailed    BatchStatus = "failed"
)

// BatchItem holds the per-input outcome of a batch job, in input order.
// Exactly one of Result or Error is set.
type BatchItem struct {
	Result *InferenceResult `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// BatchJob is a snapshot of a submitted batch.
type BatchJob struct {
	JobID     string      `json:"job_id"`
	Status    BatchStatus `json:"status"`
	Items     []BatchItem `json:"items,omitempty"`
	CreatedAt int64       `json:"created_at_unix"`
	// Zero until the job finishes.
	CompletedAt int64 `json:"completed_at_unix,omitempty"`
}

// BatchRequest is the POST /batch payload.
type BatchRequest struct {
	Requests []InferRequest `json:"requests"`
}

// BatchSubmitResponse acknowledges an accepted batch job.
type BatchSubmitResponse struct {
	JobID     string      `json:"job_id"`
	Status    BatchStatus `json:"status"`
	StatusURL string      `json:"status_url"`
}

// StreamRequest is the POST /stream payload: one model selector applied to
// an ordered sequence of inputs.
type StreamRequest struct {
	Model         string            `json:"model,omitempty"`
	ModelType     ModelType         `json:"model_type,omitempty"`
	Policy        PolicyKind        `json:"policy,omitempty"`
	PinnedVersion string            `json:"pinned_version,omitempty"`
	Inputs        []json.RawMessage `json:"inputs"`
	Parameters    map[string]any    `json:"parameters,omitempty"`
	// Process every (skip_every+1)-th input; 0 processes all.
	SkipEvery int `json:"skip_every,omitempty"`
}

// StreamItem is one NDJSON line of a stream response. Index is the position
// in the source sequence; exactly one of Result or Error is set.
type StreamItem struct {
	Index  int              `json:"index"`
	Result *InferenceResult `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// RegisterRequest is the POST /models payload.
type RegisterRequest struct {
	Name     string             `json:"name"`
	Type     ModelType          `json:"type"`
	Version  string             `json:"version"`
	Artifact ArtifactRef        `json:"artifact"`
	Metrics  map[string]float64 `json:"metrics,omitempty"`
}

// UpdateRequest is the PUT /models/{name} payload.
type UpdateRequest struct {
	Artifact ArtifactRef        `json:"artifact"`
	Version  string             `json:"version"`
	Metrics  map[string]float64 `json:"metrics,omitempty"`
}

// ModelsResponse wraps the list of descriptors returned by GET /models.
type ModelsResponse struct {
	Models []ModelDescriptor `json:"models"`
}

// Readiness is returned by GET /readyz.
type Readiness struct {
	Ready  bool   `json:"ready"`
	Reason string `json:"reason,omitempty"`
}

// ModelStats summarizes dispatcher observations for one model.
type ModelStats struct {
	Requests  uint64  `json:"requests"`
	Failures  uint64  `json:"failures"`
	CacheHits uint64  `json:"cache_hits"`
	EWMAMs    float64 `json:"ewma_ms"`
	MinMs     float64 `json:"min_ms"`
	MaxMs     float64 `json:"max_ms"`
	LastMs    float64 `json:"last_ms"`
}

// ResidentStatus describes one loaded model instance for /status.
type ResidentStatus struct {
	ModelName string `json:"model_name"`
	Version   string `json:"version"`
	Device    string `json:"device"`
	LoadedAt  int64  `json:"loaded_at_unix"`
	Refs      int    `json:"refs"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	Ready          bool                  `json:"ready"`
	Reason         string                `json:"reason,omitempty"`
	ModelsTotal    int                   `json:"models_total"`
	Residents      []ResidentStatus      `json:"residents"`
	Stats          map[string]ModelStats `json:"stats,omitempty"`
	CacheEntries   int                   `json:"cache_entries"`
	JobsTracked    int                   `json:"jobs_tracked"`
	UptimeSeconds  int64                 `json:"uptime_seconds"`
	ServerTimeUnix int64                 `json:"server_time_unix"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: model not found: detector-v1
	Error string `json:"error" example:"model not found: detector-v1"`
	// HTTP status code.
	// example: 404
	Code int `json:"code" example:"404"`
}
