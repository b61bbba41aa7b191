// Package httpapi exposes the serving layer over HTTP. Inputs and outputs
// are opaque JSON payloads; decoding beyond the envelope belongs to callers.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"inferd/internal/registry"
	"inferd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	ListModels(f registry.Filter) []types.ModelDescriptor
	Register(req types.RegisterRequest) error
	Unregister(name string) error
	Update(ctx context.Context, name string, req types.UpdateRequest) error
	Infer(ctx context.Context, req types.InferRequest) (types.InferenceResult, error)
	SubmitBatch(ctx context.Context, reqs []types.InferRequest) types.BatchSubmitResponse
	Job(id string) (types.BatchJob, bool)
	Stream(ctx context.Context, req types.StreamRequest) <-chan types.StreamItem
	Readiness() types.Readiness
	Status() types.StatusResponse
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Log-Level"},
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
		f := registry.Filter{
			Type:   types.ModelType(r.URL.Query().Get("type")),
			Status: types.ModelStatus(r.URL.Query().Get("status")),
		}
		writeJSON(w, http.StatusOK, types.ModelsResponse{Models: svc.ListModels(f)})
	})

	r.Post("/models", func(w http.ResponseWriter, r *http.Request) {
		var req types.RegisterRequest
		if !decodeJSONBody(w, r, &req) {
			return
		}
		if req.Name == "" || req.Type == "" || req.Artifact.URI == "" {
			writeJSONError(w, http.StatusBadRequest, "name, type, and artifact.uri are required")
			return
		}
		if err := svc.Register(req); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusCreated)
	})

	r.Put("/models/{name}", func(w http.ResponseWriter, r *http.Request) {
		var req types.UpdateRequest
		if !decodeJSONBody(w, r, &req) {
			return
		}
		if req.Artifact.URI == "" || req.Version == "" {
			writeJSONError(w, http.StatusBadRequest, "artifact.uri and version are required")
			return
		}
		joined, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		if err := svc.Update(joined, chi.URLParam(r, "name"), req); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Delete("/models/{name}", func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Unregister(chi.URLParam(r, "name")); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Post("/infer", func(w http.ResponseWriter, r *http.Request) {
		var req types.InferRequest
		if !decodeJSONBody(w, r, &req) {
			return
		}
		if len(req.Input) == 0 {
			writeJSONError(w, http.StatusBadRequest, "input is required")
			return
		}
		lvl := requestLogLevel(r)
		start := time.Now()
		if lvl >= LevelInfo && zlog != nil {
			z := zlog.Info().Str("path", r.URL.Path).Str("model", req.Model)
			if rid := middleware.GetReqID(r.Context()); rid != "" {
				z = z.Str("request_id", rid)
			}
			z.Msg("infer start")
		}
		// Join server base context with request context so shutdown cancels work too.
		joined, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		res, err := svc.Infer(joined, req)
		if err != nil {
			// If context was canceled (client disconnect), just return.
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			status := statusForError(err)
			writeJSONError(w, status, err.Error())
			if lvl >= LevelInfo && zlog != nil {
				z := zlog.Info().Int("status", status).Dur("dur", time.Since(start))
				if rid := middleware.GetReqID(r.Context()); rid != "" {
					z = z.Str("request_id", rid)
				}
				z.Err(err).Msg("infer end")
			}
			return
		}
		writeJSON(w, http.StatusOK, res)
		if lvl >= LevelInfo && zlog != nil {
			z := zlog.Info().Int("status", 200).Bool("cache_hit", res.CacheHit).Dur("dur", time.Since(start))
			if rid := middleware.GetReqID(r.Context()); rid != "" {
				z = z.Str("request_id", rid)
			}
			z.Msg("infer end")
		}
	})

	r.Post("/batch", func(w http.ResponseWriter, r *http.Request) {
		var req types.BatchRequest
		if !decodeJSONBody(w, r, &req) {
			return
		}
		if len(req.Requests) == 0 {
			writeJSONError(w, http.StatusBadRequest, "requests must not be empty")
			return
		}
		joined, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		writeJSON(w, http.StatusAccepted, svc.SubmitBatch(joined, req.Requests))
	})

	r.Get("/batch/{jobID}", func(w http.ResponseWriter, r *http.Request) {
		job, ok := svc.Job(chi.URLParam(r, "jobID"))
		if !ok {
			writeJSONError(w, http.StatusNotFound, "job not found")
			return
		}
		writeJSON(w, http.StatusOK, job)
	})

	r.Post("/stream", func(w http.ResponseWriter, r *http.Request) {
		var req types.StreamRequest
		if !decodeJSONBody(w, r, &req) {
			return
		}
		if len(req.Inputs) == 0 {
			writeJSONError(w, http.StatusBadRequest, "inputs must not be empty")
			return
		}
		if v := r.URL.Query().Get("skip_every"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				req.SkipEvery = n
			}
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		var flush func()
		if f, ok := w.(http.Flusher); ok {
			flush = f.Flush
		}
		joined, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		enc := json.NewEncoder(w)
		for item := range svc.Stream(joined, req) {
			if err := enc.Encode(item); err != nil {
				return
			}
			if flush != nil {
				flush()
			}
		}
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		rd := svc.Readiness()
		status := http.StatusOK
		if !rd.Ready {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, rd)
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// decodeJSONBody enforces the JSON content type and size cap, decoding into
// dst. Writes the error response and returns false on failure.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && zlog != nil {
		zlog.Error().Err(err).Msg("failed to encode response")
	}
}
