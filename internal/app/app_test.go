package app

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/config"
	"inferd/internal/registry"
	"inferd/pkg/types"
)

func newTestApp(t *testing.T) (*App, config.Config) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Config{
		CatalogPath:     filepath.Join(dir, "catalog.json"),
		ArtifactDir:     filepath.Join(dir, "artifacts"),
		WorkerPoolSize:  2,
		CacheCapacity:   16,
		CacheTTLSeconds: 60,
	}
	a, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a, cfg
}

func registerModel(t *testing.T, a *App, name string, typ types.ModelType) {
	t.Helper()
	path := filepath.Join(t.TempDir(), name+".onnx")
	if err := os.WriteFile(path, []byte(name), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	err := a.Register(types.RegisterRequest{
		Name:     name,
		Type:     typ,
		Version:  "1.0.0",
		Artifact: types.ArtifactRef{URI: path},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
}

func TestApp_InferEndToEnd(t *testing.T) {
	a, _ := newTestApp(t)
	registerModel(t, a, "cls", types.ModelTypeClassifier)

	req := types.InferRequest{Model: "cls", Input: json.RawMessage(`{"image":"a.jpg"}`)}
	res, err := a.Infer(context.Background(), req)
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	if res.ModelName != "cls" || res.CacheHit {
		t.Fatalf("result = %+v", res)
	}
	// model became ready as a side effect of loading
	ready := a.ListModels(registry.Filter{Status: types.StatusReady})
	if len(ready) != 1 || ready[0].Name != "cls" {
		t.Fatalf("ready models = %v", ready)
	}
	// identical request hits the cache
	res2, err := a.Infer(context.Background(), req)
	if err != nil {
		t.Fatalf("second infer: %v", err)
	}
	if !res2.CacheHit {
		t.Fatalf("expected cache hit")
	}
}

func TestApp_BatchEndToEnd(t *testing.T) {
	a, _ := newTestApp(t)
	registerModel(t, a, "det", types.ModelTypeDetector)

	ack := a.SubmitBatch(context.Background(), []types.InferRequest{
		{Model: "det", Input: json.RawMessage(`{"n":1}`)},
		{Model: "ghost", Input: json.RawMessage(`{"n":2}`)},
	})
	if ack.JobID == "" || ack.StatusURL != "/batch/"+ack.JobID {
		t.Fatalf("ack = %+v", ack)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		job, ok := a.Job(ack.JobID)
		if !ok {
			t.Fatalf("job disappeared")
		}
		if job.Status == types.BatchPartial {
			if job.Items[0].Result == nil || job.Items[1].Error == "" {
				t.Fatalf("items = %+v", job.Items)
			}
			return
		}
		if job.Status == types.BatchCompleted || job.Status == types.BatchFailed {
			t.Fatalf("unexpected terminal status %s", job.Status)
		}
		if time.Now().After(deadline) {
			t.Fatalf("batch stuck in %s", job.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestApp_StreamEndToEnd(t *testing.T) {
	a, _ := newTestApp(t)
	registerModel(t, a, "det", types.ModelTypeDetector)

	items := a.Stream(context.Background(), types.StreamRequest{
		Model:     "det",
		Inputs:    []json.RawMessage{json.RawMessage(`{"n":0}`), json.RawMessage(`{"n":1}`), json.RawMessage(`{"n":2}`)},
		SkipEvery: 1,
	})
	var got []types.StreamItem
	for it := range items {
		got = append(got, it)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 items, got %d", len(got))
	}
	if got[0].Index != 0 || got[1].Index != 2 {
		t.Fatalf("indices = %d, %d", got[0].Index, got[1].Index)
	}
}

func TestApp_StatusAndReadiness(t *testing.T) {
	a, _ := newTestApp(t)
	if a.Readiness().Ready {
		t.Fatalf("empty app reported ready")
	}
	registerModel(t, a, "det", types.ModelTypeDetector)
	if _, err := a.Infer(context.Background(), types.InferRequest{Model: "det", Input: json.RawMessage(`{}`)}); err != nil {
		t.Fatalf("infer: %v", err)
	}
	if !a.Readiness().Ready {
		t.Fatalf("app with ready model reported not ready")
	}

	st := a.Status()
	if !st.Ready || st.ModelsTotal != 1 || len(st.Residents) != 1 {
		t.Fatalf("status = %+v", st)
	}
	if st.CacheEntries != 1 {
		t.Fatalf("cache entries = %d", st.CacheEntries)
	}
}

func TestApp_CatalogSurvivesRestart(t *testing.T) {
	a, cfg := newTestApp(t)
	registerModel(t, a, "det", types.ModelTypeDetector)
	if _, err := a.Infer(context.Background(), types.InferRequest{Model: "det", Input: json.RawMessage(`{}`)}); err != nil {
		t.Fatalf("infer: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	b, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("reopen app: %v", err)
	}
	defer b.Close()
	models := b.ListModels(registry.Filter{})
	if len(models) != 1 || models[0].Name != "det" {
		t.Fatalf("models after restart = %v", models)
	}
	// residency is process-local
	if models[0].Status != types.StatusRegistered {
		t.Fatalf("status after restart = %s", models[0].Status)
	}
	if len(b.Loader().Residents()) != 0 {
		t.Fatalf("residents leaked across restart")
	}
}

func TestApp_UpdateReloadsResident(t *testing.T) {
	a, _ := newTestApp(t)
	registerModel(t, a, "det", types.ModelTypeDetector)
	if _, err := a.Infer(context.Background(), types.InferRequest{Model: "det", Input: json.RawMessage(`{}`)}); err != nil {
		t.Fatalf("infer: %v", err)
	}

	newPath := filepath.Join(t.TempDir(), "det-2.onnx")
	if err := os.WriteFile(newPath, []byte("v2"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	err := a.Update(context.Background(), "det", types.UpdateRequest{
		Artifact: types.ArtifactRef{URI: newPath},
		Version:  "2.0.0",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	residents := a.Loader().Residents()
	if len(residents) != 1 || residents[0].Version != "2.0.0" {
		t.Fatalf("residents after update = %v", residents)
	}
}
