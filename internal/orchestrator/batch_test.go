package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"inferd/pkg/types"
)

// scriptedInferrer fails requests whose input contains "bad".
type scriptedInferrer struct{}

func (scriptedInferrer) Infer(ctx context.Context, req types.InferRequest) (types.InferenceResult, error) {
	if strings.Contains(string(req.Input), "bad") {
		return types.InferenceResult{}, errors.New("decode failure")
	}
	return types.InferenceResult{
		Payload:   json.RawMessage(fmt.Sprintf(`{"echo":%s}`, req.Input)),
		ModelName: "det",
	}, nil
}

func waitDone(t *testing.T, j *Job) types.BatchJob {
	t.Helper()
	select {
	case <-j.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("batch did not finish")
	}
	return j.Snapshot()
}

func inputs(raw ...string) []types.InferRequest {
	out := make([]types.InferRequest, len(raw))
	for i, r := range raw {
		out[i] = types.InferRequest{Model: "det", Input: json.RawMessage(r)}
	}
	return out
}

func TestSubmitBatch_AllSucceed(t *testing.T) {
	o := New(scriptedInferrer{}, time.Minute, 2, zerolog.Nop())
	j := o.SubmitBatch(context.Background(), inputs(`{"n":1}`, `{"n":2}`, `{"n":3}`))
	snap := waitDone(t, j)

	if snap.Status != types.BatchCompleted {
		t.Fatalf("status = %s", snap.Status)
	}
	if len(snap.Items) != 3 {
		t.Fatalf("items = %d", len(snap.Items))
	}
	// results keep input order
	for i, it := range snap.Items {
		if it.Result == nil {
			t.Fatalf("item %d missing result", i)
		}
		want := fmt.Sprintf(`{"echo":{"n":%d}}`, i+1)
		if string(it.Result.Payload) != want {
			t.Fatalf("item %d payload = %s, want %s", i, it.Result.Payload, want)
		}
	}
	if snap.CompletedAt == 0 {
		t.Fatalf("completed_at not set")
	}
}

func TestSubmitBatch_PartialFailure(t *testing.T) {
	o := New(scriptedInferrer{}, time.Minute, 0, zerolog.Nop())
	j := o.SubmitBatch(context.Background(), inputs(`{"n":1}`, `{"bad":true}`, `{"n":3}`))
	snap := waitDone(t, j)

	if snap.Status != types.BatchPartial {
		t.Fatalf("status = %s", snap.Status)
	}
	if snap.Items[0].Result == nil || snap.Items[2].Result == nil {
		t.Fatalf("successful items missing results: %+v", snap.Items)
	}
	if snap.Items[1].Error == "" || snap.Items[1].Result != nil {
		t.Fatalf("failed item not recorded as error: %+v", snap.Items[1])
	}
}

func TestSubmitBatch_AllFail(t *testing.T) {
	o := New(scriptedInferrer{}, time.Minute, 1, zerolog.Nop())
	j := o.SubmitBatch(context.Background(), inputs(`{"bad":1}`, `{"bad":2}`))
	snap := waitDone(t, j)
	if snap.Status != types.BatchFailed {
		t.Fatalf("status = %s", snap.Status)
	}
}

func TestSubmitBatch_SurvivesSubmitterCancel(t *testing.T) {
	o := New(scriptedInferrer{}, time.Minute, 1, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	j := o.SubmitBatch(ctx, inputs(`{"n":1}`))
	cancel()
	snap := waitDone(t, j)
	if snap.Status != types.BatchCompleted {
		t.Fatalf("status = %s after submitter cancel", snap.Status)
	}
}

func TestJob_Lookup(t *testing.T) {
	o := New(scriptedInferrer{}, time.Minute, 1, zerolog.Nop())
	j := o.SubmitBatch(context.Background(), inputs(`{"n":1}`))
	waitDone(t, j)

	got, ok := o.Job(j.ID())
	if !ok {
		t.Fatalf("job not found")
	}
	if got.JobID != j.ID() {
		t.Fatalf("job id = %s", got.JobID)
	}
	if _, ok := o.Job("no-such-job"); ok {
		t.Fatalf("unknown job reported as found")
	}
}

func TestRetention_SweepsFinishedJobs(t *testing.T) {
	o := New(scriptedInferrer{}, time.Minute, 1, zerolog.Nop())
	base := time.Now()
	o.now = func() time.Time { return base }

	j := o.SubmitBatch(context.Background(), inputs(`{"n":1}`))
	waitDone(t, j)
	if o.JobsTracked() != 1 {
		t.Fatalf("jobs tracked = %d", o.JobsTracked())
	}

	o.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, ok := o.Job(j.ID()); ok {
		t.Fatalf("expired job still retrievable")
	}
	if o.JobsTracked() != 0 {
		t.Fatalf("expired job not swept")
	}
}

func TestSnapshot_IsACopy(t *testing.T) {
	o := New(scriptedInferrer{}, time.Minute, 1, zerolog.Nop())
	j := o.SubmitBatch(context.Background(), inputs(`{"n":1}`, `{"n":2}`))
	waitDone(t, j)
	snap := j.Snapshot()
	snap.Items[0] = types.BatchItem{Error: "mutated"}
	if j.Snapshot().Items[0].Error == "mutated" {
		t.Fatalf("snapshot shares backing array with job")
	}
}
