// Package orchestrator fans inference work across many inputs. Batch jobs
// run asynchronously with a visible status; per-item failures are captured
// as data rather than aborting the batch.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"inferd/pkg/types"
)

// Inferrer is the dispatcher surface the orchestrator fans work across.
type Inferrer interface {
	Infer(ctx context.Context, req types.InferRequest) (types.InferenceResult, error)
}

// Job is the handle for a submitted batch.
type Job struct {
	mu        sync.Mutex
	data      types.BatchJob
	done      chan struct{}
	expiresAt time.Time
}

// ID returns the job id.
func (j *Job) ID() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.data.JobID
}

// Done is closed when every item has completed.
func (j *Job) Done() <-chan struct{} { return j.done }

// Snapshot returns a copy of the job's current state.
func (j *Job) Snapshot() types.BatchJob {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := j.data
	out.Items = make([]types.BatchItem, len(j.data.Items))
	copy(out.Items, j.data.Items)
	return out
}

// Orchestrator tracks batch jobs and drives streams.
type Orchestrator struct {
	mu   sync.Mutex
	jobs map[string]*Job

	disp        Inferrer
	retention   time.Duration
	concurrency int
	log         zerolog.Logger
	now         func() time.Time
}

// New constructs an Orchestrator. Finished jobs are retained for the given
// window; concurrency caps in-flight items per batch (0 = item count).
func New(disp Inferrer, retention time.Duration, concurrency int, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:        make(map[string]*Job),
		disp:        disp,
		retention:   retention,
		concurrency: concurrency,
		log:         log.With().Str("component", "orchestrator").Logger(),
		now:         time.Now,
	}
}

// SubmitBatch starts an asynchronous job dispatching each request
// independently. The returned handle reports status immediately; waiters
// use Done. Model invocations stay bounded by the dispatcher's worker pool.
func (o *Orchestrator) SubmitBatch(ctx context.Context, reqs []types.InferRequest) *Job {
	j := &Job{
		data: types.BatchJob{
			JobID:     uuid.NewString(),
			Status:    types.BatchPending,
			Items:     make([]types.BatchItem, len(reqs)),
			CreatedAt: o.now().Unix(),
		},
		done: make(chan struct{}),
	}
	o.mu.Lock()
	o.sweepLocked()
	o.jobs[j.data.JobID] = j
	o.mu.Unlock()
	o.log.Info().Str("job", j.data.JobID).Int("items", len(reqs)).Msg("batch submitted")

	// The job outlives the submitting request.
	go o.run(context.WithoutCancel(ctx), j, reqs)
	return j
}

func (o *Orchestrator) run(ctx context.Context, j *Job, reqs []types.InferRequest) {
	j.mu.Lock()
	j.data.Status = types.BatchRunning
	j.mu.Unlock()

	var g errgroup.Group
	if o.concurrency > 0 {
		g.SetLimit(o.concurrency)
	}
	for i := range reqs {
		i, req := i, reqs[i]
		g.Go(func() error {
			res, err := o.disp.Infer(ctx, req)
			j.mu.Lock()
			if err != nil {
				j.data.Items[i] = types.BatchItem{Error: err.Error()}
			} else {
				j.data.Items[i] = types.BatchItem{Result: &res}
			}
			j.mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	j.mu.Lock()
	failures := 0
	for _, it := range j.data.Items {
		if it.Error != "" {
			failures++
		}
	}
	switch {
	case failures == 0:
		j.data.Status = types.BatchCompleted
	case failures == len(j.data.Items):
		j.data.Status = types.BatchFailed
	default:
		j.data.Status = types.BatchPartial
	}
	j.data.CompletedAt = o.now().Unix()
	status := j.data.Status
	id := j.data.JobID
	j.expiresAt = o.now().Add(o.retention)
	j.mu.Unlock()
	close(j.done)
	o.log.Info().Str("job", id).Str("status", string(status)).Int("failures", failures).Msg("batch finished")
}

// Job returns a snapshot of the job with the given id.
func (o *Orchestrator) Job(id string) (types.BatchJob, bool) {
	o.mu.Lock()
	o.sweepLocked()
	j, ok := o.jobs[id]
	o.mu.Unlock()
	if !ok {
		return types.BatchJob{}, false
	}
	return j.Snapshot(), true
}

// JobsTracked returns the number of retained jobs.
func (o *Orchestrator) JobsTracked() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.jobs)
}

// sweepLocked drops finished jobs past their retention window.
func (o *Orchestrator) sweepLocked() {
	now := o.now()
	for id, j := range o.jobs {
		j.mu.Lock()
		expired := !j.expiresAt.IsZero() && now.After(j.expiresAt)
		j.mu.Unlock()
		if expired {
			delete(o.jobs, id)
		}
	}
}
