package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/scriptwell/scriptwell-backend/internal/config"
	"github.com/scriptwell/scriptwell-backend/internal/data/repos/testutil"
	types "github.com/scriptwell/scriptwell-backend/internal/domain"
	"github.com/scriptwell/scriptwell-backend/internal/jobs/queue"
	"github.com/scriptwell/scriptwell-backend/internal/platform/dbctx"
	"github.com/scriptwell/scriptwell-backend/internal/platform/errkind"
)

type fakeQueue struct {
	acked        []string
	requeued     []queue.Job
	deadLettered []string
	deadReason   string
}

func (f *fakeQueue) Enqueue(context.Context, queue.Job) (bool, error) { return true, nil }
func (f *fakeQueue) Dequeue(context.Context, time.Duration) (*queue.Job, error) {
	return nil, nil
}
func (f *fakeQueue) Requeue(_ context.Context, j queue.Job) error {
	f.requeued = append(f.requeued, j)
	return nil
}
func (f *fakeQueue) Ack(_ context.Context, j queue.Job) error {
	f.acked = append(f.acked, j.ID)
	return nil
}
func (f *fakeQueue) DeadLetter(_ context.Context, j queue.Job, reason string) error {
	f.deadLettered = append(f.deadLettered, j.ID)
	f.deadReason = reason
	return nil
}
func (f *fakeQueue) DeadJobs(context.Context, int64) ([]queue.DeadJob, error) {
	return nil, nil
}

type fakeJobRuns struct {
	transitions []string
}

func (f *fakeJobRuns) CreateQueued(dbctx.Context, *types.JobRun) (bool, error) { return true, nil }
func (f *fakeJobRuns) GetByJobID(dbctx.Context, string) (*types.JobRun, error) {
	return nil, nil
}
func (f *fakeJobRuns) MarkRunning(_ dbctx.Context, _ string, _ int) error {
	f.transitions = append(f.transitions, "running")
	return nil
}
func (f *fakeJobRuns) MarkSucceeded(dbctx.Context, string) error {
	f.transitions = append(f.transitions, "succeeded")
	return nil
}
func (f *fakeJobRuns) MarkFailed(dbctx.Context, string, string, string) error {
	f.transitions = append(f.transitions, "failed")
	return nil
}
func (f *fakeJobRuns) MarkDead(dbctx.Context, string, string) error {
	f.transitions = append(f.transitions, "dead")
	return nil
}
func (f *fakeJobRuns) ListDead(dbctx.Context, int) ([]types.JobRun, error) { return nil, nil }

func workerUnderTest(t *testing.T) (*Worker, *fakeQueue, *fakeJobRuns) {
	t.Helper()
	q := &fakeQueue{}
	runs := &fakeJobRuns{}
	w := New(q, runs, testutil.Logger(t), config.Config{
		IngestionJobTimeout: 10 * time.Minute,
		RefreshJobTimeout:   5 * time.Minute,
	})
	return w, q, runs
}

func TestProcessSuccessAcksAndMarks(t *testing.T) {
	w, q, runs := workerUnderTest(t)
	w.Register("noop", func(context.Context, queue.Job) error { return nil })

	w.process(context.Background(), queue.Job{ID: "j1", Type: "noop"})

	if len(q.acked) != 1 || q.acked[0] != "j1" {
		t.Fatalf("acked %v", q.acked)
	}
	want := []string{"running", "succeeded"}
	if len(runs.transitions) != 2 || runs.transitions[0] != want[0] || runs.transitions[1] != want[1] {
		t.Fatalf("transitions %v", runs.transitions)
	}
}

func TestProcessRetriesTransientFailure(t *testing.T) {
	w, q, _ := workerUnderTest(t)
	w.Register("flaky", func(context.Context, queue.Job) error {
		return errkind.Transient(errors.New("timeout"), "llm call")
	})

	w.process(context.Background(), queue.Job{ID: "j2", Type: "flaky", Attempt: 0})

	if len(q.requeued) != 1 {
		t.Fatalf("requeued %d times, want 1", len(q.requeued))
	}
	if q.requeued[0].Attempt != 1 {
		t.Fatalf("requeued attempt %d, want 1", q.requeued[0].Attempt)
	}
	if len(q.deadLettered) != 0 {
		t.Fatal("first failure must not dead-letter")
	}
}

func TestProcessDeadLettersAfterFinalAttempt(t *testing.T) {
	w, q, runs := workerUnderTest(t)
	w.Register("flaky", func(context.Context, queue.Job) error {
		return errkind.Transient(errors.New("timeout"), "llm call")
	})

	// Attempt 2 means this run is try number three.
	w.process(context.Background(), queue.Job{ID: "j3", Type: "flaky", Attempt: 2})

	if len(q.requeued) != 0 {
		t.Fatal("exhausted job must not requeue")
	}
	if len(q.deadLettered) != 1 || q.deadLettered[0] != "j3" {
		t.Fatalf("dead-lettered %v", q.deadLettered)
	}
	last := runs.transitions[len(runs.transitions)-1]
	if last != "dead" {
		t.Fatalf("final transition %q, want dead", last)
	}
}

func TestProcessSkipsRetryOnValidationError(t *testing.T) {
	w, q, _ := workerUnderTest(t)
	w.Register("badinput", func(context.Context, queue.Job) error {
		return errkind.Validation("missing scene_id")
	})

	w.process(context.Background(), queue.Job{ID: "j4", Type: "badinput", Attempt: 0})

	if len(q.requeued) != 0 {
		t.Fatal("validation failure must not retry")
	}
	if len(q.deadLettered) != 1 {
		t.Fatalf("dead-lettered %v", q.deadLettered)
	}
}

func TestProcessRecoversHandlerPanic(t *testing.T) {
	w, q, runs := workerUnderTest(t)
	w.Register("boom", func(context.Context, queue.Job) error {
		panic("nil scene")
	})

	w.process(context.Background(), queue.Job{ID: "j5", Type: "boom"})

	if len(q.deadLettered) != 1 {
		t.Fatalf("panicking job not dead-lettered: %v", q.deadLettered)
	}
	for _, tr := range runs.transitions {
		if tr == "succeeded" {
			t.Fatal("panicking job marked succeeded")
		}
	}
}

func TestProcessUnknownTypeDeadLetters(t *testing.T) {
	w, q, _ := workerUnderTest(t)

	w.process(context.Background(), queue.Job{ID: "j6", Type: "mystery"})

	if len(q.deadLettered) != 1 || q.deadReason != "no handler for job type" {
		t.Fatalf("dead=%v reason=%q", q.deadLettered, q.deadReason)
	}
}
