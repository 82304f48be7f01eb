package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scriptwell/scriptwell-backend/internal/config"
	"github.com/scriptwell/scriptwell-backend/internal/data/repos"
	"github.com/scriptwell/scriptwell-backend/internal/data/repos/testutil"
	types "github.com/scriptwell/scriptwell-backend/internal/domain"
	"github.com/scriptwell/scriptwell-backend/internal/jobs/queue"
	"github.com/scriptwell/scriptwell-backend/internal/modules/analysis/steps"
	"github.com/scriptwell/scriptwell-backend/internal/platform/dbctx"
)

// recordQueue captures every enqueued job without draining anything.
type recordQueue struct {
	jobs []queue.Job
}

func (q *recordQueue) Enqueue(_ context.Context, j queue.Job) (bool, error) {
	q.jobs = append(q.jobs, j)
	return true, nil
}
func (q *recordQueue) Dequeue(context.Context, time.Duration) (*queue.Job, error) {
	return nil, nil
}
func (q *recordQueue) Requeue(context.Context, queue.Job) error            { return nil }
func (q *recordQueue) Ack(context.Context, queue.Job) error                { return nil }
func (q *recordQueue) DeadLetter(context.Context, queue.Job, string) error { return nil }
func (q *recordQueue) DeadJobs(context.Context, int64) ([]queue.DeadJob, error) {
	return nil, nil
}

func stalenessDeps(t *testing.T) (*Usecases, *recordQueue, *gorm.DB) {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	all := repos.NewAll(db, log)
	q := &recordQueue{}
	u := New(Deps{
		Deps: steps.Deps{
			DB:  db,
			Log: log,
			Cfg: config.Config{
				OutlineStaleThreshold:   5,
				CharacterStaleThreshold: 3,
			},
			Scripts:    all.Scripts,
			Scenes:     all.Scenes,
			Summaries:  all.SceneSummaries,
			Outlines:   all.Outlines,
			Sheets:     all.CharacterSheets,
			Embeddings: all.SceneEmbeddings,
		},
		Queue:   q,
		JobRuns: all.JobRuns,
	})
	return u, q, db
}

func TestOnSceneChangedCountsEveryNotification(t *testing.T) {
	u, _, db := stalenessDeps(t)
	ctx := context.Background()
	tx := testutil.Tx(t, db)
	s := testutil.SeedScript(t, ctx, tx, uuid.New())
	sc := testutil.SeedScene(t, ctx, tx, s.ID, 1, "Alice waits by the door.")
	testutil.SeedSceneCharacters(t, ctx, tx, sc.ID, s.ID, "ALICE")
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	first, err := u.OnSceneChanged(dbc, sc.ID)
	if err != nil {
		t.Fatalf("first notification: %v", err)
	}
	if !first.ContentChanged {
		t.Fatal("first notification should detect the initial hash")
	}
	if first.Outline.DirtySceneCount != 1 {
		t.Fatalf("outline dirty count %d after first fire, want 1", first.Outline.DirtySceneCount)
	}

	// The content never moves again, yet every notification still counts.
	for i := 2; i <= 5; i++ {
		rep, err := u.OnSceneChanged(dbc, sc.ID)
		if err != nil {
			t.Fatalf("notification %d: %v", i, err)
		}
		if rep.ContentChanged {
			t.Fatalf("notification %d flagged unchanged content", i)
		}
		if rep.Outline.DirtySceneCount != i {
			t.Fatalf("outline dirty count %d after fire %d, want %d", rep.Outline.DirtySceneCount, i, i)
		}
		if rep.Outline.IsStale != (i >= 5) {
			t.Fatalf("outline stale=%v after fire %d with threshold 5", rep.Outline.IsStale, i)
		}
		if len(rep.Sheets) != 1 || rep.Sheets[0].DirtySceneCount != i {
			t.Fatalf("sheet counters after fire %d: %+v", i, rep.Sheets)
		}
		if rep.Sheets[0].IsStale != (i >= 3) {
			t.Fatalf("sheet stale=%v after fire %d with threshold 3", rep.Sheets[0].IsStale, i)
		}
	}
}

func TestEnqueueRefreshesStaleWithoutContentChange(t *testing.T) {
	u, q, db := stalenessDeps(t)
	ctx := context.Background()
	scriptID := uuid.New()
	t.Cleanup(func() {
		db.Where("script_id = ?", scriptID).Delete(&types.JobRun{})
	})

	u.EnqueueRefreshes(ctx, &StaleReport{
		SceneID:  uuid.New(),
		ScriptID: scriptID,
		Outline:  repos.DirtyState{DirtySceneCount: 5, IsStale: true},
		Sheets:   []repos.NamedDirtyState{{Name: "ALICE", DirtySceneCount: 3, IsStale: true}},
	})

	if len(q.jobs) != 2 {
		t.Fatalf("enqueued %d jobs, want sheet + outline: %+v", len(q.jobs), q.jobs)
	}
	for _, j := range q.jobs {
		if j.Type == queue.TypeRefreshSceneSummary {
			t.Fatal("summary refresh enqueued without a content change")
		}
	}
}

func TestEnqueueRefreshesSummaryOnContentChange(t *testing.T) {
	u, q, db := stalenessDeps(t)
	ctx := context.Background()
	scriptID := uuid.New()
	t.Cleanup(func() {
		db.Where("script_id = ?", scriptID).Delete(&types.JobRun{})
	})

	u.EnqueueRefreshes(ctx, &StaleReport{
		SceneID:        uuid.New(),
		ScriptID:       scriptID,
		ContentChanged: true,
	})

	if len(q.jobs) != 1 || q.jobs[0].Type != queue.TypeRefreshSceneSummary {
		t.Fatalf("jobs = %+v, want a single summary refresh", q.jobs)
	}
	if q.jobs[0].Priority != queue.PriorityUrgent {
		t.Fatalf("summary refresh priority %q, want urgent", q.jobs[0].Priority)
	}
}
