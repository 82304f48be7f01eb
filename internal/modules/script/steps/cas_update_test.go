package steps

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/scriptwell/scriptwell-backend/internal/config"
	"github.com/scriptwell/scriptwell-backend/internal/data/repos"
	"github.com/scriptwell/scriptwell-backend/internal/data/repos/testutil"
	types "github.com/scriptwell/scriptwell-backend/internal/domain"
	"github.com/scriptwell/scriptwell-backend/internal/jobs/queue"
	"github.com/scriptwell/scriptwell-backend/internal/modules/analysis"
	analysissteps "github.com/scriptwell/scriptwell-backend/internal/modules/analysis/steps"
	"github.com/scriptwell/scriptwell-backend/internal/platform/dbctx"
	"github.com/scriptwell/scriptwell-backend/internal/platform/errkind"
)

// nopQueue satisfies the queue interface for tests that never drain it.
type nopQueue struct{}

func (nopQueue) Enqueue(context.Context, queue.Job) (bool, error) { return true, nil }
func (nopQueue) Dequeue(context.Context, time.Duration) (*queue.Job, error) {
	return nil, nil
}
func (nopQueue) Requeue(context.Context, queue.Job) error            { return nil }
func (nopQueue) Ack(context.Context, queue.Job) error                { return nil }
func (nopQueue) DeadLetter(context.Context, queue.Job, string) error { return nil }
func (nopQueue) DeadJobs(context.Context, int64) ([]queue.DeadJob, error) {
	return nil, nil
}

func casDeps(t *testing.T) (Deps, *gorm.DB) {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	all := repos.NewAll(db, log)
	cfg := config.Config{
		OutlineStaleThreshold:   5,
		CharacterStaleThreshold: 3,
		CRDTCompactThreshold:    100,
	}
	an := analysis.New(analysis.Deps{
		Deps: analysissteps.Deps{
			DB:         db,
			Log:        log,
			Cfg:        cfg,
			Scripts:    all.Scripts,
			Scenes:     all.Scenes,
			Summaries:  all.SceneSummaries,
			Outlines:   all.Outlines,
			Sheets:     all.CharacterSheets,
			Embeddings: all.SceneEmbeddings,
			Metrics:    all.OperationMetrics,
		},
		Queue:   nopQueue{},
		JobRuns: all.JobRuns,
	})
	return Deps{
		DB:            db,
		Log:           log,
		Cfg:           cfg,
		Scripts:       all.Scripts,
		Scenes:        all.Scenes,
		WriteOps:      all.WriteOps,
		Versions:      all.ScriptVersions,
		ScriptUpdates: all.ScriptUpdates,
		SceneUpdates:  all.SceneUpdates,
		Snapshots:     all.SnapshotMetadata,
		Analysis:      an,
	}, db
}

func seedCommittedScript(t *testing.T, db *gorm.DB) *types.Script {
	t.Helper()
	ctx := context.Background()
	s := testutil.SeedScript(t, ctx, db, uuid.New())
	t.Cleanup(func() {
		db.Where("script_id = ?", s.ID).Delete(&types.ScriptVersion{})
		db.Where("script_id = ?", s.ID).Delete(&types.WriteOp{})
		db.Where("script_id = ?", s.ID).Delete(&types.ScriptOutline{})
		db.Where("script_id = ?", s.ID).Delete(&types.JobRun{})
		db.Where("script_id = ?", s.ID).Delete(&types.ScriptCRDTUpdate{})
		db.Where("script_id = ?", s.ID).Delete(&types.SnapshotMetadata{})
		db.Where("script_id = ?", s.ID).Delete(&types.Scene{})
		db.Delete(&types.Script{}, "id = ?", s.ID)
	})
	return s
}

func TestUpdateWithCASConflict(t *testing.T) {
	d, db := casDeps(t)
	ctx := context.Background()
	s := seedCommittedScript(t, db)
	blocksA := datatypes.JSON(`[{"type":"action","text":"Version from client A."}]`)
	blocksB := datatypes.JSON(`[{"type":"action","text":"Version from client B."}]`)

	res, err := UpdateWithCAS(ctx, d, s.ID, uuid.New(), 0, blocksA, nil, "")
	if err != nil {
		t.Fatalf("client A update: %v", err)
	}
	if res.Version != 1 {
		t.Fatalf("client A got version %d, want 1", res.Version)
	}

	_, err = UpdateWithCAS(ctx, d, s.ID, uuid.New(), 0, blocksB, nil, "")
	if !errkind.Is(err, errkind.KindVersionConflict) {
		t.Fatalf("client B: want version conflict, got %v", err)
	}
	latest, ok := errkind.LatestOf(err).(*types.Script)
	if !ok {
		t.Fatalf("conflict does not carry the script snapshot: %T", errkind.LatestOf(err))
	}
	if latest.Version != 1 {
		t.Fatalf("conflict snapshot version %d, want 1", latest.Version)
	}
}

func TestUpdateWithCASIdempotentReplay(t *testing.T) {
	d, db := casDeps(t)
	ctx := context.Background()
	s := seedCommittedScript(t, db)
	newBlocks := datatypes.JSON(`[{"type":"action","text":"One committed write."}]`)
	opID := "op-" + uuid.NewString()

	first, err := UpdateWithCAS(ctx, d, s.ID, s.OwnerUserID, 0, newBlocks, nil, opID)
	if err != nil {
		t.Fatalf("first write: %v", err)
	}
	if first.Version != 1 || first.Replayed {
		t.Fatalf("first write: %+v", first)
	}

	replay, err := UpdateWithCAS(ctx, d, s.ID, s.OwnerUserID, 0, newBlocks, nil, opID)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if replay.Version != 1 || !replay.Replayed {
		t.Fatalf("replay returned %+v, want cached version 1", replay)
	}

	count, err := d.Versions.CountByScript(dbctx.Context{Ctx: ctx}, s.ID)
	if err != nil {
		t.Fatalf("count versions: %v", err)
	}
	if count != 1 {
		t.Fatalf("history has %d rows after replay, want 1", count)
	}
	current, err := d.Scripts.GetByID(dbctx.Context{Ctx: ctx}, s.ID)
	if err != nil {
		t.Fatalf("reload script: %v", err)
	}
	if current.Version != 1 {
		t.Fatalf("script version %d after replay, want 1", current.Version)
	}
}

func TestUpdateWithCASAppliesSceneDeltas(t *testing.T) {
	d, db := casDeps(t)
	ctx := context.Background()
	s := seedCommittedScript(t, db)
	sc := testutil.SeedScene(t, ctx, db, s.ID, 1, "John walks in.")

	changed := datatypes.JSON(`[{"type":"action","text":"John runs in."}]`)
	deltas := []SceneDelta{{SceneID: sc.ID, Blocks: &changed}}
	if _, err := UpdateWithCAS(ctx, d, s.ID, s.OwnerUserID, 0, datatypes.JSON(`[]`), deltas, ""); err != nil {
		t.Fatalf("cas with deltas: %v", err)
	}

	reloaded, err := d.Scenes.GetByID(dbctx.Context{Ctx: ctx}, sc.ID)
	if err != nil {
		t.Fatalf("reload scene: %v", err)
	}
	if reloaded.RawText != "John runs in." {
		t.Fatalf("raw_text %q", reloaded.RawText)
	}
	if reloaded.ContentHash == nil {
		t.Fatal("content hash not persisted with the delta")
	}
	if reloaded.Version != sc.Version+1 {
		t.Fatalf("scene version %d, want %d", reloaded.Version, sc.Version+1)
	}

	outline, err := d.Analysis.StepDeps().Outlines.GetByScript(dbctx.Context{Ctx: ctx}, s.ID)
	if err != nil {
		t.Fatalf("load outline: %v", err)
	}
	if outline == nil || outline.DirtySceneCount != 1 {
		t.Fatalf("outline dirty count not incremented with the edit: %+v", outline)
	}
}
