package queue

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/scriptwell/scriptwell-backend/internal/platform/logger"
)

func testQueue(t *testing.T) Queue {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run queue integration tests")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: 9})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("redis ping: %v", err)
	}
	if err := rdb.FlushDB(context.Background()).Err(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return NewRedisQueue(rdb, log)
}

func TestDequeueHonorsPriorityOrder(t *testing.T) {
	q := testQueue(t)
	ctx := context.Background()

	// Enqueue in reverse priority order.
	jobs := []Job{
		{ID: "j-low", Type: TypeRefreshOutline, Priority: PriorityLow},
		{ID: "j-normal", Type: TypeRefreshCharacterSheet, Priority: PriorityNormal},
		{ID: "j-urgent", Type: TypeRefreshSceneSummary, Priority: PriorityUrgent},
	}
	for _, j := range jobs {
		ok, err := q.Enqueue(ctx, j)
		if err != nil || !ok {
			t.Fatalf("enqueue %s: ok=%v err=%v", j.ID, ok, err)
		}
	}

	want := []string{"j-urgent", "j-normal", "j-low"}
	for _, id := range want {
		got, err := q.Dequeue(ctx, time.Second)
		if err != nil {
			t.Fatalf("dequeue: %v", err)
		}
		if got == nil || got.ID != id {
			t.Fatalf("dequeued %+v, want %s", got, id)
		}
		if err := q.Ack(ctx, *got); err != nil {
			t.Fatalf("ack: %v", err)
		}
	}
}

func TestEnqueueDeduplicatesPendingJobs(t *testing.T) {
	q := testQueue(t)
	ctx := context.Background()

	scriptID := uuid.New()
	job := Job{
		ID:       DeterministicID(TypeRefreshOutline, scriptID.String()),
		Type:     TypeRefreshOutline,
		Priority: PriorityLow,
		ScriptID: scriptID,
	}
	ok, err := q.Enqueue(ctx, job)
	if err != nil || !ok {
		t.Fatalf("first enqueue: ok=%v err=%v", ok, err)
	}
	ok, err = q.Enqueue(ctx, job)
	if err != nil {
		t.Fatalf("second enqueue: %v", err)
	}
	if ok {
		t.Fatal("duplicate enqueue accepted")
	}

	got, err := q.Dequeue(ctx, time.Second)
	if err != nil || got == nil {
		t.Fatalf("dequeue: %+v, %v", got, err)
	}
	// Still deduped while running.
	ok, err = q.Enqueue(ctx, job)
	if err != nil || ok {
		t.Fatalf("enqueue while running: ok=%v err=%v", ok, err)
	}
	if err := q.Ack(ctx, *got); err != nil {
		t.Fatalf("ack: %v", err)
	}
	// After ack it may be enqueued again.
	ok, err = q.Enqueue(ctx, job)
	if err != nil || !ok {
		t.Fatalf("enqueue after ack: ok=%v err=%v", ok, err)
	}
}

func TestDeadLetterRecordsJob(t *testing.T) {
	q := testQueue(t)
	ctx := context.Background()

	job := Job{ID: "j-dead", Type: TypeAnalyzeScript, Priority: PriorityLow}
	if _, err := q.Enqueue(ctx, job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	got, err := q.Dequeue(ctx, time.Second)
	if err != nil || got == nil {
		t.Fatalf("dequeue: %v", err)
	}
	if err := q.DeadLetter(ctx, *got, "gave up after 3 attempts"); err != nil {
		t.Fatalf("dead letter: %v", err)
	}

	dead, err := q.DeadJobs(ctx, 10)
	if err != nil {
		t.Fatalf("dead jobs: %v", err)
	}
	if len(dead) != 1 || dead[0].Job.ID != "j-dead" || dead[0].Error == "" {
		t.Fatalf("dead = %+v", dead)
	}
}
