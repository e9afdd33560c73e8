package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestQueue(t *testing.T) (*PageQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewPageQueue(NewRedisClientFrom(client), time.Minute), mr
}

func TestPageQueueFIFO(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	for page := 1; page <= 3; page++ {
		if err := q.Enqueue(ctx, PageJob{RunID: "r1", TenantID: "t1", Page: page}); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	if n, _ := q.Len(ctx); n != 3 {
		t.Fatalf("Len = %d, want 3", n)
	}
	for want := 1; want <= 3; want++ {
		job, err := q.Dequeue(ctx, time.Second)
		if err != nil {
			t.Fatalf("Dequeue: %v", err)
		}
		if job == nil || job.Page != want || job.TenantID != "t1" {
			t.Fatalf("job = %+v, want page %d", job, want)
		}
		if job.EnqueuedAt.IsZero() {
			t.Error("EnqueuedAt not set")
		}
	}
}

func TestPageQueueDequeueTimeout(t *testing.T) {
	q, _ := newTestQueue(t)
	job, err := q.Dequeue(context.Background(), 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if job != nil {
		t.Fatalf("job = %+v, want nil", job)
	}
}

func TestPageLockExclusive(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	lock, ok, err := q.AcquirePageLock(ctx, "t1", 2)
	if err != nil || !ok {
		t.Fatalf("first acquire ok=%v err=%v", ok, err)
	}
	if _, ok, _ := q.AcquirePageLock(ctx, "t1", 2); ok {
		t.Fatal("second acquire of the same page must fail")
	}
	if _, ok, _ := q.AcquirePageLock(ctx, "t1", 3); !ok {
		t.Fatal("a different page must be lockable")
	}
	if err := q.ReleasePageLock(ctx, lock); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, ok, _ := q.AcquirePageLock(ctx, "t1", 2); !ok {
		t.Fatal("page must be lockable after release")
	}
}

func TestPageLockReleaseIgnoresForeignHolder(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	lock, _, _ := q.AcquirePageLock(ctx, "t1", 0)
	mr.FastForward(2 * time.Minute)

	if _, ok, _ := q.AcquirePageLock(ctx, "t1", 0); !ok {
		t.Fatal("expired lock must be re-acquirable")
	}
	if err := q.ReleasePageLock(ctx, lock); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if !mr.Exists("prodflow:sync:lock:t1:0") {
		t.Fatal("stale holder must not release the new holder's lock")
	}
}
