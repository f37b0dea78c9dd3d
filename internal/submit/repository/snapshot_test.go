package repository

import (
	"context"
	"strconv"
	"testing"

	"webcoder/internal/common/cache"
	"webcoder/internal/judge/aggregate"
	"webcoder/internal/judge/model"
	"webcoder/internal/judge/verdict"
	"webcoder/internal/testutil"
	"webcoder/pkg/errors"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func backends(t *testing.T) map[string]cache.Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	rc, err := cache.NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	if err != nil {
		t.Fatalf("redis cache: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })
	return map[string]cache.Cache{"memory": cache.NewMemoryCache(), "redis": rc}
}

func snapshot(id string, v verdict.Verdict) aggregate.Snapshot {
	order := 1
	return aggregate.Snapshot{
		SubmissionID:   model.SubmissionID(id),
		Verdict:        v,
		RawVerdict:     v.Short(),
		DisplayVerdict: v.Label(),
		IsTerminal:     v.IsTerminal(),
		Tests:          []aggregate.TestResultView{{ID: 1, Order: &order, Verdict: verdict.Accepted}},
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := NewSnapshotRepository(c)

			_, ok, err := repo.Get(ctx, "1")
			if err != nil {
				t.Fatalf("get missing: %v", err)
			}
			testutil.AssertFalse(t, ok, "nothing stored yet")

			if err := repo.Save(ctx, snapshot("1", verdict.Running)); err != nil {
				t.Fatalf("save: %v", err)
			}
			if err := repo.Save(ctx, snapshot("1", verdict.Accepted)); err != nil {
				t.Fatalf("save: %v", err)
			}

			got, ok, err := repo.Get(ctx, "1")
			if err != nil || !ok {
				t.Fatalf("get: ok=%v err=%v", ok, err)
			}
			testutil.AssertEqual(t, got.Verdict, verdict.Accepted)
			testutil.AssertTrue(t, got.IsTerminal, "terminal flag kept")
			testutil.AssertEqual(t, *got.Tests[0].Order, 1)

			recent, _ := repo.Recent(ctx, 10)
			testutil.AssertEqual(t, len(recent), 1)
		})
	}
}

func TestRecentIsBoundedNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewSnapshotRepository(cache.NewMemoryCache())
	repo.recentLimit = 3
	for i := 1; i <= 5; i++ {
		if err := repo.Save(ctx, snapshot(strconv.Itoa(i), verdict.Pending)); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	recent, err := repo.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	testutil.AssertEqual(t, len(recent), 3)
	testutil.AssertEqual(t, recent[0], model.SubmissionID("5"))
	testutil.AssertEqual(t, recent[2], model.SubmissionID("3"))
}

func TestSaveRequiresID(t *testing.T) {
	repo := NewSnapshotRepository(cache.NewMemoryCache())
	err := repo.Save(context.Background(), aggregate.Snapshot{})
	testutil.AssertEqual(t, errors.KindOf(err), errors.KindValidation)
}

func TestCorruptSnapshot(t *testing.T) {
	c := cache.NewMemoryCache()
	_ = c.Set(context.Background(), "snapshot:9", "{not json", 0)
	_, _, err := NewSnapshotRepository(c).Get(context.Background(), "9")
	testutil.AssertEqual(t, errors.GetCode(err), errors.DecodeFailed)
}
