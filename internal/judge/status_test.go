package judge

import (
	"context"
	"testing"

	"ojcore/internal/common/cache"
	"ojcore/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStatusStore(t *testing.T) *StatusStore {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStatusStore(cache.NewRedisCacheWithClient(client))
}

func TestStatusStoreRoundTrip(t *testing.T) {
	store := newTestStatusStore(t)
	ctx := context.Background()

	store.Update(ctx, Snapshot{
		SubmissionID:  42,
		Status:        model.VerdictJudging,
		FinishedCases: 1,
		TotalCases:    3,
		Score:         40,
	})

	snap, ok, err := store.Get(ctx, 42)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("Get reported a miss after Update")
	}
	if snap.Status != model.VerdictJudging || snap.FinishedCases != 1 || snap.TotalCases != 3 || snap.Score != 40 {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be stamped on Update")
	}
}

func TestStatusStoreMiss(t *testing.T) {
	store := newTestStatusStore(t)

	_, ok, err := store.Get(context.Background(), 9999)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("Get reported a hit for an unknown submission")
	}
}

func TestStatusStoreNilIsSafe(t *testing.T) {
	var store *StatusStore
	store.Update(context.Background(), Snapshot{SubmissionID: 1})
	if _, ok, err := store.Get(context.Background(), 1); err != nil || ok {
		t.Errorf("nil store Get = (ok=%v, err=%v), want miss without error", ok, err)
	}
}
