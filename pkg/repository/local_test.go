package repository_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/engram/pkg/model"
	"github.com/m-mizutani/engram/pkg/repository"
	"github.com/m-mizutani/gt"
)

func newLocal(t *testing.T) (*repository.Local, string) {
	t.Helper()
	dir := t.TempDir()
	repo, err := repository.New(dir)
	gt.NoError(t, err)
	t.Cleanup(func() {
		gt.NoError(t, repo.Close())
	})
	return repo, dir
}

func newRecord(owner model.OwnerID, content string, topics []string, emb []float32, ts time.Time) *model.MemoryRecord {
	return &model.MemoryRecord{
		ID:         model.NewMemoryID(),
		OwnerID:    owner,
		Content:    content,
		Topics:     topics,
		Embedding:  emb,
		Confidence: 1.0,
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}
}

func TestPutAndGet(t *testing.T) {
	repo, _ := newLocal(t)
	ctx := context.Background()

	rec := newRecord("u1", "I enjoy hiking on weekends", []string{"hobbies"}, []float32{1, 0, 0}, time.Now())
	rec.IsProxy = true
	rec.ProxyAgent = "scheduler"
	rec.Confidence = 0.8

	gt.NoError(t, repo.Put(ctx, "u1", rec))

	got, err := repo.Get(ctx, "u1", rec.ID)
	gt.NoError(t, err)
	gt.V(t, got.ID).Equal(rec.ID)
	gt.V(t, got.OwnerID).Equal(model.OwnerID("u1"))
	gt.V(t, got.Content).Equal("I enjoy hiking on weekends")
	gt.A(t, got.Topics).Length(1)
	gt.V(t, got.Topics[0]).Equal("hobbies")
	gt.V(t, got.Confidence).Equal(0.8)
	gt.True(t, got.IsProxy)
	gt.V(t, got.ProxyAgent).Equal("scheduler")
	gt.A(t, got.Embedding).Length(3)
	gt.V(t, got.CreatedAt.UnixNano()).Equal(rec.CreatedAt.UnixNano())
}

func TestGetNotFound(t *testing.T) {
	repo, _ := newLocal(t)

	_, err := repo.Get(context.Background(), "u1", model.NewMemoryID())
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrRecordNotFound))
}

func TestPutRejectsInvalidRecord(t *testing.T) {
	repo, _ := newLocal(t)
	ctx := context.Background()

	rec := newRecord("u1", "valid content", nil, []float32{1, 0, 0}, time.Now())
	gt.Error(t, repo.Put(ctx, "u1", rec))

	// Nothing must remain after the rejected write
	n, err := repo.Count(ctx, "u1")
	gt.NoError(t, err)
	gt.Equal(t, n, 0)
}

func TestSearch(t *testing.T) {
	repo, _ := newLocal(t)
	ctx := context.Background()
	now := time.Now()

	hiking := newRecord("u1", "I enjoy hiking on weekends", []string{"hobbies"}, []float32{1, 0, 0}, now)
	coffee := newRecord("u1", "I drink coffee every morning", []string{"food"}, []float32{0, 1, 0}, now)
	trail := newRecord("u1", "I walk forest trails", []string{"hobbies"}, []float32{0.9, 0.1, 0}, now)

	for _, rec := range []*model.MemoryRecord{hiking, coffee, trail} {
		gt.NoError(t, repo.Put(ctx, "u1", rec))
	}

	hits, err := repo.Search(ctx, "u1", []float32{1, 0, 0}, 3)
	gt.NoError(t, err)
	gt.A(t, hits).Length(3)
	gt.V(t, hits[0].Record.ID).Equal(hiking.ID)
	gt.Number(t, hits[0].Score).GreaterOrEqual(0.999)
	gt.V(t, hits[1].Record.ID).Equal(trail.ID)
	gt.Number(t, hits[1].Score).GreaterOrEqual(0.9)
	gt.V(t, hits[2].Record.ID).Equal(coffee.ID)
}

func TestSearchLimitClamp(t *testing.T) {
	repo, _ := newLocal(t)
	ctx := context.Background()

	t.Run("empty index", func(t *testing.T) {
		hits, err := repo.Search(ctx, "u1", []float32{1, 0, 0}, 5)
		gt.NoError(t, err)
		gt.A(t, hits).Length(0)
	})

	t.Run("limit above document count", func(t *testing.T) {
		rec := newRecord("u1", "only record", []string{"misc"}, []float32{1, 0, 0}, time.Now())
		gt.NoError(t, repo.Put(ctx, "u1", rec))

		hits, err := repo.Search(ctx, "u1", []float32{1, 0, 0}, 10)
		gt.NoError(t, err)
		gt.A(t, hits).Length(1)
	})
}

func TestDelete(t *testing.T) {
	repo, _ := newLocal(t)
	ctx := context.Background()

	rec := newRecord("u1", "to be deleted", []string{"misc"}, []float32{1, 0, 0}, time.Now())
	gt.NoError(t, repo.Put(ctx, "u1", rec))

	deleted, err := repo.Delete(ctx, "u1", rec.ID)
	gt.NoError(t, err)
	gt.True(t, deleted)

	_, err = repo.Get(ctx, "u1", rec.ID)
	gt.True(t, errors.Is(err, model.ErrRecordNotFound))

	hits, err := repo.Search(ctx, "u1", []float32{1, 0, 0}, 5)
	gt.NoError(t, err)
	gt.A(t, hits).Length(0)

	// Second delete is a no-op, not an error
	deleted, err = repo.Delete(ctx, "u1", rec.ID)
	gt.NoError(t, err)
	gt.False(t, deleted)
}

func TestUpdate(t *testing.T) {
	repo, _ := newLocal(t)
	ctx := context.Background()
	created := time.Now().Add(-time.Hour)

	rec := newRecord("u1", "I enjoy hiking", []string{"hobbies"}, []float32{1, 0, 0}, created)
	gt.NoError(t, repo.Put(ctx, "u1", rec))

	rec.Content = "I enjoy hiking and climbing"
	rec.Topics = []string{"hobbies", "health"}
	rec.Embedding = []float32{0.8, 0.6, 0}
	rec.UpdatedAt = time.Now()
	gt.NoError(t, repo.Update(ctx, "u1", rec))

	got, err := repo.Get(ctx, "u1", rec.ID)
	gt.NoError(t, err)
	gt.V(t, got.Content).Equal("I enjoy hiking and climbing")
	gt.A(t, got.Topics).Length(2)
	gt.V(t, got.CreatedAt.UnixNano()).Equal(created.UnixNano())
	gt.True(t, got.UpdatedAt.After(got.CreatedAt))

	// Vector index must reflect the new embedding
	hits, err := repo.Search(ctx, "u1", []float32{0.8, 0.6, 0}, 1)
	gt.NoError(t, err)
	gt.A(t, hits).Length(1)
	gt.V(t, hits[0].Record.ID).Equal(rec.ID)
	gt.Number(t, hits[0].Score).GreaterOrEqual(0.999)
}

func TestUpdateNotFound(t *testing.T) {
	repo, _ := newLocal(t)

	rec := newRecord("u1", "ghost", []string{"misc"}, []float32{1, 0, 0}, time.Now())
	err := repo.Update(context.Background(), "u1", rec)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrRecordNotFound))
}

func TestListOrderAndFilter(t *testing.T) {
	repo, _ := newLocal(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	oldest := newRecord("u1", "oldest", []string{"work"}, []float32{1, 0, 0}, base)
	middle := newRecord("u1", "middle", []string{"hobbies"}, []float32{0, 1, 0}, base.Add(time.Minute))
	newest := newRecord("u1", "newest", []string{"hobbies", "health"}, []float32{0, 0, 1}, base.Add(2*time.Minute))

	for _, rec := range []*model.MemoryRecord{oldest, middle, newest} {
		gt.NoError(t, repo.Put(ctx, "u1", rec))
	}

	t.Run("most recent first", func(t *testing.T) {
		recs, err := repo.List(ctx, "u1", model.ListOption{})
		gt.NoError(t, err)
		gt.A(t, recs).Length(3)
		gt.V(t, recs[0].ID).Equal(newest.ID)
		gt.V(t, recs[1].ID).Equal(middle.ID)
		gt.V(t, recs[2].ID).Equal(oldest.ID)
	})

	t.Run("stable across calls", func(t *testing.T) {
		first, err := repo.List(ctx, "u1", model.ListOption{})
		gt.NoError(t, err)
		second, err := repo.List(ctx, "u1", model.ListOption{})
		gt.NoError(t, err)
		gt.A(t, first).Length(len(second))
		for i := range first {
			gt.V(t, first[i].ID).Equal(second[i].ID)
		}
	})

	t.Run("topic filter", func(t *testing.T) {
		recs, err := repo.List(ctx, "u1", model.ListOption{Topics: []string{"hobbies"}})
		gt.NoError(t, err)
		gt.A(t, recs).Length(2)
		gt.V(t, recs[0].ID).Equal(newest.ID)
		gt.V(t, recs[1].ID).Equal(middle.ID)
	})

	t.Run("limit", func(t *testing.T) {
		recs, err := repo.List(ctx, "u1", model.ListOption{Limit: 1})
		gt.NoError(t, err)
		gt.A(t, recs).Length(1)
		gt.V(t, recs[0].ID).Equal(newest.ID)
	})
}

func TestCountAndTopicStats(t *testing.T) {
	repo, _ := newLocal(t)
	ctx := context.Background()
	now := time.Now()

	gt.NoError(t, repo.Put(ctx, "u1", newRecord("u1", "a", []string{"hobbies"}, []float32{1, 0, 0}, now)))
	gt.NoError(t, repo.Put(ctx, "u1", newRecord("u1", "b", []string{"hobbies", "health"}, []float32{0, 1, 0}, now)))

	n, err := repo.Count(ctx, "u1")
	gt.NoError(t, err)
	gt.V(t, n).Equal(2)

	stats, err := repo.TopicStats(ctx, "u1")
	gt.NoError(t, err)
	gt.Map(t, stats).HasKey("hobbies")
	gt.Equal(t, stats["hobbies"], 2)
	gt.Equal(t, stats["health"], 1)
}

func TestOwnerIsolation(t *testing.T) {
	repo, dir := newLocal(t)
	ctx := context.Background()
	now := time.Now()

	aliceRec := newRecord("alice", "alice likes tea", []string{"food"}, []float32{1, 0, 0}, now)
	bobRec := newRecord("bob", "bob likes coffee", []string{"food"}, []float32{1, 0, 0}, now)
	gt.NoError(t, repo.Put(ctx, "alice", aliceRec))
	gt.NoError(t, repo.Put(ctx, "bob", bobRec))

	// Alice's search never sees Bob's records
	hits, err := repo.Search(ctx, "alice", []float32{1, 0, 0}, 10)
	gt.NoError(t, err)
	gt.A(t, hits).Length(1)
	gt.V(t, hits[0].Record.ID).Equal(aliceRec.ID)

	// Destroying Alice leaves Bob untouched
	removed, err := repo.RemoveOwner(ctx, "alice")
	gt.NoError(t, err)
	gt.V(t, removed).Equal(1)

	_, err = os.Stat(filepath.Join(dir, "alice"))
	gt.True(t, errors.Is(err, os.ErrNotExist))

	got, err := repo.Get(ctx, "bob", bobRec.ID)
	gt.NoError(t, err)
	gt.V(t, got.Content).Equal("bob likes coffee")
}

func TestRemoveOwnerNonexistent(t *testing.T) {
	repo, _ := newLocal(t)

	removed, err := repo.RemoveOwner(context.Background(), "nobody")
	gt.NoError(t, err)
	gt.V(t, removed).Equal(0)
}

func TestInvalidOwnerRejected(t *testing.T) {
	repo, _ := newLocal(t)
	ctx := context.Background()

	for _, owner := range []model.OwnerID{"", "a/b", "../escape", ".hidden"} {
		_, err := repo.Get(ctx, owner, model.NewMemoryID())
		gt.Error(t, err)
		gt.True(t, errors.Is(err, model.ErrInvalidOwner))
	}
}

func TestReopenPersistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := repository.New(dir)
	gt.NoError(t, err)

	rec := newRecord("u1", "durable memory", []string{"misc"}, []float32{1, 0, 0}, time.Now())
	gt.NoError(t, first.Put(ctx, "u1", rec))
	gt.NoError(t, first.Close())

	second, err := repository.New(dir)
	gt.NoError(t, err)
	defer func() {
		gt.NoError(t, second.Close())
	}()

	got, err := second.Get(ctx, "u1", rec.ID)
	gt.NoError(t, err)
	gt.V(t, got.Content).Equal("durable memory")

	hits, err := second.Search(ctx, "u1", []float32{1, 0, 0}, 1)
	gt.NoError(t, err)
	gt.A(t, hits).Length(1)
	gt.V(t, hits[0].Record.ID).Equal(rec.ID)
}
