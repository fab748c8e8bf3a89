package repository

import (
	"context"

	"github.com/m-mizutani/engram/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	chromem "github.com/philippgille/chromem-go"
)

const vectorCollection = "memories"

// vectorIndex wraps a per-owner chromem-go persistent collection. Embeddings
// are always supplied explicitly, so no embedding function is registered.
type vectorIndex struct {
	col *chromem.Collection
}

func openVectorIndex(dir string) (vectorIndex, error) {
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return vectorIndex{}, goerr.Wrap(err, "failed to open vector index", goerr.V("dir", dir))
	}

	col, err := db.GetOrCreateCollection(vectorCollection, nil, nil)
	if err != nil {
		return vectorIndex{}, goerr.Wrap(err, "failed to open vector collection", goerr.V("dir", dir))
	}

	return vectorIndex{col: col}, nil
}

func (x vectorIndex) add(ctx context.Context, rec *model.MemoryRecord) error {
	doc := chromem.Document{
		ID:        string(rec.ID),
		Content:   rec.Content,
		Embedding: rec.Embedding,
	}
	if err := x.col.AddDocument(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to add vector entry", goerr.V("id", rec.ID))
	}
	return nil
}

// update replaces the stored document; chromem upserts on matching ID
func (x vectorIndex) update(ctx context.Context, rec *model.MemoryRecord) error {
	return x.add(ctx, rec)
}

func (x vectorIndex) remove(ctx context.Context, id model.MemoryID) error {
	if x.col.Count() == 0 {
		return nil
	}
	if err := x.col.Delete(ctx, nil, nil, string(id)); err != nil {
		return goerr.Wrap(err, "failed to delete vector entry", goerr.V("id", id))
	}
	return nil
}

// nearest returns up to limit results ordered by descending cosine
// similarity. chromem rejects nResults larger than the collection, so the
// limit is clamped to the current document count.
func (x vectorIndex) nearest(ctx context.Context, embedding []float32, limit int) ([]chromem.Result, error) {
	n := x.col.Count()
	if n == 0 || limit <= 0 {
		return nil, nil
	}
	if limit > n {
		limit = n
	}

	results, err := x.col.QueryEmbedding(ctx, embedding, limit, nil, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query vector index")
	}
	return results, nil
}
