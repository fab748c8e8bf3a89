package knowledge

import (
	"context"
	"strings"

	"github.com/m-mizutani/engram/pkg/model"
	"github.com/m-mizutani/engram/pkg/usecase/memory"
	"github.com/m-mizutani/engram/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Store writes a memory to the local store and replicates it to the graph
// service. Non-success outcomes from the local store (duplicates,
// validation rejections) surface unchanged and never reach the graph leg.
// A failed graph upload degrades the outcome to success_local_only; the
// local write is never rolled back.
func (u *UseCase) Store(ctx context.Context, owner model.OwnerID, input memory.AddInput) (*model.WriteResult, error) {
	result, err := u.memory.Add(ctx, owner, input)
	if err != nil || result.Outcome != model.OutcomeSuccess {
		return result, err
	}

	content := strings.TrimSpace(input.Content)
	if err := u.uploadGraphDocument(ctx, result.MemoryID, content, result.Topics); err != nil {
		logging.From(ctx).Warn("graph upload failed, memory kept locally",
			"owner", owner,
			"memory_id", result.MemoryID,
			"content_hash", model.ContentHash(content),
			"error", err,
		)
		result.Outcome = model.OutcomeSuccessLocalOnly
		result.GraphOK = false
		result.Message = "memory stored locally; graph replication failed"
		return result, nil
	}

	result.GraphOK = true
	return result, nil
}

// Update applies a local update, then refreshes the graph copy by deleting
// the documents uploaded for this memory and uploading the current state
// under its new content name. The remote refresh is best-effort.
func (u *UseCase) Update(ctx context.Context, owner model.OwnerID, id model.MemoryID, content *string, topics []string) (bool, error) {
	ok, err := u.memory.Update(ctx, owner, id, content, topics)
	if err != nil || !ok {
		return ok, err
	}

	if u.graph == nil {
		return true, nil
	}

	rec, err := u.memory.Get(ctx, owner, id)
	if err != nil {
		logging.From(ctx).Warn("failed to reload memory for graph refresh",
			"owner", owner, "memory_id", id, "error", err)
		return true, nil
	}

	u.cleanupGraphDocs(ctx, owner, []model.MemoryID{id})

	if err := u.uploadGraphDocument(ctx, id, rec.Content, rec.Topics); err != nil {
		logging.From(ctx).Warn("graph refresh upload failed",
			"owner", owner,
			"memory_id", id,
			"content_hash", model.ContentHash(rec.Content),
			"error", err,
		)
	}

	return true, nil
}

func (u *UseCase) uploadGraphDocument(ctx context.Context, id model.MemoryID, content string, topics []string) error {
	if u.graph == nil {
		return goerr.New("graph service not configured")
	}

	name := model.GraphDocName(content, id)
	doc := model.BuildGraphDocument(content, topics)

	return u.graph.InsertDocument(ctx, name, doc)
}
