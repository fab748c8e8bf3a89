package knowledge

import (
	"context"
	"time"

	"github.com/m-mizutani/engram/pkg/model"
	"github.com/m-mizutani/engram/pkg/utils/logging"
)

// Delete removes the memory locally, then hunts down and deletes the graph
// documents carrying its id. The local deletion is authoritative: remote
// failures are logged and never change the returned result.
func (u *UseCase) Delete(ctx context.Context, owner model.OwnerID, id model.MemoryID) (bool, error) {
	deleted, err := u.memory.Delete(ctx, owner, id)
	if err != nil || !deleted {
		return deleted, err
	}

	u.cleanupGraphDocs(ctx, owner, []model.MemoryID{id})

	return true, nil
}

// DeleteByTopic removes every local record carrying one of the topics and
// cleans their graph documents in one batch. The count reflects local
// deletions only.
func (u *UseCase) DeleteByTopic(ctx context.Context, owner model.OwnerID, topics []string) (int, error) {
	ids, err := u.memory.DeleteByTopic(ctx, owner, topics)
	if err != nil {
		return len(ids), err
	}

	u.cleanupGraphDocs(ctx, owner, ids)

	return len(ids), nil
}

// ClearAll destroys all of the owner's local records and cleans their graph
// documents.
func (u *UseCase) ClearAll(ctx context.Context, owner model.OwnerID) (int, error) {
	ids, err := u.memory.Clear(ctx, owner)
	if err != nil {
		return len(ids), err
	}

	u.cleanupGraphDocs(ctx, owner, ids)

	return len(ids), nil
}

// cleanupGraphDocs correlates memory ids against the remote document
// listing by the id embedded in each filename, waits for the ingestion
// pipeline to settle, and issues one batch delete. Finding nothing to
// delete is normal: the upload may have failed or never happened.
func (u *UseCase) cleanupGraphDocs(ctx context.Context, owner model.OwnerID, ids []model.MemoryID) {
	if u.graph == nil || len(ids) == 0 {
		return
	}
	logger := logging.From(ctx)

	docs, err := u.graph.ListDocuments(ctx)
	if err != nil {
		logger.Warn("failed to list graph documents for cleanup",
			"owner", owner, "error", err)
		return
	}

	var docIDs []string
	for _, doc := range docs {
		for _, id := range ids {
			if model.MatchGraphDoc(doc.FilePath, id) {
				docIDs = append(docIDs, doc.ID)
				break
			}
		}
	}
	if len(docIDs) == 0 {
		logger.Debug("no graph documents to delete", "owner", owner)
		return
	}

	u.waitPipelineIdle(ctx)

	if err := u.graph.DeleteDocuments(ctx, docIDs); err != nil {
		logger.Warn("failed to delete graph documents",
			"owner", owner, "count", len(docIDs), "error", err)
		return
	}

	logger.Debug("deleted graph documents", "owner", owner, "count", len(docIDs))
}

// waitPipelineIdle polls the ingestion pipeline until it reports idle or
// the bounded wait expires. Expiry does not fail the delete: deleting a
// document that is mid-ingest is the graph service's problem to reject,
// and the retry path is a later cleanup.
func (u *UseCase) waitPipelineIdle(ctx context.Context) {
	deadline := time.Now().Add(u.pipelineWaitMax)

	for {
		busy, err := u.graph.PipelineBusy(ctx)
		if err != nil {
			logging.From(ctx).Warn("pipeline status check failed", "error", err)
			return
		}
		if !busy {
			return
		}
		if time.Now().After(deadline) {
			logging.From(ctx).Warn("pipeline still busy after bounded wait, proceeding")
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(u.pipelineInterval):
		}
	}
}
