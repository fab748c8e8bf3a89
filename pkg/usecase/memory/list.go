package memory

import (
	"context"

	"github.com/m-mizutani/engram/pkg/model"
)

// ListByTopic returns records carrying at least one of the given topics,
// most recent first. An empty topic list returns everything.
func (u *UseCase) ListByTopic(ctx context.Context, owner model.OwnerID, topics []string, limit int) ([]*model.MemoryRecord, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	lock := u.ownerLock(owner)
	lock.RLock()
	defer lock.RUnlock()

	return u.repo.List(ctx, owner, model.ListOption{
		Topics: model.NormalizeTopics(topics),
		Limit:  limit,
	})
}

// ListAll returns the owner's records, most recent first.
func (u *UseCase) ListAll(ctx context.Context, owner model.OwnerID, limit int) ([]*model.MemoryRecord, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	lock := u.ownerLock(owner)
	lock.RLock()
	defer lock.RUnlock()

	return u.repo.List(ctx, owner, model.ListOption{Limit: limit})
}

// Recent returns the most recently touched records.
func (u *UseCase) Recent(ctx context.Context, owner model.OwnerID, limit int) ([]*model.MemoryRecord, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return u.ListAll(ctx, owner, limit)
}

// Stats reports the owner's record count and topic histogram.
func (u *UseCase) Stats(ctx context.Context, owner model.OwnerID) (*model.MemoryStats, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	lock := u.ownerLock(owner)
	lock.RLock()
	defer lock.RUnlock()

	count, err := u.repo.Count(ctx, owner)
	if err != nil {
		return nil, err
	}
	topics, err := u.repo.TopicStats(ctx, owner)
	if err != nil {
		return nil, err
	}

	return &model.MemoryStats{Count: count, Topics: topics}, nil
}
