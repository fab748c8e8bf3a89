package memory

import (
	"context"

	"github.com/m-mizutani/engram/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Delete removes one memory record and its vector entry. Deleting an id
// that does not exist returns false, not an error.
func (u *UseCase) Delete(ctx context.Context, owner model.OwnerID, id model.MemoryID) (bool, error) {
	if err := owner.Validate(); err != nil {
		return false, err
	}

	lock := u.ownerLock(owner)
	lock.Lock()
	defer lock.Unlock()

	return u.repo.Delete(ctx, owner, id)
}

// DeleteByTopic removes every record carrying at least one of the given
// topics and returns the removed ids so callers can clean up replicas.
func (u *UseCase) DeleteByTopic(ctx context.Context, owner model.OwnerID, topics []string) ([]model.MemoryID, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	norm := model.NormalizeTopics(topics)
	if len(norm) == 0 {
		return nil, goerr.New("no topics given")
	}

	lock := u.ownerLock(owner)
	lock.Lock()
	defer lock.Unlock()

	recs, err := u.repo.List(ctx, owner, model.ListOption{Topics: norm})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list memories for topic deletion", goerr.V("owner", owner))
	}

	deleted := make([]model.MemoryID, 0, len(recs))
	for _, rec := range recs {
		ok, err := u.repo.Delete(ctx, owner, rec.ID)
		if err != nil {
			return deleted, goerr.Wrap(err, "failed to delete memory", goerr.V("id", rec.ID))
		}
		if ok {
			deleted = append(deleted, rec.ID)
		}
	}

	return deleted, nil
}

// Clear destroys all of the owner's records and returns the removed ids.
// The owner's underlying files are removed entirely so no trace remains on
// disk.
func (u *UseCase) Clear(ctx context.Context, owner model.OwnerID) ([]model.MemoryID, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	lock := u.ownerLock(owner)
	lock.Lock()
	defer lock.Unlock()

	recs, err := u.repo.List(ctx, owner, model.ListOption{})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list memories for clearing", goerr.V("owner", owner))
	}

	if _, err := u.repo.RemoveOwner(ctx, owner); err != nil {
		return nil, goerr.Wrap(err, "failed to clear owner storage", goerr.V("owner", owner))
	}

	ids := make([]model.MemoryID, 0, len(recs))
	for _, rec := range recs {
		ids = append(ids, rec.ID)
	}

	return ids, nil
}
