package interfaces

import (
	"context"

	"github.com/m-mizutani/engram/pkg/model"
)

// Repository defines the interface for memory record persistence. Every
// method is scoped to one owner; implementations must isolate owners
// physically so that destroying one owner's data cannot touch another's.
//
// Implementations provide storage only. Write serialization and the
// dedup-then-write sequence are the memory usecase's job.
type Repository interface {
	// Put persists a new record and its vector-index entry. It must leave no
	// partial state on failure.
	Put(ctx context.Context, owner model.OwnerID, rec *model.MemoryRecord) error

	// Get retrieves a record by ID. Returns model.ErrRecordNotFound when the
	// record does not exist for the owner.
	Get(ctx context.Context, owner model.OwnerID, id model.MemoryID) (*model.MemoryRecord, error)

	// Update overwrites the mutable fields of an existing record together
	// with its vector entry. Returns model.ErrRecordNotFound when absent.
	Update(ctx context.Context, owner model.OwnerID, rec *model.MemoryRecord) error

	// Delete removes a record and its vector entry. Returns false when the
	// record did not exist; deleting twice is not an error.
	Delete(ctx context.Context, owner model.OwnerID, id model.MemoryID) (bool, error)

	// Search performs vector similarity search and returns up to limit hits
	// ordered by descending score, ties broken by most recent update.
	Search(ctx context.Context, owner model.OwnerID, embedding []float32, limit int) ([]*model.SearchHit, error)

	// List retrieves records most-recent-first with optional topic filter.
	// The order is deterministic for identical inputs.
	List(ctx context.Context, owner model.OwnerID, opt model.ListOption) ([]*model.MemoryRecord, error)

	// Count returns the number of records stored for the owner
	Count(ctx context.Context, owner model.OwnerID) (int, error)

	// TopicStats returns how many records carry each topic label
	TopicStats(ctx context.Context, owner model.OwnerID) (map[string]int, error)

	// RemoveOwner destroys all data of the owner and returns the number of
	// removed records.
	RemoveOwner(ctx context.Context, owner model.OwnerID) (int, error)

	// Close releases all storage handles
	Close() error
}
