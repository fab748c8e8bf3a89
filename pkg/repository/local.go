package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/m-mizutani/engram/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Local stores memory records on the local filesystem, one directory per
// owner. Each owner directory holds a SQLite database for the records and a
// persistent vector index for similarity search, so removing the directory
// removes every trace of that owner and nothing else.
type Local struct {
	baseDir string

	mu     sync.RWMutex
	owners map[model.OwnerID]*ownerStore
}

type ownerStore struct {
	dir string
	db  recordDB
	vec vectorIndex
}

// New creates a Local repository rooted at baseDir. Owner stores are opened
// lazily on first use.
func New(baseDir string) (*Local, error) {
	if baseDir == "" {
		return nil, goerr.New("base directory is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, goerr.Wrap(err, "failed to create base directory", goerr.V("dir", baseDir))
	}

	return &Local{
		baseDir: baseDir,
		owners:  map[model.OwnerID]*ownerStore{},
	}, nil
}

func (x *Local) ownerDir(owner model.OwnerID) string {
	return filepath.Join(x.baseDir, string(owner))
}

// store returns the owner's handle, opening it on first access
func (x *Local) store(owner model.OwnerID) (*ownerStore, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	x.mu.RLock()
	s, ok := x.owners[owner]
	x.mu.RUnlock()
	if ok {
		return s, nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if s, ok := x.owners[owner]; ok {
		return s, nil
	}

	s, err := openOwnerStore(x.ownerDir(owner))
	if err != nil {
		return nil, err
	}
	x.owners[owner] = s
	return s, nil
}

func openOwnerStore(dir string) (*ownerStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, goerr.Wrap(err, "failed to create owner directory", goerr.V("dir", dir))
	}

	db, err := openRecordDB(filepath.Join(dir, "records.db"))
	if err != nil {
		return nil, err
	}

	vec, err := openVectorIndex(filepath.Join(dir, "vectors"))
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &ownerStore{dir: dir, db: db, vec: vec}, nil
}

func (s *ownerStore) close() error {
	return s.db.Close()
}

// Put persists a record row and its vector entry. When the vector write
// fails the row is removed again so no partial record survives.
func (x *Local) Put(ctx context.Context, owner model.OwnerID, rec *model.MemoryRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	s, err := x.store(owner)
	if err != nil {
		return err
	}

	if err := s.db.insert(ctx, rec); err != nil {
		return err
	}
	if err := s.vec.add(ctx, rec); err != nil {
		_, _ = s.db.remove(ctx, rec.ID)
		return err
	}
	return nil
}

func (x *Local) Get(ctx context.Context, owner model.OwnerID, id model.MemoryID) (*model.MemoryRecord, error) {
	s, err := x.store(owner)
	if err != nil {
		return nil, err
	}

	rec, err := s.db.get(ctx, id)
	if err != nil {
		return nil, err
	}
	rec.OwnerID = owner
	return rec, nil
}

func (x *Local) Update(ctx context.Context, owner model.OwnerID, rec *model.MemoryRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	s, err := x.store(owner)
	if err != nil {
		return err
	}

	if err := s.db.update(ctx, rec); err != nil {
		return err
	}
	if err := s.vec.update(ctx, rec); err != nil {
		return err
	}
	return nil
}

func (x *Local) Delete(ctx context.Context, owner model.OwnerID, id model.MemoryID) (bool, error) {
	s, err := x.store(owner)
	if err != nil {
		return false, err
	}

	deleted, err := s.db.remove(ctx, id)
	if err != nil {
		return false, err
	}
	if deleted {
		if err := s.vec.remove(ctx, id); err != nil {
			return false, err
		}
	}
	return deleted, nil
}

func (x *Local) Search(ctx context.Context, owner model.OwnerID, embedding []float32, limit int) ([]*model.SearchHit, error) {
	s, err := x.store(owner)
	if err != nil {
		return nil, err
	}

	results, err := s.vec.nearest(ctx, embedding, limit)
	if err != nil {
		return nil, err
	}

	hits := make([]*model.SearchHit, 0, len(results))
	for _, r := range results {
		rec, err := s.db.get(ctx, model.MemoryID(r.ID))
		if err != nil {
			// An index entry without a record means a crashed partial write;
			// skip it rather than failing the whole search.
			if errors.Is(err, model.ErrRecordNotFound) {
				continue
			}
			return nil, err
		}
		rec.OwnerID = owner
		hits = append(hits, &model.SearchHit{Record: rec, Score: float64(r.Similarity)})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Record.UpdatedAt.After(hits[j].Record.UpdatedAt)
	})

	return hits, nil
}

func (x *Local) List(ctx context.Context, owner model.OwnerID, opt model.ListOption) ([]*model.MemoryRecord, error) {
	s, err := x.store(owner)
	if err != nil {
		return nil, err
	}

	recs, err := s.db.list(ctx, opt)
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		rec.OwnerID = owner
	}
	return recs, nil
}

func (x *Local) Count(ctx context.Context, owner model.OwnerID) (int, error) {
	s, err := x.store(owner)
	if err != nil {
		return 0, err
	}
	return s.db.count(ctx)
}

func (x *Local) TopicStats(ctx context.Context, owner model.OwnerID) (map[string]int, error) {
	s, err := x.store(owner)
	if err != nil {
		return nil, err
	}
	return s.db.topicStats(ctx)
}

// RemoveOwner destroys the owner's directory after closing its handles and
// returns how many records were stored there.
func (x *Local) RemoveOwner(ctx context.Context, owner model.OwnerID) (int, error) {
	if err := owner.Validate(); err != nil {
		return 0, err
	}

	dir := x.ownerDir(owner)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}

	s, err := x.store(owner)
	if err != nil {
		return 0, err
	}

	count, err := s.db.count(ctx)
	if err != nil {
		return 0, err
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.owners, owner)
	if err := s.close(); err != nil {
		return 0, goerr.Wrap(err, "failed to close owner store", goerr.V("owner", owner))
	}
	if err := os.RemoveAll(dir); err != nil {
		return 0, goerr.Wrap(err, "failed to remove owner directory", goerr.V("dir", dir))
	}
	return count, nil
}

// Close releases all open owner stores
func (x *Local) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	var errs []error
	for owner, s := range x.owners {
		if err := s.close(); err != nil {
			errs = append(errs, goerr.Wrap(err, "failed to close owner store", goerr.V("owner", owner)))
		}
		delete(x.owners, owner)
	}
	return errors.Join(errs...)
}
