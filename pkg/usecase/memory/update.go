package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/m-mizutani/engram/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Update replaces the content and/or topics of an existing memory. The
// embedding is recomputed when content changes; id, owner and created_at
// never change. Returns false without error when the id does not exist for
// the owner.
func (u *UseCase) Update(ctx context.Context, owner model.OwnerID, id model.MemoryID, content *string, topics []string) (bool, error) {
	if err := owner.Validate(); err != nil {
		return false, err
	}

	newTopics := model.NormalizeTopics(topics)
	if content == nil && len(newTopics) == 0 {
		return false, goerr.New("no changes requested", goerr.V("id", id))
	}

	var newContent string
	var embedding []float32
	if content != nil {
		newContent = strings.TrimSpace(*content)
		if newContent == "" {
			return false, goerr.New("content is empty or whitespace only")
		}
		if utf8.RuneCountInString(newContent) > u.maxContentChars {
			return false, goerr.New(fmt.Sprintf("content exceeds %d characters", u.maxContentChars))
		}

		var err error
		embedding, err = u.gemini.Embedding(ctx, newContent)
		if err != nil {
			return false, goerr.Wrap(err, "failed to embed updated content", goerr.V("id", id))
		}
	}

	lock := u.ownerLock(owner)
	lock.Lock()
	defer lock.Unlock()

	rec, err := u.repo.Get(ctx, owner, id)
	if err != nil {
		if errors.Is(err, model.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}

	if content != nil {
		rec.Content = newContent
		rec.Embedding = embedding
	}
	if len(newTopics) > 0 {
		rec.Topics = newTopics
	}
	rec.UpdatedAt = time.Now()

	if err := u.repo.Update(ctx, owner, rec); err != nil {
		if errors.Is(err, model.ErrRecordNotFound) {
			return false, nil
		}
		return false, goerr.Wrap(err, "failed to update memory", goerr.V("owner", owner), goerr.V("id", id))
	}

	return true, nil
}

// Get returns a single memory record. Callers that need the previous state
// of a record before updating it (for remote document replacement) read it
// through here.
func (u *UseCase) Get(ctx context.Context, owner model.OwnerID, id model.MemoryID) (*model.MemoryRecord, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	lock := u.ownerLock(owner)
	lock.RLock()
	defer lock.RUnlock()

	return u.repo.Get(ctx, owner, id)
}
