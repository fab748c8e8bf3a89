package memory

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/m-mizutani/engram/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// AddInput carries the caller-supplied fields of a new memory.
type AddInput struct {
	Content string
	Topics  []string

	// Confidence defaults to 1.0 when nil. Zero is a valid value, so the
	// unset case needs the pointer.
	Confidence *float64

	IsProxy    bool
	ProxyAgent string
}

// Add stores a new memory for the owner. The result always carries a
// discriminated outcome: validation problems and duplicates are outcomes,
// not errors. A non-nil error means the storage or embedding layer failed
// and accompanies a storage_error outcome.
func (u *UseCase) Add(ctx context.Context, owner model.OwnerID, input AddInput) (*model.WriteResult, error) {
	if err := owner.Validate(); err != nil {
		return validationResult(err.Error()), nil
	}

	content := strings.TrimSpace(input.Content)
	if content == "" {
		return &model.WriteResult{
			Outcome: model.OutcomeContentEmpty,
			Message: "content is empty or whitespace only",
		}, nil
	}
	if utf8.RuneCountInString(content) > u.maxContentChars {
		return &model.WriteResult{
			Outcome: model.OutcomeContentTooLong,
			Message: fmt.Sprintf("content exceeds %d characters", u.maxContentChars),
		}, nil
	}

	confidence := 1.0
	if input.Confidence != nil {
		confidence = *input.Confidence
	}
	if confidence < 0 || confidence > 1 {
		return validationResult(fmt.Sprintf("confidence %v is out of range [0.0, 1.0]", confidence)), nil
	}
	if input.IsProxy && input.ProxyAgent == "" {
		return validationResult("proxy memory requires a proxy agent name"), nil
	}
	if !input.IsProxy && input.ProxyAgent != "" {
		return validationResult("proxy agent is set but the memory is not marked as proxy"), nil
	}

	// Classification and embedding are remote calls, so both happen before
	// the owner lock. A duplicate therefore costs one needless
	// classification, which is preferable to holding the lock across
	// network I/O.
	topics := model.NormalizeTopics(input.Topics)
	if len(topics) == 0 {
		topics = u.classifier.Classify(ctx, content)
	}

	embedding, err := u.gemini.Embedding(ctx, content)
	if err != nil {
		return storageResult("failed to embed content"),
			goerr.Wrap(err, "failed to embed content", goerr.V("owner", owner))
	}

	lock := u.ownerLock(owner)
	lock.Lock()
	defer lock.Unlock()

	dup, err := u.findDuplicate(ctx, owner, embedding)
	if err != nil {
		return storageResult("failed to check for duplicates"),
			goerr.Wrap(err, "failed to check for duplicates", goerr.V("owner", owner))
	}
	if dup != nil {
		return dup, nil
	}

	now := time.Now()
	rec := &model.MemoryRecord{
		ID:         model.NewMemoryID(),
		OwnerID:    owner,
		Content:    content,
		Topics:     topics,
		Embedding:  embedding,
		Confidence: confidence,
		IsProxy:    input.IsProxy,
		ProxyAgent: input.ProxyAgent,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := u.repo.Put(ctx, owner, rec); err != nil {
		return storageResult("failed to persist memory"),
			goerr.Wrap(err, "failed to persist memory", goerr.V("owner", owner), goerr.V("id", rec.ID))
	}

	return &model.WriteResult{
		Outcome:  model.OutcomeSuccess,
		MemoryID: rec.ID,
		Topics:   topics,
		LocalOK:  true,
	}, nil
}

// findDuplicate inspects the nearest neighbor of the embedding and returns a
// duplicate result when its similarity reaches a rejection threshold.
func (u *UseCase) findDuplicate(ctx context.Context, owner model.OwnerID, embedding []float32) (*model.WriteResult, error) {
	hits, err := u.repo.Search(ctx, owner, embedding, 1)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	top := hits[0]
	switch {
	case top.Score >= ExactThreshold:
		return &model.WriteResult{
			Outcome:        model.OutcomeDuplicateExact,
			MemoryID:       top.Record.ID,
			Topics:         top.Record.Topics,
			Similarity:     top.Score,
			MatchedContent: top.Record.Content,
			Message:        "an identical memory is already stored",
		}, nil
	case top.Score >= u.semanticThreshold:
		return &model.WriteResult{
			Outcome:        model.OutcomeDuplicateSemantic,
			MemoryID:       top.Record.ID,
			Topics:         top.Record.Topics,
			Similarity:     top.Score,
			MatchedContent: top.Record.Content,
			Message:        "a closely similar memory is already stored",
		}, nil
	}

	return nil, nil
}

func validationResult(msg string) *model.WriteResult {
	return &model.WriteResult{
		Outcome: model.OutcomeValidationError,
		Message: msg,
	}
}

func storageResult(msg string) *model.WriteResult {
	return &model.WriteResult{
		Outcome: model.OutcomeStorageError,
		Message: msg,
	}
}
