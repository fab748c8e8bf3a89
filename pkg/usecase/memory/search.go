package memory

import (
	"context"
	"strings"

	"github.com/m-mizutani/engram/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Search embeds the query and ranks the owner's records by similarity.
// Results are ordered by descending score with ties broken by recency. A
// topic filter restricts hits to records sharing at least one topic label.
func (u *UseCase) Search(ctx context.Context, owner model.OwnerID, query string, limit int, topicFilter []string) ([]*model.SearchHit, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, goerr.New("query is empty")
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	embedding, err := u.gemini.Embedding(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed query", goerr.V("owner", owner))
	}

	filter := model.NormalizeTopics(topicFilter)

	// Fetch extra when filtering so the limit can still be filled after
	// non-matching records drop out.
	fetch := limit
	if len(filter) > 0 {
		fetch = limit * 4
	}

	lock := u.ownerLock(owner)
	lock.RLock()
	defer lock.RUnlock()

	hits, err := u.repo.Search(ctx, owner, embedding, fetch)
	if err != nil {
		return nil, err
	}

	if len(filter) == 0 {
		return hits, nil
	}

	matched := make([]*model.SearchHit, 0, limit)
	for _, hit := range hits {
		if !model.TopicsOverlap(hit.Record.Topics, filter) {
			continue
		}
		matched = append(matched, hit)
		if len(matched) >= limit {
			break
		}
	}

	return matched, nil
}
