package knowledge

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/m-mizutani/engram/pkg/model"
	"github.com/m-mizutani/engram/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// autoGraphMode is the graph mode used when auto routing picks the graph
// service.
const autoGraphMode = model.ModeMix

// graphQueryWords are single words that imply relationship or multi-hop
// reasoning, which the local vector index cannot answer.
var graphQueryWords = map[string]bool{
	"why": true, "how": true, "who": true, "whom": true,
	"relate": true, "relates": true, "related": true, "relationship": true,
	"between": true, "connection": true, "connected": true,
	"compare": true, "compared": true, "because": true,
	"influence": true, "influenced": true, "affect": true, "affects": true,
	"history": true, "evolve": true, "evolved": true,
}

// graphQueryPhrases catch multi-word reasoning markers.
var graphQueryPhrases = []string{
	"change over time",
	"changed over time",
	"relate to",
	"connected to",
	"in common",
}

// wordCountGraphCutoff routes long multi-clause questions to the graph.
const wordCountGraphCutoff = 12

// Query routes a read to the local vector index or the graph service.
// Explicit modes are honored as given and their backend errors propagate.
// Auto mode picks a backend deterministically from the query shape and
// falls back to the other backend when the chosen one fails. The result
// carries the mode that actually served the query, so callers of auto
// see local or a concrete graph mode, never auto itself.
func (u *UseCase) Query(ctx context.Context, owner model.OwnerID, text string, mode model.QueryMode, limit int) (*model.QueryResult, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, goerr.New("query is empty")
	}

	if mode == "" {
		mode = model.ModeAuto
	}
	if err := mode.Validate(); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = u.graphTopK
	}

	switch mode {
	case model.ModeLocal:
		return u.queryLocal(ctx, owner, text, limit)
	case model.ModeAuto:
		return u.queryAuto(ctx, owner, text, limit)
	default:
		return u.queryGraph(ctx, text, mode, limit)
	}
}

func (u *UseCase) queryAuto(ctx context.Context, owner model.OwnerID, text string, limit int) (*model.QueryResult, error) {
	if routeToGraph(text) && u.graph != nil {
		result, err := u.queryGraph(ctx, text, autoGraphMode, limit)
		if err == nil {
			return result, nil
		}
		logging.From(ctx).Warn("graph query failed, falling back to local search",
			"owner", owner, "error", err)

		result, localErr := u.queryLocal(ctx, owner, text, limit)
		if localErr != nil {
			return nil, goerr.Wrap(localErr, "both query backends failed",
				goerr.V("graph_error", err.Error()))
		}
		result.Fallback = true
		return result, nil
	}

	result, err := u.queryLocal(ctx, owner, text, limit)
	if err == nil {
		return result, nil
	}
	if u.graph == nil {
		return nil, err
	}
	logging.From(ctx).Warn("local search failed, falling back to graph query",
		"owner", owner, "error", err)

	result, graphErr := u.queryGraph(ctx, text, autoGraphMode, limit)
	if graphErr != nil {
		return nil, goerr.Wrap(graphErr, "both query backends failed",
			goerr.V("local_error", err.Error()))
	}
	result.Fallback = true
	return result, nil
}

func (u *UseCase) queryLocal(ctx context.Context, owner model.OwnerID, text string, limit int) (*model.QueryResult, error) {
	hits, err := u.memory.Search(ctx, owner, text, limit, nil)
	if err != nil {
		return nil, err
	}

	return &model.QueryResult{
		Mode:     model.ModeLocal,
		Source:   model.SourceLocal,
		Response: FormatHits(hits),
		Hits:     hits,
	}, nil
}

func (u *UseCase) queryGraph(ctx context.Context, text string, mode model.QueryMode, topK int) (*model.QueryResult, error) {
	if u.graph == nil {
		return nil, goerr.New("graph service not configured")
	}

	resp, err := u.graph.Query(ctx, text, string(mode), topK)
	if err != nil {
		return nil, err
	}

	return &model.QueryResult{
		Mode:     mode,
		Source:   model.SourceGraph,
		Response: resp,
	}, nil
}

// routeToGraph decides where an auto-mode query goes. It must stay
// deterministic: same text, same answer.
func routeToGraph(text string) bool {
	lower := strings.ToLower(text)

	for _, phrase := range graphQueryPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}

	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, word := range words {
		if graphQueryWords[word] {
			return true
		}
	}

	return len(words) > wordCountGraphCutoff
}

// FormatHits renders local search hits as numbered lines with topics and
// score, the shape shown to end users and returned over MCP.
func FormatHits(hits []*model.SearchHit) string {
	if len(hits) == 0 {
		return "No matching memories found."
	}

	var sb strings.Builder
	for i, hit := range hits {
		fmt.Fprintf(&sb, "%d. %s [%s] (%.2f)\n",
			i+1, hit.Record.Content, strings.Join(hit.Record.Topics, ", "), hit.Score)
	}

	return strings.TrimRight(sb.String(), "\n")
}

// RouteToGraphForTest is a test helper that exposes routeToGraph
func RouteToGraphForTest(text string) bool {
	return routeToGraph(text)
}
