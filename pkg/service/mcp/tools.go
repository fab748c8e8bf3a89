package mcp

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/engram/pkg/model"
	"github.com/m-mizutani/engram/pkg/usecase/memory"
	"github.com/m-mizutani/goerr/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type storeParams struct {
	Content    string   `json:"content" jsonschema:"The memory content to store, one self-contained fact"`
	Topics     []string `json:"topics,omitempty" jsonschema:"Topic labels for the memory, classified automatically when omitted"`
	Confidence *float64 `json:"confidence,omitempty" jsonschema:"Confidence in the fact between 0.0 and 1.0, defaults to 1.0"`
	IsProxy    bool     `json:"is_proxy,omitempty" jsonschema:"True when storing on behalf of another agent"`
	ProxyAgent string   `json:"proxy_agent,omitempty" jsonschema:"Name of the agent the memory is stored for, requires is_proxy"`
	Owner      string   `json:"owner,omitempty" jsonschema:"Owner of the memory, defaults to the configured owner"`
}

// writeResult is the structured mirror of the tool's text output
type writeResult struct {
	Outcome        string   `json:"outcome"`
	MemoryID       string   `json:"memory_id,omitempty"`
	Topics         []string `json:"topics,omitempty"`
	Similarity     float64  `json:"similarity,omitempty"`
	MatchedContent string   `json:"matched_content,omitempty"`
	Message        string   `json:"message,omitempty"`
}

func (s *Server) handleStore(ctx context.Context, req *mcp.CallToolRequest, params *storeParams) (*mcp.CallToolResult, any, error) {
	res, err := s.uc.Store(ctx, s.resolveOwner(params.Owner), memory.AddInput{
		Content:    params.Content,
		Topics:     params.Topics,
		Confidence: params.Confidence,
		IsProxy:    params.IsProxy,
		ProxyAgent: params.ProxyAgent,
	})
	if err != nil {
		return nil, nil, err
	}

	payload := &writeResult{
		Outcome:        string(res.Outcome),
		MemoryID:       string(res.MemoryID),
		Topics:         res.Topics,
		Similarity:     res.Similarity,
		MatchedContent: res.MatchedContent,
		Message:        res.Message,
	}

	return textResult(formatWriteResult(res)), payload, nil
}

type queryParams struct {
	Query string `json:"query"`
	Mode  string `json:"mode,omitempty"`
	Limit int    `json:"limit,omitempty"`
	Owner string `json:"owner,omitempty"`
}

// queryInputSchema declares the query tool schema explicitly so the mode
// enum is visible to clients instead of a free-form string.
func queryInputSchema() *jsonschema.Schema {
	modes := make([]any, 0, len(model.QueryModes()))
	for _, mode := range model.QueryModes() {
		modes = append(modes, string(mode))
	}

	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"query": {
				Type:        "string",
				Description: "Natural language question about stored memories",
			},
			"mode": {
				Type:        "string",
				Description: "Routing mode, defaults to auto",
				Enum:        modes,
			},
			"limit": {
				Type:        "integer",
				Description: "Maximum local results or graph top_k",
			},
			"owner": {
				Type:        "string",
				Description: "Owner of the memories, defaults to the configured owner",
			},
		},
		Required: []string{"query"},
	}
}

type queryResult struct {
	Mode     string `json:"mode"`
	Source   string `json:"source"`
	Fallback bool   `json:"fallback,omitempty"`
}

func (s *Server) handleQuery(ctx context.Context, req *mcp.CallToolRequest, params *queryParams) (*mcp.CallToolResult, any, error) {
	res, err := s.uc.Query(ctx, s.resolveOwner(params.Owner), params.Query, model.QueryMode(params.Mode), params.Limit)
	if err != nil {
		return nil, nil, err
	}

	payload := &queryResult{
		Mode:     string(res.Mode),
		Source:   string(res.Source),
		Fallback: res.Fallback,
	}

	return textResult(res.Response), payload, nil
}

type updateParams struct {
	ID      string   `json:"id" jsonschema:"Identifier of the memory to update"`
	Content string   `json:"content,omitempty" jsonschema:"New content, re-embedded when set"`
	Topics  []string `json:"topics,omitempty" jsonschema:"New topic labels, replacing the current ones"`
	Owner   string   `json:"owner,omitempty" jsonschema:"Owner of the memory, defaults to the configured owner"`
}

func (s *Server) handleUpdate(ctx context.Context, req *mcp.CallToolRequest, params *updateParams) (*mcp.CallToolResult, any, error) {
	var content *string
	if params.Content != "" {
		content = &params.Content
	}

	ok, err := s.uc.Update(ctx, s.resolveOwner(params.Owner), model.MemoryID(params.ID), content, params.Topics)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return textResult(fmt.Sprintf("No memory found with id %s", params.ID)), map[string]any{"updated": false}, nil
	}

	return textResult("Memory updated."), map[string]any{"updated": true}, nil
}

type forgetParams struct {
	ID     string   `json:"id,omitempty" jsonschema:"Identifier of a single memory to delete"`
	Topics []string `json:"topics,omitempty" jsonschema:"Delete every memory carrying one of these topics"`
	Owner  string   `json:"owner,omitempty" jsonschema:"Owner of the memories, defaults to the configured owner"`
}

func (s *Server) handleForget(ctx context.Context, req *mcp.CallToolRequest, params *forgetParams) (*mcp.CallToolResult, any, error) {
	owner := s.resolveOwner(params.Owner)

	switch {
	case params.ID != "" && len(params.Topics) > 0:
		return nil, nil, goerr.New("id and topics are mutually exclusive")

	case params.ID != "":
		deleted, err := s.uc.Delete(ctx, owner, model.MemoryID(params.ID))
		if err != nil {
			return nil, nil, err
		}
		if !deleted {
			return textResult(fmt.Sprintf("No memory found with id %s", params.ID)), map[string]any{"deleted": 0}, nil
		}
		return textResult("Memory deleted."), map[string]any{"deleted": 1}, nil

	case len(params.Topics) > 0:
		count, err := s.uc.DeleteByTopic(ctx, owner, params.Topics)
		if err != nil {
			return nil, nil, err
		}
		return textResult(fmt.Sprintf("Deleted %d memories.", count)), map[string]any{"deleted": count}, nil

	default:
		return nil, nil, goerr.New("either id or topics is required")
	}
}

type clearParams struct {
	Owner string `json:"owner,omitempty" jsonschema:"Owner of the memories, defaults to the configured owner"`
}

func (s *Server) handleClear(ctx context.Context, req *mcp.CallToolRequest, params *clearParams) (*mcp.CallToolResult, any, error) {
	count, err := s.uc.ClearAll(ctx, s.resolveOwner(params.Owner))
	if err != nil {
		return nil, nil, err
	}

	return textResult(fmt.Sprintf("Deleted all %d memories.", count)), map[string]any{"deleted": count}, nil
}

type listParams struct {
	Topics []string `json:"topics,omitempty" jsonschema:"Only list memories carrying one of these topics"`
	Limit  int      `json:"limit,omitempty" jsonschema:"Maximum number of memories to return"`
	Owner  string   `json:"owner,omitempty" jsonschema:"Owner of the memories, defaults to the configured owner"`
}

type recordPayload struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	Topics     []string  `json:"topics"`
	IsProxy    bool      `json:"is_proxy,omitempty"`
	ProxyAgent string    `json:"proxy_agent,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (s *Server) handleList(ctx context.Context, req *mcp.CallToolRequest, params *listParams) (*mcp.CallToolResult, any, error) {
	records, err := s.uc.List(ctx, s.resolveOwner(params.Owner), params.Topics, params.Limit)
	if err != nil {
		return nil, nil, err
	}

	payload := make([]*recordPayload, 0, len(records))
	for _, rec := range records {
		payload = append(payload, &recordPayload{
			ID:         string(rec.ID),
			Content:    rec.Content,
			Topics:     rec.Topics,
			IsProxy:    rec.IsProxy,
			ProxyAgent: rec.ProxyAgent,
			CreatedAt:  rec.CreatedAt,
			UpdatedAt:  rec.UpdatedAt,
		})
	}

	return textResult(formatRecords(records)), payload, nil
}

type statsParams struct {
	Owner string `json:"owner,omitempty" jsonschema:"Owner of the memories, defaults to the configured owner"`
}

type statsResult struct {
	Count  int            `json:"count"`
	Topics map[string]int `json:"topics"`
}

func (s *Server) handleStats(ctx context.Context, req *mcp.CallToolRequest, params *statsParams) (*mcp.CallToolResult, any, error) {
	stats, err := s.uc.Stats(ctx, s.resolveOwner(params.Owner))
	if err != nil {
		return nil, nil, err
	}

	return textResult(formatStats(stats)), &statsResult{Count: stats.Count, Topics: stats.Topics}, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func formatWriteResult(res *model.WriteResult) string {
	switch res.Outcome {
	case model.OutcomeSuccess:
		return fmt.Sprintf("Stored memory %s [%s]", res.MemoryID, strings.Join(res.Topics, ", "))
	case model.OutcomeSuccessLocalOnly:
		return fmt.Sprintf("Stored memory %s [%s] locally; graph replication failed", res.MemoryID, strings.Join(res.Topics, ", "))
	case model.OutcomeDuplicateExact, model.OutcomeDuplicateSemantic:
		return fmt.Sprintf("Already known (similarity %.2f): %s", res.Similarity, res.MatchedContent)
	default:
		if res.Message != "" {
			return res.Message
		}
		return string(res.Outcome)
	}
}

func formatRecords(records []*model.MemoryRecord) string {
	if len(records) == 0 {
		return "No memories stored."
	}

	var sb strings.Builder
	for _, rec := range records {
		fmt.Fprintf(&sb, "- %s [%s] (%s)\n", rec.Content, strings.Join(rec.Topics, ", "), rec.ID)
	}

	return strings.TrimRight(sb.String(), "\n")
}

func formatStats(stats *model.MemoryStats) string {
	if stats.Count == 0 {
		return "No memories stored."
	}

	topics := make([]string, 0, len(stats.Topics))
	for topic := range stats.Topics {
		topics = append(topics, topic)
	}
	sort.Strings(topics)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Total: %d\n", stats.Count)
	for _, topic := range topics {
		fmt.Fprintf(&sb, "- %s: %d\n", topic, stats.Topics[topic])
	}

	return strings.TrimRight(sb.String(), "\n")
}
