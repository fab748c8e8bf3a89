package knowledge_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/engram/pkg/adapter"
	"github.com/m-mizutani/engram/pkg/model"
	"github.com/m-mizutani/engram/pkg/repository"
	"github.com/m-mizutani/engram/pkg/usecase/knowledge"
	"github.com/m-mizutani/engram/pkg/usecase/memory"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"google.golang.org/genai"
)

type mockGraph struct {
	insertFunc   func(ctx context.Context, name string, content string) error
	queryFunc    func(ctx context.Context, query string, mode string, topK int) (string, error)
	listFunc     func(ctx context.Context) ([]adapter.GraphDoc, error)
	deleteFunc   func(ctx context.Context, ids []string) error
	pipelineFunc func(ctx context.Context) (bool, error)
}

func (m *mockGraph) InsertDocument(ctx context.Context, name string, content string) error {
	if m.insertFunc != nil {
		return m.insertFunc(ctx, name, content)
	}
	return nil
}

func (m *mockGraph) Query(ctx context.Context, query string, mode string, topK int) (string, error) {
	if m.queryFunc != nil {
		return m.queryFunc(ctx, query, mode, topK)
	}
	return "", goerr.New("no query stub configured")
}

func (m *mockGraph) ListDocuments(ctx context.Context) ([]adapter.GraphDoc, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return nil, nil
}

func (m *mockGraph) DeleteDocuments(ctx context.Context, ids []string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, ids)
	}
	return nil
}

func (m *mockGraph) PipelineBusy(ctx context.Context) (bool, error) {
	if m.pipelineFunc != nil {
		return m.pipelineFunc(ctx)
	}
	return false, nil
}

type mockGemini struct {
	generateContentFunc func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	embeddingFunc       func(ctx context.Context, text string) ([]float32, error)
}

func (m *mockGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if m.generateContentFunc != nil {
		return m.generateContentFunc(ctx, contents, config)
	}
	return textResponse(`["general"]`), nil
}

func (m *mockGemini) Embedding(ctx context.Context, text string) ([]float32, error) {
	if m.embeddingFunc != nil {
		return m.embeddingFunc(ctx, text)
	}
	return nil, goerr.New("no embedding stub configured")
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: text}}}},
		},
	}
}

// fixtureGemini serves embeddings from a fixture table so that similarity
// between test sentences is fully controlled.
func fixtureGemini(vectors map[string][]float32) *mockGemini {
	return &mockGemini{
		embeddingFunc: func(ctx context.Context, text string) ([]float32, error) {
			vec, ok := vectors[text]
			if !ok {
				return nil, goerr.New("no fixture vector", goerr.V("text", text))
			}
			return vec, nil
		},
	}
}

func newKnowledge(t *testing.T, gemini adapter.Gemini, graph adapter.Graph, opts ...knowledge.Option) *knowledge.UseCase {
	t.Helper()
	repo, err := repository.New(t.TempDir())
	gt.NoError(t, err)
	t.Cleanup(func() {
		gt.NoError(t, repo.Close())
	})
	return knowledge.New(memory.New(repo, gemini), graph, opts...)
}

func TestListRecentStats(t *testing.T) {
	ctx := context.Background()
	uc := newKnowledge(t, fixtureGemini(map[string][]float32{
		"I play chess on Tuesdays": {1, 0, 0},
		"My doctor is Dr. Tanaka":  {0, 1, 0},
	}), &mockGraph{})

	seeds := []memory.AddInput{
		{Content: "I play chess on Tuesdays", Topics: []string{"hobbies"}},
		{Content: "My doctor is Dr. Tanaka", Topics: []string{"health"}},
	}
	for _, seed := range seeds {
		res, err := uc.Store(ctx, "u1", seed)
		gt.NoError(t, err)
		gt.Equal(t, res.Outcome, model.OutcomeSuccess)
	}

	all, err := uc.List(ctx, "u1", nil, 0)
	gt.NoError(t, err)
	gt.A(t, all).Length(2)

	hobbies, err := uc.List(ctx, "u1", []string{"hobbies"}, 0)
	gt.NoError(t, err)
	gt.A(t, hobbies).Length(1)
	gt.Equal(t, hobbies[0].Content, "I play chess on Tuesdays")

	recent, err := uc.Recent(ctx, "u1", 1)
	gt.NoError(t, err)
	gt.A(t, recent).Length(1)

	stats, err := uc.Stats(ctx, "u1")
	gt.NoError(t, err)
	gt.Equal(t, stats.Count, 2)
	gt.Equal(t, stats.Topics["hobbies"], 1)
	gt.Equal(t, stats.Topics["health"], 1)
}
