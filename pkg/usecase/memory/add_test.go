package memory_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/engram/pkg/adapter"
	"github.com/m-mizutani/engram/pkg/model"
	"github.com/m-mizutani/engram/pkg/repository"
	"github.com/m-mizutani/engram/pkg/usecase/memory"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"google.golang.org/genai"
)

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

// vectorGemini serves embeddings from a fixture table so that similarity
// between test sentences is fully controlled.
func vectorGemini(labels string, vectors map[string][]float32) *mockGemini {
	return &mockGemini{
		generateContentFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return textResponse(labels), nil
		},
		embeddingFunc: func(ctx context.Context, text string) ([]float32, error) {
			vec, ok := vectors[text]
			if !ok {
				return nil, goerr.New("no fixture vector", goerr.V("text", text))
			}
			return vec, nil
		},
	}
}

func newUseCase(t *testing.T, gemini adapter.Gemini, opts ...memory.Option) *memory.UseCase {
	t.Helper()
	repo, err := repository.New(t.TempDir())
	gt.NoError(t, err)
	t.Cleanup(func() {
		gt.NoError(t, repo.Close())
	})
	return memory.New(repo, gemini, opts...)
}

func TestAddAndSearch(t *testing.T) {
	ctx := context.Background()
	uc := newUseCase(t, vectorGemini(`["hobbies"]`, map[string][]float32{
		"I enjoy hiking on weekends": {1, 0, 0},
	}))

	res, err := uc.Add(ctx, "u1", memory.AddInput{Content: "I enjoy hiking on weekends"})
	gt.NoError(t, err)
	gt.Equal(t, res.Outcome, model.OutcomeSuccess)
	gt.NotEqual(t, res.MemoryID, model.MemoryID(""))
	gt.Equal(t, res.Topics, []string{"hobbies"})
	gt.True(t, res.LocalOK)
	gt.True(t, res.Stored())

	// The exact content searched back must be the top hit
	hits, err := uc.Search(ctx, "u1", "I enjoy hiking on weekends", 5, nil)
	gt.NoError(t, err)
	gt.A(t, hits).Length(1)
	gt.Equal(t, hits[0].Record.ID, res.MemoryID)
	gt.Number(t, hits[0].Score).GreaterOrEqual(memory.ExactThreshold)
}

func TestAddEmptyContent(t *testing.T) {
	ctx := context.Background()
	uc := newUseCase(t, &mockGemini{})

	for _, content := range []string{"", "   ", "\t\n"} {
		res, err := uc.Add(ctx, "u1", memory.AddInput{Content: content})
		gt.NoError(t, err)
		gt.Equal(t, res.Outcome, model.OutcomeContentEmpty)
		gt.False(t, res.Stored())
	}
}

func TestAddContentTooLong(t *testing.T) {
	ctx := context.Background()
	uc := newUseCase(t, &mockGemini{}, memory.WithMaxContentChars(10))

	res, err := uc.Add(ctx, "u1", memory.AddInput{Content: "this statement is far beyond ten characters"})
	gt.NoError(t, err)
	gt.Equal(t, res.Outcome, model.OutcomeContentTooLong)
}

func TestAddValidation(t *testing.T) {
	ctx := context.Background()
	uc := newUseCase(t, &mockGemini{})

	t.Run("invalid owner", func(t *testing.T) {
		res, err := uc.Add(ctx, "a/b", memory.AddInput{Content: "content"})
		gt.NoError(t, err)
		gt.Equal(t, res.Outcome, model.OutcomeValidationError)
	})

	t.Run("confidence out of range", func(t *testing.T) {
		conf := 1.5
		res, err := uc.Add(ctx, "u1", memory.AddInput{Content: "content", Confidence: &conf})
		gt.NoError(t, err)
		gt.Equal(t, res.Outcome, model.OutcomeValidationError)
	})

	t.Run("proxy without agent", func(t *testing.T) {
		res, err := uc.Add(ctx, "u1", memory.AddInput{Content: "content", IsProxy: true})
		gt.NoError(t, err)
		gt.Equal(t, res.Outcome, model.OutcomeValidationError)
	})

	t.Run("agent without proxy flag", func(t *testing.T) {
		res, err := uc.Add(ctx, "u1", memory.AddInput{Content: "content", ProxyAgent: "scheduler"})
		gt.NoError(t, err)
		gt.Equal(t, res.Outcome, model.OutcomeValidationError)
	})
}

func TestAddDuplicateExact(t *testing.T) {
	ctx := context.Background()
	uc := newUseCase(t, vectorGemini(`["food"]`, map[string][]float32{
		"I drink coffee every morning": {0, 1, 0},
	}))

	first, err := uc.Add(ctx, "u1", memory.AddInput{Content: "I drink coffee every morning"})
	gt.NoError(t, err)
	gt.Equal(t, first.Outcome, model.OutcomeSuccess)

	second, err := uc.Add(ctx, "u1", memory.AddInput{Content: "I drink coffee every morning"})
	gt.NoError(t, err)
	gt.Equal(t, second.Outcome, model.OutcomeDuplicateExact)
	gt.Equal(t, second.MemoryID, first.MemoryID)
	gt.Equal(t, second.MatchedContent, "I drink coffee every morning")
	gt.Number(t, second.Similarity).GreaterOrEqual(memory.ExactThreshold)
	gt.False(t, second.Stored())
}

func TestAddDuplicateSemantic(t *testing.T) {
	ctx := context.Background()
	uc := newUseCase(t, vectorGemini(`["hobbies"]`, map[string][]float32{
		"I enjoy hiking on weekends":  {1, 0, 0},
		"I love hiking every weekend": {0.95, 0.312, 0},
	}))

	first, err := uc.Add(ctx, "u1", memory.AddInput{Content: "I enjoy hiking on weekends"})
	gt.NoError(t, err)
	gt.Equal(t, first.Outcome, model.OutcomeSuccess)

	second, err := uc.Add(ctx, "u1", memory.AddInput{Content: "I love hiking every weekend"})
	gt.NoError(t, err)
	gt.Equal(t, second.Outcome, model.OutcomeDuplicateSemantic)
	gt.Equal(t, second.MatchedContent, "I enjoy hiking on weekends")
	gt.Number(t, second.Similarity).GreaterOrEqual(memory.DefaultSemanticThreshold)
	gt.True(t, second.Similarity < memory.ExactThreshold)

	// The near-duplicate must not have been stored
	recs, err := uc.ListByTopic(ctx, "u1", []string{"hobbies"}, 0)
	gt.NoError(t, err)
	gt.A(t, recs).Length(1)
}

func TestAddBelowThreshold(t *testing.T) {
	ctx := context.Background()
	uc := newUseCase(t, vectorGemini(`["general"]`, map[string][]float32{
		"I enjoy hiking on weekends": {1, 0, 0},
		"my cat is named Miso":       {0.5, 0.866, 0},
	}))

	first, err := uc.Add(ctx, "u1", memory.AddInput{Content: "I enjoy hiking on weekends"})
	gt.NoError(t, err)
	gt.Equal(t, first.Outcome, model.OutcomeSuccess)

	second, err := uc.Add(ctx, "u1", memory.AddInput{Content: "my cat is named Miso"})
	gt.NoError(t, err)
	gt.Equal(t, second.Outcome, model.OutcomeSuccess)

	stats, err := uc.Stats(ctx, "u1")
	gt.NoError(t, err)
	gt.Equal(t, stats.Count, 2)
}

func TestAddSkipsClassifierWhenTopicsGiven(t *testing.T) {
	ctx := context.Background()

	var classifierCalls int
	mock := &mockGemini{
		generateContentFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			classifierCalls++
			return textResponse(`["general"]`), nil
		},
		embeddingFunc: func(ctx context.Context, text string) ([]float32, error) {
			return []float32{1, 0, 0}, nil
		},
	}
	uc := newUseCase(t, mock)

	res, err := uc.Add(ctx, "u1", memory.AddInput{
		Content: "I work from home on Fridays",
		Topics:  []string{"Work", "  ", "work"},
	})
	gt.NoError(t, err)
	gt.Equal(t, res.Outcome, model.OutcomeSuccess)
	gt.Equal(t, res.Topics, []string{"work"})
	gt.Equal(t, classifierCalls, 0)
}

func TestAddEmbeddingFailure(t *testing.T) {
	ctx := context.Background()
	mock := &mockGemini{
		embeddingFunc: func(ctx context.Context, text string) ([]float32, error) {
			return nil, goerr.New("embedding backend down")
		},
	}
	uc := newUseCase(t, mock)

	res, err := uc.Add(ctx, "u1", memory.AddInput{
		Content: "anything",
		Topics:  []string{"general"},
	})
	gt.Error(t, err)
	gt.Equal(t, res.Outcome, model.OutcomeStorageError)
}

func TestAddProxyAndConfidence(t *testing.T) {
	ctx := context.Background()
	uc := newUseCase(t, vectorGemini(`["schedule"]`, map[string][]float32{
		"dentist appointment on the 12th": {0, 0, 1},
	}))

	conf := 0.4
	res, err := uc.Add(ctx, "u1", memory.AddInput{
		Content:    "dentist appointment on the 12th",
		Confidence: &conf,
		IsProxy:    true,
		ProxyAgent: "scheduler",
	})
	gt.NoError(t, err)
	gt.Equal(t, res.Outcome, model.OutcomeSuccess)

	rec, err := uc.Get(ctx, "u1", res.MemoryID)
	gt.NoError(t, err)
	gt.Equal(t, rec.Confidence, 0.4)
	gt.True(t, rec.IsProxy)
	gt.Equal(t, rec.ProxyAgent, "scheduler")
}
