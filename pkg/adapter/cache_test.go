package adapter_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/engram/pkg/adapter"
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
	return &genai.GenerateContentResponse{}, nil
}

func (m *mockGemini) Embedding(ctx context.Context, text string) ([]float32, error) {
	if m.embeddingFunc != nil {
		return m.embeddingFunc(ctx, text)
	}
	return []float32{0, 0, 0}, nil
}

func TestEmbeddingCache(t *testing.T) {
	ctx := context.Background()

	var calls int
	mock := &mockGemini{
		embeddingFunc: func(ctx context.Context, text string) ([]float32, error) {
			calls++
			return []float32{1, 2, 3}, nil
		},
	}

	cache, err := adapter.NewEmbeddingCache(mock, 1<<20)
	gt.NoError(t, err)
	defer cache.Close()

	vec, err := cache.Embedding(ctx, "I enjoy hiking")
	gt.NoError(t, err)
	gt.Equal(t, vec, []float32{1, 2, 3})
	gt.Equal(t, calls, 1)

	cache.Wait()

	// Same text is served from cache
	vec, err = cache.Embedding(ctx, "I enjoy hiking")
	gt.NoError(t, err)
	gt.Equal(t, vec, []float32{1, 2, 3})
	gt.Equal(t, calls, 1)

	// Different text goes to the model
	_, err = cache.Embedding(ctx, "I drink coffee")
	gt.NoError(t, err)
	gt.Equal(t, calls, 2)
}

func TestEmbeddingCachePassthrough(t *testing.T) {
	ctx := context.Background()

	want := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: "ok"}}}},
		},
	}
	mock := &mockGemini{
		generateContentFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return want, nil
		},
	}

	cache, err := adapter.NewEmbeddingCache(mock, 0)
	gt.NoError(t, err)
	defer cache.Close()

	resp, err := cache.GenerateContent(ctx, nil, nil)
	gt.NoError(t, err)
	gt.Equal(t, resp, want)
}
