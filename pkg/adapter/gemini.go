package adapter

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// Defaults applied by NewGemini when no option overrides them.
const (
	DefaultGenerativeModel = "gemini-2.5-flash"
	DefaultEmbeddingModel  = "gemini-embedding-001"
	DefaultEmbeddingDim    = 768
)

// Gemini is the model gateway used for topic classification and text
// embedding. Implementations must be safe for concurrent use.
type Gemini interface {
	GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	Embedding(ctx context.Context, text string) ([]float32, error)
}

type GeminiClient struct {
	client     *genai.Client
	genModel   string
	embedModel string
	embedDim   int32
}

type GeminiOption func(*GeminiClient)

func WithGenerativeModel(model string) GeminiOption {
	return func(g *GeminiClient) {
		g.genModel = model
	}
}

func WithEmbeddingModel(model string) GeminiOption {
	return func(g *GeminiClient) {
		g.embedModel = model
	}
}

// WithEmbeddingDim sets the output dimensionality requested from the
// embedding model. All records in a store must share one dimension, so
// this is fixed at client construction rather than per call.
func WithEmbeddingDim(dim int) GeminiOption {
	return func(g *GeminiClient) {
		g.embedDim = int32(dim)
	}
}

func NewGemini(ctx context.Context, projectID, location string, opts ...GeminiOption) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}

	g := &GeminiClient{
		client:     client,
		genModel:   DefaultGenerativeModel,
		embedModel: DefaultEmbeddingModel,
		embedDim:   DefaultEmbeddingDim,
	}
	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

func (g *GeminiClient) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.genModel, contents, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate content")
	}
	return resp, nil
}

func (g *GeminiClient) Embedding(ctx context.Context, text string) ([]float32, error) {
	config := &genai.EmbedContentConfig{}
	if g.embedDim > 0 {
		config.OutputDimensionality = genai.Ptr(g.embedDim)
	}

	resp, err := g.client.Models.EmbedContent(ctx, g.embedModel, genai.Text(text), config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed content")
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, goerr.New("empty embedding response")
	}

	vec := resp.Embeddings[0].Values
	if g.embedDim > 0 && len(vec) != int(g.embedDim) {
		return nil, goerr.New("unexpected embedding dimension",
			goerr.V("got", len(vec)), goerr.V("want", g.embedDim))
	}

	return vec, nil
}
