package knowledge

import (
	"context"
	"time"

	"github.com/m-mizutani/engram/pkg/adapter"
	"github.com/m-mizutani/engram/pkg/model"
	"github.com/m-mizutani/engram/pkg/usecase/memory"
)

const (
	// DefaultGraphTopK is the top_k hint sent with graph queries.
	DefaultGraphTopK = 10

	// DefaultPipelineWaitMax bounds how long a delete waits for the graph
	// ingestion pipeline to go idle.
	DefaultPipelineWaitMax = 10 * time.Second

	// DefaultPipelineInterval is the poll interval of that wait.
	DefaultPipelineInterval = 500 * time.Millisecond
)

// UseCase coordinates writes across the local memory store and the remote
// graph service, and routes read queries to the cheapest sufficient
// backend. The local store is authoritative; the graph leg is best-effort
// and its failures degrade results instead of failing them.
type UseCase struct {
	memory *memory.UseCase
	graph  adapter.Graph

	graphTopK        int
	pipelineWaitMax  time.Duration
	pipelineInterval time.Duration
}

// Option is a functional option for UseCase
type Option func(*UseCase)

// WithGraphTopK overrides the top_k hint for graph queries
func WithGraphTopK(n int) Option {
	return func(uc *UseCase) {
		uc.graphTopK = n
	}
}

// WithPipelineWait overrides the bounded pipeline-idle wait before remote
// deletes
func WithPipelineWait(max, interval time.Duration) Option {
	return func(uc *UseCase) {
		uc.pipelineWaitMax = max
		uc.pipelineInterval = interval
	}
}

// New creates a new knowledge UseCase instance. A nil graph client is
// allowed and turns every write into a local-only write.
func New(mem *memory.UseCase, graph adapter.Graph, opts ...Option) *UseCase {
	uc := &UseCase{
		memory:           mem,
		graph:            graph,
		graphTopK:        DefaultGraphTopK,
		pipelineWaitMax:  DefaultPipelineWaitMax,
		pipelineInterval: DefaultPipelineInterval,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// List returns records by topic, most recent first. Empty topics list all.
func (u *UseCase) List(ctx context.Context, owner model.OwnerID, topics []string, limit int) ([]*model.MemoryRecord, error) {
	return u.memory.ListByTopic(ctx, owner, topics, limit)
}

// Recent returns the most recently touched records.
func (u *UseCase) Recent(ctx context.Context, owner model.OwnerID, limit int) ([]*model.MemoryRecord, error) {
	return u.memory.Recent(ctx, owner, limit)
}

// Stats reports the owner's record count and topic histogram.
func (u *UseCase) Stats(ctx context.Context, owner model.OwnerID) (*model.MemoryStats, error) {
	return u.memory.Stats(ctx, owner)
}
