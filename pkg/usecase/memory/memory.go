package memory

import (
	"sync"

	"github.com/m-mizutani/engram/pkg/adapter"
	"github.com/m-mizutani/engram/pkg/classifier"
	"github.com/m-mizutani/engram/pkg/interfaces"
	"github.com/m-mizutani/engram/pkg/model"
)

const (
	// DefaultSemanticThreshold is the similarity above which a new memory
	// is rejected as a near-duplicate of an existing one.
	DefaultSemanticThreshold = 0.80

	// ExactThreshold is the similarity at which two contents count as the
	// same statement after embedding normalization.
	ExactThreshold = 0.999

	// DefaultMaxContentChars caps the length of a single memory statement.
	DefaultMaxContentChars = 1000

	// DefaultSearchLimit applies when a caller passes no limit.
	DefaultSearchLimit = 5

	// DefaultRecentLimit applies to Recent when no limit is given.
	DefaultRecentLimit = 10
)

// UseCase implements single-owner CRUD over memory records with
// similarity-based deduplication. All writes for one owner are serialized;
// different owners never block each other. Remote calls (embedding,
// classification) run before the owner lock is taken.
type UseCase struct {
	repo       interfaces.Repository
	gemini     adapter.Gemini
	classifier *classifier.Classifier

	semanticThreshold float64
	maxContentChars   int

	mu    sync.Mutex
	locks map[model.OwnerID]*sync.RWMutex
}

// Option is a functional option for UseCase
type Option func(*UseCase)

// WithSemanticThreshold overrides the near-duplicate similarity threshold
func WithSemanticThreshold(v float64) Option {
	return func(uc *UseCase) {
		uc.semanticThreshold = v
	}
}

// WithMaxContentChars overrides the maximum content length in characters
func WithMaxContentChars(n int) Option {
	return func(uc *UseCase) {
		uc.maxContentChars = n
	}
}

// WithClassifier replaces the default topic classifier
func WithClassifier(c *classifier.Classifier) Option {
	return func(uc *UseCase) {
		uc.classifier = c
	}
}

// New creates a new memory UseCase instance
func New(
	repo interfaces.Repository,
	gemini adapter.Gemini,
	opts ...Option,
) *UseCase {
	uc := &UseCase{
		repo:              repo,
		gemini:            gemini,
		semanticThreshold: DefaultSemanticThreshold,
		maxContentChars:   DefaultMaxContentChars,
		locks:             make(map[model.OwnerID]*sync.RWMutex),
	}

	for _, opt := range opts {
		opt(uc)
	}

	if uc.classifier == nil {
		uc.classifier = classifier.New(gemini)
	}

	return uc
}

// ownerLock returns the lock serializing writes for one owner. Lock entries
// are created on first use and kept for the process lifetime; the owner
// population is small.
func (u *UseCase) ownerLock(owner model.OwnerID) *sync.RWMutex {
	u.mu.Lock()
	defer u.mu.Unlock()

	lock, ok := u.locks[owner]
	if !ok {
		lock = &sync.RWMutex{}
		u.locks[owner] = lock
	}
	return lock
}
