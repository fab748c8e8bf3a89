package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrInvalidOwner   = goerr.New("invalid owner id")
	ErrRecordNotFound = goerr.New("memory record not found")
)

type MemoryID string

// NewMemoryID generates a new unique MemoryID
func NewMemoryID() MemoryID {
	return MemoryID(uuid.New().String())
}

// OwnerID identifies the subject a memory is about. It is the isolation
// boundary for all operations and doubles as a directory name in the local
// store, so it is restricted to a filesystem-safe charset.
type OwnerID string

const maxOwnerIDLen = 64

// Validate checks that the owner ID is safe to use as a storage namespace
func (x OwnerID) Validate() error {
	if x == "" {
		return goerr.Wrap(ErrInvalidOwner, "owner id is empty")
	}
	if len(x) > maxOwnerIDLen {
		return goerr.Wrap(ErrInvalidOwner, "owner id is too long", goerr.V("owner", x))
	}
	if x[0] == '.' {
		return goerr.Wrap(ErrInvalidOwner, "owner id must not start with a dot", goerr.V("owner", x))
	}
	for _, r := range string(x) {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-' || r == '.':
		default:
			return goerr.Wrap(ErrInvalidOwner, "owner id contains invalid character", goerr.V("owner", x), goerr.V("char", string(r)))
		}
	}
	return nil
}

// MemoryRecord is a single remembered statement about an owner. Content and
// Topics are the only mutable fields; everything else is fixed at creation
// except UpdatedAt.
type MemoryRecord struct {
	ID         MemoryID
	OwnerID    OwnerID
	Content    string
	Topics     []string
	Embedding  []float32
	Confidence float64
	IsProxy    bool
	ProxyAgent string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Validate checks the record invariants that must hold for every persisted
// record: non-blank content, at least one topic, confidence within [0, 1],
// and proxy_agent set if and only if is_proxy is true.
func (x *MemoryRecord) Validate() error {
	if x.ID == "" {
		return goerr.New("memory id is empty")
	}
	if err := x.OwnerID.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(x.Content) == "" {
		return goerr.New("content is empty")
	}
	if len(x.Topics) == 0 {
		return goerr.New("topics must not be empty", goerr.V("id", x.ID))
	}
	if x.Confidence < 0.0 || x.Confidence > 1.0 {
		return goerr.New("confidence must be within [0, 1]", goerr.V("confidence", x.Confidence))
	}
	if x.IsProxy && x.ProxyAgent == "" {
		return goerr.New("proxy_agent is required when is_proxy is true")
	}
	if !x.IsProxy && x.ProxyAgent != "" {
		return goerr.New("proxy_agent must be empty when is_proxy is false", goerr.V("proxy_agent", x.ProxyAgent))
	}
	return nil
}

// NormalizeTopics lowercases and trims topic labels, dropping blanks and
// duplicates while preserving the order of first appearance.
func NormalizeTopics(topics []string) []string {
	seen := make(map[string]bool, len(topics))
	var out []string
	for _, t := range topics {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// TopicsOverlap reports whether the two normalized topic sets share a label
func TopicsOverlap(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	for _, t := range b {
		if set[t] {
			return true
		}
	}
	return false
}

// SearchHit pairs a record with its similarity score against a query
type SearchHit struct {
	Record *MemoryRecord
	Score  float64
}

// ListOption filters list operations. Empty Topics means no topic filter;
// Limit <= 0 means no limit.
type ListOption struct {
	Topics []string
	Limit  int
}

// MemoryStats summarizes an owner's stored memories
type MemoryStats struct {
	Count  int
	Topics map[string]int
}
