package model

import (
	"github.com/m-mizutani/goerr/v2"
)

// WriteOutcome is the discriminator of a WriteResult. Every write returns
// exactly one of these; callers branch on it rather than on error strings.
type WriteOutcome string

const (
	// OutcomeSuccess means both the local store and the graph service
	// accepted the write.
	OutcomeSuccess WriteOutcome = "success"
	// OutcomeSuccessLocalOnly means the local write succeeded but the graph
	// leg failed. The record is durable and searchable locally.
	OutcomeSuccessLocalOnly WriteOutcome = "success_local_only"
	// OutcomeDuplicateExact means an existing record matched with
	// similarity >= 0.999. Nothing was written.
	OutcomeDuplicateExact WriteOutcome = "duplicate_exact"
	// OutcomeDuplicateSemantic means an existing record matched above the
	// configured semantic threshold. Nothing was written.
	OutcomeDuplicateSemantic WriteOutcome = "duplicate_semantic"
	// OutcomeContentEmpty means the content was empty or whitespace only
	OutcomeContentEmpty WriteOutcome = "content_empty"
	// OutcomeContentTooLong means the content exceeded the configured maximum
	OutcomeContentTooLong WriteOutcome = "content_too_long"
	// OutcomeStorageError means the local store failed. No partial state
	// remains visible to readers.
	OutcomeStorageError WriteOutcome = "storage_error"
	// OutcomeValidationError covers other rejected input such as an invalid
	// owner id, out-of-range confidence, or broken proxy attribution.
	OutcomeValidationError WriteOutcome = "validation_error"
)

// Validate checks if the outcome is one of the defined kinds
func (x WriteOutcome) Validate() error {
	switch x {
	case OutcomeSuccess, OutcomeSuccessLocalOnly,
		OutcomeDuplicateExact, OutcomeDuplicateSemantic,
		OutcomeContentEmpty, OutcomeContentTooLong,
		OutcomeStorageError, OutcomeValidationError:
		return nil
	default:
		return goerr.New("invalid write outcome", goerr.V("outcome", x))
	}
}

// WriteResult reports how a memory write ended across both persistence legs.
// Which optional fields are set depends on the outcome: duplicates carry
// Similarity and MatchedContent, successes carry MemoryID and Topics, and
// degraded or failed writes carry a diagnostic Message.
type WriteResult struct {
	Outcome        WriteOutcome
	MemoryID       MemoryID
	Topics         []string
	Similarity     float64
	MatchedContent string
	LocalOK        bool
	GraphOK        bool
	Message        string
}

// Stored reports whether the write left a durable local record
func (x *WriteResult) Stored() bool {
	return x.Outcome == OutcomeSuccess || x.Outcome == OutcomeSuccessLocalOnly
}
