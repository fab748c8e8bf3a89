package model

import (
	"github.com/m-mizutani/goerr/v2"
)

var ErrInvalidMode = goerr.New("invalid query mode")

// QueryMode selects the backend for a read query. ModeLocal forces the local
// vector index, the five remote modes are passed through to the graph service
// verbatim, and ModeAuto routes by a deterministic heuristic.
type QueryMode string

const (
	ModeLocal  QueryMode = "local"
	ModeGlobal QueryMode = "global"
	ModeHybrid QueryMode = "hybrid"
	ModeMix    QueryMode = "mix"
	ModeNaive  QueryMode = "naive"
	ModeBypass QueryMode = "bypass"
	ModeAuto   QueryMode = "auto"
)

// QueryModes returns all valid modes in a stable order
func QueryModes() []QueryMode {
	return []QueryMode{ModeLocal, ModeGlobal, ModeHybrid, ModeMix, ModeNaive, ModeBypass, ModeAuto}
}

// Validate checks if the mode is valid
func (x QueryMode) Validate() error {
	switch x {
	case ModeLocal, ModeGlobal, ModeHybrid, ModeMix, ModeNaive, ModeBypass, ModeAuto:
		return nil
	default:
		return goerr.Wrap(ErrInvalidMode, "unknown query mode", goerr.V("mode", x))
	}
}

// Remote reports whether the mode targets the graph service
func (x QueryMode) Remote() bool {
	switch x {
	case ModeGlobal, ModeHybrid, ModeMix, ModeNaive, ModeBypass:
		return true
	default:
		return false
	}
}

// QuerySource names the backend that produced a query result
type QuerySource string

const (
	SourceLocal QuerySource = "local"
	SourceGraph QuerySource = "graph"
)

// QueryResult is the router's answer to a read query. Mode is the effective
// mode after routing (never ModeAuto), and Fallback is true when auto routing
// switched backends after the preferred one failed.
type QueryResult struct {
	Mode     QueryMode
	Source   QuerySource
	Fallback bool
	Response string
	Hits     []*SearchHit
}
