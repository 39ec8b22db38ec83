package model

import "fmt"

// Outcome classifies the result of importing one block.
type Outcome int

const (
	// OutcomeImported means the block is fully written to the graph.
	OutcomeImported Outcome = iota
	// OutcomeSkippedTransient means a fetch/write failed and the block was
	// skipped for this pass.
	OutcomeSkippedTransient
	// OutcomeFatal means the run cannot continue.
	OutcomeFatal
)

// String returns a log-friendly name for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeImported:
		return "imported"
	case OutcomeSkippedTransient:
		return "skipped_transient"
	case OutcomeFatal:
		return "fatal"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// BlockResult is the per-block result the import loop branches on.
type BlockResult struct {
	Height  uint64
	Outcome Outcome
	Err     error
}
