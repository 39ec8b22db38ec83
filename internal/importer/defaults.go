package importer

import "time"

const (
	defaultBatchSize        uint64 = 100
	defaultCheckpointStride uint64 = 10
	defaultPollInterval            = time.Minute
	defaultFetchWorkers            = 1

	// Pause after a failed fetch/write before moving to the next block.
	failureBackoff = 5 * time.Second
)

// Mode selects what happens once the checkpoint reaches chain height.
type Mode string

const (
	// ModeContinuous keeps polling for new blocks.
	ModeContinuous Mode = "continuous"
	// ModeOnce exits cleanly when caught up.
	ModeOnce Mode = "once"
)

// WriteMode selects the write-unit granularity. Both modes produce identical
// final graph state for the same block range.
type WriteMode string

const (
	// WriteSingle wraps one block per graph transaction.
	WriteSingle WriteMode = "single"
	// WriteBatch wraps a whole catch-up batch in one graph transaction.
	WriteBatch WriteMode = "batch"
)
