package core

import "time"

const (
	KiB int64 = 1024
	MiB       = 1024 * KiB
	GiB       = 1024 * MiB
)

// Policy holds the tunables of the upload workflow.
type Policy struct {
	// SizeThresholdBytes routes files strictly larger than it to the resumable path.
	SizeThresholdBytes int64
	MaxFileBytes       int64
	ChunkSizeBytes     int64

	// ProgressTick is the interval of the simulated progress on the direct path,
	// which assumes the transfer takes SimulatedBudget.
	ProgressTick    time.Duration
	SimulatedBudget time.Duration

	// SuccessDisplay is how long the success state is held before the
	// completion callback fires and the tracker returns to idle.
	SuccessDisplay time.Duration

	// RetryDelays are waited before each retry of a failed chunk.
	RetryDelays []time.Duration

	Bucket       string
	CacheControl string

	AcceptVideo bool
	AcceptAudio bool

	// CompensateOrphans removes the stored object when the record insert fails.
	CompensateOrphans bool
	// TerminateOnCancel deletes the server side resumable session on cancel.
	TerminateOnCancel bool
}

// DefaultPolicy returns the production policy.
func DefaultPolicy() Policy {
	return Policy{
		SizeThresholdBytes: 100 * MiB,
		MaxFileBytes:       5 * GiB,
		ChunkSizeBytes:     5 * MiB,
		ProgressTick:       500 * time.Millisecond,
		SimulatedBudget:    10 * time.Second,
		SuccessDisplay:     2 * time.Second,
		RetryDelays: []time.Duration{
			0,
			3 * time.Second,
			5 * time.Second,
			10 * time.Second,
			20 * time.Second,
		},
		Bucket:            "media-files",
		CacheControl:      "3600",
		AcceptVideo:       true,
		AcceptAudio:       true,
		CompensateOrphans: true,
		TerminateOnCancel: true,
	}
}
