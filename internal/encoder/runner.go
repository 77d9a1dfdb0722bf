// Package encoder drives the external encoding process. The supervisor
// owns the process table; the runner abstracts actual process
// execution so tests never spawn anything.
package encoder

import (
	"context"

	"castforge/internal/domain"
)

// LaunchSpec is the fully resolved parameter set for one encoder launch.
type LaunchSpec struct {
	InputSource string
	// Endpoint is the opaque destination: ingestion base and access key
	// already concatenated into one URL.
	Endpoint string
	Video    domain.VideoParams
	Audio    domain.AudioSettings
}

// Process is a handle on one running encoder instance.
type Process interface {
	// Done is closed when the process exits, naturally or by Kill.
	Done() <-chan struct{}
	// Err reports the exit error once Done is closed.
	Err() error
	// Kill terminates the process unconditionally. Idempotent.
	Kill() error
	// UpdateFilter pushes a changed mixing graph into the running
	// process. Implementations without dynamic reconfiguration accept
	// the call as a no-op.
	UpdateFilter(audio domain.AudioSettings) error
}

// Runner abstracts encoder process execution for testability.
type Runner interface {
	Start(ctx context.Context, spec LaunchSpec) (Process, error)
}
