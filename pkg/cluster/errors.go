package cluster

import (
	"errors"
)

var (
	// ErrNotConnected is returned when a command is attempted without a
	// live session. This is a caller error and is never retried.
	ErrNotConnected = errors.New("cluster: not connected")

	// ErrAuthFailed is returned when the remote host rejects the
	// credentials during Connect.
	ErrAuthFailed = errors.New("cluster: authentication failed")

	// ErrSessionLost marks a session that dropped mid-use, detected by a
	// failed command or a failed liveness probe.
	ErrSessionLost = errors.New("cluster: session lost")

	// ErrCommandFailed marks a remote command that produced output on
	// stderr where the caller treats that as failure (scancel, sbatch).
	ErrCommandFailed = errors.New("cluster: remote command failed")
)
