package bridge

import "errors"

var (
	// ErrUnavailable is returned by Admit while no worker has connected.
	ErrUnavailable = errors.New("worker not connected")

	// ErrStartTimeout fires when the worker never reports meta for a request.
	ErrStartTimeout = errors.New("request timed out waiting for the worker to start responding")

	// ErrIdleTimeout fires when a streaming request stalls mid-output.
	ErrIdleTimeout = errors.New("stream timed out waiting for further output from the worker")

	// ErrDuplicateTask is returned when a task id is already queued.
	ErrDuplicateTask = errors.New("task with this id is already queued")

	// ErrSinkClosed is returned by Emit after the caller has gone away.
	ErrSinkClosed = errors.New("sink closed")

	// ErrSinkStalled is returned by Emit when the caller stops draining frames.
	ErrSinkStalled = errors.New("sink buffer full, caller not draining")

	// ErrClientGone marks requests evicted because the caller disconnected.
	ErrClientGone = errors.New("caller disconnected")

	// ErrShutdown marks requests evicted during server shutdown.
	ErrShutdown = errors.New("server shutting down")
)
