// Package bridge implements the request/event correlation engine: it admits
// chat completion requests, hands them to the external worker through a
// polling task queue, correlates the worker's lifecycle events back to the
// originating request, and enforces per-phase timeouts.
package bridge
