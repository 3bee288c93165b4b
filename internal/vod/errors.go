package vod

import "errors"

var (
	// ErrInvalidSpec is returned when a client-submitted clip or playlist
	// specification violates a structural or semantic invariant. Requests
	// failing with it are rejected and never retried; stored state is left
	// untouched.
	ErrInvalidSpec = errors.New("invalid specification")

	// ErrUpstreamUnavailable is returned when the external video-metadata
	// provider cannot be reached or reports an error.
	ErrUpstreamUnavailable = errors.New("upstream metadata provider unavailable")

	// ErrCorruptState is returned when the durable state file exists but
	// cannot be parsed. Fatal at startup: absence means empty, corruption
	// must not.
	ErrCorruptState = errors.New("corrupt state file")

	// ErrPersistFailed is returned when a write to durable storage failed.
	// The in-memory mutation that triggered the write is not committed.
	ErrPersistFailed = errors.New("state persistence failed")
)
