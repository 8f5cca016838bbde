package audio

import "errors"

var (
	// ErrNoInput is returned when every segment failed synthesis
	ErrNoInput = errors.New("no audio segments survived synthesis")

	// ErrMergeTool wraps failures of the format-aware merge tool. It is logged
	// and answered with the raw concatenation fallback, never returned by Merge.
	ErrMergeTool = errors.New("merge tool failed")

	errToolUnavailable = errors.New("merge tool unavailable")
)
