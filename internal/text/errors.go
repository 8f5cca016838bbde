package text

import "errors"

// ErrInvalidInput indicates the text or chunk limits cannot produce segments.
var ErrInvalidInput = errors.New("invalid segmenter input")
