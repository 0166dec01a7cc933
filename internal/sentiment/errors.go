package sentiment

import "errors"

var (
	// ErrModelUnavailable means the classifier could not be fetched or loaded.
	ErrModelUnavailable = errors.New("sentiment model unavailable")
	// ErrInvalidInput is a caller contract violation, e.g. a null text.
	ErrInvalidInput = errors.New("invalid scoring input")
	// ErrClassifierOutput means the classifier returned rows of the wrong shape.
	ErrClassifierOutput = errors.New("unexpected classifier output")
)
