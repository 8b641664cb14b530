package llm

import (
	"errors"
	"fmt"
)

// ErrEmptyOutput is the cause recorded when a backend answered without text.
var ErrEmptyOutput = errors.New("backend returned no output")

var errUnavailable = errors.New("adapter reported unavailable")

// GenerationFailure is returned by Generate when the backend call errored,
// timed out or produced nothing.
type GenerationFailure struct {
	Adapter string
	Cause   error
}

func (e *GenerationFailure) Error() string {
	return fmt.Sprintf("generation failed on %s: %v", e.Adapter, e.Cause)
}

func (e *GenerationFailure) Unwrap() error { return e.Cause }

func failure(id string, cause error) error {
	return &GenerationFailure{Adapter: id, Cause: cause}
}
