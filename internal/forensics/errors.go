package forensics

import (
	"errors"
	"fmt"
)

// ErrInvalidParameter marks a configuration error: a quality, window or level
// outside the domain an engine accepts. It is never clamped silently.
var ErrInvalidParameter = errors.New("invalid parameter")

// InvalidInputError rejects an input file before any analysis runs.
type InvalidInputError struct {
	Path   string
	Reason string
	Err    error
}

func (e *InvalidInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

func (e *InvalidInputError) Unwrap() error { return e.Err }

// DecodeError reports that the codec could not read an image back.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError reports that the codec could not re-encode at Quality.
type EncodeError struct {
	Quality int
	Err     error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode at quality %d: %v", e.Quality, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

func invalidParam(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameter, fmt.Sprintf(format, args...))
}
