package collect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNoData signals that the source answered but has nothing for the target.
// Adapters return it instead of an empty payload so callers never have to
// inspect payload shape to tell "no data" apart from a failure.
var ErrNoData = errors.New("no data for target")

// ErrorKind classifies a failed fetch at the wrapper boundary.
type ErrorKind string

const (
	ErrKindNone       ErrorKind = "none"
	ErrKindTimeout    ErrorKind = "timeout"
	ErrKindConnection ErrorKind = "connection"
	ErrKindValidation ErrorKind = "validation"
	ErrKindUnknown    ErrorKind = "unknown"
)

// Result is the payload of a successful fetch attempt.
type Result struct {
	DataType string
	Payload  json.RawMessage
	Records  int64
}

// FetchError is the error type adapters use to report a classified failure.
type FetchError struct {
	Kind ErrorKind
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Errf builds a FetchError with a formatted message.
func Errf(kind ErrorKind, format string, args ...any) *FetchError {
	return &FetchError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf maps an error to its ErrorKind. Context deadlines count as
// timeouts even when the adapter did not wrap them; anything unclassified
// is unknown.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ErrKindNone
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrKindTimeout
	}
	return ErrKindUnknown
}
