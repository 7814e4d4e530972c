package fault

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

type Kind string

const (
	NotFound            Kind = "NotFound"
	PolicyViolation     Kind = "PolicyViolation"
	ValidationError     Kind = "ValidationError"
	MethodNotAllowed    Kind = "MethodNotAllowed"
	ResourceExhausted   Kind = "ResourceExhausted"
	RemoteCommandFailed Kind = "RemoteCommandFailed"
	UnexpectedOutput    Kind = "UnexpectedOutput"
	Timeout             Kind = "Timeout"
	UpstreamError       Kind = "UpstreamError"
)

// Error is a classified failure. The message is operator facing; Cause carries the
// low-level detail.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Cause.Error()
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func New(kind Kind, format string, args ...interface{}) error {
	return errors.WithStack(&Error{Kind: kind, Message: fmt.Sprintf(format, args...)})
}

// Wrap classifies err. A nil err yields nil so callers can wrap unconditionally.
func Wrap(kind Kind, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(&Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: err})
}

// KindOf returns the outermost classification in err's chain, or UpstreamError for
// anything unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return UpstreamError
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// StatusCode maps a failure onto the response code the handlers report.
func StatusCode(err error) int {
	switch KindOf(err) {
	case ValidationError:
		return http.StatusBadRequest
	case PolicyViolation:
		return http.StatusForbidden
	case MethodNotAllowed:
		return http.StatusMethodNotAllowed
	default:
		return http.StatusInternalServerError
	}
}
