package orchestrator

import (
	"fmt"
)

// ErrorKind classifies errors that abort an exchange.
type ErrorKind string

const (
	KindProviderUnavailable ErrorKind = "ProviderUnavailable"
	KindMalformedInvocation ErrorKind = "MalformedInvocationRequest"
	KindUpstreamTimeout     ErrorKind = "UpstreamTimeout"
	KindInvalidRequest      ErrorKind = "InvalidRequest"
	KindCanceled            ErrorKind = "Canceled"
)

// Phase names the step of the exchange an error came from.
type Phase string

const (
	PhaseValidate         Phase = "validate"
	PhaseFirstCompletion  Phase = "first-completion"
	PhaseParseInvocation  Phase = "parse-invocation"
	PhaseSecondCompletion Phase = "second-completion"
)

type Error struct {
	Kind  ErrorKind
	Phase Phase
	Err   error
}

// Sentinels for errors.Is; they match any *Error of the same kind.
var (
	ErrProviderUnavailable = &Error{Kind: KindProviderUnavailable}
	ErrMalformedInvocation = &Error{Kind: KindMalformedInvocation}
	ErrUpstreamTimeout     = &Error{Kind: KindUpstreamTimeout}
	ErrInvalidRequest      = &Error{Kind: KindInvalidRequest}
	ErrCanceled            = &Error{Kind: KindCanceled}
)

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	if e.Phase == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", e.Kind, e.Phase, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind ErrorKind, phase Phase, err error) *Error {
	return &Error{Kind: kind, Phase: phase, Err: err}
}
