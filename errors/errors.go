package errors

import (
	stderrors "errors"
	"fmt"
	"path/filepath"
	"runtime"
)

// Kind classifies failures the agent loop reacts to differently.
type Kind int

const (
	KindUnknown Kind = iota
	// KindArgument marks missing or invalid tool arguments.
	KindArgument
	// KindNotFound marks a path that does not exist.
	KindNotFound
	// KindToolNotRegistered marks a tool name the registry does not know.
	KindToolNotRegistered
	// KindTransport marks a failed round trip to the model.
	KindTransport
	// KindMalformedArguments marks serialized arguments that could not be decoded.
	KindMalformedArguments
)

func (k Kind) String() string {
	switch k {
	case KindArgument:
		return "argument error"
	case KindNotFound:
		return "not found"
	case KindToolNotRegistered:
		return "tool not registered"
	case KindTransport:
		return "transport error"
	case KindMalformedArguments:
		return "malformed arguments"
	default:
		return "unknown error"
	}
}

// Error is an error carrying a Kind.
type Error struct {
	Kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err == nil {
		return e.msg
	}
	return fmt.Sprintf("%s: %v", e.msg, e.err)
}

func (e *Error) Unwrap() error { return e.err }

// New creates a new error with file and line number information.
func New(format string, a ...interface{}) error {
	return fmt.Errorf("%s %s", caller(2), fmt.Sprintf(format, a...))
}

// Wrapf adds context (including file and line number) to an existing error.
// If the provided error is nil, Wrapf returns nil.
func Wrapf(err error, format string, a ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s %s: %w", caller(2), fmt.Sprintf(format, a...), err)
}

// Newk creates an error of the given kind. The message carries no location
// prefix since it is shown to the model verbatim.
func Newk(kind Kind, format string, a ...interface{}) error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, a...)}
}

// Wrapk wraps err with a kind and message. If err is nil, Wrapk returns nil.
func Wrapk(err error, kind Kind, format string, a ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, msg: fmt.Sprintf(format, a...), err: err}
}

// Argument reports an invalid tool argument.
func Argument(format string, a ...interface{}) error {
	return Newk(KindArgument, format, a...)
}

// NotFound reports a missing path.
func NotFound(format string, a ...interface{}) error {
	return Newk(KindNotFound, format, a...)
}

// Transport wraps a failed gateway call.
func Transport(err error, format string, a ...interface{}) error {
	return Wrapk(err, KindTransport, "%s %s", caller(2), fmt.Sprintf(format, a...))
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind. Malformed arguments count
// as argument errors.
func Is(err error, kind Kind) bool {
	k := KindOf(err)
	if kind == KindArgument && k == KindMalformedArguments {
		return true
	}
	return k == kind
}

func caller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		file = "???"
		line = 0
	} else {
		file = filepath.Base(file)
	}
	return fmt.Sprintf("[%s:%d]", file, line)
}
