// Package walleterr defines the shared error taxonomy for the wallet
// connector and transaction pipeline. Native wallet, HTTP and JSON-RPC
// failures are translated into these typed errors at component boundaries;
// no native error type crosses into upper layers.
package walleterr

import (
	"errors"

	"github.com/rs/zerolog"
)

// Error is a taxonomy error. It carries the kind it belongs to, an optional
// causing error and a flag telling whether the failure indicates a bug
// (NeedFix) or an expected user-driven outcome.
type Error struct {
	Kind    Kind
	Message string
	// NeedFix distinguishes programming errors from normal flow so logging
	// can separate bugs from expected failures.
	NeedFix bool
	// Data carries kind-specific payload, e.g. the JSON-RPC fault code.
	Data any

	cause error
}

// Option mutates a new Error before it is returned.
type Option func(*Error)

// WithCause chains the causing error.
func WithCause(cause error) Option {
	return func(e *Error) { e.cause = cause }
}

// WithData attaches kind-specific payload.
func WithData(data any) Option {
	return func(e *Error) { e.Data = data }
}

// WithNeedFix overrides the kind's default NeedFix flag.
func WithNeedFix(needFix bool) Option {
	return func(e *Error) { e.NeedFix = needFix }
}

// New creates a taxonomy error. An empty message selects the kind's default.
func New(kind Kind, message string, opts ...Option) *Error {
	if message == "" {
		message = DefaultMessage(kind)
	}
	needFix, ok := needFixDefaults[kind]
	if !ok {
		needFix = true
	}
	e := &Error{Kind: kind, Message: message, NeedFix: needFix}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Wrap creates a taxonomy error chained to cause.
func Wrap(kind Kind, message string, cause error, opts ...Option) *Error {
	return New(kind, message, append([]Option{WithCause(cause)}, opts...)...)
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes the cause to errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports kind equality, so errors.Is(err, walleterr.New(kind, "")) works.
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return e.Kind == te.Kind
	}
	return false
}

// KindOf returns the taxonomy kind of err, walking the cause chain. Errors
// that never passed a translation boundary report Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// IsKind reports whether err (or any error in its chain) has the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Walk visits err and its cause chain until fn returns true, returning the
// matched error. With a nil fn it returns the root cause.
func Walk(err error, fn func(error) bool) error {
	current := err
	for current != nil {
		next := errors.Unwrap(current)
		if fn != nil && fn(current) {
			return current
		}
		if fn == nil && next == nil {
			return current
		}
		current = next
	}
	return nil
}

// Log writes err to the logger, separating bugs from expected outcomes:
// NeedFix errors log at error level, the rest at warn.
func Log(logger zerolog.Logger, err error) {
	var e *Error
	if !errors.As(err, &e) {
		logger.Error().Err(err).Msg("untranslated error")
		return
	}
	event := logger.Warn()
	if e.NeedFix {
		event = logger.Error()
	}
	event = event.Str("kind", string(e.Kind)).Bool("need_fix", e.NeedFix)
	if e.cause != nil {
		event = event.AnErr("cause", e.cause)
	}
	event.Msg(e.Message)
}
