package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates which step of a run produced the error.
type Phase string

const (
	PhaseLoad    Phase = "load"    // script compilation
	PhaseDecode  Phase = "decode"  // wire bytes to value
	PhaseRuntime Phase = "runtime" // script execution
	PhaseEncode  Phase = "encode"  // value to wire bytes
)

// Kind categorizes the error.
type Kind string

const (
	KindSyntax          Kind = "syntax"
	KindTruncated       Kind = "truncated"
	KindUnsupportedType Kind = "unsupported_type"
	KindDepthExceeded   Kind = "depth_exceeded"
	KindTrailingData    Kind = "trailing_data"
	KindInvalidInput    Kind = "invalid_input"
	KindScriptError     Kind = "script_error"
	KindQuotaExceeded   Kind = "quota_exceeded"
	KindCancelled       Kind = "cancelled"
	KindClosed          Kind = "closed"
)

// Error is the structured error used throughout plume.
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	// Offset is the byte position in the wire input, or -1 when the
	// error is not tied to a position.
	Offset int
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Offset >= 0 {
		fmt.Fprintf(&b, " at offset %d", e.Offset)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction.
type Builder struct {
	err Error
}

// New creates a new error builder.
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase:  phase,
			Kind:   kind,
			Offset: -1,
		},
	}
}

// Offset sets the byte offset in the wire input.
func (b *Builder) Offset(off int) *Builder {
	b.err.Offset = off
	return b
}

// Cause sets the underlying error.
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message.
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error.
func (b *Builder) Build() *Error {
	return &b.err
}

// Targets for errors.Is. They carry no detail.
var (
	LoadSyntax          = &Error{Phase: PhaseLoad, Kind: KindSyntax, Offset: -1}
	DecodeTruncated     = &Error{Phase: PhaseDecode, Kind: KindTruncated, Offset: -1}
	DecodeUnsupported   = &Error{Phase: PhaseDecode, Kind: KindUnsupportedType, Offset: -1}
	DecodeDepthExceeded = &Error{Phase: PhaseDecode, Kind: KindDepthExceeded, Offset: -1}
	DecodeTrailingData  = &Error{Phase: PhaseDecode, Kind: KindTrailingData, Offset: -1}
	EncodeUnsupported   = &Error{Phase: PhaseEncode, Kind: KindUnsupportedType, Offset: -1}
	EncodeDepthExceeded = &Error{Phase: PhaseEncode, Kind: KindDepthExceeded, Offset: -1}
	ScriptError         = &Error{Phase: PhaseRuntime, Kind: KindScriptError, Offset: -1}
	QuotaExceeded       = &Error{Phase: PhaseRuntime, Kind: KindQuotaExceeded, Offset: -1}
	Cancelled           = &Error{Phase: PhaseRuntime, Kind: KindCancelled, Offset: -1}
)

// PhaseOf returns the phase of the first *Error in err's chain, or "" if
// there is none.
func PhaseOf(err error) Phase {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Phase
	}
	return ""
}

// KindOf returns the kind of the first *Error in err's chain, or "" if
// there is none.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is is stderrors.Is, re-exported so callers need not import both packages.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As is stderrors.As.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
