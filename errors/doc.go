// Package errors provides the structured error type returned by every
// fallible boundary of a script run.
//
// Errors are categorized by Phase (which step of the run failed) and Kind
// (what went wrong). The four phases map onto the run's error taxonomy:
//
//	PhaseLoad    script failed to compile           (LoadError)
//	PhaseDecode  input bytes were malformed          (DecodeError)
//	PhaseRuntime script raised or ran out of quota   (RuntimeError)
//	PhaseEncode  return value could not be encoded   (EncodeError)
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDecode, errors.KindTruncated).
//		Offset(17).
//		Detail("need %d bytes, have %d", 4, 1).
//		Build()
//
// All errors implement the standard error interface and support errors.Is/As.
// Two errors match under errors.Is when their Phase and Kind are equal:
//
//	if errors.Is(err, errors.QuotaExceeded) { ... }
package errors
