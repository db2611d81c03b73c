package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
		excludes []string
	}{
		{
			name: "full error",
			err: New(PhaseDecode, KindTruncated).
				Offset(12).
				Detail("need %d bytes, have %d", 4, 1).
				Build(),
			contains: []string{"[decode]", "truncated", "offset 12", "need 4 bytes, have 1"},
		},
		{
			name:     "minimal error",
			err:      New(PhaseRuntime, KindQuotaExceeded).Build(),
			contains: []string{"[runtime]", "quota_exceeded"},
			excludes: []string{"offset"},
		},
		{
			name: "error with cause",
			err: New(PhaseLoad, KindSyntax).
				Detail("bad chunk").
				Cause(errors.New("unexpected symbol")).
				Build(),
			contains: []string{"[load]", "syntax", "bad chunk", "caused by", "unexpected symbol"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
			for _, s := range tt.excludes {
				if strings.Contains(msg, s) {
					t.Errorf("error message %q should not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := New(PhaseRuntime, KindScriptError).Cause(cause).Build()

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
}

func TestError_IsMatchesPhaseAndKind(t *testing.T) {
	err := New(PhaseEncode, KindDepthExceeded).Detail("nested too deep").Build()
	wrapped := fmt.Errorf("run failed: %w", err)

	if !Is(wrapped, EncodeDepthExceeded) {
		t.Error("expected wrapped error to match EncodeDepthExceeded")
	}
	if Is(wrapped, DecodeDepthExceeded) {
		t.Error("decode target must not match an encode error")
	}
	if Is(wrapped, EncodeUnsupported) {
		t.Error("different kind must not match")
	}
}

func TestPhaseAndKindOf(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(PhaseDecode, KindUnsupportedType).Build())

	if got := PhaseOf(err); got != PhaseDecode {
		t.Errorf("PhaseOf = %q, want %q", got, PhaseDecode)
	}
	if got := KindOf(err); got != KindUnsupportedType {
		t.Errorf("KindOf = %q, want %q", got, KindUnsupportedType)
	}
	if got := KindOf(errors.New("plain")); got != "" {
		t.Errorf("KindOf(plain) = %q, want empty", got)
	}
}

func TestAs(t *testing.T) {
	var target *Error
	err := fmt.Errorf("wrap: %w", New(PhaseLoad, KindSyntax).Detail("eof").Build())
	if !As(err, &target) {
		t.Fatal("expected As to succeed")
	}
	if target.Detail != "eof" {
		t.Errorf("Detail = %q, want eof", target.Detail)
	}
}
