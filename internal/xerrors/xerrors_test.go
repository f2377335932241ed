package xerrors

import (
	"errors"
	"strings"
	"testing"
)

func TestIsMatchesOnKindOnly(t *testing.T) {
	err := New(IoError, "disk full")
	if !errors.Is(err, New(IoError, "")) {
		t.Fatal("errors.Is should match on Kind alone")
	}
	if errors.Is(err, New(ConfigError, "")) {
		t.Fatal("errors.Is should not match a different Kind")
	}
}

func TestWrapPreservesUnwrapChain(t *testing.T) {
	cause := errors.New("root cause")
	wrapped := Wrap(AcceleratorError, "kernel launch failed", cause)
	if !errors.Is(wrapped, cause) {
		t.Fatal("Wrap should preserve the cause for errors.Is/errors.Unwrap")
	}
}

func TestWithBuildLogIncludesLogInMessage(t *testing.T) {
	err := WithBuildLog("build failed", "line 1: syntax error")
	if !errors.Is(err, New(AcceleratorError, "")) {
		t.Fatal("WithBuildLog should produce an AcceleratorError")
	}
	if !strings.Contains(err.Error(), "line 1: syntax error") {
		t.Fatalf("Error() = %q, want it to include the build log", err.Error())
	}
}

func TestKindString(t *testing.T) {
	if ConfigError.String() != "ConfigError" {
		t.Fatalf("ConfigError.String() = %q", ConfigError.String())
	}
	if Kind(99).String() != "UnknownError" {
		t.Fatalf("unknown kind String() = %q, want UnknownError", Kind(99).String())
	}
}
