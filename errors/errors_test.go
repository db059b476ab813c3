package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorClass_String(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(999), "unknown"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			result := test.class.String()
			if result != test.expected {
				t.Errorf("expected %s, got %s", test.expected, result)
			}
		})
	}
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorClass
	}{
		{"connection lost", ErrConnectionLost, ErrorTransient},
		{"storage unavailable", ErrStorageUnavailable, ErrorTransient},
		{"graph corrupt", ErrGraphCorrupt, ErrorFatal},
		{"data corrupted", ErrDataCorrupted, ErrorFatal},
		{"invalid config", ErrInvalidConfig, ErrorFatal},
		{"invalid pin", ErrInvalidPin, ErrorInvalid},
		{"pin cap exceeded", ErrPinCapExceeded, ErrorInvalid},
		{"not connectable", ErrNotConnectable, ErrorInvalid},
		{"unknown error defaults to transient", fmt.Errorf("mystery"), ErrorTransient},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := Classify(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestClassifiedError(t *testing.T) {
	base := fmt.Errorf("underlying failure")

	t.Run("classified class wins over content", func(t *testing.T) {
		ce := &ClassifiedError{Class: ErrorFatal, Err: base}
		if !IsFatal(ce) {
			t.Error("expected classified fatal error to report fatal")
		}
		if IsTransient(ce) {
			t.Error("classified fatal error must not report transient")
		}
	})

	t.Run("unwrap preserves chain", func(t *testing.T) {
		wrapped := WrapInvalid(ErrInvalidPin, "Reconciler", "buildRequired", "spec validation")
		if !errors.Is(wrapped, ErrInvalidPin) {
			t.Error("expected errors.Is to find the sentinel through the wrap chain")
		}
	})
}

func TestWrap(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if Wrap(nil, "c", "m", "a") != nil {
			t.Error("Wrap(nil) must return nil")
		}
		if WrapTransient(nil, "c", "m", "a") != nil {
			t.Error("WrapTransient(nil) must return nil")
		}
		if WrapInvalid(nil, "c", "m", "a") != nil {
			t.Error("WrapInvalid(nil) must return nil")
		}
		if WrapFatal(nil, "c", "m", "a") != nil {
			t.Error("WrapFatal(nil) must return nil")
		}
	})

	t.Run("message format", func(t *testing.T) {
		err := Wrap(ErrNodeNotFound, "Graph", "ReconstructNode", "node lookup")
		want := "Graph.ReconstructNode: node lookup failed"
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected message to contain %q, got %q", want, err.Error())
		}
	})

	t.Run("wrap helpers classify", func(t *testing.T) {
		if !IsTransient(WrapTransient(fmt.Errorf("x"), "c", "m", "a")) {
			t.Error("WrapTransient result must classify transient")
		}
		if !IsInvalid(WrapInvalid(fmt.Errorf("x"), "c", "m", "a")) {
			t.Error("WrapInvalid result must classify invalid")
		}
		if !IsFatal(WrapFatal(fmt.Errorf("x"), "c", "m", "a")) {
			t.Error("WrapFatal result must classify fatal")
		}
	})
}
