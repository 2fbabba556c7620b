package disterr

import (
	"errors"
	"testing"
)

func TestWrapIsKind(t *testing.T) {
	base := errors.New("file not found")
	err := Wrap(ErrIO, "reading matrix market input", base)

	if !errors.Is(err, ErrIO) {
		t.Errorf("errors.Is(err, ErrIO) = false, want true")
	}
	if errors.Is(err, ErrCommFailure) {
		t.Errorf("errors.Is(err, ErrCommFailure) = true, want false")
	}
	if !errors.Is(err, base) {
		t.Errorf("errors.Is(err, base) = false, want true")
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(ErrIO, "noop", nil) != nil {
		t.Errorf("Wrap with nil err should return nil")
	}
}

func TestWrapMessage(t *testing.T) {
	err := Wrap(ErrShapeMismatch, "tile width", errors.New("128 does not divide 1000"))
	want := "tile width: 128 does not divide 1000"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
