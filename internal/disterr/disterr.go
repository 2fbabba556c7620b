// Package disterr defines the typed error kinds surfaced across the
// distributed embedding engine: sentinel errors plus a small wrapper type
// that keeps errors.Is true for both the kind and the wrapped cause.
package disterr

import "errors"

// Sentinel error kinds. Use errors.Is against these to classify a failure
// without depending on its message text.
var (
	// ErrIO covers file/stream failures: opening, reading or writing the
	// Matrix Market input, the perf_output statistics file, or the output
	// embedding.
	ErrIO = errors.New("disterr: io error")

	// ErrShapeMismatch covers dimension mismatches between operands, e.g.
	// a tile width that does not evenly divide a process's row width.
	ErrShapeMismatch = errors.New("disterr: shape mismatch")

	// ErrIntegerOverflow covers counts or offsets that would overflow the
	// 32-bit counters used by the AllToAllV wire protocol.
	ErrIntegerOverflow = errors.New("disterr: integer overflow")

	// ErrCommFailure covers a failed or aborted collective.
	ErrCommFailure = errors.New("disterr: communication failure")

	// ErrCacheMiss covers a remote-row cache lookup that found no entry, or
	// found one tagged with a stale (batch_id, iteration).
	ErrCacheMiss = errors.New("disterr: cache miss")

	// ErrInvalidConfig covers a CLI flag combination rejected at startup.
	ErrInvalidConfig = errors.New("disterr: invalid configuration")
)

// Wrap annotates err with msg while preserving errors.Is/As against kind.
func Wrap(kind error, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &wrapped{kind: kind, msg: msg, err: err}
}

type wrapped struct {
	kind error
	msg  string
	err  error
}

func (w *wrapped) Error() string {
	if w.err == nil {
		return w.msg
	}
	return w.msg + ": " + w.err.Error()
}

func (w *wrapped) Unwrap() error {
	return w.err
}

func (w *wrapped) Is(target error) bool {
	return target == w.kind
}
