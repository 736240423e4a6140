package afxdp

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument covers malformed or oversized interface names,
// requesting a ring map whose size was never configured, acquiring a
// device queue for an already-claimed (interface, queue) triple, and an
// unrecognised mmap-offsets struct size.
var ErrInvalidArgument = errors.New("afxdp: invalid argument")

// ErrOutOfRange is reported when a frame index falls past the end of the
// UMEM region.
var ErrOutOfRange = errors.New("afxdp: frame index out of range")

// ErrUnsupportedPlatform is returned by every constructor on platforms
// other than Linux, where AF_XDP does not exist.
var ErrUnsupportedPlatform = errors.New("afxdp: AF_XDP is only available on linux")

// ErrClassifierUnconfigured is returned by DeviceQueue.ConfigureClassifier:
// loading and attaching the XDP/BPF program that steers packets into an
// XSKMAP is an external collaborator's responsibility, not this library's.
// No receive traffic reaches a device queue's fill/completion rings until
// the caller has done so by some other means.
var ErrClassifierUnconfigured = errors.New("afxdp: no classifier program configured; attach an XDP/BPF program and populate its XSKMAP separately")

// OSError wraps a non-zero return from a kernel call, carrying the raw
// errno so the caller can classify it (e.g. errors.Is against syscall.EINVAL).
type OSError struct {
	Op  string
	Err error
}

func (e *OSError) Error() string {
	return fmt.Sprintf("afxdp: %s: %v", e.Op, e.Err)
}

func (e *OSError) Unwrap() error { return e.Err }

// osError wraps err with the operation that produced it, for kernel calls
// that report failure through errno. Returns nil if err is nil.
func osError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &OSError{Op: op, Err: err}
}
