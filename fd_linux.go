//go:build linux

package afxdp

import (
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/penguintech/afxdp/xdp"
)

// sharedFd is a reference-counted AF_XDP file descriptor, shared across the
// UMEM, every socket built from it, the device queue, and any mapped
// receive/transmit ring. The last holder to release it closes the fd.
//
// A plain embedded fd (no refcounting) would leak on partial construction;
// duplicating the fd via dup(2) would confuse shared-UMEM semantics, which
// rely on the *same* fd integer appearing in the bind address. A single
// shared, refcounted wrapper avoids both problems.
type sharedFd struct {
	fd       int32
	refcount int32
}

func newSharedFd() (*sharedFd, error) {
	fd, err := unix.Socket(unix.AF_XDP, unix.SOCK_RAW, 0)
	if err != nil {
		return nil, osError("socket(AF_XDP)", err)
	}
	return &sharedFd{fd: int32(fd), refcount: 1}, nil
}

// clone returns the same handle with its refcount bumped.
func (s *sharedFd) clone() *sharedFd {
	atomic.AddInt32(&s.refcount, 1)
	return s
}

// Close drops one reference, closing the underlying fd once the last
// reference is gone. Every call drops a reference, so each holder closes
// exactly once; a second call from the same holder drops someone else's.
func (s *sharedFd) Close() error {
	if atomic.AddInt32(&s.refcount, -1) > 0 {
		return nil
	}
	return osError("close", unix.Close(int(s.fd)))
}

func (s *sharedFd) Int() int { return int(s.fd) }

func (s *sharedFd) setsockopt(optname int, optval unsafe.Pointer, optlen uintptr) error {
	_, _, errno := unix.Syscall6(unix.SYS_SETSOCKOPT, uintptr(s.Int()),
		uintptr(xdp.SOL_XDP), uintptr(optname), uintptr(optval), optlen, 0)
	if errno != 0 {
		return osError("setsockopt", errno)
	}
	return nil
}

func (s *sharedFd) getsockopt(optname int, optval unsafe.Pointer, optlen *uint32) error {
	_, _, errno := unix.Syscall6(unix.SYS_GETSOCKOPT, uintptr(s.Int()),
		uintptr(xdp.SOL_XDP), uintptr(optname), uintptr(optval),
		uintptr(unsafe.Pointer(optlen)), 0)
	if errno != 0 {
		return osError("getsockopt", errno)
	}
	return nil
}
