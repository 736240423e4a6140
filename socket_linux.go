//go:build linux

package afxdp

import (
	"net"
	"unsafe"

	"golang.org/x/sys/unix"
)

// soNetnsCookie is SO_NETNS_COOKIE, queried at SOL_SOCKET. Not yet exposed
// by x/sys/unix as a named constant on every supported architecture, so it
// is given literally here, matching the kernel ABI value.
const soNetnsCookie = 71

// initNs is the well-known cookie value substituted in on kernels that
// predate SO_NETNS_COOKIE: every socket is implicitly in the initial
// network namespace.
const initNs = uint64(1)

// Socket is an open, not yet bound AF_XDP file descriptor together with the
// interface identity it was created against. It is the handle Umem's
// AcquireDeviceQueue and PrepareSocket consume.
type Socket struct {
	fd   *sharedFd
	info IfInfo
}

// NewSocket opens a fresh AF_XDP socket for iface.
func NewSocket(iface IfInfo) (*Socket, error) {
	fd, err := newSharedFd()
	if err != nil {
		return nil, err
	}
	return newSocketFromFd(iface, fd)
}

// NewSharedSocket returns a socket that reuses umem's own file descriptor.
// Bind on a socket built this way is a plain bind; XDP_SHARED_UMEM is set
// only for sockets whose fd differs from the UMEM's, such as NewSocket's.
func NewSharedSocket(iface IfInfo, umem *Umem) (*Socket, error) {
	return newSocketFromFd(iface, umem.fd.clone())
}

func newSocketFromFd(iface IfInfo, fd *sharedFd) (*Socket, error) {
	cookie, err := readNetnsCookie(fd)
	if err != nil {
		fd.Close()
		return nil, err
	}
	iface.ctx.NetnsCookie = cookie
	return &Socket{fd: fd, info: iface}, nil
}

// readNetnsCookie reads SO_NETNS_COOKIE, falling back to the well-known
// initial-namespace cookie on kernels that don't support the option.
func readNetnsCookie(fd *sharedFd) (uint64, error) {
	var cookie uint64
	optlen := uint32(unsafe.Sizeof(cookie))

	_, _, errno := unix.Syscall6(unix.SYS_GETSOCKOPT, uintptr(fd.Int()),
		uintptr(unix.SOL_SOCKET), uintptr(soNetnsCookie),
		uintptr(unsafe.Pointer(&cookie)), uintptr(unsafe.Pointer(&optlen)), 0)

	switch errno {
	case 0:
		return cookie, nil
	case unix.ENOPROTOOPT:
		return initNs, nil
	default:
		return 0, osError("getsockopt(SO_NETNS_COOKIE)", errno)
	}
}

// Close releases the underlying file descriptor reference.
func (s *Socket) Close() error { return s.fd.Close() }

// Info returns the interface identity this socket was created against.
func (s *Socket) Info() IfInfo { return s.info }

// clone returns a new Socket holding its own counted reference to the same
// underlying fd. Every handle derived from a socket (a device queue, a
// prepared user socket, a mapped rx/tx ring) embeds a clone rather than the
// original, so each can be closed independently without double-closing the
// shared fd.
func (s *Socket) clone() *Socket {
	return &Socket{fd: s.fd.clone(), info: s.info}
}

// ResolveInterfaceByName looks up ifname via the kernel's interface table
// and returns an IfInfo identifying it, queue 0, no namespace cookie set.
func ResolveInterfaceByName(ifname string) (IfInfo, error) {
	iface, err := net.InterfaceByName(ifname)
	if err != nil {
		return IfInfo{}, osError("InterfaceByName", err)
	}
	info := InvalidIfInfo()
	info.ctx.Ifindex = uint32(iface.Index)
	if err := info.setName(iface.Name); err != nil {
		return IfInfo{}, err
	}
	return info, nil
}

// ResolveInterfaceByIndex looks up ifindex via the kernel's interface table
// and returns an IfInfo identifying it, queue 0, no namespace cookie set.
func ResolveInterfaceByIndex(ifindex uint32) (IfInfo, error) {
	iface, err := net.InterfaceByIndex(int(ifindex))
	if err != nil {
		return IfInfo{}, osError("InterfaceByIndex", err)
	}
	info := InvalidIfInfo()
	info.ctx.Ifindex = uint32(iface.Index)
	if err := info.setName(iface.Name); err != nil {
		return IfInfo{}, err
	}
	return info, nil
}
