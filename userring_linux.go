//go:build linux

package afxdp

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/penguintech/afxdp/xdp"
)

// RxRing is a mapped receive ring, obtained from a bound or unbound
// UserSocket via MapRx.
type RxRing struct {
	socket *Socket
	region []byte
	ring   *ringCons
	closed bool
}

// Receive peeks up to n receive-ring slots, each a full descriptor record
// for an incoming packet.
func (r *RxRing) Receive(n uint32) *RxReader { return newRxReader(r.ring, n) }

// Wake asks the kernel to resume delivering to this ring, when the flags
// word's need-wakeup bit is set. A no-op otherwise: receive never requires
// a wakeup in the fast path.
func (r *RxRing) Wake() error {
	if !r.ring.needWakeup() {
		return nil
	}
	fds := []unix.PollFd{{Fd: int32(r.socket.fd.Int()), Events: unix.POLLIN}}
	if _, err := unix.Poll(fds, 0); err != nil {
		return osError("poll", err)
	}
	return nil
}

// Close unmaps the receive ring and releases the socket reference.
func (r *RxRing) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	err1 := munmapRing(r.region)
	err2 := r.socket.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// TxRing is a mapped transmit ring, obtained from a bound or unbound
// UserSocket via MapTx.
type TxRing struct {
	socket *Socket
	region []byte
	ring   *ringProd
	closed bool
}

// Transmit reserves up to n transmit-ring slots for the caller to feed
// descriptor records into.
func (t *TxRing) Transmit(n uint32) *TxWriter { return newTxWriter(t.ring, n) }

// Wake issues the MSG_DONTWAIT sendto the kernel uses as the transmit-side
// doorbell, when the flags word's need-wakeup bit is set.
func (t *TxRing) Wake() error {
	if !t.ring.needWakeup() {
		return nil
	}
	err := unix.Sendto(t.socket.fd.Int(), nil, unix.MSG_DONTWAIT, nil)
	if err != nil && err != unix.EAGAIN && err != unix.EBUSY && err != unix.ENOBUFS && err != unix.ENXIO {
		return osError("sendto", err)
	}
	return nil
}

// Close unmaps the transmit ring and releases the socket reference.
func (t *TxRing) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	err1 := munmapRing(t.region)
	err2 := t.socket.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// MapRx maps the receive ring configured by PrepareSocket into memory.
// Fails with ErrInvalidArgument if RxSize was never configured.
func (us *UserSocket) MapRx() (*RxRing, error) {
	if us.config.RxSize == 0 {
		return nil, ErrInvalidArgument
	}
	length := ringByteLen(us.off.Rx, us.config.RxSize, uint64(unsafe.Sizeof(xdp.Desc{})))
	region, err := mmapRing(us.socket.fd, xdp.PgoffRxRing, length)
	if err != nil {
		return nil, err
	}
	return &RxRing{
		socket: us.socket.clone(),
		region: region,
		ring:   newRingCons(region, us.off.Rx, us.config.RxSize),
	}, nil
}

// MapTx maps the transmit ring configured by PrepareSocket into memory.
// Fails with ErrInvalidArgument if TxSize was never configured.
func (us *UserSocket) MapTx() (*TxRing, error) {
	if us.config.TxSize == 0 {
		return nil, ErrInvalidArgument
	}
	length := ringByteLen(us.off.Tx, us.config.TxSize, uint64(unsafe.Sizeof(xdp.Desc{})))
	region, err := mmapRing(us.socket.fd, xdp.PgoffTxRing, length)
	if err != nil {
		return nil, err
	}
	return &TxRing{
		socket: us.socket.clone(),
		region: region,
		ring:   newRingProd(region, us.off.Tx, us.config.TxSize),
	}, nil
}

// Statistics reads the kernel's XDP_STATISTICS counters for this socket.
func (us *UserSocket) Statistics() (xdp.Statistics, error) { return queryStatistics(us.socket.fd) }

// Close releases the socket reference. Mapped rings obtained from this
// UserSocket own their own reference and must be closed independently.
func (us *UserSocket) Close() error { return us.socket.Close() }
