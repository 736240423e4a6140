//go:build linux

package afxdp

import (
	"unsafe"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/penguintech/afxdp/xdp"
)

// UmemConfig describes the fixed parameters of a UMEM region: fill and
// completion ring sizes, frame (chunk) size, headroom reserved at the start
// of every frame, and the raw flags word passed to the kernel unmodified.
// Fill, completion, receive, and transmit sizes must all be powers of two;
// this library never rounds a caller-supplied size.
type UmemConfig struct {
	FillSize     uint32
	CompleteSize uint32
	FrameSize    uint32
	Headroom     uint32
	Flags        uint32
}

// DefaultUmemConfig returns the configuration most callers start from:
// 2048-entry fill and completion rings, 4096-byte frames, no headroom, no
// flags.
func DefaultUmemConfig() UmemConfig {
	return UmemConfig{
		FillSize:     2048,
		CompleteSize: 2048,
		FrameSize:    4096,
		Headroom:     0,
		Flags:        0,
	}
}

// SocketConfig describes the fixed parameters of a socket's receive and
// transmit rings plus its bind flags. A zero RxSize or TxSize leaves that
// ring unconfigured; mapping an unconfigured ring fails with
// ErrInvalidArgument, and at least one of the two must be set for Bind to
// succeed.
type SocketConfig struct {
	RxSize     uint32
	TxSize     uint32
	BindFlags  uint16
}

// Umem owns a page-aligned byte region and the primary AF_XDP file
// descriptor the region is registered against. It tracks which IfCtx
// triples currently have a device queue (fill/completion ring pair)
// acquired against it, enforcing at most one per IfCtx.
type Umem struct {
	config  UmemConfig
	fd      *sharedFd
	region  []byte
	devices *deviceTracker
}

// NewUmem registers region with a fresh AF_XDP socket under config. region
// must be page-aligned; this is checked in debug builds via a panicking
// assertion (see assertf), and unconditionally guarded against a zero
// frame size and non-power-of-two ring sizes, which are always rejected
// regardless of build mode. The caller must keep region alive and
// unchanged for the lifetime of the returned Umem.
func NewUmem(config UmemConfig, region []byte) (*Umem, error) {
	if config.FrameSize == 0 {
		return nil, ErrInvalidArgument
	}
	if !isPowerOfTwo(config.FillSize) || !isPowerOfTwo(config.CompleteSize) {
		return nil, ErrInvalidArgument
	}
	if len(region) == 0 {
		return nil, ErrInvalidArgument
	}

	pageSize := unix.Getpagesize()
	assertf(uintptr(unsafe.Pointer(&region[0]))&uintptr(pageSize-1) == 0,
		"UMEM region must be page-aligned")

	fd, err := newSharedFd()
	if err != nil {
		return nil, err
	}

	umem := &Umem{
		config:  config,
		fd:      fd,
		region:  region,
		devices: newDeviceTracker(),
	}

	if err := umem.configureReg(); err != nil {
		fd.Close()
		return nil, err
	}

	Log.WithFields(logrus.Fields{
		"region_len": len(region),
		"frame_size": config.FrameSize,
		"fill_size":  config.FillSize,
		"complete_size": config.CompleteSize,
	}).Debug("afxdp: UMEM registered")

	return umem, nil
}

func isPowerOfTwo(n uint32) bool { return n != 0 && n&(n-1) == 0 }

// configureReg issues XDP_UMEM_REG with the exact kernel struct size,
// selecting the current (tx-metadata-aware) interpretation.
func (u *Umem) configureReg() error {
	reg := xdp.UmemReg{
		Addr:      uint64(uintptr(unsafe.Pointer(&u.region[0]))),
		Len:       uint64(len(u.region)),
		ChunkSize: u.config.FrameSize,
		Headroom:  u.config.Headroom,
		Flags:     u.config.Flags,
	}
	return u.fd.setsockopt(xdp.XDP_UMEM_REG, unsafe.Pointer(&reg), unsafe.Sizeof(reg))
}

// UmemFrame is a buffer-index-relative descriptor into the UMEM region: an
// offset from the start of the region and the byte slice at that offset,
// exactly FrameSize bytes long. This library never reads or writes through
// it.
type UmemFrame struct {
	Offset uint64
	Bytes  []byte
}

// Frame returns the descriptor for buffer index idx, or ErrOutOfRange if
// idx*FrameSize..+FrameSize would fall outside the region.
func (u *Umem) Frame(idx BufIdx) (UmemFrame, error) {
	pitch := uint64(u.config.FrameSize)
	offset := pitch * uint64(uint32(idx))
	if uint64(len(u.region)) < offset+pitch {
		return UmemFrame{}, ErrOutOfRange
	}
	return UmemFrame{Offset: offset, Bytes: u.region[offset : offset+pitch]}, nil
}

// Close releases the UMEM's file descriptor reference. The caller remains
// responsible for the backing region's memory.
func (u *Umem) Close() error { return u.fd.Close() }

// DeviceQueue is a mapped fill/completion ring pair bound to one IfCtx,
// acquired from a Umem via AcquireDeviceQueue.
type DeviceQueue struct {
	umem       *Umem
	socket     *Socket
	ctx        IfCtx
	fillRegion []byte
	compRegion []byte
	fill       *ringProd
	comp       *ringCons
	closed     bool
}

// AcquireDeviceQueue configures and maps the fill and completion rings for
// sock's interface, failing with ErrInvalidArgument if a device queue for
// that IfCtx is already acquired against this UMEM. On any failure past
// this point the IfCtx claim is released before returning.
func (u *Umem) AcquireDeviceQueue(sock *Socket) (*DeviceQueue, error) {
	ctx := sock.Info().Ctx()
	if !u.devices.insert(ctx) {
		return nil, ErrInvalidArgument
	}

	ok := false
	defer func() {
		if !ok {
			u.devices.remove(ctx)
		}
	}()

	if err := u.configureFillCompletionSizes(sock.fd); err != nil {
		return nil, err
	}

	off, err := queryMmapOffsets(sock.fd)
	if err != nil {
		return nil, err
	}

	fillLen := ringByteLen(off.Fr, u.config.FillSize, 8)
	fillRegion, err := mmapRing(sock.fd, xdp.PgoffUmemFillRing, fillLen)
	if err != nil {
		return nil, err
	}

	compLen := ringByteLen(off.Cr, u.config.CompleteSize, 8)
	compRegion, err := mmapRing(sock.fd, xdp.PgoffUmemCompletionRing, compLen)
	if err != nil {
		munmapRing(fillRegion)
		return nil, err
	}

	dq := &DeviceQueue{
		umem:       u,
		socket:     sock.clone(),
		ctx:        ctx,
		fillRegion: fillRegion,
		compRegion: compRegion,
		fill:       newRingProd(fillRegion, off.Fr, u.config.FillSize),
		comp:       newRingCons(compRegion, off.Cr, u.config.CompleteSize),
	}

	ok = true
	Log.WithFields(logrus.Fields{
		"ifindex":  ctx.Ifindex,
		"queue_id": ctx.QueueID,
	}).Debug("afxdp: device queue acquired")
	return dq, nil
}

func (u *Umem) configureFillCompletionSizes(fd *sharedFd) error {
	if err := fd.setsockopt(xdp.XDP_UMEM_COMPLETION_RING,
		unsafe.Pointer(&u.config.CompleteSize), unsafe.Sizeof(u.config.CompleteSize)); err != nil {
		return err
	}
	return fd.setsockopt(xdp.XDP_UMEM_FILL_RING,
		unsafe.Pointer(&u.config.FillSize), unsafe.Sizeof(u.config.FillSize))
}

// Fill reserves up to n fill-ring slots for the caller to feed frame
// addresses into.
func (d *DeviceQueue) Fill(n uint32) *FillWriter { return newFillWriter(d.fill, n) }

// Complete peeks up to n completion-ring slots of frame addresses the
// kernel has finished transmitting.
func (d *DeviceQueue) Complete(n uint32) *CompletionReader { return newCompletionReader(d.comp, n) }

// Wake asks the kernel to resume polling the fill queue, when the kernel's
// need-wakeup bit on the fill ring's flags word is set. Matches the
// reference poll(fd, POLLIN, 0)-based wakeup for the fill side.
func (d *DeviceQueue) Wake() error {
	if !d.fill.needWakeup() {
		return nil
	}
	fds := []unix.PollFd{{Fd: int32(d.socket.fd.Int()), Events: unix.POLLIN}}
	_, err := unix.Poll(fds, 0)
	if err != nil {
		return osError("poll", err)
	}
	return nil
}

// Statistics reads the kernel's XDP_STATISTICS counters for this queue's
// socket.
func (d *DeviceQueue) Statistics() (xdp.Statistics, error) { return queryStatistics(d.socket.fd) }

// ConfigureClassifier always fails with ErrClassifierUnconfigured: loading
// an XDP/BPF program and populating its XSKMAP to steer packets onto this
// queue is the caller's job, done through some other mechanism (e.g. an
// existing cgo/libbpf loader), not this library's.
func (d *DeviceQueue) ConfigureClassifier() error { return ErrClassifierUnconfigured }

// Close unmaps the fill and completion rings, releases the IfCtx claim,
// and closes the socket reference. Safe to call more than once.
func (d *DeviceQueue) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.umem.devices.remove(d.ctx)
	Log.WithFields(logrus.Fields{
		"ifindex":  d.ctx.Ifindex,
		"queue_id": d.ctx.QueueID,
	}).Debug("afxdp: device queue released")
	err1 := munmapRing(d.fillRegion)
	err2 := munmapRing(d.compRegion)
	err3 := d.socket.Close()
	if err1 != nil {
		return err1
	}
	if err2 != nil {
		return err2
	}
	return err3
}

// UserSocket is a socket configured with receive and/or transmit ring
// sizes, not yet bound to a device. Call Bind to activate it.
type UserSocket struct {
	umem   *Umem
	socket *Socket
	config SocketConfig
	off    xdp.MmapOffsets
	bound  bool
}

// PrepareSocket sizes sock's receive and/or transmit rings per config and
// queries the resulting mmap offsets, without binding. At least one of
// RxSize or TxSize should be non-zero; Bind fails otherwise. A non-zero size
// that is not a power of two is rejected with ErrInvalidArgument.
func (u *Umem) PrepareSocket(sock *Socket, config SocketConfig) (*UserSocket, error) {
	if (config.RxSize != 0 && !isPowerOfTwo(config.RxSize)) || (config.TxSize != 0 && !isPowerOfTwo(config.TxSize)) {
		return nil, ErrInvalidArgument
	}
	if err := configureRxTxSizes(sock.fd, config); err != nil {
		return nil, err
	}
	off, err := queryMmapOffsets(sock.fd)
	if err != nil {
		return nil, err
	}
	return &UserSocket{umem: u, socket: sock.clone(), config: config, off: off}, nil
}

func configureRxTxSizes(fd *sharedFd, config SocketConfig) error {
	if config.RxSize != 0 {
		if err := fd.setsockopt(xdp.XDP_RX_RING, unsafe.Pointer(&config.RxSize), unsafe.Sizeof(config.RxSize)); err != nil {
			return err
		}
	}
	if config.TxSize != 0 {
		if err := fd.setsockopt(xdp.XDP_TX_RING, unsafe.Pointer(&config.TxSize), unsafe.Sizeof(config.TxSize)); err != nil {
			return err
		}
	}
	return nil
}

// Bind activates the socket's receive/transmit rings against its
// interface. If the socket's file descriptor differs from the owning
// UMEM's (the shared-UMEM case), the bind carries XDP_SHARED_UMEM plus the
// UMEM's fd, as the kernel requires a dedicated completion queue per
// shared interface.
func (u *Umem) Bind(us *UserSocket) error {
	ctx := us.socket.Info().Ctx()
	sxdp := xdp.SockAddrXdp{
		Family:  unix.AF_XDP,
		Ifindex: ctx.Ifindex,
		QueueID: ctx.QueueID,
		Flags:   us.config.BindFlags,
	}

	if us.socket.fd.Int() != u.fd.Int() {
		sxdp.Flags |= xdp.XDP_SHARED_UMEM
		sxdp.SharedUmemFD = uint32(u.fd.Int())
	}

	addr := &unix.SockaddrXDP{
		Flags:        sxdp.Flags,
		Ifindex:      sxdp.Ifindex,
		QueueID:      sxdp.QueueID,
		SharedUmemFD: sxdp.SharedUmemFD,
	}

	if err := unix.Bind(us.socket.fd.Int(), addr); err != nil {
		return osError("bind", err)
	}
	us.bound = true
	Log.WithFields(logrus.Fields{
		"ifindex":  ctx.Ifindex,
		"queue_id": ctx.QueueID,
		"flags":    sxdp.Flags,
	}).Debug("afxdp: socket bound")
	return nil
}
