// Package xdp defines the AF_XDP kernel-interface structs and constants:
// socket options, wire-format structs, bind flags, and mmap page offsets.
// Nothing here allocates or calls into the kernel; it only describes the
// bytes the kernel expects and returns.
package xdp

// SOL_XDP is the setsockopt/getsockopt level for all XDP socket options.
const SOL_XDP = 283

// Socket options at SOL_XDP.
const (
	XDP_MMAP_OFFSETS         = 1
	XDP_RX_RING              = 2
	XDP_TX_RING              = 3
	XDP_UMEM_REG             = 4
	XDP_UMEM_FILL_RING       = 5
	XDP_UMEM_COMPLETION_RING = 6
	XDP_STATISTICS           = 7
	XDP_OPTIONS              = 8
)

// Bind flag bits carried in SockAddrXdp.Flags.
const (
	XDP_SHARED_UMEM  = uint16(1) << 0
	XDP_COPY         = uint16(1) << 1
	XDP_ZEROCOPY     = uint16(1) << 2
	XDP_USE_NEED_WAKEUP = uint16(1) << 3
)

// Ring flags-word bit observed via a relaxed load on a ring's flags word.
const XDP_RING_NEED_WAKEUP = uint32(1) << 0

// mmap pgoffsets, one per ring kind, passed as the offset argument to mmap.
const (
	PgoffRxRing        = int64(0)
	PgoffTxRing        = int64(0x80000000)
	PgoffUmemFillRing  = int64(0x100000000)
	PgoffUmemCompletionRing = int64(0x180000000)
)

// Desc is the 16-byte descriptor record carried by the receive and transmit
// rings: a frame-relative address, a length, and an options bitfield.
type Desc struct {
	Addr    uint64
	Len     uint32
	Options uint32
}

// UmemReg is the XDP_UMEM_REG option payload. Must be passed to setsockopt
// at exactly sizeof(UmemReg); a shorter payload selects the kernel's older
// (no tx-metadata) interpretation of the struct.
type UmemReg struct {
	Addr          uint64
	Len           uint64
	ChunkSize     uint32
	Headroom      uint32
	Flags         uint32
	TxMetadataLen uint32
}

// RingOffsetsV1 is the legacy (three-field) per-ring offsets layout, used by
// kernels that predate the flags word.
type RingOffsetsV1 struct {
	Producer uint64
	Consumer uint64
	Desc     uint64
}

// RingOffsets is the current per-ring offsets layout.
type RingOffsets struct {
	Producer uint64
	Consumer uint64
	Desc     uint64
	Flags    uint64
}

// MmapOffsetsV1 is the legacy XDP_MMAP_OFFSETS payload (no flags words).
type MmapOffsetsV1 struct {
	Rx RingOffsetsV1
	Tx RingOffsetsV1
	Fr RingOffsetsV1
	Cr RingOffsetsV1
}

// MmapOffsets is the current XDP_MMAP_OFFSETS payload.
type MmapOffsets struct {
	Rx RingOffsets
	Tx RingOffsets
	Fr RingOffsets
	Cr RingOffsets
}

// SockAddrXdp is the AF_XDP bind address. Zero-initialise unused fields;
// the kernel treats padding as significant.
type SockAddrXdp struct {
	Family       uint16
	Flags        uint16
	Ifindex      uint32
	QueueID      uint32
	SharedUmemFD uint32
}

// StatisticsV1 is the legacy (three-counter) XDP_STATISTICS payload.
type StatisticsV1 struct {
	RxDropped  uint64
	RxInvalid  uint64
	TxInvalid  uint64
}

// Statistics is the current (six-counter) XDP_STATISTICS payload.
type Statistics struct {
	RxDropped   uint64
	RxInvalid   uint64
	TxInvalid   uint64
	RxRingFull  uint64
	RxFillEmpty uint64
	TxRingEmpty uint64
}
