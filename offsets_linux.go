//go:build linux

package afxdp

import (
	"unsafe"

	"github.com/penguintech/afxdp/xdp"
)

// queryMmapOffsets retrieves the ring layout offsets for fd, tolerating
// both the legacy (three-field, no explicit flags word) and current kernel
// struct layouts. The kernel indicates which layout it returned via the
// length written back by getsockopt; a length matching neither known size
// is reported as ErrInvalidArgument.
func queryMmapOffsets(fd *sharedFd) (xdp.MmapOffsets, error) {
	var buf [unsafe.Sizeof(xdp.MmapOffsets{})]byte
	optlen := uint32(len(buf))

	if err := fd.getsockopt(xdp.XDP_MMAP_OFFSETS, unsafe.Pointer(&buf[0]), &optlen); err != nil {
		return xdp.MmapOffsets{}, err
	}

	switch optlen {
	case uint32(unsafe.Sizeof(xdp.MmapOffsetsV1{})):
		v1 := *(*xdp.MmapOffsetsV1)(unsafe.Pointer(&buf[0]))
		return xdp.MmapOffsets{
			Rx: fixupRingOffsetsV1(v1.Rx),
			Tx: fixupRingOffsetsV1(v1.Tx),
			Fr: fixupRingOffsetsV1(v1.Fr),
			Cr: fixupRingOffsetsV1(v1.Cr),
		}, nil
	case uint32(unsafe.Sizeof(xdp.MmapOffsets{})):
		return *(*xdp.MmapOffsets)(unsafe.Pointer(&buf[0])), nil
	default:
		return xdp.MmapOffsets{}, ErrInvalidArgument
	}
}

// fixupRingOffsetsV1 synthesises the flags offset for a legacy kernel that
// never reported one: historically the flags word sat immediately after
// the consumer word.
func fixupRingOffsetsV1(v1 xdp.RingOffsetsV1) xdp.RingOffsets {
	return xdp.RingOffsets{
		Producer: v1.Producer,
		Consumer: v1.Consumer,
		Desc:     v1.Desc,
		Flags:    v1.Consumer + 4,
	}
}
