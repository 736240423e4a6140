//go:build linux

package afxdp

import (
	"unsafe"

	"github.com/penguintech/afxdp/xdp"
)

// queryStatistics retrieves XDP_STATISTICS for fd, tolerating both the
// legacy three-counter struct and the extended six-counter struct, the same
// way queryMmapOffsets tolerates the two historical ring-offsets layouts.
func queryStatistics(fd *sharedFd) (xdp.Statistics, error) {
	var buf [unsafe.Sizeof(xdp.Statistics{})]byte
	optlen := uint32(len(buf))

	if err := fd.getsockopt(xdp.XDP_STATISTICS, unsafe.Pointer(&buf[0]), &optlen); err != nil {
		return xdp.Statistics{}, err
	}

	switch optlen {
	case uint32(unsafe.Sizeof(xdp.StatisticsV1{})):
		v1 := *(*xdp.StatisticsV1)(unsafe.Pointer(&buf[0]))
		return xdp.Statistics{RxDropped: v1.RxDropped, RxInvalid: v1.RxInvalid, TxInvalid: v1.TxInvalid}, nil
	case uint32(unsafe.Sizeof(xdp.Statistics{})):
		return *(*xdp.Statistics)(unsafe.Pointer(&buf[0])), nil
	default:
		return xdp.Statistics{}, ErrInvalidArgument
	}
}
