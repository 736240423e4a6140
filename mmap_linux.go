//go:build linux

package afxdp

import (
	"golang.org/x/sys/unix"

	"github.com/penguintech/afxdp/xdp"
)

// mmapRing maps a kernel ring region at the given well-known pgoffset. The
// returned slice owns the mapping; the caller must munmapRing it exactly
// once.
func mmapRing(fd *sharedFd, pgoff int64, length int) ([]byte, error) {
	region, err := unix.Mmap(fd.Int(), pgoff, length,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		return nil, osError("mmap", err)
	}
	return region, nil
}

func munmapRing(region []byte) error {
	if len(region) == 0 {
		return nil
	}
	return osError("munmap", unix.Munmap(region))
}

// ringByteLen computes the mmap length for a ring: the descriptor array
// offset plus count slots of slotSize bytes each.
func ringByteLen(off xdp.RingOffsets, count uint32, slotSize uint64) int {
	return int(off.Desc + uint64(count)*slotSize)
}
