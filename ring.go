package afxdp

import (
	"sync/atomic"
	"unsafe"

	"github.com/penguintech/afxdp/xdp"
)

// ring is the shared state of a single-producer/single-consumer kernel ring:
// a slot count (power of two), a mask, pointers into kernel-mapped memory
// for the producer word, the consumer word, the flags word, and the slot
// array, plus two cached heads that track our local view of the kernel's
// progress. It is deliberately agnostic to how the backing memory was
// obtained — a real mmap on Linux, or a plain byte slice in a test.
type ring struct {
	mask uint32
	size uint32

	producer *uint32
	consumer *uint32
	flags    *uint32
	slots    unsafe.Pointer

	cachedProducer uint32
	cachedConsumer uint32
}

// newRing builds a ring over region, an already-sized byte slice, using the
// given per-ring kernel offsets and slot count. count must be a power of
// two; NewUmem and PrepareSocket reject other sizes with ErrInvalidArgument
// before any ring is built, so the debug assertion is not the only check.
func newRing(region []byte, off xdp.RingOffsets, count uint32) *ring {
	assertf(count != 0 && count&(count-1) == 0, "ring slot count must be a power of two, got %d", count)

	base := unsafe.Pointer(&region[0])
	r := &ring{
		mask:     count - 1,
		size:     count,
		producer: (*uint32)(unsafe.Add(base, uintptr(off.Producer))),
		consumer: (*uint32)(unsafe.Add(base, uintptr(off.Consumer))),
		flags:    (*uint32)(unsafe.Add(base, uintptr(off.Flags))),
		slots:    unsafe.Add(base, uintptr(off.Desc)),
	}
	// Relaxed load: only used to seed our local view, no ordering required yet.
	r.cachedProducer = atomic.LoadUint32(r.producer)
	r.cachedConsumer = atomic.LoadUint32(r.consumer)
	return r
}

// needWakeup reports the flags word's need-wakeup bit via a relaxed load.
func (r *ring) needWakeup() bool {
	return atomic.LoadUint32(r.flags)&xdp.XDP_RING_NEED_WAKEUP != 0
}

func (r *ring) slotAt(idx BufIdx, slotSize uintptr) unsafe.Pointer {
	offset := uintptr(uint32(idx)&r.mask) * slotSize
	return unsafe.Add(r.slots, offset)
}

// ringProd is the producer side of a fill or transmit ring.
type ringProd struct{ ring }

func newRingProd(region []byte, off xdp.RingOffsets, count uint32) *ringProd {
	return &ringProd{ring: *newRing(region, off, count)}
}

// fillAddr returns the fill-ring slot (a plain frame address) at idx.
func (p *ringProd) fillAddr(idx BufIdx) *uint64 {
	return (*uint64)(p.ring.slotAt(idx, 8))
}

// txDesc returns the transmit-ring slot (a full descriptor record) at idx.
func (p *ringProd) txDesc(idx BufIdx) *xdp.Desc {
	return (*xdp.Desc)(p.ring.slotAt(idx, unsafe.Sizeof(xdp.Desc{})))
}

// countFree queries the number of free producer-side slots, refreshing the
// cached consumer head with an acquire load if the cached view falls short
// of minimum.
func (p *ringProd) countFree(minimum uint32) uint32 {
	free := p.cachedConsumer - p.cachedProducer
	if free >= minimum {
		return free
	}

	// Acquire: we must observe every consumer-side release that happened
	// before this load, so that the free count we report cannot be stale.
	p.cachedConsumer = atomic.LoadUint32(p.consumer)
	// This "+= size" step is carried over from the reference kernel helper
	// this ring protocol is modeled on: under mask-based indexing, bumping
	// the cached consumer by a full ring's worth of slots keeps the
	// subsequent subtraction non-negative regardless of the wrap position,
	// while never reporting more free slots than actually exist once it is
	// combined with the next real refresh. It is not a bug; it is preserved
	// deliberately, as documented in the design notes.
	p.cachedConsumer += p.size

	return p.cachedConsumer - p.cachedProducer
}

// reserve grants up to max (but never less than min unless the result is 0)
// producer-side slots, writing the base index into idx and returning the
// granted count.
func (p *ringProd) reserve(min, max uint32, idx *BufIdx) uint32 {
	free := p.countFree(min)
	if free < min {
		return 0
	}

	granted := free
	if granted > max {
		granted = max
	}
	*idx = BufIdx(p.cachedProducer)
	p.cachedProducer += granted
	return granted
}

// cancel rewinds a previous reserve by nb, rolling back an uncommitted
// reservation (in full or in part).
func (p *ringProd) cancel(nb uint32) {
	p.cachedProducer -= nb
}

// submit publishes nb newly-produced slots to the kernel with a release
// store. All slot writes must be complete before calling this.
func (p *ringProd) submit(nb uint32) {
	// Relaxed: we are the only writer of this word, every prior write to it
	// is already ordered before this one program-order-wise.
	cur := atomic.LoadUint32(p.producer)
	// Release: every write to the slots just filled must be visible to the
	// kernel before it observes this new head value.
	atomic.StoreUint32(p.producer, cur+nb)
}

// ringCons is the consumer side of a completion or receive ring.
type ringCons struct{ ring }

func newRingCons(region []byte, off xdp.RingOffsets, count uint32) *ringCons {
	return &ringCons{ring: *newRing(region, off, count)}
}

// compAddr returns the completion-ring slot (a plain frame address) at idx.
func (c *ringCons) compAddr(idx BufIdx) *uint64 {
	return (*uint64)(c.ring.slotAt(idx, 8))
}

// rxDesc returns the receive-ring slot (a full descriptor record) at idx.
func (c *ringCons) rxDesc(idx BufIdx) *xdp.Desc {
	return (*xdp.Desc)(c.ring.slotAt(idx, unsafe.Sizeof(xdp.Desc{})))
}

// countAvailable queries the number of consumer-side slots the kernel has
// produced past our cursor, refreshing with an acquire load when the
// cached view falls short of expected.
func (c *ringCons) countAvailable(expected uint32) uint32 {
	available := c.cachedProducer - c.cachedConsumer
	if available < expected {
		// Acquire: observe every producer-side release up to and including
		// whatever the kernel has published by now.
		c.cachedProducer = atomic.LoadUint32(c.producer)
		available = c.cachedProducer - c.cachedConsumer
	}
	return available
}

// peek grants up to max (but never less than min unless the result is 0)
// consumer-side slots, writing the base index into idx and returning the
// granted count.
func (c *ringCons) peek(min, max uint32, idx *BufIdx) uint32 {
	count := c.countAvailable(min)
	if count < min {
		return 0
	}

	granted := count
	if granted > max {
		granted = max
	}
	*idx = BufIdx(c.cachedConsumer)
	c.cachedConsumer += granted
	return granted
}

// cancel rewinds a previous peek by nb.
func (c *ringCons) cancel(nb uint32) {
	c.cachedConsumer -= nb
}

// release publishes nb newly-consumed slots to the kernel with a release
// store. All slot reads must be complete before calling this.
func (c *ringCons) release(nb uint32) {
	cur := atomic.LoadUint32(c.consumer)
	atomic.StoreUint32(c.consumer, cur+nb)
}
