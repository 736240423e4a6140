package afxdp

import (
	"encoding/binary"
	"testing"

	"github.com/penguintech/afxdp/xdp"
)

func newTestTxProd(size uint32) (*ringProd, []byte) {
	region := newTestRegion(size, uint32(16))
	return newRingProd(region, testOffsets(), size), region
}

func newTestCompCons(size uint32) (*ringCons, []byte) {
	region := newTestRegion(size, 8)
	return newRingCons(region, testOffsets(), size), region
}

func TestFillWriterInsertCommit(t *testing.T) {
	// Both kernel heads start at 0: all 8 slots free once countFree's
	// refresh adds the ring size.
	p, region := newTestProd(8)

	w := newFillWriter(p, 4)
	if w.Capacity() != 4 {
		t.Fatalf("capacity = %d, want 4", w.Capacity())
	}
	n := w.Insert([]uint64{100, 200, 300})
	if n != 3 {
		t.Fatalf("inserted = %d, want 3", n)
	}
	w.Commit()
	if got := readProducer(region); got != 3 {
		t.Fatalf("producer after commit = %d, want 3", got)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	// One reserved slot was left uncommitted; cancel must have rewound it,
	// i.e. a fresh reservation should see it available again.
	if free := p.countFree(1); free != 5 {
		t.Fatalf("free after close = %d, want 5", free)
	}
}

func TestFillWriterCloseWithoutCommitCancels(t *testing.T) {
	p, region := newTestProd(8)
	seedConsumer(region, 8)

	w := newFillWriter(p, 4)
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if p.cachedProducer != 0 {
		t.Fatalf("cached producer after full cancel = %d, want 0", p.cachedProducer)
	}
	if got := readProducer(region); got != 0 {
		t.Fatalf("real producer must be untouched by cancel, got %d", got)
	}
}

// S4 — transmit round trip: enqueue 1024 descriptors at frame 0 / len 42,
// commit, then drain the completion ring in batches until all 1024 frame
// addresses have been observed.
func TestTransmitCompletionRoundTrip(t *testing.T) {
	const total = 1024
	const frameAddr = uint64(0)

	txProd, txRegion := newTestTxProd(2048)
	seedConsumer(txRegion, 2048)

	w := newTxWriter(txProd, total)
	if w.Capacity() != total {
		t.Fatalf("tx capacity = %d, want %d", w.Capacity(), total)
	}
	descs := make([]xdp.Desc, total)
	for i := range descs {
		descs[i] = xdp.Desc{Addr: frameAddr, Len: 42}
	}
	if n := w.Insert(descs); n != total {
		t.Fatalf("inserted = %d, want %d", n, total)
	}
	w.Commit()
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Simulate the kernel: every submitted descriptor completes with its
	// frame address appearing on the completion ring, in order.
	compCons, compRegion := newTestCompCons(2048)
	for i := 0; i < total; i++ {
		pos := uint32(i) & compCons.mask
		slotOff := testDescOffset + uint64(pos)*8
		binary.LittleEndian.PutUint64(compRegion[slotOff:slotOff+8], frameAddr)
	}
	seedProducer(compRegion, total)

	seen := 0
	for seen < total {
		r := newCompletionReader(compCons, uint32(total-seen))
		if r.Capacity() == 0 {
			t.Fatalf("completion reader starved before draining %d of %d", seen, total)
		}
		for {
			addr, ok := r.Read()
			if !ok {
				break
			}
			if addr != frameAddr {
				t.Fatalf("completion addr = %d, want %d", addr, frameAddr)
			}
			seen++
		}
		r.Release()
		if err := r.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}

	if got := readConsumer(compRegion); got != total {
		t.Fatalf("completion consumer = %d, want %d", got, total)
	}
}

func TestRxReaderReadsDescriptors(t *testing.T) {
	region := newTestRegion(4, uint32(16))
	for i := 0; i < 4; i++ {
		off := testDescOffset + uint64(i)*16
		binary.LittleEndian.PutUint64(region[off:off+8], uint64(i))
		binary.LittleEndian.PutUint32(region[off+8:off+12], 64)
	}
	seedProducer(region, 4)
	cons := newRingCons(region, testOffsets(), 4)

	r := newRxReader(cons, 4)
	if r.Capacity() != 4 {
		t.Fatalf("capacity = %d, want 4", r.Capacity())
	}
	for i := 0; i < 4; i++ {
		d, ok := r.Read()
		if !ok {
			t.Fatalf("read %d: exhausted early", i)
		}
		if d.Addr != uint64(i) || d.Len != 64 {
			t.Fatalf("read %d: got %+v", i, d)
		}
	}
	r.Release()
	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := readConsumer(region); got != 4 {
		t.Fatalf("consumer after release = %d, want 4", got)
	}
}
