package afxdp

import "github.com/penguintech/afxdp/xdp"

// FillWriter reserves up to N fill-ring slots and lets the caller feed up
// to that many frame addresses through Insert. Commit submits what has been
// written; Close cancels whatever part of the reservation was not committed,
// including slots written but not yet committed.
type FillWriter struct {
	idx   bufIdxIter
	queue *ringProd
	done  bool
}

func newFillWriter(q *ringProd, n uint32) *FillWriter {
	w := &FillWriter{queue: q}
	w.idx.buffers = q.reserve(1, n, &w.idx.base)
	w.idx.remain = w.idx.buffers
	return w
}

// Capacity returns the number of reserved slots not yet written by Insert.
// Before the first Insert this is the number actually reserved (may be less
// than requested, or zero).
func (w *FillWriter) Capacity() uint32 { return w.idx.remain }

// Insert writes frame addresses into the reserved slots, in order, stopping
// when either the reservation or addrs is exhausted. Returns the number of
// slots written.
func (w *FillWriter) Insert(addrs []uint64) uint32 {
	var n uint32
	for _, addr := range addrs {
		bufidx, ok := w.idx.next()
		if !ok {
			break
		}
		*w.queue.fillAddr(bufidx) = addr
		n++
	}
	return n
}

// Commit submits every slot written so far to the kernel.
func (w *FillWriter) Commit() {
	count := w.idx.committed()
	w.queue.submit(count)
	w.idx.buffers -= count
}

// Close cancels every reserved slot not yet committed, written or not.
// Safe to call multiple times.
func (w *FillWriter) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	if w.idx.buffers != 0 {
		w.queue.cancel(w.idx.buffers)
	}
	return nil
}

// CompletionReader peeks up to N completion-ring slots, each a frame
// address the kernel has finished transmitting.
type CompletionReader struct {
	idx   bufIdxIter
	queue *ringCons
	done  bool
}

func newCompletionReader(q *ringCons, n uint32) *CompletionReader {
	r := &CompletionReader{queue: q}
	r.idx.buffers = q.peek(1, n, &r.idx.base)
	r.idx.remain = r.idx.buffers
	return r
}

// Capacity returns the number of peeked slots not yet read. Before the
// first Read this is the number actually peeked.
func (r *CompletionReader) Capacity() uint32 { return r.idx.remain }

// Read pulls the next completed frame address, or false once the peeked
// range is exhausted.
func (r *CompletionReader) Read() (uint64, bool) {
	bufidx, ok := r.idx.next()
	if !ok {
		return 0, false
	}
	return *r.queue.compAddr(bufidx), true
}

// Release advances the consumer head past everything read so far.
func (r *CompletionReader) Release() {
	count := r.idx.committed()
	r.queue.release(count)
	r.idx.buffers -= count
}

// Close cancels every peeked slot not yet released, read or not.
// Safe to call multiple times.
func (r *CompletionReader) Close() error {
	if r.done {
		return nil
	}
	r.done = true
	if r.idx.buffers != 0 {
		r.queue.cancel(r.idx.buffers)
	}
	return nil
}

// TxWriter reserves up to N transmit-ring slots and lets the caller feed
// descriptor records through Insert.
type TxWriter struct {
	idx   bufIdxIter
	queue *ringProd
	done  bool
}

func newTxWriter(q *ringProd, n uint32) *TxWriter {
	w := &TxWriter{queue: q}
	w.idx.buffers = q.reserve(1, n, &w.idx.base)
	w.idx.remain = w.idx.buffers
	return w
}

// Capacity returns the number of reserved slots not yet written by Insert.
// Before the first Insert this is the number actually reserved.
func (w *TxWriter) Capacity() uint32 { return w.idx.remain }

// Insert writes descriptor records into the reserved slots, stopping when
// either the reservation or descs is exhausted. Returns the number written.
func (w *TxWriter) Insert(descs []xdp.Desc) uint32 {
	var n uint32
	for _, d := range descs {
		bufidx, ok := w.idx.next()
		if !ok {
			break
		}
		*w.queue.txDesc(bufidx) = d
		n++
	}
	return n
}

// Commit submits every descriptor written so far to the kernel.
func (w *TxWriter) Commit() {
	count := w.idx.committed()
	w.queue.submit(count)
	w.idx.buffers -= count
}

// Close cancels every reserved slot not yet committed, written or not.
// Safe to call multiple times.
func (w *TxWriter) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	if w.idx.buffers != 0 {
		w.queue.cancel(w.idx.buffers)
	}
	return nil
}

// RxReader peeks up to N receive-ring slots, each a full descriptor record
// for an incoming packet.
type RxReader struct {
	idx   bufIdxIter
	queue *ringCons
	done  bool
}

func newRxReader(q *ringCons, n uint32) *RxReader {
	r := &RxReader{queue: q}
	r.idx.buffers = q.peek(1, n, &r.idx.base)
	r.idx.remain = r.idx.buffers
	return r
}

// Capacity returns the number of peeked slots not yet read. Before the
// first Read this is the number actually peeked.
func (r *RxReader) Capacity() uint32 { return r.idx.remain }

// Read pulls the next received descriptor record, or false once the peeked
// range is exhausted.
func (r *RxReader) Read() (xdp.Desc, bool) {
	bufidx, ok := r.idx.next()
	if !ok {
		return xdp.Desc{}, false
	}
	return *r.queue.rxDesc(bufidx), true
}

// Release advances the consumer head past everything read so far.
func (r *RxReader) Release() {
	count := r.idx.committed()
	r.queue.release(count)
	r.idx.buffers -= count
}

// Close cancels every peeked slot not yet released, read or not.
// Safe to call multiple times.
func (r *RxReader) Close() error {
	if r.done {
		return nil
	}
	r.done = true
	if r.idx.buffers != 0 {
		r.queue.cancel(r.idx.buffers)
	}
	return nil
}
