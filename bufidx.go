package afxdp

// BufIdx is a ring slot index. It wraps at 2^32 and is only ever compared
// via wrapping subtraction, never via <, so it is kept distinct from a bare
// uint32 to keep callers from comparing or adding it like an ordinary count.
type BufIdx uint32

// bufIdxIter walks a contiguous, already-reserved or already-peeked range of
// ring slots. buffers is the total granted by reserve/peek; remain is how
// many are still unconsumed by the caller; base is the slot next hands out
// and advances by one per slot handed out.
type bufIdxIter struct {
	buffers uint32
	remain  uint32
	base    BufIdx
}

// next returns the next slot index in the range, or false once the range is
// exhausted.
func (it *bufIdxIter) next() (BufIdx, bool) {
	if it.remain == 0 {
		return 0, false
	}
	it.remain--
	ret := it.base
	it.base++
	return ret, true
}

// committed is the number of slots the caller has actually walked so far
// (granted minus what is still unconsumed).
func (it *bufIdxIter) committed() uint32 {
	return it.buffers - it.remain
}
