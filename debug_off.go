//go:build !xskdebug

package afxdp

// assertf is a no-op in release builds. Ring sizes and a zero frame size are
// also checked explicitly and reported as ErrInvalidArgument (see NewUmem and
// PrepareSocket); UMEM page alignment is checked only by assertf.
func assertf(cond bool, format string, args ...interface{}) {}
