//go:build xskdebug

package afxdp

import "fmt"

// assertf panics when cond is false, carrying a formatted message. Built
// only under the xskdebug tag, mirroring the reference implementation's
// debug_assert!/assert! split: debug builds abort on a violated contract,
// release builds skip the assertion. Only conditions that callers also check
// explicitly (ring sizes, zero frame size) return an error in both builds.
func assertf(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}
