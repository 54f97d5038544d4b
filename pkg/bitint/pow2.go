/*
Package bitint provides power-of-2 helpers for capture block sizing. The
spectral stage requires power-of-2 block lengths, so config validation and
buffer rounding both go through here.

All operations are O(1), allocation-free and safe on the capture path.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the next power of 2 >= size. Exact powers of 2 are
// preserved; the size-1 subtraction is what keeps 8 from becoming 16.
// Non-positive sizes return 1.
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return int(1 << bits.Len64(uint64(size-1)))
}

// IsPowerOfTwo reports whether n is a positive power of 2. Powers of 2 have
// exactly one bit set, so (n & (n-1)) == 0 identifies them.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}
