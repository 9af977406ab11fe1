// Package hash implements the fast modular hash used to derive per-sample
// random seeds, so augmentation does not depend on goroutine scheduling.
package hash

// Hash mixes n with salt s and maps the result into [0, max).
// A max of 0 returns the full 32-bit mix.
func Hash(n uint32, s uint32, max uint32) uint32 {
	m := mix(n, s)
	if max == 0 {
		return m
	}
	// multiply shift instead of modulo, see
	// https://lemire.me/blog/2016/06/27/a-fast-alternative-to-the-modulo-reduction/
	return uint32((uint64(m) * uint64(max)) >> 32)
}

func mix(n, s uint32) uint32 {
	var m = n - s

	m ^= m << 2
	m ^= m << 3
	m ^= m >> 5
	m ^= m >> 7
	m ^= m << 11
	m ^= m << 13
	m ^= m >> 17
	m ^= m << 19

	return m + s
}

// Seed derives a 63-bit rng seed for sample index within epoch of a run seeded with base.
func Seed(base, epoch, index uint32) int64 {
	hi := Hash(Hash(index, epoch, 0), base, 0)
	lo := Hash(Hash(epoch, index^0x9e3779b9, 0), base^hi, 0)
	return int64(uint64(hi)<<31 ^ uint64(lo))
}
