package hotspot

// Seed derives the generator seed from a resource id: the sum of its character codes.
func Seed(resourceID string) uint64 {
	var sum uint64
	for _, r := range resourceID {
		sum += uint64(r)
	}
	return sum
}

// SeededValue returns a value in [0, 1) that depends only on seed and index.
func SeededValue(seed uint64, index int) float64 {
	x := seed + uint64(index)*0x9e3779b97f4a7c15
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	// top 53 bits fill a float64 mantissa exactly
	return float64(x>>11) / (1 << 53)
}
