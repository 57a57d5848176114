package partition

// BucketHash computes the deterministic string hash used for hash-based
// partitioning: h = (h<<5) - h + c over 32-bit arithmetic, truncated to
// non-negative. The function is pure: the same key always maps to the same
// bucket within and across runs.
func BucketHash(key string) int {
	var h int32
	for _, c := range key {
		h = (h << 5) - h + int32(c)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return int(v)
}

// BucketFor maps a key to a bucket index in [0, buckets).
func BucketFor(key string, buckets int) int {
	if buckets <= 0 {
		return 0
	}
	return BucketHash(key) % buckets
}
