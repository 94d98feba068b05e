package cache

// Cache defines the interface for memoizing pairwise similarity scores
type Cache interface {
	Get(key string) (float64, bool)
	Set(key string, score float64)
	Len() int
	Clear()
}

// PairKey generates an order-independent key for two normalized names
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return "concordia:v1:" + a + "\x00" + b
}
