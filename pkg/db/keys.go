package db

// Successor returns the smallest key greater than every key that starts
// with prefix: the prefix read as a big-endian integer plus one, without the
// trailing zero bytes produced by carrying out of 0xFF. It returns nil when
// no such key exists, that is for an empty or all-0xFF prefix.
func Successor(prefix []byte) []byte {
	for i := len(prefix) - 1; i >= 0; i-- {
		if prefix[i] != 0xff {
			s := make([]byte, i+1)
			copy(s, prefix)
			s[i]++
			return s
		}
	}
	return nil
}

// join returns a followed by b in a fresh slice.
func join(a, b []byte) []byte {
	k := make([]byte, 0, len(a)+len(b))
	k = append(k, a...)
	return append(k, b...)
}
