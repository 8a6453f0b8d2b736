package bytecode

// minCapacity is the capacity given to a buffer on its first growth.
const minCapacity = 8

// GrowCapacity returns the next capacity for a buffer that is full at
// capacity old. Every growable buffer in the package (code, line map and
// constant pool) uses this policy, so appends are amortized O(1).
func GrowCapacity(old int) int {
	if old < minCapacity {
		return minCapacity
	}
	return old * 2
}

// Reallocate resizes a buffer from oldSize to newSize elements.
//
// A newSize of zero releases the buffer and returns nil. Otherwise the
// result has capacity newSize and holds the first min(oldSize, newSize)
// elements of old. There is no recoverable failure mode: if the runtime
// cannot satisfy a nonzero request it aborts the process.
func Reallocate[T any](old []T, oldSize, newSize int) []T {
	if newSize == 0 {
		return nil
	}
	keep := min(oldSize, newSize, len(old))
	buf := make([]T, keep, newSize)
	copy(buf, old[:keep])
	return buf
}

// growSlice appends v, growing s through GrowCapacity when it is full.
func growSlice[T any](s []T, v T) []T {
	if len(s) == cap(s) {
		s = Reallocate(s, len(s), GrowCapacity(cap(s)))
	}
	return append(s, v)
}
