package bytecode

// ValueArray is the constant pool: an append-only sequence of values
// indexed by position. Indices handed out by Write stay valid until Free.
type ValueArray struct {
	Values []Value `cbor:"1,keyasint"`
}

// Write appends v and returns its index.
func (a *ValueArray) Write(v Value) int {
	a.Values = growSlice(a.Values, v)
	return len(a.Values) - 1
}

// At returns the value at index i.
// Panics if the index is out of bounds.
func (a *ValueArray) At(i int) Value {
	return a.Values[i]
}

// Count returns the number of values in the array.
func (a *ValueArray) Count() int {
	return len(a.Values)
}

// Capacity returns the number of slots allocated.
func (a *ValueArray) Capacity() int {
	return cap(a.Values)
}

// Free releases the backing storage.
func (a *ValueArray) Free() {
	a.Values = Reallocate(a.Values, len(a.Values), 0)
}
