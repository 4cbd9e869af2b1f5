// Package optional provides a value which may or may not be set.
package optional

// Optional holds a value of type T and whether it has been set. The zero value is
// an empty Optional.
type Optional[T any] struct {
	value T
	set   bool
}

// Of returns an Optional holding val.
func Of[T any](val T) Optional[T] {
	return Optional[T]{value: val, set: true}
}

// Set stores val.
func (o *Optional[T]) Set(val T) {
	o.value = val
	o.set = true
}

// Get returns the stored value, or the zero value of T when nothing is set.
func (o Optional[T]) Get() T {
	return o.value
}

// HasValue reports whether a value has been set.
func (o Optional[T]) HasValue() bool {
	return o.set
}

// Reset clears the stored value.
func (o *Optional[T]) Reset() {
	var zero T
	o.value = zero
	o.set = false
}
