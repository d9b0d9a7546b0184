package flattree

import "fmt"

// FlatRecord is one child-to-parent edge plus the child's payload. It is
// the interchange shape for hierarchy data.
type FlatRecord[K comparable, V any] struct {
	Key       K
	ParentKey K
	Value     V
}

// Record is shorthand for building a FlatRecord.
func Record[K comparable, V any](key, parentKey K, value V) FlatRecord[K, V] {
	return FlatRecord[K, V]{Key: key, ParentKey: parentKey, Value: value}
}

func (r FlatRecord[K, V]) String() string {
	return fmt.Sprintf("%v->%v", r.Key, r.ParentKey)
}
