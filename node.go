package flattree

import "iter"

// Node is a handle to a vertex of a Tree. It does not own the vertex: the
// handle stops being Valid once its node is removed, cut away into another
// tree, or cleared. Moving a node within its tree keeps the handle valid.
type Node[K comparable, V any] struct {
	tree *Tree[K, V]
	id   int
	gen  uint64
}

// Valid reports whether the handle still refers to a node in its tree.
func (n *Node[K, V]) Valid() bool {
	if n == nil || n.tree == nil || n.id < 0 || n.id >= len(n.tree.slots) {
		return false
	}
	s := &n.tree.slots[n.id]
	return s.used && s.gen == n.gen
}

// Tree returns the tree the node belongs to.
func (n *Node[K, V]) Tree() *Tree[K, V] {
	return n.tree
}

// Key returns the node's key, or the zero key for an invalid handle.
func (n *Node[K, V]) Key() K {
	if !n.Valid() {
		var zero K
		return zero
	}
	return n.tree.slots[n.id].key
}

// Value returns the node's payload, or the zero value for an invalid handle.
func (n *Node[K, V]) Value() V {
	if !n.Valid() {
		var zero V
		return zero
	}
	return n.tree.slots[n.id].value
}

// SetValue replaces the node's payload.
func (n *Node[K, V]) SetValue(value V) bool {
	if !n.Valid() {
		return false
	}
	n.tree.slots[n.id].value = value
	return true
}

// Parent returns the node's parent; the root has none.
func (n *Node[K, V]) Parent() (*Node[K, V], bool) {
	if !n.Valid() {
		return nil, false
	}
	parent := n.tree.slots[n.id].parent
	if parent == noParent {
		return nil, false
	}
	return n.tree.handle(parent), true
}

// Children returns the node's direct children in insertion order.
func (n *Node[K, V]) Children() []*Node[K, V] {
	if !n.Valid() {
		return nil
	}
	ids := n.tree.slots[n.id].children
	children := make([]*Node[K, V], len(ids))
	for i, c := range ids {
		children[i] = n.tree.handle(c)
	}
	return children
}

func (n *Node[K, V]) ChildCount() int {
	if !n.Valid() {
		return 0
	}
	return len(n.tree.slots[n.id].children)
}

func (n *Node[K, V]) IsLeaf() bool {
	return n.ChildCount() == 0
}

// Contains reports whether key is this node's key or belongs to one of its
// descendants. It consults the membership cache only.
func (n *Node[K, V]) Contains(key K) bool {
	if !n.Valid() {
		return false
	}
	_, ok := n.tree.slots[n.id].members[key]
	return ok
}

// TryAppend places rec as a child of the node keyed rec.ParentKey, searching
// this node and its descendants. It fails without side effects if no such
// parent is in this subtree, or if rec.Key is already used anywhere in the
// tree.
func (n *Node[K, V]) TryAppend(rec FlatRecord[K, V]) bool {
	if !n.Valid() {
		return false
	}
	return n.tree.tryAppend(n.id, rec)
}

// FindByKey returns the node with the given key from this node's subtree.
func (n *Node[K, V]) FindByKey(key K) (*Node[K, V], bool) {
	if !n.Valid() {
		return nil, false
	}
	id := n.tree.find(n.id, key)
	if id == noParent {
		return nil, false
	}
	return n.tree.handle(id), true
}

// VisitForward calls fn for this node and every descendant, parents first.
func (n *Node[K, V]) VisitForward(fn func(*Node[K, V])) {
	if !n.Valid() {
		return
	}
	n.tree.visitForward(n.id, func(id int) {
		fn(n.tree.handle(id))
	})
}

// VisitBackward calls fn for this node and every descendant, children first.
func (n *Node[K, V]) VisitBackward(fn func(*Node[K, V])) {
	if !n.Valid() {
		return
	}
	n.tree.visitBackward(n.id, func(id int) {
		fn(n.tree.handle(id))
	})
}

// ToFlat yields a record for every descendant of this node, each child's
// subtree before the child. Feeding the records to a Builder rooted at a
// node with this node's key rebuilds the subtree.
func (n *Node[K, V]) ToFlat() iter.Seq[FlatRecord[K, V]] {
	return func(yield func(FlatRecord[K, V]) bool) {
		if n.Valid() {
			n.tree.flat(n.id, yield)
		}
	}
}

// FindDeepest returns the first leaf, in depth-first order, for which pred
// holds on it and on every node on the path down from n.
func (n *Node[K, V]) FindDeepest(pred func(*Node[K, V]) bool) (*Node[K, V], bool) {
	if !n.Valid() {
		return nil, false
	}
	id := n.tree.findDeepest(n.id, pred)
	if id == noParent {
		return nil, false
	}
	return n.tree.handle(id), true
}

// Clear drops every descendant of the node.
func (n *Node[K, V]) Clear() bool {
	if !n.Valid() {
		return false
	}
	n.tree.clear(n.id)
	return true
}

// ExtractForward lazily maps fn over n and its descendants, parents first.
// Each iteration walks the subtree afresh.
func ExtractForward[K comparable, V any, T any](n *Node[K, V], fn func(*Node[K, V]) T) iter.Seq[T] {
	return func(yield func(T) bool) {
		if !n.Valid() {
			return
		}
		n.tree.walkForward(n.id, func(id int) bool {
			return yield(fn(n.tree.handle(id)))
		})
	}
}

// ExtractBackward lazily maps fn over n and its descendants, children first.
func ExtractBackward[K comparable, V any, T any](n *Node[K, V], fn func(*Node[K, V]) T) iter.Seq[T] {
	return func(yield func(T) bool) {
		if !n.Valid() {
			return
		}
		n.tree.walkBackward(n.id, func(id int) bool {
			return yield(fn(n.tree.handle(id)))
		})
	}
}
