package flattree

import (
	"fmt"
	"reflect"
)

// Change describes how one key differs between two trees. A key present in
// both trees is reported only if it was moved to another parent or its value
// changed; both can be true at once.
type Change[K comparable, V any] struct {
	Key          K
	Added        bool
	Removed      bool
	Moved        bool
	ValueChanged bool
	// OldParent and NewParent are the zero key for a root, or for the side
	// the key is absent from.
	OldParent K
	NewParent K
	OldValue  V
	NewValue  V
}

type idStack []int

func (s *idStack) push(ids ...int) {
	// reversed, so children come off the stack in order
	for i := len(ids) - 1; i >= 0; i-- {
		*s = append(*s, ids[i])
	}
}

func (s *idStack) pop() (int, bool) {
	if len(*s) == 0 {
		return noParent, false
	}
	id := (*s)[len(*s)-1]
	*s = (*s)[:len(*s)-1]
	return id, true
}

func (t *Tree[K, V]) parentKey(id int) (K, bool) {
	var zero K
	parent := t.slots[id].parent
	if parent == noParent {
		return zero, false
	}
	return t.slots[parent].key, true
}

// DiffIter invokes f for every key that differs between oldTree and this
// tree: first added, moved, and changed keys in this tree's pre-order, then
// removed keys in oldTree's pre-order. The iteration stops if f returns
// keepGoing==false or an error. A nil equal compares values with
// reflect.DeepEqual.
func (t *Tree[K, V]) DiffIter(
	oldTree *Tree[K, V],
	equal func(a, b V) bool,
	f func(change Change[K, V]) (keepGoing bool, err error),
) error {
	if equal == nil {
		equal = func(a, b V) bool { return reflect.DeepEqual(a, b) }
	}
	var stack idStack
	if t.root != noParent {
		stack.push(t.root)
	}
	for {
		id, ok := stack.pop()
		if !ok {
			break
		}
		s := &t.slots[id]
		stack.push(s.children...)
		change := Change[K, V]{Key: s.key, NewValue: s.value}
		change.NewParent, _ = t.parentKey(id)
		oldID := noParent
		if oldTree != nil && oldTree.Contains(s.key) {
			oldID = oldTree.find(oldTree.root, s.key)
		}
		if oldID == noParent {
			change.Added = true
		} else {
			var oldHasParent bool
			_, newHasParent := t.parentKey(id)
			change.OldParent, oldHasParent = oldTree.parentKey(oldID)
			change.OldValue = oldTree.slots[oldID].value
			change.Moved = oldHasParent != newHasParent || change.OldParent != change.NewParent
			change.ValueChanged = !equal(change.OldValue, change.NewValue)
			if !change.Moved && !change.ValueChanged {
				continue
			}
		}
		keepGoing, err := f(change)
		if err != nil {
			return fmt.Errorf("callback: %w", err)
		}
		if !keepGoing {
			return nil
		}
	}
	if oldTree == nil || oldTree.root == noParent {
		return nil
	}
	stack.push(oldTree.root)
	for {
		id, ok := stack.pop()
		if !ok {
			return nil
		}
		s := &oldTree.slots[id]
		stack.push(s.children...)
		if t.Contains(s.key) {
			continue
		}
		change := Change[K, V]{Key: s.key, Removed: true, OldValue: s.value}
		change.OldParent, _ = oldTree.parentKey(id)
		keepGoing, err := f(change)
		if err != nil {
			return fmt.Errorf("callback: %w", err)
		}
		if !keepGoing {
			return nil
		}
	}
}
