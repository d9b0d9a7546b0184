package flattree

// TryRemove drops the node with the given key together with its whole
// subtree. Options.Release sees every dropped node, children before their
// parent. The root cannot be removed; use Clear to empty the tree.
func (t *Tree[K, V]) TryRemove(key K) bool {
	if t.root == noParent {
		return false
	}
	id := t.find(t.root, key)
	if id == noParent || id == t.root {
		return false
	}
	t.detach(id)
	n := t.drop(id)
	t.logger.Debug("removed subtree", "key", key, "nodes", n)
	return true
}

// drop releases an already-detached subtree bottom-up and returns how many
// nodes it held.
func (t *Tree[K, V]) drop(id int) int {
	ids := t.postOrder(id)
	for _, id := range ids {
		if t.release != nil {
			t.release(t.slots[id].key, t.slots[id].value)
		}
		t.releaseSlot(id)
	}
	t.size -= len(ids)
	return len(ids)
}

// TryCut detaches the node with the given key and returns its subtree as a
// new, independent tree rooted at that node. The cut nodes keep their keys,
// values, and child order; handles to them from this tree become invalid.
func (t *Tree[K, V]) TryCut(key K) (*Tree[K, V], bool) {
	if t.root == noParent {
		return nil, false
	}
	id := t.find(t.root, key)
	if id == noParent || id == t.root {
		return nil, false
	}
	t.detach(id)
	sub := newEmpty[K, V](&Options[K, V]{Release: t.release, Logger: t.logger})
	sub.root = sub.copyFrom(t, id, noParent)
	for _, old := range t.postOrder(id) {
		t.releaseSlot(old)
	}
	t.size -= sub.size
	t.logger.Debug("cut subtree", "key", key, "nodes", sub.size)
	return sub, true
}

// copyFrom copies the subtree at srcID of src into t under parent, without
// touching the caches of parent's ancestors. Membership sets are taken over
// from src, which must release the copied slots afterwards.
func (t *Tree[K, V]) copyFrom(src *Tree[K, V], srcID int, parent int) int {
	id := t.alloc(src.slots[srcID].key, src.slots[srcID].value)
	t.size++
	if parent != noParent {
		t.slots[id].parent = parent
		t.slots[parent].children = append(t.slots[parent].children, id)
	}
	for _, c := range src.slots[srcID].children {
		t.copyFrom(src, c, id)
	}
	t.slots[id].members = src.slots[srcID].members
	src.slots[srcID].members = nil
	return id
}

// TryMove makes the node with the given key the last child of the node
// keyed newParentKey, carrying its subtree along. It changes nothing and
// returns false if either key is missing, if key is the root, or if the new
// parent lies inside the subtree being moved.
func (t *Tree[K, V]) TryMove(key, newParentKey K) bool {
	if t.root == noParent {
		return false
	}
	newParent := t.find(t.root, newParentKey)
	if newParent == noParent {
		return false
	}
	id := t.find(t.root, key)
	if id == noParent || id == t.root {
		return false
	}
	if _, inside := t.slots[id].members[newParentKey]; inside {
		return false
	}
	t.detach(id)
	t.attach(newParent, id)
	t.logger.Debug("moved subtree", "key", key, "parent", newParentKey)
	return true
}

// Graft attaches the tree sub, typically the result of TryCut, as a child of
// the node keyed parentKey. It fails if the parent is missing or any key of
// sub is already present. On success sub is left empty and its handles are
// no longer valid.
func (t *Tree[K, V]) Graft(sub *Tree[K, V], parentKey K) bool {
	if sub == nil || sub == t || sub.root == noParent || t.root == noParent {
		return false
	}
	parent := t.find(t.root, parentKey)
	if parent == noParent {
		return false
	}
	present := t.slots[t.root].members
	for k := range sub.slots[sub.root].members {
		if _, dup := present[k]; dup {
			return false
		}
	}
	rootKey := sub.slots[sub.root].key
	id := t.copyFrom(sub, sub.root, noParent)
	t.attach(parent, id)
	n := sub.size
	sub.reset()
	t.logger.Debug("grafted subtree", "key", rootKey, "parent", parentKey, "nodes", n)
	return true
}

// reset empties the tree. Every slot generation moves on, so outstanding
// handles become invalid.
func (t *Tree[K, V]) reset() {
	for id := range t.slots {
		if t.slots[id].used {
			t.releaseSlot(id)
		}
	}
	t.root = noParent
	t.size = 0
}

// Clear drops every descendant of the node with the given key, releasing
// them bottom-up. Clearing the root's key leaves a tree of one node.
func (t *Tree[K, V]) Clear(key K) bool {
	if t.root == noParent {
		return false
	}
	id := t.find(t.root, key)
	if id == noParent {
		return false
	}
	t.clear(id)
	return true
}

func (t *Tree[K, V]) clear(id int) {
	children := append([]int(nil), t.slots[id].children...)
	n := 0
	for _, c := range children {
		t.detach(c)
		n += t.drop(c)
	}
	t.logger.Debug("cleared node", "key", t.slots[id].key, "nodes", n)
}
