package flattree

import (
	"fmt"
	"iter"
	"log/slog"
	"strings"
)

// noParent marks a root slot, and is returned by searches that find nothing.
const noParent = -1

// Options controls optional behavior of a Tree.
type Options[K comparable, V any] struct {
	// Release is invoked for every node dropped by TryRemove or Clear,
	// children before their parent, e.g. to close resources held in values.
	// Nodes that are cut or moved are not released.
	Release func(key K, value V)

	// Logger receives debug-level traces of structural changes. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

type slot[K comparable, V any] struct {
	key      K
	value    V
	parent   int
	children []int
	// members holds every key in this slot's subtree, its own included.
	members map[K]struct{}
	gen     uint64
	used    bool
}

// Tree owns a hierarchy of uniquely-keyed nodes. All nodes are stored in one
// arena; parents and children refer to each other by index.
type Tree[K comparable, V any] struct {
	slots    []slot[K, V]
	freeList []int
	root     int
	size     int
	release  func(K, V)
	logger   *slog.Logger
}

// New returns a tree containing only a root node with the given key and value.
func New[K comparable, V any](rootKey K, rootValue V, options *Options[K, V]) *Tree[K, V] {
	t := newEmpty[K, V](options)
	t.root = t.alloc(rootKey, rootValue)
	t.size = 1
	return t
}

func newEmpty[K comparable, V any](options *Options[K, V]) *Tree[K, V] {
	t := &Tree[K, V]{root: noParent}
	if options != nil {
		t.release = options.Release
		t.logger = options.Logger
	}
	if t.logger == nil {
		t.logger = slog.Default().With("system", "flattree")
	}
	return t
}

func (t *Tree[K, V]) alloc(key K, value V) int {
	var id int
	if n := len(t.freeList); n > 0 {
		id = t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
	} else {
		id = len(t.slots)
		t.slots = append(t.slots, slot[K, V]{})
	}
	s := &t.slots[id]
	s.key = key
	s.value = value
	s.parent = noParent
	s.children = nil
	s.members = map[K]struct{}{key: {}}
	s.used = true
	return id
}

// releaseSlot returns a slot to the free list. Handles to it become invalid.
func (t *Tree[K, V]) releaseSlot(id int) {
	var (
		zeroKey   K
		zeroValue V
	)
	s := &t.slots[id]
	s.key = zeroKey
	s.value = zeroValue
	s.parent = noParent
	s.children = nil
	s.members = nil
	s.used = false
	s.gen++
	t.freeList = append(t.freeList, id)
}

func (t *Tree[K, V]) handle(id int) *Node[K, V] {
	return &Node[K, V]{tree: t, id: id, gen: t.slots[id].gen}
}

// find searches the subtree at id, skipping every subtree whose membership
// cache lacks the key.
func (t *Tree[K, V]) find(id int, key K) int {
	s := &t.slots[id]
	if s.key == key {
		return id
	}
	if _, ok := s.members[key]; !ok {
		return noParent
	}
	for _, c := range s.children {
		if found := t.find(c, key); found != noParent {
			return found
		}
	}
	return noParent
}

// tryAppend places rec under the node keyed rec.ParentKey within the
// subtree at id.
func (t *Tree[K, V]) tryAppend(id int, rec FlatRecord[K, V]) bool {
	if _, dup := t.slots[t.root].members[rec.Key]; dup {
		return false
	}
	parent := t.find(id, rec.ParentKey)
	if parent == noParent {
		return false
	}
	child := t.alloc(rec.Key, rec.Value)
	t.slots[child].parent = parent
	t.slots[parent].children = append(t.slots[parent].children, child)
	t.addMember(parent, rec.Key)
	t.size++
	return true
}

func (t *Tree[K, V]) addMember(from int, key K) {
	for id := from; id != noParent; id = t.slots[id].parent {
		t.slots[id].members[key] = struct{}{}
	}
}

func (t *Tree[K, V]) addMembers(from int, keys map[K]struct{}) {
	for id := from; id != noParent; id = t.slots[id].parent {
		members := t.slots[id].members
		for k := range keys {
			members[k] = struct{}{}
		}
	}
}

func (t *Tree[K, V]) removeMembers(from int, keys map[K]struct{}) {
	for id := from; id != noParent; id = t.slots[id].parent {
		members := t.slots[id].members
		for k := range keys {
			delete(members, k)
		}
	}
}

// attach links child under parent and adds child's keys to every ancestor.
func (t *Tree[K, V]) attach(parent, child int) {
	t.slots[parent].children = append(t.slots[parent].children, child)
	t.slots[child].parent = parent
	t.addMembers(parent, t.slots[child].members)
}

// detach unlinks id from its parent and removes its keys from every former
// ancestor. The subtree itself is left intact.
func (t *Tree[K, V]) detach(id int) {
	parent := t.slots[id].parent
	if parent == noParent {
		return
	}
	siblings := t.slots[parent].children
	for i, c := range siblings {
		if c == id {
			t.slots[parent].children = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	t.slots[id].parent = noParent
	t.removeMembers(parent, t.slots[id].members)
}

func (t *Tree[K, V]) visitForward(id int, fn func(int)) {
	fn(id)
	for _, c := range t.slots[id].children {
		t.visitForward(c, fn)
	}
}

func (t *Tree[K, V]) visitBackward(id int, fn func(int)) {
	for _, c := range t.slots[id].children {
		t.visitBackward(c, fn)
	}
	fn(id)
}

// walkForward is visitForward that stops as soon as fn returns false.
func (t *Tree[K, V]) walkForward(id int, fn func(int) bool) bool {
	if !fn(id) {
		return false
	}
	for _, c := range t.slots[id].children {
		if !t.walkForward(c, fn) {
			return false
		}
	}
	return true
}

func (t *Tree[K, V]) walkBackward(id int, fn func(int) bool) bool {
	for _, c := range t.slots[id].children {
		if !t.walkBackward(c, fn) {
			return false
		}
	}
	return fn(id)
}

func (t *Tree[K, V]) postOrder(id int) []int {
	ids := make([]int, 0, len(t.slots[id].members))
	t.visitBackward(id, func(id int) {
		ids = append(ids, id)
	})
	return ids
}

// flat yields the records of every descendant of id, each child's subtree
// before the child itself.
func (t *Tree[K, V]) flat(id int, yield func(FlatRecord[K, V]) bool) bool {
	parentKey := t.slots[id].key
	for _, c := range t.slots[id].children {
		if !t.flat(c, yield) {
			return false
		}
		if !yield(FlatRecord[K, V]{Key: t.slots[c].key, ParentKey: parentKey, Value: t.slots[c].value}) {
			return false
		}
	}
	return true
}

func (t *Tree[K, V]) findDeepest(id int, pred func(*Node[K, V]) bool) int {
	if !pred(t.handle(id)) {
		return noParent
	}
	children := t.slots[id].children
	if len(children) == 0 {
		return id
	}
	for _, c := range children {
		if found := t.findDeepest(c, pred); found != noParent {
			return found
		}
	}
	return noParent
}

// Root returns the root node, or nil for a tree whose contents were handed
// over by Graft.
func (t *Tree[K, V]) Root() *Node[K, V] {
	if t.root == noParent {
		return nil
	}
	return t.handle(t.root)
}

// Size returns the number of nodes in the tree, root included.
func (t *Tree[K, V]) Size() int {
	return t.size
}

// Contains reports whether any node in the tree has the given key.
func (t *Tree[K, V]) Contains(key K) bool {
	if t.root == noParent {
		return false
	}
	_, ok := t.slots[t.root].members[key]
	return ok
}

// Add places rec under its parent anywhere in the tree. It returns false,
// without changing anything, if the parent is not present or the key
// already is.
func (t *Tree[K, V]) Add(rec FlatRecord[K, V]) bool {
	if t.root == noParent {
		return false
	}
	return t.tryAppend(t.root, rec)
}

// FindByKey returns the node with the given key.
func (t *Tree[K, V]) FindByKey(key K) (*Node[K, V], bool) {
	if t.root == noParent {
		return nil, false
	}
	id := t.find(t.root, key)
	if id == noParent {
		return nil, false
	}
	return t.handle(id), true
}

// VisitForward calls fn for every node, parents before their children.
func (t *Tree[K, V]) VisitForward(fn func(*Node[K, V])) {
	if root := t.Root(); root != nil {
		root.VisitForward(fn)
	}
}

// VisitBackward calls fn for every node, children before their parent.
func (t *Tree[K, V]) VisitBackward(fn func(*Node[K, V])) {
	if root := t.Root(); root != nil {
		root.VisitBackward(fn)
	}
}

// ToFlat yields a record for every node except the root.
func (t *Tree[K, V]) ToFlat() iter.Seq[FlatRecord[K, V]] {
	return func(yield func(FlatRecord[K, V]) bool) {
		if t.root != noParent {
			t.flat(t.root, yield)
		}
	}
}

// FindDeepest returns the first leaf, in depth-first order, for which pred
// holds on it and on every node along the path from the root.
func (t *Tree[K, V]) FindDeepest(pred func(*Node[K, V]) bool) (*Node[K, V], bool) {
	if root := t.Root(); root != nil {
		return root.FindDeepest(pred)
	}
	return nil, false
}

// Verify checks the structural invariants of the tree: parent and child links
// agree, keys are unique, and every membership cache holds exactly the keys
// of its subtree.
func (t *Tree[K, V]) Verify() error {
	if t.root == noParent {
		if t.size != 0 {
			return fmt.Errorf("empty tree reports size %d", t.size)
		}
		return nil
	}
	if t.slots[t.root].parent != noParent {
		return fmt.Errorf("root %v has parent slot %d", t.slots[t.root].key, t.slots[t.root].parent)
	}
	seen := map[K]int{}
	var walk func(id int) (map[K]struct{}, error)
	walk = func(id int) (map[K]struct{}, error) {
		s := &t.slots[id]
		if !s.used {
			return nil, fmt.Errorf("slot %d is linked but free", id)
		}
		if prev, dup := seen[s.key]; dup {
			return nil, fmt.Errorf("key %v appears in slots %d and %d", s.key, prev, id)
		}
		seen[s.key] = id
		keys := map[K]struct{}{s.key: {}}
		for _, c := range s.children {
			if t.slots[c].parent != id {
				return nil, fmt.Errorf("child %v of %v points at parent slot %d", t.slots[c].key, s.key, t.slots[c].parent)
			}
			sub, err := walk(c)
			if err != nil {
				return nil, err
			}
			for k := range sub {
				keys[k] = struct{}{}
			}
		}
		if len(keys) != len(s.members) {
			return nil, fmt.Errorf("membership cache of %v has %d keys, subtree has %d", s.key, len(s.members), len(keys))
		}
		for k := range keys {
			if _, ok := s.members[k]; !ok {
				return nil, fmt.Errorf("membership cache of %v lacks %v", s.key, k)
			}
		}
		return keys, nil
	}
	if _, err := walk(t.root); err != nil {
		return err
	}
	if len(seen) != t.size {
		return fmt.Errorf("size is %d but %d nodes are reachable", t.size, len(seen))
	}
	if used := len(t.slots) - len(t.freeList); used != t.size {
		return fmt.Errorf("size is %d but %d slots are in use", t.size, used)
	}
	return nil
}

func (t *Tree[K, V]) String() string {
	if t.root == noParent {
		return "<empty>\n"
	}
	var sb strings.Builder
	var dump func(id int, indent string)
	dump = func(id int, indent string) {
		fmt.Fprintf(&sb, "%s%v\n", indent, t.slots[id].key)
		for _, c := range t.slots[id].children {
			dump(c, indent+"  ")
		}
	}
	dump(t.root, "")
	return sb.String()
}
