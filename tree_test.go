package flattree

import (
	"maps"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseRecords = []FlatRecord[string, string]{
	Record("n1", "n0", "one"),
	Record("n2", "n1", "two"),
	Record("n3", "n2", "three"),
	Record("n4", "n0", "four"),
}

func newBaseTree(t *testing.T) *Tree[string, string] {
	tree := New[string, string]("n0", "zero", nil)
	for _, rec := range baseRecords {
		require.True(t, tree.Add(rec), "add %v", rec)
	}
	require.NoError(t, tree.Verify())
	return tree
}

func childKeys[K comparable, V any](n *Node[K, V]) []K {
	keys := []K{}
	for _, c := range n.Children() {
		keys = append(keys, c.Key())
	}
	return keys
}

func mustFind[K comparable, V any](t *testing.T, tree *Tree[K, V], key K) *Node[K, V] {
	t.Helper()
	n, ok := tree.FindByKey(key)
	require.True(t, ok, "find %v", key)
	return n
}

func membership[K comparable, V any](tree *Tree[K, V]) map[K]map[K]struct{} {
	out := map[K]map[K]struct{}{}
	for id := range tree.slots {
		if tree.slots[id].used {
			out[tree.slots[id].key] = maps.Clone(tree.slots[id].members)
		}
	}
	return out
}

func TestAddNodes(t *testing.T) {
	t.Parallel()
	tree := newBaseTree(t)
	root := tree.Root()
	assert.Equal(t, []string{"n1", "n4"}, childKeys(root))
	assert.Equal(t, []string{"n2"}, childKeys(mustFind(t, tree, "n1")))
	assert.Equal(t, []string{"n3"}, childKeys(mustFind(t, tree, "n2")))
	assert.True(t, mustFind(t, tree, "n3").IsLeaf())
	assert.True(t, mustFind(t, tree, "n4").IsLeaf())
	assert.Equal(t, 5, tree.Size())
	assert.Equal(t, "n0\n  n1\n    n2\n      n3\n  n4\n", tree.String())
}

func TestDoNotAddNodesWhenThereIsNoParent(t *testing.T) {
	t.Parallel()
	tree := New[string, string]("n0", "", nil)
	assert.True(t, tree.Add(Record("n1", "n0", "")))
	assert.True(t, tree.Add(Record("n2", "n1", "")))
	before := membership(tree)
	assert.False(t, tree.Add(Record("n3", "n4", "")))
	assert.Equal(t, before, membership(tree))
	assert.True(t, tree.Add(Record("n4", "n0", "")))

	assert.Equal(t, []string{"n1", "n4"}, childKeys(tree.Root()))
	assert.Equal(t, []string{"n2"}, childKeys(mustFind(t, tree, "n1")))
	assert.True(t, mustFind(t, tree, "n2").IsLeaf())
	assert.False(t, tree.Contains("n3"))
	require.NoError(t, tree.Verify())
}

func TestRejectDuplicateKey(t *testing.T) {
	t.Parallel()
	tree := newBaseTree(t)
	before := membership(tree)
	assert.False(t, tree.Add(Record("n3", "n4", "again")))
	assert.False(t, tree.Add(Record("n0", "n4", "root again")))
	assert.False(t, tree.Add(Record("n5", "n5", "self")))
	assert.Equal(t, before, membership(tree))
	assert.Equal(t, 5, tree.Size())
	assert.Equal(t, "three", mustFind(t, tree, "n3").Value())
}

func TestNodeTryAppendSearchesOnlyItsSubtree(t *testing.T) {
	t.Parallel()
	tree := newBaseTree(t)
	n1 := mustFind(t, tree, "n1")
	assert.False(t, n1.TryAppend(Record("n5", "n4", "")), "n4 is not under n1")
	assert.True(t, n1.TryAppend(Record("n5", "n3", "five")))
	// ancestors above the node TryAppend was called on see the new key too
	assert.True(t, tree.Root().Contains("n5"))
	assert.True(t, n1.Contains("n5"))
	assert.False(t, mustFind(t, tree, "n4").Contains("n5"))
	require.NoError(t, tree.Verify())
}

func TestFindNodeByKey(t *testing.T) {
	t.Parallel()
	tree := newBaseTree(t)
	n2 := mustFind(t, tree, "n2")
	assert.Equal(t, "n2", n2.Key())
	assert.Equal(t, "two", n2.Value())
	assert.Equal(t, 1, n2.ChildCount())
	parent, ok := n2.Parent()
	require.True(t, ok)
	assert.Equal(t, "n1", parent.Key())

	_, ok = tree.FindByKey("n9")
	assert.False(t, ok)
	_, ok = mustFind(t, tree, "n4").FindByKey("n3")
	assert.False(t, ok)
	n3, ok := mustFind(t, tree, "n1").FindByKey("n3")
	require.True(t, ok)
	assert.Equal(t, "three", n3.Value())
	_, ok = tree.Root().Parent()
	assert.False(t, ok)
}

func TestSetValue(t *testing.T) {
	t.Parallel()
	tree := newBaseTree(t)
	n4 := mustFind(t, tree, "n4")
	assert.True(t, n4.SetValue("FOUR"))
	assert.Equal(t, "FOUR", mustFind(t, tree, "n4").Value())
}

func TestClearTargetNode(t *testing.T) {
	t.Parallel()
	var released []string
	tree := New[string, string]("n0", "", &Options[string, string]{
		Release: func(key string, _ string) { released = append(released, key) },
	})
	for _, rec := range baseRecords {
		require.True(t, tree.Add(rec))
	}
	n3 := mustFind(t, tree, "n3")
	require.True(t, tree.Clear("n1"))
	assert.Empty(t, mustFind(t, tree, "n1").Children())
	assert.Equal(t, []string{"n3", "n2"}, released)
	assert.False(t, n3.Valid())
	assert.False(t, tree.Contains("n2"))
	assert.Equal(t, 3, tree.Size())
	require.NoError(t, tree.Verify())

	assert.False(t, tree.Clear("n9"))
	require.True(t, tree.Root().Clear())
	assert.Equal(t, 1, tree.Size())
	assert.Equal(t, []string{"n3", "n2", "n1", "n4"}, released)
	require.NoError(t, tree.Verify())
}

func TestRemoveTargetNode(t *testing.T) {
	t.Parallel()
	var released []string
	tree := New[string, string]("n0", "", &Options[string, string]{
		Release: func(key string, _ string) { released = append(released, key) },
	})
	for _, rec := range baseRecords {
		require.True(t, tree.Add(rec))
	}
	n2 := mustFind(t, tree, "n2")
	require.True(t, tree.TryRemove("n2"))
	assert.False(t, n2.Valid())
	assert.Equal(t, "", n2.Key())
	assert.Empty(t, mustFind(t, tree, "n1").Children())
	assert.Equal(t, []string{"n3", "n2"}, released)
	assert.False(t, tree.Contains("n3"))
	assert.False(t, mustFind(t, tree, "n1").Contains("n3"))
	assert.Equal(t, 3, tree.Size())
	require.NoError(t, tree.Verify())

	assert.False(t, tree.TryRemove("n2"))
	assert.False(t, tree.TryRemove("n0"), "the root stays")

	// freed slots are reused without resurrecting old handles
	require.True(t, tree.Add(Record("n5", "n4", "")))
	assert.False(t, n2.Valid())
	require.NoError(t, tree.Verify())
}

func TestMoveTargetNode(t *testing.T) {
	t.Parallel()
	tree := newBaseTree(t)
	n2 := mustFind(t, tree, "n2")
	require.True(t, tree.TryMove("n2", "n4"))

	assert.Empty(t, mustFind(t, tree, "n1").Children())
	assert.Equal(t, []string{"n2"}, childKeys(mustFind(t, tree, "n4")))
	assert.Equal(t, []string{"n3"}, childKeys(mustFind(t, tree, "n2")))
	assert.True(t, n2.Valid(), "moving keeps node identity")
	assert.Equal(t, 5, tree.Size())
	assert.False(t, mustFind(t, tree, "n1").Contains("n3"))
	assert.True(t, mustFind(t, tree, "n4").Contains("n3"))
	require.NoError(t, tree.Verify())
}

func TestFindDeepNodeAfterMove(t *testing.T) {
	t.Parallel()
	tree := newBaseTree(t)
	require.True(t, tree.TryMove("n2", "n4"))
	n3 := mustFind(t, tree, "n3")
	assert.Equal(t, "n3", n3.Key())
	parent, ok := n3.Parent()
	require.True(t, ok)
	assert.Equal(t, "n2", parent.Key())
}

func TestMoveFailsCleanly(t *testing.T) {
	t.Parallel()
	tree := newBaseTree(t)
	before := membership(tree)
	shape := tree.String()
	assert.False(t, tree.TryMove("n9", "n4"), "missing key")
	assert.False(t, tree.TryMove("n2", "n9"), "missing parent")
	assert.False(t, tree.TryMove("n1", "n3"), "into own subtree")
	assert.False(t, tree.TryMove("n1", "n1"), "onto itself")
	assert.False(t, tree.TryMove("n0", "n4"), "root")
	assert.Equal(t, before, membership(tree))
	assert.Equal(t, shape, tree.String())
	assert.Equal(t, 5, tree.Size())
}

func TestMoveUnderSameParentGoesLast(t *testing.T) {
	t.Parallel()
	tree := newBaseTree(t)
	require.True(t, tree.TryMove("n1", "n0"))
	assert.Equal(t, []string{"n4", "n1"}, childKeys(tree.Root()))
	require.NoError(t, tree.Verify())
}

func TestCutAndGraft(t *testing.T) {
	t.Parallel()
	var released []string
	tree := New[string, string]("n0", "", &Options[string, string]{
		Release: func(key string, _ string) { released = append(released, key) },
	})
	for _, rec := range baseRecords {
		require.True(t, tree.Add(rec))
	}
	oldN2 := mustFind(t, tree, "n2")
	sub, ok := tree.TryCut("n2")
	require.True(t, ok)
	assert.Empty(t, released, "cut does not release")
	assert.False(t, oldN2.Valid())
	assert.Equal(t, 3, tree.Size())
	assert.False(t, tree.Contains("n3"))
	require.NoError(t, tree.Verify())

	assert.Equal(t, "n2", sub.Root().Key())
	assert.Equal(t, "two", sub.Root().Value())
	_, ok = sub.Root().Parent()
	assert.False(t, ok)
	assert.Equal(t, 2, sub.Size())
	assert.Equal(t, "n2\n  n3\n", sub.String())
	require.NoError(t, sub.Verify())
	subN3 := mustFind(t, sub, "n3")

	_, ok = tree.TryCut("n2")
	assert.False(t, ok)
	_, ok = tree.TryCut("n0")
	assert.False(t, ok)

	assert.False(t, tree.Graft(sub, "n9"))
	require.True(t, tree.Graft(sub, "n4"))
	assert.False(t, subN3.Valid())
	assert.Nil(t, sub.Root())
	assert.Equal(t, 0, sub.Size())
	require.NoError(t, sub.Verify())
	assert.Equal(t, 5, tree.Size())
	assert.Equal(t, "n0\n  n1\n  n4\n    n2\n      n3\n", tree.String())
	assert.Equal(t, "three", mustFind(t, tree, "n3").Value())
	require.NoError(t, tree.Verify())
	assert.False(t, tree.Graft(sub, "n4"), "already handed over")
}

func TestGraftRejectsCollisions(t *testing.T) {
	t.Parallel()
	tree := newBaseTree(t)
	other := New[string, string]("n9", "", nil)
	require.True(t, other.Add(Record("n3", "n9", "")))
	assert.False(t, tree.Graft(other, "n4"))
	assert.Equal(t, 2, other.Size())
	require.NoError(t, tree.Verify())
	require.NoError(t, other.Verify())
	assert.False(t, tree.Graft(tree, "n4"))
}

func TestTraversalOrder(t *testing.T) {
	t.Parallel()
	tree := newBaseTree(t)
	var forward, backward []string
	tree.VisitForward(func(n *Node[string, string]) { forward = append(forward, n.Key()) })
	tree.VisitBackward(func(n *Node[string, string]) { backward = append(backward, n.Key()) })
	assert.Equal(t, []string{"n0", "n1", "n2", "n3", "n4"}, forward)
	assert.Equal(t, []string{"n3", "n2", "n1", "n4", "n0"}, backward)

	key := func(n *Node[string, string]) string { return n.Key() }
	seq := ExtractForward(tree.Root(), key)
	assert.Equal(t, forward, slices.Collect(seq))
	assert.Equal(t, forward, slices.Collect(seq), "sequences restart")
	assert.Equal(t, backward, slices.Collect(ExtractBackward(tree.Root(), key)))

	var firstTwo []string
	for k := range seq {
		firstTwo = append(firstTwo, k)
		if len(firstTwo) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"n0", "n1"}, firstTwo)
}

func TestToFlat(t *testing.T) {
	t.Parallel()
	tree := newBaseTree(t)
	assert.Equal(t, []FlatRecord[string, string]{
		Record("n3", "n2", "three"),
		Record("n2", "n1", "two"),
		Record("n1", "n0", "one"),
		Record("n4", "n0", "four"),
	}, slices.Collect(tree.ToFlat()))
	assert.Equal(t, []FlatRecord[string, string]{
		Record("n3", "n2", "three"),
	}, slices.Collect(mustFind(t, tree, "n2").ToFlat()))
	assert.Empty(t, slices.Collect(mustFind(t, tree, "n4").ToFlat()))
}

func TestFindDeepest(t *testing.T) {
	t.Parallel()
	tree := New[string, int]("root", 10, nil)
	require.True(t, tree.Add(Record("a", "root", 5)))
	require.True(t, tree.Add(Record("a1", "a", 1)))
	require.True(t, tree.Add(Record("b", "root", 7)))
	require.True(t, tree.Add(Record("b1", "b", 3)))
	require.True(t, tree.Add(Record("b2", "b", 9)))

	atLeast := func(min int) func(*Node[string, int]) bool {
		return func(n *Node[string, int]) bool { return n.Value() >= min }
	}
	n, ok := tree.FindDeepest(atLeast(0))
	require.True(t, ok)
	assert.Equal(t, "a1", n.Key())

	n, ok = tree.FindDeepest(atLeast(3))
	require.True(t, ok)
	assert.Equal(t, "b1", n.Key(), "a qualifies but is not a leaf")

	_, ok = tree.FindDeepest(atLeast(8))
	assert.False(t, ok, "b2 matches but its parent b does not")

	_, ok = tree.FindDeepest(atLeast(11))
	assert.False(t, ok)

	n, ok = mustFind(t, tree, "b").FindDeepest(func(n *Node[string, int]) bool { return n.Value() != 3 })
	require.True(t, ok)
	assert.Equal(t, "b2", n.Key())
}

func TestVerifyDetectsStaleCache(t *testing.T) {
	t.Parallel()
	tree := newBaseTree(t)
	n1 := mustFind(t, tree, "n1")
	delete(tree.slots[n1.id].members, "n3")
	assert.Error(t, tree.Verify())
}

func TestInvalidHandle(t *testing.T) {
	t.Parallel()
	var n *Node[string, string]
	assert.False(t, n.Valid())
	assert.Nil(t, n.Children())
	assert.False(t, n.TryAppend(Record("a", "b", "")))
	_, ok := n.FindByKey("a")
	assert.False(t, ok)
	assert.Empty(t, slices.Collect(n.ToFlat()))
	assert.Empty(t, slices.Collect(ExtractForward(n, func(n *Node[string, string]) string { return n.Key() })))
}
