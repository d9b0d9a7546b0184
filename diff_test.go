package flattree

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectChanges(t *testing.T, newTree, oldTree *Tree[string, string]) []Change[string, string] {
	var changes []Change[string, string]
	err := newTree.DiffIter(oldTree, nil, func(change Change[string, string]) (bool, error) {
		changes = append(changes, change)
		return true, nil
	})
	require.NoError(t, err)
	return changes
}

func TestDiffIdentical(t *testing.T) {
	t.Parallel()
	assert.Empty(t, collectChanges(t, newBaseTree(t), newBaseTree(t)))
}

func TestDiffChanges(t *testing.T) {
	t.Parallel()
	oldTree := newBaseTree(t)
	newTree := newBaseTree(t)
	require.True(t, newTree.TryRemove("n3"))
	require.True(t, newTree.TryMove("n2", "n4"))
	require.True(t, mustFind(t, newTree, "n4").SetValue("FOUR"))
	require.True(t, newTree.Add(Record("n5", "n1", "five")))

	assert.Equal(t, []Change[string, string]{
		{Key: "n5", Added: true, NewParent: "n1", NewValue: "five"},
		{Key: "n4", ValueChanged: true, OldParent: "n0", NewParent: "n0", OldValue: "four", NewValue: "FOUR"},
		{Key: "n2", Moved: true, OldParent: "n1", NewParent: "n4", OldValue: "two", NewValue: "two"},
		{Key: "n3", Removed: true, OldParent: "n2", OldValue: "three"},
	}, collectChanges(t, newTree, oldTree))
}

func TestDiffAgainstNothing(t *testing.T) {
	t.Parallel()
	changes := collectChanges(t, newBaseTree(t), nil)
	require.Len(t, changes, 5)
	for _, c := range changes {
		assert.True(t, c.Added, "%v", c.Key)
	}
	assert.Equal(t, "n0", changes[0].Key)
}

func TestDiffCustomEquality(t *testing.T) {
	t.Parallel()
	oldTree := newBaseTree(t)
	newTree := newBaseTree(t)
	require.True(t, mustFind(t, newTree, "n1").SetValue("ONE"))
	var n int
	err := newTree.DiffIter(oldTree,
		func(a, b string) bool { return len(a) == len(b) },
		func(Change[string, string]) (bool, error) {
			n++
			return true, nil
		})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDiffStops(t *testing.T) {
	t.Parallel()
	oldTree := New[string, string]("n0", "zero", nil)
	newTree := newBaseTree(t)
	var n int
	err := newTree.DiffIter(oldTree, nil, func(Change[string, string]) (bool, error) {
		n++
		return n < 2, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	boom := errors.New("boom")
	err = oldTree.DiffIter(newTree, nil, func(Change[string, string]) (bool, error) {
		return false, boom
	})
	assert.ErrorIs(t, err, boom)
}
