package flattree

import (
	"iter"
	"slices"
)

// Builder grows a tree from records that may arrive in any order. Records
// whose parent is not in the tree yet are buffered and retried whenever
// another record is placed.
type Builder[K comparable, V any] struct {
	tree    *Tree[K, V]
	pending []FlatRecord[K, V]
}

// NewBuilder returns a Builder that places records into tree.
func NewBuilder[K comparable, V any](tree *Tree[K, V]) *Builder[K, V] {
	return &Builder[K, V]{tree: tree}
}

// Tree returns the tree being built.
func (b *Builder[K, V]) Tree() *Tree[K, V] {
	return b.tree
}

// Ingest places rec, or buffers it if its parent is unknown, and then
// retries the buffer. It returns how many records were placed as a result,
// rec and any buffered descendants included.
func (b *Builder[K, V]) Ingest(rec FlatRecord[K, V]) int {
	placed := 0
	if b.tree.Add(rec) {
		placed++
	} else {
		b.pending = append(b.pending, rec)
	}
	return placed + b.Drain()
}

// IngestAll places a batch of records, draining the buffer once at the end.
func (b *Builder[K, V]) IngestAll(records iter.Seq[FlatRecord[K, V]]) int {
	placed := 0
	for rec := range records {
		if b.tree.Add(rec) {
			placed++
		} else {
			b.pending = append(b.pending, rec)
		}
	}
	return placed + b.Drain()
}

// Drain retries buffered records until a full pass places nothing, and
// returns how many were placed.
func (b *Builder[K, V]) Drain() int {
	placed := 0
	passes := 0
	for len(b.pending) > 0 {
		passes++
		kept := b.pending[:0]
		progress := 0
		for _, rec := range b.pending {
			if b.tree.Add(rec) {
				progress++
			} else {
				kept = append(kept, rec)
			}
		}
		clear(b.pending[len(kept):])
		b.pending = kept
		placed += progress
		if progress == 0 {
			break
		}
	}
	if passes > 0 {
		b.tree.logger.Debug("drained builder buffer", "placed", placed, "pending", len(b.pending), "passes", passes)
	}
	return placed
}

// Pending returns a copy of the records still waiting for their parent.
func (b *Builder[K, V]) Pending() []FlatRecord[K, V] {
	return slices.Clone(b.pending)
}

func (b *Builder[K, V]) PendingCount() int {
	return len(b.pending)
}

// IsEmpty reports whether every ingested record has been placed.
func (b *Builder[K, V]) IsEmpty() bool {
	return len(b.pending) == 0
}
