/*
Package flattree provides an incremental hierarchical index: a tree
of uniquely-keyed nodes that is built from flat parent-pointer
records (FlatRecord) arriving in any order, and that stays cheap to
query while it is restructured.

Uses

- Category trees, org charts, nested menus, or any hierarchy that is
stored or transmitted as (key, parentKey, value) rows

- Ingesting such rows from a stream where children may show up
before their parents

- Moving, cutting and grafting whole subtrees without rebuilding


How it works

Every node keeps a membership cache: the set of keys present in its
subtree. Searches (FindByKey, TryAppend) skip any subtree whose
cache lacks the key they are looking for, so a lookup only descends
along the path that actually leads to the target.

Nodes live in a single arena owned by the Tree. A node refers to its
parent and children by arena index, so every mutation propagates
cache changes with an explicit walk up the parent indices, from the
point of change to the root. Node values returned to callers are
lightweight handles into that arena; a handle whose node has been
removed or cut away reports Valid() == false.

Out-of-order input is handled by the Builder, which buffers records
whose parent has not arrived yet and retries them whenever something
new is placed. Records whose parent never arrives stay pending and
can be inspected with Pending().

Export is the inverse: ToFlat() yields every record of a subtree,
children before their parents, and feeding that stream back into a
Builder reproduces the tree. MakeRoot and LoadTree persist exactly
that flat stream in content-addressed chunks, in anything that
implements Persist (a map, a directory, an S3 bucket).

Concurrency

A Tree has a single writer. Read-only operations (FindByKey,
VisitForward, ExtractForward, ToFlat) may run concurrently with each
other but never with a mutation; callers sharing a tree between
goroutines must serialize access themselves, e.g. with a sync.RWMutex
around the whole tree.
*/
package flattree
