package flattree

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/minio/blake2b-simd"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultChunkSize is how many records are stored per chunk.
	DefaultChunkSize = 256
	// DefaultStoreConcurrency bounds parallel Store and Load calls.
	DefaultStoreConcurrency = 40
)

// Persist is the interface for loading and storing serialized chunks. The
// given name identifies content which is immutable (never modified).
type Persist interface {
	// Store makes the given bytes accessible by the given name.
	Store(context.Context, string, []byte) error
	// Load retrieves the previously-stored bytes by the given name.
	Load(context.Context, string) ([]byte, error)
}

// RemoteConfig controls how trees are persisted and loaded.
type RemoteConfig struct {
	// StoreImmutablePartsWith is used to store and load chunks.
	StoreImmutablePartsWith Persist

	// Marshal function for keys and values, defaults to JSON.
	Marshal func(interface{}) ([]byte, error)

	// Unmarshal function for keys and values, defaults to JSON.
	Unmarshal func([]byte, interface{}) error

	// Format of the record chunks written by MakeRoot. LoadTree uses the
	// format recorded in the Root instead.
	Format Format

	// ChunkSize is the number of records per chunk; 0 means DefaultChunkSize.
	ChunkSize int

	// ChunkCache caches decoded chunks and may be shared across trees.
	ChunkCache ChunkCache

	// StoreConcurrency bounds parallel persistence calls; 0 means
	// DefaultStoreConcurrency.
	StoreConcurrency int

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

func (cfg *RemoteConfig) withDefaults() (RemoteConfig, error) {
	if cfg == nil || cfg.StoreImmutablePartsWith == nil {
		return RemoteConfig{}, ErrNoPersist
	}
	c := *cfg
	if c.Marshal == nil {
		c.Marshal = defaultMarshal
	}
	if c.Unmarshal == nil {
		c.Unmarshal = defaultUnmarshal
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.StoreConcurrency <= 0 {
		c.StoreConcurrency = DefaultStoreConcurrency
	}
	if c.Logger == nil {
		c.Logger = slog.Default().With("system", "flattree")
	}
	return c, nil
}

// Root identifies a saved version of a tree whose parts are accessible in
// the persistent store.
type Root struct {
	Link   string
	Size   uint64
	Format Format
}

type manifest struct {
	RootKey   []byte
	RootValue []byte
	Size      uint64
	Chunks    []string
}

func contentName(b []byte) string {
	hash := blake2b.Sum256(b)
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// preorderRecords lists every non-root record with parents ahead of their
// children, so that rebuilding never has to buffer.
func (t *Tree[K, V]) preorderRecords() []FlatRecord[K, V] {
	records := make([]FlatRecord[K, V], 0, t.size-1)
	t.visitForward(t.root, func(id int) {
		if id == t.root {
			return
		}
		parent := t.slots[id].parent
		records = append(records, FlatRecord[K, V]{Key: t.slots[id].key, ParentKey: t.slots[parent].key, Value: t.slots[id].value})
	})
	return records
}

// MakeRoot writes the tree's records to the persistent store as
// content-addressed chunks plus a manifest, and returns the Root naming
// the manifest. Chunks already in the ChunkCache are not stored again.
func (t *Tree[K, V]) MakeRoot(ctx context.Context, cfg *RemoteConfig) (*Root, error) {
	c, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	if t.root == noParent {
		return nil, errors.New("cannot save an empty tree")
	}
	records := t.preorderRecords()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.StoreConcurrency)
	var names []string
	stored := 0
	for start := 0; start < len(records); start += c.ChunkSize {
		chunk := slices.Clone(records[start:min(start+c.ChunkSize, len(records))])
		encoded, err := EncodeRecords(chunk, c.Format, c.Marshal)
		if err != nil {
			_ = g.Wait()
			return nil, fmt.Errorf("encode chunk %d: %w", len(names), err)
		}
		name := contentName(encoded)
		names = append(names, name)
		if c.ChunkCache != nil && c.ChunkCache.Contains(name) {
			continue
		}
		stored++
		g.Go(func() error {
			if err := c.StoreImmutablePartsWith.Store(gctx, name, encoded); err != nil {
				return fmt.Errorf("persist store %s: %w", name, err)
			}
			if c.ChunkCache != nil {
				c.ChunkCache.Add(name, chunk)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	m := manifest{Size: uint64(t.size), Chunks: names}
	if m.RootKey, err = c.Marshal(t.slots[t.root].key); err != nil {
		return nil, fmt.Errorf("marshal root key: %w", err)
	}
	if m.RootValue, err = c.Marshal(t.slots[t.root].value); err != nil {
		return nil, fmt.Errorf("marshal root value: %w", err)
	}
	encoded, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	link := contentName(encoded)
	if err := c.StoreImmutablePartsWith.Store(ctx, link, encoded); err != nil {
		return nil, fmt.Errorf("persist store manifest %s: %w", link, err)
	}
	c.Logger.Debug("saved tree", "link", link, "size", t.size, "chunks", len(names), "stored", stored, "format", c.Format)
	return &Root{Link: link, Size: m.Size, Format: c.Format}, nil
}

func loadVerified(ctx context.Context, p Persist, name string) ([]byte, error) {
	b, err := p.Load(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("persist load %s: %w", name, err)
	}
	if contentName(b) != name {
		return nil, fmt.Errorf("%w: %s does not match its content hash", ErrCorruptChunk, name)
	}
	return b, nil
}

// LoadTree loads a tree saved by MakeRoot, rebuilding it with a Builder.
func LoadTree[K comparable, V any](ctx context.Context, root *Root, cfg *RemoteConfig, options *Options[K, V]) (*Tree[K, V], error) {
	c, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	b, err := loadVerified(ctx, c.StoreImmutablePartsWith, root.Link)
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}
	var m manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("%w: manifest %s: %w", ErrCorruptChunk, root.Link, err)
	}
	if m.Size != root.Size {
		return nil, fmt.Errorf("%w: manifest size %d, root size %d", ErrCorruptChunk, m.Size, root.Size)
	}
	var (
		rootKey   K
		rootValue V
	)
	if err := c.Unmarshal(m.RootKey, &rootKey); err != nil {
		return nil, fmt.Errorf("unmarshal root key: %w", err)
	}
	if err := c.Unmarshal(m.RootValue, &rootValue); err != nil {
		return nil, fmt.Errorf("unmarshal root value: %w", err)
	}

	chunks := make([][]FlatRecord[K, V], len(m.Chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.StoreConcurrency)
	for i, name := range m.Chunks {
		if c.ChunkCache != nil {
			if cached, ok := c.ChunkCache.Get(name); ok {
				if records, ok := cached.([]FlatRecord[K, V]); ok {
					chunks[i] = records
					continue
				}
			}
		}
		g.Go(func() error {
			b, err := loadVerified(gctx, c.StoreImmutablePartsWith, name)
			if err != nil {
				return err
			}
			records, err := DecodeRecords[K, V](b, root.Format, c.Unmarshal)
			if err != nil {
				return fmt.Errorf("decode chunk %s: %w", name, err)
			}
			chunks[i] = records
			if c.ChunkCache != nil {
				c.ChunkCache.Add(name, records)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if options == nil {
		options = &Options[K, V]{}
	}
	if options.Logger == nil {
		o := *options
		o.Logger = c.Logger
		options = &o
	}
	t := New(rootKey, rootValue, options)
	builder := NewBuilder(t)
	builder.IngestAll(func(yield func(FlatRecord[K, V]) bool) {
		for _, chunk := range chunks {
			for _, rec := range chunk {
				if !yield(rec) {
					return
				}
			}
		}
	})
	if !builder.IsEmpty() {
		return nil, fmt.Errorf("%w: %d records in %s", ErrOrphanedRecords, builder.PendingCount(), root.Link)
	}
	if uint64(t.Size()) != m.Size {
		return nil, fmt.Errorf("%w: rebuilt %d nodes, expected %d", ErrCorruptChunk, t.Size(), m.Size)
	}
	c.Logger.Debug("loaded tree", "link", root.Link, "size", t.Size(), "chunks", len(m.Chunks))
	return t, nil
}
