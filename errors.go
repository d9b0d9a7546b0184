package flattree

import "errors"

var (
	// ErrNoPersist is returned when a snapshot is saved or loaded without
	// RemoteConfig.StoreImmutablePartsWith.
	ErrNoPersist = errors.New("no persistence mechanism set; set RemoteConfig.StoreImmutablePartsWith")

	// ErrOrphanedRecords indicates that a loaded snapshot contained records
	// whose parents could not be found.
	ErrOrphanedRecords = errors.New("records left without a parent")

	// ErrUnknownFormat indicates an unsupported record encoding.
	ErrUnknownFormat = errors.New("unknown record format")

	// ErrCorruptChunk indicates that stored bytes could not be decoded.
	ErrCorruptChunk = errors.New("corrupt chunk")
)
