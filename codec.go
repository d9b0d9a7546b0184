package flattree

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"

	"google.golang.org/protobuf/encoding/protowire"
)

// Format selects how a sequence of records is serialized.
type Format uint8

const (
	// JSONLines writes one marshaled record per line. The marshaler must not
	// emit raw newlines, which encoding/json never does.
	JSONLines Format = iota
	// Binary writes each record as a length-delimited protobuf-wire message
	// whose fields hold the separately marshaled key, parent key and value.
	Binary
)

func (f Format) String() string {
	switch f {
	case JSONLines:
		return "jsonl"
	case Binary:
		return "binary"
	}
	return fmt.Sprintf("Format(%d)", uint8(f))
}

const (
	fieldRecord    protowire.Number = 1
	fieldKey       protowire.Number = 1
	fieldParentKey protowire.Number = 2
	fieldValue     protowire.Number = 3
)

var (
	defaultMarshal   = json.Marshal
	defaultUnmarshal = json.Unmarshal
)

// EncodeRecords serializes records in the given format.
func EncodeRecords[K comparable, V any](records []FlatRecord[K, V], format Format, marshal func(any) ([]byte, error)) ([]byte, error) {
	if marshal == nil {
		marshal = defaultMarshal
	}
	var buf []byte
	switch format {
	case JSONLines:
		for i, rec := range records {
			line, err := marshal(rec)
			if err != nil {
				return nil, fmt.Errorf("marshal record %d: %w", i, err)
			}
			buf = append(buf, line...)
			buf = append(buf, '\n')
		}
	case Binary:
		for i, rec := range records {
			msg, err := appendRecord(nil, rec, marshal)
			if err != nil {
				return nil, fmt.Errorf("marshal record %d: %w", i, err)
			}
			buf = protowire.AppendTag(buf, fieldRecord, protowire.BytesType)
			buf = protowire.AppendBytes(buf, msg)
		}
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownFormat, format)
	}
	return buf, nil
}

func appendRecord[K comparable, V any](buf []byte, rec FlatRecord[K, V], marshal func(any) ([]byte, error)) ([]byte, error) {
	fields := []struct {
		num protowire.Number
		v   any
	}{
		{fieldKey, rec.Key},
		{fieldParentKey, rec.ParentKey},
		{fieldValue, rec.Value},
	}
	for _, field := range fields {
		body, err := marshal(field.v)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", field.num, err)
		}
		buf = protowire.AppendTag(buf, field.num, protowire.BytesType)
		buf = protowire.AppendBytes(buf, body)
	}
	return buf, nil
}

// DecodeRecords is the inverse of EncodeRecords.
func DecodeRecords[K comparable, V any](buf []byte, format Format, unmarshal func([]byte, any) error) ([]FlatRecord[K, V], error) {
	if unmarshal == nil {
		unmarshal = defaultUnmarshal
	}
	var records []FlatRecord[K, V]
	switch format {
	case JSONLines:
		for i, line := range bytes.Split(buf, []byte{'\n'}) {
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			var rec FlatRecord[K, V]
			if err := unmarshal(line, &rec); err != nil {
				return nil, fmt.Errorf("%w: line %d: %w", ErrCorruptChunk, i+1, err)
			}
			records = append(records, rec)
		}
	case Binary:
		for len(buf) > 0 {
			num, typ, n := protowire.ConsumeTag(buf)
			if n < 0 {
				return nil, fmt.Errorf("%w: %w", ErrCorruptChunk, protowire.ParseError(n))
			}
			buf = buf[n:]
			if num != fieldRecord || typ != protowire.BytesType {
				n = protowire.ConsumeFieldValue(num, typ, buf)
				if n < 0 {
					return nil, fmt.Errorf("%w: %w", ErrCorruptChunk, protowire.ParseError(n))
				}
				buf = buf[n:]
				continue
			}
			msg, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("%w: %w", ErrCorruptChunk, protowire.ParseError(n))
			}
			buf = buf[n:]
			rec, err := decodeRecord[K, V](msg, unmarshal)
			if err != nil {
				return nil, fmt.Errorf("%w: record %d: %w", ErrCorruptChunk, len(records), err)
			}
			records = append(records, rec)
		}
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownFormat, format)
	}
	return records, nil
}

func decodeRecord[K comparable, V any](msg []byte, unmarshal func([]byte, any) error) (FlatRecord[K, V], error) {
	var rec FlatRecord[K, V]
	var sawKey, sawParent bool
	for len(msg) > 0 {
		num, typ, n := protowire.ConsumeTag(msg)
		if n < 0 {
			return rec, protowire.ParseError(n)
		}
		msg = msg[n:]
		if typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, msg)
			if n < 0 {
				return rec, protowire.ParseError(n)
			}
			msg = msg[n:]
			continue
		}
		body, n := protowire.ConsumeBytes(msg)
		if n < 0 {
			return rec, protowire.ParseError(n)
		}
		msg = msg[n:]
		var err error
		switch num {
		case fieldKey:
			sawKey = true
			err = unmarshal(body, &rec.Key)
		case fieldParentKey:
			sawParent = true
			err = unmarshal(body, &rec.ParentKey)
		case fieldValue:
			err = unmarshal(body, &rec.Value)
		}
		if err != nil {
			return rec, fmt.Errorf("field %d: %w", num, err)
		}
	}
	if !sawKey || !sawParent {
		return rec, errors.New("missing key or parent key")
	}
	return rec, nil
}

// WriteJSONLines writes each record as one line of JSON.
func WriteJSONLines[K comparable, V any](w io.Writer, records iter.Seq[FlatRecord[K, V]]) error {
	enc := json.NewEncoder(w)
	for rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encode %v: %w", rec, err)
		}
	}
	return nil
}

// ReadJSONLines reads records written by WriteJSONLines, or any stream of
// concatenated JSON objects with Key, ParentKey and Value fields.
func ReadJSONLines[K comparable, V any](r io.Reader) ([]FlatRecord[K, V], error) {
	dec := json.NewDecoder(r)
	var records []FlatRecord[K, V]
	for {
		var rec FlatRecord[K, V]
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode record %d: %w", len(records), err)
		}
		records = append(records, rec)
	}
}
